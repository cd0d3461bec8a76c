package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	os.Unsetenv(EnvPort)
	os.Unsetenv(EnvLogLevel)
	os.Unsetenv(EnvLLMModel)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
	if cfg.LLMModel() != DefaultLLMModel {
		t.Errorf("LLMModel() = %q, want %q", cfg.LLMModel(), DefaultLLMModel)
	}
	if cfg.FFmpegPath() != "ffmpeg" {
		t.Errorf("FFmpegPath() = %q, want ffmpeg", cfg.FFmpegPath())
	}
}

func TestNew_PortFromEnv(t *testing.T) {
	os.Setenv(EnvPort, "9000")
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", cfg.Port())
	}
}

func TestNew_InvalidPort(t *testing.T) {
	for _, bad := range []string{"abc", "0", "70000"} {
		os.Setenv(EnvPort, bad)
		if _, err := New(); err == nil {
			t.Errorf("New() with port %q should fail", bad)
		}
	}
	os.Unsetenv(EnvPort)
}

func TestDBPath_UnderDataDir(t *testing.T) {
	os.Setenv(EnvDataDir, "/tmp/textcut-test")
	defer os.Unsetenv(EnvDataDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join("/tmp/textcut-test", DBFilename)
	if cfg.DBPath() != want {
		t.Errorf("DBPath() = %q, want %q", cfg.DBPath(), want)
	}
}

func TestLLM_FromEnv(t *testing.T) {
	os.Setenv(EnvLLMAPIKey, "sk-test")
	os.Setenv(EnvLLMBaseURL, "http://localhost:8081/v1")
	os.Setenv(EnvLLMModel, "local-model")
	defer func() {
		os.Unsetenv(EnvLLMAPIKey)
		os.Unsetenv(EnvLLMBaseURL)
		os.Unsetenv(EnvLLMModel)
	}()

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLMAPIKey() != "sk-test" {
		t.Errorf("LLMAPIKey() = %q", cfg.LLMAPIKey())
	}
	if cfg.LLMBaseURL() != "http://localhost:8081/v1" {
		t.Errorf("LLMBaseURL() = %q", cfg.LLMBaseURL())
	}
	if cfg.LLMModel() != "local-model" {
		t.Errorf("LLMModel() = %q", cfg.LLMModel())
	}
}
