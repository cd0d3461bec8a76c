// Package config provides configuration management for textcut.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort      = 8760
	DefaultLogLevel  = "info"
	DefaultDataDir   = ".textcut"
	DefaultFrameRate = 30

	// Environment variable names
	EnvPort     = "TEXTCUT_PORT"
	EnvLogLevel = "TEXTCUT_LOG_LEVEL"
	EnvDataDir  = "TEXTCUT_DATA_DIR"

	EnvLLMAPIKey  = "TEXTCUT_LLM_API_KEY"
	EnvLLMBaseURL = "TEXTCUT_LLM_BASE_URL"
	EnvLLMModel   = "TEXTCUT_LLM_MODEL"

	EnvFFmpegPath  = "TEXTCUT_FFMPEG"
	EnvFFprobePath = "TEXTCUT_FFPROBE"

	// Database filename
	DBFilename = "textcut.db"

	DefaultLLMBaseURL = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o"

	DefaultRenderTimeout = 1800 // seconds
	DefaultProbeTimeout  = 30   // seconds
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LLMAPIKey() string
	LLMBaseURL() string
	LLMModel() string
	FFmpegPath() string
	FFprobePath() string
	RenderTimeout() time.Duration
	ProbeTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	llmAPIKey  string
	llmBaseURL string
	llmModel   string

	ffmpegPath  string
	ffprobePath string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.llmAPIKey = os.Getenv(EnvLLMAPIKey)
	cfg.llmBaseURL = os.Getenv(EnvLLMBaseURL)
	cfg.llmModel = os.Getenv(EnvLLMModel)
	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LLMAPIKey returns the model endpoint API key; empty means the AI
// editing endpoint is disabled.
func (c *EnvConfig) LLMAPIKey() string {
	return c.llmAPIKey
}

func (c *EnvConfig) LLMBaseURL() string {
	if c.llmBaseURL != "" {
		return c.llmBaseURL
	}
	return DefaultLLMBaseURL
}

func (c *EnvConfig) LLMModel() string {
	if c.llmModel != "" {
		return c.llmModel
	}
	return DefaultLLMModel
}

// FFmpegPath returns the ffmpeg binary path; empty means resolve from
// PATH.
func (c *EnvConfig) FFmpegPath() string {
	if c.ffmpegPath != "" {
		return c.ffmpegPath
	}
	return "ffmpeg"
}

func (c *EnvConfig) FFprobePath() string {
	if c.ffprobePath != "" {
		return c.ffprobePath
	}
	return "ffprobe"
}

func (c *EnvConfig) RenderTimeout() time.Duration {
	return time.Duration(DefaultRenderTimeout) * time.Second
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeout) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
