package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

const maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

var ErrEmptyPlan = errors.New("render plan has no instances")

// RenderError reports a failed transcoder run. A non-zero exit yields
// no output artifact; partial output files are never considered valid.
type RenderError struct {
	ExitCode   int
	StderrTail string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("ffmpeg exited %d: %s", e.ExitCode, e.StderrTail)
}

// Transcoder turns a render plan into an output media file. The core
// never decodes or encodes media itself.
type Transcoder interface {
	Render(ctx context.Context, plan Plan, sourcePath, outputPath string) error
}

// Prober reports source media metadata.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Config holds the external tool configuration.
type Config struct {
	FFmpegPath  string // ffmpeg binary; default "ffmpeg"
	FFprobePath string // ffprobe binary; default "ffprobe"
	Timeout     time.Duration
	Logger      *slog.Logger
}

// FFmpegTranscoder executes ffmpeg with a compiled filter graph.
type FFmpegTranscoder struct {
	cfg Config
}

func NewFFmpegTranscoder(cfg Config) *FFmpegTranscoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &FFmpegTranscoder{cfg: cfg}
}

func (t *FFmpegTranscoder) Render(ctx context.Context, plan Plan, sourcePath, outputPath string) error {
	if len(plan.Instances) == 0 {
		return ErrEmptyPlan
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", sourcePath,
		"-filter_complex", plan.FilterComplex(),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-c:a", "aac",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if t.cfg.Logger != nil {
		t.cfg.Logger.Info("render started",
			"source", sourcePath,
			"output", outputPath,
			"instances", len(plan.Instances),
		)
	}

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("render aborted: %w", ctx.Err())
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &RenderError{ExitCode: exitCode, StderrTail: stderrTail(stderr.Bytes())}
	}

	if t.cfg.Logger != nil {
		t.cfg.Logger.Info("render complete",
			"output", outputPath,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// Duration probes the source container for its duration in seconds.
func (t *FFmpegTranscoder) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.cfg.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w: %s", err, stderrTail(stderr.Bytes()))
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, errors.New("ffprobe output has no duration")
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	return duration, nil
}

func stderrTail(b []byte) string {
	if len(b) > maxStderrBytes {
		b = b[len(b)-maxStderrBytes:]
	}
	return string(b)
}

// StubTranscoder records render requests without invoking ffmpeg.
// Used in tests and in keyless development setups.
type StubTranscoder struct {
	Logger *slog.Logger

	Calls []Plan
	Err   error
}

func (s *StubTranscoder) Render(ctx context.Context, plan Plan, sourcePath, outputPath string) error {
	if len(plan.Instances) == 0 {
		return ErrEmptyPlan
	}
	s.Calls = append(s.Calls, plan)
	if s.Logger != nil {
		s.Logger.Info("transcoder stub: render requested",
			"source", sourcePath, "output", outputPath, "instances", len(plan.Instances))
	}
	return s.Err
}
