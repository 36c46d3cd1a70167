package mermaid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/DivinerX/code-diagram-creator/internal/config"
	"github.com/DivinerX/code-diagram-creator/internal/telemetry"
)

// SVGContentType is the MIME type of rendered diagrams.
const SVGContentType = "image/svg+xml"

// CLIError reports a mermaid CLI run that exited non-zero. Stderr holds
// the tool's diagnostic output.
type CLIError struct {
	Stderr string
}

func (e *CLIError) Error() string {
	return "mermaid cli failed: " + e.Stderr
}

// UnexpectedError reports a render failure outside the CLI's control
// (temp file I/O, missing binary, timeout).
type UnexpectedError struct {
	Cause error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected render error: %v", e.Cause)
}

func (e *UnexpectedError) Unwrap() error { return e.Cause }

// Rendering is a rendered diagram image.
type Rendering struct {
	Content     []byte
	ContentType string
}

// Renderer turns mermaid scripts into SVG by shelling out to the
// mermaid CLI. Each call runs one child process; the renderer itself
// holds no mutable state and is safe for concurrent use.
type Renderer struct {
	binary  string
	workDir string
	timeout time.Duration
	metrics *telemetry.Metrics
}

func NewRenderer(cfg config.RendererConfig, metrics *telemetry.Metrics) *Renderer {
	binary := cfg.Binary
	if binary == "" {
		binary = "mmdc"
	}
	return &Renderer{
		binary:  binary,
		workDir: cfg.WorkDir,
		timeout: cfg.Timeout,
		metrics: metrics,
	}
}

// Render writes the script to a temp file, invokes the CLI with input
// and output paths, and returns the produced SVG. Both temp files are
// removed on every exit path.
func (r *Renderer) Render(ctx context.Context, script string) (*Rendering, error) {
	start := time.Now()
	rendering, err := r.render(ctx, script)
	durationMs := float64(time.Since(start).Milliseconds())

	if r.metrics != nil {
		outcome := "ok"
		var cliErr *CLIError
		if errors.As(err, &cliErr) {
			outcome = "cli_error"
		} else if err != nil {
			outcome = "unexpected_error"
		}
		r.metrics.RecordRender(outcome, durationMs)
	}
	return rendering, err
}

func (r *Renderer) render(ctx context.Context, script string) (*Rendering, error) {
	in, err := os.CreateTemp(r.workDir, "diagram-*.mmd")
	if err != nil {
		return nil, &UnexpectedError{Cause: fmt.Errorf("create input file: %w", err)}
	}
	defer os.Remove(in.Name())

	out, err := os.CreateTemp(r.workDir, "diagram-*.svg")
	if err != nil {
		in.Close()
		return nil, &UnexpectedError{Cause: fmt.Errorf("create output file: %w", err)}
	}
	defer os.Remove(out.Name())
	out.Close()

	if _, err := in.WriteString(script); err != nil {
		in.Close()
		return nil, &UnexpectedError{Cause: fmt.Errorf("write input file: %w", err)}
	}
	// Flushed and closed before the child process reads it.
	if err := in.Close(); err != nil {
		return nil, &UnexpectedError{Cause: fmt.Errorf("close input file: %w", err)}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, "-i", in.Name(), "-o", out.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// On deadline only the direct child is killed; its children can keep
	// the output pipes open and stall Run indefinitely. WaitDelay forces
	// Run to return shortly after cancellation regardless.
	cmd.WaitDelay = time.Second

	err = cmd.Run()

	slog.Debug("mermaid cli finished",
		"binary", r.binary,
		"stdout", stdout.String(),
		"stderr", stderr.String(),
	)

	if err != nil {
		if ctx.Err() != nil {
			return nil, &UnexpectedError{Cause: fmt.Errorf("mermaid cli timed out: %w", ctx.Err())}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Warn("mermaid cli rejected script", "exit_code", exitErr.ExitCode(), "stderr", stderr.String())
			return nil, &CLIError{Stderr: stderr.String()}
		}
		return nil, &UnexpectedError{Cause: err}
	}

	content, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, &UnexpectedError{Cause: fmt.Errorf("read output file: %w", err)}
	}

	return &Rendering{
		Content:     content,
		ContentType: SVGContentType,
	}, nil
}
