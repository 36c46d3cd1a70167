package mermaid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/DivinerX/code-diagram-creator/internal/config"
)

const fakeSVG = `<svg xmlns="http://www.w3.org/2000/svg"></svg>`

// writeFakeCLI writes a shell script standing in for mmdc. The real
// CLI is invoked as: mmdc -i <input> -o <output>.
func writeFakeCLI(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake CLI scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-mmdc")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRender_Success(t *testing.T) {
	bin := writeFakeCLI(t, `printf '`+fakeSVG+`' > "$4"`)
	workDir := t.TempDir()

	r := NewRenderer(config.RendererConfig{Binary: bin, WorkDir: workDir, Timeout: 10 * time.Second}, nil)

	rendering, err := r.Render(context.Background(), "graph TD; A-->B")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if rendering.ContentType != "image/svg+xml" {
		t.Errorf("expected content type image/svg+xml, got %s", rendering.ContentType)
	}
	if string(rendering.Content) != fakeSVG {
		t.Errorf("expected body to equal the produced SVG, got %q", rendering.Content)
	}
}

func TestRender_CLIFailure(t *testing.T) {
	bin := writeFakeCLI(t, `printf 'parse error' >&2; exit 1`)

	r := NewRenderer(config.RendererConfig{Binary: bin, WorkDir: t.TempDir()}, nil)

	_, err := r.Render(context.Background(), "graph TD; A-->B")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}

	var cliErr *CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected *CLIError, got %T: %v", err, err)
	}
	if cliErr.Stderr != "parse error" {
		t.Errorf("expected stderr 'parse error', got %q", cliErr.Stderr)
	}
}

func TestRender_MissingBinary(t *testing.T) {
	r := NewRenderer(config.RendererConfig{
		Binary:  filepath.Join(t.TempDir(), "does-not-exist"),
		WorkDir: t.TempDir(),
	}, nil)

	_, err := r.Render(context.Background(), "graph TD; A-->B")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}

	var unexpectedErr *UnexpectedError
	if !errors.As(err, &unexpectedErr) {
		t.Fatalf("expected *UnexpectedError, got %T: %v", err, err)
	}
}

func TestRender_CleansUpTempFiles(t *testing.T) {
	bin := writeFakeCLI(t, `printf '`+fakeSVG+`' > "$4"`)
	workDir := t.TempDir()

	r := NewRenderer(config.RendererConfig{Binary: bin, WorkDir: workDir}, nil)

	if _, err := r.Render(context.Background(), "graph TD; A-->B"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected work dir to be empty after render, found %d entries", len(entries))
	}
}

func TestRender_CleansUpTempFilesOnFailure(t *testing.T) {
	bin := writeFakeCLI(t, `exit 1`)
	workDir := t.TempDir()

	r := NewRenderer(config.RendererConfig{Binary: bin, WorkDir: workDir}, nil)

	if _, err := r.Render(context.Background(), "graph TD; A-->B"); err == nil {
		t.Fatal("expected error")
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected work dir to be empty after failed render, found %d entries", len(entries))
	}
}

func TestRender_Timeout(t *testing.T) {
	bin := writeFakeCLI(t, `sleep 5`)

	r := NewRenderer(config.RendererConfig{
		Binary:  bin,
		WorkDir: t.TempDir(),
		Timeout: 50 * time.Millisecond,
	}, nil)

	// The shell exits on deadline but its sleep child keeps the output
	// pipes open; Render must still return promptly.
	start := time.Now()
	_, err := r.Render(context.Background(), "graph TD; A-->B")
	if err == nil {
		t.Fatal("expected error for timed-out render")
	}
	var unexpectedErr *UnexpectedError
	if !errors.As(err, &unexpectedErr) {
		t.Fatalf("expected *UnexpectedError for timeout, got %T: %v", err, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("render did not respect the configured timeout")
	}
}
