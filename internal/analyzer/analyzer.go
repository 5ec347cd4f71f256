// Package analyzer runs the external audio analyzers and parses their output.
//
// Each adapter shells out to one tool: echoprint-codegen for metadata and the
// primary fingerprint, fpcalc for the chromaprint fingerprint and a sox | bpm
// pipe for tempo. Subprocesses are bound to the caller's context and are
// killed when it is cancelled or its deadline expires.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrAnalyzerFailed matches every failure produced by this package.
	ErrAnalyzerFailed = errors.New("analyzer failed")
	// ErrNoRecord is returned when echoprint-codegen produced no usable record.
	ErrNoRecord = fmt.Errorf("%w: no fingerprint record", ErrAnalyzerFailed)
)

// waitDelay bounds how long Wait blocks on output pipes held open by
// orphaned grandchildren after the tool itself has exited or been killed.
const waitDelay = 2 * time.Second

const maxStderr = 512

// ExecError describes a tool that could not start or exited non-zero.
type ExecError struct {
	Tool     string
	Path     string
	ExitCode int // -1 when the process never ran to completion
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, e.Path, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

func (e *ExecError) Is(target error) bool { return target == ErrAnalyzerFailed }

// ParseError describes tool output that could not be understood.
type ParseError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s output %q: %v", e.Tool, e.Output, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrAnalyzerFailed }

func command(ctx context.Context, bin string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay
	return cmd
}

// run executes a single tool and returns its stdout.
func run(ctx context.Context, tool, path, bin string, args ...string) ([]byte, error) {
	cmd := command(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, execError(ctx, tool, path, err, &stderr)
	}
	return stdout.Bytes(), nil
}

func execError(ctx context.Context, tool, path string, err error, stderr *bytes.Buffer) error {
	// Report the context error so callers can tell a kill from a crash.
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	e := &ExecError{Tool: tool, Path: path, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		e.ExitCode = exitErr.ExitCode()
	}
	if stderr != nil {
		e.Stderr = truncate(strings.TrimSpace(stderr.String()), maxStderr)
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
