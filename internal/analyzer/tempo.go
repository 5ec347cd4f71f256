package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	soxTool = "sox"
	bpmTool = "bpm"
)

var errNonPositiveTempo = errors.New("tempo must be positive")

// Tempo estimates BPM by resampling with sox to mono raw floats and piping
// the samples into bpm.
type Tempo struct {
	Sox        string
	BPM        string
	SampleRate int
}

func (t Tempo) soxArgs(path string) []string {
	return []string{
		"-V1", path,
		"-r", strconv.Itoa(t.SampleRate),
		"-e", "float", "-c", "1", "-t", "raw", "-",
	}
}

// Run returns the estimated tempo of path. Both processes are always reaped;
// if sox fails, bpm is killed.
func (t Tempo) Run(ctx context.Context, path string) (float64, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return 0, &ExecError{Tool: soxTool, Path: path, ExitCode: -1, Err: fmt.Errorf("create pipe: %w", err)}
	}

	soxCmd := command(ctx, t.Sox, t.soxArgs(path)...)
	bpmCmd := command(ctx, t.BPM)

	var soxStderr, bpmStdout, bpmStderr bytes.Buffer
	soxCmd.Stdout = pw
	soxCmd.Stderr = &soxStderr
	bpmCmd.Stdin = pr
	bpmCmd.Stdout = &bpmStdout
	bpmCmd.Stderr = &bpmStderr

	// Start bpm first (consumer)
	if err := bpmCmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return 0, execError(ctx, bpmTool, path, err, nil)
	}
	// The child holds its own copy of the read end.
	pr.Close()

	// Run sox (producer)
	soxErr := soxCmd.Run()
	// Closing the write end delivers EOF to bpm.
	pw.Close()

	if soxErr != nil {
		if bpmCmd.Process != nil {
			_ = bpmCmd.Process.Kill()
		}
		_ = bpmCmd.Wait()
		return 0, execError(ctx, soxTool, path, soxErr, &soxStderr)
	}

	if err := bpmCmd.Wait(); err != nil {
		return 0, execError(ctx, bpmTool, path, err, &bpmStderr)
	}

	return ParseTempo(bpmStdout.Bytes())
}

// ParseTempo parses the single float bpm prints.
func ParseTempo(out []byte) (float64, error) {
	s := strings.TrimSpace(string(out))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ParseError{Tool: bpmTool, Output: truncate(s, maxStderr), Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, &ParseError{Tool: bpmTool, Output: s, Err: errNonPositiveTempo}
	}
	return v, nil
}
