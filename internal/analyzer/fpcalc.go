package analyzer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
)

const (
	fpcalcTool        = "fpcalc"
	fingerprintPrefix = "FINGERPRINT="
	maxFpcalcLine     = 1 << 20
)

var errNoFingerprint = errors.New("no FINGERPRINT= line")

// Fpcalc runs chromaprint's fpcalc.
type Fpcalc struct {
	Binary string
}

// Run returns the chromaprint fingerprint of path.
func (f Fpcalc) Run(ctx context.Context, path string) (string, error) {
	out, err := run(ctx, fpcalcTool, path, f.Binary, path)
	if err != nil {
		return "", err
	}
	return ParseFingerprint(bytes.NewReader(out))
}

// ParseFingerprint returns the value of the first non-empty FINGERPRINT= line.
func ParseFingerprint(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFpcalcLine)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		value, ok := strings.CutPrefix(line, fingerprintPrefix)
		if !ok {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", &ParseError{Tool: fpcalcTool, Err: err}
	}
	return "", &ParseError{Tool: fpcalcTool, Err: errNoFingerprint}
}
