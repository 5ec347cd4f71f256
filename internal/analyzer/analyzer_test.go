package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script standing in for a tool.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

const codegenOutput = `[
 {"metadata":{"artist":"Daft Punk","release":"Homework","title":"Around the World",
  "genre":"","bitrate":320,"sample_rate":44100,"duration":429,"filename":"a.mp3",
  "samples_decoded":110033,"given_duration":0,"version":4.12},
  "code_count":1210,"code":"eJzFm2uS5CgOgK_SR-g","tag":0}
]`

func TestParseCodegen(t *testing.T) {
	rec, err := ParseCodegen([]byte(codegenOutput))
	require.NoError(t, err)

	require.NotNil(t, rec.Artist)
	assert.Equal(t, "Daft Punk", *rec.Artist)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Around the World", *rec.Title)
	assert.Nil(t, rec.Genre, "blank genre should be absent")
	require.NotNil(t, rec.Release)
	assert.Equal(t, "Homework", *rec.Release)
	assert.InDelta(t, 429.0, rec.Duration, 0.001)
	assert.Equal(t, 320, rec.Bitrate)
	assert.Equal(t, "eJzFm2uS5CgOgK_SR-g", rec.Code)
}

func TestParseCodegen_NoRecord(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"empty array", `[]`},
		{"error element", `[{"error":"could not decode","metadata":{"filename":"x.mp3"}}]`},
		{"missing code", `[{"metadata":{"artist":"A","title":"B","duration":10,"bitrate":128}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCodegen([]byte(tt.out))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNoRecord)
			assert.ErrorIs(t, err, ErrAnalyzerFailed)
		})
	}
}

func TestParseCodegen_Garbage(t *testing.T) {
	_, err := ParseCodegen([]byte("Segmentation fault"))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, codegenTool, perr.Tool)
	assert.ErrorIs(t, err, ErrAnalyzerFailed)
}

func TestCodegenRun(t *testing.T) {
	bin := writeScript(t, "echoprint-codegen", "cat <<'EOF'\n"+codegenOutput+"\nEOF")

	rec, err := Codegen{Binary: bin}.Run(context.Background(), "/music/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "eJzFm2uS5CgOgK_SR-g", rec.Code)
}

func TestCodegenRun_NonZeroExit(t *testing.T) {
	bin := writeScript(t, "echoprint-codegen", "echo 'decoder exploded' >&2\nexit 3")

	_, err := Codegen{Binary: bin}.Run(context.Background(), "/music/a.mp3")
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Equal(t, "decoder exploded", execErr.Stderr)
	assert.Equal(t, "/music/a.mp3", execErr.Path)
	assert.ErrorIs(t, err, ErrAnalyzerFailed)
}

func TestCodegenRun_MissingBinary(t *testing.T) {
	_, err := Codegen{Binary: filepath.Join(t.TempDir(), "nope")}.Run(context.Background(), "/music/a.mp3")
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, -1, execErr.ExitCode)
}

func TestParseFingerprint(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    string
		wantErr bool
	}{
		{"standard", "DURATION=241\nFINGERPRINT=AQADtEmUKEqS\n", "AQADtEmUKEqS", false},
		{"fingerprint first", "FINGERPRINT=AQAD\nDURATION=12\n", "AQAD", false},
		{"surrounding whitespace", "  FINGERPRINT= AQAD  \r\n", "AQAD", false},
		{"skips empty value", "FINGERPRINT=\nFINGERPRINT=AQAE\n", "AQAE", false},
		{"missing", "DURATION=241\n", "", true},
		{"empty output", "", "", true},
		{"not a prefix", "XFINGERPRINT=AQAD\n", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFingerprint(strings.NewReader(tt.out))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrAnalyzerFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFingerprint_LongLine(t *testing.T) {
	long := strings.Repeat("A", 200_000)
	got, err := ParseFingerprint(strings.NewReader("DURATION=1\nFINGERPRINT=" + long + "\n"))
	require.NoError(t, err)
	assert.Len(t, got, len(long))
}

func TestFpcalcRun(t *testing.T) {
	bin := writeScript(t, "fpcalc", `echo "FILE=$1"; echo "DURATION=241"; echo "FINGERPRINT=AQADtEmUKEqS"`)

	fp, err := Fpcalc{Binary: bin}.Run(context.Background(), "/music/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "AQADtEmUKEqS", fp)
}

func TestParseTempo(t *testing.T) {
	v, err := ParseTempo([]byte("128.012\n"))
	require.NoError(t, err)
	assert.InDelta(t, 128.012, v, 1e-9)

	for _, bad := range []string{"", "abc", "0", "-12.5", "NaN", "+Inf"} {
		_, err := ParseTempo([]byte(bad))
		assert.ErrorIs(t, err, ErrAnalyzerFailed, "input %q", bad)
	}
}

func TestTempoRun(t *testing.T) {
	sox := writeScript(t, "sox", `printf 'rawsamples'`)
	bpm := writeScript(t, "bpm", `cat >/dev/null; echo 124.500`)

	v, err := Tempo{Sox: sox, BPM: bpm, SampleRate: 44100}.Run(context.Background(), "/music/a.mp3")
	require.NoError(t, err)
	assert.InDelta(t, 124.5, v, 1e-9)
}

func TestTempoRun_SoxArgs(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	sox := writeScript(t, "sox", `echo "$@" > `+argsFile)
	bpm := writeScript(t, "bpm", `cat >/dev/null; echo 90`)

	_, err := Tempo{Sox: sox, BPM: bpm, SampleRate: 22050}.Run(context.Background(), "/music/a.mp3")
	require.NoError(t, err)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "-V1 /music/a.mp3 -r 22050 -e float -c 1 -t raw -", strings.TrimSpace(string(args)))
}

func TestTempoRun_ProducerFailureKillsConsumer(t *testing.T) {
	sox := writeScript(t, "sox", `echo 'sox FAIL formats: no handler' >&2; exit 2`)
	// A consumer that never finishes on its own.
	bpm := writeScript(t, "bpm", `exec sleep 30`)

	start := time.Now()
	_, err := Tempo{Sox: sox, BPM: bpm, SampleRate: 44100}.Run(context.Background(), "/music/a.mp3")
	elapsed := time.Since(start)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, soxTool, execErr.Tool)
	assert.Equal(t, 2, execErr.ExitCode)
	assert.Contains(t, execErr.Stderr, "no handler")
	assert.Less(t, elapsed, 10*time.Second, "bpm should have been killed")
}

func TestTempoRun_ConsumerFailure(t *testing.T) {
	sox := writeScript(t, "sox", `printf 'rawsamples'`)
	bpm := writeScript(t, "bpm", `cat >/dev/null; exit 1`)

	_, err := Tempo{Sox: sox, BPM: bpm, SampleRate: 44100}.Run(context.Background(), "/music/a.mp3")
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, bpmTool, execErr.Tool)
}

func TestTempoRun_ContextDeadline(t *testing.T) {
	sox := writeScript(t, "sox", `exec sleep 30`)
	bpm := writeScript(t, "bpm", `exec cat >/dev/null`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Tempo{Sox: sox, BPM: bpm, SampleRate: 44100}.Run(ctx, "/music/a.mp3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)
}
