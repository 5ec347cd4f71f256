package scan

import (
	"errors"
	"log/slog"

	"github.com/llehouerou/bpmdata/internal/store"
)

// ErrStoreUnavailable aborts a run: an insert failed twice and the store no
// longer answers a ping.
var ErrStoreUnavailable = errors.New("store unavailable")

// Outcome is the terminal state of one file.
type Outcome string

const (
	OutcomeStored         Outcome = "stored"
	OutcomeNotFile        Outcome = "skipped: not a file"
	OutcomeTooLarge       Outcome = "skipped: too large"
	OutcomeAnalyzerFailed Outcome = "skipped: analyzer failure"
	OutcomeTooLong        Outcome = "skipped: too long"
	OutcomeMissingTags    Outcome = "skipped: missing tags"
	OutcomeDuplicate      Outcome = "skipped: duplicate"
	OutcomeMissingTempo   Outcome = "skipped: missing tempo"
	OutcomeTimedOut       Outcome = "failed: timeout"
	OutcomeCancelled      Outcome = "failed: cancelled"
	OutcomeFailed         Outcome = "failed: store"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomeStored,
	OutcomeNotFile,
	OutcomeTooLarge,
	OutcomeAnalyzerFailed,
	OutcomeTooLong,
	OutcomeMissingTags,
	OutcomeDuplicate,
	OutcomeMissingTempo,
	OutcomeTimedOut,
	OutcomeCancelled,
	OutcomeFailed,
}

// Skipped reports whether the outcome is a soft skip rather than a store
// or a failure.
func (o Outcome) Skipped() bool {
	switch o {
	case OutcomeStored, OutcomeTimedOut, OutcomeCancelled, OutcomeFailed:
		return false
	default:
		return true
	}
}

func (o Outcome) level() slog.Level {
	switch o {
	case OutcomeStored, OutcomeNotFile, OutcomeTooLarge, OutcomeTooLong,
		OutcomeMissingTags, OutcomeCancelled:
		return slog.LevelInfo
	case OutcomeDuplicate, OutcomeMissingTempo, OutcomeTimedOut:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Result describes what happened to one file. Record is set only when the
// outcome is OutcomeStored.
type Result struct {
	Path    string
	Outcome Outcome
	Reason  string
	Record  *store.ScannedTrack
}
