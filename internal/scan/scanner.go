package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/bpmdata/internal/metrics"
	"github.com/llehouerou/bpmdata/internal/tags"
)

// Progress phases.
const (
	PhaseScanning = "scanning"
	PhaseDone     = "done"
)

var outcomeKey = strings.NewReplacer(": ", "_", " ", "_")

// discoveryLogInterval is how often the running discovered count is logged.
const discoveryLogInterval = 100

// Progress reports the progress of a scan run.
type Progress struct {
	Phase       string
	Discovered  int
	Processed   int
	CurrentFile string
	WalkDone    bool // no more files will be discovered
}

// Summary holds the totals of a completed run.
type Summary struct {
	RunID      string
	Root       string
	Discovered int
	Counts     map[Outcome]int
	Elapsed    time.Duration
}

// Stored returns the number of records written.
func (s *Summary) Stored() int { return s.Counts[OutcomeStored] }

// Skipped returns the number of soft skips.
func (s *Summary) Skipped() int {
	n := 0
	for o, c := range s.Counts {
		if o.Skipped() {
			n += c
		}
	}
	return n
}

// Failed returns the number of timeouts, cancellations and store failures.
func (s *Summary) Failed() int {
	return s.Counts[OutcomeTimedOut] + s.Counts[OutcomeCancelled] + s.Counts[OutcomeFailed]
}

func (s *Summary) String() string {
	return fmt.Sprintf("Scanned %s files in %s: %s stored, %s skipped, %s failed",
		humanize.Comma(int64(s.Discovered)),
		s.Elapsed.Round(time.Second),
		humanize.Comma(int64(s.Stored())),
		humanize.Comma(int64(s.Skipped())),
		humanize.Comma(int64(s.Failed())),
	)
}

// FileProcessor handles one discovered file.
type FileProcessor interface {
	Process(ctx context.Context, path string) (Result, error)
}

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	Processor  FileProcessor
	Workers    int      // defaults to runtime.NumCPU()
	Solo       bool     // process files inline on the walking goroutine
	Extensions []string // lowercase with leading dot; defaults to .mp3
	Logger     *slog.Logger
	Metrics    *metrics.ScanMetrics // optional
}

// Scanner walks a directory tree and dispatches audio files to a processor.
type Scanner struct {
	processor  FileProcessor
	workers    int
	solo       bool
	extensions []string
	logger     *slog.Logger
	metrics    *metrics.ScanMetrics
}

// NewScanner creates a scanner.
func NewScanner(cfg ScannerConfig) *Scanner {
	s := &Scanner{
		processor:  cfg.Processor,
		workers:    cfg.Workers,
		solo:       cfg.Solo,
		extensions: cfg.Extensions,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if s.workers <= 0 {
		s.workers = runtime.NumCPU()
	}
	if len(s.extensions) == 0 {
		s.extensions = []string{tags.ExtMP3}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Run scans root. Per-file problems never stop the run; the only errors
// returned are an unusable root, cancellation of ctx and ErrStoreUnavailable.
// If progress is non-nil it receives updates and is closed when Run returns.
func (s *Scanner) Run(ctx context.Context, root string, progress chan<- Progress) (*Summary, error) {
	if progress != nil {
		defer close(progress)
	}
	start := time.Now()

	abs, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:  uuid.NewString(),
		Root:   abs,
		Counts: make(map[Outcome]int, len(Outcomes)),
	}
	log := s.logger.With("run_id", summary.RunID)
	log.Info("scan started", "root", abs, "workers", s.workers, "solo", s.solo)

	var (
		discovered atomic.Int64
		processed  atomic.Int64
		mu         sync.Mutex
	)
	send := func(p Progress) {
		if progress == nil {
			return
		}
		select {
		case progress <- p:
		case <-ctx.Done():
		}
	}
	record := func(res Result) {
		mu.Lock()
		summary.Counts[res.Outcome]++
		mu.Unlock()
		send(Progress{
			Phase:       PhaseScanning,
			Discovered:  int(discovered.Load()),
			Processed:   int(processed.Add(1)),
			CurrentFile: res.Path,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			log.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !tags.HasExtension(path, s.extensions) {
			return nil
		}
		// Symlinks are resolved and checked by the processor.
		if t := d.Type(); !t.IsRegular() && t&fs.ModeSymlink == 0 {
			log.Info("skipping non-regular file", "path", path, "mode", t.String())
			return nil
		}

		n := discovered.Add(1)
		s.metrics.FileDiscovered()
		if n%discoveryLogInterval == 0 {
			log.Info("discovering files", "discovered", n)
		}

		if s.solo {
			res, err := s.processor.Process(gctx, path)
			record(res)
			return err
		}
		// Go blocks while all workers are busy.
		g.Go(func() error {
			res, err := s.processor.Process(gctx, path)
			record(res)
			return err
		})
		return nil
	})
	send(Progress{Phase: PhaseScanning, Discovered: int(discovered.Load()), Processed: int(processed.Load()), WalkDone: true})
	waitErr := g.Wait()

	summary.Discovered = int(discovered.Load())
	summary.Elapsed = time.Since(start)

	send(Progress{Phase: PhaseDone, Discovered: summary.Discovered, Processed: int(processed.Load()), WalkDone: true})
	s.logSummary(log, summary)

	switch {
	case errors.Is(waitErr, ErrStoreUnavailable):
		return summary, waitErr
	case errors.Is(walkErr, ErrStoreUnavailable):
		return summary, walkErr
	case ctx.Err() != nil:
		return summary, fmt.Errorf("scan interrupted: %w", context.Cause(ctx))
	case walkErr != nil:
		return summary, fmt.Errorf("walk %s: %w", abs, walkErr)
	}
	return summary, waitErr
}

func (s *Scanner) logSummary(log *slog.Logger, summary *Summary) {
	attrs := []any{
		"root", summary.Root,
		"discovered", summary.Discovered,
		"stored", summary.Stored(),
		"skipped", summary.Skipped(),
		"failed", summary.Failed(),
		"elapsed", summary.Elapsed.Round(time.Millisecond).String(),
	}
	var counts []any
	for _, o := range Outcomes {
		if c := summary.Counts[o]; c > 0 {
			counts = append(counts, slog.Int(outcomeKey.Replace(string(o)), c))
		}
	}
	if len(counts) > 0 {
		attrs = append(attrs, slog.Group("outcomes", counts...))
	}
	log.Info("scan finished", attrs...)
}

// ResolveRoot returns root as an absolute path with symlinks resolved and
// checks that it is a directory.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
