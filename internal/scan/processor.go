package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/bpmdata/internal/analyzer"
	"github.com/llehouerou/bpmdata/internal/metrics"
	"github.com/llehouerou/bpmdata/internal/store"
	"github.com/llehouerou/bpmdata/internal/tags"
)

// TagPolicy decides which artist/title combinations are accepted.
type TagPolicy string

const (
	// TagPolicyTitleNeedsArtist rejects a file only when it has a title but
	// no artist. Files carrying neither tag are accepted.
	TagPolicyTitleNeedsArtist TagPolicy = "title-needs-artist"
	// TagPolicyArtistAndTitle rejects a file unless both tags are present.
	TagPolicyArtistAndTitle TagPolicy = "artist-and-title"
)

// Analyzer names used in logs and metrics.
const (
	analyzerCodegen = "codegen"
	analyzerFpcalc  = "fpcalc"
	analyzerTempo   = "tempo"
)

const (
	insertTimeout = 30 * time.Second
	retryDelay    = 250 * time.Millisecond
)

// MetadataAnalyzer returns tags, duration, bitrate and the primary fingerprint.
type MetadataAnalyzer interface {
	Run(ctx context.Context, path string) (*analyzer.Record, error)
}

// FingerprintAnalyzer returns the secondary fingerprint.
type FingerprintAnalyzer interface {
	Run(ctx context.Context, path string) (string, error)
}

// TempoAnalyzer returns the estimated tempo in BPM.
type TempoAnalyzer interface {
	Run(ctx context.Context, path string) (float64, error)
}

// TagReader reads embedded tags and audio properties.
type TagReader interface {
	Read(path string) (*tags.Tag, error)
	ReadAudioInfo(path string) (*tags.AudioInfo, error)
}

// Store is the subset of the record store the processor needs.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	Insert(ctx context.Context, t *store.ScannedTrack) (int64, error)
	Ping(ctx context.Context) error
}

// Options holds the per-file limits and policies.
type Options struct {
	MaxFileSize  int64
	MaxDuration  float64 // seconds
	FileTimeout  time.Duration
	TagPolicy    TagPolicy
	RequireTempo bool
	TagFallback  bool
}

// Processor runs the analysis routine for a single file.
type Processor struct {
	codegen MetadataAnalyzer
	fpcalc  FingerprintAnalyzer
	tempo   TempoAnalyzer
	tags    TagReader
	store   Store
	opts    Options
	logger  *slog.Logger
	metrics *metrics.ScanMetrics

	insertTimeout time.Duration
}

// ProcessorConfig bundles the processor's collaborators.
type ProcessorConfig struct {
	Codegen     MetadataAnalyzer
	Fingerprint FingerprintAnalyzer
	Tempo       TempoAnalyzer
	Tags        TagReader // defaults to the embedded tag reader
	Store       Store
	Options     Options
	Logger      *slog.Logger
	Metrics     *metrics.ScanMetrics // optional
}

// NewProcessor creates a processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	p := &Processor{
		codegen: cfg.Codegen,
		fpcalc:  cfg.Fingerprint,
		tempo:   cfg.Tempo,
		tags:    cfg.Tags,
		store:   cfg.Store,
		opts:    cfg.Options,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,

		insertTimeout: insertTimeout,
	}
	if p.tags == nil {
		p.tags = EmbeddedTags{}
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.opts.TagPolicy != TagPolicyArtistAndTitle {
		p.opts.TagPolicy = TagPolicyTitleNeedsArtist
	}
	return p
}

// EmbeddedTags reads tags with the tags package.
type EmbeddedTags struct{}

func (EmbeddedTags) Read(path string) (*tags.Tag, error) { return tags.Read(path) }

func (EmbeddedTags) ReadAudioInfo(path string) (*tags.AudioInfo, error) {
	return tags.ReadAudioInfo(path)
}

// Process analyzes path and stores a record for it unless a step rejects the
// file. The returned error is non-nil only for ErrStoreUnavailable.
func (p *Processor) Process(ctx context.Context, path string) (Result, error) {
	done := p.metrics.FileStarted()
	res, err := p.process(ctx, path)
	done(string(res.Outcome))

	attrs := []any{"path", path, "outcome", string(res.Outcome)}
	if res.Reason != "" {
		attrs = append(attrs, "reason", res.Reason)
	}
	if res.Record != nil {
		attrs = append(attrs, "id", res.Record.ID)
	}
	p.logger.Log(context.WithoutCancel(ctx), res.Outcome.level(), "file processed", attrs...)

	return res, err
}

func (p *Processor) process(parent context.Context, path string) (Result, error) {
	ctx := parent
	if p.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, p.opts.FileTimeout)
		defer cancel()
	}
	log := p.logger.With("path", path)

	result := func(o Outcome, format string, args ...any) Result {
		return Result{Path: path, Outcome: o, Reason: fmt.Sprintf(format, args...)}
	}
	// interrupted maps a done context to its outcome.
	interrupted := func() (Result, bool) {
		switch {
		case parent.Err() != nil:
			return result(OutcomeCancelled, "%v", context.Cause(parent)), true
		case ctx.Err() != nil:
			return result(OutcomeTimedOut, "exceeded %s", p.opts.FileTimeout), true
		}
		return Result{}, false
	}

	if r, ok := interrupted(); ok {
		return r, nil
	}

	// 1. Regular, readable, not oversized.
	size, err := statFile(path)
	if err != nil {
		return result(OutcomeNotFile, "%v", err), nil
	}
	if p.opts.MaxFileSize > 0 && size > p.opts.MaxFileSize {
		return result(OutcomeTooLarge, "%s exceeds %s",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(p.opts.MaxFileSize))), nil
	}

	// 2. Primary analyzer.
	var rec *analyzer.Record
	err = p.timed(analyzerCodegen, func() error {
		var err error
		rec, err = p.codegen.Run(ctx, path)
		return err
	})
	if r, ok := interrupted(); ok {
		return r, nil
	}
	if err != nil {
		return result(OutcomeAnalyzerFailed, "%v", err), nil
	}

	if p.opts.TagFallback {
		p.fillFromTags(log, path, rec)
	}

	// 3. Duration limit.
	if p.opts.MaxDuration > 0 && rec.Duration > p.opts.MaxDuration {
		return result(OutcomeTooLong, "duration %.0fs exceeds %.0fs", rec.Duration, p.opts.MaxDuration), nil
	}

	// 4. Tag policy.
	if reason, ok := p.acceptTags(rec); !ok {
		return result(OutcomeMissingTags, "%s", reason), nil
	}

	// 5. Secondary fingerprint; failure leaves it null.
	var chromaprint *string
	err = p.timed(analyzerFpcalc, func() error {
		fp, err := p.fpcalc.Run(ctx, path)
		if err == nil {
			chromaprint = &fp
		}
		return err
	})
	if r, ok := interrupted(); ok {
		return r, nil
	}
	if err != nil {
		log.Warn("secondary fingerprint unavailable", "error", err)
	}

	// 6. Dedup pre-check. The UNIQUE constraint on insert is authoritative.
	exists, err := p.store.Exists(ctx, path)
	if r, ok := interrupted(); ok {
		return r, nil
	}
	if err != nil {
		return p.storeFailure(ctx, path, err)
	}
	if exists {
		return result(OutcomeDuplicate, "already scanned"), nil
	}

	// 7. Tempo; failure leaves it null.
	var tempo *float64
	err = p.timed(analyzerTempo, func() error {
		bpm, err := p.tempo.Run(ctx, path)
		if err == nil {
			tempo = &bpm
		}
		return err
	})
	if r, ok := interrupted(); ok {
		return r, nil
	}
	if err != nil {
		log.Error("tempo estimation failed", "error", err)
		if p.opts.RequireTempo {
			return result(OutcomeMissingTempo, "%v", err), nil
		}
	}

	// 8. Insert.
	track := &store.ScannedTrack{
		Tempo:    tempo,
		Duration: rec.Duration,
		Bitrate:  rec.Bitrate,
		Metadata: store.Metadata{
			Artist:  rec.Artist,
			Title:   rec.Title,
			Genre:   rec.Genre,
			Release: rec.Release,
			Year:    rec.Year,
		},
		Echoprint:   rec.Code,
		Chromaprint: chromaprint,
		Path:        path,
	}
	return p.insert(ctx, log, track)
}

// statFile checks the mode before opening: opening a FIFO blocks until a
// writer shows up.
func statFile(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", fi.Mode().Type())
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	f.Close()
	return fi.Size(), nil
}

func (p *Processor) timed(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.RecordAnalyzer(name, time.Since(start), err)
	return err
}

func (p *Processor) acceptTags(rec *analyzer.Record) (string, bool) {
	hasArtist, hasTitle := rec.Artist != nil, rec.Title != nil
	switch p.opts.TagPolicy {
	case TagPolicyArtistAndTitle:
		if !hasArtist || !hasTitle {
			return "artist and title are required", false
		}
	default:
		if hasTitle && !hasArtist {
			return "title without artist", false
		}
	}
	return "", true
}

// fillFromTags completes rec from embedded tags and audio properties.
func (p *Processor) fillFromTags(log *slog.Logger, path string, rec *analyzer.Record) {
	if rec.Artist == nil || rec.Title == nil || rec.Genre == nil || rec.Release == nil || rec.Year == nil {
		t, err := p.tags.Read(path)
		if err != nil {
			log.Debug("embedded tags unavailable", "error", err)
		} else {
			fillString(&rec.Artist, t.Artist)
			fillString(&rec.Title, t.Title)
			fillString(&rec.Genre, t.Genre)
			fillString(&rec.Release, t.Album)
			if y := t.Year(); rec.Year == nil && y > 0 {
				rec.Year = &y
			}
		}
	}

	if rec.Duration == 0 || rec.Bitrate == 0 {
		info, err := p.tags.ReadAudioInfo(path)
		if err != nil {
			log.Debug("audio properties unavailable", "error", err)
			return
		}
		if rec.Duration == 0 {
			rec.Duration = info.Duration.Seconds()
		}
		if rec.Bitrate == 0 {
			rec.Bitrate = info.Bitrate
		}
	}
}

func fillString(dst **string, v string) {
	if *dst == nil && v != "" {
		*dst = &v
	}
}

func (p *Processor) insert(ctx context.Context, log *slog.Logger, track *store.ScannedTrack) (Result, error) {
	err := p.insertOnce(ctx, track)
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		log.Warn("insert failed, retrying", "error", err)

		t := time.NewTimer(retryDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			o := OutcomeCancelled
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				o = OutcomeTimedOut
			}
			return Result{Path: track.Path, Outcome: o, Reason: fmt.Sprintf("insert not retried: %v", err)}, nil
		}
		err = p.insertOnce(ctx, track)
	}

	switch {
	case err == nil:
		return Result{Path: track.Path, Outcome: OutcomeStored, Record: track}, nil
	case errors.Is(err, store.ErrDuplicate):
		return Result{Path: track.Path, Outcome: OutcomeDuplicate, Reason: "stored concurrently"}, nil
	default:
		return p.storeFailure(ctx, track.Path, err)
	}
}

// insertOnce runs one insert attempt under its own deadline. The row is
// written even if the run is cancelled mid-statement.
func (p *Processor) insertOnce(ctx context.Context, track *store.ScannedTrack) error {
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.insertTimeout)
	defer cancel()
	_, err := p.store.Insert(ictx, track)
	return err
}

// storeFailure decides whether a store error is per-file or fatal to the run.
func (p *Processor) storeFailure(ctx context.Context, path string, err error) (Result, error) {
	res := Result{Path: path, Outcome: OutcomeFailed, Reason: err.Error()}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
	defer cancel()
	if pingErr := p.store.Ping(pctx); pingErr != nil {
		return res, fmt.Errorf("%w: %w", ErrStoreUnavailable, errors.Join(err, pingErr))
	}
	return res, nil
}
