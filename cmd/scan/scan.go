package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/llehouerou/bpmdata/internal/analyzer"
	"github.com/llehouerou/bpmdata/internal/app"
	"github.com/llehouerou/bpmdata/internal/errmsg"
	"github.com/llehouerou/bpmdata/internal/metrics"
	"github.com/llehouerou/bpmdata/internal/scan"
)

type options struct {
	path          string
	workers       int
	solo          bool
	timeout       int
	metricsListen string
}

// Command scans a directory tree and stores one record per new audio file.
func Command(actx *app.Context) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Analyze every audio file under a directory",
		Long: "Walks the directory given by --path, runs the fingerprint, tag and tempo\n" +
			"analyzers on each audio file and stores one record per file not seen before.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, actx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.path, "path", "p", "", "Root directory to scan")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Number of concurrent workers (default: one per CPU)")
	flags.BoolVarP(&opts.solo, "solo", "s", false, "Process files one at a time without a worker pool")
	flags.IntVar(&opts.timeout, "timeout", 0, "Per-file timeout in seconds, 0 disables")
	flags.BoolVar(&actx.Progress, "progress", false, "Show a progress bar; console logging is limited to warnings")
	flags.StringVar(&opts.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address during the scan")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func run(cmd *cobra.Command, actx *app.Context, opts options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := actx.Logger()
	cfg := actx.Config.GetScanConfig()
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = max(opts.workers, 1)
	}
	if flags.Changed("solo") {
		cfg.Solo = opts.solo
	}
	if flags.Changed("timeout") {
		timeout := max(opts.timeout, 0)
		cfg.FileTimeoutSeconds = &timeout
	}
	listen := opts.metricsListen
	if listen == "" {
		listen = actx.Config.Metrics.Listen
	}

	root, err := scan.ResolveRoot(opts.path)
	if err != nil {
		return errmsg.Error(errmsg.OpScanResolve, err)
	}

	s, err := actx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := metrics.New()
	if err != nil {
		return errmsg.Error(errmsg.OpMetricsServe, err)
	}
	if listen != "" {
		stopMetrics, err := serveMetrics(listen, m.Handler(), logger)
		if err != nil {
			return errmsg.Error(errmsg.OpMetricsServe, err)
		}
		defer stopMetrics()
	}

	bins := actx.Config.GetAnalyzersConfig()
	processor := scan.NewProcessor(scan.ProcessorConfig{
		Codegen:     analyzer.Codegen{Binary: bins.Echoprint},
		Fingerprint: analyzer.Fpcalc{Binary: bins.Fpcalc},
		Tempo:       analyzer.Tempo{Sox: bins.Sox, BPM: bins.BPM, SampleRate: bins.SampleRate},
		Store:       s,
		Options: scan.Options{
			MaxFileSize:  cfg.MaxFileSize,
			MaxDuration:  cfg.MaxDurationSeconds,
			FileTimeout:  cfg.FileTimeout(),
			TagPolicy:    cfg.TagPolicy,
			RequireTempo: cfg.RequireTempo,
			TagFallback:  cfg.TagFallback,
		},
		Logger:  logger,
		Metrics: m,
	})
	scanner := scan.NewScanner(scan.ScannerConfig{
		Processor:  processor,
		Workers:    cfg.Workers,
		Solo:       cfg.Solo,
		Extensions: cfg.Extensions,
		Logger:     logger,
		Metrics:    m,
	})

	var (
		progress chan scan.Progress
		barDone  <-chan struct{}
	)
	if actx.Progress {
		progress = make(chan scan.Progress, 16)
		barDone = renderProgress(cmd.ErrOrStderr(), progress)
	}

	summary, err := scanner.Run(ctx, root, progress)
	if barDone != nil {
		<-barDone
	}
	if summary != nil {
		fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("scan interrupted", "root", root)
		}
		return errmsg.Error(errmsg.OpScan, err)
	}
	return nil
}
