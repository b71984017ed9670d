// Command orthoinfer projects curated reactions and pathways of a source
// species onto target species through protein homology and stores the
// inferred graph.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"orthoinfer/internal/adapters/exports"
	"orthoinfer/internal/blob"
	"orthoinfer/internal/config"
	"orthoinfer/internal/core"
	"orthoinfer/internal/logging"
	"orthoinfer/internal/observability"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type flags struct {
	envFile      string
	source       string
	targets      string
	snapshot     string
	skipList     string
	release      string
	storage      string
	sqlitePath   string
	blobDriver   string
	blobRoot     string
	metricsAddr  string
	runID        string
	logLevel     string
	logFormat    string
	keepAltNames bool
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("orthoinfer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f flags
	fs.StringVar(&f.envFile, "env", "", "env file to load before resolving ORTHOINFER_* settings")
	fs.StringVar(&f.source, "source", "", "source species code (hsap)")
	fs.StringVar(&f.targets, "targets", "", "comma separated target species codes")
	fs.StringVar(&f.snapshot, "snapshot", "", "blob key of the source graph snapshot")
	fs.StringVar(&f.skipList, "skiplist", "", "blob key of the skip list")
	fs.StringVar(&f.release, "release", "", "release name used for the report file")
	fs.StringVar(&f.storage, "storage", "", "persistent store driver: memory|sqlite|postgres")
	fs.StringVar(&f.sqlitePath, "sqlite", "", "sqlite database path")
	fs.StringVar(&f.blobDriver, "blob", "", "blob driver: fs|s3|memory")
	fs.StringVar(&f.blobRoot, "blob-root", "", "root directory of the fs blob driver")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics on this address while running")
	fs.StringVar(&f.runID, "run-id", "", "run identifier (generated when empty)")
	fs.StringVar(&f.logLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug|info|warn|error")
	fs.StringVar(&f.logFormat, "log-format", os.Getenv("LOG_FORMAT"), "text|json|pretty")
	fs.BoolVar(&f.keepAltNames, "keep-alt-names", false, "keep alternate protein names when the phospho prefix is applied")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var envFiles []string
	if f.envFile != "" {
		envFiles = append(envFiles, f.envFile)
	}
	cfg, err := config.Read(envFiles...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "orthoinfer: %v\n", err)
		return 1
	}
	applyFlags(&cfg, fs, f)
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "orthoinfer: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logging.New(logging.Config{Level: f.logLevel, Format: f.logFormat, Output: stderr})
	if err := run(ctx, cfg, f.runID, log, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "orthoinfer: %v\n", err)
		return 1
	}
	return 0
}

func applyFlags(cfg *config.Config, fs *flag.FlagSet, f flags) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.SourceSpecies, f.source)
	if f.targets != "" {
		cfg.TargetSpecies = config.SplitList(f.targets)
	}
	set(&cfg.SnapshotKey, f.snapshot)
	set(&cfg.SkipListKey, f.skipList)
	set(&cfg.Release, f.release)
	set(&cfg.Storage.Driver, f.storage)
	set(&cfg.Storage.SQLitePath, f.sqlitePath)
	set(&cfg.Blob.Driver, f.blobDriver)
	set(&cfg.Blob.FSRoot, f.blobRoot)
	set(&cfg.MetricsAddr, f.metricsAddr)
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "keep-alt-names" {
			cfg.KeepAlternateNamesOnPhospho = f.keepAltNames
		}
	})
}

func run(ctx context.Context, cfg config.Config, runID string, log logging.Logger, stdout io.Writer) error {
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	reg := prometheus.NewRegistry()
	collector, err := observability.NewRunCollector(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(ctx, cfg.MetricsAddr, collector.Handler(), log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	worker := exports.NewWorker(blobs, log)
	worker.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := worker.Stop(sctx); err != nil {
			log.Warn(ctx, "exports abandoned", logging.Err(err))
		}
	}()

	svc := core.NewService(cfg, blobs,
		core.WithLogger(log),
		core.WithMetrics(collector),
		core.WithExporter(worker),
		core.WithRunID(runID))
	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	for _, sp := range report.Species {
		if sp.Err != nil {
			_, _ = fmt.Fprintf(stdout, "%s: not inferred: %v\n", sp.Target, sp.Err)
			continue
		}
		_, _ = fmt.Fprintln(stdout, sp.Ledger.Report())
	}
	if failed := report.Failed(); len(failed) == len(report.Species) {
		return errors.New("no target species could be inferred")
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, log logging.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "metrics server", logging.Err(err))
		}
	}()
	log.Info(ctx, "serving metrics", logging.String("addr", ln.Addr().String()))
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}, nil
}
