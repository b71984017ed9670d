package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orthoinfer/internal/adapters/exports"
	blobcore "orthoinfer/internal/blob/core"
	"orthoinfer/internal/config"
	"orthoinfer/internal/homology"
	"orthoinfer/internal/inference"
	"orthoinfer/internal/logging"
	"orthoinfer/internal/source"
	"orthoinfer/pkg/domain"
)

// ReportKey is the blob key the per-species report lines of a release are
// appended to.
func ReportKey(release string) string {
	return "reports/" + release + ".txt"
}

// Service runs orthologous inference for every configured target species.
type Service struct {
	cfg         config.Config
	blobs       blobcore.Store
	log         logging.Logger
	metrics     MetricsRecorder
	exports     ExportScheduler
	openStore   StoreOpener
	runID       string
	concurrency int
	now         func() time.Time
}

// ExportScheduler receives the inference table of every finished species.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input exports.Input) (exports.Record, error)
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger; the default drops everything.
func WithLogger(log logging.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the recorder receiving per-species outcomes.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithExporter hands each finished species' inference records to sched.
func WithExporter(sched ExportScheduler) Option {
	return func(s *Service) { s.exports = sched }
}

// WithStoreOpener replaces the store selection derived from the
// configuration.
func WithStoreOpener(open StoreOpener) Option {
	return func(s *Service) {
		if open != nil {
			s.openStore = open
		}
	}
}

// WithRunID fixes the run identifier stamped on logs and reports.
func WithRunID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithLoadConcurrency bounds the goroutines loading homology tables.
func WithLoadConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

// WithClock overrides the clock used for durations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service reading its inputs from blobs.
func NewService(cfg config.Config, blobs blobcore.Store, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		blobs:     blobs,
		log:       logging.Noop(),
		metrics:   noopMetrics{},
		openStore: ConfiguredStore(cfg.Storage),
		runID:     uuid.NewString(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunID returns the identifier of the runs made by this service.
func (s *Service) RunID() string { return s.runID }

// SpeciesReport is the outcome for one target species. Err is set when the
// species was abandoned before translation.
type SpeciesReport struct {
	Target   string
	Ledger   *inference.Ledger
	Duration time.Duration
	Err      error
}

// RunReport collects the species outcomes in configuration order.
type RunReport struct {
	RunID   string
	Species []SpeciesReport
}

// Failed lists the species abandoned with a configuration error.
func (r RunReport) Failed() []string {
	var out []string
	for _, sp := range r.Species {
		if sp.Err != nil {
			out = append(out, sp.Target)
		}
	}
	return out
}

// Run loads the source snapshot, the skip list and the homology tables, then
// infers every target species in turn. Species whose inputs cannot be
// resolved are reported and skipped; only failures affecting every species
// or context cancellation return an error.
func (s *Service) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: s.runID}
	log := s.log.With(logging.String("run_id", s.runID))

	graph, err := source.LoadGraph(ctx, s.blobs, s.cfg.SnapshotKey)
	if err != nil {
		return report, fmt.Errorf("load snapshot: %w", err)
	}
	src, ok := graph.SpeciesByCode(s.cfg.SourceSpecies)
	if !ok {
		return report, fmt.Errorf("source species %q not in snapshot", s.cfg.SourceSpecies)
	}
	var skip source.SkipList
	if s.cfg.SkipListKey != "" {
		if skip, err = source.LoadSkipList(ctx, s.blobs, s.cfg.SkipListKey); err != nil {
			return report, fmt.Errorf("load skip list: %w", err)
		}
	}

	store, err := s.openStore(ctx, NewDefaultRulesEngine(graph))
	if err != nil {
		return report, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn(ctx, "close store", logging.Err(cerr))
		}
	}()

	loader := homology.NewLoader(s.blobs, log, s.concurrency)
	bundles, failures, err := loader.LoadAll(ctx, s.cfg.SourceSpecies, s.cfg.TargetSpecies)
	if err != nil {
		return report, fmt.Errorf("load homology: %w", err)
	}

	in := runInputs{
		graph:     graph,
		source:    src,
		skip:      inference.BuildSkipSet(graph, skip.Reactions, skip.Pathways),
		reactions: graph.ReactionsInSpecies(src.Name),
		roots:     graph.TopLevelPathways(src.Name),
		store:     store,
	}
	log.Info(ctx, "inference run started",
		logging.String("source", src.Name),
		logging.Int("reactions", len(in.reactions)),
		logging.Int("targets", len(s.cfg.TargetSpecies)))

	for _, code := range s.cfg.TargetSpecies {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		target, known := graph.SpeciesByCode(code)
		cerr := failures[code]
		if cerr == nil && !known {
			cerr = &homology.ConfigurationError{Species: code, Err: errors.New("species not in snapshot")}
		}
		if cerr != nil {
			log.Error(ctx, "species abandoned", logging.String("target", code), logging.Err(cerr))
			s.metrics.ConfigurationError(code)
			report.Species = append(report.Species, SpeciesReport{Target: code, Err: cerr})
			continue
		}
		sp, err := s.inferSpecies(ctx, log, in, target, bundles[code])
		if err != nil {
			return report, err
		}
		report.Species = append(report.Species, sp)
	}
	return report, nil
}

type runInputs struct {
	graph     *domain.Graph
	source    domain.Species
	skip      inference.SkipSet
	reactions []*domain.Reaction
	roots     []*domain.Pathway
	store     domain.PersistentStore
}

func (s *Service) inferSpecies(ctx context.Context, log logging.Logger, in runInputs, target domain.Species, bundle homology.Bundle) (SpeciesReport, error) {
	start := s.now()
	log = log.With(logging.String("target", target.Code))
	sess, err := inference.NewSession(inference.Config{
		Graph:    in.graph,
		Source:   in.source,
		Target:   target,
		Homology: bundle.Table,
		Genes:    bundle.Genes,
		Skip:     in.skip,
		Prior:    storePrior{ctx: ctx, store: in.store},
		Options: inference.Options{
			KeepAlternateNamesOnPhospho: s.cfg.KeepAlternateNamesOnPhospho,
		},
		Logger: log,
	})
	if err != nil {
		return SpeciesReport{}, fmt.Errorf("new session for %s: %w", target.Code, err)
	}

	err = sess.Run(ctx, in.reactions, func(res *inference.ReactionResult) error {
		return s.commitReaction(ctx, log, in.store, res)
	})
	if err != nil {
		return SpeciesReport{}, err
	}
	s.linkPreceding(ctx, log, in.store, sess.LinkPrecedingEvents())
	for _, pr := range sess.AssemblePathways(in.roots) {
		if err := s.commitPathway(ctx, log, in.store, pr); err != nil {
			log.Warn(ctx, "pathway commit rejected",
				logging.Int("pathway_id", int(pr.Source.DBID)), logging.Err(err))
		}
	}

	ledger := sess.Ledger()
	elapsed := s.now().Sub(start)
	for _, reason := range ledger.SkipReasons() {
		log.Debug(ctx, "skipped reactions",
			logging.String("reason", string(reason)), logging.Int("count", ledger.Skips[reason]))
	}
	log.Info(ctx, ledger.Report(),
		logging.Int("eligible", ledger.Eligible),
		logging.Int("inferred", ledger.Inferred),
		logging.Int("reused", ledger.Reused),
		logging.Int("pathways", ledger.Pathways),
		logging.Any("elapsed", elapsed))
	s.metrics.ObserveSpecies(target.Code, ledger, elapsed)
	if err := blobcore.AppendLine(ctx, s.blobs, ReportKey(s.cfg.Release), s.runID+"\t"+ledger.Report()); err != nil {
		log.Warn(ctx, "append report line", logging.Err(err))
	}
	s.scheduleExport(ctx, log, in.store, target)
	return SpeciesReport{Target: target.Code, Ledger: ledger, Duration: elapsed}, nil
}

func (s *Service) scheduleExport(ctx context.Context, log logging.Logger, store domain.PersistentStore, target domain.Species) {
	if s.exports == nil {
		return
	}
	var rows []domain.InferenceRecord
	if err := store.View(ctx, func(v domain.TransactionView) error {
		rows = v.ListInferences(target.Name)
		return nil
	}); err != nil {
		log.Warn(ctx, "read inferences for export", logging.Err(err))
		return
	}
	rec, err := s.exports.EnqueueExport(ctx, exports.Input{
		RunID:       s.runID,
		Release:     s.cfg.Release,
		Species:     target.Code,
		SpeciesName: target.Name,
		Rows:        rows,
	})
	if err != nil {
		log.Warn(ctx, "schedule export", logging.Err(err))
		return
	}
	log.Debug(ctx, "export scheduled", logging.String("export_id", rec.ID), logging.Int("rows", len(rows)))
}

// commitReaction stores a translated reaction together with the entities it
// needs that are not stored yet and its inference records.
func (s *Service) commitReaction(ctx context.Context, log logging.Logger, store domain.PersistentStore, res *inference.ReactionResult) error {
	result, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, e := range res.Entities {
			if err := tx.CreateEntity(e); err != nil {
				return fmt.Errorf("create entity %d: %w", e.Base().DBID, err)
			}
		}
		if err := tx.CreateReaction(res.Reaction); err != nil {
			return fmt.Errorf("create reaction %d: %w", res.Reaction.DBID, err)
		}
		for _, rec := range res.Inferences {
			if err := tx.RecordInference(rec); err != nil {
				return fmt.Errorf("record inference %d: %w", rec.Source, err)
			}
		}
		return nil
	})
	logWarnings(ctx, log, result)
	return err
}

func (s *Service) linkPreceding(ctx context.Context, log logging.Logger, store domain.PersistentStore, links []inference.PrecedingLink) {
	if len(links) == 0 {
		return
	}
	result, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, link := range links {
			_, err := tx.UpdateReaction(link.Target, func(r *domain.Reaction) error {
				for _, id := range link.Preceding {
					if !domain.ContainsID(r.PrecedingEvents, id) {
						r.PrecedingEvents = append(r.PrecedingEvents, id)
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("link preceding events of %d: %w", link.Target, err)
			}
		}
		return nil
	})
	logWarnings(ctx, log, result)
	if err != nil {
		log.Warn(ctx, "preceding event links rejected", logging.Err(err))
	}
}

func (s *Service) commitPathway(ctx context.Context, log logging.Logger, store domain.PersistentStore, pr *inference.PathwayResult) error {
	if pr.Reused && len(pr.Added) == 0 {
		return nil
	}
	result, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if pr.Reused {
			_, err := tx.UpdatePathway(pr.Pathway.DBID, func(p *domain.Pathway) error {
				for _, id := range pr.Added {
					if !domain.ContainsID(p.HasEvent, id) {
						p.HasEvent = append(p.HasEvent, id)
					}
				}
				return nil
			})
			return err
		}
		if err := tx.CreatePathway(pr.Pathway); err != nil {
			return fmt.Errorf("create pathway %d: %w", pr.Pathway.DBID, err)
		}
		for _, rec := range pr.Inferences {
			if err := tx.RecordInference(rec); err != nil {
				return fmt.Errorf("record inference %d: %w", rec.Source, err)
			}
		}
		return nil
	})
	logWarnings(ctx, log, result)
	return err
}

func logWarnings(ctx context.Context, log logging.Logger, res domain.Result) {
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		log.Warn(ctx, "rule violation",
			logging.String("rule", v.Rule),
			logging.String("severity", string(v.Severity)),
			logging.Int("record_id", int(v.EntityID)),
			logging.String("message", v.Message))
	}
}
