package inference

import (
	"context"
	"errors"

	"orthoinfer/internal/homology"
	"orthoinfer/internal/logging"
	"orthoinfer/pkg/domain"
)

// Prior exposes what earlier runs stored for the target species.
// domain.TransactionView satisfies it.
type Prior interface {
	domain.RuleView
	FindInferred(source domain.DBID, species string) (domain.InferenceRecord, bool)
	ListInferences(species string) []domain.InferenceRecord
	MaxID() domain.DBID
}

// Options tune translation behaviour.
type Options struct {
	// Threshold is the minimum protein coverage percentage for complexes and
	// polymers. Zero means DefaultThreshold.
	Threshold int
	// KeepAlternateNamesOnPhospho keeps a protein's alternate names when the
	// phospho prefix is applied instead of resetting them.
	KeepAlternateNamesOnPhospho bool
}

// Config wires a Session.
type Config struct {
	Graph    *domain.Graph
	Source   domain.Species
	Target   domain.Species
	Homology *homology.Table
	Genes    *homology.GeneTable
	Skip     SkipSet
	Prior    Prior
	Options  Options
	Logger   logging.Logger
}

// Session owns every per-run cache for one target species. It is not safe
// for concurrent use.
type Session struct {
	graph      *domain.Graph
	source     domain.Species
	target     domain.Species
	table      *homology.Table
	genes      *homology.GeneTable
	counter    *Counter
	classifier *Classifier
	prior      Prior
	opts       Options
	log        logging.Logger
	ids        *IDAllocator
	ledger     *Ledger

	memo       map[domain.DBID]Result
	ghosts     map[domain.DBID]domain.PhysicalEntity
	inProgress map[domain.DBID]bool
	canon      map[string]domain.PhysicalEntity
	refs       map[string]*domain.Reference
	pending    map[domain.DBID]domain.PhysicalEntity
	links      map[domain.DBID][]domain.InferenceRecord
	linked     map[linkKey]bool

	reactions      map[domain.DBID]*ReactionResult
	inferredEvents map[domain.DBID]domain.DBID
	storedEvents   map[domain.DBID]bool
	pathways       map[domain.DBID]*PathwayResult
}

// NewSession validates cfg and prepares the caches.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Graph == nil {
		return nil, errors.New("inference: graph required")
	}
	if cfg.Homology == nil {
		return nil, errors.New("inference: homology table required")
	}
	if cfg.Target.Name == "" || cfg.Target.Abbreviation == "" {
		return nil, errors.New("inference: target species requires name and abbreviation")
	}
	if cfg.Options.Threshold <= 0 {
		cfg.Options.Threshold = DefaultThreshold
	}
	if cfg.Prior == nil {
		cfg.Prior = emptyPrior{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if cfg.Genes == nil {
		cfg.Genes = homology.NewGeneTable(cfg.Target.Code, nil)
	}
	counter := NewCounter(cfg.Graph, cfg.Homology)
	s := &Session{
		graph:      cfg.Graph,
		source:     cfg.Source,
		target:     cfg.Target,
		table:      cfg.Homology,
		genes:      cfg.Genes,
		counter:    counter,
		classifier: NewClassifier(cfg.Graph, cfg.Homology, counter, cfg.Skip, cfg.Target.Name, cfg.Options.Threshold),
		prior:      cfg.Prior,
		opts:       cfg.Options,
		log:        cfg.Logger.With(logging.String("target", cfg.Target.Code)),
		ids:        NewIDAllocator(cfg.Graph.MaxID(), cfg.Prior.MaxID()),
		ledger:     NewLedger(cfg.Source.Name, cfg.Target.Name),

		memo:       make(map[domain.DBID]Result),
		ghosts:     make(map[domain.DBID]domain.PhysicalEntity),
		inProgress: make(map[domain.DBID]bool),
		canon:      make(map[string]domain.PhysicalEntity),
		refs:       make(map[string]*domain.Reference),
		pending:    make(map[domain.DBID]domain.PhysicalEntity),
		links:      make(map[domain.DBID][]domain.InferenceRecord),
		linked:     make(map[linkKey]bool),

		reactions:      make(map[domain.DBID]*ReactionResult),
		inferredEvents: make(map[domain.DBID]domain.DBID),
		storedEvents:   make(map[domain.DBID]bool),
		pathways:       make(map[domain.DBID]*PathwayResult),
	}
	s.seedCanonical()
	return s, nil
}

// Target returns the species this session infers into.
func (s *Session) Target() domain.Species { return s.target }

// Ledger returns the run counters.
func (s *Session) Ledger() *Ledger { return s.ledger }

// Classifier returns the eligibility classifier bound to this session.
func (s *Session) Classifier() *Classifier { return s.classifier }

// Coverage returns the protein coverage of e.
func (s *Session) Coverage(e domain.PhysicalEntity) Coverage { return s.counter.Count(e) }

// Pending returns the number of created records not yet committed.
func (s *Session) Pending() int { return len(s.pending) }

// InferredEvent returns the target event inferred from a source event in
// this run or reused from an earlier one.
func (s *Session) InferredEvent(source domain.DBID) (domain.DBID, bool) {
	id, ok := s.inferredEvents[source]
	return id, ok
}

// Run classifies and translates reactions in ascending id order, handing
// every translated reaction to commit before moving on. A commit error
// rejects that reaction only; context cancellation stops the loop.
func (s *Session) Run(ctx context.Context, reactions []*domain.Reaction, commit func(*ReactionResult) error) error {
	ordered := append([]*domain.Reaction(nil), reactions...)
	sortReactions(ordered)
	for _, r := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := s.TranslateReaction(r)
		if res.Skipped() {
			continue
		}
		if res.Reused {
			s.Confirm(res)
			continue
		}
		if err := commit(res); err != nil {
			s.Reject(res, err)
			continue
		}
		s.Confirm(res)
	}
	return nil
}

type emptyPrior struct{}

func (emptyPrior) FindEntity(domain.DBID) (domain.PhysicalEntity, bool) { return nil, false }
func (emptyPrior) FindReaction(domain.DBID) (*domain.Reaction, bool)    { return nil, false }
func (emptyPrior) FindPathway(domain.DBID) (*domain.Pathway, bool)      { return nil, false }
func (emptyPrior) FindInferred(domain.DBID, string) (domain.InferenceRecord, bool) {
	return domain.InferenceRecord{}, false
}
func (emptyPrior) ListInferences(string) []domain.InferenceRecord { return nil }
func (emptyPrior) MaxID() domain.DBID                             { return 0 }
