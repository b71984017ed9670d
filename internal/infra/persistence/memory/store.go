// Package memory provides an in-memory implementation of the inferred-graph
// store used for tests, ephemeral runs and as the working set of the SQL
// backed stores.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"orthoinfer/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// ErrNotFound is returned when an update names a record that does not exist.
var ErrNotFound = errors.New("record not found")

// CommitHook receives the changes of a transaction that passed rule
// evaluation. Returning an error aborts the commit.
type CommitHook func(ctx context.Context, changes []domain.Change) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs a hook invoked before staged changes are applied.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.hook = h }
}

type inferenceKey struct {
	source  domain.DBID
	species string
}

type memoryState struct {
	entities   map[domain.DBID]domain.PhysicalEntity
	reactions  map[domain.DBID]*domain.Reaction
	pathways   map[domain.DBID]*domain.Pathway
	inferences map[inferenceKey]domain.InferenceRecord
	maxID      domain.DBID
}

func newMemoryState() memoryState {
	return memoryState{
		entities:   make(map[domain.DBID]domain.PhysicalEntity),
		reactions:  make(map[domain.DBID]*domain.Reaction),
		pathways:   make(map[domain.DBID]*domain.Pathway),
		inferences: make(map[inferenceKey]domain.InferenceRecord),
	}
}

func (s *memoryState) bump(id domain.DBID) {
	if id > s.maxID {
		s.maxID = id
	}
}

// merge applies staged records on top of s.
func (s *memoryState) merge(staged *memoryState) {
	for id, e := range staged.entities {
		s.entities[id] = e
	}
	for id, r := range staged.reactions {
		s.reactions[id] = r
	}
	for id, p := range staged.pathways {
		s.pathways[id] = p
	}
	for k, rec := range staged.inferences {
		s.inferences[k] = rec
	}
	s.bump(staged.maxID)
}

// Snapshot captures a point-in-time copy of the store, ordered by id.
type Snapshot struct {
	Entities   []domain.PhysicalEntity
	Reactions  []*domain.Reaction
	Pathways   []*domain.Pathway
	Inferences []domain.InferenceRecord
}

// Store provides an in-memory transactional store for the inferred graph.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	hook   CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{state: newMemoryState(), engine: engine}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesEngine exposes the engine evaluated on every commit.
func (s *Store) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// ExportState clones the current store state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := newView(&s.state)
	var snap Snapshot
	for _, id := range sortedKeys(s.state.entities) {
		snap.Entities = append(snap.Entities, domain.CloneEntity(s.state.entities[id]))
	}
	snap.Reactions = v.ListReactions()
	snap.Pathways = v.ListPathways()
	snap.Inferences = v.allInferences()
	return snap
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snap Snapshot) {
	state := newMemoryState()
	for _, e := range snap.Entities {
		state.entities[e.Base().DBID] = domain.CloneEntity(e)
		state.bump(e.Base().DBID)
	}
	for _, r := range snap.Reactions {
		state.reactions[r.DBID] = domain.CloneReaction(r)
		state.bump(r.DBID)
	}
	for _, p := range snap.Pathways {
		state.pathways[p.DBID] = domain.ClonePathway(p)
		state.bump(p.DBID)
	}
	for _, rec := range snap.Inferences {
		state.inferences[inferenceKey{rec.Source, rec.Species}] = rec
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// RunInTransaction stages the mutations made by fn, evaluates the rules
// against the staged view and applies them when nothing blocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{base: &s.state, staged: newMemoryState()}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	view := tx.view()
	res, err := s.engine.Evaluate(ctx, view, tx.changes)
	if err != nil {
		return domain.Result{}, err
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}
	if s.hook != nil && len(tx.changes) > 0 {
		if err := s.hook(ctx, tx.changes); err != nil {
			return res, fmt.Errorf("commit hook: %w", err)
		}
	}
	s.state.merge(&tx.staged)
	return res, nil
}

// View executes fn against the committed state. Records handed out are
// copies; the view must not be retained after fn returns.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newView(&s.state))
}

// Close releases nothing for the in-memory store.
func (s *Store) Close() error { return nil }

func sortedKeys[V any](m map[domain.DBID]V) []domain.DBID {
	ids := make([]domain.DBID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return domain.SortIDs(ids)
}

// view reads through one or more layers; earlier layers win.
type view struct {
	layers []*memoryState
}

func newView(layers ...*memoryState) view { return view{layers: layers} }

func (v view) entity(id domain.DBID) (domain.PhysicalEntity, bool) {
	for _, l := range v.layers {
		if e, ok := l.entities[id]; ok {
			return e, true
		}
	}
	return nil, false
}

func (v view) reaction(id domain.DBID) (*domain.Reaction, bool) {
	for _, l := range v.layers {
		if r, ok := l.reactions[id]; ok {
			return r, true
		}
	}
	return nil, false
}

func (v view) pathway(id domain.DBID) (*domain.Pathway, bool) {
	for _, l := range v.layers {
		if p, ok := l.pathways[id]; ok {
			return p, true
		}
	}
	return nil, false
}

func (v view) has(id domain.DBID) bool {
	if _, ok := v.entity(id); ok {
		return true
	}
	if _, ok := v.reaction(id); ok {
		return true
	}
	_, ok := v.pathway(id)
	return ok
}

// FindEntity returns a copy of the entity with id.
func (v view) FindEntity(id domain.DBID) (domain.PhysicalEntity, bool) {
	e, ok := v.entity(id)
	if !ok {
		return nil, false
	}
	return domain.CloneEntity(e), true
}

// FindReaction returns a copy of the reaction with id.
func (v view) FindReaction(id domain.DBID) (*domain.Reaction, bool) {
	r, ok := v.reaction(id)
	if !ok {
		return nil, false
	}
	return domain.CloneReaction(r), true
}

// FindPathway returns a copy of the pathway with id.
func (v view) FindPathway(id domain.DBID) (*domain.Pathway, bool) {
	p, ok := v.pathway(id)
	if !ok {
		return nil, false
	}
	return domain.ClonePathway(p), true
}

// FindInferred returns the record inferred from source in species.
func (v view) FindInferred(source domain.DBID, species string) (domain.InferenceRecord, bool) {
	key := inferenceKey{source, species}
	for _, l := range v.layers {
		if rec, ok := l.inferences[key]; ok {
			return rec, true
		}
	}
	return domain.InferenceRecord{}, false
}

// ListInferences returns the inference records of species ordered by source.
func (v view) ListInferences(species string) []domain.InferenceRecord {
	var out []domain.InferenceRecord
	for _, rec := range v.allInferences() {
		if rec.Species == species {
			out = append(out, rec)
		}
	}
	return out
}

func (v view) allInferences() []domain.InferenceRecord {
	merged := make(map[inferenceKey]domain.InferenceRecord)
	for i := len(v.layers) - 1; i >= 0; i-- {
		for k, rec := range v.layers[i].inferences {
			merged[k] = rec
		}
	}
	out := make([]domain.InferenceRecord, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Species < out[j].Species
	})
	return out
}

// ListReactions returns copies of every reaction ordered by id.
func (v view) ListReactions() []*domain.Reaction {
	seen := make(map[domain.DBID]bool)
	var ids []domain.DBID
	for _, l := range v.layers {
		for id := range l.reactions {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	out := make([]*domain.Reaction, 0, len(ids))
	for _, id := range domain.SortIDs(ids) {
		r, _ := v.FindReaction(id)
		out = append(out, r)
	}
	return out
}

// ListPathways returns copies of every pathway ordered by id.
func (v view) ListPathways() []*domain.Pathway {
	seen := make(map[domain.DBID]bool)
	var ids []domain.DBID
	for _, l := range v.layers {
		for id := range l.pathways {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	out := make([]*domain.Pathway, 0, len(ids))
	for _, id := range domain.SortIDs(ids) {
		p, _ := v.FindPathway(id)
		out = append(out, p)
	}
	return out
}

// MaxID returns the largest id held.
func (v view) MaxID() domain.DBID {
	var top domain.DBID
	for _, l := range v.layers {
		if l.maxID > top {
			top = l.maxID
		}
	}
	return top
}

// transaction stages records on top of the committed state.
type transaction struct {
	base    *memoryState
	staged  memoryState
	changes []domain.Change
}

func (tx *transaction) view() view { return newView(&tx.staged, tx.base) }

func (tx *transaction) record(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView { return tx.view() }

func (tx *transaction) claim(id domain.DBID) error {
	if id <= 0 {
		return fmt.Errorf("invalid db id %d", id)
	}
	if tx.view().has(id) {
		return fmt.Errorf("db id %d already exists", id)
	}
	tx.staged.bump(id)
	return nil
}

// CreateEntity stores a new physical entity.
func (tx *transaction) CreateEntity(e domain.PhysicalEntity) error {
	if e == nil {
		return errors.New("nil entity")
	}
	if err := tx.claim(e.Base().DBID); err != nil {
		return fmt.Errorf("create entity: %w", err)
	}
	cp := domain.CloneEntity(e)
	tx.staged.entities[cp.Base().DBID] = cp
	tx.record(domain.Change{Entity: domain.EntityPhysical, Action: domain.ActionCreate, After: domain.CloneEntity(cp)})
	return nil
}

// CreateReaction stores a new reaction.
func (tx *transaction) CreateReaction(r *domain.Reaction) error {
	if r == nil {
		return errors.New("nil reaction")
	}
	if err := tx.claim(r.DBID); err != nil {
		return fmt.Errorf("create reaction: %w", err)
	}
	tx.staged.reactions[r.DBID] = domain.CloneReaction(r)
	tx.record(domain.Change{Entity: domain.EntityReaction, Action: domain.ActionCreate, After: domain.CloneReaction(r)})
	return nil
}

// UpdateReaction mutates a copy of the reaction with id.
func (tx *transaction) UpdateReaction(id domain.DBID, mutator func(*domain.Reaction) error) (*domain.Reaction, error) {
	current, ok := tx.view().reaction(id)
	if !ok {
		return nil, fmt.Errorf("reaction %d: %w", id, ErrNotFound)
	}
	before := domain.CloneReaction(current)
	next := domain.CloneReaction(current)
	if err := mutator(next); err != nil {
		return nil, err
	}
	next.DBID = id
	tx.staged.reactions[id] = next
	tx.record(domain.Change{Entity: domain.EntityReaction, Action: domain.ActionUpdate, Before: before, After: domain.CloneReaction(next)})
	return domain.CloneReaction(next), nil
}

// CreatePathway stores a new pathway.
func (tx *transaction) CreatePathway(p *domain.Pathway) error {
	if p == nil {
		return errors.New("nil pathway")
	}
	if err := tx.claim(p.DBID); err != nil {
		return fmt.Errorf("create pathway: %w", err)
	}
	tx.staged.pathways[p.DBID] = domain.ClonePathway(p)
	tx.record(domain.Change{Entity: domain.EntityPathway, Action: domain.ActionCreate, After: domain.ClonePathway(p)})
	return nil
}

// UpdatePathway mutates a copy of the pathway with id.
func (tx *transaction) UpdatePathway(id domain.DBID, mutator func(*domain.Pathway) error) (*domain.Pathway, error) {
	current, ok := tx.view().pathway(id)
	if !ok {
		return nil, fmt.Errorf("pathway %d: %w", id, ErrNotFound)
	}
	before := domain.ClonePathway(current)
	next := domain.ClonePathway(current)
	if err := mutator(next); err != nil {
		return nil, err
	}
	next.DBID = id
	tx.staged.pathways[id] = next
	tx.record(domain.Change{Entity: domain.EntityPathway, Action: domain.ActionUpdate, Before: before, After: domain.ClonePathway(next)})
	return domain.ClonePathway(next), nil
}

// RecordInference stores rec, replacing any record for the same source and
// species.
func (tx *transaction) RecordInference(rec domain.InferenceRecord) error {
	if rec.Source <= 0 || rec.Target <= 0 || rec.Species == "" {
		return fmt.Errorf("invalid inference record %d -> %d (%q)", rec.Source, rec.Target, rec.Species)
	}
	key := inferenceKey{rec.Source, rec.Species}
	action := domain.ActionCreate
	var before any
	if prev, ok := tx.view().FindInferred(rec.Source, rec.Species); ok {
		if prev == rec {
			return nil
		}
		action = domain.ActionUpdate
		before = prev
	}
	tx.staged.inferences[key] = rec
	tx.record(domain.Change{Entity: domain.EntityInference, Action: action, Before: before, After: rec})
	return nil
}
