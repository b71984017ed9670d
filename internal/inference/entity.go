package inference

import (
	"context"

	"orthoinfer/internal/logging"
	"orthoinfer/pkg/domain"
)

// TranslateID translates the entity with the given source id.
func (s *Session) TranslateID(id domain.DBID, mode Mode) Result {
	e, ok := s.graph.Entity(id)
	if !ok {
		return Skipped(ReasonMissingEntity)
	}
	return s.Translate(e, mode)
}

// Translate converts a source entity into the target species. Translated
// results are memoized per source id, so the same source node always yields
// the same target instance within a session. A strict skip is re-evaluated
// when the node is requested again in override mode.
func (s *Session) Translate(e domain.PhysicalEntity, mode Mode) Result {
	id := e.Base().DBID
	if r, ok := s.memo[id]; ok && (r.OK() || mode == ModeStrict) {
		return r
	}
	if r, ok := s.fromPrior(id); ok {
		s.memo[id] = r
		return r
	}
	if s.inProgress[id] {
		return Skipped(ReasonCycle)
	}
	s.inProgress[id] = true
	r := s.dispatch(e, mode)
	delete(s.inProgress, id)

	switch {
	case r.Outcome == OutcomeTranslated:
		s.memo[id] = r
	case r.Outcome == OutcomeSkipped && mode == ModeStrict:
		s.memo[id] = r
		s.log.Debug(context.Background(), "entity skipped",
			logging.Int("source_id", int(id)), logging.String("reason", string(r.Reason)))
	}
	return r
}

func (s *Session) dispatch(e domain.PhysicalEntity, mode Mode) Result {
	if !s.graph.HasSpecies(e) {
		return Translated(e)
	}
	switch n := e.(type) {
	case *domain.SimpleEntity:
		return Translated(n)
	case *domain.Protein:
		return s.translateProtein(n, mode)
	case *domain.GenomeEncodedEntity:
		if mode == ModeOverride {
			return s.mock(n)
		}
		return Skipped(ReasonNotInferrable)
	case *domain.Complex:
		return s.translateComplex(n, n.Components, mode)
	case *domain.Polymer:
		return s.translateComplex(n, n.RepeatedUnits, mode)
	case *domain.EntitySet:
		return s.translateSet(n, mode)
	default:
		return Skipped(ReasonNotInferrable)
	}
}

// fromPrior reuses a non-placeholder entity stored by an earlier run.
func (s *Session) fromPrior(id domain.DBID) (Result, bool) {
	rec, ok := s.prior.FindInferred(id, s.target.Name)
	if !ok || rec.Mocked || rec.Kind != string(domain.EntityPhysical) {
		return Result{}, false
	}
	e, ok := s.prior.FindEntity(rec.Target)
	if !ok {
		return Result{}, false
	}
	return Translated(e), true
}

// mock returns the placeholder standing in for src in the target species,
// creating it on first use.
func (s *Session) mock(src domain.PhysicalEntity) Result {
	id := src.Base().DBID
	if ghost, ok := s.ghosts[id]; ok {
		return Mocked(ghost)
	}
	if rec, ok := s.prior.FindInferred(id, s.target.Name); ok && rec.Mocked {
		if ghost, ok := s.prior.FindEntity(rec.Target); ok {
			s.ghosts[id] = ghost
			return Mocked(ghost)
		}
	}
	base := src.Base()
	ghost := &domain.GenomeEncodedEntity{EntityBase: domain.EntityBase{
		Names:        []string{"Ghost homologue of " + base.DisplayName()},
		Species:      []string{s.target.Name},
		Compartments: append([]string(nil), base.Compartments...),
		Summation:    domain.SummationGhost,
	}}
	s.stamp(&ghost.EntityBase)
	s.ghosts[id] = ghost
	s.pending[ghost.DBID] = ghost
	s.link(ghost, id, true)
	return Mocked(ghost)
}

// newBase copies the descriptive attributes of src into a base for the
// target species.
func (s *Session) newBase(src *domain.EntityBase, summation string) domain.EntityBase {
	return domain.EntityBase{
		Names:        append([]string(nil), src.Names...),
		Species:      []string{s.target.Name},
		Compartments: append([]string(nil), src.Compartments...),
		Summation:    summation,
	}
}

func (s *Session) isPending(id domain.DBID) bool {
	_, ok := s.pending[id]
	return ok
}
