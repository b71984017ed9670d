package inference

import (
	"context"

	"orthoinfer/internal/logging"
	"orthoinfer/pkg/domain"
)

// translateComplex handles complexes and polymers. In strict mode the node
// must meet the coverage threshold; children are then translated in
// override mode since the parent has been accepted.
func (s *Session) translateComplex(e domain.PhysicalEntity, children []domain.DBID, mode Mode) Result {
	if mode == ModeStrict {
		cov := s.counter.Count(e)
		if !cov.Meets(s.opts.Threshold) {
			s.log.Debug(context.Background(), "coverage below threshold",
				logging.Int("source_id", int(e.Base().DBID)),
				logging.Int("total", cov.Total), logging.Int("inferred", cov.Inferred))
			return Skipped(ReasonLowCoverage)
		}
	}
	translated := make([]domain.DBID, 0, len(children))
	for _, child := range children {
		r := s.TranslateID(child, ModeOverride)
		if !r.OK() {
			return Skipped(ReasonParticipantSkipped)
		}
		translated = append(translated, r.ID())
	}

	var out domain.PhysicalEntity
	switch n := e.(type) {
	case *domain.Complex:
		out = &domain.Complex{
			EntityBase: s.newBase(&n.EntityBase, domain.SummationEntity),
			Components: translated,
		}
	case *domain.Polymer:
		out = &domain.Polymer{
			EntityBase:    s.newBase(&n.EntityBase, domain.SummationEntity),
			RepeatedUnits: translated,
			MinUnits:      copyInt(n.MinUnits),
			MaxUnits:      copyInt(n.MaxUnits),
		}
	default:
		return Skipped(ReasonNotInferrable)
	}
	return Translated(s.intern(out, e.Base().DBID))
}
