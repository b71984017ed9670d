package inference

import (
	"orthoinfer/pkg/domain"
)

// PathwayResult is one inferred (or reused) pathway.
type PathwayResult struct {
	Source  *domain.Pathway
	Pathway *domain.Pathway
	// Reused marks a pathway stored by an earlier run; Added lists the
	// events this run appends to it.
	Reused     bool
	Added      []domain.DBID
	Inferences []domain.InferenceRecord
}

// AssemblePathways walks the hierarchy below roots top-down, visiting
// events in ascending id order, and returns one result per source pathway
// that contains at least one inferred reaction or inferred sub-pathway.
// Results are ordered children first so they can be committed in sequence;
// each new pathway keeps the event order of its source.
func (s *Session) AssemblePathways(roots []*domain.Pathway) []*PathwayResult {
	ordered := append([]*domain.Pathway(nil), roots...)
	sortPathways(ordered)
	var out []*PathwayResult
	for _, p := range ordered {
		s.assemble(p, &out)
	}
	return out
}

func sortPathways(ps []*domain.Pathway) {
	ids := make([]domain.DBID, len(ps))
	byID := make(map[domain.DBID]*domain.Pathway, len(ps))
	for i, p := range ps {
		ids[i] = p.DBID
		byID[p.DBID] = p
	}
	domain.SortIDs(ids)
	for i, id := range ids {
		ps[i] = byID[id]
	}
}

func (s *Session) assemble(p *domain.Pathway, out *[]*PathwayResult) (domain.DBID, bool) {
	if res, seen := s.pathways[p.DBID]; seen {
		if res == nil {
			return 0, false
		}
		return res.Pathway.DBID, true
	}
	s.pathways[p.DBID] = nil
	if len(p.Disease) > 0 {
		return 0, false
	}

	children := domain.SortIDs(append([]domain.DBID(nil), p.HasEvent...))
	targets := make(map[domain.DBID]domain.DBID, len(children))
	for _, child := range children {
		if sub, ok := s.graph.Pathway(child); ok {
			if tgt, ok := s.assemble(sub, out); ok {
				targets[child] = tgt
			}
			continue
		}
		if tgt, ok := s.inferredEvents[child]; ok {
			targets[child] = tgt
		}
	}

	var events []domain.DBID
	for _, child := range p.HasEvent {
		if tgt, ok := targets[child]; ok && !domain.ContainsID(events, tgt) {
			events = append(events, tgt)
		}
	}
	if len(events) == 0 {
		return 0, false
	}

	res := s.reusePathway(p, events)
	if res == nil {
		np := &domain.Pathway{
			EventBase: domain.EventBase{
				Name:         p.Name,
				Species:      []string{s.target.Name},
				Compartments: append([]string(nil), p.Compartments...),
				Summation:    domain.SummationEvent,
				EvidenceType: domain.EvidenceElectronic,
				InferredFrom: []domain.DBID{p.DBID},
			},
			HasEvent: events,
		}
		s.stampEvent(&np.EventBase)
		res = &PathwayResult{
			Source:  p,
			Pathway: np,
			Inferences: []domain.InferenceRecord{{
				Source:  p.DBID,
				Species: s.target.Name,
				Target:  np.DBID,
				Kind:    string(domain.EntityPathway),
			}},
		}
	}
	s.pathways[p.DBID] = res
	s.inferredEvents[p.DBID] = res.Pathway.DBID
	s.storedEvents[res.Pathway.DBID] = true
	s.ledger.Pathways++
	*out = append(*out, res)
	return res.Pathway.DBID, true
}

// reusePathway extends a pathway stored by an earlier run with events not
// yet listed.
func (s *Session) reusePathway(p *domain.Pathway, events []domain.DBID) *PathwayResult {
	rec, ok := s.prior.FindInferred(p.DBID, s.target.Name)
	if !ok || rec.Kind != string(domain.EntityPathway) {
		return nil
	}
	existing, ok := s.prior.FindPathway(rec.Target)
	if !ok {
		return nil
	}
	updated := domain.ClonePathway(existing)
	var added []domain.DBID
	for _, id := range events {
		if !domain.ContainsID(updated.HasEvent, id) {
			updated.HasEvent = append(updated.HasEvent, id)
			added = append(added, id)
		}
	}
	return &PathwayResult{Source: p, Pathway: updated, Reused: true, Added: added}
}
