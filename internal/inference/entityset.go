package inference

import "orthoinfer/pkg/domain"

// translateSet translates members (and candidates) strictly, keeping the
// survivors. No survivor is a skip, one survivor replaces the set and more
// form a new set.
func (s *Session) translateSet(set *domain.EntitySet, mode Mode) Result {
	if set.SetKind == domain.SetOpen {
		out := &domain.EntitySet{
			EntityBase: s.newBase(&set.EntityBase, domain.SummationSet),
			SetKind:    domain.SetOpen,
		}
		if set.Reference != nil {
			out.Reference = s.sharedReference(set.Reference)
		}
		return Translated(s.intern(out, set.DBID))
	}

	if mode == ModeStrict {
		cov := s.counter.Count(set)
		if cov.Applicable() && cov.Inferred == 0 {
			return Skipped(ReasonNoMembers)
		}
	}

	found := make(map[domain.DBID]domain.PhysicalEntity)
	members := s.survivors(set.Members, nil, found)
	var candidates []domain.DBID
	if set.SetKind == domain.SetCandidate {
		candidates = s.survivors(set.Candidates, members, found)
	}

	switch len(found) {
	case 0:
		if mode == ModeOverride {
			return s.mock(set)
		}
		return Skipped(ReasonNoMembers)
	case 1:
		for _, e := range found {
			return Translated(e)
		}
	}

	out := &domain.EntitySet{
		EntityBase: s.newBase(&set.EntityBase, domain.SummationSet),
		SetKind:    set.SetKind,
		Members:    members,
		Candidates: candidates,
	}
	return Translated(s.intern(out, set.DBID))
}

// survivors translates ids strictly and returns the distinct resulting ids
// in order, excluding any listed in exclude. Every survivor is added to found.
func (s *Session) survivors(ids, exclude []domain.DBID, found map[domain.DBID]domain.PhysicalEntity) []domain.DBID {
	var out []domain.DBID
	for _, id := range ids {
		r := s.TranslateID(id, ModeStrict)
		if !r.OK() {
			continue
		}
		tid := r.ID()
		if domain.ContainsID(out, tid) || domain.ContainsID(exclude, tid) {
			continue
		}
		out = append(out, tid)
		found[tid] = r.Entity
	}
	return out
}

// sharedReference returns a single reference instance per identifier so
// open sets in the target species point at the same record.
func (s *Session) sharedReference(r *domain.Reference) *domain.Reference {
	key := r.Database + ":" + r.Identifier
	if existing, ok := s.refs[key]; ok {
		return existing
	}
	s.refs[key] = r
	return r
}
