package inference

import (
	"sort"
	"strconv"
	"strings"

	"orthoinfer/pkg/domain"
)

// signature renders the defining attributes of an entity. Two entities with
// the same signature are the same record.
func signature(e domain.PhysicalEntity) string {
	b := e.Base()
	var sb strings.Builder
	sb.WriteString(string(e.Kind()))
	sb.WriteByte('|')
	sb.WriteString(b.DisplayName())
	sb.WriteByte('|')
	sb.WriteString(strings.Join(sortedCopy(b.Species), ","))
	sb.WriteByte('|')
	sb.WriteString(strings.Join(sortedCopy(b.Compartments), ","))
	sb.WriteByte('|')
	switch n := e.(type) {
	case *domain.Protein:
		writeReference(&sb, n.Reference)
		writeInt(&sb, n.StartCoordinate)
		writeInt(&sb, n.EndCoordinate)
		for _, r := range n.ModifiedResidues {
			sb.WriteString(r.Name)
			sb.WriteByte('@')
			writeInt(&sb, r.Coordinate)
		}
	case *domain.SimpleEntity:
		writeReference(&sb, n.Reference)
	case *domain.Complex:
		writeIDs(&sb, n.Components, false)
	case *domain.Polymer:
		writeIDs(&sb, n.RepeatedUnits, false)
		writeInt(&sb, n.MinUnits)
		writeInt(&sb, n.MaxUnits)
	case *domain.EntitySet:
		writeReference(&sb, n.Reference)
		writeIDs(&sb, n.Members, true)
		sb.WriteByte('/')
		writeIDs(&sb, n.Candidates, true)
	}
	return sb.String()
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func writeReference(sb *strings.Builder, r *domain.Reference) {
	if r == nil {
		sb.WriteString("-|")
		return
	}
	sb.WriteString(r.Database)
	sb.WriteByte(':')
	sb.WriteString(r.Identifier)
	sb.WriteByte('|')
}

func writeInt(sb *strings.Builder, v *int) {
	if v == nil {
		sb.WriteString("_,")
		return
	}
	sb.WriteString(strconv.Itoa(*v))
	sb.WriteByte(',')
}

// writeIDs keeps order for stoichiometric lists and sorts unordered ones.
func writeIDs(sb *strings.Builder, ids []domain.DBID, unordered bool) {
	if unordered {
		ids = domain.SortIDs(append([]domain.DBID(nil), ids...))
	}
	for _, id := range ids {
		sb.WriteString(id.String())
		sb.WriteByte(',')
	}
}

// intern returns the existing record with e's signature or registers e as a
// new pending record with a fresh id. source is the node e was inferred from.
func (s *Session) intern(e domain.PhysicalEntity, source domain.DBID) domain.PhysicalEntity {
	sig := signature(e)
	if existing, ok := s.canon[sig]; ok {
		s.link(existing, source, false)
		return existing
	}
	s.stamp(e.Base())
	s.canon[sig] = e
	s.pending[e.Base().DBID] = e
	s.link(e, source, false)
	return e
}

// link records that target was inferred from source.
func (s *Session) link(target domain.PhysicalEntity, source domain.DBID, mocked bool) {
	if source == 0 {
		return
	}
	b := target.Base()
	if _, pending := s.pending[b.DBID]; pending && !domain.ContainsID(b.InferredFrom, source) {
		b.InferredFrom = append(b.InferredFrom, source)
	}
	key := linkKey{source: source, target: b.DBID}
	if s.linked[key] {
		return
	}
	s.linked[key] = true
	s.links[b.DBID] = append(s.links[b.DBID], domain.InferenceRecord{
		Source:  source,
		Species: s.target.Name,
		Target:  b.DBID,
		Kind:    string(domain.EntityPhysical),
		Mocked:  mocked,
	})
}

type linkKey struct {
	source, target domain.DBID
}

// seedCanonical registers records inferred into the target species by
// earlier runs so new nodes converge on them.
func (s *Session) seedCanonical() {
	for _, rec := range s.prior.ListInferences(s.target.Name) {
		if rec.Mocked || rec.Kind != string(domain.EntityPhysical) {
			continue
		}
		e, ok := s.prior.FindEntity(rec.Target)
		if !ok {
			continue
		}
		sig := signature(e)
		if _, dup := s.canon[sig]; !dup {
			s.canon[sig] = e
		}
	}
}

// reference returns the shared reference record for a target identifier.
func (s *Session) reference(db, identifier string) *domain.Reference {
	key := db + ":" + identifier
	if r, ok := s.refs[key]; ok {
		return r
	}
	genes := s.genes.Genes(identifier)
	r := &domain.Reference{
		Database:   db,
		Identifier: identifier,
		Genes:      append([]string(nil), genes...),
		GeneNames:  append([]string(nil), genes...),
		Species:    s.target.Name,
	}
	s.refs[key] = r
	return r
}

// linksFor collects the unsent inference records whose
// target is in entities or is already persisted.
func (s *Session) linksFor(entities []domain.PhysicalEntity) []domain.InferenceRecord {
	var out []domain.InferenceRecord
	included := make(map[domain.DBID]bool, len(entities))
	for _, e := range entities {
		included[e.Base().DBID] = true
	}
	targets := make([]domain.DBID, 0, len(s.links))
	for target := range s.links {
		if _, pending := s.pending[target]; !pending || included[target] {
			targets = append(targets, target)
		}
	}
	for _, target := range domain.SortIDs(targets) {
		out = append(out, s.links[target]...)
	}
	return out
}

// closure returns the pending records reachable from roots, children first.
func (s *Session) closure(roots []domain.DBID) []domain.PhysicalEntity {
	var out []domain.PhysicalEntity
	seen := make(map[domain.DBID]bool)
	var visit func(id domain.DBID)
	visit = func(id domain.DBID) {
		if seen[id] {
			return
		}
		seen[id] = true
		e, ok := s.pending[id]
		if !ok {
			return
		}
		for _, child := range domain.Children(e) {
			visit(child)
		}
		out = append(out, e)
	}
	for _, id := range roots {
		visit(id)
	}
	return out
}
