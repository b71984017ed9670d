package inference

import (
	"strings"

	"orthoinfer/internal/homology"
	"orthoinfer/pkg/domain"
)

// translateProtein builds one target protein per homolog. Several homologs
// are wrapped in a "Homologues of X" defined set.
func (s *Session) translateProtein(p *domain.Protein, mode Mode) Result {
	var homologs []homology.Homolog
	if p.Reference != nil {
		homologs = s.table.Lookup(p.Reference.Identifier)
	}
	if len(homologs) == 0 {
		if mode == ModeOverride {
			return s.mock(p)
		}
		return Skipped(ReasonNoHomolog)
	}

	if len(homologs) == 1 {
		return Translated(s.intern(s.buildProtein(p, homologs[0]), p.DBID))
	}

	// The set is the recorded counterpart of p; its members only carry
	// the back reference.
	proteins := make([]domain.PhysicalEntity, 0, len(homologs))
	for _, h := range homologs {
		member := s.intern(s.buildProtein(p, h), 0)
		if b := member.Base(); s.isPending(b.DBID) && !domain.ContainsID(b.InferredFrom, p.DBID) {
			b.InferredFrom = append(b.InferredFrom, p.DBID)
		}
		proteins = append(proteins, member)
	}

	set := &domain.EntitySet{
		EntityBase: domain.EntityBase{
			Names:        []string{"Homologues of " + p.DisplayName()},
			Species:      []string{s.target.Name},
			Compartments: append([]string(nil), p.Compartments...),
			Summation:    domain.SummationSet,
		},
		SetKind: domain.SetDefined,
	}
	for _, member := range proteins {
		if id := member.Base().DBID; !domain.ContainsID(set.Members, id) {
			set.Members = append(set.Members, id)
		}
	}
	return Translated(s.intern(set, p.DBID))
}

func (s *Session) buildProtein(src *domain.Protein, h homology.Homolog) *domain.Protein {
	ref := s.reference(h.Database, h.Identifier)
	out := &domain.Protein{
		EntityBase:      s.newBase(&src.EntityBase, ""),
		Reference:       ref,
		StartCoordinate: copyInt(src.StartCoordinate),
		EndCoordinate:   copyInt(src.EndCoordinate),
	}
	primary := h.Identifier
	if len(ref.GeneNames) > 0 {
		primary = ref.GeneNames[0]
	}
	out.Names = append([]string{primary}, src.Names...)

	var sourceIdent string
	if src.Reference != nil {
		sourceIdent = src.Reference.Identifier
	}
	phospho := false
	for _, residue := range src.ModifiedResidues {
		out.ModifiedResidues = append(out.ModifiedResidues, translateResidue(residue, sourceIdent, h.Identifier))
		if !phospho && strings.Contains(residue.Modification, "phospho") {
			out.Names = applyPhosphoNameRule(out.Names, s.opts.KeepAlternateNamesOnPhospho)
			phospho = true
		}
	}
	return out
}

// translateResidue re-points a modified residue at the target sequence.
func translateResidue(r domain.ModifiedResidue, sourceIdent, targetIdent string) domain.ModifiedResidue {
	out := r
	out.Coordinate = copyInt(r.Coordinate)
	out.ReferenceIdentifier = targetIdent
	if sourceIdent != "" {
		out.Name = strings.ReplaceAll(r.Name, sourceIdent, targetIdent)
	}
	return out
}

// applyPhosphoNameRule prefixes the primary name with "phospho-". Unless
// keepAlternates is set, the accumulated alternate names are dropped.
func applyPhosphoNameRule(names []string, keepAlternates bool) []string {
	if len(names) == 0 {
		return names
	}
	primary := "phospho-" + names[0]
	if !keepAlternates {
		return []string{primary}
	}
	out := append([]string{primary}, names[1:]...)
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
