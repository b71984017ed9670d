package inference

import (
	"fmt"
	"sort"

	"orthoinfer/internal/homology"
	"orthoinfer/pkg/domain"
)

// SkipSet holds event ids excluded from inference.
type SkipSet map[domain.DBID]struct{}

// BuildSkipSet combines explicitly listed reactions with every event
// transitively contained in the excluded pathways.
func BuildSkipSet(g *domain.Graph, reactions, pathways []domain.DBID) SkipSet {
	set := make(SkipSet, len(reactions))
	for _, id := range reactions {
		set[id] = struct{}{}
	}
	for _, id := range pathways {
		set[id] = struct{}{}
		for child := range g.Descendants(id) {
			set[child] = struct{}{}
		}
	}
	return set
}

// Contains reports whether id is excluded.
func (s SkipSet) Contains(id domain.DBID) bool {
	_, ok := s[id]
	return ok
}

// Eligibility is the classifier verdict for one reaction.
type Eligibility struct {
	Eligible bool
	Reason   SkipReason
	Detail   string
	// Integrity marks verdicts caused by inconsistent source data.
	Integrity bool
}

// Classifier decides whether inference should be attempted for a reaction.
// It has no side effects.
type Classifier struct {
	graph     *domain.Graph
	table     *homology.Table
	counter   *Counter
	skip      SkipSet
	target    string
	threshold int
}

// NewClassifier returns a classifier for the named target species.
func NewClassifier(g *domain.Graph, table *homology.Table, counter *Counter, skip SkipSet, target string, threshold int) *Classifier {
	if counter == nil {
		counter = NewCounter(g, table)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{graph: g, table: table, counter: counter, skip: skip, target: target, threshold: threshold}
}

type check struct {
	reason SkipReason
	fn     func(*Classifier, *domain.Reaction) (bool, string)
}

// checks run in order; the first failing check decides.
var checks = []check{
	{ReasonSkipList, (*Classifier).inSkipList},
	{ReasonChimeric, func(_ *Classifier, r *domain.Reaction) (bool, string) { return r.IsChimeric, "" }},
	{ReasonRelatedSpecies, func(_ *Classifier, r *domain.Reaction) (bool, string) {
		return len(r.RelatedSpecies) > 0, fmt.Sprint(r.RelatedSpecies)
	}},
	{ReasonDisease, func(_ *Classifier, r *domain.Reaction) (bool, string) {
		return len(r.Disease) > 0, fmt.Sprint(r.Disease)
	}},
	{ReasonManuallyInferred, (*Classifier).manuallyInferred},
	{ReasonMixedSpecies, (*Classifier).mixedSpecies},
	{ReasonNotInferrable, (*Classifier).notInferrable},
}

// Classify returns Eligible or the first skip reason that applies.
func (c *Classifier) Classify(r *domain.Reaction) Eligibility {
	for _, ck := range checks {
		if failed, detail := ck.fn(c, r); failed {
			return Eligibility{Reason: ck.reason, Detail: detail, Integrity: ck.reason == ReasonMixedSpecies}
		}
	}
	return Eligibility{Eligible: true}
}

func (c *Classifier) inSkipList(r *domain.Reaction) (bool, string) {
	return c.skip.Contains(r.DBID), ""
}

func (c *Classifier) manuallyInferred(r *domain.Reaction) (bool, string) {
	if r.ManuallyInferred {
		return true, "flagged"
	}
	for _, id := range r.InferredTo {
		ev, ok := c.graph.Event(id)
		if ok && ev.InSpecies(c.target) && !ev.Electronic() {
			return true, fmt.Sprintf("curated counterpart %d", id)
		}
	}
	return false, ""
}

// participants returns every entity id in an input, output, catalyst or
// regulator role.
func participants(r *domain.Reaction) []domain.DBID {
	ids := make([]domain.DBID, 0, len(r.Inputs)+len(r.Outputs)+len(r.CatalystActivities)+len(r.Regulations))
	ids = append(ids, r.Inputs...)
	ids = append(ids, r.Outputs...)
	for _, ca := range r.CatalystActivities {
		ids = append(ids, ca.PhysicalEntity)
	}
	for _, reg := range r.Regulations {
		if reg.RegulatorIsEntity {
			ids = append(ids, reg.Regulator)
		}
	}
	return ids
}

func (c *Classifier) mixedSpecies(r *domain.Reaction) (bool, string) {
	species := make(map[string]struct{})
	for _, id := range participants(r) {
		if e, ok := c.graph.Entity(id); ok {
			c.graph.CollectSpecies(e, species)
		}
	}
	if len(species) <= 1 {
		return false, ""
	}
	names := make([]string, 0, len(species))
	for s := range species {
		names = append(names, s)
	}
	sort.Strings(names)
	return true, fmt.Sprint(names)
}

func (c *Classifier) notInferrable(r *domain.Reaction) (bool, string) {
	for _, id := range participants(r) {
		e, ok := c.graph.Entity(id)
		if !ok {
			return true, fmt.Sprintf("entity %d missing from snapshot", id)
		}
		if !c.Inferrable(e) {
			return true, fmt.Sprintf("entity %d (%s)", id, e.Kind())
		}
	}
	return false, ""
}

// Inferrable reports whether e could be translated without placeholders.
func (c *Classifier) Inferrable(e domain.PhysicalEntity) bool {
	if !c.graph.HasSpecies(e) {
		return true
	}
	switch n := e.(type) {
	case *domain.SimpleEntity:
		return true
	case *domain.Protein:
		return n.Reference != nil && c.table.Has(n.Reference.Identifier)
	case *domain.GenomeEncodedEntity:
		return false
	case *domain.Complex, *domain.Polymer:
		return c.counter.Count(e).Meets(c.threshold)
	case *domain.EntitySet:
		if n.SetKind == domain.SetOpen {
			return true
		}
		cov := c.counter.Count(e)
		return !cov.Applicable() || cov.Inferred > 0
	default:
		return false
	}
}
