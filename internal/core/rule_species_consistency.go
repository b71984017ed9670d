package core

import (
	"context"
	"fmt"

	"orthoinfer/pkg/domain"
)

// NewSpeciesConsistencyRule blocks commits whose created records do not
// carry exactly one species, or whose records disagree on it.
func NewSpeciesConsistencyRule() domain.Rule {
	return speciesConsistencyRule{}
}

type speciesConsistencyRule struct{}

func (speciesConsistencyRule) Name() string { return "inferred_species_consistency" }

func (r speciesConsistencyRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	var committed string
	observe := func(entity domain.EntityType, id domain.DBID, species []string) {
		if len(species) != 1 {
			res.Violations = append(res.Violations, violation(r.Name(), domain.SeverityBlock, entity, id,
				fmt.Sprintf("%s %d carries %d species, want 1", entity, id, len(species))))
			return
		}
		if committed == "" {
			committed = species[0]
			return
		}
		if species[0] != committed {
			res.Violations = append(res.Violations, violation(r.Name(), domain.SeverityBlock, entity, id,
				fmt.Sprintf("%s %d is in %s while the commit targets %s", entity, id, species[0], committed)))
		}
	}

	for _, change := range changes {
		if change.Action != domain.ActionCreate {
			continue
		}
		switch after := change.After.(type) {
		case domain.PhysicalEntity:
			b := after.Base()
			observe(change.Entity, b.DBID, b.Species)
		case *domain.Reaction:
			observe(change.Entity, after.DBID, after.Species)
		case *domain.Pathway:
			observe(change.Entity, after.DBID, after.Species)
		}
	}
	for _, change := range changes {
		rec, ok := change.After.(domain.InferenceRecord)
		if !ok || committed == "" || rec.Species == committed {
			continue
		}
		res.Violations = append(res.Violations, violation(r.Name(), domain.SeverityBlock, domain.EntityInference, rec.Target,
			fmt.Sprintf("inference %d -> %d recorded for %s while the commit targets %s", rec.Source, rec.Target, rec.Species, committed)))
	}
	return res, nil
}
