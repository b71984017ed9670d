package core

import (
	"context"
	"fmt"

	"orthoinfer/pkg/domain"
)

// NewReferenceIntegrityRule blocks commits that reference records neither
// stored nor present in graph. A nil graph only accepts stored records.
func NewReferenceIntegrityRule(graph *domain.Graph) domain.Rule {
	return referenceIntegrityRule{graph: graph}
}

type referenceIntegrityRule struct {
	graph *domain.Graph
}

func (referenceIntegrityRule) Name() string { return "inferred_reference_integrity" }

func (r referenceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	check := func(entity domain.EntityType, owner domain.DBID, role string, ids ...domain.DBID) {
		for _, id := range ids {
			if r.resolves(view, id) {
				continue
			}
			res.Violations = append(res.Violations, violation(r.Name(), domain.SeverityBlock, entity, owner,
				fmt.Sprintf("%s %d references missing %s %d", entity, owner, role, id)))
		}
	}

	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.PhysicalEntity:
			check(change.Entity, after.Base().DBID, "child", domain.Children(after)...)
		case *domain.Reaction:
			check(change.Entity, after.DBID, "input", after.Inputs...)
			check(change.Entity, after.DBID, "output", after.Outputs...)
			for _, ca := range after.CatalystActivities {
				check(change.Entity, after.DBID, "catalyst", ca.PhysicalEntity)
				check(change.Entity, after.DBID, "active unit", ca.ActiveUnits...)
			}
			for _, reg := range after.Regulations {
				check(change.Entity, after.DBID, "regulator", reg.Regulator)
			}
			check(change.Entity, after.DBID, "preceding event", after.PrecedingEvents...)
		case *domain.Pathway:
			check(change.Entity, after.DBID, "event", after.HasEvent...)
		case domain.InferenceRecord:
			if !r.stored(view, after.Target) {
				res.Violations = append(res.Violations, violation(r.Name(), domain.SeverityBlock, domain.EntityInference, after.Target,
					fmt.Sprintf("inference from %d points at unstored record %d", after.Source, after.Target)))
			}
		}
	}
	return res, nil
}

func (r referenceIntegrityRule) resolves(view domain.RuleView, id domain.DBID) bool {
	if r.stored(view, id) {
		return true
	}
	return r.graph != nil && r.graph.Has(id)
}

func (referenceIntegrityRule) stored(view domain.RuleView, id domain.DBID) bool {
	if _, ok := view.FindEntity(id); ok {
		return true
	}
	if _, ok := view.FindReaction(id); ok {
		return true
	}
	_, ok := view.FindPathway(id)
	return ok
}
