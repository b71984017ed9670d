// Package core wires the inference engine to its inputs and to the
// persistent store, and guards every commit with integrity rules.
package core

import (
	"orthoinfer/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
// References to records of the source graph are accepted as resolved.
func NewDefaultRulesEngine(graph *domain.Graph) *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewSpeciesConsistencyRule())
	engine.Register(NewReferenceIntegrityRule(graph))
	engine.Register(NewProvenanceRule())
	return engine
}

func violation(rule string, severity domain.Severity, entity domain.EntityType, id domain.DBID, message string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: severity,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}
