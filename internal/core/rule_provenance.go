package core

import (
	"context"
	"fmt"

	"orthoinfer/pkg/domain"
)

// NewProvenanceRule warns about created events that do not name their
// source event or lack electronic evidence.
func NewProvenanceRule() domain.Rule {
	return provenanceRule{}
}

type provenanceRule struct{}

func (provenanceRule) Name() string { return "inferred_provenance" }

func (r provenanceRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Action != domain.ActionCreate {
			continue
		}
		var event *domain.EventBase
		switch after := change.After.(type) {
		case *domain.Reaction:
			event = &after.EventBase
		case *domain.Pathway:
			event = &after.EventBase
		default:
			continue
		}
		if len(event.InferredFrom) == 0 {
			res.Violations = append(res.Violations, violation(r.Name(), domain.SeverityWarn, change.Entity, event.DBID,
				fmt.Sprintf("%s %d does not name the event it was inferred from", change.Entity, event.DBID)))
		}
		if !event.Electronic() {
			res.Violations = append(res.Violations, violation(r.Name(), domain.SeverityWarn, change.Entity, event.DBID,
				fmt.Sprintf("%s %d lacks electronic evidence", change.Entity, event.DBID)))
		}
	}
	return res, nil
}
