// Package domain defines the pathway knowledge-base records, the physical
// entity sum type, and the rule evaluation primitives used by orthoinfer.
package domain

import (
	"sort"
	"strconv"
)

// DBID is the numeric database identifier of a knowledge-base record.
type DBID int64

func (id DBID) String() string { return strconv.FormatInt(int64(id), 10) }

// EntityType identifies the type of record stored in the inferred graph.
type EntityType string

// Supported record type identifiers used in Change records and persistence tables.
const (
	// EntityPhysical identifies a physical entity record (any variant).
	EntityPhysical EntityType = "physical_entity"
	// EntityReaction identifies a reaction-like event record.
	EntityReaction EntityType = "reaction"
	// EntityPathway identifies a pathway record.
	EntityPathway EntityType = "pathway"
	// EntityInference identifies a source-to-target inference link.
	EntityInference EntityType = "inference"
)

// EvidenceElectronic marks computationally inferred events.
const EvidenceElectronic = "inferred by electronic annotation"

// Summations attached to computationally inferred records.
const (
	SummationEvent  = "This event has been computationally inferred from an event that has been demonstrated in another species."
	SummationEntity = "This complex/polymer has been computationally inferred (based on Ensembl Compara) from a complex/polymer involved in an event that has been demonstrated in another species."
	SummationSet    = "This set has been computationally inferred from a set involved in an event that has been demonstrated in another species."
	SummationGhost  = "This entity has been computationally created as a placeholder for a species-specific entity without a known homologue."
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Species describes an organism known to the knowledge base.
type Species struct {
	Name string `json:"name"`
	// Code is the four letter prefix used by homology files ("hsap", "mmus").
	Code string `json:"code"`
	// Abbreviation is the three letter stable identifier infix ("HSA", "MMU").
	Abbreviation string `json:"abbreviation"`
}

// InferenceRecord links a source record to the record inferred from it in a
// target species. Mocked records point at placeholder entities.
type InferenceRecord struct {
	Source  DBID   `json:"source_id"`
	Species string `json:"species"`
	Target  DBID   `json:"target_id"`
	Kind    string `json:"kind"`
	Mocked  bool   `json:"mocked,omitempty"`
}

// Change describes a mutation applied to a record during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured in the commit log.
const (
	// ActionCreate indicates a record was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates a record was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID DBID
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}

// SortIDs sorts ids ascending in place and returns them.
func SortIDs(ids []DBID) []DBID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ContainsID reports whether id appears in ids.
func ContainsID(ids []DBID, id DBID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
