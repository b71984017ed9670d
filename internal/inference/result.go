// Package inference projects curated reactions, pathways and the physical
// entities they involve from a source species into a target species using
// protein homology.
package inference

import "orthoinfer/pkg/domain"

// Mode controls whether a failed translation may fall back to a placeholder.
type Mode int

const (
	// ModeStrict reports a skip when a node cannot be translated.
	ModeStrict Mode = iota
	// ModeOverride is used for children of an already accepted parent; nodes
	// without homologs are replaced by placeholder entities.
	ModeOverride
)

func (m Mode) String() string {
	if m == ModeOverride {
		return "override"
	}
	return "strict"
}

// SkipReason names why a node or reaction was not inferred.
type SkipReason string

// Skip reasons, in rough order of the checks that produce them.
const (
	ReasonSkipList           SkipReason = "skip_list"
	ReasonChimeric           SkipReason = "chimeric"
	ReasonRelatedSpecies     SkipReason = "related_species"
	ReasonDisease            SkipReason = "disease"
	ReasonManuallyInferred   SkipReason = "manually_inferred"
	ReasonMixedSpecies       SkipReason = "mixed_species"
	ReasonNotInferrable      SkipReason = "not_inferrable"
	ReasonNoHomolog          SkipReason = "no_homolog"
	ReasonLowCoverage        SkipReason = "low_coverage"
	ReasonNoMembers          SkipReason = "no_members"
	ReasonMissingEntity      SkipReason = "missing_entity"
	ReasonCycle              SkipReason = "cycle"
	ReasonParticipantSkipped SkipReason = "participant_skipped"
	ReasonCommitBlocked      SkipReason = "commit_blocked"
)

// Outcome is the variant tag of a Result.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeTranslated
	OutcomeMocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTranslated:
		return "translated"
	case OutcomeMocked:
		return "mocked"
	default:
		return "skipped"
	}
}

// Result is the outcome of translating one physical entity. Entity is set
// for Translated and Mocked results, Reason for Skipped ones.
type Result struct {
	Outcome Outcome
	Entity  domain.PhysicalEntity
	Reason  SkipReason
}

// Translated wraps a successfully translated (or passed through) entity.
func Translated(e domain.PhysicalEntity) Result {
	return Result{Outcome: OutcomeTranslated, Entity: e}
}

// Mocked wraps a placeholder entity.
func Mocked(ghost domain.PhysicalEntity) Result {
	return Result{Outcome: OutcomeMocked, Entity: ghost}
}

// Skipped reports a node that could not be translated.
func Skipped(reason SkipReason) Result {
	return Result{Outcome: OutcomeSkipped, Reason: reason}
}

// OK reports whether the result carries an entity.
func (r Result) OK() bool { return r.Outcome != OutcomeSkipped }

// ID returns the identifier of the resulting entity, or 0 for skips.
func (r Result) ID() domain.DBID {
	if r.Entity == nil {
		return 0
	}
	return r.Entity.Base().DBID
}
