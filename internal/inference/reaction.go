package inference

import (
	"context"
	"fmt"
	"sort"

	"orthoinfer/internal/logging"
	"orthoinfer/pkg/domain"
)

// Role names the structural position an entity occupies in a reaction.
type Role string

// Reaction roles.
const (
	RoleInput      Role = "input"
	RoleOutput     Role = "output"
	RoleCatalyst   Role = "catalyst"
	RoleActiveUnit Role = "active_unit"
	RoleRegulator  Role = "regulator"
)

// ReactionResult is the outcome of translating one source reaction.
type ReactionResult struct {
	Source *domain.Reaction
	// Reaction is the new or reused target reaction; nil when skipped.
	Reaction *domain.Reaction
	// Reused marks a counterpart produced by an earlier run.
	Reused bool
	// FromSnapshot marks a reused counterpart that lives in the source
	// snapshot rather than in the inferred store.
	FromSnapshot bool
	Reason SkipReason
	Detail string
	// Entities are the created records the reaction needs that have not
	// been committed yet, children before parents.
	Entities []domain.PhysicalEntity
	// Inferences link the source records to the created ones.
	Inferences []domain.InferenceRecord
}

// Skipped reports whether no target reaction was produced.
func (r *ReactionResult) Skipped() bool { return r.Reaction == nil }

func sortReactions(rs []*domain.Reaction) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].DBID < rs[j].DBID })
}

// TranslateReaction classifies r and, when eligible, translates every
// participant strictly. A single skipped participant skips the reaction.
// Calling it twice for the same reaction returns the first result.
func (s *Session) TranslateReaction(r *domain.Reaction) *ReactionResult {
	if res, ok := s.reactions[r.DBID]; ok {
		return res
	}
	res := s.translateReaction(r)
	s.reactions[r.DBID] = res
	return res
}

func (s *Session) translateReaction(r *domain.Reaction) *ReactionResult {
	ctx := context.Background()
	verdict := s.classifier.Classify(r)
	if !verdict.Eligible {
		s.ledger.Skip(verdict.Reason)
		fields := []logging.Field{
			logging.Int("reaction_id", int(r.DBID)),
			logging.String("reason", string(verdict.Reason)),
			logging.String("detail", verdict.Detail),
		}
		if verdict.Integrity {
			s.log.Warn(ctx, "inconsistent species in reaction", fields...)
		} else {
			s.log.Debug(ctx, "reaction not eligible", fields...)
		}
		return &ReactionResult{Source: r, Reason: verdict.Reason, Detail: verdict.Detail}
	}
	s.ledger.Eligible++

	if prior, fromSnapshot, ok := s.priorReaction(r); ok {
		return &ReactionResult{Source: r, Reaction: prior, Reused: true, FromSnapshot: fromSnapshot}
	}

	out := &domain.Reaction{
		EventBase: domain.EventBase{
			Name:         r.Name,
			Species:      []string{s.target.Name},
			Compartments: append([]string(nil), r.Compartments...),
			Summation:    domain.SummationEvent,
			EvidenceType: domain.EvidenceElectronic,
			InferredFrom: []domain.DBID{r.DBID},
		},
		Category: r.Category,
	}
	var err error
	if out.Inputs, err = s.translateRole(RoleInput, r.Inputs); err != nil {
		return s.skipReaction(r, err)
	}
	if out.Outputs, err = s.translateRole(RoleOutput, r.Outputs); err != nil {
		return s.skipReaction(r, err)
	}
	for _, ca := range r.CatalystActivities {
		pe, err := s.translateRole(RoleCatalyst, []domain.DBID{ca.PhysicalEntity})
		if err != nil {
			return s.skipReaction(r, err)
		}
		units, err := s.translateRole(RoleActiveUnit, ca.ActiveUnits)
		if err != nil {
			return s.skipReaction(r, err)
		}
		out.CatalystActivities = append(out.CatalystActivities, domain.CatalystActivity{
			PhysicalEntity: pe[0],
			Activity:       ca.Activity,
			ActiveUnits:    units,
		})
	}
	for _, reg := range r.Regulations {
		if !reg.RegulatorIsEntity {
			out.Regulations = append(out.Regulations, reg)
			continue
		}
		ids, err := s.translateRole(RoleRegulator, []domain.DBID{reg.Regulator})
		if err != nil {
			return s.skipReaction(r, err)
		}
		out.Regulations = append(out.Regulations, domain.Regulation{Kind: reg.Kind, Regulator: ids[0], RegulatorIsEntity: true})
	}

	s.stampEvent(&out.EventBase)
	roots := participants(out)
	for _, ca := range out.CatalystActivities {
		roots = append(roots, ca.ActiveUnits...)
	}
	entities := s.closure(roots)
	inferences := s.linksFor(entities)
	inferences = append(inferences, domain.InferenceRecord{
		Source:  r.DBID,
		Species: s.target.Name,
		Target:  out.DBID,
		Kind:    string(domain.EntityReaction),
	})
	return &ReactionResult{Source: r, Reaction: out, Entities: entities, Inferences: inferences}
}

// roleError carries the role and reason of a failed participant.
type roleError struct {
	role   Role
	id     domain.DBID
	reason SkipReason
}

func (e *roleError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.role, e.id, e.reason)
}

// translateRole translates the entities filling one role, in order.
func (s *Session) translateRole(role Role, ids []domain.DBID) ([]domain.DBID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]domain.DBID, 0, len(ids))
	for _, id := range ids {
		r := s.TranslateID(id, ModeStrict)
		if !r.OK() {
			return nil, &roleError{role: role, id: id, reason: r.Reason}
		}
		out = append(out, r.ID())
	}
	return out, nil
}

func (s *Session) skipReaction(r *domain.Reaction, err error) *ReactionResult {
	s.ledger.Skip(ReasonParticipantSkipped)
	s.log.Debug(context.Background(), "reaction participant not translated",
		logging.Int("reaction_id", int(r.DBID)), logging.Err(err))
	return &ReactionResult{Source: r, Reason: ReasonParticipantSkipped, Detail: err.Error()}
}

// priorReaction finds a usable counterpart from an earlier run, first in the
// store and then among electronic inferences already in the snapshot.
func (s *Session) priorReaction(r *domain.Reaction) (rxn *domain.Reaction, fromSnapshot, ok bool) {
	if rec, found := s.prior.FindInferred(r.DBID, s.target.Name); found && rec.Kind == string(domain.EntityReaction) {
		if rxn, found := s.prior.FindReaction(rec.Target); found && usableCounterpart(rxn) {
			return rxn, false, true
		}
	}
	for _, id := range r.InferredTo {
		rxn, found := s.graph.Reaction(id)
		if found && rxn.InSpecies(s.target.Name) && rxn.Electronic() && usableCounterpart(rxn) {
			return rxn, true, true
		}
	}
	return nil, false, false
}

func usableCounterpart(r *domain.Reaction) bool {
	return len(r.Disease) == 0 && !r.ManuallyInferred
}

// Confirm records a committed (or reused) reaction.
func (s *Session) Confirm(res *ReactionResult) {
	if res.Skipped() {
		return
	}
	for _, e := range res.Entities {
		delete(s.pending, e.Base().DBID)
	}
	for _, rec := range res.Inferences {
		delete(s.links, rec.Target)
	}
	s.inferredEvents[res.Source.DBID] = res.Reaction.DBID
	if !res.FromSnapshot {
		s.storedEvents[res.Reaction.DBID] = true
	}
	s.ledger.Inferred++
	if res.Reused {
		s.ledger.Reused++
	}
}

// Reject records a reaction whose commit failed. Its entities stay pending
// and may be committed with a later reaction.
func (s *Session) Reject(res *ReactionResult, err error) {
	s.ledger.Skip(ReasonCommitBlocked)
	s.log.Warn(context.Background(), "reaction commit rejected",
		logging.Int("reaction_id", int(res.Source.DBID)), logging.Err(err))
	res.Reason = ReasonCommitBlocked
	res.Detail = err.Error()
	res.Reaction = nil
}

// PrecedingLink asks for target to list the given preceding events.
type PrecedingLink struct {
	Target    domain.DBID
	Preceding []domain.DBID
}

// LinkPrecedingEvents maps each inferred reaction's preceding events onto
// their inferred counterparts where both ends were inferred. Only reactions
// held in the inferred store are linked; links are returned in ascending
// source order.
func (s *Session) LinkPrecedingEvents() []PrecedingLink {
	sources := make([]domain.DBID, 0, len(s.inferredEvents))
	for src := range s.inferredEvents {
		sources = append(sources, src)
	}
	var out []PrecedingLink
	for _, src := range domain.SortIDs(sources) {
		r, ok := s.graph.Reaction(src)
		if !ok || !s.storedEvents[s.inferredEvents[src]] {
			continue
		}
		var preceding []domain.DBID
		for _, p := range r.PrecedingEvents {
			if tgt, ok := s.inferredEvents[p]; ok && !domain.ContainsID(preceding, tgt) {
				preceding = append(preceding, tgt)
			}
		}
		if len(preceding) > 0 {
			out = append(out, PrecedingLink{Target: s.inferredEvents[src], Preceding: preceding})
		}
	}
	return out
}
