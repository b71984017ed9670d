package domain

// EventBase carries the attributes shared by reactions and pathways.
type EventBase struct {
	DBID            DBID     `json:"db_id"`
	StableID        string   `json:"stable_id,omitempty"`
	StableIDVersion int      `json:"stable_id_version,omitempty"`
	Name            string   `json:"name"`
	Species         []string `json:"species,omitempty"`
	Compartments    []string `json:"compartments,omitempty"`
	Summation       string   `json:"summation,omitempty"`
	EvidenceType    string   `json:"evidence_type,omitempty"`
	Disease         []string `json:"disease,omitempty"`
	InferredFrom    []DBID   `json:"inferred_from,omitempty"`
	InferredTo      []DBID   `json:"inferred_to,omitempty"`
}

// ID returns the database identifier.
func (e *EventBase) ID() DBID { return e.DBID }

// InSpecies reports whether the event is annotated with the named species.
func (e *EventBase) InSpecies(name string) bool {
	for _, s := range e.Species {
		if s == name {
			return true
		}
	}
	return false
}

// Electronic reports whether the event was produced by computational inference.
func (e *EventBase) Electronic() bool { return e.EvidenceType == EvidenceElectronic }

// CatalystActivity binds a catalysing entity and optional active units to a
// molecular function.
type CatalystActivity struct {
	PhysicalEntity DBID   `json:"physical_entity"`
	Activity       string `json:"activity,omitempty"`
	ActiveUnits    []DBID `json:"active_units,omitempty"`
}

// RegulationKind classifies a regulation.
type RegulationKind string

// Regulation kinds.
const (
	RegulationPositive    RegulationKind = "positive"
	RegulationNegative    RegulationKind = "negative"
	RegulationRequirement RegulationKind = "requirement"
)

// Regulation attaches a regulator to a reaction. A regulator that is not a
// physical entity (an event) is carried over unchanged during inference.
type Regulation struct {
	Kind              RegulationKind `json:"kind"`
	Regulator         DBID           `json:"regulator"`
	RegulatorIsEntity bool           `json:"regulator_is_entity"`
}

// Reaction is a reaction-like event.
type Reaction struct {
	EventBase
	Category           string             `json:"category,omitempty"`
	Inputs             []DBID             `json:"inputs,omitempty"`
	Outputs            []DBID             `json:"outputs,omitempty"`
	CatalystActivities []CatalystActivity `json:"catalyst_activities,omitempty"`
	Regulations        []Regulation       `json:"regulations,omitempty"`
	IsChimeric         bool               `json:"is_chimeric,omitempty"`
	RelatedSpecies     []string           `json:"related_species,omitempty"`
	ManuallyInferred   bool               `json:"manually_inferred,omitempty"`
	PrecedingEvents    []DBID             `json:"preceding_events,omitempty"`
}

// Pathway groups reactions and sub-pathways in an ordered event list.
type Pathway struct {
	EventBase
	HasEvent []DBID `json:"has_event,omitempty"`
}

// CloneReaction returns a deep copy of r.
func CloneReaction(r *Reaction) *Reaction {
	if r == nil {
		return nil
	}
	cp := *r
	cp.EventBase = cloneEventBase(r.EventBase)
	cp.Inputs = append([]DBID(nil), r.Inputs...)
	cp.Outputs = append([]DBID(nil), r.Outputs...)
	if r.CatalystActivities != nil {
		cp.CatalystActivities = make([]CatalystActivity, len(r.CatalystActivities))
		for i, ca := range r.CatalystActivities {
			ca.ActiveUnits = append([]DBID(nil), ca.ActiveUnits...)
			cp.CatalystActivities[i] = ca
		}
	}
	cp.Regulations = append([]Regulation(nil), r.Regulations...)
	cp.RelatedSpecies = append([]string(nil), r.RelatedSpecies...)
	cp.PrecedingEvents = append([]DBID(nil), r.PrecedingEvents...)
	return &cp
}

// ClonePathway returns a deep copy of p.
func ClonePathway(p *Pathway) *Pathway {
	if p == nil {
		return nil
	}
	cp := *p
	cp.EventBase = cloneEventBase(p.EventBase)
	cp.HasEvent = append([]DBID(nil), p.HasEvent...)
	return &cp
}

func cloneEventBase(e EventBase) EventBase {
	cp := e
	cp.Species = append([]string(nil), e.Species...)
	cp.Compartments = append([]string(nil), e.Compartments...)
	cp.Disease = append([]string(nil), e.Disease...)
	cp.InferredFrom = append([]DBID(nil), e.InferredFrom...)
	cp.InferredTo = append([]DBID(nil), e.InferredTo...)
	return cp
}
