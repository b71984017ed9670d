package domain

// EntityKind names a PhysicalEntity variant.
type EntityKind string

// Physical entity variants.
const (
	KindSimpleEntity        EntityKind = "SimpleEntity"
	KindProtein             EntityKind = "EntityWithAccessionedSequence"
	KindGenomeEncodedEntity EntityKind = "GenomeEncodedEntity"
	KindComplex             EntityKind = "Complex"
	KindPolymer             EntityKind = "Polymer"
	KindDefinedSet          EntityKind = "DefinedSet"
	KindCandidateSet        EntityKind = "CandidateSet"
	KindOpenSet             EntityKind = "OpenSet"
)

// SetKind distinguishes the EntitySet flavours.
type SetKind string

// Entity set flavours.
const (
	SetDefined   SetKind = "defined"
	SetCandidate SetKind = "candidate"
	SetOpen      SetKind = "open"
)

// PhysicalEntity is the closed set of entity variants. Only the types in this
// package implement it; callers dispatch with a type switch.
type PhysicalEntity interface {
	Base() *EntityBase
	Kind() EntityKind
	physicalEntity()
}

// EntityBase carries the attributes shared by every physical entity.
type EntityBase struct {
	DBID            DBID     `json:"db_id"`
	StableID        string   `json:"stable_id,omitempty"`
	StableIDVersion int      `json:"stable_id_version,omitempty"`
	Names           []string `json:"names"`
	Species         []string `json:"species,omitempty"`
	Compartments    []string `json:"compartments,omitempty"`
	Summation       string   `json:"summation,omitempty"`
	InferredFrom    []DBID   `json:"inferred_from,omitempty"`
	InferredTo      []DBID   `json:"inferred_to,omitempty"`
}

// Base returns the shared attribute block.
func (b *EntityBase) Base() *EntityBase { return b }

// ID returns the database identifier.
func (b *EntityBase) ID() DBID { return b.DBID }

// DisplayName returns the primary name.
func (b *EntityBase) DisplayName() string {
	if len(b.Names) == 0 {
		return ""
	}
	return b.Names[0]
}

// Reference identifies an external reference record (UniProt, ENSEMBL, ChEBI).
type Reference struct {
	Database   string   `json:"database"`
	Identifier string   `json:"identifier"`
	GeneNames  []string `json:"gene_names,omitempty"`
	Genes      []string `json:"genes,omitempty"`
	Species    string   `json:"species,omitempty"`
}

// ModifiedResidue annotates a post-translational modification on a protein.
type ModifiedResidue struct {
	Name         string `json:"name"`
	Coordinate   *int   `json:"coordinate,omitempty"`
	Modification string `json:"modification,omitempty"`
	// ReferenceIdentifier is the identifier of the sequence the residue sits on.
	ReferenceIdentifier string `json:"reference_identifier,omitempty"`
}

// SimpleEntity is a small molecule or other species-less chemical.
type SimpleEntity struct {
	EntityBase
	Reference *Reference `json:"reference,omitempty"`
}

// Protein is a genome-encoded entity with an accessioned reference sequence.
type Protein struct {
	EntityBase
	Reference        *Reference        `json:"reference"`
	StartCoordinate  *int              `json:"start_coordinate,omitempty"`
	EndCoordinate    *int              `json:"end_coordinate,omitempty"`
	ModifiedResidues []ModifiedResidue `json:"modified_residues,omitempty"`
}

// GenomeEncodedEntity is a genome product without an accessioned sequence.
type GenomeEncodedEntity struct {
	EntityBase
}

// Complex is an assembly of component entities; repeated ids express stoichiometry.
type Complex struct {
	EntityBase
	Components []DBID `json:"components"`
}

// Polymer is a chain of repeated units.
type Polymer struct {
	EntityBase
	RepeatedUnits []DBID `json:"repeated_units"`
	MinUnits      *int   `json:"min_units,omitempty"`
	MaxUnits      *int   `json:"max_units,omitempty"`
}

// EntitySet groups alternative members (and candidates for CandidateSet).
// OpenSet carries only a shared reference.
type EntitySet struct {
	EntityBase
	SetKind    SetKind    `json:"set_kind"`
	Members    []DBID     `json:"members,omitempty"`
	Candidates []DBID     `json:"candidates,omitempty"`
	Reference  *Reference `json:"reference,omitempty"`
}

func (*SimpleEntity) physicalEntity()        {}
func (*Protein) physicalEntity()             {}
func (*GenomeEncodedEntity) physicalEntity() {}
func (*Complex) physicalEntity()             {}
func (*Polymer) physicalEntity()             {}
func (*EntitySet) physicalEntity()           {}

// Kind implements PhysicalEntity.
func (*SimpleEntity) Kind() EntityKind { return KindSimpleEntity }

// Kind implements PhysicalEntity.
func (*Protein) Kind() EntityKind { return KindProtein }

// Kind implements PhysicalEntity.
func (*GenomeEncodedEntity) Kind() EntityKind { return KindGenomeEncodedEntity }

// Kind implements PhysicalEntity.
func (*Complex) Kind() EntityKind { return KindComplex }

// Kind implements PhysicalEntity.
func (*Polymer) Kind() EntityKind { return KindPolymer }

// Kind implements PhysicalEntity.
func (s *EntitySet) Kind() EntityKind {
	switch s.SetKind {
	case SetCandidate:
		return KindCandidateSet
	case SetOpen:
		return KindOpenSet
	default:
		return KindDefinedSet
	}
}

// Children returns the structural sub-entities of e: components, repeated
// units, members and candidates, in declaration order.
func Children(e PhysicalEntity) []DBID {
	switch n := e.(type) {
	case *Complex:
		return n.Components
	case *Polymer:
		return n.RepeatedUnits
	case *EntitySet:
		if len(n.Candidates) == 0 {
			return n.Members
		}
		out := make([]DBID, 0, len(n.Members)+len(n.Candidates))
		out = append(out, n.Members...)
		return append(out, n.Candidates...)
	default:
		return nil
	}
}

// CloneEntity returns a copy of e whose slices can be mutated independently.
func CloneEntity(e PhysicalEntity) PhysicalEntity {
	switch n := e.(type) {
	case *SimpleEntity:
		cp := *n
		cp.EntityBase = cloneBase(n.EntityBase)
		cp.Reference = cloneReference(n.Reference)
		return &cp
	case *Protein:
		cp := *n
		cp.EntityBase = cloneBase(n.EntityBase)
		cp.Reference = cloneReference(n.Reference)
		cp.StartCoordinate = cloneInt(n.StartCoordinate)
		cp.EndCoordinate = cloneInt(n.EndCoordinate)
		if n.ModifiedResidues != nil {
			cp.ModifiedResidues = make([]ModifiedResidue, len(n.ModifiedResidues))
			for i, r := range n.ModifiedResidues {
				r.Coordinate = cloneInt(r.Coordinate)
				cp.ModifiedResidues[i] = r
			}
		}
		return &cp
	case *GenomeEncodedEntity:
		cp := *n
		cp.EntityBase = cloneBase(n.EntityBase)
		return &cp
	case *Complex:
		cp := *n
		cp.EntityBase = cloneBase(n.EntityBase)
		cp.Components = append([]DBID(nil), n.Components...)
		return &cp
	case *Polymer:
		cp := *n
		cp.EntityBase = cloneBase(n.EntityBase)
		cp.RepeatedUnits = append([]DBID(nil), n.RepeatedUnits...)
		cp.MinUnits = cloneInt(n.MinUnits)
		cp.MaxUnits = cloneInt(n.MaxUnits)
		return &cp
	case *EntitySet:
		cp := *n
		cp.EntityBase = cloneBase(n.EntityBase)
		cp.Members = append([]DBID(nil), n.Members...)
		cp.Candidates = append([]DBID(nil), n.Candidates...)
		cp.Reference = cloneReference(n.Reference)
		return &cp
	default:
		return e
	}
}

func cloneBase(b EntityBase) EntityBase {
	cp := b
	cp.Names = append([]string(nil), b.Names...)
	cp.Species = append([]string(nil), b.Species...)
	cp.Compartments = append([]string(nil), b.Compartments...)
	cp.InferredFrom = append([]DBID(nil), b.InferredFrom...)
	cp.InferredTo = append([]DBID(nil), b.InferredTo...)
	return cp
}

func cloneReference(r *Reference) *Reference {
	if r == nil {
		return nil
	}
	cp := *r
	cp.GeneNames = append([]string(nil), r.GeneNames...)
	cp.Genes = append([]string(nil), r.Genes...)
	return &cp
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
