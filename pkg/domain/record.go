package domain

import (
	"encoding/json"
	"fmt"
)

type kindHeader struct {
	Kind EntityKind `json:"kind"`
}

// MarshalEntity encodes e with a "kind" discriminator so it can be decoded
// back into the right variant by UnmarshalEntity.
func MarshalEntity(e PhysicalEntity) ([]byte, error) {
	switch n := e.(type) {
	case *SimpleEntity:
		return json.Marshal(struct {
			Kind EntityKind `json:"kind"`
			*SimpleEntity
		}{n.Kind(), n})
	case *Protein:
		return json.Marshal(struct {
			Kind EntityKind `json:"kind"`
			*Protein
		}{n.Kind(), n})
	case *GenomeEncodedEntity:
		return json.Marshal(struct {
			Kind EntityKind `json:"kind"`
			*GenomeEncodedEntity
		}{n.Kind(), n})
	case *Complex:
		return json.Marshal(struct {
			Kind EntityKind `json:"kind"`
			*Complex
		}{n.Kind(), n})
	case *Polymer:
		return json.Marshal(struct {
			Kind EntityKind `json:"kind"`
			*Polymer
		}{n.Kind(), n})
	case *EntitySet:
		return json.Marshal(struct {
			Kind EntityKind `json:"kind"`
			*EntitySet
		}{n.Kind(), n})
	default:
		return nil, fmt.Errorf("marshal entity: unsupported type %T", e)
	}
}

// UnmarshalEntity decodes a payload produced by MarshalEntity.
func UnmarshalEntity(data []byte) (PhysicalEntity, error) {
	var head kindHeader
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode entity kind: %w", err)
	}
	var target PhysicalEntity
	switch head.Kind {
	case KindSimpleEntity:
		target = &SimpleEntity{}
	case KindProtein:
		target = &Protein{}
	case KindGenomeEncodedEntity:
		target = &GenomeEncodedEntity{}
	case KindComplex:
		target = &Complex{}
	case KindPolymer:
		target = &Polymer{}
	case KindDefinedSet, KindCandidateSet, KindOpenSet:
		set := &EntitySet{}
		target = set
		if err := json.Unmarshal(data, set); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Kind, err)
		}
		set.SetKind = setKindFor(head.Kind)
		return set, nil
	default:
		return nil, fmt.Errorf("decode entity: unknown kind %q", head.Kind)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Kind, err)
	}
	return target, nil
}

func setKindFor(kind EntityKind) SetKind {
	switch kind {
	case KindCandidateSet:
		return SetCandidate
	case KindOpenSet:
		return SetOpen
	default:
		return SetDefined
	}
}
