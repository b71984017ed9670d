// Package source loads the read-only curated graph and the skip-list the
// inference run starts from.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"orthoinfer/internal/blob/core"
	"orthoinfer/pkg/domain"
)

// document is the JSON layout of a snapshot.
type document struct {
	Release   string             `json:"release,omitempty"`
	Species   []domain.Species   `json:"species"`
	Entities  []json.RawMessage  `json:"entities"`
	Reactions []*domain.Reaction `json:"reactions"`
	Pathways  []*domain.Pathway  `json:"pathways"`
}

// Decode reads a snapshot document into a graph.
func Decode(r io.Reader) (*domain.Graph, error) {
	var doc document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	g := domain.NewGraph()
	for _, s := range doc.Species {
		if err := g.AddSpecies(s); err != nil {
			return nil, fmt.Errorf("snapshot species %q: %w", s.Name, err)
		}
	}
	for i, raw := range doc.Entities {
		e, err := domain.UnmarshalEntity(raw)
		if err != nil {
			return nil, fmt.Errorf("snapshot entity #%d: %w", i, err)
		}
		if err := g.AddEntity(e); err != nil {
			return nil, fmt.Errorf("snapshot entity #%d: %w", i, err)
		}
	}
	for _, rxn := range doc.Reactions {
		if err := g.AddReaction(rxn); err != nil {
			return nil, fmt.Errorf("snapshot reaction: %w", err)
		}
	}
	for _, p := range doc.Pathways {
		if err := g.AddPathway(p); err != nil {
			return nil, fmt.Errorf("snapshot pathway: %w", err)
		}
	}
	return g, nil
}

// Encode writes the snapshot document for the given records.
func Encode(w io.Writer, species []domain.Species, entities []domain.PhysicalEntity, reactions []*domain.Reaction, pathways []*domain.Pathway) error {
	doc := document{Species: species, Reactions: reactions, Pathways: pathways}
	for _, e := range entities {
		raw, err := domain.MarshalEntity(e)
		if err != nil {
			return err
		}
		doc.Entities = append(doc.Entities, raw)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// LoadGraph reads and decodes the snapshot stored at key.
func LoadGraph(ctx context.Context, store core.Store, key string) (*domain.Graph, error) {
	raw, err := core.ReadAll(ctx, store, key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return Decode(bytes.NewReader(raw))
}
