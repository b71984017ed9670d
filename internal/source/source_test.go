package source

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"orthoinfer/internal/blob/core"
	"orthoinfer/internal/infra/blob/memory"
	"orthoinfer/pkg/domain"
)

func TestEncodeDecodeSnapshot(t *testing.T) {
	species := []domain.Species{{Name: "Homo sapiens", Code: "hsap", Abbreviation: "HSA"}}
	protein := &domain.Protein{
		EntityBase: domain.EntityBase{DBID: 2, Names: []string{"TP53"}, Species: []string{"Homo sapiens"}},
		Reference:  &domain.Reference{Database: "UniProt", Identifier: "P04637"},
	}
	set := &domain.EntitySet{EntityBase: domain.EntityBase{DBID: 3, Names: []string{"set"}}, SetKind: domain.SetCandidate, Members: []domain.DBID{2}}
	rxn := &domain.Reaction{EventBase: domain.EventBase{DBID: 10, Name: "binding", Species: []string{"Homo sapiens"}}, Inputs: []domain.DBID{2}}
	pw := &domain.Pathway{EventBase: domain.EventBase{DBID: 20, Name: "signalling", Species: []string{"Homo sapiens"}}, HasEvent: []domain.DBID{10}}

	var buf bytes.Buffer
	if err := Encode(&buf, species, []domain.PhysicalEntity{protein, set}, []*domain.Reaction{rxn}, []*domain.Pathway{pw}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	store := memory.New()
	if _, err := store.Put(context.Background(), "snapshot/graph.json", &buf, core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	g, err := LoadGraph(context.Background(), store, "snapshot/graph.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := g.Entity(3)
	if !ok || got.Kind() != domain.KindCandidateSet {
		t.Fatalf("expected candidate set, got %+v", got)
	}
	if _, ok := g.Entity(2); !ok {
		t.Fatalf("protein missing")
	}
	if parents := g.Parents(10); len(parents) != 1 || parents[0] != 20 {
		t.Fatalf("unexpected parents %v", parents)
	}
	if s, ok := g.SpeciesByCode("hsap"); !ok || s.Abbreviation != "HSA" {
		t.Fatalf("species not loaded")
	}
}

func TestDecodeRejectsDuplicates(t *testing.T) {
	doc := `{"species":[],"entities":[{"kind":"SimpleEntity","db_id":1,"names":["ATP"]}],"reactions":[{"db_id":1,"name":"dup"}]}`
	if _, err := Decode(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestParseSkipListText(t *testing.T) {
	sl, err := ParseSkipList(strings.NewReader("# excluded\nreaction 5\n7 # bare\npathway 9\n\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sl.Reactions) != 2 || sl.Reactions[0] != 5 || sl.Reactions[1] != 7 {
		t.Fatalf("unexpected reactions %v", sl.Reactions)
	}
	if len(sl.Pathways) != 1 || sl.Pathways[0] != 9 {
		t.Fatalf("unexpected pathways %v", sl.Pathways)
	}
	for _, bad := range []string{"reaction x", "complex 5", "a b c"} {
		if _, err := ParseSkipList(strings.NewReader(bad)); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseSkipListJSON(t *testing.T) {
	sl, err := ParseSkipList(strings.NewReader(`{"reactions":[1,2],"pathways":[3]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sl.Reactions) != 2 || len(sl.Pathways) != 1 {
		t.Fatalf("unexpected %+v", sl)
	}
}

func TestLoadSkipListMissingIsEmpty(t *testing.T) {
	sl, err := LoadSkipList(context.Background(), memory.New(), "skiplist.txt")
	if err != nil || len(sl.Reactions)+len(sl.Pathways) != 0 {
		t.Fatalf("expected empty list, got %+v %v", sl, err)
	}
	sl, err = LoadSkipList(context.Background(), memory.New(), "")
	if err != nil || len(sl.Reactions) != 0 {
		t.Fatalf("expected empty list for empty key")
	}
}
