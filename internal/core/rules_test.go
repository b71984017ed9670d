package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"orthoinfer/internal/infra/persistence/memory"
	"orthoinfer/pkg/domain"
)

func sourceGraph(t *testing.T) *domain.Graph {
	t.Helper()
	g := domain.NewGraph()
	if err := g.AddSpecies(hsap); err != nil {
		t.Fatalf("species: %v", err)
	}
	if err := g.AddEntity(chemical(4, "ATP")); err != nil {
		t.Fatalf("entity: %v", err)
	}
	if err := g.AddReaction(humanReaction(20, []domain.DBID{4}, nil, 4)); err != nil {
		t.Fatalf("reaction: %v", err)
	}
	return g
}

func mouseProtein(id domain.DBID) *domain.Protein {
	return &domain.Protein{
		EntityBase: domain.EntityBase{DBID: id, Names: []string{"Raf1"}, Species: []string{mouse}},
		Reference:  &domain.Reference{Database: "UniProt", Identifier: "Q99N57"},
	}
}

func inferredReaction(id domain.DBID, inputs ...domain.DBID) *domain.Reaction {
	return &domain.Reaction{
		EventBase: domain.EventBase{
			DBID:         id,
			Name:         "inferred",
			Species:      []string{mouse},
			EvidenceType: domain.EvidenceElectronic,
			InferredFrom: []domain.DBID{20},
		},
		Inputs: inputs,
	}
}

func TestDefaultRulesEngineRegistersRules(t *testing.T) {
	engine := NewDefaultRulesEngine(nil)
	var names []string
	for _, r := range engine.Rules() {
		names = append(names, r.Name())
	}
	want := "inferred_species_consistency,inferred_reference_integrity,inferred_provenance"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("rules = %s, want %s", got, want)
	}
}

func TestSpeciesConsistencyBlocksMixedCommit(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine(sourceGraph(t)))
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.CreateEntity(mouseProtein(101)); err != nil {
			return err
		}
		rat := mouseProtein(102)
		rat.Species = []string{"Rattus norvegicus"}
		return tx.CreateEntity(rat)
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if rve.Result.Violations[0].Rule != "inferred_species_consistency" || rve.Result.Violations[0].EntityID != 102 {
		t.Fatalf("unexpected violation %+v", rve.Result.Violations[0])
	}
}

func TestSpeciesConsistencyRequiresOneSpecies(t *testing.T) {
	rule := NewSpeciesConsistencyRule()
	speciesLess := mouseProtein(101)
	speciesLess.Species = nil
	res, err := rule.Evaluate(context.Background(), nil, []domain.Change{
		{Entity: domain.EntityPhysical, Action: domain.ActionCreate, After: speciesLess},
		{Entity: domain.EntityReaction, Action: domain.ActionCreate, After: inferredReaction(102)},
		{Entity: domain.EntityInference, Action: domain.ActionCreate, After: domain.InferenceRecord{Source: 20, Species: "Rattus norvegicus", Target: 102}},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Violations) != 2 || !res.HasBlocking() {
		t.Fatalf("expected species count and inference mismatch, got %+v", res.Violations)
	}
	if !strings.Contains(res.Violations[0].Message, "carries 0 species") {
		t.Fatalf("unexpected message %q", res.Violations[0].Message)
	}
	if res.Violations[1].Entity != domain.EntityInference {
		t.Fatalf("expected inference violation, got %+v", res.Violations[1])
	}
}

func TestReferenceIntegrityAcceptsStoredAndSourceRecords(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine(sourceGraph(t)))
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.CreateEntity(mouseProtein(101)); err != nil {
			return err
		}
		rxn := inferredReaction(102, 101, 4)
		rxn.Regulations = []domain.Regulation{{Kind: domain.RegulationNegative, Regulator: 20}}
		if err := tx.CreateReaction(rxn); err != nil {
			return err
		}
		return tx.RecordInference(domain.InferenceRecord{Source: 20, Species: mouse, Target: 102, Kind: string(domain.EntityReaction)})
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
}

func TestReferenceIntegrityBlocksDanglingReferences(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine(sourceGraph(t)))
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		rxn := inferredReaction(102, 555)
		rxn.CatalystActivities = []domain.CatalystActivity{{PhysicalEntity: 4, ActiveUnits: []domain.DBID{556}}}
		if err := tx.CreateReaction(rxn); err != nil {
			return err
		}
		if err := tx.CreatePathway(&domain.Pathway{
			EventBase: domain.EventBase{DBID: 103, Name: "p", Species: []string{mouse}, EvidenceType: domain.EvidenceElectronic, InferredFrom: []domain.DBID{1}},
			HasEvent:  []domain.DBID{102, 557},
		}); err != nil {
			return err
		}
		return tx.RecordInference(domain.InferenceRecord{Source: 20, Species: mouse, Target: 4, Kind: string(domain.EntityPhysical)})
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	var messages []string
	for _, v := range rve.Result.Violations {
		if v.Rule == "inferred_reference_integrity" {
			messages = append(messages, v.Message)
		}
	}
	joined := strings.Join(messages, "\n")
	for _, want := range []string{"missing input 555", "missing active unit 556", "missing event 557", "unstored record 4"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q among:\n%s", want, joined)
		}
	}
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindReaction(102); ok {
			t.Fatalf("blocked reaction must not be stored")
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestReferenceIntegrityChecksUpdates(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine(sourceGraph(t)))
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.CreateReaction(inferredReaction(102, 4))
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateReaction(102, func(r *domain.Reaction) error {
			r.PrecedingEvents = append(r.PrecedingEvents, 999)
			return nil
		})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "preceding event 999") {
		t.Fatalf("expected dangling preceding event to block, got %v", err)
	}
}

func TestProvenanceWarnsWithoutBlocking(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine(sourceGraph(t)))
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		rxn := inferredReaction(102, 4)
		rxn.InferredFrom = nil
		rxn.EvidenceType = ""
		return tx.CreateReaction(rxn)
	})
	if err != nil {
		t.Fatalf("warnings must not block: %v", err)
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected two provenance warnings, got %+v", res.Violations)
	}
	for _, v := range res.Violations {
		if v.Severity != domain.SeverityWarn || v.Rule != "inferred_provenance" {
			t.Fatalf("unexpected violation %+v", v)
		}
	}
}
