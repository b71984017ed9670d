package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"orthoinfer/internal/adapters/exports"
	blobcore "orthoinfer/internal/blob/core"
	"orthoinfer/internal/config"
	"orthoinfer/internal/homology"
	"orthoinfer/internal/inference"
	blobmemory "orthoinfer/internal/infra/blob/memory"
	"orthoinfer/internal/infra/persistence/memory"
	"orthoinfer/internal/source"
	"orthoinfer/pkg/domain"
)

const (
	human = "Homo sapiens"
	mouse = "Mus musculus"
)

var (
	hsap = domain.Species{Name: human, Code: "hsap", Abbreviation: "HSA"}
	mmus = domain.Species{Name: mouse, Code: "mmus", Abbreviation: "MMU"}
	rnor = domain.Species{Name: "Rattus norvegicus", Code: "rnor", Abbreviation: "RNO"}
)

func protein(id domain.DBID, name, ident string) *domain.Protein {
	return &domain.Protein{
		EntityBase: domain.EntityBase{DBID: id, Names: []string{name}, Species: []string{human}, Compartments: []string{"cytosol"}},
		Reference:  &domain.Reference{Database: "UniProt", Identifier: ident},
	}
}

func chemical(id domain.DBID, name string) *domain.SimpleEntity {
	return &domain.SimpleEntity{EntityBase: domain.EntityBase{DBID: id, Names: []string{name}, Compartments: []string{"cytosol"}}}
}

func humanReaction(id domain.DBID, inputs, outputs []domain.DBID, catalyst domain.DBID) *domain.Reaction {
	return &domain.Reaction{
		EventBase:          domain.EventBase{DBID: id, Name: "reaction " + id.String(), Species: []string{human}},
		Inputs:             inputs,
		Outputs:            outputs,
		CatalystActivities: []domain.CatalystActivity{{PhysicalEntity: catalyst, Activity: "kinase activity"}},
	}
}

// seedBlobs writes a two-reaction MAPK snapshot plus mouse homology files.
func seedBlobs(t *testing.T) blobcore.Store {
	t.Helper()
	ctx := context.Background()
	blobs := blobmemory.New()

	entities := []domain.PhysicalEntity{
		protein(1, "RAF1", "P04049"),
		protein(2, "MAP2K1", "Q02750"),
		protein(3, "MAPK1", "P28482"),
		chemical(4, "ATP"),
		chemical(5, "ADP"),
		&domain.Complex{
			EntityBase: domain.EntityBase{DBID: 6, Names: []string{"RAF1:MAP2K1"}, Species: []string{human}, Compartments: []string{"cytosol"}},
			Components: []domain.DBID{1, 2},
		},
	}
	first := humanReaction(20, []domain.DBID{2, 4}, []domain.DBID{5}, 6)
	second := humanReaction(21, []domain.DBID{3, 4}, []domain.DBID{5}, 6)
	second.PrecedingEvents = []domain.DBID{20}
	skipped := humanReaction(22, []domain.DBID{3}, []domain.DBID{5}, 6)
	pathway := &domain.Pathway{EventBase: domain.EventBase{DBID: 100, Name: "MAPK cascade", Species: []string{human}}, HasEvent: []domain.DBID{20, 21, 22}}

	var doc bytes.Buffer
	if err := source.Encode(&doc, []domain.Species{hsap, mmus, rnor}, entities, []*domain.Reaction{first, second, skipped}, []*domain.Pathway{pathway}); err != nil {
		t.Fatalf("encode snapshot: %v", err)
	}
	put := func(key, body string) {
		if _, err := blobs.Put(ctx, key, strings.NewReader(body), blobcore.PutOptions{Overwrite: true}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	put("snapshot/graph.json", doc.String())
	put("skip.txt", "reaction 22\n")
	put(homology.MappingKey("hsap", "mmus"), "P04049\tUniProt:Q99N57\nQ02750\tUniProt:P31938\nP28482\tUniProt:P63085\n")
	put(homology.GeneMappingKey("mmus"), "Raf1\tQ99N57\nMap2k1\tP31938\nMapk1\tP63085\n")
	return blobs
}

func testConfig(targets ...string) config.Config {
	return config.Config{
		SourceSpecies: "hsap",
		TargetSpecies: targets,
		SnapshotKey:   "snapshot/graph.json",
		SkipListKey:   "skip.txt",
		Release:       "r90",
		Storage:       config.Storage{Driver: config.StorageMemory},
	}
}

// sharedStore hands the same in-memory store to every run.
type sharedStore struct {
	mu    sync.Mutex
	store *memory.Store
}

func (s *sharedStore) open(_ context.Context, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = memory.NewStore(engine)
	}
	return s.store, nil
}

type recordingMetrics struct {
	observed map[string]*inference.Ledger
	failed   []string
}

func (m *recordingMetrics) ObserveSpecies(target string, l *inference.Ledger, _ time.Duration) {
	if m.observed == nil {
		m.observed = map[string]*inference.Ledger{}
	}
	m.observed[target] = l
}

func (m *recordingMetrics) ConfigurationError(target string) { m.failed = append(m.failed, target) }

func TestServiceRunInfersAndCommits(t *testing.T) {
	blobs := seedBlobs(t)
	shared := &sharedStore{}
	metrics := &recordingMetrics{}
	svc := NewService(testConfig("mmus", "rnor", "ggal"), blobs,
		WithStoreOpener(shared.open), WithMetrics(metrics), WithRunID("run-1"))

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID != "run-1" || len(report.Species) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	mouseReport := report.Species[0]
	if mouseReport.Err != nil || mouseReport.Ledger.Inferred != 2 || mouseReport.Ledger.Eligible != 2 {
		t.Fatalf("unexpected mouse outcome: %+v", mouseReport)
	}
	if got := mouseReport.Ledger.Skips[inference.ReasonSkipList]; got != 1 {
		t.Fatalf("expected the skip-listed reaction to be counted, got %d", got)
	}
	if failed := report.Failed(); len(failed) != 2 || failed[0] != "rnor" || failed[1] != "ggal" {
		t.Fatalf("expected rnor and ggal to fail, got %v", failed)
	}
	var cfgErr *homology.ConfigurationError
	if !errors.As(report.Species[1].Err, &cfgErr) || cfgErr.Species != "rnor" {
		t.Fatalf("expected configuration error for rnor, got %v", report.Species[1].Err)
	}
	if len(metrics.failed) != 2 || metrics.observed["mmus"] == nil {
		t.Fatalf("metrics not recorded: %+v", metrics)
	}

	err = shared.store.View(context.Background(), func(v domain.TransactionView) error {
		reactions := v.ListReactions()
		if len(reactions) != 2 {
			t.Fatalf("expected 2 stored reactions, got %d", len(reactions))
		}
		first, ok := v.FindInferred(20, mouse)
		if !ok {
			t.Fatalf("missing inference for reaction 20")
		}
		second, _ := v.FindInferred(21, mouse)
		stored, _ := v.FindReaction(second.Target)
		if len(stored.PrecedingEvents) != 1 || stored.PrecedingEvents[0] != first.Target {
			t.Fatalf("expected preceding link to %d, got %v", first.Target, stored.PrecedingEvents)
		}
		if !strings.HasPrefix(stored.StableID, "R-MMU-") {
			t.Fatalf("unexpected stable id %q", stored.StableID)
		}
		pathways := v.ListPathways()
		if len(pathways) != 1 {
			t.Fatalf("expected one pathway, got %d", len(pathways))
		}
		if got := pathways[0].HasEvent; len(got) != 2 || got[0] != first.Target || got[1] != second.Target {
			t.Fatalf("unexpected pathway events %v", got)
		}
		if _, ok := v.FindInferred(100, mouse); !ok {
			t.Fatalf("missing pathway inference")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	raw, err := blobcore.ReadAll(context.Background(), blobs, ReportKey("r90"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	want := "run-1\tHomo sapiens to Mus musculus: Inferred 2 out of 2 eligible reactions (100.00%)\n"
	if string(raw) != want {
		t.Fatalf("report = %q, want %q", raw, want)
	}
}

func TestServiceRerunReusesStoredRecords(t *testing.T) {
	blobs := seedBlobs(t)
	shared := &sharedStore{}
	ctx := context.Background()
	if _, err := NewService(testConfig("mmus"), blobs, WithStoreOpener(shared.open)).Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := shared.store.ExportState()

	report, err := NewService(testConfig("mmus"), blobs, WithStoreOpener(shared.open)).Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	ledger := report.Species[0].Ledger
	if ledger.Reused != 2 || ledger.Inferred != 2 {
		t.Fatalf("expected both reactions reused, got %+v", ledger)
	}
	after := shared.store.ExportState()
	if len(after.Entities) != len(before.Entities) || len(after.Reactions) != len(before.Reactions) ||
		len(after.Pathways) != len(before.Pathways) || len(after.Inferences) != len(before.Inferences) {
		t.Fatalf("re-run grew the store: before %d/%d/%d/%d after %d/%d/%d/%d",
			len(before.Entities), len(before.Reactions), len(before.Pathways), len(before.Inferences),
			len(after.Entities), len(after.Reactions), len(after.Pathways), len(after.Inferences))
	}

	raw, err := blobcore.ReadAll(ctx, blobs, ReportKey("r90"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if lines := strings.Count(string(raw), "\n"); lines != 2 {
		t.Fatalf("expected one report line per run, got %q", raw)
	}
}

func TestServiceRunFailsWithoutSnapshot(t *testing.T) {
	svc := NewService(testConfig("mmus"), blobmemory.New(), WithStoreOpener((&sharedStore{}).open))
	if _, err := svc.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "load snapshot") {
		t.Fatalf("expected snapshot error, got %v", err)
	}
}

func TestServiceRunUnknownSourceSpecies(t *testing.T) {
	cfg := testConfig("mmus")
	cfg.SourceSpecies = "xtro"
	svc := NewService(cfg, seedBlobs(t), WithStoreOpener((&sharedStore{}).open))
	if _, err := svc.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "xtro") {
		t.Fatalf("expected unknown source species error, got %v", err)
	}
}

func TestServiceRunStoreOpenError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(testConfig("mmus"), seedBlobs(t), WithStoreOpener(func(context.Context, *domain.RulesEngine) (domain.PersistentStore, error) {
		return nil, boom
	}))
	if _, err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestServiceRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blobs := seedBlobs(t)
	cancel()
	svc := NewService(testConfig("mmus"), blobs, WithStoreOpener((&sharedStore{}).open))
	if _, err := svc.Run(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(testConfig("mmus"), blobmemory.New())
	if svc.RunID() == "" {
		t.Fatalf("expected generated run id")
	}
	if other := NewService(testConfig("mmus"), blobmemory.New()); other.RunID() == svc.RunID() {
		t.Fatalf("run ids should differ")
	}
	if ReportKey("r90") != "reports/r90.txt" {
		t.Fatalf("unexpected report key %s", ReportKey("r90"))
	}
}

type recordingExporter struct {
	inputs []exports.Input
}

func (r *recordingExporter) EnqueueExport(_ context.Context, in exports.Input) (exports.Record, error) {
	r.inputs = append(r.inputs, in)
	return exports.Record{ID: "exp-1", Species: in.Species, Status: exports.StatusQueued}, nil
}

func TestServiceSchedulesExports(t *testing.T) {
	exporter := &recordingExporter{}
	svc := NewService(testConfig("mmus", "rnor"), seedBlobs(t),
		WithStoreOpener((&sharedStore{}).open), WithExporter(exporter), WithRunID("run-2"))
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(exporter.inputs) != 1 {
		t.Fatalf("expected one export for mmus, got %d", len(exporter.inputs))
	}
	in := exporter.inputs[0]
	if in.Species != "mmus" || in.SpeciesName != mouse || in.Release != "r90" || in.RunID != "run-2" {
		t.Fatalf("unexpected export input %+v", in)
	}
	var reactions, pathways int
	for _, row := range in.Rows {
		switch row.Kind {
		case string(domain.EntityReaction):
			reactions++
		case string(domain.EntityPathway):
			pathways++
		}
	}
	if reactions != 2 || pathways != 1 {
		t.Fatalf("expected 2 reaction and 1 pathway rows, got %d/%d", reactions, pathways)
	}
}
