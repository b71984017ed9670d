package inference

import (
	"testing"

	"github.com/stretchr/testify/require"

	"orthoinfer/internal/homology"
	"orthoinfer/pkg/domain"
)

const (
	human = "Homo sapiens"
	mouse = "Mus musculus"
)

var (
	hsap = domain.Species{Name: human, Code: "hsap", Abbreviation: "HSA"}
	mmus = domain.Species{Name: mouse, Code: "mmus", Abbreviation: "MMU"}
)

// fixture assembles a small source graph and homology table.
type fixture struct {
	t     *testing.T
	graph *domain.Graph
	edges map[string][]homology.Homolog
	genes map[string][]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := domain.NewGraph()
	require.NoError(t, g.AddSpecies(hsap))
	require.NoError(t, g.AddSpecies(mmus))
	return &fixture{t: t, graph: g, edges: map[string][]homology.Homolog{}, genes: map[string][]string{}}
}

func (f *fixture) homolog(source string, targets ...string) {
	for _, tgt := range targets {
		f.edges[source] = append(f.edges[source], homology.Homolog{Database: "UniProt", Identifier: tgt})
	}
}

func (f *fixture) protein(id domain.DBID, name, ident string) *domain.Protein {
	p := &domain.Protein{
		EntityBase: domain.EntityBase{DBID: id, Names: []string{name}, Species: []string{human}, Compartments: []string{"cytosol"}},
		Reference:  &domain.Reference{Database: "UniProt", Identifier: ident},
	}
	require.NoError(f.t, f.graph.AddEntity(p))
	return p
}

func (f *fixture) mouseProtein(id domain.DBID, name, ident string) *domain.Protein {
	p := &domain.Protein{
		EntityBase: domain.EntityBase{DBID: id, Names: []string{name}, Species: []string{mouse}},
		Reference:  &domain.Reference{Database: "UniProt", Identifier: ident},
	}
	require.NoError(f.t, f.graph.AddEntity(p))
	return p
}

func (f *fixture) chemical(id domain.DBID, name string) *domain.SimpleEntity {
	e := &domain.SimpleEntity{EntityBase: domain.EntityBase{DBID: id, Names: []string{name}, Compartments: []string{"cytosol"}}}
	require.NoError(f.t, f.graph.AddEntity(e))
	return e
}

func (f *fixture) complex(id domain.DBID, name string, components ...domain.DBID) *domain.Complex {
	c := &domain.Complex{
		EntityBase: domain.EntityBase{DBID: id, Names: []string{name}, Species: []string{human}, Compartments: []string{"cytosol"}},
		Components: components,
	}
	require.NoError(f.t, f.graph.AddEntity(c))
	return c
}

func (f *fixture) set(id domain.DBID, name string, kind domain.SetKind, members ...domain.DBID) *domain.EntitySet {
	s := &domain.EntitySet{
		EntityBase: domain.EntityBase{DBID: id, Names: []string{name}, Species: []string{human}},
		SetKind:    kind,
		Members:    members,
	}
	require.NoError(f.t, f.graph.AddEntity(s))
	return s
}

func (f *fixture) reaction(id domain.DBID, inputs, outputs []domain.DBID, catalysts ...domain.DBID) *domain.Reaction {
	r := &domain.Reaction{
		EventBase: domain.EventBase{DBID: id, Name: "reaction " + id.String(), Species: []string{human}},
		Inputs:    inputs,
		Outputs:   outputs,
	}
	for _, c := range catalysts {
		r.CatalystActivities = append(r.CatalystActivities, domain.CatalystActivity{PhysicalEntity: c, Activity: "kinase activity"})
	}
	require.NoError(f.t, f.graph.AddReaction(r))
	return r
}

func (f *fixture) pathway(id domain.DBID, name string, events ...domain.DBID) *domain.Pathway {
	p := &domain.Pathway{EventBase: domain.EventBase{DBID: id, Name: name, Species: []string{human}}, HasEvent: events}
	require.NoError(f.t, f.graph.AddPathway(p))
	return p
}

func (f *fixture) session(opts ...func(*Config)) *Session {
	f.t.Helper()
	cfg := Config{
		Graph:    f.graph,
		Source:   hsap,
		Target:   mmus,
		Homology: homology.NewTable("hsap", "mmus", f.edges),
		Genes:    homology.NewGeneTable("mmus", f.genes),
	}
	for _, o := range opts {
		o(&cfg)
	}
	s, err := NewSession(cfg)
	require.NoError(f.t, err)
	return s
}

// memPrior is an in-memory Prior fed from committed results.
type memPrior struct {
	entities   map[domain.DBID]domain.PhysicalEntity
	reactions  map[domain.DBID]*domain.Reaction
	pathways   map[domain.DBID]*domain.Pathway
	inferences []domain.InferenceRecord
	max        domain.DBID
}

func newMemPrior() *memPrior {
	return &memPrior{
		entities:  map[domain.DBID]domain.PhysicalEntity{},
		reactions: map[domain.DBID]*domain.Reaction{},
		pathways:  map[domain.DBID]*domain.Pathway{},
	}
}

func (m *memPrior) commit(res *ReactionResult) error {
	for _, e := range res.Entities {
		m.entities[e.Base().DBID] = e
		m.bump(e.Base().DBID)
	}
	m.reactions[res.Reaction.DBID] = res.Reaction
	m.bump(res.Reaction.DBID)
	m.inferences = append(m.inferences, res.Inferences...)
	return nil
}

func (m *memPrior) commitPathway(res *PathwayResult) {
	m.pathways[res.Pathway.DBID] = res.Pathway
	m.bump(res.Pathway.DBID)
	m.inferences = append(m.inferences, res.Inferences...)
}

func (m *memPrior) bump(id domain.DBID) {
	if id > m.max {
		m.max = id
	}
}

func (m *memPrior) FindEntity(id domain.DBID) (domain.PhysicalEntity, bool) {
	e, ok := m.entities[id]
	return e, ok
}

func (m *memPrior) FindReaction(id domain.DBID) (*domain.Reaction, bool) {
	r, ok := m.reactions[id]
	return r, ok
}

func (m *memPrior) FindPathway(id domain.DBID) (*domain.Pathway, bool) {
	p, ok := m.pathways[id]
	return p, ok
}

func (m *memPrior) FindInferred(source domain.DBID, species string) (domain.InferenceRecord, bool) {
	for _, rec := range m.inferences {
		if rec.Source == source && rec.Species == species {
			return rec, true
		}
	}
	return domain.InferenceRecord{}, false
}

func (m *memPrior) ListInferences(species string) []domain.InferenceRecord {
	var out []domain.InferenceRecord
	for _, rec := range m.inferences {
		if rec.Species == species {
			out = append(out, rec)
		}
	}
	return out
}

func (m *memPrior) MaxID() domain.DBID { return m.max }
