package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orthoinfer/pkg/domain"
)

func TestAssemblePathwaysMirrorsHierarchy(t *testing.T) {
	f := signalling(t)
	f.protein(7, "ORPHAN", "P99999")
	f.reaction(19, []domain.DBID{7}, nil)
	f.pathway(101, "RAF activation", 20)
	f.pathway(100, "MAPK cascade", 21, 101, 19)
	f.pathway(102, "orphan only", 19)
	disease := f.pathway(103, "disease variant", 21)
	disease.Disease = []string{"DOID:162"}

	s := f.session()
	prior := newMemPrior()
	require.NoError(t, s.Run(context.Background(), f.graph.ReactionsInSpecies(human), prior.commit))

	results := s.AssemblePathways(f.graph.TopLevelPathways(human))
	require.Len(t, results, 2)
	assert.Equal(t, domain.DBID(101), results[0].Source.DBID, "sub-pathways come first")
	assert.Equal(t, domain.DBID(100), results[1].Source.DBID)

	sub := results[0].Pathway
	top := results[1].Pathway
	r20, _ := s.InferredEvent(20)
	r21, _ := s.InferredEvent(21)
	assert.Equal(t, []domain.DBID{r20}, sub.HasEvent)
	assert.Equal(t, []domain.DBID{r21, sub.DBID}, top.HasEvent, "source event order is kept")
	assert.Equal(t, []string{mouse}, top.Species)
	assert.Equal(t, []domain.DBID{100}, top.InferredFrom)
	assert.Equal(t, 2, s.Ledger().Pathways)

	again := s.AssemblePathways(f.graph.TopLevelPathways(human))
	assert.Empty(t, again, "pathways are assembled once per session")
}

func TestReusedPathwayGainsNewEvents(t *testing.T) {
	f := signalling(t)
	f.pathway(100, "MAPK cascade", 20, 21)
	prior := newMemPrior()
	prior.pathways[500] = &domain.Pathway{EventBase: domain.EventBase{DBID: 500, Name: "MAPK cascade", Species: []string{mouse}}, HasEvent: []domain.DBID{400}}
	prior.inferences = append(prior.inferences, domain.InferenceRecord{Source: 100, Species: mouse, Target: 500, Kind: string(domain.EntityPathway)})
	prior.max = 500

	s := f.session(func(c *Config) { c.Prior = prior })
	require.NoError(t, s.Run(context.Background(), f.graph.ReactionsInSpecies(human), prior.commit))
	results := s.AssemblePathways(f.graph.TopLevelPathways(human))
	require.Len(t, results, 1)
	res := results[0]
	assert.True(t, res.Reused)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, domain.DBID(400), res.Pathway.HasEvent[0])
	assert.Len(t, prior.pathways[500].HasEvent, 1, "stored pathway is not mutated")
}

func TestLedgerReport(t *testing.T) {
	l := NewLedger(human, mouse)
	assert.Equal(t, "Homo sapiens to Mus musculus: Inferred 0 out of 0 eligible reactions (0.00%)", l.Report())
	l.Eligible = 3
	l.Inferred = 2
	l.Skip(ReasonChimeric)
	l.Skip(ReasonDisease)
	l.Skip(ReasonChimeric)
	assert.Equal(t, "Homo sapiens to Mus musculus: Inferred 2 out of 3 eligible reactions (66.67%)", l.Report())
	assert.Equal(t, []SkipReason{ReasonChimeric, ReasonDisease}, l.SkipReasons())
	assert.Equal(t, 2, l.Skips[ReasonChimeric])
}
