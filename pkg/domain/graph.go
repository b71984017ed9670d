package domain

import "fmt"

// Graph is an indexed, read-only snapshot of the curated knowledge base.
// It is populated once through the Add methods and then only read.
type Graph struct {
	species   map[string]Species
	entities  map[DBID]PhysicalEntity
	reactions map[DBID]*Reaction
	pathways  map[DBID]*Pathway
	parents   map[DBID][]DBID
	maxID     DBID
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		species:   make(map[string]Species),
		entities:  make(map[DBID]PhysicalEntity),
		reactions: make(map[DBID]*Reaction),
		pathways:  make(map[DBID]*Pathway),
		parents:   make(map[DBID][]DBID),
	}
}

// AddSpecies registers a species under its homology code.
func (g *Graph) AddSpecies(s Species) error {
	if s.Code == "" || s.Name == "" {
		return fmt.Errorf("species requires name and code")
	}
	g.species[s.Code] = s
	return nil
}

// AddEntity registers a physical entity.
func (g *Graph) AddEntity(e PhysicalEntity) error {
	id := e.Base().DBID
	if err := g.claim(id); err != nil {
		return err
	}
	g.entities[id] = e
	return nil
}

// AddReaction registers a reaction.
func (g *Graph) AddReaction(r *Reaction) error {
	if err := g.claim(r.DBID); err != nil {
		return err
	}
	g.reactions[r.DBID] = r
	return nil
}

// AddPathway registers a pathway and indexes its events' parents.
func (g *Graph) AddPathway(p *Pathway) error {
	if err := g.claim(p.DBID); err != nil {
		return err
	}
	g.pathways[p.DBID] = p
	for _, child := range p.HasEvent {
		g.parents[child] = append(g.parents[child], p.DBID)
	}
	return nil
}

func (g *Graph) claim(id DBID) error {
	if id <= 0 {
		return fmt.Errorf("invalid db id %d", id)
	}
	if _, ok := g.entities[id]; ok {
		return fmt.Errorf("duplicate db id %d", id)
	}
	if _, ok := g.reactions[id]; ok {
		return fmt.Errorf("duplicate db id %d", id)
	}
	if _, ok := g.pathways[id]; ok {
		return fmt.Errorf("duplicate db id %d", id)
	}
	if id > g.maxID {
		g.maxID = id
	}
	return nil
}

// MaxID returns the highest identifier present in the graph.
func (g *Graph) MaxID() DBID { return g.maxID }

// SpeciesByCode resolves a species by its homology code.
func (g *Graph) SpeciesByCode(code string) (Species, bool) {
	s, ok := g.species[code]
	return s, ok
}

// Entity returns the physical entity with the given id.
func (g *Graph) Entity(id DBID) (PhysicalEntity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Reaction returns the reaction with the given id.
func (g *Graph) Reaction(id DBID) (*Reaction, bool) {
	r, ok := g.reactions[id]
	return r, ok
}

// Pathway returns the pathway with the given id.
func (g *Graph) Pathway(id DBID) (*Pathway, bool) {
	p, ok := g.pathways[id]
	return p, ok
}

// Event returns the shared attributes of a reaction or pathway.
func (g *Graph) Event(id DBID) (*EventBase, bool) {
	if r, ok := g.reactions[id]; ok {
		return &r.EventBase, true
	}
	if p, ok := g.pathways[id]; ok {
		return &p.EventBase, true
	}
	return nil, false
}

// Has reports whether any record uses id.
func (g *Graph) Has(id DBID) bool {
	if _, ok := g.entities[id]; ok {
		return true
	}
	_, ok := g.Event(id)
	return ok
}

// Parents returns the pathways listing id in their event list.
func (g *Graph) Parents(id DBID) []DBID {
	return g.parents[id]
}

// ReactionsInSpecies returns the reactions annotated with species, ascending by id.
func (g *Graph) ReactionsInSpecies(species string) []*Reaction {
	ids := make([]DBID, 0, len(g.reactions))
	for id, r := range g.reactions {
		if r.InSpecies(species) {
			ids = append(ids, id)
		}
	}
	SortIDs(ids)
	out := make([]*Reaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.reactions[id])
	}
	return out
}

// TopLevelPathways returns pathways of species not contained in another
// pathway, ascending by id.
func (g *Graph) TopLevelPathways(species string) []*Pathway {
	var ids []DBID
	for id, p := range g.pathways {
		if !p.InSpecies(species) || len(g.Parents(id)) > 0 {
			continue
		}
		ids = append(ids, id)
	}
	SortIDs(ids)
	out := make([]*Pathway, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.pathways[id])
	}
	return out
}

// HasSpecies reports whether e or anything reachable below it carries a
// species annotation.
func (g *Graph) HasSpecies(e PhysicalEntity) bool {
	return g.hasSpecies(e, make(map[DBID]bool))
}

func (g *Graph) hasSpecies(e PhysicalEntity, seen map[DBID]bool) bool {
	base := e.Base()
	if len(base.Species) > 0 {
		return true
	}
	if seen[base.DBID] {
		return false
	}
	seen[base.DBID] = true
	for _, id := range Children(e) {
		child, ok := g.entities[id]
		if !ok {
			continue
		}
		if g.hasSpecies(child, seen) {
			return true
		}
	}
	return false
}

// CollectSpecies adds every species annotation found on e and its
// descendants to into.
func (g *Graph) CollectSpecies(e PhysicalEntity, into map[string]struct{}) {
	g.collectSpecies(e, into, make(map[DBID]bool))
}

func (g *Graph) collectSpecies(e PhysicalEntity, into map[string]struct{}, seen map[DBID]bool) {
	base := e.Base()
	if seen[base.DBID] {
		return
	}
	seen[base.DBID] = true
	for _, s := range base.Species {
		into[s] = struct{}{}
	}
	for _, id := range Children(e) {
		if child, ok := g.entities[id]; ok {
			g.collectSpecies(child, into, seen)
		}
	}
}

// Descendants returns every event reachable from the pathway through
// HasEvent, not including the pathway itself.
func (g *Graph) Descendants(pathwayID DBID) map[DBID]struct{} {
	out := make(map[DBID]struct{})
	var walk func(id DBID)
	walk = func(id DBID) {
		p, ok := g.pathways[id]
		if !ok {
			return
		}
		for _, child := range p.HasEvent {
			if _, done := out[child]; done {
				continue
			}
			out[child] = struct{}{}
			walk(child)
		}
	}
	walk(pathwayID)
	return out
}
