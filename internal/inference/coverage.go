package inference

import (
	"orthoinfer/internal/homology"
	"orthoinfer/pkg/domain"
)

// DefaultThreshold is the minimum percentage of distinct proteins with a
// homolog for a complex or polymer to be inferred.
const DefaultThreshold = 75

// Coverage summarises the homology coverage of the proteins below a node.
type Coverage struct {
	// Total is the number of distinct protein identifiers reachable.
	Total int
	// Inferred is how many of them have at least one homolog.
	Inferred int
	// MaxBranch is the largest homolog count of any single protein.
	MaxBranch int
}

// Percent returns Inferred*100/Total using integer division. It returns 0
// when Total is 0; callers check Applicable first.
func (c Coverage) Percent() int {
	if c.Total == 0 {
		return 0
	}
	return c.Inferred * 100 / c.Total
}

// Applicable reports whether any protein was found.
func (c Coverage) Applicable() bool { return c.Total > 0 }

// Meets reports whether coverage reaches threshold. A node without proteins
// always meets it.
func (c Coverage) Meets(threshold int) bool {
	if !c.Applicable() {
		return true
	}
	return c.Inferred > 0 && c.Percent() >= threshold
}

// Counter counts distinct proteins reachable from a node through component,
// repeated-unit, member and candidate edges.
type Counter struct {
	graph *domain.Graph
	table *homology.Table
	cache map[domain.DBID]Coverage
}

// NewCounter returns a counter over graph using table for homolog lookups.
func NewCounter(graph *domain.Graph, table *homology.Table) *Counter {
	return &Counter{graph: graph, table: table, cache: make(map[domain.DBID]Coverage)}
}

// Count returns the coverage of e.
func (c *Counter) Count(e domain.PhysicalEntity) Coverage {
	id := e.Base().DBID
	if cov, ok := c.cache[id]; ok {
		return cov
	}
	ids := make(map[string]struct{})
	c.collect(e, ids, make(map[domain.DBID]bool))
	var cov Coverage
	for ident := range ids {
		cov.Total++
		n := len(c.table.Lookup(ident))
		if n > 0 {
			cov.Inferred++
		}
		if n > cov.MaxBranch {
			cov.MaxBranch = n
		}
	}
	c.cache[id] = cov
	return cov
}

func (c *Counter) collect(e domain.PhysicalEntity, into map[string]struct{}, seen map[domain.DBID]bool) {
	id := e.Base().DBID
	if seen[id] {
		return
	}
	seen[id] = true
	if p, ok := e.(*domain.Protein); ok {
		if p.Reference != nil && p.Reference.Identifier != "" {
			into[p.Reference.Identifier] = struct{}{}
		}
		return
	}
	for _, child := range domain.Children(e) {
		if ce, ok := c.graph.Entity(child); ok {
			c.collect(ce, into, seen)
		}
	}
}
