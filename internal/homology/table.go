// Package homology parses the precomputed protein-homology tables that feed
// orthologous inference and loads them from the blob store.
package homology

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Homolog is one target-species protein mapped from a source protein.
type Homolog struct {
	Database   string
	Identifier string
}

func (h Homolog) String() string { return h.Database + ":" + h.Identifier }

// Table maps source protein identifiers to their target-species homologs for
// one species pair.
type Table struct {
	Source string
	Target string
	edges  map[string][]Homolog
}

// NewTable builds a table from explicit edges. Mostly used by tests.
func NewTable(source, target string, edges map[string][]Homolog) *Table {
	t := &Table{Source: source, Target: target, edges: make(map[string][]Homolog, len(edges))}
	for id, hs := range edges {
		t.edges[id] = append([]Homolog(nil), hs...)
	}
	return t
}

// ParseTable reads lines of the form
//
//	sourceProteinId<TAB>DB:target DB:target ...
//
// Blank lines and lines starting with '#' are ignored. Repeated homologs for
// one source id are collapsed.
func ParseTable(r io.Reader, source, target string) (*Table, error) {
	t := &Table{Source: source, Target: target, edges: make(map[string][]Homolog)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id, rest, ok := strings.Cut(text, "\t")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("homology %s_%s line %d: missing tab separator", source, target, line)
		}
		for _, field := range strings.Fields(rest) {
			db, ident, ok := strings.Cut(field, ":")
			if !ok || db == "" || ident == "" {
				return nil, fmt.Errorf("homology %s_%s line %d: malformed homolog %q", source, target, line, field)
			}
			t.add(id, Homolog{Database: db, Identifier: ident})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("homology %s_%s: %w", source, target, err)
	}
	return t, nil
}

func (t *Table) add(id string, h Homolog) {
	for _, existing := range t.edges[id] {
		if existing == h {
			return
		}
	}
	t.edges[id] = append(t.edges[id], h)
}

// Lookup returns the homologs of a source protein identifier in file order.
func (t *Table) Lookup(id string) []Homolog {
	if t == nil {
		return nil
	}
	return t.edges[id]
}

// Has reports whether id has at least one homolog.
func (t *Table) Has(id string) bool { return len(t.Lookup(id)) > 0 }

// Len returns the number of source identifiers with homologs.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.edges)
}

// GeneTable maps target protein identifiers to the genes encoding them.
type GeneTable struct {
	Species string
	genes   map[string][]string
}

// ParseGeneTable reads lines of the form
//
//	geneId<TAB>protein protein ...
//
// and inverts them into protein -> genes.
func ParseGeneTable(r io.Reader, species string) (*GeneTable, error) {
	g := &GeneTable{Species: species, genes: make(map[string][]string)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		gene, rest, ok := strings.Cut(text, "\t")
		gene = strings.TrimSpace(gene)
		if !ok || gene == "" {
			return nil, fmt.Errorf("gene table %s line %d: missing tab separator", species, line)
		}
		for _, protein := range strings.Fields(rest) {
			g.add(protein, gene)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("gene table %s: %w", species, err)
	}
	for p := range g.genes {
		sort.Strings(g.genes[p])
	}
	return g, nil
}

// NewGeneTable builds a gene table from protein -> genes edges.
func NewGeneTable(species string, genes map[string][]string) *GeneTable {
	g := &GeneTable{Species: species, genes: make(map[string][]string, len(genes))}
	for p, gs := range genes {
		for _, gene := range gs {
			g.add(p, gene)
		}
	}
	return g
}

func (g *GeneTable) add(protein, gene string) {
	for _, existing := range g.genes[protein] {
		if existing == gene {
			return
		}
	}
	g.genes[protein] = append(g.genes[protein], gene)
}

// Genes returns the genes encoding protein, sorted.
func (g *GeneTable) Genes(protein string) []string {
	if g == nil {
		return nil
	}
	return g.genes[protein]
}
