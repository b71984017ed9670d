package homology

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	input := strings.Join([]string{
		"# header",
		"P04637\tUniProt:P02340",
		"",
		"Q9Y6K9\tUniProt:Q9WUQ1 ENSEMBL:ENSMUSP0001 UniProt:Q9WUQ1",
	}, "\n")
	table, err := ParseTable(strings.NewReader(input), "hsap", "mmus")
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []Homolog{{Database: "UniProt", Identifier: "P02340"}}, table.Lookup("P04637"))
	assert.Equal(t, []Homolog{
		{Database: "UniProt", Identifier: "Q9WUQ1"},
		{Database: "ENSEMBL", Identifier: "ENSMUSP0001"},
	}, table.Lookup("Q9Y6K9"))
	assert.True(t, table.Has("P04637"))
	assert.False(t, table.Has("missing"))
	assert.Equal(t, "UniProt:P02340", table.Lookup("P04637")[0].String())
}

func TestParseTableErrors(t *testing.T) {
	_, err := ParseTable(strings.NewReader("P1 UniProt:Q1"), "hsap", "mmus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = ParseTable(strings.NewReader("P1\tUniProt:Q1\nP2\tQ2"), "hsap", "mmus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestNilTableIsEmpty(t *testing.T) {
	var table *Table
	assert.Nil(t, table.Lookup("x"))
	assert.Zero(t, table.Len())
}

func TestParseGeneTableInvertsMapping(t *testing.T) {
	input := "ENSMUSG2\tQ1 Q2\nENSMUSG1\tQ1\n"
	genes, err := ParseGeneTable(strings.NewReader(input), "mmus")
	require.NoError(t, err)
	assert.Equal(t, []string{"ENSMUSG1", "ENSMUSG2"}, genes.Genes("Q1"))
	assert.Equal(t, []string{"ENSMUSG2"}, genes.Genes("Q2"))
	assert.Empty(t, genes.Genes("Q3"))

	_, err = ParseGeneTable(strings.NewReader("no-tab-here"), "mmus")
	assert.Error(t, err)
}
