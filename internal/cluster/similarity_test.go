package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func kw(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func TestClusterBySimilarity_GroupsByJaccard(t *testing.T) {
	records := []Record{
		{FileID: "1", Filename: "invoice_march.pdf", Keywords: kw("invoice", "march"), Type: "document"},
		{FileID: "2", Filename: "invoice_april.pdf", Keywords: kw("invoice", "april"), Type: "document"},
		{FileID: "3", Filename: "vacation_photo.jpg", Keywords: kw("vacation", "photo"), Type: "image"},
	}

	groups := ClusterBySimilarity(records, SimilarityOptions{JaccardThreshold: 0.2, LevenshteinThreshold: 0.7, MinSize: 1, MaxSize: 40})
	assert.Len(t, groups, 2)
	assert.Len(t, groups[0].Members, 2) // the two invoices cluster first (largest-first ordering)
}

func TestClusterBySimilarity_EmptyInput(t *testing.T) {
	groups := ClusterBySimilarity(nil, DefaultSimilarityOptions())
	assert.Empty(t, groups)
}

func TestClusterBySimilarity_MergesSmallIntoOther(t *testing.T) {
	records := []Record{
		{FileID: "1", Filename: "a.txt", Keywords: kw("alpha"), Type: "document"},
		{FileID: "2", Filename: "b.txt", Keywords: kw("beta"), Type: "document"},
		{FileID: "3", Filename: "c.jpg", Keywords: kw("gamma"), Type: "image"},
	}
	opt := SimilarityOptions{JaccardThreshold: 0.9, LevenshteinThreshold: 0.99, MinSize: 2, MaxSize: 40}
	groups := ClusterBySimilarity(records, opt)

	total := 0
	for _, g := range groups {
		total += len(g.Members)
	}
	assert.Equal(t, 3, total, "no file should be dropped during merge")
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, jaccard(kw("a", "b"), kw("a", "b")))
	assert.Equal(t, 0.0, jaccard(kw("a"), kw("b")))
	assert.InDelta(t, 1.0/3.0, jaccard(kw("a", "b"), kw("a", "c")), 1e-9)
}

func TestNormalizedLevenshteinSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, normalizedLevenshteinSimilarity("report", "report"))
	assert.Less(t, normalizedLevenshteinSimilarity("report", "xxxxxx"), 0.5)
}

func TestNameGroup_PicksCommonKeywords(t *testing.T) {
	g := Group{Type: "document", Members: []Record{
		{Keywords: kw("invoice", "march")},
		{Keywords: kw("invoice", "april")},
	}}
	name := nameGroup(g)
	assert.Contains(t, name, "Invoice")
}
