package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocs() []Result {
	return []Result{
		{Title: "Scheduling policy", Content: "Work orders are scheduled in two hour windows"},
		{Title: "Billing terms", Content: "Invoices are due within fourteen days"},
		{Title: "Service area", Content: "We serve the greater metro area only"},
	}
}

func TestStaticSearcherRanksByOverlap(t *testing.T) {
	s := NewStaticSearcher(testDocs()...)

	hits, err := s.Search(context.Background(), "when are invoices due", SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Billing terms", hits[0].Title)
}

func TestStaticSearcherTopKAndMinScore(t *testing.T) {
	s := NewStaticSearcher(testDocs()...)

	hits, err := s.Search(context.Background(), "area windows days", SearchOptions{TopK: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.Search(context.Background(), "area windows days", SearchOptions{MinScore: 0.9})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStaticSearcherEmptyQuery(t *testing.T) {
	s := NewStaticSearcher(testDocs()...)
	hits, err := s.Search(context.Background(), "   ", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFormatContext(t *testing.T) {
	assert.Empty(t, FormatContext(nil))

	out := FormatContext([]Result{{Title: "Billing terms", Content: "due in 14 days"}})
	assert.Contains(t, out, "Billing terms")
	assert.Contains(t, out, "due in 14 days")
}
