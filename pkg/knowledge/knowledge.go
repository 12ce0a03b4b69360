// Package knowledge defines the knowledge-base search collaborator the
// orchestrator consults before invoking the model. Results are advisory
// context only; a failing searcher never blocks a turn.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Result is a single knowledge-base hit.
type Result struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
}

// SearchOptions bounds a search. Zero values take defaults.
type SearchOptions struct {
	TopK     int
	MinScore float64
}

const defaultTopK = 3

// Searcher is the collaborator contract.
type Searcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error)
}

// FormatContext renders results into the context block injected into the
// model prompt. Empty results render empty.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant business knowledge:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Content)
	}
	return b.String()
}

// StaticSearcher serves a fixed document set with naive term-overlap
// scoring. Used in tests and the dev profile.
type StaticSearcher struct {
	docs []Result
}

func NewStaticSearcher(docs ...Result) *StaticSearcher {
	return &StaticSearcher{docs: docs}
}

func (s *StaticSearcher) Search(_ context.Context, query string, opts SearchOptions) ([]Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var hits []Result
	for _, d := range s.docs {
		text := strings.ToLower(d.Title + " " + d.Content)
		var matched int
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		d.Score = float64(matched) / float64(len(terms))
		if d.Score < opts.MinScore {
			continue
		}
		hits = append(hits, d)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}
