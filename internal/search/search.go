// Package search provides full-text search over published posts, backed by
// Meilisearch with a PostgreSQL FTS fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Theme   string `json:"theme,omitempty"`
	Status  string `json:"status"`
}

// Query describes a search request.
type Query struct {
	Text        string
	FilterTheme string // empty = all themes
	Limit       int
	Offset      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// PostRecord is the data we index for a post.
type PostRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Theme   string `json:"theme"`
	Status  string `json:"status"`
}
