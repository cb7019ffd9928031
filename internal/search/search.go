package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet"`
	Status        string `json:"status"`
	InspectorName string `json:"inspectorName"`
	Location      string `json:"location"`
}

// Query describes a search request. UserID restricts hits to one inspector.
type Query struct {
	Text   string
	Status string
	UserID string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push inspections into a search index.
type Indexer interface {
	IndexInspection(rec InspectionRecord) error
	IndexInspections(recs []InspectionRecord) error
	DeleteInspection(id string) error
}

// InspectionRecord is the data we index for an inspection. Notes joins the
// free-text answers.
type InspectionRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Location      string `json:"location"`
	Status        string `json:"status"`
	UserID        string `json:"userId"`
	InspectorName string `json:"inspectorName"`
	Notes         string `json:"notes"`
	CreatedAt     int64  `json:"createdAt"`
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
