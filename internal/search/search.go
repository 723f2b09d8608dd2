package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPage   ResultType = "page"
	ResultThread ResultType = "thread"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	PageID  string     `json:"pageId"`
	WikiID  string     `json:"wikiId"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterWikiID string
	Limit        int
	Offset       int
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

// Indexer can push entities into a search index.
type Indexer interface {
	IndexPage(p PageRecord) error
	IndexThread(t ThreadRecord) error
	DeletePage(id string) error
	DeleteThread(id string) error
}

// PageRecord is the data indexed per published page version.
type PageRecord struct {
	ID      string `json:"id"`
	WikiID  string `json:"wikiId"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Version int64  `json:"version"`
}

// ThreadRecord is the data indexed per comment thread.
type ThreadRecord struct {
	ID       string `json:"id"`
	PageID   string `json:"pageId"`
	WikiID   string `json:"wikiId"`
	Body     string `json:"body"`
	Snapshot string `json:"snapshot"`
	Resolved bool   `json:"resolved"`
}
