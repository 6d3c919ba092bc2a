package search

// Result is a single catalog hit returned to the caller.
type Result struct {
	SubServiceID   string `json:"subServiceId"`
	SubServiceName string `json:"subServiceName"`
	CategoryID     string `json:"categoryId"`
	CategoryTitle  string `json:"categoryTitle"`
}

type Query struct {
	Text  string
	Limit int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Ranker orders catalog entries for a query. Meili is the only implementation.
type Ranker interface {
	Rank(q Query) ([]string, error)
	Healthy() bool
}

// ServiceRecord is the data indexed per sub-service.
type ServiceRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CategoryID    string `json:"categoryId"`
	CategoryTitle string `json:"categoryTitle"`
}
