package cosmos

import "github.com/roach88/cosmongo/internal/queryir"

// ItemResponse is the result of a single-item operation.
type ItemResponse struct {
	// Resource is the document in Cosmos form, nil when there is none
	// (a 404 read, a delete).
	Resource map[string]any `json:"resource"`

	StatusCode int `json:"statusCode"`

	// RequestCharge is always 0; backends do not meter requests.
	RequestCharge float64 `json:"requestCharge"`
}

// FeedResponse is the result of a query.
type FeedResponse struct {
	// Resources holds documents for a find, bare numbers for a scalar
	// aggregate and objects for an object aggregate.
	Resources []any `json:"resources"`

	RequestCharge float64 `json:"requestCharge"`

	// HasMoreResults is always false; results are fetched in one page.
	HasMoreResults bool `json:"hasMoreResults"`

	// Diagnostics lists the degradations applied while translating the
	// query. Empty when the query translated cleanly.
	Diagnostics []queryir.Diagnostic `json:"diagnostics,omitempty"`
}

// OperationResult is the outcome of one batch operation.
type OperationResult struct {
	Operation  OperationType  `json:"operationType"`
	ID         string         `json:"id,omitempty"`
	StatusCode int            `json:"statusCode"`
	Resource   map[string]any `json:"resource,omitempty"`
}

// BatchResponse holds one result per executed batch operation, in order.
// After a failure it holds the results of the operations that ran.
type BatchResponse struct {
	Results []OperationResult `json:"results"`
}

// Succeeded reports whether every executed operation returned 2xx.
func (b *BatchResponse) Succeeded() bool {
	for _, r := range b.Results {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			return false
		}
	}
	return true
}
