// Package search holds the query documents, result shapes and HTTP client
// used to talk to an Elasticsearch/OpenSearch compatible backend.
package search

import (
	"encoding/json"

	"github.com/bascanada/forklift-ops/pkg/ty"
)

type SortItem map[string]map[string]string
type Map map[string]interface{}

type SearchRequest struct {
	Query Map        `json:"query"`
	Size  int        `json:"size"`
	Sort  []SortItem `json:"sort,omitempty"`
}

type SearchResult struct {
	Took int  `json:"took"`
	Hits Hits `json:"hits"`
}

type Hit struct {
	Index  string   `json:"_index"`
	Type   string   `json:"_type,omitempty"`
	Id     string   `json:"_id"`
	Score  *float64 `json:"_score"`
	Source ty.MI    `json:"_source"`
}

type Hits struct {
	Total Total `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Total is the hit count reported by the backend. Older clusters send a bare
// number, newer ones an object with a relation.
type Total struct {
	Value    int    `json:"value"`
	Relation string `json:"relation,omitempty"`
}

func (t *Total) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		t.Value = n
		t.Relation = "eq"
		return nil
	}

	type total Total
	var v total
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Total(v)
	return nil
}
