package search

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bascanada/forklift-ops/pkg/http"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

// Client is what the monitoring components need from the search backend.
type Client interface {
	Search(ctx context.Context, index string, request SearchRequest) (SearchResult, error)
	Update(ctx context.Context, index, id string, doc Map) error
	Ping(ctx context.Context) error
}

type Target struct {
	Endpoint string `json:"endpoint"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	// DocType is only needed by clusters that still route updates by mapping
	// type (/<index>/<type>/<id>/_update).
	DocType string `json:"docType,omitempty"`
}

type httpSearchClient struct {
	target Target
	client http.HttpClient
}

func GetClient(target Target) Client {
	c := http.GetClient(target.Endpoint)
	switch {
	case target.APIKey != "":
		c = c.WithAuth(http.HeaderAuth{Headers: ty.MS{"Authorization": "ApiKey " + target.APIKey}})
	case target.Username != "":
		c = c.WithAuth(http.BasicAuth{Username: target.Username, Password: target.Password})
	}
	return &httpSearchClient{target: target, client: c}
}

func (sc *httpSearchClient) Search(ctx context.Context, index string, request SearchRequest) (SearchResult, error) {
	var result SearchResult

	if index == "" {
		return result, fmt.Errorf("index is not provided for search")
	}

	err := sc.client.Get(ctx, fmt.Sprintf("/%s/_search", index), ty.MS{}, &request, &result)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search %s: %w", index, err)
	}

	return result, nil
}

func (sc *httpSearchClient) Update(ctx context.Context, index, id string, doc Map) error {
	path := fmt.Sprintf("/%s/_update/%s", index, url.PathEscape(id))
	if sc.target.DocType != "" {
		path = fmt.Sprintf("/%s/%s/%s/_update", index, sc.target.DocType, url.PathEscape(id))
	}

	body := Map{"doc": doc}
	if err := sc.client.PostJson(ctx, path, ty.MS{}, body, nil); err != nil {
		return fmt.Errorf("update %s/%s: %w", index, id, err)
	}
	return nil
}

func (sc *httpSearchClient) Ping(ctx context.Context) error {
	return sc.client.Head(ctx, "/")
}
