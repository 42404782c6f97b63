package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/arborlabs/arbor/models"
)

// SearchQuery is an attribute-match filter over the owner's nodes. Match
// values are compared by exact field equality; matching against a list
// field ("contents") means "list contains value". After is the opaque
// pagination cursor from a previous page.
type SearchQuery struct {
	Match map[string]any
	After string
}

// SearchPage is one page of search results. The store caps page size; an
// empty page means the walk is complete.
type SearchPage struct {
	Nodes []models.Node
}

// Next returns the cursor for the page after this one, or "" when this
// page was empty.
func (p *SearchPage) Next() string {
	if len(p.Nodes) == 0 {
		return ""
	}
	return p.Nodes[len(p.Nodes)-1].ID
}

// Search runs an attribute-match search over the owner's nodes.
func (c *Client) Search(ctx context.Context, query SearchQuery) (*SearchPage, error) {
	params := url.Values{}
	if len(query.Match) > 0 {
		encoded, err := json.Marshal(query.Match)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal search match: %w", err)
		}
		params.Set("match", string(encoded))
	}
	if query.After != "" {
		params.Set("after", query.After)
	}

	var resp nodesResponse
	if err := c.doRequest(ctx, http.MethodGet, c.nodePath()+"/search", params, nil, &resp); err != nil {
		return nil, err
	}
	return &SearchPage{Nodes: resp.Nodes}, nil
}
