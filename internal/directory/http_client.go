package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient talks to a REST directory API. Groups outside the managed
// namespace prefix are filtered out before the sync engine sees them.
type HTTPClient struct {
	baseURL   string
	token     string
	namespace string
	http      *http.Client
}

// NewHTTPClient creates a directory client for the given base URL and bearer
// token.
func NewHTTPClient(baseURL, token, namespace string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		namespace: namespace,
		http:      &http.Client{Timeout: timeout},
	}
}

type wireGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ParentID    string `json:"parentId,omitempty"`
}

type wireMember struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Active      bool   `json:"active"`
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListManagedGroups returns directory groups filtered to the managed
// namespace.
func (c *HTTPClient) ListManagedGroups(ctx context.Context) ([]Group, error) {
	var wire []wireGroup
	if err := c.get(ctx, "/v1/groups", &wire); err != nil {
		return nil, NewFetchError("list groups", err)
	}

	var groups []Group
	for _, g := range wire {
		if c.namespace != "" && !strings.HasPrefix(g.DisplayName, c.namespace) {
			continue
		}
		groups = append(groups, Group{ID: g.ID, DisplayName: g.DisplayName, ParentID: g.ParentID})
	}
	return groups, nil
}

// ListGroupMembers returns the members of one group.
func (c *HTTPClient) ListGroupMembers(ctx context.Context, groupID string) ([]Member, error) {
	var wire []wireMember
	path := "/v1/groups/" + url.PathEscape(groupID) + "/members"
	if err := c.get(ctx, path, &wire); err != nil {
		return nil, NewFetchError("list members of "+groupID, err)
	}

	members := make([]Member, 0, len(wire))
	for _, m := range wire {
		members = append(members, Member(m))
	}
	return members, nil
}
