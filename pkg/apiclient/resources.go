package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tutoria/dashboard/pkg/auth"
)

// Collection is a REST resource of the management API
type Collection[T any] struct {
	client *Client
	path   string
}

func newCollection[T any](c *Client, path string) Collection[T] {
	return Collection[T]{client: c, path: path}
}

// List returns the resource items filtered by query
func (col Collection[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	path := col.path
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var raw json.RawMessage
	if err := col.client.do(ctx, APIManagement, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

// Get returns one item
func (col Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	var item T
	if err := col.client.do(ctx, APIManagement, http.MethodGet, col.itemPath(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create posts a new item and returns it as stored
func (col Collection[T]) Create(ctx context.Context, in interface{}) (*T, error) {
	var item T
	if err := col.client.do(ctx, APIManagement, http.MethodPost, col.path, in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Update replaces the fields of an item present in in
func (col Collection[T]) Update(ctx context.Context, id string, in interface{}) (*T, error) {
	var item T
	if err := col.client.do(ctx, APIManagement, http.MethodPut, col.itemPath(id), in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes an item
func (col Collection[T]) Delete(ctx context.Context, id string) error {
	return col.client.do(ctx, APIManagement, http.MethodDelete, col.itemPath(id), nil, nil)
}

func (col Collection[T]) itemPath(id string) string {
	return col.path + "/" + url.PathEscape(id)
}

// decodeList accepts a bare array or an envelope with items or data
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}

	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return items, nil
	}

	var envelope struct {
		Items []T `json:"items"`
		Data  []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	switch {
	case envelope.Items != nil:
		return envelope.Items, nil
	case envelope.Data != nil:
		return envelope.Data, nil
	}
	return []T{}, nil
}

// Universities is the /universities collection
func (c *Client) Universities() Collection[University] {
	return newCollection[University](c, "/universities")
}

// Courses is the /courses collection
func (c *Client) Courses() Collection[Course] {
	return newCollection[Course](c, "/courses")
}

// Modules is the /modules collection
func (c *Client) Modules() Collection[Module] {
	return newCollection[Module](c, "/modules")
}

// Files is the /files collection
func (c *Client) Files() Collection[File] {
	return newCollection[File](c, "/files")
}

// Professors is the /professors collection
func (c *Client) Professors() Collection[auth.User] {
	return newCollection[auth.User](c, "/professors")
}

// Students is the /students collection
func (c *Client) Students() Collection[auth.User] {
	return newCollection[auth.User](c, "/students")
}

// AccessTokens is the /tokens collection
func (c *Client) AccessTokens() Collection[AccessToken] {
	return newCollection[AccessToken](c, "/tokens")
}

// Users is the /users collection
func (c *Client) Users() Collection[auth.User] {
	return newCollection[auth.User](c, "/users")
}

// AIModels is the /ai-models collection
func (c *Client) AIModels() Collection[AIModel] {
	return newCollection[AIModel](c, "/ai-models")
}

// AnalyticsOverview fetches the headline counters, scoped to universityID
// when it is not empty
func (c *Client) AnalyticsOverview(ctx context.Context, universityID string) (*AnalyticsOverview, error) {
	path := "/analytics/overview"
	if universityID != "" {
		path += "?" + url.Values{"universityId": {universityID}}.Encode()
	}
	var overview AnalyticsOverview
	if err := c.do(ctx, APIManagement, http.MethodGet, path, nil, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// AnalyticsUsage fetches daily usage for the last days days
func (c *Client) AnalyticsUsage(ctx context.Context, universityID string, days int) ([]UsagePoint, error) {
	query := url.Values{}
	if universityID != "" {
		query.Set("universityId", universityID)
	}
	if days > 0 {
		query.Set("days", fmt.Sprint(days))
	}
	path := "/analytics/usage"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var raw json.RawMessage
	if err := c.do(ctx, APIManagement, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[UsagePoint](raw)
}

// ImprovePrompt asks the AI API to rewrite a system prompt
func (c *Client) ImprovePrompt(ctx context.Context, req ImprovePromptRequest) (*ImprovePromptResponse, error) {
	var resp ImprovePromptResponse
	if err := c.do(ctx, APIAI, http.MethodPost, "/improve-prompt", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
