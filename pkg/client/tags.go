package client

import (
	"context"
	"net/http"
)

// ListTags returns predefined and owned tags.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/tags", out: &tags, authed: true}); err != nil {
		return nil, err
	}
	return tags, nil
}

// CreateTag creates an owned tag. color is a hex colour such as #3B82F6.
func (c *Client) CreateTag(ctx context.Context, name, color string) (*Tag, error) {
	body := struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}{name, color}
	return c.tag(ctx, call{method: http.MethodPost, path: "/api/tags", body: body})
}

func (c *Client) UpdateTag(ctx context.Context, id int64, u TagUpdate) (*Tag, error) {
	return c.tag(ctx, call{method: http.MethodPatch, path: idPath("/api/tags", id), body: u})
}

func (c *Client) DeleteTag(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodDelete, path: idPath("/api/tags", id), authed: true})
}

func (c *Client) tag(ctx context.Context, cl call) (*Tag, error) {
	var t Tag
	cl.out, cl.authed = &t, true
	if err := c.do(ctx, cl); err != nil {
		return nil, err
	}
	return &t, nil
}
