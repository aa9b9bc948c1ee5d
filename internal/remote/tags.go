package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nhle/todosync/internal/model"
)

// FetchTag returns a single tag.
func (c *Client) FetchTag(ctx context.Context, id string) (model.Tag, error) {
	var tag model.Tag
	err := c.do(ctx, http.MethodGet, "/tags/"+url.PathEscape(id), nil, nil, &tag)
	return tag, err
}

// FetchTags lists the caller's tags.
func (c *Client) FetchTags(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	err := c.do(ctx, http.MethodGet, "/tags", nil, nil, &tags)
	return tags, err
}

// CreateTag creates a tag and returns the server's copy.
func (c *Client) CreateTag(ctx context.Context, tag model.Tag) (model.Tag, error) {
	var created model.Tag
	err := c.do(ctx, http.MethodPost, "/tags", nil, tag, &created)
	return created, err
}

// UpdateTag replaces a tag and returns the server's copy.
func (c *Client) UpdateTag(ctx context.Context, tag model.Tag) (model.Tag, error) {
	var updated model.Tag
	err := c.do(ctx, http.MethodPut, "/tags/"+url.PathEscape(tag.ID), nil, tag, &updated)
	return updated, err
}

// DeleteTag deletes a tag.
func (c *Client) DeleteTag(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tags/"+url.PathEscape(id), nil, nil, nil)
}
