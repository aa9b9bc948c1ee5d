package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nhle/todosync/internal/model"
)

// FetchTodo returns a single todo.
func (c *Client) FetchTodo(ctx context.Context, id string) (model.Todo, error) {
	var todo model.Todo
	err := c.do(ctx, http.MethodGet, "/todos/"+url.PathEscape(id), nil, nil, &todo)
	return todo, err
}

// FetchTodos lists the caller's todos whose deadline starts with
// datePrefix. An empty prefix lists everything.
func (c *Client) FetchTodos(ctx context.Context, datePrefix string) ([]model.Todo, error) {
	var todos []model.Todo
	err := c.do(ctx, http.MethodGet, "/todos", prefixQuery(datePrefix), nil, &todos)
	return todos, err
}

// CreateTodo creates a todo and returns the server's copy, whose ID may
// differ from the one sent.
func (c *Client) CreateTodo(ctx context.Context, todo model.Todo) (model.Todo, error) {
	var created model.Todo
	err := c.do(ctx, http.MethodPost, "/todos", nil, todo, &created)
	return created, err
}

// UpdateTodo replaces a todo and returns the server's copy.
func (c *Client) UpdateTodo(ctx context.Context, todo model.Todo) (model.Todo, error) {
	var updated model.Todo
	err := c.do(ctx, http.MethodPut, "/todos/"+url.PathEscape(todo.ID), nil, todo, &updated)
	return updated, err
}

// DeleteTodo deletes a todo.
func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil, nil)
}

// ToggleComplete flips a todo's completion flag on the server.
func (c *Client) ToggleComplete(ctx context.Context, id string) (model.Todo, error) {
	var todo model.Todo
	err := c.do(ctx, http.MethodPost, "/todos/"+url.PathEscape(id)+"/toggle", nil, nil, &todo)
	return todo, err
}
