package repository

import (
	"context"
	"errors"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

var (
	// errEmptyReply marks a successful read whose body carried no entity.
	errEmptyReply = errors.New("server returned an empty entity")
	errNoOwner    = errors.New("server returned an entity without an owner")
)

// Server replies may leave out what the client already sent. The helpers
// below settle on the copy that goes into the cache.

// confirmedTodo is the todo to cache once the server accepted sent. An
// empty reply confirms sent unchanged; a reply without an owner keeps
// sent's owner.
func confirmedTodo(sent, got model.Todo) model.Todo {
	if got.ID == "" {
		return sent
	}
	if got.UserID == "" {
		got.UserID = sent.UserID
	}
	return got
}

// confirmedTag is confirmedTodo for tags.
func confirmedTag(sent, got model.Tag) model.Tag {
	if got.ID == "" {
		return sent
	}
	if got.UserID == "" {
		got.UserID = sent.UserID
	}
	return got
}

// ownedTodo fills a missing owner from the cached copy of the same todo.
// ok is false when the owner is still unknown.
func ownedTodo(ctx context.Context, s store.Store, todo model.Todo) (model.Todo, bool) {
	if todo.UserID == "" {
		if cached, err := s.GetTodo(ctx, todo.ID); err == nil {
			todo.UserID = cached.UserID
		}
	}
	return todo, todo.UserID != ""
}

// ownedTag is ownedTodo for tags.
func ownedTag(ctx context.Context, s store.Store, tag model.Tag) (model.Tag, bool) {
	if tag.UserID == "" {
		if cached, err := s.GetTag(ctx, tag.ID); err == nil {
			tag.UserID = cached.UserID
		}
	}
	return tag, tag.UserID != ""
}

// ownTodos drops entries without an id and fills missing owners with
// userID.
func ownTodos(todos []model.Todo, userID string) []model.Todo {
	out := todos[:0]
	for _, t := range todos {
		if t.ID == "" {
			continue
		}
		if t.UserID == "" {
			t.UserID = userID
		}
		out = append(out, t)
	}
	return out
}

// ownTags is ownTodos for tags.
func ownTags(tags []model.Tag, userID string) []model.Tag {
	out := tags[:0]
	for _, t := range tags {
		if t.ID == "" {
			continue
		}
		if t.UserID == "" {
			t.UserID = userID
		}
		out = append(out, t)
	}
	return out
}
