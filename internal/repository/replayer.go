package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/queue"
	"github.com/nhle/todosync/internal/store"
)

var _ queue.Dispatcher = (*Replayer)(nil)

// Replayer sends queued operations to the server and mirrors what the
// server confirms into the local store. It implements queue.Dispatcher.
//
// When the server answers a replayed creation with an id other than the
// client-side one, the cached row is moved to the server id and later
// queued operations naming the old id are rewritten before they are sent.
type Replayer struct {
	store store.Store
	todos TodoRemote
	tags  TagRemote
	log   zerolog.Logger

	mu      sync.Mutex
	aliases map[string]string
}

// NewReplayer creates a Replayer.
func NewReplayer(s store.Store, todos TodoRemote, tags TagRemote, log zerolog.Logger) *Replayer {
	return &Replayer{
		store:   s,
		todos:   todos,
		tags:    tags,
		log:     log.With().Str("component", "replayer").Logger(),
		aliases: make(map[string]string),
	}
}

// Dispatch implements queue.Dispatcher. Only remote failures are returned;
// failures to update the cache afterwards are logged.
func (r *Replayer) Dispatch(ctx context.Context, p queue.Payload) error {
	switch v := p.(type) {
	case queue.CreateTodo:
		todo := r.resolveTodo(v.Todo)
		created, err := r.todos.CreateTodo(ctx, todo)
		if err != nil {
			return err
		}
		r.mirrorTodo(ctx, todo, created)
	case queue.UpdateTodo:
		todo := r.resolveTodo(v.Todo)
		updated, err := r.todos.UpdateTodo(ctx, todo)
		if err != nil {
			return err
		}
		r.mirrorTodo(ctx, todo, updated)
	case queue.DeleteTodo:
		if err := r.todos.DeleteTodo(ctx, r.resolve(v.ID)); err != nil {
			return err
		}
	case queue.CreateTag:
		tag := r.resolveTag(v.Tag)
		created, err := r.tags.CreateTag(ctx, tag)
		if err != nil {
			return err
		}
		r.mirrorTag(ctx, tag, created)
	case queue.UpdateTag:
		tag := r.resolveTag(v.Tag)
		updated, err := r.tags.UpdateTag(ctx, tag)
		if err != nil {
			return err
		}
		r.mirrorTag(ctx, tag, updated)
	case queue.DeleteTag:
		if err := r.tags.DeleteTag(ctx, r.resolve(v.ID)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("replaying %s: unsupported payload", p.Kind())
	}
	return nil
}

func (r *Replayer) resolve(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if to, ok := r.aliases[id]; ok {
		return to
	}
	return id
}

func (r *Replayer) alias(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[from] = to
}

func (r *Replayer) resolveTodo(t model.Todo) model.Todo {
	t.ID = r.resolve(t.ID)
	if t.TagID != nil {
		tagID := r.resolve(*t.TagID)
		t.TagID = &tagID
	}
	return t
}

func (r *Replayer) resolveTag(t model.Tag) model.Tag {
	t.ID = r.resolve(t.ID)
	return t
}

// mirrorTodo caches the server's copy of sent.
func (r *Replayer) mirrorTodo(ctx context.Context, sent, got model.Todo) {
	got = confirmedTodo(sent, got)
	if got.ID != sent.ID {
		r.alias(sent.ID, got.ID)
	}

	err := r.store.RunTransaction(ctx, func(tx store.Tx) error {
		if got.ID != sent.ID {
			if err := tx.DeleteTodo(ctx, sent.ID); err != nil {
				return err
			}
		}
		return tx.UpsertTodo(ctx, got)
	})
	if err != nil {
		r.log.Error().Err(err).Str("todo", got.ID).Msg("caching replayed todo")
	}
}

// mirrorTag caches the server's copy of sent, moving todo relations over
// when the server assigned a new id.
func (r *Replayer) mirrorTag(ctx context.Context, sent, got model.Tag) {
	got = confirmedTag(sent, got)
	if got.ID != sent.ID {
		r.alias(sent.ID, got.ID)
	}

	err := r.store.RunTransaction(ctx, func(tx store.Tx) error {
		if err := tx.UpsertTag(ctx, got); err != nil {
			return err
		}
		if got.ID == sent.ID {
			return nil
		}
		todos, err := tx.ListTodos(ctx, store.TodoFilter{UserID: got.UserID})
		if err != nil {
			return err
		}
		for _, t := range todos {
			if !t.HasTag(sent.ID) {
				continue
			}
			t.TagID = &got.ID
			if err := tx.UpsertTodo(ctx, t); err != nil {
				return err
			}
		}
		return tx.DeleteTag(ctx, sent.ID)
	})
	if err != nil {
		r.log.Error().Err(err).Str("tag", got.ID).Msg("caching replayed tag")
	}
}
