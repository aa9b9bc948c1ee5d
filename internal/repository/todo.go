package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/queue"
	"github.com/nhle/todosync/internal/store"
)

// TodoRepository reads and writes todos.
type TodoRepository struct {
	store  store.Store
	remote TodoRemote
	conn   Connectivity
	queue  Enqueuer
	log    zerolog.Logger
	now    func() time.Time
}

// NewTodoRepository creates a TodoRepository.
func NewTodoRepository(s store.Store, r TodoRemote, c Connectivity, q Enqueuer, log zerolog.Logger) *TodoRepository {
	return &TodoRepository{
		store:  s,
		remote: r,
		conn:   c,
		queue:  q,
		log:    log.With().Str("repo", "todos").Logger(),
		now:    time.Now,
	}
}

// Get returns one todo, from the server when reachable.
func (r *TodoRepository) Get(ctx context.Context, id string) (model.Todo, error) {
	if r.conn.Online() {
		todo, err := r.remote.FetchTodo(ctx, id)
		if err == nil && todo.ID == "" {
			err = errEmptyReply
		}
		if err == nil {
			var owned bool
			todo, owned = ownedTodo(ctx, r.store, todo)
			if !owned {
				r.log.Warn().Str("todo", id).Msg("fetched todo has no owner, not caching")
			} else if err := r.store.UpsertTodo(ctx, todo); err != nil {
				r.log.Error().Err(err).Str("todo", id).Msg("caching fetched todo")
			}
			return todo, nil
		}
		r.log.Warn().Err(err).Str("todo", id).Msg("remote read failed, serving cache")
	}

	todo, err := r.store.GetTodo(ctx, id)
	if err != nil {
		return model.Todo{}, err
	}
	return *todo, nil
}

// List returns the user's todos whose deadline starts with datePrefix
// ("" for all, "2026-10" for a month, "2026-10-14" for a day).
func (r *TodoRepository) List(ctx context.Context, userID, datePrefix string) ([]model.Todo, error) {
	if r.conn.Online() {
		todos, err := r.remote.FetchTodos(ctx, datePrefix)
		if err == nil {
			todos = ownTodos(todos, userID)
			if err := r.store.UpsertTodos(ctx, todos); err != nil {
				r.log.Error().Err(err).Msg("caching fetched todos")
			}
			return todos, nil
		}
		r.log.Warn().Err(err).Str("prefix", datePrefix).Msg("remote list failed, serving cache")
	}

	return r.store.ListTodos(ctx, store.TodoFilter{UserID: userID, DatePrefix: datePrefix})
}

// Create adds a todo. Offline, the todo gets a client-side id when it has
// none and is replayed as a creation later.
func (r *TodoRepository) Create(ctx context.Context, todo model.Todo) (model.Todo, error) {
	if err := todo.Validate(); err != nil {
		return model.Todo{}, err
	}

	if r.conn.Online() {
		created, err := r.remote.CreateTodo(ctx, todo)
		if err != nil {
			return model.Todo{}, err
		}
		created = confirmedTodo(todo, created)
		if err := r.store.UpsertTodo(ctx, created); err != nil {
			return created, fmt.Errorf("caching created todo: %w", err)
		}
		return created, nil
	}

	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = now
	}
	todo.UpdatedAt = now

	if err := r.store.UpsertTodo(ctx, todo); err != nil {
		return model.Todo{}, err
	}
	if err := enqueue(ctx, r.queue, queue.CreateTodo{Todo: todo}); err != nil {
		return todo, err
	}
	return todo, nil
}

// Update replaces a todo.
func (r *TodoRepository) Update(ctx context.Context, todo model.Todo) (model.Todo, error) {
	if todo.ID == "" {
		return model.Todo{}, fmt.Errorf("%w: todo has no id", model.ErrInvalid)
	}
	if err := todo.Validate(); err != nil {
		return model.Todo{}, err
	}

	if r.conn.Online() {
		updated, err := r.remote.UpdateTodo(ctx, todo)
		if err != nil {
			return model.Todo{}, err
		}
		updated = confirmedTodo(todo, updated)
		if err := r.store.UpsertTodo(ctx, updated); err != nil {
			return updated, fmt.Errorf("caching updated todo: %w", err)
		}
		return updated, nil
	}

	todo.UpdatedAt = r.now().UTC()
	if err := r.store.UpsertTodo(ctx, todo); err != nil {
		return model.Todo{}, err
	}
	if err := enqueue(ctx, r.queue, queue.UpdateTodo{Todo: todo}); err != nil {
		return todo, err
	}
	return todo, nil
}

// Delete removes a todo.
func (r *TodoRepository) Delete(ctx context.Context, id string) error {
	if r.conn.Online() {
		if err := r.remote.DeleteTodo(ctx, id); err != nil {
			return err
		}
		if err := r.store.DeleteTodo(ctx, id); err != nil {
			return fmt.Errorf("removing cached todo: %w", err)
		}
		return nil
	}

	if err := r.store.DeleteTodo(ctx, id); err != nil {
		return err
	}
	return enqueue(ctx, r.queue, queue.DeleteTodo{ID: id})
}

// Toggle flips a todo's completion flag. Offline it needs the todo to be
// cached; the flipped todo is replayed as an update.
func (r *TodoRepository) Toggle(ctx context.Context, id string) (model.Todo, error) {
	if r.conn.Online() {
		got, err := r.remote.ToggleComplete(ctx, id)
		if err != nil {
			return model.Todo{}, err
		}
		todo, err := r.toggled(ctx, id, got)
		if err != nil {
			return model.Todo{}, err
		}
		if err := r.store.UpsertTodo(ctx, todo); err != nil {
			return todo, fmt.Errorf("caching toggled todo: %w", err)
		}
		return todo, nil
	}

	cached, err := r.store.GetTodo(ctx, id)
	if err != nil {
		return model.Todo{}, err
	}
	todo := *cached
	todo.IsCompleted = !todo.IsCompleted
	todo.UpdatedAt = r.now().UTC()

	if err := r.store.UpsertTodo(ctx, todo); err != nil {
		return model.Todo{}, err
	}
	if err := enqueue(ctx, r.queue, queue.UpdateTodo{Todo: todo}); err != nil {
		return todo, err
	}
	return todo, nil
}

// toggled settles the todo to cache after the server flipped id. An empty
// reply flips the cached copy, or reads the todo back when none is cached.
func (r *TodoRepository) toggled(ctx context.Context, id string, got model.Todo) (model.Todo, error) {
	cached, err := r.store.GetTodo(ctx, id)
	if err == nil {
		sent := *cached
		sent.IsCompleted = !sent.IsCompleted
		sent.UpdatedAt = r.now().UTC()
		return confirmedTodo(sent, got), nil
	}
	if got.ID != "" && got.UserID != "" {
		return got, nil
	}

	fetched, ferr := r.remote.FetchTodo(ctx, id)
	if ferr == nil && fetched.ID == "" {
		ferr = errEmptyReply
	}
	if ferr != nil {
		return model.Todo{}, fmt.Errorf("reading back toggled todo %s: %w", id, ferr)
	}
	if fetched.UserID == "" {
		return model.Todo{}, fmt.Errorf("reading back toggled todo %s: %w", id, errNoOwner)
	}
	return fetched, nil
}
