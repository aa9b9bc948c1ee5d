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

// TagRepository reads and writes tags and keeps names unique per user.
type TagRepository struct {
	store  store.Store
	remote TagRemote
	conn   Connectivity
	queue  Enqueuer
	log    zerolog.Logger
	now    func() time.Time
}

// NewTagRepository creates a TagRepository.
func NewTagRepository(s store.Store, r TagRemote, c Connectivity, q Enqueuer, log zerolog.Logger) *TagRepository {
	return &TagRepository{
		store:  s,
		remote: r,
		conn:   c,
		queue:  q,
		log:    log.With().Str("repo", "tags").Logger(),
		now:    time.Now,
	}
}

// Get returns one tag, from the server when reachable.
func (r *TagRepository) Get(ctx context.Context, id string) (model.Tag, error) {
	if r.conn.Online() {
		tag, err := r.remote.FetchTag(ctx, id)
		if err == nil && tag.ID == "" {
			err = errEmptyReply
		}
		if err == nil {
			var owned bool
			tag, owned = ownedTag(ctx, r.store, tag)
			if !owned {
				r.log.Warn().Str("tag", id).Msg("fetched tag has no owner, not caching")
			} else if err := r.store.UpsertTag(ctx, tag); err != nil {
				r.log.Error().Err(err).Str("tag", id).Msg("caching fetched tag")
			}
			return tag, nil
		}
		r.log.Warn().Err(err).Str("tag", id).Msg("remote read failed, serving cache")
	}

	tag, err := r.store.GetTag(ctx, id)
	if err != nil {
		return model.Tag{}, err
	}
	return *tag, nil
}

// List returns the user's tags.
func (r *TagRepository) List(ctx context.Context, userID string) ([]model.Tag, error) {
	if r.conn.Online() {
		tags, err := r.remote.FetchTags(ctx)
		if err == nil {
			tags = ownTags(tags, userID)
			if err := r.store.UpsertTags(ctx, tags); err != nil {
				r.log.Error().Err(err).Msg("caching fetched tags")
			}
			return tags, nil
		}
		r.log.Warn().Err(err).Msg("remote list failed, serving cache")
	}

	return r.store.ListTags(ctx, store.TagFilter{UserID: userID})
}

// checkName fails with DuplicateNameError when another of the owner's
// cached tags already has tag's name.
func (r *TagRepository) checkName(ctx context.Context, tag model.Tag) error {
	existing, err := r.store.ListTags(ctx, store.TagFilter{UserID: tag.UserID})
	if err != nil {
		return fmt.Errorf("checking tag name: %w", err)
	}
	for _, other := range existing {
		if other.ID != tag.ID && model.SameName(other.Name, tag.Name) {
			return &DuplicateNameError{Name: tag.Name, ExistingID: other.ID}
		}
	}
	return nil
}

// Create adds a tag.
func (r *TagRepository) Create(ctx context.Context, tag model.Tag) (model.Tag, error) {
	if err := tag.Validate(); err != nil {
		return model.Tag{}, err
	}
	if err := r.checkName(ctx, tag); err != nil {
		return model.Tag{}, err
	}

	if r.conn.Online() {
		created, err := r.remote.CreateTag(ctx, tag)
		if err != nil {
			return model.Tag{}, err
		}
		created = confirmedTag(tag, created)
		if err := r.store.UpsertTag(ctx, created); err != nil {
			return created, fmt.Errorf("caching created tag: %w", err)
		}
		return created, nil
	}

	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = now

	if err := r.store.UpsertTag(ctx, tag); err != nil {
		return model.Tag{}, err
	}
	if err := enqueue(ctx, r.queue, queue.CreateTag{Tag: tag}); err != nil {
		return tag, err
	}
	return tag, nil
}

// Update replaces a tag.
func (r *TagRepository) Update(ctx context.Context, tag model.Tag) (model.Tag, error) {
	if tag.ID == "" {
		return model.Tag{}, fmt.Errorf("%w: tag has no id", model.ErrInvalid)
	}
	if err := tag.Validate(); err != nil {
		return model.Tag{}, err
	}
	if err := r.checkName(ctx, tag); err != nil {
		return model.Tag{}, err
	}

	if r.conn.Online() {
		updated, err := r.remote.UpdateTag(ctx, tag)
		if err != nil {
			return model.Tag{}, err
		}
		updated = confirmedTag(tag, updated)
		if err := r.store.UpsertTag(ctx, updated); err != nil {
			return updated, fmt.Errorf("caching updated tag: %w", err)
		}
		return updated, nil
	}

	tag.UpdatedAt = r.now().UTC()
	if err := r.store.UpsertTag(ctx, tag); err != nil {
		return model.Tag{}, err
	}
	if err := enqueue(ctx, r.queue, queue.UpdateTag{Tag: tag}); err != nil {
		return tag, err
	}
	return tag, nil
}

// Delete removes a tag. Cached todos that used it keep existing with
// their tag relation cleared.
func (r *TagRepository) Delete(ctx context.Context, id string) error {
	if r.conn.Online() {
		if err := r.remote.DeleteTag(ctx, id); err != nil {
			return err
		}
		if err := r.store.DeleteTag(ctx, id); err != nil {
			return fmt.Errorf("removing cached tag: %w", err)
		}
		return nil
	}

	if err := r.store.DeleteTag(ctx, id); err != nil {
		return err
	}
	return enqueue(ctx, r.queue, queue.DeleteTag{ID: id})
}
