package repository

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/store"
)

// DailyStatRepository reads server-computed daily stats. Stats are never
// written locally except as a cache.
type DailyStatRepository struct {
	store  store.Store
	remote DailyStatRemote
	conn   Connectivity
	log    zerolog.Logger
}

// NewDailyStatRepository creates a DailyStatRepository.
func NewDailyStatRepository(s store.Store, r DailyStatRemote, c Connectivity, log zerolog.Logger) *DailyStatRepository {
	return &DailyStatRepository{
		store:  s,
		remote: r,
		conn:   c,
		log:    log.With().Str("repo", "stats").Logger(),
	}
}

// Get returns the user's stat for one day.
func (r *DailyStatRepository) Get(ctx context.Context, userID, date string) (model.DailyStat, error) {
	if r.conn.Online() {
		stat, err := r.remote.FetchDailyStat(ctx, date)
		if err == nil {
			if stat.UserID == "" {
				stat.UserID = userID
			}
			if stat.Date == "" {
				stat.Date = date
			}
			if err := r.store.UpsertDailyStat(ctx, stat); err != nil {
				r.log.Error().Err(err).Str("date", date).Msg("caching fetched stat")
			}
			return stat, nil
		}
		r.log.Warn().Err(err).Str("date", date).Msg("remote read failed, serving cache")
	}

	stat, err := r.store.GetDailyStat(ctx, userID, date)
	if err != nil {
		return model.DailyStat{}, err
	}
	return *stat, nil
}

// List returns the user's stats whose date starts with datePrefix.
func (r *DailyStatRepository) List(ctx context.Context, userID, datePrefix string) ([]model.DailyStat, error) {
	if r.conn.Online() {
		stats, err := r.remote.FetchDailyStats(ctx, datePrefix)
		if err == nil {
			for i := range stats {
				if stats[i].UserID == "" {
					stats[i].UserID = userID
				}
			}
			if err := r.store.UpsertDailyStats(ctx, stats); err != nil {
				r.log.Error().Err(err).Msg("caching fetched stats")
			}
			return stats, nil
		}
		r.log.Warn().Err(err).Str("prefix", datePrefix).Msg("remote list failed, serving cache")
	}

	return r.store.ListDailyStats(ctx, store.DailyStatFilter{UserID: userID, DatePrefix: datePrefix})
}
