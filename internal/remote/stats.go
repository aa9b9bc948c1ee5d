package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nhle/todosync/internal/model"
)

// FetchDailyStat returns the caller's stat for one day (YYYY-MM-DD).
func (c *Client) FetchDailyStat(ctx context.Context, date string) (model.DailyStat, error) {
	var stat model.DailyStat
	err := c.do(ctx, http.MethodGet, "/stats/daily/"+url.PathEscape(date), nil, nil, &stat)
	return stat, err
}

// FetchDailyStats lists the caller's stats whose date starts with
// datePrefix.
func (c *Client) FetchDailyStats(ctx context.Context, datePrefix string) ([]model.DailyStat, error) {
	var stats []model.DailyStat
	err := c.do(ctx, http.MethodGet, "/stats/daily", prefixQuery(datePrefix), nil, &stats)
	return stats, err
}
