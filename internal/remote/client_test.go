package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", StaticToken("secret"), WithTimeout(2*time.Second))
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestFetchTodosSendsAuthAndPrefix(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/todos", r.URL.Path)
		assert.Equal(t, "2026-10", r.URL.Query().Get("prefix"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, []model.Todo{
			{ID: "t1", UserID: "u1", Title: "a", Deadline: "2026-10-14", Difficulty: 1},
			{ID: "t2", UserID: "u1", Title: "b", Deadline: "2026-10-15", Difficulty: 2},
		})
	})

	todos, err := c.FetchTodos(context.Background(), "2026-10")
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, "t2", todos[1].ID)
}

func TestCreateTodoSendsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var sent model.Todo
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &sent))
		assert.Equal(t, "write report", sent.Title)

		sent.ID = "server-1"
		writeJSON(t, w, http.StatusCreated, sent)
	})

	created, err := c.CreateTodo(context.Background(), model.Todo{ID: "local-1", Title: "write report"})
	require.NoError(t, err)
	assert.Equal(t, "server-1", created.ID)
}

func TestToggleAndDeletePaths(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(t, w, http.StatusOK, model.Todo{ID: "t1", IsCompleted: true})
	})

	todo, err := c.ToggleComplete(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, todo.IsCompleted)
	require.NoError(t, c.DeleteTodo(context.Background(), "t1"))
	require.NoError(t, c.DeleteTag(context.Background(), "g1"))

	assert.Equal(t, []string{"POST /todos/t1/toggle", "DELETE /todos/t1", "DELETE /tags/g1"}, seen)
}

func TestStatsEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stats/daily/2026-10-14":
			writeJSON(t, w, http.StatusOK, model.DailyStat{UserID: "u1", Date: "2026-10-14", ProductivityScore: 0.8})
		case "/stats/daily":
			assert.Equal(t, "2026-10", r.URL.Query().Get("prefix"))
			writeJSON(t, w, http.StatusOK, []model.DailyStat{{Date: "2026-10-01"}, {Date: "2026-10-02"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	stat, err := c.FetchDailyStat(context.Background(), "2026-10-14")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, stat.ProductivityScore, 1e-9)

	stats, err := c.FetchDailyStats(context.Background(), "2026-10")
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		kind      Kind
		retryable bool
	}{
		{http.StatusUnauthorized, KindUnauthorized, false},
		{http.StatusNotFound, KindNotFound, false},
		{http.StatusConflict, KindConflict, false},
		{http.StatusBadRequest, KindBadRequest, false},
		{http.StatusUnprocessableEntity, KindBadRequest, false},
		{http.StatusTooManyRequests, KindServerError, true},
		{http.StatusInternalServerError, KindServerError, true},
		{http.StatusServiceUnavailable, KindServerError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, map[string]string{"message": "nope"})
			})

			_, err := c.FetchTag(context.Background(), "g1")
			require.Error(t, err)

			var re *Error
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.kind, re.Kind)
			assert.Equal(t, tt.status, re.Code)
			assert.Equal(t, "nope", re.Message)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.kind == KindUnauthorized, IsUnauthorized(err))
		})
	}
}

func TestTransportFailures(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := NewClient(srv.URL, nil)

		_, err := c.FetchTags(context.Background())
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, KindTransport, kind)
		assert.True(t, IsRetryable(err))
	})

	t.Run("undecodable body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		})

		_, err := c.FetchTodo(context.Background(), "t1")
		kind, _ := KindOf(err)
		assert.Equal(t, KindTransport, kind)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })
		c := NewClient(srv.URL, nil, WithTimeout(50*time.Millisecond))

		_, err := c.FetchTags(context.Background())
		kind, _ := KindOf(err)
		assert.Equal(t, KindTransport, kind)
	})

	t.Run("cancelled context", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, []model.Tag{})
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.FetchTags(ctx)
		kind, _ := KindOf(err)
		assert.Equal(t, KindTransport, kind)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", errors.New("keyring locked")
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, failingTokens{})
	_, err := c.FetchTags(context.Background())
	assert.True(t, IsUnauthorized(err))
	assert.False(t, called)
}
