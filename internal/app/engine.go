package app

import (
	"context"
	"fmt"
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/todosync/internal/connectivity"
	"github.com/nhle/todosync/internal/model"
	"github.com/nhle/todosync/internal/queue"
	"github.com/nhle/todosync/internal/remote"
	"github.com/nhle/todosync/internal/repository"
	"github.com/nhle/todosync/internal/store"
	appsync "github.com/nhle/todosync/internal/sync"
)

// Engine wires the store, remote client, queue, scheduler and
// repositories into one runnable unit.
type Engine struct {
	Config    *model.AppConfig
	Log       zerolog.Logger
	Store     *store.SQLiteStore
	Remote    *remote.Client
	Monitor   *connectivity.Monitor
	Prober    *connectivity.Prober
	Queue     *queue.Manager
	Scheduler *appsync.Scheduler

	Todos *repository.TodoRepository
	Tags  *repository.TagRepository
	Stats *repository.DailyStatRepository

	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// NewEngine opens the local store and restores the persisted queue.
// Nothing touches the network until Start or Probe is called; the engine
// starts out offline.
func NewEngine(ctx context.Context, cfg *model.AppConfig, log zerolog.Logger, tokens remote.TokenProvider) (*Engine, error) {
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var opts []remote.Option
	if cfg.API.TimeoutSec > 0 {
		opts = append(opts, remote.WithTimeout(cfg.API.Timeout()))
	}
	client := remote.NewClient(cfg.API.BaseURL, tokens, opts...)

	monitor := connectivity.NewMonitor(false)
	prober := connectivity.NewProber(cfg.Connectivity.ProbeURL, cfg.Connectivity.ProbeInterval(), monitor, log)

	replayer := repository.NewReplayer(s, client, client, log)
	q := queue.NewManager(s, replayer, log, queue.WithBackoff(cfg.Sync.Backoff()))
	if err := q.Load(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("loading sync queue: %w", err)
	}

	e := &Engine{
		Config:    cfg,
		Log:       log,
		Store:     s,
		Remote:    client,
		Monitor:   monitor,
		Prober:    prober,
		Queue:     q,
		Scheduler: appsync.New(q, monitor, cfg.Sync.Interval(), log),
		Todos:     repository.NewTodoRepository(s, client, monitor, q, log),
		Tags:      repository.NewTagRepository(s, client, monitor, q, log),
		Stats:     repository.NewDailyStatRepository(s, client, monitor, log),
	}

	log.Debug().
		Str("store", cfg.Store.Path).
		Str("api", cfg.API.BaseURL).
		Int("queued", len(q.Operations())).
		Msg("engine ready")

	return e, nil
}

// Probe checks reachability once and updates the monitor.
func (e *Engine) Probe(ctx context.Context) bool {
	return e.Prober.Probe(ctx)
}

// Start begins background probing and drain scheduling. The returned
// command delivers drain results to a Bubble Tea program.
func (e *Engine) Start(ctx context.Context) tea.Cmd {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Prober.Run(ctx)
	}()

	return e.Scheduler.Start()
}

// Close stops background work and closes the store. Queue state is
// already persisted.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.Scheduler.Stop()
	return e.Store.Close()
}
