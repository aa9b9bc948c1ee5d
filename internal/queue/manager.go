package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/todosync/internal/remote"
)

var (
	// ErrNotFound is returned when no queued operation has the given id.
	ErrNotFound = errors.New("operation not found")
	// ErrBusy is returned when an operation is being replayed right now.
	ErrBusy = errors.New("operation is in progress")
	// ErrNotRequeueable is returned by Requeue for operations that are not
	// parked as StatusMaxRetriesExceeded.
	ErrNotRequeueable = errors.New("operation cannot be requeued")
)

// Persister stores queue records durably. Implementations return records
// from LoadOperations in creation order.
type Persister interface {
	LoadOperations(ctx context.Context) ([]Record, error)
	InsertOperation(ctx context.Context, rec Record) error
	UpdateOperation(ctx context.Context, rec Record) error
	DeleteOperation(ctx context.Context, id string) error
}

// Dispatcher replays a payload against the server.
type Dispatcher interface {
	Dispatch(ctx context.Context, p Payload) error
}

// DrainResult summarizes one Drain call.
type DrainResult struct {
	// Skipped is set when another drain was already running.
	Skipped bool
	// Attempted counts dispatches, whatever their outcome.
	Attempted int
	Succeeded int
	// Retried counts recoverable failures left pending for a later drain.
	Retried int
	// Exhausted counts operations parked after their last allowed retry.
	Exhausted int
	// Rejected counts operations the server refused outright.
	Rejected int
	// Deferred counts pending operations still inside their backoff window.
	Deferred int
	// Interrupted is set when the context was cancelled mid-drain.
	Interrupted bool
	// RetryAt is the earliest time a pending operation leaves its backoff
	// window. Zero when nothing is backing off.
	RetryAt time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackoff delays the replay of a failed operation by base·2^(retries-1)
// after its last attempt.
func WithBackoff(base time.Duration) Option {
	return func(m *Manager) { m.backoff = base }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the ordered list of deferred operations and its persisted
// copy. It is safe for concurrent use; at most one drain runs at a time.
type Manager struct {
	persister  Persister
	dispatcher Dispatcher
	log        zerolog.Logger
	backoff    time.Duration
	now        func() time.Time

	mu  sync.Mutex
	ops []*Operation

	drainMu sync.Mutex
}

// NewManager creates a Manager. Call Load before the first drain.
func NewManager(p Persister, d Dispatcher, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		persister:  p,
		dispatcher: d,
		log:        log.With().Str("component", "queue").Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the in-memory queue with the persisted one. Operations left
// in progress by an unclean shutdown go back to pending. Entries whose
// payload cannot be decoded are kept in memory as StatusFailed and their
// rows are left alone.
func (m *Manager) Load(ctx context.Context) error {
	recs, err := m.persister.LoadOperations(ctx)
	if err != nil {
		return fmt.Errorf("loading queue: %w", err)
	}

	ops := make([]*Operation, 0, len(recs))
	for _, rec := range recs {
		op := &Operation{
			ID:            rec.ID,
			Kind:          Kind(rec.Kind),
			CreatedAt:     rec.CreatedAt,
			LastAttemptAt: rec.LastAttemptAt,
			RetryCount:    rec.RetryCount,
			Status:        Status(rec.Status),
			LastError:     rec.LastError,
		}

		p, err := DecodePayload(rec.Payload)
		if err != nil {
			m.log.Warn().Err(err).Str("op", rec.ID).Str("kind", rec.Kind).
				Msg("ignoring undecodable queue entry")
			op.Status = StatusFailed
			op.LastError = err.Error()
			ops = append(ops, op)
			continue
		}
		op.Payload = p

		switch op.Status {
		case StatusCompleted:
			// Replayed but not yet removed when the process stopped.
			if err := m.persister.DeleteOperation(ctx, op.ID); err != nil {
				return fmt.Errorf("removing completed operation %s: %w", op.ID, err)
			}
			continue
		case StatusInProgress:
			op.Status = StatusPending
			if err := m.persister.UpdateOperation(ctx, toRecord(op)); err != nil {
				return fmt.Errorf("resetting operation %s: %w", op.ID, err)
			}
			m.log.Info().Str("op", op.ID).Msg("reset interrupted operation to pending")
		case StatusPending, StatusMaxRetriesExceeded, StatusFailed:
		default:
			m.log.Warn().Str("op", op.ID).Str("status", string(op.Status)).
				Msg("ignoring queue entry with unknown status")
			op.Status = StatusFailed
		}
		ops = append(ops, op)
	}

	m.mu.Lock()
	m.ops = ops
	m.mu.Unlock()

	m.log.Debug().Int("operations", len(ops)).Msg("queue loaded")
	return nil
}

// Enqueue persists p as a new pending operation at the tail of the queue.
// It never touches the network.
func (m *Manager) Enqueue(ctx context.Context, p Payload) (Operation, error) {
	if p == nil {
		return Operation{}, errors.New("enqueue: nil payload")
	}
	raw, err := EncodePayload(p)
	if err != nil {
		return Operation{}, err
	}

	op := &Operation{
		ID:        uuid.NewString(),
		Kind:      p.Kind(),
		Payload:   p,
		CreatedAt: m.now().UTC(),
		Status:    StatusPending,
	}
	rec := toRecord(op)
	rec.Payload = raw

	// Held across the insert so persisted order matches queue order.
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.persister.InsertOperation(ctx, rec); err != nil {
		return Operation{}, fmt.Errorf("enqueueing %s: %w", p.Kind(), err)
	}
	m.ops = append(m.ops, op)

	m.log.Debug().Str("op", op.ID).Str("kind", string(op.Kind)).
		Str("entity", p.EntityID()).Msg("operation enqueued")
	return *op, nil
}

// Drain replays every pending operation once, oldest first. It returns
// immediately with Skipped set if another drain is running.
func (m *Manager) Drain(ctx context.Context) DrainResult {
	if !m.drainMu.TryLock() {
		return DrainResult{Skipped: true}
	}
	defer m.drainMu.Unlock()

	var res DrainResult
	for _, id := range m.pendingIDs() {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		p, ok, deferred := m.begin(ctx, id)
		if deferred {
			res.Deferred++
			continue
		}
		if !ok {
			continue
		}

		res.Attempted++
		err := m.dispatcher.Dispatch(ctx, p)
		if err != nil && ctx.Err() != nil {
			m.interrupt(ctx, id)
			res.Interrupted = true
			break
		}
		m.finish(ctx, id, err, &res)
	}

	res.RetryAt = m.nextRetry()

	if res.Attempted > 0 || res.Interrupted {
		m.log.Info().
			Int("attempted", res.Attempted).
			Int("succeeded", res.Succeeded).
			Int("retried", res.Retried).
			Int("exhausted", res.Exhausted).
			Int("rejected", res.Rejected).
			Bool("interrupted", res.Interrupted).
			Msg("queue drained")
	}
	return res
}

// pendingIDs snapshots the ids of pending operations in queue order.
func (m *Manager) pendingIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.ops))
	for _, op := range m.ops {
		if op.Status == StatusPending {
			ids = append(ids, op.ID)
		}
	}
	return ids
}

// begin marks the operation in progress. ok is false when the operation was
// discarded or changed since the snapshot was taken; deferred is true when
// it is still backing off.
func (m *Manager) begin(ctx context.Context, id string) (p Payload, ok, deferred bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := m.find(id)
	if op == nil || op.Status != StatusPending {
		return nil, false, false
	}
	now := m.now().UTC()
	if m.backingOff(op, now) {
		return nil, false, true
	}

	op.Status = StatusInProgress
	op.LastAttemptAt = &now
	m.persist(ctx, op)
	return op.Payload, true, false
}

func (m *Manager) backingOff(op *Operation, now time.Time) bool {
	at, ok := m.retryAt(op)
	return ok && now.Before(at)
}

// retryAt is when op may be attempted again after a failure.
func (m *Manager) retryAt(op *Operation) (time.Time, bool) {
	if m.backoff <= 0 || op.RetryCount == 0 || op.LastAttemptAt == nil {
		return time.Time{}, false
	}
	return op.LastAttemptAt.Add(m.backoff << (op.RetryCount - 1)), true
}

// nextRetry returns the earliest backoff expiry among pending operations.
func (m *Manager) nextRetry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next time.Time
	for _, op := range m.ops {
		if op.Status != StatusPending {
			continue
		}
		if at, ok := m.retryAt(op); ok && (next.IsZero() || at.Before(next)) {
			next = at
		}
	}
	return next
}

// finish records the outcome of a dispatch.
func (m *Manager) finish(ctx context.Context, id string, err error, res *DrainResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := m.find(id)
	if op == nil {
		return
	}
	// The outcome is recorded even if the caller gave up after dispatch.
	ctx = context.WithoutCancel(ctx)

	if err == nil {
		op.Status = StatusCompleted
		m.remove(id)
		if derr := m.persister.DeleteOperation(ctx, id); derr != nil {
			m.log.Error().Err(derr).Str("op", id).Msg("removing completed operation")
		}
		res.Succeeded++
		return
	}

	op.LastError = err.Error()
	log := m.log.Warn().Err(err).Str("op", id).Str("kind", string(op.Kind))

	switch {
	case remote.IsRetryable(err):
		op.RetryCount++
		if op.RetryCount >= MaxRetries {
			op.Status = StatusMaxRetriesExceeded
			res.Exhausted++
			log.Int("retries", op.RetryCount).Msg("operation exceeded max retries")
		} else {
			op.Status = StatusPending
			res.Retried++
			log.Int("retries", op.RetryCount).Msg("operation failed, will retry")
		}
	default:
		op.Status = StatusMaxRetriesExceeded
		res.Rejected++
		log.Msg("operation rejected by server")
	}
	m.persist(ctx, op)
}

// interrupt returns an operation cut short by cancellation to pending
// without counting the attempt.
func (m *Manager) interrupt(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := m.find(id)
	if op == nil {
		return
	}
	op.Status = StatusPending
	m.persist(context.WithoutCancel(ctx), op)
}

// persist writes the operation state. The in-memory state stays
// authoritative when the write fails; Load resets it on the next start.
func (m *Manager) persist(ctx context.Context, op *Operation) {
	if err := m.persister.UpdateOperation(ctx, toRecord(op)); err != nil {
		m.log.Error().Err(err).Str("op", op.ID).Msg("persisting operation state")
	}
}

// Requeue resets a parked operation to pending with a fresh retry budget.
func (m *Manager) Requeue(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := m.find(id)
	if op == nil {
		return fmt.Errorf("requeue %s: %w", id, ErrNotFound)
	}
	if op.Status != StatusMaxRetriesExceeded {
		return fmt.Errorf("requeue %s (%s): %w", id, op.Status, ErrNotRequeueable)
	}

	prev := *op
	op.Status = StatusPending
	op.RetryCount = 0
	op.LastError = ""
	if err := m.persister.UpdateOperation(ctx, toRecord(op)); err != nil {
		*op = prev
		return fmt.Errorf("requeue %s: %w", id, err)
	}
	return nil
}

// Discard drops an operation that is not currently being replayed.
func (m *Manager) Discard(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op := m.find(id)
	if op == nil {
		return fmt.Errorf("discard %s: %w", id, ErrNotFound)
	}
	if op.Status == StatusInProgress {
		return fmt.Errorf("discard %s: %w", id, ErrBusy)
	}
	if err := m.persister.DeleteOperation(ctx, id); err != nil {
		return fmt.Errorf("discard %s: %w", id, err)
	}
	m.remove(id)
	return nil
}

// Operations returns a copy of every queued operation in queue order.
func (m *Manager) Operations() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Operation, 0, len(m.ops))
	for _, op := range m.ops {
		out = append(out, *op)
	}
	return out
}

// Pending returns a copy of the operations awaiting replay in queue order.
func (m *Manager) Pending() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Operation
	for _, op := range m.ops {
		if op.Status == StatusPending {
			out = append(out, *op)
		}
	}
	return out
}

// Counts returns the number of queued operations per status.
func (m *Manager) Counts() map[Status]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[Status]int)
	for _, op := range m.ops {
		counts[op.Status]++
	}
	return counts
}

func (m *Manager) find(id string) *Operation {
	for _, op := range m.ops {
		if op.ID == id {
			return op
		}
	}
	return nil
}

func (m *Manager) remove(id string) {
	for i, op := range m.ops {
		if op.ID == id {
			m.ops = append(m.ops[:i], m.ops[i+1:]...)
			return
		}
	}
}

// toRecord converts op for persistence. Payload is left empty; only
// InsertOperation stores it.
func toRecord(op *Operation) Record {
	return Record{
		ID:            op.ID,
		Kind:          string(op.Kind),
		Status:        string(op.Status),
		RetryCount:    op.RetryCount,
		CreatedAt:     op.CreatedAt,
		LastAttemptAt: op.LastAttemptAt,
		LastError:     op.LastError,
	}
}
