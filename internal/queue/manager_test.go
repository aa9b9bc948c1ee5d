package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todosync/internal/remote"
)

// memPersister is an in-memory Persister.
type memPersister struct {
	mu   sync.Mutex
	seq  int64
	recs map[string]Record
}

func newMemPersister() *memPersister {
	return &memPersister{recs: make(map[string]Record)}
}

func (p *memPersister) LoadOperations(context.Context) ([]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Record, 0, len(p.recs))
	for _, r := range p.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (p *memPersister) InsertOperation(_ context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	rec.Seq = p.seq
	p.recs[rec.ID] = rec
	return nil
}

func (p *memPersister) UpdateOperation(_ context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.recs[rec.ID]
	if !ok {
		return errors.New("missing")
	}
	cur.Status = rec.Status
	cur.RetryCount = rec.RetryCount
	cur.LastAttemptAt = rec.LastAttemptAt
	cur.LastError = rec.LastError
	p.recs[rec.ID] = cur
	return nil
}

func (p *memPersister) DeleteOperation(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.recs, id)
	return nil
}

func (p *memPersister) get(id string) (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.recs[id]
	return r, ok
}

// scriptedDispatcher records dispatched payloads and answers from a
// per-entity script of errors.
type scriptedDispatcher struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]error
	block   chan struct{}
	started chan struct{}
}

func newDispatcher() *scriptedDispatcher {
	return &scriptedDispatcher{results: make(map[string][]error)}
}

func (d *scriptedDispatcher) fail(entity string, errs ...error) {
	d.results[entity] = append(d.results[entity], errs...)
}

func (d *scriptedDispatcher) Dispatch(ctx context.Context, p Payload) error {
	d.mu.Lock()
	d.calls = append(d.calls, p.EntityID())
	var err error
	if q := d.results[p.EntityID()]; len(q) > 0 {
		err = q[0]
		d.results[p.EntityID()] = q[1:]
	}
	block, started := d.block, d.started
	d.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return &remote.Error{Kind: remote.KindTransport, Err: ctx.Err()}
		}
	}
	return err
}

func (d *scriptedDispatcher) callLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

var (
	errServer   = &remote.Error{Kind: remote.KindServerError, Code: 503}
	errConflict = &remote.Error{Kind: remote.KindConflict, Code: 409}
	errNotFound = &remote.Error{Kind: remote.KindNotFound, Code: 404}
)

func newManager(t *testing.T, p Persister, d Dispatcher, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(p, d, zerolog.Nop(), opts...)
	require.NoError(t, m.Load(context.Background()))
	return m
}

func enqueueDeletes(t *testing.T, m *Manager, ids ...string) []Operation {
	t.Helper()
	ops := make([]Operation, 0, len(ids))
	for _, id := range ids {
		op, err := m.Enqueue(context.Background(), DeleteTodo{ID: id})
		require.NoError(t, err)
		ops = append(ops, op)
	}
	return ops
}

func TestEnqueuePersistsAndOrders(t *testing.T) {
	p := newMemPersister()
	m := newManager(t, p, newDispatcher())

	ops := enqueueDeletes(t, m, "a", "b", "c")
	for _, op := range ops {
		assert.NotEmpty(t, op.ID)
		assert.Equal(t, StatusPending, op.Status)
		assert.Zero(t, op.RetryCount)
		assert.Nil(t, op.LastAttemptAt)

		rec, ok := p.get(op.ID)
		require.True(t, ok)
		assert.Equal(t, string(KindDeleteTodo), rec.Kind)
	}

	pending := m.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "a", pending[0].Payload.EntityID())
	assert.Equal(t, "c", pending[2].Payload.EntityID())
}

func TestDrainFIFOAndEmptiesOnSuccess(t *testing.T) {
	p := newMemPersister()
	d := newDispatcher()
	m := newManager(t, p, d)
	enqueueDeletes(t, m, "a", "b", "c", "d")

	res := m.Drain(context.Background())
	assert.Equal(t, 4, res.Attempted)
	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, []string{"a", "b", "c", "d"}, d.callLog())
	assert.Empty(t, m.Operations())

	recs, _ := p.LoadOperations(context.Background())
	assert.Empty(t, recs)
}

func TestRetryableFailuresExhaustAfterMaxRetries(t *testing.T) {
	p := newMemPersister()
	d := newDispatcher()
	d.fail("a", errServer, errServer, errServer)
	m := newManager(t, p, d)
	ops := enqueueDeletes(t, m, "a")

	for i := 1; i < MaxRetries; i++ {
		res := m.Drain(context.Background())
		assert.Equal(t, 1, res.Retried)
		op := m.Operations()[0]
		assert.Equal(t, StatusPending, op.Status)
		assert.Equal(t, i, op.RetryCount)
		assert.NotNil(t, op.LastAttemptAt)
		assert.Contains(t, op.LastError, "serverError")
	}

	res := m.Drain(context.Background())
	assert.Equal(t, 1, res.Exhausted)
	op := m.Operations()[0]
	assert.Equal(t, StatusMaxRetriesExceeded, op.Status)
	assert.Equal(t, MaxRetries, op.RetryCount)

	rec, _ := p.get(ops[0].ID)
	assert.Equal(t, string(StatusMaxRetriesExceeded), rec.Status)

	// Parked operations are never replayed automatically.
	res = m.Drain(context.Background())
	assert.Zero(t, res.Attempted)
	assert.Len(t, d.callLog(), MaxRetries)
}

func TestTerminalFailureParksImmediatelyAndContinues(t *testing.T) {
	d := newDispatcher()
	d.fail("a", errConflict)
	d.fail("b", errNotFound)
	m := newManager(t, newMemPersister(), d)
	enqueueDeletes(t, m, "a", "b", "c")

	res := m.Drain(context.Background())
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 1, res.Succeeded)

	ops := m.Operations()
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, StatusMaxRetriesExceeded, op.Status)
		assert.Zero(t, op.RetryCount)
	}
	assert.Equal(t, 0, len(m.Pending()))
}

func TestDrainSkipsWhileAnotherRuns(t *testing.T) {
	d := newDispatcher()
	d.block = make(chan struct{})
	d.started = make(chan struct{}, 1)
	m := newManager(t, newMemPersister(), d)
	enqueueDeletes(t, m, "a")

	done := make(chan DrainResult)
	go func() { done <- m.Drain(context.Background()) }()
	<-d.started

	second := m.Drain(context.Background())
	assert.True(t, second.Skipped)
	assert.Equal(t, StatusInProgress, m.Operations()[0].Status)

	close(d.block)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Succeeded)
	assert.Equal(t, []string{"a"}, d.callLog())
}

func TestDrainCancelledReturnsOperationToPending(t *testing.T) {
	d := newDispatcher()
	d.block = make(chan struct{})
	d.started = make(chan struct{}, 1)
	p := newMemPersister()
	m := newManager(t, p, d)
	ops := enqueueDeletes(t, m, "a", "b")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan DrainResult)
	go func() { done <- m.Drain(ctx) }()
	<-d.started
	cancel()

	res := <-done
	assert.True(t, res.Interrupted)
	assert.Equal(t, 1, res.Attempted)

	pending := m.Pending()
	require.Len(t, pending, 2)
	assert.Zero(t, pending[0].RetryCount)
	rec, _ := p.get(ops[0].ID)
	assert.Equal(t, string(StatusPending), rec.Status)
}

func TestLoadResetsInProgressAndIgnoresUnknownKinds(t *testing.T) {
	p := newMemPersister()
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	raw, err := EncodePayload(DeleteTag{ID: "g1"})
	require.NoError(t, err)
	require.NoError(t, p.InsertOperation(ctx, Record{
		ID: "stuck", Kind: string(KindDeleteTag), Payload: raw,
		Status: string(StatusInProgress), RetryCount: 1, CreatedAt: now,
	}))
	future := []byte(`{"kind":"archiveTodo","data":{"id":"t9"}}`)
	require.NoError(t, p.InsertOperation(ctx, Record{
		ID: "future", Kind: "archiveTodo", Payload: future,
		Status: string(StatusPending), CreatedAt: now,
	}))

	d := newDispatcher()
	m := newManager(t, p, d)

	ops := m.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, StatusPending, ops[0].Status)
	assert.Equal(t, 1, ops[0].RetryCount)
	assert.Equal(t, StatusFailed, ops[1].Status)
	assert.Nil(t, ops[1].Payload)

	rec, _ := p.get("stuck")
	assert.Equal(t, string(StatusPending), rec.Status)

	res := m.Drain(ctx)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, []string{"g1"}, d.callLog())

	// The unknown entry's row is untouched.
	rec, ok := p.get("future")
	require.True(t, ok)
	assert.Equal(t, string(StatusPending), rec.Status)
	assert.Equal(t, future, rec.Payload)
}

func TestBackoffDefersRetries(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	d := newDispatcher()
	d.fail("a", errServer, errServer)
	m := newManager(t, newMemPersister(), d, WithBackoff(time.Minute), WithClock(clock))
	enqueueDeletes(t, m, "a")

	assert.Equal(t, 1, m.Drain(context.Background()).Retried)

	now = now.Add(30 * time.Second)
	res := m.Drain(context.Background())
	assert.Equal(t, 1, res.Deferred)
	assert.Zero(t, res.Attempted)

	now = now.Add(31 * time.Second)
	assert.Equal(t, 1, m.Drain(context.Background()).Retried)

	// Second retry waits twice as long.
	now = now.Add(90 * time.Second)
	assert.Equal(t, 1, m.Drain(context.Background()).Deferred)
	now = now.Add(31 * time.Second)
	assert.Equal(t, 1, m.Drain(context.Background()).Succeeded)
}

func TestDrainReportsWhenBackoffEnds(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	d := newDispatcher()
	d.fail("a", errServer, errServer)
	m := newManager(t, newMemPersister(), d, WithBackoff(time.Minute), WithClock(clock))
	enqueueDeletes(t, m, "a")

	res := m.Drain(context.Background())
	assert.Equal(t, 1, res.Retried)
	assert.Equal(t, now.Add(time.Minute), res.RetryAt)

	now = now.Add(10 * time.Second)
	res = m.Drain(context.Background())
	assert.Equal(t, 1, res.Deferred)
	assert.Equal(t, now.Add(50*time.Second), res.RetryAt)

	// The second failure doubles the wait.
	now = now.Add(time.Hour)
	res = m.Drain(context.Background())
	assert.Equal(t, 1, res.Retried)
	assert.Equal(t, now.Add(2*time.Minute), res.RetryAt)

	now = now.Add(time.Hour)
	res = m.Drain(context.Background())
	assert.Equal(t, 1, res.Succeeded)
	assert.True(t, res.RetryAt.IsZero())
}

func TestNoRetryTimeWithoutBackoff(t *testing.T) {
	d := newDispatcher()
	d.fail("a", errServer)
	m := newManager(t, newMemPersister(), d)
	enqueueDeletes(t, m, "a")

	res := m.Drain(context.Background())
	assert.Equal(t, 1, res.Retried)
	assert.True(t, res.RetryAt.IsZero())
}

func TestRequeueAndDiscard(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	d := newDispatcher()
	d.fail("a", errConflict)
	m := newManager(t, p, d)
	ops := enqueueDeletes(t, m, "a", "b")

	err := m.Requeue(ctx, ops[1].ID)
	assert.ErrorIs(t, err, ErrNotRequeueable)

	m.Drain(ctx)
	require.Len(t, m.Operations(), 1)
	assert.Equal(t, 1, m.Counts()[StatusMaxRetriesExceeded])

	require.NoError(t, m.Requeue(ctx, ops[0].ID))
	op := m.Operations()[0]
	assert.Equal(t, StatusPending, op.Status)
	assert.Empty(t, op.LastError)

	require.NoError(t, m.Discard(ctx, ops[0].ID))
	assert.Empty(t, m.Operations())
	_, ok := p.get(ops[0].ID)
	assert.False(t, ok)

	assert.ErrorIs(t, m.Discard(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, m.Requeue(ctx, "missing"), ErrNotFound)
}

func TestEnqueueDoesNotDispatch(t *testing.T) {
	d := newDispatcher()
	m := newManager(t, newMemPersister(), d)
	enqueueDeletes(t, m, "a")
	assert.Empty(t, d.callLog())
}
