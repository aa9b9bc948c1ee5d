package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/todosync/internal/queue"
)

// State is what the scheduler is doing right now.
type State int

const (
	StateIdle State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	default:
		return "stopped"
	}
}

// Trigger names the reason a drain was started.
type Trigger string

const (
	TriggerStartup   Trigger = "startup"
	TriggerReconnect Trigger = "reconnect"
	TriggerInterval  Trigger = "interval"
	TriggerManual    Trigger = "manual"
	TriggerRetry     Trigger = "retry"
)

// Status is a snapshot of the scheduler.
type Status struct {
	State      State
	Online     bool
	LastDrain  time.Time
	LastResult queue.DrainResult
	Counts     map[queue.Status]int
}

// DrainResultMsg is a tea.Msg sent when a drain completes.
type DrainResultMsg struct {
	Trigger Trigger
	Result  queue.DrainResult
	Counts  map[queue.Status]int
}

// Drainer is the queue being flushed.
type Drainer interface {
	Drain(ctx context.Context) queue.DrainResult
	Counts() map[queue.Status]int
}

// Monitor reports connectivity transitions.
type Monitor interface {
	Online() bool
	Subscribe() (<-chan bool, func())
}

// Scheduler drains the queue whenever connectivity comes back, on demand,
// when a failed operation's backoff ends, and optionally on an interval
// while online. Triggers that arrive while a drain runs collapse into a
// single follow-up drain.
type Scheduler struct {
	drainer  Drainer
	monitor  Monitor
	interval time.Duration
	log      zerolog.Logger

	resultCh  chan DrainResultMsg
	triggerCh chan Trigger
	stopCh    chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc

	mu      gosync.Mutex
	running bool
	status  Status
}

// New creates a Scheduler. A zero interval disables periodic drains.
func New(d Drainer, m Monitor, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		drainer:   d,
		monitor:   m,
		interval:  interval,
		log:       log.With().Str("component", "scheduler").Logger(),
		resultCh:  make(chan DrainResultMsg, 16),
		triggerCh: make(chan Trigger, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		status:    Status{State: StateStopped},
	}
}

// Start begins watching connectivity. If the backend is already reachable
// a drain runs right away. The returned command delivers the next
// DrainResultMsg to a Bubble Tea program; callers without one may ignore
// it.
func (s *Scheduler) Start() tea.Cmd {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// Read the state after subscribing so no transition is missed.
	updates, unsubscribe := s.monitor.Subscribe()
	online := s.monitor.Online()
	s.status.State = StateIdle
	s.status.Online = online
	s.mu.Unlock()

	go s.loop(ctx, online, updates, unsubscribe)

	return s.WaitForResult()
}

// Stop halts the scheduler, interrupting a drain in progress, and waits
// for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	s.status.State = StateStopped
	s.mu.Unlock()
}

// RefreshNow requests an immediate drain.
func (s *Scheduler) RefreshNow() tea.Cmd {
	s.request(TriggerManual)
	return nil
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.Counts = s.drainer.Counts()
	return st
}

// WaitForResult returns a tea.Cmd that waits for the next drain result.
// Call it again after handling a DrainResultMsg to keep listening.
func (s *Scheduler) WaitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.resultCh:
			return msg
		case <-s.done:
			return nil
		}
	}
}

// request queues a drain unless one is already queued.
func (s *Scheduler) request(t Trigger) {
	select {
	case s.triggerCh <- t:
	default:
		// A drain is already pending; it will cover this trigger too.
	}
}

func (s *Scheduler) loop(ctx context.Context, online bool, updates <-chan bool, unsubscribe func()) {
	defer close(s.done)
	defer unsubscribe()

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Armed after a drain that left operations backing off.
	retry := time.NewTimer(0)
	if !retry.Stop() {
		<-retry.C
	}
	defer retry.Stop()

	if online {
		s.request(TriggerStartup)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case now, ok := <-updates:
			if !ok {
				return
			}
			// The monitor only sends on change and keeps the latest value,
			// so a true here always follows an offline period, even one
			// that came and went while a drain was running.
			if now {
				s.log.Info().Msg("back online, draining queue")
				s.request(TriggerReconnect)
			}
			s.setOnline(now)
		case <-tick:
			if s.monitor.Online() {
				s.request(TriggerInterval)
			}
		case <-retry.C:
			if s.monitor.Online() {
				s.request(TriggerRetry)
			}
		case t := <-s.triggerCh:
			res := s.drain(ctx, t)
			if !res.RetryAt.IsZero() {
				if !retry.Stop() {
					select {
					case <-retry.C:
					default:
					}
				}
				retry.Reset(max(time.Until(res.RetryAt), 0))
			}
		}
	}
}

func (s *Scheduler) drain(ctx context.Context, t Trigger) queue.DrainResult {
	s.setState(StateDraining)
	res := s.drainer.Drain(ctx)
	counts := s.drainer.Counts()

	s.mu.Lock()
	if s.status.State == StateDraining {
		s.status.State = StateIdle
	}
	if !res.Skipped {
		s.status.LastDrain = time.Now()
		s.status.LastResult = res
	}
	s.mu.Unlock()

	s.sendResult(DrainResultMsg{Trigger: t, Result: res, Counts: counts})
	return res
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = st
}

func (s *Scheduler) setOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Online = online
}

// sendResult delivers msg without blocking the loop.
func (s *Scheduler) sendResult(msg DrainResultMsg) {
	select {
	case s.resultCh <- msg:
	default:
		// Drop if nobody is listening.
	}
}
