package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/nhle/todosync/internal/model"
)

// MaxRetries is the number of recoverable failures after which an operation
// is parked as StatusMaxRetriesExceeded.
const MaxRetries = 3

// Status is the lifecycle state of a deferred operation.
type Status string

const (
	StatusPending            Status = "pending"
	StatusInProgress         Status = "inProgress"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusMaxRetriesExceeded Status = "maxRetriesExceeded"
)

// Kind identifies the mutation carried by a payload.
type Kind string

const (
	KindCreateTodo Kind = "createTodo"
	KindUpdateTodo Kind = "updateTodo"
	KindDeleteTodo Kind = "deleteTodo"
	KindCreateTag  Kind = "createTag"
	KindUpdateTag  Kind = "updateTag"
	KindDeleteTag  Kind = "deleteTag"
)

// ErrUnknownKind is returned when a persisted payload names a kind this
// build does not know how to replay.
var ErrUnknownKind = errors.New("unknown operation kind")

// Payload is a mutation that could not reach the server when it was made.
type Payload interface {
	Kind() Kind
	// EntityID is the id of the todo or tag the mutation targets.
	EntityID() string
}

// CreateTodo replays an offline todo creation.
type CreateTodo struct {
	Todo model.Todo `json:"todo"`
}

// UpdateTodo replays an offline edit or toggle.
type UpdateTodo struct {
	Todo model.Todo `json:"todo"`
}

// DeleteTodo replays an offline todo deletion.
type DeleteTodo struct {
	ID string `json:"id"`
}

// CreateTag replays an offline tag creation.
type CreateTag struct {
	Tag model.Tag `json:"tag"`
}

// UpdateTag replays an offline tag edit.
type UpdateTag struct {
	Tag model.Tag `json:"tag"`
}

// DeleteTag replays an offline tag deletion.
type DeleteTag struct {
	ID string `json:"id"`
}

func (CreateTodo) Kind() Kind { return KindCreateTodo }
func (UpdateTodo) Kind() Kind { return KindUpdateTodo }
func (DeleteTodo) Kind() Kind { return KindDeleteTodo }
func (CreateTag) Kind() Kind  { return KindCreateTag }
func (UpdateTag) Kind() Kind  { return KindUpdateTag }
func (DeleteTag) Kind() Kind  { return KindDeleteTag }

func (p CreateTodo) EntityID() string { return p.Todo.ID }
func (p UpdateTodo) EntityID() string { return p.Todo.ID }
func (p DeleteTodo) EntityID() string { return p.ID }
func (p CreateTag) EntityID() string  { return p.Tag.ID }
func (p UpdateTag) EntityID() string  { return p.Tag.ID }
func (p DeleteTag) EntityID() string  { return p.ID }

// envelope is the self-describing persisted form of a payload.
type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes p into its persisted envelope.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.New("encoding payload: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", p.Kind(), err)
	}
	out, err := json.Marshal(envelope{Kind: p.Kind(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", p.Kind(), err)
	}
	return out, nil
}

// DecodePayload parses a persisted envelope. Envelopes naming a kind this
// build does not know return an error wrapping ErrUnknownKind.
func DecodePayload(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	var p Payload
	var err error
	switch env.Kind {
	case KindCreateTodo:
		var v CreateTodo
		err = json.Unmarshal(env.Data, &v)
		p = v
	case KindUpdateTodo:
		var v UpdateTodo
		err = json.Unmarshal(env.Data, &v)
		p = v
	case KindDeleteTodo:
		var v DeleteTodo
		err = json.Unmarshal(env.Data, &v)
		p = v
	case KindCreateTag:
		var v CreateTag
		err = json.Unmarshal(env.Data, &v)
		p = v
	case KindUpdateTag:
		var v UpdateTag
		err = json.Unmarshal(env.Data, &v)
		p = v
	case KindDeleteTag:
		var v DeleteTag
		err = json.Unmarshal(env.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", env.Kind, err)
	}
	return p, nil
}

// Operation is one entry of the sync queue.
type Operation struct {
	ID string
	// Kind is kept separately from Payload so undecodable entries can still
	// be listed.
	Kind          Kind
	Payload       Payload
	CreatedAt     time.Time
	LastAttemptAt *time.Time
	RetryCount    int
	Status        Status
	LastError     string
}

// Record is the persisted form of an Operation. Seq orders records by
// creation and is assigned by the Persister.
type Record struct {
	Seq           int64      `db:"seq"`
	ID            string     `db:"id"`
	Kind          string     `db:"kind"`
	Payload       []byte     `db:"payload"`
	Status        string     `db:"status"`
	RetryCount    int        `db:"retry_count"`
	CreatedAt     time.Time  `db:"created_at"`
	LastAttemptAt *time.Time `db:"last_attempt_at"`
	LastError     string     `db:"last_error"`
}
