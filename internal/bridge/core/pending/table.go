package pending

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/pkg/metrics"
)

// ErrDuplicateKey is returned when a key is already in the table.
var ErrDuplicateKey = errors.New("pending command key already in use")

// Command is an in-flight command awaiting acknowledgement.
type Command struct {
	Key        string
	Source     model.Source
	User       string
	UserID     string
	EndpointID string
	RequestID  string

	// Sink is owned by the record until consumed. Batched sibling slots have none.
	Sink *Sink

	// Response and ErrorResponse are the singular reply templates.
	Response      json.RawMessage
	ErrorResponse json.RawMessage

	// Aggregate is the batched reply collected on the primary record.
	Aggregate *model.BatchedResponse
	// Siblings lists the other device ids of a batched command, on the primary only.
	Siblings []string
	// Primary is the key of the record holding the sink, for batched records.
	Primary string

	Acknowledged bool
	CreatedAt    time.Time
}

// IsPrimary reports whether the record answers the caller.
func (c *Command) IsPrimary() bool {
	return c.Sink != nil
}

// BatchedKey builds the key of one device of a batched command.
func BatchedKey(requestID, deviceID string) string {
	return requestID + "|" + deviceID
}

// Txn gives access to the table inside Atomically. It must not be retained.
type Txn interface {
	Get(key string) (*Command, bool)
	Put(key string, cmd *Command) error
	Remove(key string)
	Keys() []string
}

// Table owns every pending command. All access is serialized by one mutex;
// callers never perform I/O while holding it.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Command
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Command)}
}

// Put inserts cmd under key.
func (t *Table) Put(key string, cmd *Command) error {
	var err error
	t.Atomically(func(tx Txn) {
		err = tx.Put(key, cmd)
	})
	return err
}

// Get returns a copy of the record stored under key.
func (t *Table) Get(key string) (Command, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cmd, ok := t.entries[key]
	if !ok {
		return Command{}, false
	}
	return *cmd, true
}

// Remove deletes key. Removing an absent key is a no-op.
func (t *Table) Remove(key string) {
	t.Atomically(func(tx Txn) {
		tx.Remove(key)
	})
}

// Keys returns a snapshot of the current keys.
func (t *Table) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return (&txn{t}).Keys()
}

// Len returns the number of pending commands.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Atomically runs fn with exclusive access to the table.
func (t *Table) Atomically(fn func(tx Txn)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&txn{t})
	metrics.PendingCommands.Set(float64(len(t.entries)))
}

type txn struct {
	t *Table
}

func (x *txn) Get(key string) (*Command, bool) {
	cmd, ok := x.t.entries[key]
	return cmd, ok
}

func (x *txn) Put(key string, cmd *Command) error {
	if _, ok := x.t.entries[key]; ok {
		return ErrDuplicateKey
	}
	cmd.Key = key
	x.t.entries[key] = cmd
	return nil
}

func (x *txn) Remove(key string) {
	delete(x.t.entries, key)
}

func (x *txn) Keys() []string {
	keys := make([]string, 0, len(x.t.entries))
	for k := range x.t.entries {
		keys = append(keys, k)
	}
	return keys
}
