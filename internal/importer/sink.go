package importer

import (
	"context"
	"sync"
)

// Sink opens one transactional scope per chunk against the destination
// store. The store is touched only through scopes, so no additional locking
// is needed when the store provides atomic per-scope commit/rollback.
type Sink interface {
	Begin(ctx context.Context) (TxScope, error)
}

// TxScope is the commit/rollback boundary for a single chunk. Commit is
// irreversible: once a chunk is committed, a later chunk's failure never
// reverts it. Rollback discards every effect of this scope only.
type TxScope interface {
	// Persist stores one valid row. The attribute map gives persistence
	// implementations access to column names.
	Persist(ctx context.Context, row Row, attrs *AttributeMap) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// MemorySink keeps committed rows in memory. It backs dry-run imports and
// is the reference Sink for tests. PersistFault, when set, is consulted for
// every row and lets tests inject persistence errors.
type MemorySink struct {
	PersistFault func(row Row) error

	mu   sync.Mutex
	rows []Row
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Begin opens a new staging scope. Rows become visible only on Commit.
func (s *MemorySink) Begin(ctx context.Context) (TxScope, error) {
	return &memoryScope{sink: s}, nil
}

// Rows returns the committed rows in commit order.
func (s *MemorySink) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

type memoryScope struct {
	sink   *MemorySink
	staged []Row
	done   bool
}

func (t *memoryScope) Persist(ctx context.Context, row Row, attrs *AttributeMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.sink.PersistFault != nil {
		if err := t.sink.PersistFault(row); err != nil {
			return err
		}
	}
	t.staged = append(t.staged, row)
	return nil
}

func (t *memoryScope) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.sink.mu.Lock()
	t.sink.rows = append(t.sink.rows, t.staged...)
	t.sink.mu.Unlock()
	return nil
}

func (t *memoryScope) Rollback(ctx context.Context) error {
	t.done = true
	t.staged = nil
	return nil
}
