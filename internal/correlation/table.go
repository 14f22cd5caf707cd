package correlation

import (
	"encoding/json"
	"errors"
	"sort"
)

var ErrDuplicateID = errors.New("message id already pending")

type Outcome int

const (
	OutcomeResolve Outcome = iota
	OutcomeReject
)

func (o Outcome) String() string {
	if o == OutcomeReject {
		return "reject"
	}
	return "resolve"
}

// Table maps pending message ids to their futures. It has a single owner
// and does no locking of its own.
type Table struct {
	pending map[int]*Future
}

func NewTable() *Table {
	return &Table{pending: make(map[int]*Future)}
}

// Register creates the pending entry for id. Callers register before
// transmitting so a same-turn response finds it.
func (t *Table) Register(id int) (*Future, error) {
	if _, ok := t.pending[id]; ok {
		return nil, ErrDuplicateID
	}
	f := newFuture(id)
	t.pending[id] = f
	return f, nil
}

// Settle completes the entry for id exactly once and removes it. Unknown,
// stale and already-settled ids report false.
func (t *Table) Settle(id int, outcome Outcome, data json.RawMessage) bool {
	f, ok := t.pending[id]
	if !ok {
		return false
	}
	delete(t.pending, id)
	if outcome == OutcomeReject {
		return f.settle(nil, &RejectError{MessageID: id, Args: data})
	}
	return f.settle(data, nil)
}

// Remove drops the entry for id without settling it.
func (t *Table) Remove(id int) bool {
	if _, ok := t.pending[id]; !ok {
		return false
	}
	delete(t.pending, id)
	return true
}

func (t *Table) Has(id int) bool {
	_, ok := t.pending[id]
	return ok
}

func (t *Table) Len() int {
	return len(t.pending)
}

// Pending lists the outstanding ids in ascending order.
func (t *Table) Pending() []int {
	ids := make([]int, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Clear empties the table, leaving every future unsettled, and returns
// the abandoned ids.
func (t *Table) Clear() []int {
	ids := t.Pending()
	t.pending = make(map[int]*Future)
	return ids
}

// RejectAll empties the table, rejecting every future with err.
func (t *Table) RejectAll(err error) []int {
	ids := t.Pending()
	for _, id := range ids {
		t.pending[id].settle(nil, err)
	}
	t.pending = make(map[int]*Future)
	return ids
}
