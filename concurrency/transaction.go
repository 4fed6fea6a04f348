// Package concurrency implements row-level two-phase locking with wound-wait
// deadlock prevention (spec.md §4.4), adapted from the teacher's
// storage_engine/transaction_manager package and grounded on
// original_source/src/concurrency/lock_manager.cpp for exact lock-queue
// semantics.
package concurrency

import (
	"sync"

	"corestore/storage/rid"
)

// IsolationLevel controls whether a transaction takes shared locks at all,
// and whether it releases them immediately after a read (spec.md §4.4).
type IsolationLevel uint8

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
)

// State is a transaction's position in the two-phase locking protocol
// (spec.md §4.4): it may only acquire locks while Growing, must stop
// acquiring once Shrinking, and Aborted/Committed are terminal.
type State uint8

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction tracks one transaction's isolation level, 2PL phase, and the
// row locks it currently holds. Lower IDs are older — wound-wait uses ID
// order as the sole priority signal (spec.md §4.4).
type Transaction struct {
	ID             int64
	IsolationLevel IsolationLevel

	mu             sync.Mutex
	state          State
	sharedLocks    map[rid.RID]bool
	exclusiveLocks map[rid.RID]bool
}

func newTransaction(id int64, level IsolationLevel) *Transaction {
	return &Transaction{
		ID:             id,
		IsolationLevel: level,
		state:          Growing,
		sharedLocks:    make(map[rid.RID]bool),
		exclusiveLocks: make(map[rid.RID]bool),
	}
}

// State returns the transaction's current phase.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transaction) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// IsSharedLocked reports whether this transaction already holds a shared
// lock on r.
func (t *Transaction) IsSharedLocked(r rid.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sharedLocks[r]
}

// IsExclusiveLocked reports whether this transaction already holds an
// exclusive lock on r.
func (t *Transaction) IsExclusiveLocked(r rid.RID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exclusiveLocks[r]
}

func (t *Transaction) addSharedLock(r rid.RID) {
	t.mu.Lock()
	t.sharedLocks[r] = true
	t.mu.Unlock()
}

func (t *Transaction) addExclusiveLock(r rid.RID) {
	t.mu.Lock()
	t.exclusiveLocks[r] = true
	t.mu.Unlock()
}

func (t *Transaction) upgradeLock(r rid.RID) {
	t.mu.Lock()
	delete(t.sharedLocks, r)
	t.exclusiveLocks[r] = true
	t.mu.Unlock()
}

func (t *Transaction) dropLock(r rid.RID) {
	t.mu.Lock()
	delete(t.sharedLocks, r)
	delete(t.exclusiveLocks, r)
	t.mu.Unlock()
}

// heldLocks returns a snapshot of every RID this transaction currently
// holds a lock on, shared or exclusive — used by Manager.Commit and
// Manager.Abort to release everything when the transaction ends.
func (t *Transaction) heldLocks() []rid.RID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]rid.RID, 0, len(t.sharedLocks)+len(t.exclusiveLocks))
	for r := range t.sharedLocks {
		out = append(out, r)
	}
	for r := range t.exclusiveLocks {
		if !t.sharedLocks[r] {
			out = append(out, r)
		}
	}
	return out
}
