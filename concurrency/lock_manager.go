package concurrency

import (
	"sync"

	"corestore/storage/rid"
)

// Mode is the lock mode held or requested for a row.
type Mode uint8

const (
	Shared Mode = iota
	Exclusive
)

const invalidTxnID int64 = -1

// request is one transaction's entry in a row's lock queue. Unlike the
// original's request_queue_ of value-typed LockRequest (where LockUpgrade
// ranged over `auto iter : request_queue_` and mutated a copy — spec.md §9
// design note 3), this queue stores *request pointers throughout, so
// granting or upgrading a request in place actually mutates the queue.
type request struct {
	txnID   int64
	mode    Mode
	granted bool
}

// queue is the wait/grant queue for a single RID.
type queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	requests  []*request
	upgrading int64
}

func newQueue() *queue {
	q := &queue{upgrading: invalidTxnID}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// LockManager grants and releases row-level locks under wound-wait
// deadlock prevention: a request that conflicts with a younger
// transaction's already-queued request aborts (wounds) that younger
// transaction, while a request that conflicts with an older transaction's
// request waits for it, so an older transaction never waits on a younger
// one (spec.md §4.4).
type LockManager struct {
	mu    sync.Mutex
	table map[rid.RID]*queue

	txns *Manager // resolves a queued txn id back to its Transaction for wound-wait
}

// NewLockManager creates an empty lock manager. Attach must be called with
// the owning Manager before any lock is requested, so wound-wait can look
// up the transactions it wounds.
func NewLockManager() *LockManager {
	return &LockManager{table: make(map[rid.RID]*queue)}
}

// Attach wires the lock manager to the transaction manager that created it,
// resolving the circular dependency between the two without a package-level
// global (the teacher's original used a static TransactionManager::GetTransaction
// lookup; a field here keeps the lookup instance-scoped).
func (lm *LockManager) Attach(m *Manager) { lm.txns = m }

func (lm *LockManager) transactionByID(id int64) *Transaction {
	if lm.txns == nil {
		return nil
	}
	return lm.txns.Get(id)
}

func (lm *LockManager) getQueue(r rid.RID) *queue {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	q, ok := lm.table[r]
	if !ok {
		q = newQueue()
		lm.table[r] = q
	}
	return q
}

func checkAbort(txn *Transaction) bool {
	return txn.State() == Aborted
}

// LockShared acquires a shared lock on r for txn, blocking until granted.
// Returns an *AbortError if txn is forced to abort before or while waiting.
func (lm *LockManager) LockShared(txn *Transaction, r rid.RID) error {
	if checkAbort(txn) {
		return &AbortError{txn.ID, AbortWoundWait}
	}
	if txn.IsolationLevel == ReadUncommitted {
		txn.setState(Aborted)
		return &AbortError{txn.ID, AbortLockOnShrinking}
	}
	if txn.State() != Growing {
		txn.setState(Aborted)
		return &AbortError{txn.ID, AbortLockOnShrinking}
	}
	if txn.IsSharedLocked(r) {
		return nil
	}

	q := lm.getQueue(r)
	q.mu.Lock()
	defer q.mu.Unlock()

	req := &request{txnID: txn.ID, mode: Shared}
	q.requests = append(q.requests, req)
	txn.addSharedLock(r)

	for lm.needWait(txn, q) {
		q.cond.Wait()
		if checkAbort(txn) {
			return &AbortError{txn.ID, AbortWoundWait}
		}
	}

	req.granted = true
	txn.setState(Growing)
	return nil
}

// LockExclusive acquires an exclusive lock on r for txn, blocking until
// granted.
func (lm *LockManager) LockExclusive(txn *Transaction, r rid.RID) error {
	if checkAbort(txn) {
		return &AbortError{txn.ID, AbortWoundWait}
	}
	if txn.State() != Growing {
		txn.setState(Aborted)
		return &AbortError{txn.ID, AbortLockOnShrinking}
	}
	if txn.IsExclusiveLocked(r) {
		return nil
	}

	q := lm.getQueue(r)
	q.mu.Lock()
	defer q.mu.Unlock()

	req := &request{txnID: txn.ID, mode: Exclusive}
	q.requests = append(q.requests, req)
	txn.addExclusiveLock(r)

	for lm.needWait(txn, q) {
		q.cond.Wait()
		if checkAbort(txn) {
			return &AbortError{txn.ID, AbortWoundWait}
		}
	}

	req.granted = true
	txn.setState(Growing)
	return nil
}

// LockUpgrade promotes txn's shared lock on r to exclusive, blocking until
// every older request on r has drained; every younger request on r is
// wounded. Only one transaction may be upgrading a given row at a time.
func (lm *LockManager) LockUpgrade(txn *Transaction, r rid.RID) error {
	if checkAbort(txn) {
		return &AbortError{txn.ID, AbortWoundWait}
	}
	if txn.State() != Growing {
		txn.setState(Aborted)
		return &AbortError{txn.ID, AbortUpgradeConflict}
	}
	if txn.IsExclusiveLocked(r) {
		return nil
	}

	q := lm.getQueue(r)
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.upgrading != invalidTxnID && q.upgrading != txn.ID {
		txn.setState(Aborted)
		return &AbortError{txn.ID, AbortUpgradeConflict}
	}
	q.upgrading = txn.ID

	for lm.needWaitUpgrade(txn, q) {
		q.cond.Wait()
		if checkAbort(txn) {
			q.upgrading = invalidTxnID
			return &AbortError{txn.ID, AbortWoundWait}
		}
	}

	for _, req := range q.requests {
		if req.txnID == txn.ID {
			req.granted = true
			req.mode = Exclusive
			txn.setState(Growing)
			txn.upgradeLock(r)
			break
		}
	}
	q.upgrading = invalidTxnID
	return nil
}

// Unlock releases txn's lock on r. If txn is Growing, it is moved to
// Shrinking only under REPEATABLE_READ isolation (SPEC_FULL.md §4.4): under
// READ_COMMITTED a transaction releases shared locks immediately after each
// read and keeps acquiring more without ending its growing phase, and
// READ_UNCOMMITTED never takes shared locks to begin with, so in neither
// case does releasing a lock signal the end of 2PL's growing phase. This
// matches the teacher's original, which guards the transition with the
// same isolation-level check.
func (lm *LockManager) Unlock(txn *Transaction, r rid.RID) bool {
	if !txn.IsSharedLocked(r) && !txn.IsExclusiveLocked(r) {
		return false
	}

	q := lm.getQueue(r)
	q.mu.Lock()

	if q.upgrading == txn.ID {
		q.upgrading = invalidTxnID
	}

	found := false
	for i, req := range q.requests {
		if req.txnID == txn.ID {
			found = true
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			q.cond.Broadcast()
			break
		}
	}
	q.mu.Unlock()

	if !found {
		return false
	}

	if txn.State() == Growing && txn.IsolationLevel == RepeatableRead {
		txn.setState(Shrinking)
	}
	txn.dropLock(r)
	return true
}

// needWait implements wound-wait for a just-enqueued Shared or Exclusive
// request: any older (lower-id) conflicting request ahead of txn in the
// queue is waited for; any younger (higher-id) conflicting request ahead of
// txn is wounded (aborted) instead, since wound-wait never lets an older
// transaction wait on a younger one. Caller holds q.mu.
func (lm *LockManager) needWait(txn *Transaction, q *queue) bool {
	self := q.requests[len(q.requests)-1]
	first := q.requests[0]

	if self.mode == Shared {
		if first.txnID == txn.ID || first.mode == Shared {
			return false
		}
	} else if first.txnID == txn.ID {
		return false
	}

	needWait := false
	hasAborted := false
	for _, iter := range q.requests {
		if iter.txnID == txn.ID {
			break
		}
		if iter.txnID > txn.ID {
			conflicts := (self.mode == Shared && iter.mode == Exclusive) || self.mode == Exclusive
			if conflicts {
				if other := lm.transactionByID(iter.txnID); other != nil && other.State() != Aborted {
					other.setState(Aborted)
					hasAborted = true
				}
			}
			continue
		}
		if self.mode == Exclusive || iter.mode == Exclusive {
			needWait = true
		}
	}

	if hasAborted {
		q.cond.Broadcast()
	}
	return needWait
}

// needWaitUpgrade is LockUpgrade's variant of needWait: txn waits for every
// older request in the queue, ahead of or behind its own, and wounds every
// younger one, since an upgrade
// must wait for ALL other holders to release (not just conflicting-mode
// ones) before it can become exclusive.
func (lm *LockManager) needWaitUpgrade(txn *Transaction, q *queue) bool {
	needWait := false
	hasAborted := false
	for _, iter := range q.requests {
		if iter.txnID == txn.ID {
			continue
		}
		if iter.txnID > txn.ID {
			if other := lm.transactionByID(iter.txnID); other != nil && other.State() != Aborted {
				other.setState(Aborted)
				hasAborted = true
			}
			continue
		}
		needWait = true
	}
	if hasAborted {
		q.cond.Broadcast()
	}
	return needWait
}
