// Package executor provides small façades over the locking and indexing
// primitives, composing them the way a query executor operator would
// without the operator/plan-node hierarchy itself (spec.md §1 scopes that
// out), grounded on
// original_source/src/execution/insert_executor.cpp's InsertExecutor::Next.
package executor

import (
	"corestore/concurrency"
	"corestore/hashindex"
	"corestore/storage/rid"
)

// Index is the subset of *hashindex.Table an executor needs.
type Index interface {
	Insert(key hashindex.Key, value rid.RID) (bool, error)
	Remove(key hashindex.Key, value rid.RID) (bool, error)
}

// IndexInsert takes the write lock txn needs on r (upgrading a held shared
// lock rather than re-acquiring, exactly as the original does), inserts
// (key, r) into idx, and then — unless txn runs at REPEATABLE_READ, which
// holds locks until commit — releases the lock immediately, matching
// SPEC_FULL.md §6's executor façade for the weaker isolation levels.
func IndexInsert(lm *concurrency.LockManager, txn *concurrency.Transaction, idx Index, key hashindex.Key, r rid.RID) (bool, error) {
	if txn.IsSharedLocked(r) {
		if err := lm.LockUpgrade(txn, r); err != nil {
			return false, err
		}
	} else if err := lm.LockExclusive(txn, r); err != nil {
		return false, err
	}

	ok, err := idx.Insert(key, r)
	if err != nil {
		return false, err
	}

	if txn.IsolationLevel != concurrency.RepeatableRead {
		lm.Unlock(txn, r)
	}

	return ok, nil
}

// IndexRemove takes the write lock txn needs on r, removes (key, r) from
// idx, and releases the lock unless txn runs at REPEATABLE_READ.
func IndexRemove(lm *concurrency.LockManager, txn *concurrency.Transaction, idx Index, key hashindex.Key, r rid.RID) (bool, error) {
	if err := lm.LockExclusive(txn, r); err != nil {
		return false, err
	}

	ok, err := idx.Remove(key, r)
	if err != nil {
		return false, err
	}

	if txn.IsolationLevel != concurrency.RepeatableRead {
		lm.Unlock(txn, r)
	}

	return ok, nil
}
