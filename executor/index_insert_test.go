package executor

import (
	"testing"

	"corestore/concurrency"
	"corestore/hashindex"
	"corestore/storage/buffer"
	"corestore/storage/disk"
	"corestore/storage/rid"
)

func newTestEnv() (*hashindex.Table, *concurrency.LockManager, *concurrency.Manager) {
	pool := buffer.New(16, disk.NewMemoryManager())
	idx := hashindex.New(pool)
	lm := concurrency.NewLockManager()
	tm := concurrency.NewManager(lm)
	return idx, lm, tm
}

func testKey(n byte) hashindex.Key {
	var k hashindex.Key
	k[0] = n
	return k
}

func TestIndexInsertTakesExclusiveLock(t *testing.T) {
	idx, lm, tm := newTestEnv()
	txn := tm.Begin(concurrency.ReadCommitted)
	r := rid.RID{PageID: 1}

	ok, err := IndexInsert(lm, txn, idx, testKey(1), r)
	if err != nil || !ok {
		t.Fatalf("IndexInsert() = (%v, %v), want (true, nil)", ok, err)
	}

	// READ_COMMITTED releases the write lock immediately after the insert.
	if txn.IsExclusiveLocked(r) {
		t.Fatalf("IsExclusiveLocked() = true after insert under READ_COMMITTED, want false")
	}

	got, err := idx.GetValue(testKey(1))
	if err != nil || len(got) != 1 || got[0] != r {
		t.Fatalf("GetValue() = (%v, %v), want ([%v], nil)", got, err, r)
	}
}

func TestIndexInsertHoldsLockUnderRepeatableRead(t *testing.T) {
	idx, lm, tm := newTestEnv()
	txn := tm.Begin(concurrency.RepeatableRead)
	r := rid.RID{PageID: 1}

	if _, err := IndexInsert(lm, txn, idx, testKey(1), r); err != nil {
		t.Fatalf("IndexInsert() error = %v", err)
	}
	if !txn.IsExclusiveLocked(r) {
		t.Fatalf("IsExclusiveLocked() = false under REPEATABLE_READ, want true (held until commit)")
	}
}

func TestIndexInsertUpgradesHeldSharedLock(t *testing.T) {
	idx, lm, tm := newTestEnv()
	txn := tm.Begin(concurrency.RepeatableRead)
	r := rid.RID{PageID: 1}

	if err := lm.LockShared(txn, r); err != nil {
		t.Fatalf("LockShared() error = %v", err)
	}
	ok, err := IndexInsert(lm, txn, idx, testKey(1), r)
	if err != nil || !ok {
		t.Fatalf("IndexInsert() = (%v, %v), want (true, nil)", ok, err)
	}
	if txn.IsSharedLocked(r) {
		t.Fatalf("IsSharedLocked() = true after upgrade, want false")
	}
}
