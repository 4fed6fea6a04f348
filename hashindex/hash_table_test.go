package hashindex

import (
	"testing"

	"corestore/storage/buffer"
	"corestore/storage/disk"
	"corestore/storage/rid"
)

func newTestTable(t *testing.T, poolSize int) *Table {
	t.Helper()
	pool := buffer.New(poolSize, disk.NewMemoryManager())
	return New(pool)
}

func key32(n uint32) Key {
	var k Key
	k[0] = byte(n)
	k[1] = byte(n >> 8)
	k[2] = byte(n >> 16)
	k[3] = byte(n >> 24)
	return k
}

func TestInsertAndGetValue(t *testing.T) {
	tbl := newTestTable(t, 16)

	v := rid.RID{PageID: 1, SlotNum: 0}
	ok, err := tbl.Insert(key32(1), v)
	if err != nil || !ok {
		t.Fatalf("Insert() = (%v, %v), want (true, nil)", ok, err)
	}

	got, err := tbl.GetValue(key32(1))
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if len(got) != 1 || got[0] != v {
		t.Fatalf("GetValue() = %v, want [%v]", got, v)
	}
}

func TestInsertRejectsExactDuplicate(t *testing.T) {
	tbl := newTestTable(t, 16)
	v := rid.RID{PageID: 1}

	ok, err := tbl.Insert(key32(7), v)
	if err != nil || !ok {
		t.Fatalf("first Insert() = (%v, %v)", ok, err)
	}
	ok, err = tbl.Insert(key32(7), v)
	if err != nil {
		t.Fatalf("second Insert() error = %v", err)
	}
	if ok {
		t.Fatalf("duplicate Insert() = true, want false")
	}
}

func TestSplitOnOverflowGrowsDirectory(t *testing.T) {
	tbl := newTestTable(t, 64)

	n := BucketArraySize*2 + 10
	for i := 0; i < n; i++ {
		if _, err := tbl.Insert(key32(uint32(i)), rid.RID{PageID: int64(i)}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}

	depth, err := tbl.GlobalDepth()
	if err != nil {
		t.Fatalf("GlobalDepth() error = %v", err)
	}
	if depth == 0 {
		t.Fatalf("GlobalDepth() = 0 after overflow inserts, want > 0")
	}

	count := 0
	err = tbl.All(func(Key, rid.RID) bool {
		count++
		return true
	})
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if count != n {
		t.Fatalf("All() visited %d entries, want %d", count, n)
	}
}

func TestRemoveTriggersMerge(t *testing.T) {
	tbl := newTestTable(t, 64)

	n := BucketArraySize*2 + 10
	for i := 0; i < n; i++ {
		tbl.Insert(key32(uint32(i)), rid.RID{PageID: int64(i)})
	}
	depthAfterSplit, _ := tbl.GlobalDepth()

	for i := 0; i < n; i++ {
		ok, err := tbl.Remove(key32(uint32(i)), rid.RID{PageID: int64(i)})
		if err != nil {
			t.Fatalf("Remove(%d) error = %v", i, err)
		}
		if !ok {
			t.Fatalf("Remove(%d) = false, want true", i)
		}
	}

	depthAfterMerge, err := tbl.GlobalDepth()
	if err != nil {
		t.Fatalf("GlobalDepth() error = %v", err)
	}
	if depthAfterMerge > depthAfterSplit {
		t.Fatalf("GlobalDepth() grew during removal: %d -> %d", depthAfterSplit, depthAfterMerge)
	}

	count := 0
	tbl.All(func(Key, rid.RID) bool { count++; return true })
	if count != 0 {
		t.Fatalf("All() after full removal visited %d entries, want 0", count)
	}
}

func TestGetValueMissingKey(t *testing.T) {
	tbl := newTestTable(t, 16)
	got, err := tbl.GetValue(key32(999))
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetValue() for missing key = %v, want empty", got)
	}
}
