package hashindex

import (
	"testing"

	"corestore/storage/page"
	"corestore/storage/rid"
)

func newTestBucket() *BucketPage {
	var pg page.Page
	return NewBucketPage(&pg)
}

func keyOf(n byte) Key {
	var k Key
	k[0] = n
	return k
}

func TestBucketInsertGetRemove(t *testing.T) {
	b := newTestBucket()
	k := keyOf(1)
	v := rid.RID{PageID: 10, SlotNum: 2}

	if !b.Insert(k, v) {
		t.Fatalf("Insert() = false, want true")
	}
	if b.Insert(k, v) {
		t.Fatalf("Insert() duplicate = true, want false")
	}

	var got []rid.RID
	if !b.GetValue(k, &got) || len(got) != 1 || got[0] != v {
		t.Fatalf("GetValue() = %v, want [%v]", got, v)
	}

	if !b.Remove(k, v) {
		t.Fatalf("Remove() = false, want true")
	}
	if b.Remove(k, v) {
		t.Fatalf("Remove() again = true, want false")
	}
	got = nil
	if b.GetValue(k, &got) {
		t.Fatalf("GetValue() after remove found = %v, want none", got)
	}
}

func TestBucketFullAndEmpty(t *testing.T) {
	b := newTestBucket()
	if !b.IsEmpty() {
		t.Fatalf("IsEmpty() on fresh bucket = false, want true")
	}
	for i := 0; i < BucketArraySize; i++ {
		v := rid.RID{PageID: int64(i)}
		if !b.Insert(keyOf(byte(i)), v) {
			t.Fatalf("Insert() #%d failed before bucket should be full", i)
		}
	}
	if !b.IsFull() {
		t.Fatalf("IsFull() = false after filling to capacity, want true")
	}
	if b.Insert(keyOf(250), rid.RID{PageID: 999}) {
		t.Fatalf("Insert() into full bucket = true, want false")
	}
	if b.NumReadable() != BucketArraySize {
		t.Fatalf("NumReadable() = %d, want %d", b.NumReadable(), BucketArraySize)
	}
}

func TestBucketRemoveIsTombstoneNotReclaim(t *testing.T) {
	b := newTestBucket()
	k, v := keyOf(5), rid.RID{PageID: 1}
	b.Insert(k, v)
	b.Remove(k, v)

	if !b.IsOccupied(0) {
		t.Fatalf("IsOccupied(0) = false after remove, want true (tombstone)")
	}
	if b.IsReadable(0) {
		t.Fatalf("IsReadable(0) = true after remove, want false")
	}
}
