// Package hashindex implements the extendible hash index of spec.md §4.3:
// a directory page plus bucket pages, addressed only by page id through the
// buffer pool, grounded on
// original_source/src/storage/page/hash_table_bucket_page.cpp and
// original_source/src/container/hash/extendible_hash_table.cpp, with the two
// source bugs spec.md §9 calls out fixed rather than reproduced.
package hashindex

import (
	"encoding/binary"

	"corestore/storage/page"
	"corestore/storage/rid"
)

// Key is a fixed-width hash-table key, analogous to BusTub's GenericKey<8>
// instantiation (spec.md §3 leaves key width to the implementation; a fixed
// width is what makes BUCKET_ARRAY_SIZE computable from page size alone,
// per spec.md §6).
type Key [8]byte

const (
	keySize   = 8          // len(Key)
	valueSize = 8 + 4       // rid.RID: PageID int64 + SlotNum uint32
	slotSize  = keySize + valueSize
)

// BucketArraySize is the fixed slot capacity of a bucket page:
// floor((page_size*8) / (2 + 8*(keysize+valuesize))), per spec.md §6,
// recomputed here against the actual occupied/readable bitmap byte cost
// (ceil(capacity/8) each) instead of the formula's idealized capacity/8, so
// the computed capacity always actually fits in one page.
var BucketArraySize = computeBucketCapacity()

func computeBucketCapacity() int {
	n := (page.Size * 8) / (2 + 8*slotSize)
	for n > 0 && bucketPageBytes(n) > page.Size {
		n--
	}
	return n
}

func bucketPageBytes(capacity int) int {
	bitmapBytes := (capacity + 7) / 8
	return 2*bitmapBytes + capacity*slotSize
}

var bitmapBytes = (BucketArraySize + 7) / 8

// BucketPage is a view over a page's raw bytes: an occupied bitmap, a
// readable bitmap, and an array of (key, value) slots. A slot is occupied
// if its occupied bit is set, and readable only if both bits are set — a
// tombstone is occupied-but-not-readable (spec.md §3).
type BucketPage struct {
	data *[page.Size]byte
}

func NewBucketPage(pg *page.Page) *BucketPage {
	return &BucketPage{data: &pg.Data}
}

func (b *BucketPage) occupiedBitmap() []byte { return b.data[0:bitmapBytes] }
func (b *BucketPage) readableBitmap() []byte { return b.data[bitmapBytes : 2*bitmapBytes] }
func (b *BucketPage) slotOffset(i int) int   { return 2*bitmapBytes + i*slotSize }

func bitSet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<uint(i%8)) != 0
}

func bitSetOn(bitmap []byte, i int) {
	bitmap[i/8] |= 1 << uint(i%8)
}

func bitSetOff(bitmap []byte, i int) {
	bitmap[i/8] &^= 1 << uint(i%8)
}

func (b *BucketPage) IsOccupied(i int) bool { return bitSet(b.occupiedBitmap(), i) }
func (b *BucketPage) IsReadable(i int) bool { return bitSet(b.readableBitmap(), i) }

func (b *BucketPage) setOccupied(i int) { bitSetOn(b.occupiedBitmap(), i) }
func (b *BucketPage) setReadable(i int) { bitSetOn(b.readableBitmap(), i) }
func (b *BucketPage) clearReadable(i int) { bitSetOff(b.readableBitmap(), i) }

func (b *BucketPage) KeyAt(i int) Key {
	var k Key
	copy(k[:], b.data[b.slotOffset(i):b.slotOffset(i)+keySize])
	return k
}

func (b *BucketPage) ValueAt(i int) rid.RID {
	off := b.slotOffset(i) + keySize
	return rid.RID{
		PageID:  int64(binary.LittleEndian.Uint64(b.data[off:])),
		SlotNum: binary.LittleEndian.Uint32(b.data[off+8:]),
	}
}

func (b *BucketPage) setSlot(i int, key Key, value rid.RID) {
	off := b.slotOffset(i)
	copy(b.data[off:off+keySize], key[:])
	binary.LittleEndian.PutUint64(b.data[off+keySize:], uint64(value.PageID))
	binary.LittleEndian.PutUint32(b.data[off+keySize+8:], value.SlotNum)
}

// GetValue appends every readable value stored under key to result.
func (b *BucketPage) GetValue(key Key, result *[]rid.RID) bool {
	found := false
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) && b.KeyAt(i) == key {
			*result = append(*result, b.ValueAt(i))
			found = true
		}
	}
	return found
}

// Insert places (key, value) in the first free slot, rejecting exact
// (key, value) duplicates. Returns false if the bucket is full or the pair
// already exists.
func (b *BucketPage) Insert(key Key, value rid.RID) bool {
	available := -1
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) {
			if b.KeyAt(i) == key && b.ValueAt(i) == value {
				return false
			}
		} else if available == -1 {
			available = i
		}
	}
	if available == -1 {
		return false
	}
	b.setSlot(available, key, value)
	b.setOccupied(available)
	b.setReadable(available)
	return true
}

// Remove clears the first matching (key, value) slot's readable bit
// (tombstone). Returns false if no match exists.
func (b *BucketPage) Remove(key Key, value rid.RID) bool {
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) && b.KeyAt(i) == key && b.ValueAt(i) == value {
			b.clearReadable(i)
			return true
		}
	}
	return false
}

// IsFull reports whether every slot is readable.
func (b *BucketPage) IsFull() bool {
	for i := 0; i < BucketArraySize; i++ {
		if !b.IsReadable(i) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no slot is readable.
func (b *BucketPage) IsEmpty() bool {
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) {
			return false
		}
	}
	return true
}

// NumReadable counts readable slots.
func (b *BucketPage) NumReadable() int {
	n := 0
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) {
			n++
		}
	}
	return n
}

type bucketEntry struct {
	key   Key
	value rid.RID
}

// entries returns a copy of every readable (key, value) pair, for
// redistribution during a split.
func (b *BucketPage) entries() []bucketEntry {
	out := make([]bucketEntry, 0, b.NumReadable())
	for i := 0; i < BucketArraySize; i++ {
		if b.IsReadable(i) {
			out = append(out, bucketEntry{key: b.KeyAt(i), value: b.ValueAt(i)})
		}
	}
	return out
}

// Reset clears all bitmaps and slot data, for reuse after a split empties
// the original bucket into two.
func (b *BucketPage) Reset() {
	for i := range b.data {
		b.data[i] = 0
	}
}
