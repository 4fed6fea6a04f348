package hashindex

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"corestore/storage/page"
	"corestore/storage/rid"
)

// Pool is the narrow slice of the buffer pool manager the hash table needs
// — grounded on the teacher's pattern of declaring a small consumer-side
// interface instead of importing a concrete type wholesale (see
// WALFlushedLSNGetter in storage_engine/bufferpool/structs.go: "small
// interface so bufferpool doesn't import the whole wal package").
type Pool interface {
	NewPage() (*page.Page, error)
	FetchPage(id page.ID) (*page.Page, error)
	UnpinPage(id page.ID, isDirty bool) bool
	DeletePage(id page.ID) bool
}

// Table is the extendible hash table of spec.md §4.3: a directory page and
// bucket pages, all addressed through Pool. A table-level RWMutex
// coordinates structural changes (split/merge) against point operations,
// and each bucket page's own latch coordinates bucket-local mutation —
// matching the latch-ordering rule in spec.md §5 (table_latch before
// per-page latches).
type Table struct {
	pool Pool

	tableLatch sync.RWMutex
	initMu     sync.Mutex

	directoryPageID page.ID
	maxBucketDepth  uint32
}

// Option configures a Table at construction time.
type Option func(*Table)

// WithMaxBucketDepth overrides the default split ceiling (MaxGlobalDepth).
func WithMaxBucketDepth(depth uint32) Option {
	return func(t *Table) { t.maxBucketDepth = depth }
}

// New creates a hash table backed by pool. The directory page is not
// allocated until the first operation that needs it (lazy initialization,
// spec.md §4.3).
func New(pool Pool, opts ...Option) *Table {
	t := &Table{
		pool:            pool,
		directoryPageID: page.InvalidID,
		maxBucketDepth:  MaxGlobalDepth,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// hash downcasts a 64-bit xxhash digest to 32 bits, exactly as the original
// HashFunction::GetHash does for extendible hashing (spec.md §4.3: "h =
// hash(key) is a 32-bit value").
func (t *Table) hash(key Key) uint32 {
	return uint32(xxhash.Sum64(key[:]))
}

func (t *Table) keyToDirectoryIndex(key Key, dir *DirectoryPage) uint32 {
	return t.hash(key) & dir.GlobalDepthMask()
}

func (t *Table) keyToBucketPageID(key Key, dir *DirectoryPage) page.ID {
	return dir.BucketPageID(t.keyToDirectoryIndex(key, dir))
}

// fetchDirectoryPage returns the (pinned) directory page, creating it and
// its first bucket on first use. Exactly one creation happens across
// concurrent callers, serialized by initMu — grounded on the original's
// FetchDirectoryPage double-checked-style init lock.
func (t *Table) fetchDirectoryPage() (*page.Page, error) {
	t.initMu.Lock()
	if t.directoryPageID == page.InvalidID {
		dirPg, err := t.pool.NewPage()
		if err != nil {
			t.initMu.Unlock()
			return nil, err
		}
		dir := NewDirectoryPage(dirPg)
		dir.SetPageID(dirPg.ID)

		bucketPg, err := t.pool.NewPage()
		if err != nil {
			t.pool.UnpinPage(dirPg.ID, true)
			t.initMu.Unlock()
			return nil, err
		}
		dir.SetBucketPageID(0, bucketPg.ID)
		dir.SetLocalDepth(0, 0)
		t.pool.UnpinPage(bucketPg.ID, true)

		t.directoryPageID = dirPg.ID
		t.pool.UnpinPage(dirPg.ID, true)
	}
	t.initMu.Unlock()

	return t.pool.FetchPage(t.directoryPageID)
}

// GetValue returns every value stored under key.
func (t *Table) GetValue(key Key) ([]rid.RID, error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()

	dirPg, err := t.fetchDirectoryPage()
	if err != nil {
		return nil, err
	}
	dir := NewDirectoryPage(dirPg)
	defer t.pool.UnpinPage(dirPg.ID, false)

	bucketID := t.keyToBucketPageID(key, dir)
	bucketPg, err := t.pool.FetchPage(bucketID)
	if err != nil {
		return nil, err
	}
	bucketPg.RLock()
	bucket := NewBucketPage(bucketPg)
	var result []rid.RID
	bucket.GetValue(key, &result)
	bucketPg.RUnlock()
	t.pool.UnpinPage(bucketID, false)

	return result, nil
}

// Insert adds (key, value). Returns false if the exact pair already exists
// or the index has been exhausted by SplitInsert. The table read latch is
// released on every return path — the teacher's original left it held on
// the non-split success path (spec.md §4.3, §9 design note 1); this fixes
// that.
func (t *Table) Insert(key Key, value rid.RID) (bool, error) {
	t.tableLatch.RLock()

	dirPg, err := t.fetchDirectoryPage()
	if err != nil {
		t.tableLatch.RUnlock()
		return false, err
	}
	dir := NewDirectoryPage(dirPg)
	bucketID := t.keyToBucketPageID(key, dir)

	bucketPg, err := t.pool.FetchPage(bucketID)
	if err != nil {
		t.pool.UnpinPage(dirPg.ID, false)
		t.tableLatch.RUnlock()
		return false, err
	}

	bucketPg.Lock()
	bucket := NewBucketPage(bucketPg)
	if !bucket.IsFull() {
		ok := bucket.Insert(key, value)
		bucketPg.Unlock()
		t.pool.UnpinPage(bucketID, true)
		t.pool.UnpinPage(dirPg.ID, false)
		t.tableLatch.RUnlock()
		return ok, nil
	}
	bucketPg.Unlock()

	t.pool.UnpinPage(bucketID, false)
	t.pool.UnpinPage(dirPg.ID, false)
	t.tableLatch.RUnlock()

	return t.splitInsert(key, value)
}

// splitInsert doubles the directory (if needed), splits the full bucket
// into itself and a fresh image bucket, redistributes entries, and restarts
// the insert. Grounded on
// original_source/src/container/hash/extendible_hash_table.cpp's
// SplitInsert, with the directory-rewrite loop corrected per spec.md §9
// design note 2: every slot whose low local_mask bits match the split (or
// image) index is retargeted, rather than stepping by a fixed diff (which
// misses slots when global_depth exceeds the new local depth).
func (t *Table) splitInsert(key Key, value rid.RID) (bool, error) {
	t.tableLatch.Lock()

	dirPg, err := t.fetchDirectoryPage()
	if err != nil {
		t.tableLatch.Unlock()
		return false, err
	}
	dir := NewDirectoryPage(dirPg)

	splitIndex := t.keyToDirectoryIndex(key, dir)
	splitDepth := dir.LocalDepth(splitIndex)

	if splitDepth >= t.maxBucketDepth {
		t.pool.UnpinPage(dirPg.ID, false)
		t.tableLatch.Unlock()
		return false, nil
	}

	if splitDepth == dir.GlobalDepth() {
		if dir.GlobalDepth() >= MaxGlobalDepth {
			t.pool.UnpinPage(dirPg.ID, false)
			t.tableLatch.Unlock()
			return false, nil
		}
		oldSize := dir.Size()
		dir.IncrGlobalDepth()
		for i := uint32(0); i < oldSize; i++ {
			dir.SetBucketPageID(i+oldSize, dir.BucketPageID(i))
			dir.SetLocalDepth(i+oldSize, dir.LocalDepth(i))
		}
	}

	dir.IncrLocalDepth(splitIndex)
	newLocalDepth := dir.LocalDepth(splitIndex)
	splitBucketID := dir.BucketPageID(splitIndex)

	splitPg, err := t.pool.FetchPage(splitBucketID)
	if err != nil {
		t.pool.UnpinPage(dirPg.ID, false)
		t.tableLatch.Unlock()
		return false, err
	}
	splitPg.Lock()
	splitBucket := NewBucketPage(splitPg)
	oldEntries := splitBucket.entries()
	splitBucket.Reset()

	imagePg, err := t.pool.NewPage()
	if err != nil {
		splitPg.Unlock()
		t.pool.UnpinPage(splitBucketID, false)
		t.pool.UnpinPage(dirPg.ID, false)
		t.tableLatch.Unlock()
		return false, err
	}
	imageBucketID := imagePg.ID
	// imagePg is freshly allocated and not yet reachable through the
	// directory, so — unlike splitPg — it needs no latch of its own here;
	// the table write latch already excludes every other operation (spec.md
	// §5: never hold two bucket latches at once).
	imageBucket := NewBucketPage(imagePg)

	imageIndex := dir.SplitImageIndex(splitIndex)
	dir.SetLocalDepth(imageIndex, newLocalDepth)
	dir.SetBucketPageID(imageIndex, imageBucketID)

	mask := dir.LocalDepthMask(splitIndex)
	splitLowBits := splitIndex & mask
	imageLowBits := imageIndex & mask
	for i := uint32(0); i < dir.Size(); i++ {
		switch i & mask {
		case splitLowBits:
			dir.SetBucketPageID(i, splitBucketID)
			dir.SetLocalDepth(i, newLocalDepth)
		case imageLowBits:
			dir.SetBucketPageID(i, imageBucketID)
			dir.SetLocalDepth(i, newLocalDepth)
		}
	}

	for _, e := range oldEntries {
		idx := t.hash(e.key) & mask
		if idx == splitLowBits {
			splitBucket.Insert(e.key, e.value)
		} else {
			imageBucket.Insert(e.key, e.value)
		}
	}

	splitPg.Unlock()

	t.pool.UnpinPage(splitBucketID, true)
	t.pool.UnpinPage(imageBucketID, true)
	t.pool.UnpinPage(dirPg.ID, true)
	t.tableLatch.Unlock()

	return t.Insert(key, value)
}

// Remove deletes (key, value). If the bucket becomes empty, Merge is
// attempted.
func (t *Table) Remove(key Key, value rid.RID) (bool, error) {
	t.tableLatch.RLock()

	dirPg, err := t.fetchDirectoryPage()
	if err != nil {
		t.tableLatch.RUnlock()
		return false, err
	}
	dir := NewDirectoryPage(dirPg)
	bucketIndex := t.keyToDirectoryIndex(key, dir)
	bucketID := dir.BucketPageID(bucketIndex)

	bucketPg, err := t.pool.FetchPage(bucketID)
	if err != nil {
		t.pool.UnpinPage(dirPg.ID, false)
		t.tableLatch.RUnlock()
		return false, err
	}

	bucketPg.Lock()
	bucket := NewBucketPage(bucketPg)
	ok := bucket.Remove(key, value)
	empty := bucket.IsEmpty()
	bucketPg.Unlock()

	t.pool.UnpinPage(bucketID, true)
	t.pool.UnpinPage(dirPg.ID, false)
	t.tableLatch.RUnlock()

	if empty {
		if err := t.merge(bucketIndex); err != nil {
			return ok, err
		}
	}
	return ok, nil
}

// merge collapses targetIndex's bucket into its sibling image bucket when
// both are at the same local depth and the target is empty, then shrinks
// the directory while CanShrink holds (spec.md §4.3 invariant 4).
func (t *Table) merge(targetIndex uint32) error {
	t.tableLatch.Lock()
	defer t.tableLatch.Unlock()

	dirPg, err := t.fetchDirectoryPage()
	if err != nil {
		return err
	}
	dir := NewDirectoryPage(dirPg)

	if targetIndex >= dir.Size() {
		t.pool.UnpinPage(dirPg.ID, false)
		return nil
	}
	localDepth := dir.LocalDepth(targetIndex)
	if localDepth == 0 {
		t.pool.UnpinPage(dirPg.ID, false)
		return nil
	}
	imageIndex := dir.SplitImageIndex(targetIndex)
	if dir.LocalDepth(imageIndex) != localDepth {
		t.pool.UnpinPage(dirPg.ID, false)
		return nil
	}

	targetBucketID := dir.BucketPageID(targetIndex)
	targetPg, err := t.pool.FetchPage(targetBucketID)
	if err != nil {
		t.pool.UnpinPage(dirPg.ID, false)
		return err
	}
	targetPg.RLock()
	isEmpty := NewBucketPage(targetPg).IsEmpty()
	targetPg.RUnlock()
	t.pool.UnpinPage(targetBucketID, false)

	if !isEmpty {
		t.pool.UnpinPage(dirPg.ID, false)
		return nil
	}

	t.pool.DeletePage(targetBucketID)

	imageBucketID := dir.BucketPageID(imageIndex)
	dir.SetBucketPageID(targetIndex, imageBucketID)
	dir.DecrLocalDepth(targetIndex)
	dir.DecrLocalDepth(imageIndex)

	newDepth := dir.LocalDepth(targetIndex)
	for i := uint32(0); i < dir.Size(); i++ {
		if dir.BucketPageID(i) == targetBucketID || dir.BucketPageID(i) == imageBucketID {
			dir.SetBucketPageID(i, imageBucketID)
			dir.SetLocalDepth(i, newDepth)
		}
	}

	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}

	t.pool.UnpinPage(dirPg.ID, true)
	return nil
}

// All calls yield once for every (key, value) pair reachable from the
// directory, visiting each distinct bucket page exactly once even when
// multiple directory slots point to it. Iteration stops early if yield
// returns false.
func (t *Table) All(yield func(Key, rid.RID) bool) error {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()

	dirPg, err := t.fetchDirectoryPage()
	if err != nil {
		return err
	}
	dir := NewDirectoryPage(dirPg)
	defer t.pool.UnpinPage(dirPg.ID, false)

	seen := make(map[page.ID]bool)
	for i := uint32(0); i < dir.Size(); i++ {
		bucketID := dir.BucketPageID(i)
		if seen[bucketID] {
			continue
		}
		seen[bucketID] = true

		bucketPg, err := t.pool.FetchPage(bucketID)
		if err != nil {
			return err
		}
		bucketPg.RLock()
		bucket := NewBucketPage(bucketPg)
		stop := false
		for s := 0; s < BucketArraySize; s++ {
			if bucket.IsReadable(s) {
				if !yield(bucket.KeyAt(s), bucket.ValueAt(s)) {
					stop = true
					break
				}
			}
		}
		bucketPg.RUnlock()
		t.pool.UnpinPage(bucketID, false)
		if stop {
			break
		}
	}
	return nil
}

// GlobalDepth returns the directory's current global depth, for tests and
// diagnostics.
func (t *Table) GlobalDepth() (uint32, error) {
	t.tableLatch.RLock()
	defer t.tableLatch.RUnlock()

	dirPg, err := t.fetchDirectoryPage()
	if err != nil {
		return 0, err
	}
	depth := NewDirectoryPage(dirPg).GlobalDepth()
	t.pool.UnpinPage(dirPg.ID, false)
	return depth, nil
}
