package hashindex

import (
	"encoding/binary"

	"corestore/storage/page"
)

// MaxGlobalDepth bounds the directory's global depth (spec.md §3: "typically
// ≤ 9 so size ≤ 512"). DirectorySize is the fixed slot count the directory
// page always allocates room for (1 << MaxGlobalDepth); only the first
// 1<<global_depth entries are logically in use at any time.
const (
	MaxGlobalDepth = 9
	DirectorySize  = 1 << MaxGlobalDepth
)

// Directory page layout (spec.md §6), little-endian, padded to page size:
//
//	[page_id:4][lsn:4][global_depth:4][bucket_page_ids:4 × DirectorySize][local_depths:1 × DirectorySize]
const (
	dirOffPageID      = 0
	dirOffLSN         = 4
	dirOffGlobalDepth = 8
	dirOffBucketIDs   = 12
	dirOffLocalDepths = dirOffBucketIDs + 4*DirectorySize
)

// DirectoryPage is a view over the directory page's raw bytes.
type DirectoryPage struct {
	data *[page.Size]byte
}

func NewDirectoryPage(pg *page.Page) *DirectoryPage {
	return &DirectoryPage{data: &pg.Data}
}

func (d *DirectoryPage) PageID() page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(d.data[dirOffPageID:])))
}

func (d *DirectoryPage) SetPageID(id page.ID) {
	binary.LittleEndian.PutUint32(d.data[dirOffPageID:], uint32(int32(id)))
}

func (d *DirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.data[dirOffGlobalDepth:])
}

func (d *DirectoryPage) setGlobalDepth(depth uint32) {
	binary.LittleEndian.PutUint32(d.data[dirOffGlobalDepth:], depth)
}

// IncrGlobalDepth increments the global depth by one.
func (d *DirectoryPage) IncrGlobalDepth() { d.setGlobalDepth(d.GlobalDepth() + 1) }

// DecrGlobalDepth decrements the global depth by one. No-op at zero.
func (d *DirectoryPage) DecrGlobalDepth() {
	if gd := d.GlobalDepth(); gd > 0 {
		d.setGlobalDepth(gd - 1)
	}
}

// Size is the logical directory size: 1 << global_depth.
func (d *DirectoryPage) Size() uint32 { return 1 << d.GlobalDepth() }

// GlobalDepthMask is the bitmask selecting the low global_depth bits of a
// hash (spec.md §4.3: "h & ((1 << global_depth) - 1)").
func (d *DirectoryPage) GlobalDepthMask() uint32 {
	return d.Size() - 1
}

func (d *DirectoryPage) bucketIDOffset(i uint32) int {
	return dirOffBucketIDs + 4*int(i)
}

func (d *DirectoryPage) localDepthOffset(i uint32) int {
	return dirOffLocalDepths + int(i)
}

// BucketPageID returns the page id of the bucket directory slot i names.
func (d *DirectoryPage) BucketPageID(i uint32) page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(d.data[d.bucketIDOffset(i):])))
}

// SetBucketPageID points directory slot i at bucketID.
func (d *DirectoryPage) SetBucketPageID(i uint32, bucketID page.ID) {
	binary.LittleEndian.PutUint32(d.data[d.bucketIDOffset(i):], uint32(int32(bucketID)))
}

// LocalDepth returns the local depth of the bucket at directory slot i.
func (d *DirectoryPage) LocalDepth(i uint32) uint32 {
	return uint32(d.data[d.localDepthOffset(i)])
}

// SetLocalDepth sets the local depth of the bucket at directory slot i.
func (d *DirectoryPage) SetLocalDepth(i uint32, depth uint32) {
	d.data[d.localDepthOffset(i)] = byte(depth)
}

// IncrLocalDepth increments the local depth at slot i by one.
func (d *DirectoryPage) IncrLocalDepth(i uint32) { d.SetLocalDepth(i, d.LocalDepth(i)+1) }

// DecrLocalDepth decrements the local depth at slot i by one. No-op at
// zero.
func (d *DirectoryPage) DecrLocalDepth(i uint32) {
	if ld := d.LocalDepth(i); ld > 0 {
		d.SetLocalDepth(i, ld-1)
	}
}

// LocalDepthMask is the bitmask selecting the low local_depth(i) bits of a
// hash.
func (d *DirectoryPage) LocalDepthMask(i uint32) uint32 {
	return (1 << d.LocalDepth(i)) - 1
}

// SplitImageIndex returns the sibling directory index created when the
// bucket at slot i splits: i with its new high bit flipped (spec.md §4.3:
// "image_index = b ^ (1 << (local_depth(b) − 1))").
func (d *DirectoryPage) SplitImageIndex(i uint32) uint32 {
	ld := d.LocalDepth(i)
	if ld == 0 {
		return i
	}
	return i ^ (1 << (ld - 1))
}

// CanShrink reports whether every in-use slot's local depth is strictly
// less than the global depth — the condition under which the global depth
// can be decremented (spec.md §4.3 invariant 4).
func (d *DirectoryPage) CanShrink() bool {
	size := d.Size()
	gd := d.GlobalDepth()
	for i := uint32(0); i < size; i++ {
		if d.LocalDepth(i) >= gd {
			return false
		}
	}
	return true
}
