// Package rid defines the row identifier the hash index stores as its value
// type. It plays the role the teacher's types.RowPointer plays for heap
// files, generalized into the opaque handle spec.md §3 calls a "value".
package rid

import "fmt"

// RID locates a record: the page it lives on and its slot within that page.
// It is fixed-width so it can be packed directly into a bucket page slot.
type RID struct {
	PageID  int64
	SlotNum uint32
}

func (r RID) String() string {
	return fmt.Sprintf("%d:%d", r.PageID, r.SlotNum)
}
