package hashindex

import (
	"corestore/storage/page"
	"testing"
)

func newTestDirectory() *DirectoryPage {
	var pg page.Page
	return NewDirectoryPage(&pg)
}

func TestDirectoryDepthAndSize(t *testing.T) {
	d := newTestDirectory()
	if d.GlobalDepth() != 0 || d.Size() != 1 {
		t.Fatalf("fresh directory depth=%d size=%d, want 0, 1", d.GlobalDepth(), d.Size())
	}
	d.IncrGlobalDepth()
	d.IncrGlobalDepth()
	if d.GlobalDepth() != 2 || d.Size() != 4 {
		t.Fatalf("after two increments depth=%d size=%d, want 2, 4", d.GlobalDepth(), d.Size())
	}
	if d.GlobalDepthMask() != 3 {
		t.Fatalf("GlobalDepthMask() = %d, want 3", d.GlobalDepthMask())
	}
	d.DecrGlobalDepth()
	d.DecrGlobalDepth()
	d.DecrGlobalDepth() // no-op at zero
	if d.GlobalDepth() != 0 {
		t.Fatalf("GlobalDepth() = %d after over-decrementing, want 0", d.GlobalDepth())
	}
}

func TestDirectorySplitImageIndex(t *testing.T) {
	d := newTestDirectory()
	d.SetLocalDepth(3, 2)
	if got := d.SplitImageIndex(3); got != 1 {
		t.Fatalf("SplitImageIndex(3) with local depth 2 = %d, want 1", got)
	}
	d.SetLocalDepth(0, 0)
	if got := d.SplitImageIndex(0); got != 0 {
		t.Fatalf("SplitImageIndex(0) with local depth 0 = %d, want 0 (unchanged)", got)
	}
}

func TestDirectoryCanShrink(t *testing.T) {
	d := newTestDirectory()
	d.IncrGlobalDepth() // size 2
	d.SetLocalDepth(0, 1)
	d.SetLocalDepth(1, 1)
	if d.CanShrink() {
		t.Fatalf("CanShrink() = true when every local depth equals global depth, want false")
	}
	d.SetLocalDepth(0, 0)
	d.SetLocalDepth(1, 0)
	if !d.CanShrink() {
		t.Fatalf("CanShrink() = false when every local depth is below global depth, want true")
	}
}
