// Package replacer implements the victim-selection policy the buffer pool
// delegates to once its free list is exhausted, grounded on
// original_source/src/buffer/lru_replacer.cpp.
package replacer

import (
	"container/list"
	"sync"
)

// FrameID indexes into the buffer pool's frame array.
type FrameID int

// LRU tracks which resident, currently-unpinned frames are eligible for
// eviction, ordered most-recently-unpinned to least-recently-unpinned.
// Pin/Unpin/Victim mirror the C++ original's semantics exactly: Unpin is a
// no-op if the frame is already tracked (no reordering on repeated unpin,
// per spec.md §4.1) or if the replacer is already at capacity.
type LRU struct {
	mu       sync.Mutex
	maxSize  int
	order    *list.List // front = most recently unpinned, back = victim candidate
	position map[FrameID]*list.Element
}

// NewLRU creates a replacer that can track at most maxSize frames.
func NewLRU(maxSize int) *LRU {
	return &LRU{
		maxSize:  maxSize,
		order:    list.New(),
		position: make(map[FrameID]*list.Element),
	}
}

// Victim removes and returns the least-recently-unpinned tracked frame.
// ok is false if no frame is currently replaceable.
func (l *LRU) Victim() (frame FrameID, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	back := l.order.Back()
	if back == nil {
		return 0, false
	}
	id := back.Value.(FrameID)
	l.order.Remove(back)
	delete(l.position, id)
	return id, true
}

// Pin removes frame from tracking, if present. Idempotent.
func (l *LRU) Pin(frame FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.position[frame]; ok {
		l.order.Remove(el)
		delete(l.position, frame)
	}
}

// Unpin makes frame eligible for victimization. A frame already tracked is
// left exactly where it is — repeated unpins never reorder it — and a full
// replacer silently drops the request.
func (l *LRU) Unpin(frame FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.position[frame]; ok {
		return
	}
	if l.order.Len() >= l.maxSize {
		return
	}
	l.position[frame] = l.order.PushFront(frame)
}

// Size reports how many frames are currently tracked as replaceable.
func (l *LRU) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
