package disk

import (
	"sync"

	"corestore/storage/page"
)

// MemoryManager is an in-memory stand-in for Manager, grounded on the
// teacher's bplustree/inmemory_pager.go (a map-backed pager used by its test
// suite instead of a real file). Used by package tests that want a disk
// collaborator without touching the filesystem.
type MemoryManager struct {
	mu    sync.RWMutex
	pages map[page.ID]*[page.Size]byte
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{pages: make(map[page.ID]*[page.Size]byte)}
}

func (m *MemoryManager) ReadPage(id page.ID, buf *[page.Size]byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if data, ok := m.pages[id]; ok {
		*buf = *data
		return nil
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (m *MemoryManager) WritePage(id page.ID, buf *[page.Size]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *buf
	m.pages[id] = &cp
	return nil
}

var _ Manager = (*MemoryManager)(nil)
