// Package disk implements the external disk-I/O collaborator spec.md §6
// describes: synchronous, infallible-by-contract ReadPage/WritePage. It is
// out of spec.md's scope as a subsystem to design, but a real file-backed
// implementation is provided so the buffer pool is runnable end-to-end,
// grounded on the teacher's storage_engine/disk_manager/main.go ReadAt/
// WriteAt pattern.
package disk

import (
	"fmt"
	"os"

	"corestore/storage/page"
)

// Manager is the DiskManager interface the buffer pool consumes
// (spec.md §6).
type Manager interface {
	ReadPage(id page.ID, buf *[page.Size]byte) error
	WritePage(id page.ID, buf *[page.Size]byte) error
}

// FileManager backs pages with a single on-disk file, addressed by
// page_id * page.Size. Unlike the teacher's DiskManager, it does not
// multiplex multiple logical files behind one fileID space — spec.md models
// a single flat page_id address space per buffer-pool instance, with
// sharding handled by the buffer pool itself (num_instances/instance_index,
// spec.md §4.2).
type FileManager struct {
	file *os.File
}

// NewFileManager opens (creating if absent) the backing file at path.
func NewFileManager(path string) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	return &FileManager{file: f}, nil
}

// ReadPage reads the page at id into buf. A short read past current file
// size (e.g. a page never written yet) is zero-padded rather than treated
// as an error, since NewPage on the buffer-pool side does not write
// through to disk immediately.
func (m *FileManager) ReadPage(id page.ID, buf *[page.Size]byte) error {
	if id < 0 {
		return fmt.Errorf("disk: invalid page id %d", id)
	}
	offset := int64(id) * page.Size
	n, err := m.file.ReadAt(buf[:], offset)
	if err != nil && n == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	for i := n; i < page.Size; i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes buf to the page slot for id.
func (m *FileManager) WritePage(id page.ID, buf *[page.Size]byte) error {
	if id < 0 {
		return fmt.Errorf("disk: invalid page id %d", id)
	}
	offset := int64(id) * page.Size
	if _, err := m.file.WriteAt(buf[:], offset); err != nil {
		return fmt.Errorf("disk: write page %d: %w", id, err)
	}
	return nil
}

// Sync flushes the OS file buffer to stable storage.
func (m *FileManager) Sync() error {
	return m.file.Sync()
}

// Close closes the backing file.
func (m *FileManager) Close() error {
	return m.file.Close()
}

var _ Manager = (*FileManager)(nil)
