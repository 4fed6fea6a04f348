// Package buffer implements the fixed-size in-memory page cache described
// in spec.md §4.2, adapted from the teacher's storage_engine/bufferpool.
package buffer

import (
	"sync"

	"corestore/storage/disk"
	"corestore/storage/page"
	"corestore/storage/replacer"
)

// Logger is the narrow structured-logging sink the buffer pool reports
// activity through, generalizing the teacher's bare fmt.Printf("[BufferPool]
// ...") calls into an injectable interface so callers can silence or
// redirect it (e.g. in tests) without editing the package.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}

// Stats is a point-in-time snapshot of frame occupancy, grounded on the
// teacher's BufferPoolStats (storage_engine/bufferpool/structs.go),
// generalized from heap/index-page counters to the three-way frame
// partition spec.md §3 defines (free / pinned / replaceable).
type Stats struct {
	FramesTotal       int
	FramesFree        int
	FramesPinned      int
	FramesReplaceable int
}

// PoolManager is the buffer pool manager of spec.md §4.2: a fixed array of
// frames, a page table mapping resident page ids to frames, a free list, an
// LRU replacer, and a disk manager it delegates I/O to. It supports a
// sharded deployment per spec.md §4.2: NewPage allocates ids congruent to
// instanceIndex modulo numInstances, and FetchPage rejects ids outside that
// residue class with ErrWrongShard. UnpinPage, FlushPage and DeletePage do
// not check the shard of the id they are given.
type PoolManager struct {
	mu sync.Mutex

	frames    []page.Page             // fixed-size backing array; addresses stable for pinned pages' lifetime
	pageTable map[page.ID]replacer.FrameID
	freeList  []replacer.FrameID
	replacer  *replacer.LRU

	disk disk.Manager
	log  Logger

	nextPageID    int64
	numInstances  int
	instanceIndex int
}

// Option configures a PoolManager at construction time.
type Option func(*PoolManager)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(p *PoolManager) { p.log = l }
}

// WithSharding configures this instance as one of numInstances peers, owning
// page ids congruent to instanceIndex modulo numInstances (spec.md §4.2).
func WithSharding(numInstances, instanceIndex int) Option {
	return func(p *PoolManager) {
		p.numInstances = numInstances
		p.instanceIndex = instanceIndex
	}
}

// New creates a buffer pool of poolSize frames backed by dm.
func New(poolSize int, dm disk.Manager, opts ...Option) *PoolManager {
	p := &PoolManager{
		frames:        make([]page.Page, poolSize),
		pageTable:     make(map[page.ID]replacer.FrameID, poolSize),
		freeList:      make([]replacer.FrameID, poolSize),
		replacer:      replacer.NewLRU(poolSize),
		disk:          dm,
		log:           nopLogger{},
		numInstances:  1,
		instanceIndex: 0,
	}
	for i := range p.freeList {
		p.freeList[i] = replacer.FrameID(i)
		p.frames[i].ID = page.InvalidID
	}
	for _, opt := range opts {
		opt(p)
	}
	p.nextPageID = int64(p.instanceIndex)
	return p
}
