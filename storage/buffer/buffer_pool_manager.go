package buffer

import (
	"fmt"

	"corestore/storage/page"
	"corestore/storage/replacer"
)

// checkShard asserts the spec.md §4.2 invariant: page_id % num_instances ==
// instance_index.
func (p *PoolManager) checkShard(id page.ID) error {
	if int64(id)%int64(p.numInstances) != int64(p.instanceIndex) {
		return fmt.Errorf("%w: page %d, instance %d of %d", ErrWrongShard, id, p.instanceIndex, p.numInstances)
	}
	return nil
}

// victim picks a frame to hold a new resident page: the free list first,
// then the replacer, per spec.md §4.2's victim selection policy. Caller
// holds p.mu.
func (p *PoolManager) victim() (replacer.FrameID, bool) {
	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return fid, true
	}
	return p.replacer.Victim()
}

// evictFrame writes back a dirty victim frame and removes its page-table
// entry, if the frame was resident. Caller holds p.mu.
func (p *PoolManager) evictFrame(fid replacer.FrameID) error {
	pg := &p.frames[fid]
	if pg.ID == page.InvalidID {
		return nil
	}
	if pg.IsDirty {
		p.log.Debugf("flushing dirty page %d before eviction", pg.ID)
		if err := p.disk.WritePage(pg.ID, &pg.Data); err != nil {
			return fmt.Errorf("buffer: flush page %d during eviction: %w", pg.ID, err)
		}
	}
	delete(p.pageTable, pg.ID)
	p.log.Debugf("evicted page %d from frame %d", pg.ID, fid)
	return nil
}

// NewPage allocates a fresh page id, installs it pinned in a victim frame,
// and returns a pointer to it. Fails only when every frame is pinned
// (spec.md §4.2).
func (p *PoolManager) NewPage() (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.victim()
	if !ok {
		return nil, ErrNoFreeFrame
	}
	if err := p.evictFrame(fid); err != nil {
		return nil, err
	}

	id := page.ID(p.nextPageID)
	p.nextPageID += int64(p.numInstances)

	pg := &p.frames[fid]
	pg.Reset()
	pg.ID = id
	pg.PinCount = 1

	p.pageTable[id] = fid
	p.replacer.Pin(fid)

	p.log.Infof("new page %d in frame %d", id, fid)
	return pg, nil
}

// FetchPage returns the page for id, pinned, loading it from disk if it is
// not already resident. Fails when id belongs to another shard
// (ErrWrongShard), when the page is absent and no victim frame is
// available (ErrNoFreeFrame), or when an eviction flush or the disk read
// fails.
func (p *PoolManager) FetchPage(id page.ID) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkShard(id); err != nil {
		return nil, err
	}

	if fid, ok := p.pageTable[id]; ok {
		pg := &p.frames[fid]
		pg.Lock()
		pg.PinCount++
		pg.Unlock()
		p.replacer.Pin(fid)
		p.log.Debugf("fetch HIT page %d frame %d", id, fid)
		return pg, nil
	}

	fid, ok := p.victim()
	if !ok {
		return nil, ErrNoFreeFrame
	}
	if err := p.evictFrame(fid); err != nil {
		return nil, err
	}

	pg := &p.frames[fid]
	pg.Reset()
	if err := p.disk.ReadPage(id, &pg.Data); err != nil {
		p.freeList = append(p.freeList, fid)
		return nil, fmt.Errorf("buffer: read page %d: %w", id, err)
	}
	pg.ID = id
	pg.PinCount = 1

	p.pageTable[id] = fid
	p.replacer.Pin(fid)

	p.log.Debugf("fetch MISS page %d loaded into frame %d", id, fid)
	return pg, nil
}

// UnpinPage decrements id's pin count and marks it dirty if isDirty is true
// (the flag is OR'd in, never cleared here — spec.md §4.2). Returns false if
// id is not resident or already unpinned.
func (p *PoolManager) UnpinPage(id page.ID, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[id]
	if !ok {
		return false
	}
	pg := &p.frames[fid]
	pg.Lock()
	defer pg.Unlock()

	if pg.PinCount == 0 {
		return false
	}
	pg.PinCount--
	if isDirty {
		pg.IsDirty = true
	}
	if pg.PinCount == 0 {
		p.replacer.Unpin(fid)
	}
	return true
}

// FlushPage writes id's contents to disk unconditionally and clears its
// dirty flag, without evicting it. Returns false if id is not resident.
func (p *PoolManager) FlushPage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id == page.InvalidID {
		return false
	}
	fid, ok := p.pageTable[id]
	if !ok {
		return false
	}
	pg := &p.frames[fid]
	pg.Lock()
	defer pg.Unlock()

	if err := p.disk.WritePage(pg.ID, &pg.Data); err != nil {
		p.log.Warnf("flush page %d failed: %v", id, err)
		return false
	}
	pg.IsDirty = false
	return true
}

// FlushAllPages writes every resident dirty page to disk.
func (p *PoolManager) FlushAllPages() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, fid := range p.pageTable {
		pg := &p.frames[fid]
		pg.Lock()
		if pg.IsDirty {
			if err := p.disk.WritePage(id, &pg.Data); err != nil {
				p.log.Warnf("flush all: page %d failed: %v", id, err)
			} else {
				pg.IsDirty = false
			}
		}
		pg.Unlock()
	}
}

// DeletePage removes id from the pool, flushing it first if dirty. Succeeds
// (no-op) if id is not resident; fails if id is pinned.
func (p *PoolManager) DeletePage(id page.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[id]
	if !ok {
		return true
	}
	pg := &p.frames[fid]
	pg.Lock()
	if pg.PinCount > 0 {
		pg.Unlock()
		return false
	}
	if pg.IsDirty {
		if err := p.disk.WritePage(pg.ID, &pg.Data); err != nil {
			p.log.Warnf("delete page %d: flush failed: %v", id, err)
		}
	}
	pg.Reset()
	pg.Unlock()

	delete(p.pageTable, id)
	p.replacer.Pin(fid) // ensure it is not left tracked as replaceable
	p.freeList = append(p.freeList, fid)
	return true
}

// Stats reports a point-in-time snapshot of frame occupancy.
func (p *PoolManager) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{FramesTotal: len(p.frames), FramesFree: len(p.freeList)}
	for _, fid := range p.pageTable {
		pg := &p.frames[fid]
		pg.RLock()
		if pg.PinCount > 0 {
			s.FramesPinned++
		} else {
			s.FramesReplaceable++
		}
		pg.RUnlock()
	}
	return s
}
