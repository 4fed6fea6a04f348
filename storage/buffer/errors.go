package buffer

import "errors"

// Sentinel errors for the contract-violation / resource-exhaustion cases
// spec.md §7 says must localize to the caller rather than panic the
// process, continuing the teacher's fmt.Errorf-wrapping style
// (storage_engine/bufferpool/bufferpool.go) but as errors.Is-comparable
// values.
var (
	// ErrNoFreeFrame means every frame is pinned: NewPage/FetchPage could
	// not find a victim.
	ErrNoFreeFrame = errors.New("buffer: no free frame available, all pages pinned")
	// ErrPageNotFound means the requested page id is not resident.
	ErrPageNotFound = errors.New("buffer: page not resident")
	// ErrPagePinned means DeletePage was asked to evict a pinned page.
	ErrPagePinned = errors.New("buffer: page is pinned")
	// ErrWrongShard means a page id was addressed to the wrong sharded
	// instance (spec.md §4.2's instance_index/num_instances contract).
	ErrWrongShard = errors.New("buffer: page id does not belong to this shard")
)
