// Demo program: wires the buffer pool, disk manager, extendible hash
// index, and lock manager together end to end.
// Run: go run ./cmd/kerneldemo
package main

import (
	"fmt"
	"log"
	"os"

	"corestore/concurrency"
	"corestore/executor"
	"corestore/hashindex"
	"corestore/storage/buffer"
	"corestore/storage/disk"
	"corestore/storage/rid"
)

const dataFile = "kerneldemo.db"

func main() {
	dm, err := disk.NewFileManager(dataFile)
	if err != nil {
		log.Fatalf("open disk file: %v", err)
	}
	defer dm.Close()
	defer os.Remove(dataFile)

	pool := buffer.New(32, dm)
	idx := hashindex.New(pool)

	lockMgr := concurrency.NewLockManager()
	txnMgr := concurrency.NewManager(lockMgr)

	txn := txnMgr.Begin(concurrency.ReadCommitted)

	fmt.Println("Inserting 1000 keys to force directory growth and bucket splits...")
	for i := 0; i < 1000; i++ {
		key := keyFromInt(i)
		r := rid.RID{PageID: int64(i), SlotNum: 0}
		ok, err := executor.IndexInsert(lockMgr, txn, idx, key, r)
		if err != nil {
			log.Fatalf("insert %d: %v", i, err)
		}
		if !ok {
			fmt.Printf("insert %d rejected (duplicate or exhausted)\n", i)
		}
	}

	depth, err := idx.GlobalDepth()
	if err != nil {
		log.Fatalf("global depth: %v", err)
	}
	fmt.Printf("directory global depth after inserts: %d\n", depth)

	found, err := idx.GetValue(keyFromInt(42))
	if err != nil {
		log.Fatalf("lookup: %v", err)
	}
	fmt.Printf("lookup key 42 -> %v\n", found)

	if err := txnMgr.Commit(txn); err != nil {
		log.Fatalf("commit: %v", err)
	}

	stats := pool.Stats()
	fmt.Printf("buffer pool: total=%d free=%d pinned=%d replaceable=%d\n",
		stats.FramesTotal, stats.FramesFree, stats.FramesPinned, stats.FramesReplaceable)
}

func keyFromInt(i int) hashindex.Key {
	var k hashindex.Key
	k[0] = byte(i)
	k[1] = byte(i >> 8)
	return k
}
