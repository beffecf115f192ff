// Copyright 2026 The CoreSys Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ext4

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Superblock holds the volume-wide free-space counters (§3.3). Counters are
// atomics rather than mutex-guarded fields since every inode operation
// touches them and they have no other invariant to protect jointly.
type Superblock struct {
	blockSize uint32
	numBlocks uint64
	volumeID  uuid.UUID // s_uuid equivalent, stamped once at format time

	freeBlocksCount atomic.Uint64
	freeInodesCount atomic.Uint64
	nextBlock       atomic.Uint64 // simple bump allocator; never reused across frees
}

func newSuperblock(blockSize uint32, numBlocks uint64) *Superblock {
	sb := &Superblock{blockSize: blockSize, numBlocks: numBlocks, volumeID: uuid.New()}
	sb.freeBlocksCount.Store(numBlocks)
	sb.freeInodesCount.Store(1 << 20)
	sb.nextBlock.Store(1) // block 0 reserved
	return sb
}

func (sb *Superblock) BlockSize() uint32   { return sb.blockSize }
func (sb *Superblock) VolumeID() uuid.UUID { return sb.volumeID }

func (sb *Superblock) allocInode() { sb.freeInodesCount.Add(^uint64(0)) }
func (sb *Superblock) freeInode()  { sb.freeInodesCount.Add(1) }

// allocBlocks reserves n contiguous-by-convention blocks (callers only ever
// append, so contiguity is incidental, not guaranteed) and returns the id of
// the first one, or ENOSPC if the volume is exhausted.
func (sb *Superblock) allocBlocks(n uint64) (first uint64, err error) {
	if n == 0 {
		return 0, nil
	}
	if sb.freeBlocksCount.Load() < n {
		return 0, errENOSPC
	}
	first = sb.nextBlock.Add(n) - n
	if first+n > sb.numBlocks {
		sb.nextBlock.Add(^(n - 1)) // undo
		return 0, errENOSPC
	}
	sb.freeBlocksCount.Add(^(n - 1))
	return first, nil
}

func (sb *Superblock) freeBlocks(n uint64) {
	if n == 0 {
		return
	}
	sb.freeBlocksCount.Add(n)
}
