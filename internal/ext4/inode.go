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
	"sync"
	"time"
)

// dirEntry is one (name, inode, type) tuple stored in a directory's data
// (§3.3 "Directory entry").
type dirEntry struct {
	Name  string
	Inode InodeID
	Type  FileType
}

// Inode is the in-memory reference to one on-disk inode (§3.3). All mutating
// operations in this package hold mu for the duration of the operation,
// mirroring the "held during every operation that reads or mutates the
// inode" contract.
type Inode struct {
	mu sync.Mutex

	id   InodeID
	typ  FileType
	mode uint32
	uid  uint32
	gid  uint32

	linkCount uint32
	size      uint64

	atime, mtime, ctime time.Time

	extents *extentTree

	// dirEntries is non-nil only for directories.
	dirEntries []dirEntry

	// symlink storage: inline holds the fast-symlink target when non-empty
	// and size <= inlineSymlinkCapacity; otherwise the target is written
	// through the regular extent-backed write path.
	inline []byte

	xattrBlockAllocated bool
	xattrs              map[string][]byte
}

// ID returns the inode's identifier. Safe to call without holding mu.
func (ino *Inode) ID() InodeID { return ino.id }

// Attributes is the getattr result (§4.2 "getattr(id)").
type Attributes struct {
	ID        InodeID
	Type      FileType
	Mode      uint32
	UID, GID  uint32
	LinkCount uint32
	Size      uint64
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
}

func (ino *Inode) snapshotLocked() Attributes {
	return Attributes{
		ID:        ino.id,
		Type:      ino.typ,
		Mode:      ino.mode,
		UID:       ino.uid,
		GID:       ino.gid,
		LinkCount: ino.linkCount,
		Size:      ino.size,
		Atime:     ino.atime,
		Mtime:     ino.mtime,
		Ctime:     ino.ctime,
	}
}

// AttrPatch is the setattr input; nil fields are left unmodified.
type AttrPatch struct {
	Mode *uint32
	UID  *uint32
	GID  *uint32
	Size *uint64
}
