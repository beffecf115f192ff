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

// Package ext4 translates POSIX file operations into block/extent/directory
// mutations against a collab.BlockDevice (C3). It guarantees rename
// atomicity and the directory link-count invariant of §3.3/§4.2.
package ext4

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kernelsim/coresys/internal/clock"
	"github.com/kernelsim/coresys/internal/collab"
)

// InodeID identifies an on-disk inode. Zero is never a valid id.
type InodeID uint64

// RootInodeID is the fixed id of the filesystem root directory.
const RootInodeID InodeID = 2

// FileType discriminates the inode kinds this layer understands.
type FileType uint8

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
)

// inlineSymlinkCapacity bounds the fast-symlink inline slot (§3.3 "Fast
// (≤60 bytes inline)").
const inlineSymlinkCapacity = 60

// FileSystem is one mounted ext4-like volume: a superblock, an in-memory
// inode table, and the block device backing both (§4.2). The design mirrors
// the dependency-injected bucket/clock shape of a DirInode in the teacher's
// FUSE layer, with gcs.Bucket replaced by collab.BlockDevice.
type FileSystem struct {
	dev   collab.BlockDevice
	clock clock.Clock
	sb    *Superblock

	mu     sync.Mutex // guards inodes map membership only; per-inode mutation uses inode.mu
	inodes map[InodeID]*Inode
	nextID InodeID
}

// NewFileSystem formats a fresh volume on dev and returns the mounted
// filesystem with an empty root directory.
func NewFileSystem(dev collab.BlockDevice, clk clock.Clock) *FileSystem {
	fs := &FileSystem{
		dev:    dev,
		clock:  clk,
		sb:     newSuperblock(dev.BlockSize(), dev.NumBlocks()),
		inodes: make(map[InodeID]*Inode),
		nextID: RootInodeID - 1, // newInodeLocked increments first, so root gets RootInodeID
	}

	root := fs.newInodeLocked(TypeDirectory, 0o755)
	root.linkCount = 2
	root.dirEntries = []dirEntry{
		{Name: ".", Inode: root.id, Type: TypeDirectory},
		{Name: "..", Inode: root.id, Type: TypeDirectory},
	}
	return fs
}

// VolumeID returns the volume's format-time UUID (superblock s_uuid).
func (fs *FileSystem) VolumeID() uuid.UUID { return fs.sb.VolumeID() }

func (fs *FileSystem) newInodeLocked(typ FileType, mode uint32) *Inode {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.nextID++
	id := fs.nextID
	now := fs.clock.Now()
	ino := &Inode{
		id:      id,
		typ:     typ,
		mode:    mode,
		ctime:   now,
		mtime:   now,
		atime:   now,
		xattrs:  make(map[string][]byte),
		extents: newExtentTree(),
	}
	fs.inodes[id] = ino
	fs.sb.allocInode()
	return ino
}

// lookupInode returns the inode for id, or ENOENT if it has been freed.
func (fs *FileSystem) lookupInode(id InodeID) (*Inode, error) {
	fs.mu.Lock()
	ino, ok := fs.inodes[id]
	fs.mu.Unlock()
	if !ok {
		return nil, errENOENT
	}
	return ino, nil
}

// freeInode removes id from the table and returns its blocks to the
// superblock's free counters (§3.3 "releases extents and clears the inode
// bitmap").
func (fs *FileSystem) freeInode(ino *Inode) {
	fs.mu.Lock()
	delete(fs.inodes, ino.id)
	fs.mu.Unlock()
	fs.sb.freeInode()
	fs.sb.freeBlocks(ino.extents.totalBlocks())
}
