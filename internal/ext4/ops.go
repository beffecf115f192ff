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

import "context"

// GetAttr returns up-to-date attributes for id (§4.2 "getattr").
func (fs *FileSystem) GetAttr(ctx context.Context, id InodeID) (Attributes, error) {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return Attributes{}, err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if ino.linkCount == 0 {
		return Attributes{}, errENOENT
	}
	return ino.snapshotLocked(), nil
}

// SetAttr applies patch to id, growing on-disk blocks first if size is
// patched upward (§4.2 "setattr").
func (fs *FileSystem) SetAttr(ctx context.Context, id InodeID, patch AttrPatch) (Attributes, error) {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return Attributes{}, err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()

	if patch.Mode != nil && *patch.Mode == 0 {
		return Attributes{}, errENOENT
	}
	if patch.Size != nil && *patch.Size > ino.size {
		if err := fs.growToLocked(ino, *patch.Size); err != nil {
			return Attributes{}, err
		}
		ino.size = *patch.Size
	} else if patch.Size != nil {
		ino.size = *patch.Size
	}
	if patch.Mode != nil {
		ino.mode = *patch.Mode
	}
	if patch.UID != nil {
		ino.uid = *patch.UID
	}
	if patch.GID != nil {
		ino.gid = *patch.GID
	}
	ino.ctime = fs.clock.Now()
	return ino.snapshotLocked(), nil
}

// growToLocked ensures ino's block count covers ceil(size/blockSize),
// allocating new blocks as a single extent appended to the tree. ino.mu must
// be held.
func (fs *FileSystem) growToLocked(ino *Inode, size uint64) error {
	bs := uint64(fs.sb.BlockSize())
	wantBlocks := (size + bs - 1) / bs
	have := ino.extents.numLogicalBlocks()
	if wantBlocks <= have {
		return nil
	}
	first, err := fs.sb.allocBlocks(wantBlocks - have)
	if err != nil {
		return err
	}
	ino.extents.append(first, wantBlocks-have)
	return nil
}

// Lookup resolves name within directory parent (§4.2, used by callers
// before create/rename to detect name conflicts).
func (fs *FileSystem) Lookup(ctx context.Context, parent InodeID, name string) (InodeID, error) {
	dir, err := fs.lookupInode(parent)
	if err != nil {
		return 0, err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if dir.typ != TypeDirectory {
		return 0, errENOTDIR
	}
	i := findEntryLocked(dir, name)
	if i < 0 {
		return 0, errENOENT
	}
	return dir.dirEntries[i].Inode, nil
}

// ListDir returns a snapshot of parent's directory entries.
func (fs *FileSystem) ListDir(ctx context.Context, parent InodeID) ([]DirEntry, error) {
	dir, err := fs.lookupInode(parent)
	if err != nil {
		return nil, err
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if dir.typ != TypeDirectory {
		return nil, errENOTDIR
	}
	out := make([]DirEntry, len(dir.dirEntries))
	for i, e := range dir.dirEntries {
		out[i] = DirEntry{Name: e.Name, Inode: e.Inode, Type: e.Type}
	}
	return out, nil
}

// DirEntry is the exported view of a directory entry.
type DirEntry struct {
	Name  string
	Inode InodeID
	Type  FileType
}

// Create allocates a regular-file inode and links it into parent under name
// (§4.2 "create").
func (fs *FileSystem) Create(ctx context.Context, parent InodeID, name string, mode uint32) (InodeID, error) {
	dir, err := fs.lookupInode(parent)
	if err != nil {
		return 0, err
	}
	dir.mu.Lock()
	isDir := dir.typ == TypeDirectory
	dir.mu.Unlock()
	if !isDir {
		return 0, errENOTDIR
	}

	ino := fs.newInodeLocked(TypeRegular, mode)
	ino.mu.Lock()
	ino.linkCount = 1
	ino.mu.Unlock()

	dir.mu.Lock()
	addEntryLocked(dir, name, ino.id, TypeRegular)
	dir.mu.Unlock()

	return ino.id, nil
}

// Read clamps to min(len(buf), size-offset) and returns the number of bytes
// read, treating hole blocks as zero-filled (§4.2 "read").
func (fs *FileSystem) Read(ctx context.Context, id InodeID, offset uint64, buf []byte) (int, error) {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return 0, err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if ino.typ != TypeRegular {
		return 0, errEISDIR
	}
	return fs.readAtLocked(ctx, ino, offset, buf)
}

// readAtLocked implements the block-by-block read used by both Read and the
// slow-symlink path. ino.mu must be held.
func (fs *FileSystem) readAtLocked(ctx context.Context, ino *Inode, offset uint64, buf []byte) (int, error) {
	if offset >= ino.size {
		return 0, nil
	}
	n := len(buf)
	if remaining := int(ino.size - offset); n > remaining {
		n = remaining
		buf = buf[:n]
	}

	bs := uint64(fs.sb.BlockSize())
	read := 0
	for read < n {
		pos := offset + uint64(read)
		logicalBlock := pos / bs
		blockOff := pos % bs
		chunk := int(bs - blockOff)
		if remain := n - read; chunk > remain {
			chunk = remain
		}

		phys, ok := ino.extents.lookup(logicalBlock)
		if !ok {
			// hole: zero-filled, not an error.
			for i := 0; i < chunk; i++ {
				buf[read+i] = 0
			}
		} else {
			blockData, err := fs.dev.ReadBlock(ctx, phys)
			if err != nil {
				return read, err
			}
			copy(buf[read:read+chunk], blockData[blockOff:blockOff+uint64(chunk)])
		}
		read += chunk
	}
	return read, nil
}
