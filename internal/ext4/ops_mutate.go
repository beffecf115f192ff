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

// Write pre-allocates blocks to cover offset+len, writes in block-sized
// chunks, and updates size to max(old_size, offset+len) (§4.2 "write").
func (fs *FileSystem) Write(ctx context.Context, id InodeID, offset uint64, data []byte) (int, error) {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return 0, err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if ino.typ != TypeRegular {
		return 0, errEISDIR
	}
	return fs.writeAtLocked(ctx, ino, offset, data)
}

func (fs *FileSystem) writeAtLocked(ctx context.Context, ino *Inode, offset uint64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	end := offset + uint64(len(data))
	if err := fs.growToLocked(ino, end); err != nil {
		return 0, err
	}

	bs := uint64(fs.sb.BlockSize())
	written := 0
	for written < len(data) {
		pos := offset + uint64(written)
		logicalBlock := pos / bs
		blockOff := pos % bs
		chunk := int(bs - blockOff)
		if remain := len(data) - written; chunk > remain {
			chunk = remain
		}

		phys, ok := ino.extents.lookup(logicalBlock)
		if !ok {
			return written, errENOSPC
		}
		var blockData []byte
		if blockOff != 0 || uint64(chunk) != bs {
			blockData, _ = fs.dev.ReadBlock(ctx, phys)
			if blockData == nil {
				blockData = make([]byte, bs)
			}
		} else {
			blockData = make([]byte, bs)
		}
		copy(blockData[blockOff:blockOff+uint64(chunk)], data[written:written+chunk])
		if err := fs.dev.WriteBlock(ctx, phys, blockData); err != nil {
			return written, err
		}
		written += chunk
	}

	if end > ino.size {
		ino.size = end
	}
	ino.mtime = fs.clock.Now()
	return written, nil
}

// Readlink returns the symlink target for id (§4.2 "readlink").
func (fs *FileSystem) Readlink(ctx context.Context, id InodeID) (string, error) {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return "", err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if ino.typ != TypeSymlink {
		return "", errENOENT
	}
	if ino.inline != nil {
		return string(ino.inline), nil
	}
	buf := make([]byte, ino.size)
	n, err := fs.readAtLocked(ctx, ino, 0, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Symlink creates a symlink inode for target, choosing the fast-inline path
// when target fits inlineSymlinkCapacity, else the extent-backed path.
func (fs *FileSystem) Symlink(ctx context.Context, parent InodeID, name, target string) (InodeID, error) {
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

	ino := fs.newInodeLocked(TypeSymlink, 0o777)
	ino.mu.Lock()
	ino.linkCount = 1
	if len(target) <= inlineSymlinkCapacity {
		ino.inline = []byte(target)
		ino.size = uint64(len(target))
	} else {
		if _, err := fs.writeAtLocked(ctx, ino, 0, []byte(target)); err != nil {
			ino.mu.Unlock()
			return 0, err
		}
	}
	ino.mu.Unlock()

	dir.mu.Lock()
	addEntryLocked(dir, name, ino.id, TypeSymlink)
	dir.mu.Unlock()

	return ino.id, nil
}

// Link adds a hard link to child within parent under name (§4.2 "link").
func (fs *FileSystem) Link(ctx context.Context, child, parent InodeID, name string) error {
	dir, err := fs.lookupInode(parent)
	if err != nil {
		return err
	}
	dir.mu.Lock()
	isDir := dir.typ == TypeDirectory
	dir.mu.Unlock()
	if !isDir {
		return errENOTDIR
	}

	ino, err := fs.lookupInode(child)
	if err != nil {
		return err
	}
	ino.mu.Lock()
	if ino.typ == TypeDirectory {
		ino.mu.Unlock()
		return errEISDIR
	}
	ino.linkCount++
	typ := ino.typ
	ino.mu.Unlock()

	dir.mu.Lock()
	addEntryLocked(dir, name, ino.id, typ)
	dir.mu.Unlock()
	return nil
}

// Unlink removes name from parent and decrements the child's link count,
// freeing the inode at zero (§4.2 "unlink").
func (fs *FileSystem) Unlink(ctx context.Context, parent InodeID, name string) error {
	dir, err := fs.lookupInode(parent)
	if err != nil {
		return err
	}
	dir.mu.Lock()
	if dir.typ != TypeDirectory {
		dir.mu.Unlock()
		return errENOTDIR
	}
	i := findEntryLocked(dir, name)
	if i < 0 {
		dir.mu.Unlock()
		return errENOENT
	}
	childID := dir.dirEntries[i].Inode
	dir.mu.Unlock()

	child, err := fs.lookupInode(childID)
	if err != nil {
		return err
	}
	child.mu.Lock()
	if child.typ == TypeDirectory {
		child.mu.Unlock()
		return errEISDIR
	}
	child.linkCount--
	shouldFree := child.linkCount == 0
	child.mu.Unlock()

	dir.mu.Lock()
	if i = findEntryLocked(dir, name); i >= 0 {
		removeEntryLocked(dir, i)
	}
	dir.mu.Unlock()

	if shouldFree {
		fs.freeInode(child)
	}
	return nil
}

// Mkdir allocates a directory inode with a self-referential "." entry and
// links it into parent, which gains a link via the new "..": (§4.2 "mkdir").
func (fs *FileSystem) Mkdir(ctx context.Context, parent InodeID, name string, mode uint32) (InodeID, error) {
	dir, err := fs.lookupInode(parent)
	if err != nil {
		return 0, err
	}
	dir.mu.Lock()
	isDir := dir.typ == TypeDirectory
	if isDir {
		if i := findEntryLocked(dir, name); i >= 0 {
			dir.mu.Unlock()
			return 0, errEEXIST
		}
	}
	dir.mu.Unlock()
	if !isDir {
		return 0, errENOTDIR
	}

	child := fs.newInodeLocked(TypeDirectory, mode|0o040000)
	child.mu.Lock()
	child.linkCount = 1
	child.dirEntries = []dirEntry{
		{Name: ".", Inode: child.id, Type: TypeDirectory},
		{Name: "..", Inode: parent, Type: TypeDirectory},
	}
	child.mu.Unlock()

	dir.mu.Lock()
	addEntryLocked(dir, name, child.id, TypeDirectory)
	dir.linkCount++ // the child's ".." contributes to the parent's link count
	dir.mu.Unlock()

	child.mu.Lock()
	child.linkCount++ // the parent's entry for the child is its second link
	child.mu.Unlock()

	return child.id, nil
}

// Rmdir removes an empty subdirectory (§4.2 "rmdir").
func (fs *FileSystem) Rmdir(ctx context.Context, parent InodeID, name string) error {
	dir, err := fs.lookupInode(parent)
	if err != nil {
		return err
	}
	dir.mu.Lock()
	if dir.typ != TypeDirectory {
		dir.mu.Unlock()
		return errENOTDIR
	}
	i := findEntryLocked(dir, name)
	if i < 0 {
		dir.mu.Unlock()
		return errENOENT
	}
	childID := dir.dirEntries[i].Inode
	dir.mu.Unlock()

	child, err := fs.lookupInode(childID)
	if err != nil {
		return err
	}
	child.mu.Lock()
	if child.typ != TypeDirectory {
		child.mu.Unlock()
		return errENOTDIR
	}
	if !isEmptyDirLocked(child) {
		child.mu.Unlock()
		return errENOTEMPTY
	}
	child.linkCount = 0
	child.mu.Unlock()

	dir.mu.Lock()
	if i = findEntryLocked(dir, name); i >= 0 {
		removeEntryLocked(dir, i)
	}
	dir.linkCount--
	dir.mu.Unlock()

	fs.freeInode(child)
	return nil
}
