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

// wouldCycle walks the ".." chain from start upward, failing if source is
// encountered before the root (§4.2 rename precondition, cycle check).
func (fs *FileSystem) wouldCycle(start, source InodeID) bool {
	cur := start
	for {
		if cur == source {
			return true
		}
		if cur == RootInodeID {
			return false
		}
		ino, err := fs.lookupInode(cur)
		if err != nil {
			return false
		}
		ino.mu.Lock()
		i := findEntryLocked(ino, "..")
		if i < 0 {
			ino.mu.Unlock()
			return false
		}
		parent := ino.dirEntries[i].Inode
		ino.mu.Unlock()
		if parent == cur {
			return false
		}
		cur = parent
	}
}

// Rename implements POSIX atomic replace per §4.2's Case A/B/C.
func (fs *FileSystem) Rename(ctx context.Context, oldParent InodeID, oldName string, newParent InodeID, newName string) error {
	oldDir, err := fs.lookupInode(oldParent)
	if err != nil {
		return err
	}
	newDir, err := fs.lookupInode(newParent)
	if err != nil {
		return err
	}

	oldDir.mu.Lock()
	if oldDir.typ != TypeDirectory {
		oldDir.mu.Unlock()
		return errENOTDIR
	}
	oi := findEntryLocked(oldDir, oldName)
	if oi < 0 {
		oldDir.mu.Unlock()
		return errENOENT
	}
	sourceID := oldDir.dirEntries[oi].Inode
	sourceType := oldDir.dirEntries[oi].Type
	oldDir.mu.Unlock()

	if newDir.typ != TypeDirectory {
		// read without lock: type is constant data (set at create, never
		// mutated), safe to read racily as a fast precondition check.
		return errENOTDIR
	}

	if sourceType == TypeDirectory && oldParent != newParent {
		if fs.wouldCycle(newParent, sourceID) {
			return errEINVAL
		}
	}

	newDir.mu.Lock()
	ni := findEntryLocked(newDir, newName)
	if ni < 0 {
		newDir.mu.Unlock()
		return fs.renameCaseC(ctx, oldDir, oldName, newDir, newName, sourceID, sourceType, oldParent, newParent)
	}
	targetID := newDir.dirEntries[ni].Inode
	newDir.mu.Unlock()

	if targetID == sourceID {
		return nil // Case A: same-inode rename is a no-op.
	}
	return fs.renameCaseB(ctx, oldDir, oldName, newDir, newName, sourceID, sourceType, targetID, oldParent, newParent)
}

func (fs *FileSystem) renameCaseC(ctx context.Context, oldDir *Inode, oldName string, newDir *Inode, newName string, sourceID InodeID, sourceType FileType, oldParent, newParent InodeID) error {
	oldDir.mu.Lock()
	if i := findEntryLocked(oldDir, oldName); i >= 0 {
		removeEntryLocked(oldDir, i)
	}
	oldDir.mu.Unlock()

	newDir.mu.Lock()
	addEntryLocked(newDir, newName, sourceID, sourceType)
	newDir.mu.Unlock()

	if sourceType == TypeDirectory && oldParent != newParent {
		fs.fixupMovedDirParent(sourceID, newParent)
		oldDir.mu.Lock()
		oldDir.linkCount--
		oldDir.mu.Unlock()
		newDir.mu.Lock()
		newDir.linkCount++
		newDir.mu.Unlock()
	}
	return nil
}

func (fs *FileSystem) renameCaseB(ctx context.Context, oldDir *Inode, oldName string, newDir *Inode, newName string, sourceID InodeID, sourceType FileType, targetID InodeID, oldParent, newParent InodeID) error {
	target, err := fs.lookupInode(targetID)
	if err != nil {
		return err
	}

	target.mu.Lock()
	targetType := target.typ
	if sourceType == TypeDirectory && targetType != TypeDirectory {
		target.mu.Unlock()
		return errENOTDIR
	}
	if sourceType != TypeDirectory && targetType == TypeDirectory {
		target.mu.Unlock()
		return errEISDIR
	}
	if targetType == TypeDirectory && !isEmptyDirLocked(target) {
		target.mu.Unlock()
		return errENOTEMPTY
	}

	// Flip the existing entry's inode pointer from target to source — the
	// name itself never ceases to exist (§4.2 dir_replace_entry).
	newDir.mu.Lock()
	ni := findEntryLocked(newDir, newName)
	replaceEntryInodeLocked(newDir, ni, sourceID, sourceType)
	newDir.mu.Unlock()

	wasDir := targetType == TypeDirectory
	target.linkCount--
	remaining := target.linkCount
	target.mu.Unlock()

	if wasDir {
		newDir.mu.Lock()
		newDir.linkCount--
		newDir.mu.Unlock()
	}

	shouldFree := (wasDir && remaining <= 1) || (!wasDir && remaining == 0)
	if shouldFree {
		fs.freeInode(target)
	}

	oldDir.mu.Lock()
	if i := findEntryLocked(oldDir, oldName); i >= 0 {
		removeEntryLocked(oldDir, i)
	}
	oldDir.mu.Unlock()

	if sourceType == TypeDirectory && oldParent != newParent {
		fs.fixupMovedDirParent(sourceID, newParent)
		oldDir.mu.Lock()
		oldDir.linkCount--
		oldDir.mu.Unlock()
		// newDir gains the moved directory's "..", offsetting the decrement
		// for the replaced target's ".." above: net change is zero.
		newDir.mu.Lock()
		newDir.linkCount++
		newDir.mu.Unlock()
	}
	return nil
}

// fixupMovedDirParent rewrites movedDir's ".." entry to point at newParent.
func (fs *FileSystem) fixupMovedDirParent(movedDir, newParent InodeID) {
	ino, err := fs.lookupInode(movedDir)
	if err != nil {
		return
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if i := findEntryLocked(ino, ".."); i >= 0 {
		replaceEntryInodeLocked(ino, i, newParent, TypeDirectory)
	}
}

// RenameExchange atomically swaps two directory entries (§4.2
// "rename_exchange").
func (fs *FileSystem) RenameExchange(ctx context.Context, p1 InodeID, n1 string, p2 InodeID, n2 string) error {
	dir1, err := fs.lookupInode(p1)
	if err != nil {
		return err
	}
	dir2, err := fs.lookupInode(p2)
	if err != nil {
		return err
	}

	dir1.mu.Lock()
	i1 := findEntryLocked(dir1, n1)
	if i1 < 0 {
		dir1.mu.Unlock()
		return errENOENT
	}
	id1, type1 := dir1.dirEntries[i1].Inode, dir1.dirEntries[i1].Type
	dir1.mu.Unlock()

	dir2.mu.Lock()
	i2 := findEntryLocked(dir2, n2)
	if i2 < 0 {
		dir2.mu.Unlock()
		return errENOENT
	}
	id2, type2 := dir2.dirEntries[i2].Inode, dir2.dirEntries[i2].Type
	dir2.mu.Unlock()

	if id1 == id2 {
		return nil
	}

	if type1 == TypeDirectory && p1 != p2 && fs.wouldCycle(p2, id1) {
		return errEINVAL
	}
	if type2 == TypeDirectory && p1 != p2 && fs.wouldCycle(p1, id2) {
		return errEINVAL
	}

	dir1.mu.Lock()
	if i := findEntryLocked(dir1, n1); i >= 0 {
		replaceEntryInodeLocked(dir1, i, id2, type2)
	}
	dir1.mu.Unlock()

	dir2.mu.Lock()
	if i := findEntryLocked(dir2, n2); i >= 0 {
		replaceEntryInodeLocked(dir2, i, id1, type1)
	}
	dir2.mu.Unlock()

	if p1 != p2 {
		if type1 == TypeDirectory {
			fs.fixupMovedDirParent(id1, p2)
		}
		if type2 == TypeDirectory {
			fs.fixupMovedDirParent(id2, p1)
		}
		// Net link-count change on each parent is zero when both
		// participants are directories (one ".." leaves, one arrives);
		// otherwise it is ±1 depending on which side gained/lost a
		// subdirectory child.
		if type1 == TypeDirectory && type2 != TypeDirectory {
			dir1.mu.Lock()
			dir1.linkCount--
			dir1.mu.Unlock()
			dir2.mu.Lock()
			dir2.linkCount++
			dir2.mu.Unlock()
		} else if type2 == TypeDirectory && type1 != TypeDirectory {
			dir2.mu.Lock()
			dir2.linkCount--
			dir2.mu.Unlock()
			dir1.mu.Lock()
			dir1.linkCount++
			dir1.mu.Unlock()
		}
	}
	return nil
}
