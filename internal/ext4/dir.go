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

// findEntryLocked returns the index of name within dir's entries, or -1.
// dir.mu must be held.
func findEntryLocked(dir *Inode, name string) int {
	for i, e := range dir.dirEntries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// addEntryLocked appends a new directory entry. dir.mu must be held.
func addEntryLocked(dir *Inode, name string, id InodeID, typ FileType) {
	dir.dirEntries = append(dir.dirEntries, dirEntry{Name: name, Inode: id, Type: typ})
}

// removeEntryLocked deletes the entry at index i. dir.mu must be held.
func removeEntryLocked(dir *Inode, i int) {
	dir.dirEntries = append(dir.dirEntries[:i], dir.dirEntries[i+1:]...)
}

// replaceEntryInodeLocked flips the target of an existing entry in place —
// the name never ceases to exist between the two writes, which is what
// makes dir_replace_entry crash-atomic at the single-entry level (§4.2).
func replaceEntryInodeLocked(dir *Inode, i int, id InodeID, typ FileType) {
	dir.dirEntries[i].Inode = id
	dir.dirEntries[i].Type = typ
}

// isEmptyDirLocked reports whether dir has no entries beyond "." and "..".
// dir.mu must be held.
func isEmptyDirLocked(dir *Inode) bool {
	return len(dir.dirEntries) == 2
}

// checkLinkCountInvariant reports whether d's link count matches 2 plus the
// number of child subdirectories (P4). Used only by tests; production code
// maintains the invariant incrementally rather than recomputing it.
func checkLinkCountInvariant(d *Inode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.typ != TypeDirectory {
		return true
	}
	subdirs := uint32(0)
	for _, e := range d.dirEntries {
		if e.Type == TypeDirectory && e.Name != "." && e.Name != ".." {
			subdirs++
		}
	}
	return d.linkCount == 2+subdirs
}
