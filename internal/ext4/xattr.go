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

// xattrBlockCapacity bounds the single lazily-allocated xattr block's
// in-block table (§4.2 "Extended attributes").
const xattrBlockCapacity = 64

// GetXattr returns the value stored under name, or ENODATA if unset.
func (fs *FileSystem) GetXattr(ctx context.Context, id InodeID, name string) ([]byte, error) {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return nil, err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if !ino.xattrBlockAllocated {
		return nil, errENODATA
	}
	v, ok := ino.xattrs[name]
	if !ok {
		return nil, errENODATA
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// SetXattr allocates the xattr block on first use and writes name=value,
// failing ENOSPC once the in-block table is full (§4.2 "setxattr").
func (fs *FileSystem) SetXattr(ctx context.Context, id InodeID, name string, value []byte) error {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if !ino.xattrBlockAllocated {
		ino.xattrBlockAllocated = true
	}
	if _, exists := ino.xattrs[name]; !exists && len(ino.xattrs) >= xattrBlockCapacity {
		return errENOSPC
	}
	v := make([]byte, len(value))
	copy(v, value)
	ino.xattrs[name] = v
	return nil
}

// RemoveXattr deletes name, returning ENODATA if it was not set.
func (fs *FileSystem) RemoveXattr(ctx context.Context, id InodeID, name string) error {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if !ino.xattrBlockAllocated {
		return errENODATA
	}
	if _, ok := ino.xattrs[name]; !ok {
		return errENODATA
	}
	delete(ino.xattrs, name)
	return nil
}

// ListXattr returns the set of attribute names currently stored.
func (fs *FileSystem) ListXattr(ctx context.Context, id InodeID) ([]string, error) {
	ino, err := fs.lookupInode(id)
	if err != nil {
		return nil, err
	}
	ino.mu.Lock()
	defer ino.mu.Unlock()
	if !ino.xattrBlockAllocated {
		return nil, nil
	}
	names := make([]string, 0, len(ino.xattrs))
	for k := range ino.xattrs {
		names = append(names, k)
	}
	return names, nil
}
