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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelsim/coresys/internal/clock"
	"github.com/kernelsim/coresys/internal/collab"
	"github.com/kernelsim/coresys/internal/errno"
)

func newTestFS(t *testing.T) *FileSystem {
	t.Helper()
	dev := collab.NewFakeBlockDevice(512, 4096)
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	return NewFileSystem(dev, clk)
}

func TestRenameOverExistingFile(t *testing.T) {
	// S1: /d contains a (10-ish) and b; rename(d, a, d, b).
	fs := newTestFS(t)
	ctx := context.Background()

	d, err := fs.Mkdir(ctx, RootInodeID, "d", 0o755)
	require.NoError(t, err)
	a, err := fs.Create(ctx, d, "a", 0o644)
	require.NoError(t, err)
	_, err = fs.Create(ctx, d, "b", 0o644)
	require.NoError(t, err)

	before, err := fs.GetAttr(ctx, d)
	require.NoError(t, err)

	require.NoError(t, fs.Rename(ctx, d, "a", d, "b"))

	_, err = fs.Lookup(ctx, d, "a")
	assert.ErrorIs(t, err, errno.ENOENT)

	got, err := fs.Lookup(ctx, d, "b")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	after, err := fs.GetAttr(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, before.LinkCount, after.LinkCount)
}

func TestRenameAcrossDirectoriesMovingDirectory(t *testing.T) {
	// S2: /src/sub/, /dst/ empty; rename(src, sub, dst, sub).
	fs := newTestFS(t)
	ctx := context.Background()

	src, err := fs.Mkdir(ctx, RootInodeID, "src", 0o755)
	require.NoError(t, err)
	dst, err := fs.Mkdir(ctx, RootInodeID, "dst", 0o755)
	require.NoError(t, err)
	sub, err := fs.Mkdir(ctx, src, "sub", 0o755)
	require.NoError(t, err)

	require.NoError(t, fs.Rename(ctx, src, "sub", dst, "sub"))

	_, err = fs.Lookup(ctx, src, "sub")
	assert.ErrorIs(t, err, errno.ENOENT)

	got, err := fs.Lookup(ctx, dst, "sub")
	require.NoError(t, err)
	assert.Equal(t, sub, got)

	parent, err := fs.Lookup(ctx, sub, "..")
	require.NoError(t, err)
	assert.Equal(t, dst, parent)

	assert.True(t, checkLinkCountInvariant(mustInode(t, fs, src)))
	assert.True(t, checkLinkCountInvariant(mustInode(t, fs, dst)))
}

func TestRenameCycleDetection(t *testing.T) {
	// S3: /a/b/c/; rename(root, a, c, a) must fail EINVAL.
	fs := newTestFS(t)
	ctx := context.Background()

	a, err := fs.Mkdir(ctx, RootInodeID, "a", 0o755)
	require.NoError(t, err)
	b, err := fs.Mkdir(ctx, a, "b", 0o755)
	require.NoError(t, err)
	c, err := fs.Mkdir(ctx, b, "c", 0o755)
	require.NoError(t, err)

	err = fs.Rename(ctx, RootInodeID, "a", c, "a")
	assert.ErrorIs(t, err, errno.EINVAL)
}

func TestDirectoryLinkCountInvariant(t *testing.T) {
	// P4: d.link_count == 2 + |children that are directories|.
	fs := newTestFS(t)
	ctx := context.Background()

	d, err := fs.Mkdir(ctx, RootInodeID, "d", 0o755)
	require.NoError(t, err)
	assert.True(t, checkLinkCountInvariant(mustInode(t, fs, d)))

	_, err = fs.Mkdir(ctx, d, "child1", 0o755)
	require.NoError(t, err)
	assert.True(t, checkLinkCountInvariant(mustInode(t, fs, d)))

	_, err = fs.Mkdir(ctx, d, "child2", 0o755)
	require.NoError(t, err)
	assert.True(t, checkLinkCountInvariant(mustInode(t, fs, d)))

	require.NoError(t, fs.Rmdir(ctx, d, "child1"))
	assert.True(t, checkLinkCountInvariant(mustInode(t, fs, d)))
}

func TestWriteReadRoundTripWithHoles(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	f, err := fs.Create(ctx, RootInodeID, "file", 0o644)
	require.NoError(t, err)

	data := []byte("hello world")
	n, err := fs.Write(ctx, f, 0, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	n, err = fs.Read(ctx, f, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])

	attrs, err := fs.GetAttr(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), attrs.Size)
}

func TestFastSymlinkRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	s, err := fs.Symlink(ctx, RootInodeID, "link", "short-target")
	require.NoError(t, err)

	got, err := fs.Readlink(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "short-target", got)
}

func TestUnlinkFreesInodeAtZeroLinks(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	f, err := fs.Create(ctx, RootInodeID, "file", 0o644)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink(ctx, RootInodeID, "file"))
	_, err = fs.GetAttr(ctx, f)
	assert.ErrorIs(t, err, errno.ENOENT)
}

func TestRmdirFailsWhenNotEmpty(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	d, err := fs.Mkdir(ctx, RootInodeID, "d", 0o755)
	require.NoError(t, err)
	_, err = fs.Create(ctx, d, "f", 0o644)
	require.NoError(t, err)

	err = fs.Rmdir(ctx, RootInodeID, "d")
	assert.ErrorIs(t, err, errno.ENOTEMPTY)
}

func TestSetXattrAndGetXattr(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	f, err := fs.Create(ctx, RootInodeID, "file", 0o644)
	require.NoError(t, err)

	_, err = fs.GetXattr(ctx, f, "user.foo")
	assert.ErrorIs(t, err, errno.ENODATA)

	require.NoError(t, fs.SetXattr(ctx, f, "user.foo", []byte("bar")))
	v, err := fs.GetXattr(ctx, f, "user.foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("bar"), v)

	require.NoError(t, fs.RemoveXattr(ctx, f, "user.foo"))
	_, err = fs.GetXattr(ctx, f, "user.foo")
	assert.ErrorIs(t, err, errno.ENODATA)
}

func mustInode(t *testing.T, fs *FileSystem, id InodeID) *Inode {
	t.Helper()
	ino, err := fs.lookupInode(id)
	require.NoError(t, err)
	return ino
}
