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

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kernelsim/coresys/internal/clock"
	"github.com/kernelsim/coresys/internal/collab"
	"github.com/kernelsim/coresys/internal/ext4"
)

func newExt4Cmd() *cobra.Command {
	ext4Cmd := &cobra.Command{Use: "ext4", Short: "ext4-like filesystem subcommands"}
	ext4Cmd.AddCommand(newExt4ShellCmd())
	return ext4Cmd
}

func newExt4ShellCmd() *cobra.Command {
	var blockSize int
	var numBlocks int
	shell := &cobra.Command{
		Use:   "shell",
		Short: "Open a line-oriented REPL over a fresh in-memory ext4 image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExt4Shell(cmd.InOrStdin(), cmd.OutOrStdout(), uint32(blockSize), uint64(numBlocks))
		},
	}
	shell.Flags().IntVar(&blockSize, "block-size", 4096, "simulated device block size in bytes")
	shell.Flags().IntVar(&numBlocks, "num-blocks", 4096, "simulated device block count")
	return shell
}

// runExt4Shell drives a tiny REPL over a single FileSystem instance, one
// command per line, cwd always RootInodeID since there's no path resolution
// beyond a single parent/name pair. Commands: ls, mkdir, create, write,
// read, symlink, readlink, unlink, rmdir, rename, setxattr, getxattr, quit.
func runExt4Shell(in io.Reader, out io.Writer, blockSize uint32, numBlocks uint64) error {
	dev := collab.NewFakeBlockDevice(blockSize, numBlocks)
	clk := clock.NewRealClock()
	fs := ext4.NewFileSystem(dev, clk)
	ctx := context.Background()

	fmt.Fprintf(out, "ksimd ext4 shell; volume %s; inode 2 is root; 'help' for commands, 'quit' to exit\n", fs.VolumeID())
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "ext4> ")
		if !scanner.Scan() {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := dispatchExt4Command(ctx, fs, out, fields); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func dispatchExt4Command(ctx context.Context, fs *ext4.FileSystem, out io.Writer, fields []string) error {
	switch fields[0] {
	case "help":
		fmt.Fprintln(out, "ls <dir-inode>")
		fmt.Fprintln(out, "mkdir <parent-inode> <name>")
		fmt.Fprintln(out, "create <parent-inode> <name>")
		fmt.Fprintln(out, "write <inode> <offset> <text>")
		fmt.Fprintln(out, "read <inode> <offset> <len>")
		fmt.Fprintln(out, "symlink <parent-inode> <name> <target>")
		fmt.Fprintln(out, "readlink <inode>")
		fmt.Fprintln(out, "unlink <parent-inode> <name>")
		fmt.Fprintln(out, "rmdir <parent-inode> <name>")
		fmt.Fprintln(out, "rename <old-parent-inode> <old-name> <new-parent-inode> <new-name>")
		fmt.Fprintln(out, "setxattr <inode> <name> <value>")
		fmt.Fprintln(out, "getxattr <inode> <name>")
		return nil
	case "ls":
		if len(fields) != 2 {
			return fmt.Errorf("usage: ls <dir-inode>")
		}
		id, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		entries, err := fs.ListDir(ctx, id)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%-20s ino=%d type=%v\n", e.Name, e.Inode, e.Type)
		}
		return nil
	case "mkdir":
		if len(fields) != 3 {
			return fmt.Errorf("usage: mkdir <parent-inode> <name>")
		}
		parent, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		id, err := fs.Mkdir(ctx, parent, fields[2], 0o755)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created directory ino=%d\n", id)
		return nil
	case "create":
		if len(fields) != 3 {
			return fmt.Errorf("usage: create <parent-inode> <name>")
		}
		parent, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		id, err := fs.Create(ctx, parent, fields[2], 0o644)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created file ino=%d\n", id)
		return nil
	case "write":
		if len(fields) < 4 {
			return fmt.Errorf("usage: write <inode> <offset> <text>")
		}
		id, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		offset, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parse offset: %w", err)
		}
		text := strings.Join(fields[3:], " ")
		n, err := fs.Write(ctx, id, offset, []byte(text))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %d bytes\n", n)
		return nil
	case "read":
		if len(fields) != 4 {
			return fmt.Errorf("usage: read <inode> <offset> <len>")
		}
		id, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		offset, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parse offset: %w", err)
		}
		length, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("parse len: %w", err)
		}
		buf := make([]byte, length)
		n, err := fs.Read(ctx, id, offset, buf)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%q\n", buf[:n])
		return nil
	case "symlink":
		if len(fields) != 4 {
			return fmt.Errorf("usage: symlink <parent-inode> <name> <target>")
		}
		parent, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		id, err := fs.Symlink(ctx, parent, fields[2], fields[3])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created symlink ino=%d\n", id)
		return nil
	case "readlink":
		if len(fields) != 2 {
			return fmt.Errorf("usage: readlink <inode>")
		}
		id, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		target, err := fs.Readlink(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, target)
		return nil
	case "unlink":
		if len(fields) != 3 {
			return fmt.Errorf("usage: unlink <parent-inode> <name>")
		}
		parent, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		return fs.Unlink(ctx, parent, fields[2])
	case "rmdir":
		if len(fields) != 3 {
			return fmt.Errorf("usage: rmdir <parent-inode> <name>")
		}
		parent, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		return fs.Rmdir(ctx, parent, fields[2])
	case "rename":
		if len(fields) != 5 {
			return fmt.Errorf("usage: rename <old-parent-inode> <old-name> <new-parent-inode> <new-name>")
		}
		oldParent, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		newParent, err := parseInodeID(fields[3])
		if err != nil {
			return err
		}
		return fs.Rename(ctx, oldParent, fields[2], newParent, fields[4])
	case "setxattr":
		if len(fields) < 4 {
			return fmt.Errorf("usage: setxattr <inode> <name> <value>")
		}
		id, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		return fs.SetXattr(ctx, id, fields[2], []byte(strings.Join(fields[3:], " ")))
	case "getxattr":
		if len(fields) != 3 {
			return fmt.Errorf("usage: getxattr <inode> <name>")
		}
		id, err := parseInodeID(fields[1])
		if err != nil {
			return err
		}
		value, err := fs.GetXattr(ctx, id, fields[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%q\n", value)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}
}

func parseInodeID(s string) (ext4.InodeID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse inode id %q: %w", s, err)
	}
	return ext4.InodeID(n), nil
}
