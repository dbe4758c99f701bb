package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/ginternals/object"
	"github.com/sourcehut-labs/mgit/internal/testhelper"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// run executes cmd with args, capturing stdout, the way cobra command
// tests are normally driven.
func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestInitAndHashObjectAndCatFile(t *testing.T) {
	t.Parallel()

	d, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	cfg := newGlobalFlags(d)
	initOut := &bytes.Buffer{}
	require.NoError(t, initCmd(initOut, cfg, initCmdFlags{}, d))
	require.Contains(t, initOut.String(), "Initialized empty Git repository")

	filePath := filepath.Join(d, "hello.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello world\n"), 0o644))

	hashOut := &bytes.Buffer{}
	require.NoError(t, hashObjectCmd(hashOut, cfg, filePath, "blob", true))
	oid := strings.TrimSpace(hashOut.String())
	require.Len(t, oid, 40)

	catOut := &bytes.Buffer{}
	require.NoError(t, catFileCmd(catOut, cfg, catFileParams{prettyPrint: true, objectName: oid}))
	require.Equal(t, "hello world\n", catOut.String())
}

func TestWriteTreeReadTreeRoundTrip(t *testing.T) {
	t.Parallel()

	d, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	cfg := newGlobalFlags(d)
	require.NoError(t, initCmd(&bytes.Buffer{}, cfg, initCmdFlags{}, d))

	filePath := filepath.Join(d, "hello.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello world\n"), 0o644))

	require.NoError(t, addCmd(cfg, []string{"hello.txt"}))

	treeOut := &bytes.Buffer{}
	require.NoError(t, writeTreeCmd(treeOut, cfg))
	treeID := strings.TrimSpace(treeOut.String())
	require.Len(t, treeID, 40)

	require.NoError(t, readTreeCmd(cfg, treeID))

	lsOut := &bytes.Buffer{}
	require.NoError(t, lsTreeCmd(lsOut, cfg, treeID))
	require.Contains(t, lsOut.String(), "hello.txt")
}

func TestCommitTree(t *testing.T) {
	t.Parallel()

	d, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	cfg := newGlobalFlags(d)
	require.NoError(t, initCmd(&bytes.Buffer{}, cfg, initCmdFlags{}, d))

	filePath := filepath.Join(d, "hello.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello world\n"), 0o644))
	require.NoError(t, addCmd(cfg, []string{"hello.txt"}))

	treeOut := &bytes.Buffer{}
	require.NoError(t, writeTreeCmd(treeOut, cfg))
	treeID := strings.TrimSpace(treeOut.String())

	// commit-tree builds a detached commit: it doesn't move any ref.
	commitOut := &bytes.Buffer{}
	require.NoError(t, commitTreeCmd(commitOut, cfg, treeID, nil, "initial commit"))
	commitID := strings.TrimSpace(commitOut.String())
	require.Len(t, commitID, 40)

	catOut := &bytes.Buffer{}
	require.NoError(t, catFileCmd(catOut, cfg, catFileParams{prettyPrint: true, objectName: commitID}))
	require.Contains(t, catOut.String(), "tree "+treeID)
	require.Contains(t, catOut.String(), "initial commit")
}

func TestLog(t *testing.T) {
	t.Parallel()

	d, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	cfg := newGlobalFlags(d)
	require.NoError(t, initCmd(&bytes.Buffer{}, cfg, initCmdFlags{}, d))

	filePath := filepath.Join(d, "hello.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello world\n"), 0o644))
	require.NoError(t, addCmd(cfg, []string{"hello.txt"}))

	treeOut := &bytes.Buffer{}
	require.NoError(t, writeTreeCmd(treeOut, cfg))
	treeID := strings.TrimSpace(treeOut.String())

	r, err := loadRepository(cfg)
	require.NoError(t, err)
	tree, err := r.GetTree(mustOid(t, treeID))
	require.NoError(t, err)
	author := object.NewSignature("Jane Doe", "jane@domain.tld")
	c, err := r.NewCommit(ginternals.LocalBranchFullName(ginternals.Master), tree, author, &object.CommitOptions{
		Message: "initial commit",
	})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	logOut := &bytes.Buffer{}
	require.NoError(t, logCmd(logOut, cfg, 0))
	require.Contains(t, logOut.String(), "commit "+c.ID().String())
	require.Contains(t, logOut.String(), "initial commit")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	d, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	cfg := newGlobalFlags(d)
	require.NoError(t, initCmd(&bytes.Buffer{}, cfg, initCmdFlags{}, d))

	filePath := filepath.Join(d, "hello.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello world\n"), 0o644))
	require.NoError(t, addCmd(cfg, []string{"hello.txt"}))

	// Adding a second, unstaged file must show up as added, and
	// editing the staged one must show up as modified.
	otherPath := filepath.Join(d, "other.txt")
	require.NoError(t, os.WriteFile(otherPath, []byte("unstaged\n"), 0o644))
	require.NoError(t, os.WriteFile(filePath, []byte("hello world, edited\n"), 0o644))

	statusOut := &bytes.Buffer{}
	require.NoError(t, statusCmd(statusOut, cfg))
	require.Contains(t, statusOut.String(), "added:    other.txt")
	require.Contains(t, statusOut.String(), "modified: hello.txt")
}

// TestRootCmdEndToEnd drives the real cobra wiring (newRootCmd) instead of
// calling the package-level *Cmd functions directly, to exercise flag
// parsing and command registration together.
func TestRootCmdEndToEnd(t *testing.T) {
	d, cleanup := testhelper.TempDir(t)
	t.Cleanup(cleanup)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(d))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })

	root, err := newRootCmd()
	require.NoError(t, err)
	out := run(t, root, "init")
	require.Contains(t, out, "Initialized empty Git repository")

	require.NoError(t, os.WriteFile(filepath.Join(d, "hello.txt"), []byte("hello world\n"), 0o644))

	root, err = newRootCmd()
	require.NoError(t, err)
	oid := strings.TrimSpace(run(t, root, "hash-object", "-w", filepath.Join(d, "hello.txt")))
	require.Len(t, oid, 40)

	root, err = newRootCmd()
	require.NoError(t, err)
	out = run(t, root, "cat-file", "-p", oid)
	require.Equal(t, "hello world\n", out)
}

func mustOid(t *testing.T, s string) ginternals.Oid {
	t.Helper()
	oid, err := ginternals.NewOidFromStr(s)
	require.NoError(t, err)
	return oid
}
