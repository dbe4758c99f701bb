// Package fsbackend contains an implementation of the backend.Backend
// interface for the filesystem
package fsbackend

import (
	"path/filepath"

	"github.com/sourcehut-labs/mgit/backend"
	"github.com/sourcehut-labs/mgit/internal/gitpath"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// we make sure the struct implements the interface
var _ backend.Backend = (*Backend)(nil)

// Backend is a Backend implementation that uses the filesystem to store
// data. It keeps no in-memory index: every operation reads or writes
// straight through to fs, which keeps the implementation honest about
// what's actually durable after a crash (the database has no notion of
// concurrent multi-process access to protect against otherwise).
type Backend struct {
	root string
	fs   afero.Fs
}

// New returns a new Backend object rooted at dotGitPath (the .git
// directory), operating on fs.
func New(dotGitPath string, fs afero.Fs) *Backend {
	return &Backend{
		root: dotGitPath,
		fs:   fs,
	}
}

// Path returns the root directory the backend stores data in (the
// .git directory for a regular repository).
func (b *Backend) Path() string {
	return b.root
}

// Fs returns the filesystem the backend operates on, so collaborators
// that need to read or write files under the same root (e.g. the
// index) don't have to duplicate the afero.Fs wiring.
func (b *Backend) Fs() afero.Fs {
	return b.fs
}

// Init initializes a repository
func (b *Backend) Init() error {
	// Create the directories
	dirs := []string{
		gitpath.ObjectsPath,
		gitpath.RefsTagsPath,
		gitpath.RefsHeadsPath,
		gitpath.ObjectsInfoPath,
		gitpath.ObjectsPackPath,
	}
	for _, d := range dirs {
		fullPath := filepath.Join(b.root, d)
		if err := b.fs.MkdirAll(fullPath, 0o750); err != nil {
			return xerrors.Errorf("could not create directory %s: %w", d, err)
		}
	}

	// Create the files with the default content
	// (taken from a repo created on github)
	files := []struct {
		path    string
		content []byte
	}{
		{
			path:    gitpath.DescriptionPath,
			content: []byte("Unnamed repository; edit this file 'description' to name the repository.\n"),
		},
	}
	for _, f := range files {
		fullPath := filepath.Join(b.root, f.path)
		if err := afero.WriteFile(b.fs, fullPath, f.content, 0o644); err != nil {
			return xerrors.Errorf("could not create file %s: %w", f.path, err)
		}
	}

	if err := b.setDefaultCfg(); err != nil {
		return xerrors.Errorf("could not set the default config: %w", err)
	}

	return nil
}
