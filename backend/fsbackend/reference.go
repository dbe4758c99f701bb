package fsbackend

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcehut-labs/mgit/backend"
	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/internal/gitpath"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// systemPath returns the absolute path of a reference from its name.
// Ex.: on windows refs/heads/master would return refs\heads\master
func (b *Backend) systemPath(name string) string {
	if os.PathSeparator != '/' {
		name = filepath.FromSlash(name)
	}
	return filepath.Join(b.root, name)
}

// Reference returns a stored reference from its name.
// ErrRefNotFound is returned if the reference doesn't exist.
func (b *Backend) Reference(name string) (*ginternals.Reference, error) {
	var packedRefs map[string]string

	finder := func(name string) ([]byte, error) {
		data, err := afero.ReadFile(b.fs, b.systemPath(name))
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, xerrors.Errorf("could not read reference content: %w", err)
			}
			// if the reference can't be found on disk, it might be in
			// the packed-refs file
			if packedRefs == nil {
				packedRefs, err = b.parsePackedRefs()
				if err != nil {
					return nil, xerrors.Errorf("couldn't load packed-refs: %w", err)
				}
			}
			sha, ok := packedRefs[name]
			if !ok {
				return nil, xerrors.Errorf(`ref "%s": %w`, name, ginternals.ErrRefNotFound)
			}
			return []byte(sha), nil
		}
		return data, nil
	}
	return ginternals.ResolveReference(name, finder)
}

// parsePackedRefs parses the packed-refs file and returns a map of
// ref name to hex oid. https://git-scm.com/docs/git-pack-refs
func (b *Backend) parsePackedRefs() (refs map[string]string, err error) {
	refs = map[string]string{}
	f, err := b.fs.Open(filepath.Join(b.root, gitpath.PackedRefsPath))
	if err != nil {
		if os.IsNotExist(err) {
			return refs, nil
		}
		return nil, xerrors.Errorf("could not open %s: %w", gitpath.PackedRefsPath, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	sc := bufio.NewScanner(f)
	for i := 1; sc.Scan(); i++ {
		line := sc.Text()
		// skip empty lines, comments, and annotated tag peel lines
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			return nil, xerrors.Errorf("unexpected data on line %d: %w", i, ginternals.ErrPackedRefInvalid)
		}
		refs[parts[1]] = parts[0]
	}
	if sc.Err() != nil {
		return nil, xerrors.Errorf("could not parse %s: %w", gitpath.PackedRefsPath, sc.Err())
	}
	return refs, nil
}

// WriteReference writes the given reference on disk. If the reference
// already exists it's overwritten.
func (b *Backend) WriteReference(ref *ginternals.Reference) error {
	if !ginternals.IsRefNameValid(ref.Name()) {
		return ginternals.ErrRefNameInvalid
	}

	var target string
	switch ref.Type() {
	case ginternals.SymbolicReference:
		target = fmt.Sprintf("ref: %s\n", ref.SymbolicTarget())
	case ginternals.OidReference:
		target = fmt.Sprintf("%s\n", ref.Target().String())
	default:
		return xerrors.Errorf("reference type %d: %w", ref.Type(), ginternals.ErrUnknownRefType)
	}

	refPath := b.systemPath(ref.Name())
	// refs may contain "/" in their name, so the parent dir needs
	// creating on demand (ex. refs/heads/feature/foo)
	if err := b.fs.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return xerrors.Errorf("could not persist reference to disk: %w", err)
	}
	if err := afero.WriteFile(b.fs, refPath, []byte(target), 0o644); err != nil {
		return xerrors.Errorf("could not persist reference to disk: %w", err)
	}
	return nil
}

// WriteReferenceSafe writes the given reference in the db.
// ErrRefExists is returned if the reference already exists.
func (b *Backend) WriteReferenceSafe(ref *ginternals.Reference) error {
	if !ginternals.IsRefNameValid(ref.Name()) {
		return ginternals.ErrRefNameInvalid
	}

	exists, err := afero.Exists(b.fs, b.systemPath(ref.Name()))
	if err != nil {
		return xerrors.Errorf("could not check if reference exists on disk: %w", err)
	}
	if exists {
		return ginternals.ErrRefExists
	}

	refs, err := b.parsePackedRefs()
	if err != nil {
		return xerrors.Errorf("could not check %s: %w", gitpath.PackedRefsPath, err)
	}
	if _, ok := refs[ref.Name()]; ok {
		return ginternals.ErrRefExists
	}

	return b.WriteReference(ref)
}

// WalkReferences walks every loose reference under refs/, resolving
// each one and calling f on it. Packed refs are included too, skipping
// any name shadowed by a loose ref. HEAD is not visited.
func (b *Backend) WalkReferences(f backend.RefWalkFunc) error {
	seen := map[string]struct{}{}

	root := filepath.Join(b.root, gitpath.RefsPath)
	walkErr := afero.Walk(b.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // no refs/ directory yet on a brand-new repo
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(b.root, path)
		if relErr != nil {
			return xerrors.Errorf("could not compute relative ref path for %s: %w", path, relErr)
		}
		name := filepath.ToSlash(rel)
		seen[name] = struct{}{}
		return callRefWalk(b, name, f)
	})
	if walkErr != nil {
		if errors.Is(walkErr, backend.WalkStop) {
			return nil
		}
		return walkErr
	}

	packed, err := b.parsePackedRefs()
	if err != nil {
		return xerrors.Errorf("could not read packed-refs: %w", err)
	}
	for name := range packed {
		if _, ok := seen[name]; ok {
			continue
		}
		if err := callRefWalk(b, name, f); err != nil {
			if errors.Is(err, backend.WalkStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func callRefWalk(b *Backend, name string, f backend.RefWalkFunc) error {
	ref, err := b.Reference(name)
	if err != nil {
		return xerrors.Errorf("could not resolve reference %s: %w", name, err)
	}
	return f(ref)
}
