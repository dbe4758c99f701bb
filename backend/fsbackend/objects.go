package fsbackend

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sourcehut-labs/mgit/backend"
	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/ginternals/object"
	"github.com/sourcehut-labs/mgit/internal/compress"
	"github.com/sourcehut-labs/mgit/internal/errutil"
	"github.com/sourcehut-labs/mgit/internal/gitpath"
	"github.com/sourcehut-labs/mgit/internal/readutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// looseObjectPath returns the absolute path of an object
// .git/objects/first_2_chars_of_sha/remaining_chars_of_sha
// Ex. path of fcfe68a0e44e04bd7fd564fc0b75f1ae457e18b3 is:
// .git/objects/fc/fe68a0e44e04bd7fd564fc0b75f1ae457e18b3
func (b *Backend) looseObjectPath(sha string) string {
	return filepath.Join(b.root, gitpath.ObjectsPath, sha[:2], sha[2:])
}

// Object returns the object that has the given oid
func (b *Backend) Object(oid ginternals.Oid) (o *object.Object, err error) {
	strOid := oid.String()
	p := b.looseObjectPath(strOid)
	f, err := b.fs.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Errorf("object %s: %w", strOid, ginternals.ErrObjectNotFound)
		}
		return nil, xerrors.Errorf("could not open object %s at path %s: %w", strOid, p, err)
	}
	defer errutil.Close(f, &err)

	buff, err := compress.Inflate(f)
	if err != nil {
		return nil, xerrors.Errorf("could not decompress object %s at path %s: %w", strOid, p, err)
	}

	// the type of the object starts at offset 0 and ends at the first
	// space character
	typ := readutil.ReadTo(buff, ' ')
	if typ == nil {
		return nil, xerrors.Errorf("could not find object type for %s at path %s: %w", strOid, p, ginternals.ErrObjectInvalid)
	}
	oType, err := object.NewTypeFromString(string(typ))
	if err != nil {
		return nil, xerrors.Errorf("unsupported type %s for object %s at path %s: %w", string(typ), strOid, p, ginternals.ErrObjectInvalid)
	}
	pointerPos := len(typ) + 1 // +1 for the space

	// the size of the object starts after the space and ends at a NUL char
	size := readutil.ReadTo(buff[pointerPos:], 0)
	if size == nil {
		return nil, xerrors.Errorf("could not find object size for %s at path %s: %w", strOid, p, ginternals.ErrObjectInvalid)
	}
	oSize, err := strconv.Atoi(string(size))
	if err != nil {
		return nil, xerrors.Errorf("invalid size %s for object %s at path %s: %w", size, strOid, p, err)
	}
	pointerPos += len(size) + 1 // +1 for the NUL char
	oContent := buff[pointerPos:]

	if len(oContent) != oSize {
		return nil, xerrors.Errorf("object %s marked as size %d, but has %d at path %s: %w", strOid, oSize, len(oContent), p, ginternals.ErrObjectInvalid)
	}

	return object.New(oType, oContent), nil
}

// HasObject returns whether an object exists in the odb
func (b *Backend) HasObject(oid ginternals.Oid) (bool, error) {
	p := b.looseObjectPath(oid.String())
	found, err := afero.Exists(b.fs, p)
	if err != nil {
		return false, xerrors.Errorf("could not check if object exists: %w", err)
	}
	return found, nil
}

// WriteObject adds an object to the odb. Objects are immutable once
// stored: a write of an existing oid is a no-op.
func (b *Backend) WriteObject(o *object.Object) (ginternals.Oid, error) {
	data, err := o.Compress()
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not compress object: %w", err)
	}

	found, err := b.HasObject(o.ID())
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not check if object (%s) already exists: %w", o.ID().String(), err)
	}
	if found {
		return o.ID(), nil
	}

	sha := o.ID().String()
	p := b.looseObjectPath(sha)

	dest := filepath.Dir(p)
	if err = b.fs.MkdirAll(dest, 0o755); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not create the destination directory %s: %w", dest, err)
	}

	// objects are read-only once written
	if err = afero.WriteFile(b.fs, p, data, 0o444); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not persist object %s at path %s: %w", sha, p, err)
	}
	return o.ID(), nil
}

// isLooseObjectDir checks if a directory name is the 2-hex-char fanout
// prefix used for loose objects (00 through ff)
func isLooseObjectDir(name string) bool {
	if len(name) != 2 {
		return false
	}
	dirNum, err := strconv.ParseInt(name, 16, 64)
	return err == nil && dirNum >= 0x00 && dirNum <= 0xff
}

// WalkLooseObjectIDs runs the provided method on all the loose object ids
func (b *Backend) WalkLooseObjectIDs(f backend.OidWalkFunc) error {
	root := filepath.Join(b.root, gitpath.ObjectsPath)
	err := afero.Walk(b.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// the objects dir may not exist yet on an empty repo
			return nil
		}
		if path == root {
			return nil
		}
		if info.IsDir() {
			if !isLooseObjectDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		prefix := filepath.Base(filepath.Dir(path))
		if !isLooseObjectDir(prefix) {
			return nil
		}
		sha := prefix + info.Name()
		oid, oidErr := ginternals.NewOidFromHex(sha)
		if oidErr != nil {
			return xerrors.Errorf("could not parse oid from %s: %w", sha, oidErr)
		}
		return f(oid)
	})
	if errors.Is(err, backend.WalkStop) {
		return nil
	}
	return err
}
