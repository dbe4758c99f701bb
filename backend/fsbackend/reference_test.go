package fsbackend

import (
	"path/filepath"
	"testing"

	"github.com/sourcehut-labs/mgit/backend"
	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/internal/gitpath"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	fs := afero.NewMemMapFs()
	b := New("/repo", fs)
	require.NoError(t, b.Init())
	return b
}

func TestReference(t *testing.T) {
	t.Parallel()

	t.Run("should fail if reference doesn't exist", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)
		ref, err := b.Reference("refs/heads/doesnt_exist")
		require.Error(t, err)
		assert.True(t, xerrors.Is(err, ginternals.ErrRefNotFound), "unexpected error returned")
		assert.Nil(t, ref)
	})

	t.Run("should succeed to follow a symbolic ref", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)

		target, err := ginternals.NewOidFromHex("bbb720a96e4c29b9950a4c577c98470a4d5dd089")
		require.NoError(t, err)
		require.NoError(t, b.WriteReference(ginternals.NewReference(ginternals.LocalBranchFullName("master"), target)))
		require.NoError(t, b.WriteReference(ginternals.NewSymbolicReference(ginternals.Head, ginternals.LocalBranchFullName("master"))))

		ref, err := b.Reference(ginternals.Head)
		require.NoError(t, err)
		require.NotNil(t, ref)

		assert.Equal(t, ginternals.Head, ref.Name())
		assert.Equal(t, ginternals.LocalBranchFullName("master"), ref.SymbolicTarget())
		assert.Equal(t, target, ref.Target())
	})

	t.Run("should succeed to follow an oid ref", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)

		target, err := ginternals.NewOidFromHex("bbb720a96e4c29b9950a4c577c98470a4d5dd089")
		require.NoError(t, err)
		name := ginternals.LocalBranchFullName("master")
		require.NoError(t, b.WriteReference(ginternals.NewReference(name, target)))

		ref, err := b.Reference(name)
		require.NoError(t, err)
		require.NotNil(t, ref)

		assert.Equal(t, name, ref.Name())
		assert.Empty(t, ref.SymbolicTarget())
		assert.Equal(t, target, ref.Target())
	})
}

func TestWriteReferenceSafe(t *testing.T) {
	t.Parallel()

	t.Run("should fail if the reference already exists", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)

		target, err := ginternals.NewOidFromHex("bbb720a96e4c29b9950a4c577c98470a4d5dd089")
		require.NoError(t, err)
		name := ginternals.LocalBranchFullName("master")
		require.NoError(t, b.WriteReference(ginternals.NewReference(name, target)))

		err = b.WriteReferenceSafe(ginternals.NewReference(name, target))
		require.Error(t, err)
		assert.True(t, xerrors.Is(err, ginternals.ErrRefExists))
	})
}

func TestParsePackedRefs(t *testing.T) {
	t.Parallel()

	t.Run("should return an empty list if no file", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)

		data, err := b.parsePackedRefs()
		require.NoError(t, err)
		assert.NotNil(t, data)
		assert.Empty(t, data)
	})

	t.Run("should fail if file contains invalid data", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)

		fPath := filepath.Join("/repo", gitpath.PackedRefsPath)
		require.NoError(t, afero.WriteFile(b.fs, fPath, []byte("not valid data"), 0o644))

		_, err := b.parsePackedRefs()
		require.Error(t, err)
		assert.True(t, xerrors.Is(err, ginternals.ErrPackedRefInvalid), "unexpected error received")
	})

	t.Run("should pass with comments and annotations", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)

		fPath := filepath.Join("/repo", gitpath.PackedRefsPath)
		content := "^de111c003b5661db802f17ac69419dcb9f4f3137\n# this is a comment"
		require.NoError(t, afero.WriteFile(b.fs, fPath, []byte(content), 0o644))

		data, err := b.parsePackedRefs()
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("should correctly extract data", func(t *testing.T) {
		t.Parallel()

		b := newTestBackend(t)

		fPath := filepath.Join("/repo", gitpath.PackedRefsPath)
		content := "bbb720a96e4c29b9950a4c577c98470a4d5dd089 refs/heads/master\n" +
			"b328320060eb503cf337c7cff281712ef236963a refs/heads/ml/cleanup-062020\n"
		require.NoError(t, afero.WriteFile(b.fs, fPath, []byte(content), 0o644))

		data, err := b.parsePackedRefs()
		require.NoError(t, err)
		expected := map[string]string{
			"refs/heads/master":                "bbb720a96e4c29b9950a4c577c98470a4d5dd089",
			"refs/heads/ml/cleanup-062020":     "b328320060eb503cf337c7cff281712ef236963a",
		}
		assert.Equal(t, expected, data)
	})
}

func TestWalkReferences(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)

	target, err := ginternals.NewOidFromHex("bbb720a96e4c29b9950a4c577c98470a4d5dd089")
	require.NoError(t, err)
	require.NoError(t, b.WriteReference(ginternals.NewReference(ginternals.LocalBranchFullName("master"), target)))
	require.NoError(t, b.WriteReference(ginternals.NewReference(ginternals.LocalBranchFullName("dev"), target)))

	packedTarget := "b328320060eb503cf337c7cff281712ef236963a"
	fPath := filepath.Join("/repo", gitpath.PackedRefsPath)
	require.NoError(t, afero.WriteFile(b.fs, fPath, []byte(packedTarget+" refs/heads/packed\n"), 0o644))

	seen := map[string]bool{}
	err = b.WalkReferences(func(ref *ginternals.Reference) error {
		seen[ref.Name()] = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, seen[ginternals.LocalBranchFullName("master")])
	assert.True(t, seen[ginternals.LocalBranchFullName("dev")])
	assert.True(t, seen["refs/heads/packed"])

	t.Run("stops early when WalkStop is returned", func(t *testing.T) {
		count := 0
		err := b.WalkReferences(func(ref *ginternals.Reference) error {
			count++
			return backend.WalkStop
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
