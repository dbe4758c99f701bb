package git

import (
	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/ginternals/object"
	"golang.org/x/xerrors"
)

// objectStore adapts a Repository to ginternals.ObjectStore, letting the
// index subsystem turn itself into tree/blob objects and back without
// ginternals importing ginternals/object or backend (which would cycle
// back into ginternals).
type objectStore struct {
	r *Repository
}

func (s *objectStore) PutTree(entries []ginternals.TreeNode) (ginternals.Oid, error) {
	treeEntries := make([]object.TreeEntry, len(entries))
	for i, e := range entries {
		treeEntries[i] = object.TreeEntry{
			Path: e.Name,
			ID:   e.ID,
			Mode: object.TreeObjectMode(e.Mode),
		}
	}
	t := object.NewTree(treeEntries)
	if _, err := s.r.dotGit.WriteObject(t.ToObject()); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not persist tree: %w", err)
	}
	return t.ID(), nil
}

func (s *objectStore) GetTree(id ginternals.Oid) ([]ginternals.TreeNode, error) {
	t, err := s.r.GetTree(id)
	if err != nil {
		return nil, err
	}
	nodes := make([]ginternals.TreeNode, len(t.Entries()))
	for i, e := range t.Entries() {
		nodes[i] = ginternals.TreeNode{
			Mode: uint32(e.Mode),
			Name: e.Path,
			ID:   e.ID,
		}
	}
	return nodes, nil
}

func (s *objectStore) PutBlob(content []byte) (ginternals.Oid, error) {
	b, err := s.r.NewBlob(content)
	if err != nil {
		return ginternals.NullOid, err
	}
	return b.ID(), nil
}

// objectStore returns the ginternals.ObjectStore adapter used to back
// the repository's index operations.
func (r *Repository) objectStore() ginternals.ObjectStore {
	return &objectStore{r: r}
}

// IndexPath returns the path of the repository's index file.
func (r *Repository) IndexPath() string {
	return ginternals.IndexPath(r.Config)
}

// OpenIndex reads the repository's index file, returning an empty
// index if none has been written yet.
func (r *Repository) OpenIndex() (*ginternals.Index, error) {
	return ginternals.OpenIndex(r.dotGit.Fs(), r.IndexPath())
}

// SaveIndex persists idx to the repository's index file.
func (r *Repository) SaveIndex(idx *ginternals.Index) error {
	return idx.Save(r.dotGit.Fs(), r.IndexPath())
}

// AddPath stages the working-tree file at p into idx, reading its
// content off the repository's working tree and storing it as a blob.
func (r *Repository) AddPath(idx *ginternals.Index, p string) error {
	if r.IsBare() {
		return xerrors.Errorf("cannot add paths to a bare repository: %w", ginternals.ErrInvalidArgument)
	}
	return idx.AddFromWorkdir(r.workTree, r.Config.WorkTreePath, p, r.objectStore())
}

// WriteTree flattens idx into a tree hierarchy, persists it, and
// returns the resulting root tree.
func (r *Repository) WriteTree(idx *ginternals.Index) (*object.Tree, error) {
	id, err := idx.WriteTree(r.objectStore())
	if err != nil {
		return nil, xerrors.Errorf("could not write tree from index: %w", err)
	}
	return r.GetTree(id)
}

// ReadTree populates a new index from the given tree.
func (r *Repository) ReadTree(tree *object.Tree) (*ginternals.Index, error) {
	idx := ginternals.NewIndex()
	if err := idx.ReadTree(tree.ID(), r.objectStore()); err != nil {
		return nil, xerrors.Errorf("could not read tree into index: %w", err)
	}
	return idx, nil
}

// Status compares idx against the working tree, reporting paths that
// were added, modified, or deleted since the index was last saved.
func (r *Repository) Status(idx *ginternals.Index) (added, modified, deleted []string, err error) {
	if r.IsBare() {
		return nil, nil, nil, xerrors.Errorf("cannot compute status of a bare repository: %w", ginternals.ErrInvalidArgument)
	}
	hashContent := func(content []byte) ginternals.Oid {
		return object.New(object.TypeBlob, content).ID()
	}
	return idx.DiffWorkdir(r.workTree, r.Config.WorkTreePath, hashContent)
}
