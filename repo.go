package git

import (
	"errors"

	"github.com/sourcehut-labs/mgit/backend"
	"github.com/sourcehut-labs/mgit/backend/fsbackend"
	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/ginternals/config"
	"github.com/sourcehut-labs/mgit/ginternals/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

// List of errors returned by the Repository struct
var (
	ErrRepositoryNotExist           = errors.New("repository does not exist")
	ErrRepositoryUnsupportedVersion = errors.New("repository nor supported")
	ErrRepositoryExists             = errors.New("repository already exists")
	ErrTagNotFound                  = errors.New("tag not found")
	ErrTagExists                    = errors.New("tag already exists")
)

// Repository represent a git repository
// A Git repository is the .git/ folder inside a project.
// This repository tracks all changes made to files in your project,
// building a history over time.
// https://blog.axosoft.com/learning-git-repository/
type Repository struct {
	// Config holds all the paths and settings this repository was
	// opened or initialized with.
	Config *config.Config

	dotGit   backend.Backend
	workTree afero.Fs
}

// InitOptions contains all the optional data used to initialized a
// repository
type InitOptions struct {
	// IsBare represents whether a bare repository will be created or not
	IsBare bool
	// GitBackend represents the underlying backend to use to init the
	// repository and interact with the odb
	// By default the filesystem will be used
	GitBackend backend.Backend
	// WorkingTreeBackend represents the underlying backend to use to
	// interact with the working tree.
	// By default the filesystem will be used
	// Setting this is useless if IsBare is set to true
	WorkingTreeBackend afero.Fs
}

// InitRepository initialize a new git repository by creating the .git
// directory in the given path, which is where almost everything that
// Git stores and manipulates is located.
// https://git-scm.com/book/en/v2/Git-Internals-Plumbing-and-Porcelain#ch10-git-internals
func InitRepository(repoPath string) (*Repository, error) {
	return InitRepositoryWithOptions(repoPath, InitOptions{})
}

// InitRepositoryWithOptions initialize a new git repository the same
// way InitRepository does, but lets the caller customize the backends
// used to persist the odb and the working tree.
func InitRepositoryWithOptions(repoPath string, opts InitOptions) (*Repository, error) {
	cfgOpts := config.LoadConfigOptions{
		WorkingDirectory: repoPath,
		SkipGitDirLookUp: true,
		IsBare:           opts.IsBare,
	}
	if opts.IsBare {
		cfgOpts.GitDirPath = repoPath
	}
	cfg, err := config.LoadConfigSkipEnv(cfgOpts)
	if err != nil {
		return nil, xerrors.Errorf("could not build repository config: %w", err)
	}
	return InitRepositoryWithParams(cfg, opts)
}

// InitRepositoryWithParams initializes a new git repository using an
// already built Config, giving full control over every path involved.
func InitRepositoryWithParams(cfg *config.Config, opts InitOptions) (*Repository, error) {
	r := &Repository{
		Config: cfg,
		dotGit: opts.GitBackend,
	}
	if r.dotGit == nil {
		r.dotGit = fsbackend.New(cfg.GitDirPath, cfg.FS)
	}

	if !opts.IsBare {
		r.workTree = opts.WorkingTreeBackend
		if r.workTree == nil {
			r.workTree = afero.NewOsFs()
		}
	}

	if err := r.dotGit.Init(); err != nil {
		return nil, err
	}

	defaultBranch := ginternals.LocalBranchFullName(ginternals.Master)
	ref := ginternals.NewSymbolicReference(ginternals.Head, defaultBranch)
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if xerrors.Is(err, ginternals.ErrRefExists) {
			return nil, ErrRepositoryExists
		}
		return nil, err
	}

	return r, nil
}

// OpenOptions contains all the optional data used to open a
// repository
type OpenOptions struct {
	// IsBare represents whether the repository is bare or not
	IsBare bool
	// GitBackend represents the underlying backend to use to interact
	// with the odb. By default the filesystem will be used
	GitBackend backend.Backend
	// WorkingTreeBackend represents the underlying backend to use to
	// interact with the working tree.
	// By default the filesystem will be used
	// Setting this is useless if IsBare is set to true
	WorkingTreeBackend afero.Fs
}

// OpenRepository loads an existing git repository by reading its
// config file, and returns a Repository instance
func OpenRepository(repoPath string) (*Repository, error) {
	return OpenRepositoryWithOptions(repoPath, OpenOptions{})
}

// OpenRepositoryWithOptions loads an existing git repository the same
// way OpenRepository does, but lets the caller customize the backends
// used to read the odb and the working tree.
func OpenRepositoryWithOptions(repoPath string, opts OpenOptions) (*Repository, error) {
	cfgOpts := config.LoadConfigOptions{
		WorkingDirectory: repoPath,
		SkipGitDirLookUp: true,
		IsBare:           opts.IsBare,
	}
	if opts.IsBare {
		cfgOpts.GitDirPath = repoPath
	}
	cfg, err := config.LoadConfigSkipEnv(cfgOpts)
	if err != nil {
		return nil, xerrors.Errorf("could not build repository config: %w", err)
	}
	return OpenRepositoryWithParams(cfg, opts)
}

// OpenRepositoryWithParams loads an existing git repository using an
// already built Config, giving full control over every path involved.
func OpenRepositoryWithParams(cfg *config.Config, opts OpenOptions) (*Repository, error) {
	r := &Repository{
		Config: cfg,
		dotGit: opts.GitBackend,
	}
	if r.dotGit == nil {
		r.dotGit = fsbackend.New(cfg.GitDirPath, cfg.FS)
	}

	if !opts.IsBare {
		r.workTree = opts.WorkingTreeBackend
		if r.workTree == nil {
			r.workTree = afero.NewOsFs()
		}
	}

	// since we can't always check if the directory exists on disk to
	// validate if the repo exists, we're instead going to see if HEAD
	// exists (since it should always be there)
	if _, err := r.dotGit.Reference(ginternals.Head); err != nil {
		return nil, ErrRepositoryNotExist
	}

	return r, nil
}

// Close releases any resource held by the repository. The filesystem
// backends used today don't keep anything open between calls, so this
// is a no-op kept around so callers don't need to special-case bare
// vs. non-bare repos, or backend implementations that do need to
// release a handle (e.g. a future packfile-backed odb).
func (r *Repository) Close() error {
	return nil
}

// IsBare returns whether the repository has no working tree
func (r *Repository) IsBare() bool {
	return r.workTree == nil
}

// GetObject returns the object matching the given Oid
func (r *Repository) GetObject(oid ginternals.Oid) (*object.Object, error) {
	o, err := r.dotGit.Object(oid)
	if err != nil {
		return nil, xerrors.Errorf("could not find object %s: %w", oid.String(), err)
	}
	return o, nil
}

// Object is an alias of GetObject kept for callers that spell it the
// shorter way, mirroring backend.Backend's own naming.
func (r *Repository) Object(oid ginternals.Oid) (*object.Object, error) {
	return r.GetObject(oid)
}

// WriteObject persists an already-built object of any type and
// returns its id. Most callers want the type-specific NewBlob/
// NewCommit/NewTag instead; this exists for generic plumbing (e.g.
// the hash-object CLI command) that builds the object itself.
func (r *Repository) WriteObject(o *object.Object) (ginternals.Oid, error) {
	id, err := r.dotGit.WriteObject(o)
	if err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not persist object: %w", err)
	}
	return id, nil
}

// NewBlob creates, persists, and returns a new Blob object
func (r *Repository) NewBlob(data []byte) (*object.Blob, error) {
	o := object.New(object.TypeBlob, data)
	if _, err := r.dotGit.WriteObject(o); err != nil {
		return nil, xerrors.Errorf("could not persist blob: %w", err)
	}
	return object.NewBlob(o), nil
}

// GetCommit returns the commit matching the given Oid
func (r *Repository) GetCommit(oid ginternals.Oid) (*object.Commit, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, err
	}
	c, err := o.AsCommit()
	if err != nil {
		return nil, xerrors.Errorf("could not parse commit %s: %w", oid.String(), err)
	}
	return c, nil
}

// GetTree returns the tree matching the given Oid
func (r *Repository) GetTree(oid ginternals.Oid) (*object.Tree, error) {
	o, err := r.GetObject(oid)
	if err != nil {
		return nil, err
	}
	t, err := o.AsTree()
	if err != nil {
		return nil, xerrors.Errorf("could not parse tree %s: %w", oid.String(), err)
	}
	return t, nil
}

// GetReference returns the reference matching the given name, fully
// resolving symbolic references (ex. HEAD) to the object they
// eventually point to.
func (r *Repository) GetReference(name string) (*ginternals.Reference, error) {
	return r.dotGit.Reference(name)
}

// Reference is an alias of GetReference kept for callers that spell it
// the shorter way, mirroring backend.Backend's own naming.
func (r *Repository) Reference(name string) (*ginternals.Reference, error) {
	return r.GetReference(name)
}

// NewCommit creates a new commit on top of the given tree, and moves
// refName to point to it. refName is created if it doesn't exist yet.
func (r *Repository) NewCommit(refName string, tree *object.Tree, author object.Signature, opts *object.CommitOptions) (*object.Commit, error) {
	for _, parentID := range opts.ParentsID {
		if err := r.validateCommitParent(parentID); err != nil {
			return nil, err
		}
	}

	c := object.NewCommit(tree.ID(), author, opts)
	if _, err := r.dotGit.WriteObject(c.ToObject()); err != nil {
		return nil, xerrors.Errorf("could not persist commit: %w", err)
	}

	ref := ginternals.NewReference(refName, c.ID())
	if err := r.dotGit.WriteReference(ref); err != nil {
		return nil, xerrors.Errorf("could not update reference %s: %w", refName, err)
	}

	return c, nil
}

// NewDetachedCommit creates a new commit the same way NewCommit does,
// but doesn't move any reference to point to it.
func (r *Repository) NewDetachedCommit(tree *object.Tree, author object.Signature, opts *object.CommitOptions) (*object.Commit, error) {
	for _, parentID := range opts.ParentsID {
		if err := r.validateCommitParent(parentID); err != nil {
			return nil, err
		}
	}

	c := object.NewCommit(tree.ID(), author, opts)
	if _, err := r.dotGit.WriteObject(c.ToObject()); err != nil {
		return nil, xerrors.Errorf("could not persist commit: %w", err)
	}
	return c, nil
}

// validateCommitParent makes sure a candidate parent Oid points to an
// actual commit object.
func (r *Repository) validateCommitParent(oid ginternals.Oid) error {
	o, err := r.GetObject(oid)
	if err != nil {
		return xerrors.Errorf("could not look up parent %s: %w", oid.String(), err)
	}
	if o.Type() != object.TypeCommit {
		return xerrors.Errorf("invalid type for parent %s (%s): %w", oid.String(), o.Type().String(), object.ErrObjectInvalid)
	}
	return nil
}

// GetTag returns the tag reference matching the given short name
// (ex. "v1.0.0"). ErrTagNotFound is returned if no such tag exists.
func (r *Repository) GetTag(name string) (*ginternals.Reference, error) {
	ref, err := r.dotGit.Reference(ginternals.LocalTagFullName(name))
	if err != nil {
		if xerrors.Is(err, ginternals.ErrRefNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, xerrors.Errorf("could not look up tag %s: %w", name, err)
	}
	return ref, nil
}

// NewTag creates, persists, and returns a new annotated tag object,
// and creates the refs/tags/<name> reference pointing to it.
// ErrTagExists is returned if the tag already exists.
func (r *Repository) NewTag(p *object.TagParams) (*object.Tag, error) {
	persisted, err := r.dotGit.HasObject(p.Target.ID())
	if err != nil {
		return nil, xerrors.Errorf("could not check if tag target exists: %w", err)
	}
	if !persisted {
		return nil, xerrors.Errorf("tag target %s has not been persisted: %w", p.Target.ID().String(), object.ErrObjectInvalid)
	}

	tag := object.NewTag(p)
	if _, err := r.dotGit.WriteObject(tag.ToObject()); err != nil {
		return nil, xerrors.Errorf("could not persist tag: %w", err)
	}

	ref := ginternals.NewReference(ginternals.LocalTagFullName(p.Name), tag.ID())
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if xerrors.Is(err, ginternals.ErrRefExists) {
			return nil, ErrTagExists
		}
		return nil, xerrors.Errorf("could not write tag reference: %w", err)
	}

	return tag, nil
}

// NewLightweightTag creates the refs/tags/<name> reference pointing
// directly at target, without creating an annotated tag object.
// ErrTagExists is returned if the tag already exists.
func (r *Repository) NewLightweightTag(name string, target ginternals.Oid) (*ginternals.Reference, error) {
	persisted, err := r.dotGit.HasObject(target)
	if err != nil {
		return nil, xerrors.Errorf("could not check if tag target exists: %w", err)
	}
	if !persisted {
		return nil, xerrors.Errorf("tag target %s has not been persisted: %w", target.String(), object.ErrObjectInvalid)
	}

	ref := ginternals.NewReference(ginternals.LocalTagFullName(name), target)
	if err := r.dotGit.WriteReferenceSafe(ref); err != nil {
		if xerrors.Is(err, ginternals.ErrRefExists) {
			return nil, ErrTagExists
		}
		return nil, xerrors.Errorf("could not write tag reference: %w", err)
	}
	return ref, nil
}
