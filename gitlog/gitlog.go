// Package gitlog walks a repository's commit history starting from
// HEAD, following the first-parent chain.
package gitlog

import (
	git "github.com/sourcehut-labs/mgit"
	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/ginternals/object"
	"golang.org/x/xerrors"
)

// Walk follows HEAD's first-parent chain, returning up to limit
// commits in reverse-chronological order, starting at HEAD. A limit
// <= 0 means no limit.
func Walk(repo *git.Repository, limit int) ([]*object.Commit, error) {
	ref, err := repo.GetReference(ginternals.Head)
	if err != nil {
		return nil, xerrors.Errorf("could not resolve %s: %w", ginternals.Head, err)
	}

	var commits []*object.Commit
	oid := ref.Target()
	for !oid.IsZero() {
		if limit > 0 && len(commits) >= limit {
			break
		}

		c, err := repo.GetCommit(oid)
		if err != nil {
			return nil, xerrors.Errorf("could not load commit %s: %w", oid.String(), err)
		}
		commits = append(commits, c)

		parents := c.ParentIDs()
		if len(parents) == 0 {
			break
		}
		oid = parents[0]
	}

	return commits, nil
}
