package main

import (
	"fmt"
	"io"
	"path"

	git "github.com/sourcehut-labs/mgit"
	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/ginternals/object"
	"github.com/spf13/cobra"
)

func newLsTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls-tree TREE",
		Short: "List the contents of a tree object, recursively",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return lsTreeCmd(cmd.OutOrStdout(), cfg, args[0])
	}

	return cmd
}

func lsTreeCmd(out io.Writer, cfg *globalFlags, treeName string) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	oid, err := ginternals.NewOidFromStr(treeName)
	if err != nil {
		return fmt.Errorf("%s is not a valid object id: %w", treeName, err)
	}
	tree, err := r.GetTree(oid)
	if err != nil {
		return err
	}

	return lsTreeWalk(out, r, tree, "")
}

// lsTreeWalk descends into every directory entry of tree, printing a
// flattened (mode, type, oid, path) listing.
func lsTreeWalk(out io.Writer, r *git.Repository, tree *object.Tree, prefix string) error {
	for _, e := range tree.Entries() {
		p := path.Join(prefix, e.Path)
		fmt.Fprintf(out, "%06o %s %s\t%s\n", e.Mode, e.Mode.ObjectType().String(), e.ID.String(), p)

		if e.Mode == object.ModeDirectory {
			sub, err := r.GetTree(e.ID)
			if err != nil {
				return fmt.Errorf("could not descend into %s: %w", p, err)
			}
			if err := lsTreeWalk(out, r, sub, p); err != nil {
				return err
			}
		}
	}
	return nil
}
