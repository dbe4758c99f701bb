package main

import (
	"fmt"
	"io"

	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/sourcehut-labs/mgit/ginternals/object"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newCommitTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit-tree TREE",
		Short: "Create a new commit object from explicit tree and parents",
		Args:  cobra.ExactArgs(1),
	}

	message := cmd.Flags().StringP("message", "m", "", "A paragraph in the commit log message")
	parents := cmd.Flags().StringArrayP("parent", "p", nil, "Each -p indicates the id of a parent commit object")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if *message == "" {
			return xerrors.New("a commit message is required")
		}
		return commitTreeCmd(cmd.OutOrStdout(), cfg, args[0], *parents, *message)
	}

	return cmd
}

func commitTreeCmd(out io.Writer, cfg *globalFlags, treeName string, parentNames []string, message string) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	treeID, err := ginternals.NewOidFromStr(treeName)
	if err != nil {
		return fmt.Errorf("%s is not a valid object id: %w", treeName, err)
	}
	tree, err := r.GetTree(treeID)
	if err != nil {
		return err
	}

	parentIDs := make([]ginternals.Oid, len(parentNames))
	for i, p := range parentNames {
		id, err := ginternals.NewOidFromStr(p)
		if err != nil {
			return fmt.Errorf("%s is not a valid object id: %w", p, err)
		}
		parentIDs[i] = id
	}

	author := object.NewSignature(cfg.env.Get("GIT_AUTHOR_NAME"), cfg.env.Get("GIT_AUTHOR_EMAIL"))

	c, err := r.NewDetachedCommit(tree, author, &object.CommitOptions{
		Message:   message,
		ParentsID: parentIDs,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, c.ID().String())
	return nil
}
