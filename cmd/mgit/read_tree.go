package main

import (
	"fmt"

	"github.com/sourcehut-labs/mgit/ginternals"
	"github.com/spf13/cobra"
)

func newReadTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read-tree TREE",
		Short: "Populate the index from a tree object",
		Args:  cobra.ExactArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return readTreeCmd(cfg, args[0])
	}

	return cmd
}

func readTreeCmd(cfg *globalFlags, treeName string) error {
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

	idx, err := r.ReadTree(tree)
	if err != nil {
		return err
	}

	return r.SaveIndex(idx)
}
