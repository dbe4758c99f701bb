package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newWriteTreeCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write-tree",
		Short: "Create a tree object from the current index",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return writeTreeCmd(cmd.OutOrStdout(), cfg)
	}

	return cmd
}

func writeTreeCmd(out io.Writer, cfg *globalFlags) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	idx, err := r.OpenIndex()
	if err != nil {
		return fmt.Errorf("could not open index: %w", err)
	}

	tree, err := r.WriteTree(idx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, tree.ID().String())
	return nil
}
