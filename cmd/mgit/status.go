package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newStatusCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show added/modified/deleted paths compared to the index",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusCmd(cmd.OutOrStdout(), cfg)
	}

	return cmd
}

func statusCmd(out io.Writer, cfg *globalFlags) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	idx, err := r.OpenIndex()
	if err != nil {
		return fmt.Errorf("could not open index: %w", err)
	}

	added, modified, deleted, err := r.Status(idx)
	if err != nil {
		return err
	}

	for _, p := range added {
		fmt.Fprintf(out, "added:    %s\n", p)
	}
	for _, p := range modified {
		fmt.Fprintf(out, "modified: %s\n", p)
	}
	for _, p := range deleted {
		fmt.Fprintf(out, "deleted:  %s\n", p)
	}

	return nil
}
