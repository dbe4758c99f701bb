package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add PATH...",
		Short: "Stage working-tree files into the index",
		Args:  cobra.MinimumNArgs(1),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return addCmd(cfg, args)
	}

	return cmd
}

func addCmd(cfg *globalFlags, paths []string) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	idx, err := r.OpenIndex()
	if err != nil {
		return fmt.Errorf("could not open index: %w", err)
	}

	for _, p := range paths {
		if err := r.AddPath(idx, p); err != nil {
			return fmt.Errorf("could not add %s: %w", p, err)
		}
	}

	return r.SaveIndex(idx)
}
