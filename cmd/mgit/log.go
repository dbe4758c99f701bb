package main

import (
	"fmt"
	"io"

	"github.com/sourcehut-labs/mgit/gitlog"
	"github.com/spf13/cobra"
)

func newLogCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history starting at HEAD",
		Args:  cobra.NoArgs,
	}

	limit := cmd.Flags().IntP("max-count", "n", 0, "Limit the number of commits to output")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return logCmd(cmd.OutOrStdout(), cfg, *limit)
	}

	return cmd
}

func logCmd(out io.Writer, cfg *globalFlags, limit int) error {
	r, err := loadRepository(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	commits, err := gitlog.Walk(r, limit)
	if err != nil {
		return err
	}

	for _, c := range commits {
		fmt.Fprintf(out, "commit %s\n", c.ID().String())
		fmt.Fprintf(out, "Author: %s\n", c.Author().String())
		fmt.Fprintln(out)
		fmt.Fprintf(out, "    %s\n\n", c.Message())
	}

	return nil
}
