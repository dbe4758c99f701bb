// Command mgit is a small, pure-Go porcelain/plumbing CLI exercising
// the core object-database, tree-builder, and index subsystems.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root, err := newRootCmd()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("could not get current working directory: %w", err)
	}

	cmd := &cobra.Command{
		Use:           "mgit",
		Short:         "a pure Go git implementation",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := newGlobalFlags(cwd)
	cmd.PersistentFlags().VarP(cfg.C, "C", "C", "Run as if mgit was started in the provided path instead of the current working directory.")
	cmd.PersistentFlags().StringVar(&cfg.GitDir, "git-dir", "", "Set the path to the repository (\".git\" directory).")
	cmd.PersistentFlags().StringVar(&cfg.WorkTree, "work-tree", "", "Set the path to the working tree.")
	cmd.PersistentFlags().BoolVar(&cfg.Bare, "bare", false, "Treat the repository as bare, ignoring the working tree.")

	// porcelain
	cmd.AddCommand(newInitCmd(cfg))
	cmd.AddCommand(newAddCmd(cfg))
	cmd.AddCommand(newLogCmd(cfg))
	cmd.AddCommand(newStatusCmd(cfg))

	// plumbing
	cmd.AddCommand(newHashObjectCmd(cfg))
	cmd.AddCommand(newCatFileCmd(cfg))
	cmd.AddCommand(newWriteTreeCmd(cfg))
	cmd.AddCommand(newReadTreeCmd(cfg))
	cmd.AddCommand(newCommitTreeCmd(cfg))
	cmd.AddCommand(newLsTreeCmd(cfg))

	return cmd, nil
}
