package main

import (
	"github.com/sourcehut-labs/mgit/env"
	"github.com/sourcehut-labs/mgit/internal/pathutil"
	"github.com/spf13/pflag"
)

// globalFlags holds the flags shared by every subcommand, mirroring
// git's own top-level options.
type globalFlags struct {
	// C is the equivalent of git's -C <path>: run as if mgit was
	// started in the provided directory.
	C pflag.Value

	GitDir   string
	WorkTree string
	Bare     bool

	env *env.Env
}

func newGlobalFlags(cwd string) *globalFlags {
	return &globalFlags{
		C:   pathutil.NewDirPathFlagWithDefault(cwd),
		env: env.NewFromOs(),
	}
}
