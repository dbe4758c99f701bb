package main

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/sourcehut-labs/mgit/ginternals/object"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newHashObjectCmd(cfg *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-object FILE",
		Short: "Compute the object id and optionally persist a blob from a file",
		Args:  cobra.ExactArgs(1),
	}

	typ := cmd.Flags().StringP("type", "t", "blob", "Specify the type of object to be created")
	write := cmd.Flags().BoolP("write", "w", false, "Write the object into the object database")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return hashObjectCmd(cmd.OutOrStdout(), cfg, args[0], *typ, *write)
	}

	return cmd
}

func hashObjectCmd(out io.Writer, cfg *globalFlags, filePath, typ string, write bool) error {
	content, err := ioutil.ReadFile(filePath)
	if err != nil {
		return err
	}

	objType, err := object.NewTypeFromString(typ)
	if err != nil {
		return xerrors.Errorf("unsupported object type %s: %w", typ, err)
	}

	o := object.New(objType, content)
	switch objType {
	case object.TypeCommit:
		if _, err := o.AsCommit(); err != nil {
			return xerrors.Errorf("invalid commit file: %w", err)
		}
	case object.TypeTree:
		if _, err := o.AsTree(); err != nil {
			return xerrors.Errorf("invalid tree file: %w", err)
		}
	case object.TypeTag:
		if _, err := o.AsTag(); err != nil {
			return xerrors.Errorf("invalid tag file: %w", err)
		}
	}

	if write {
		r, err := loadRepository(cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		if _, err := r.WriteObject(o); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, o.ID().String())
	return nil
}
