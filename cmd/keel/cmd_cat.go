package main

import (
	"fmt"

	"github.com/keelvc/keel/pkg/object"
	"github.com/keelvc/keel/pkg/repo"
	"github.com/spf13/cobra"
)

func newCatCmd() *cobra.Command {
	var showType bool

	cmd := &cobra.Command{
		Use:   "cat <rev>",
		Short: "Print the content of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			hash, err := r.ResolveRef(args[0])
			if err != nil {
				return err
			}
			objType, data, err := r.Store.Read(hash)
			if err != nil {
				return err
			}
			if showType {
				fmt.Fprintln(cmd.OutOrStdout(), objType)
				return nil
			}
			if objType == object.TypeBlob {
				cmd.OutOrStdout().Write(data)
				return nil
			}
			// Tree, commit, and tag payloads are already line-oriented text.
			fmt.Fprintf(cmd.OutOrStdout(), "%s", data)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "print the object type instead of its content")
	return cmd
}
