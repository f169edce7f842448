package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/keelvc/keel/pkg/repo"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the integrity of every stored object and pack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			summary, err := r.Store.Verify()
			if err != nil {
				fmt.Fprintln(out, color.RedString(err.Error()))
				return fmt.Errorf("verification failed")
			}
			fmt.Fprintf(out, "loose objects: %d\n", summary.LooseObjects)
			fmt.Fprintf(out, "packs:         %d (%d objects)\n", summary.PackFiles, summary.PackObjects)
			fmt.Fprintln(out, color.GreenString("ok"))
			return nil
		},
	}
}
