package main

import (
	"fmt"

	"github.com/keelvc/keel/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var sign bool
	var keyPath string

	cmd := &cobra.Command{
		Use:   "commit <path>...",
		Short: "Snapshot the given paths and record a commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("--message is required")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			var signer repo.Signer
			if sign {
				s, resolved, err := repo.NewSSHSigner(keyPath)
				if err != nil {
					return err
				}
				signer = s
				fmt.Fprintf(cmd.OutOrStdout(), "signing with %s\n", resolved)
			}

			hash, err := r.Commit(args, message, signer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", hash.Short())
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "path to the SSH signing key")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}
