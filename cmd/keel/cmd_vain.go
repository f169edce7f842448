package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/keelvc/keel/pkg/repo"
	"github.com/keelvc/keel/pkg/vanity"
	"github.com/spf13/cobra"
)

func newVainCmd() *cobra.Command {
	var dryRun bool
	var workers int
	var maxDelta int

	cmd := &cobra.Command{
		Use:   "vain [prefix]",
		Short: "Rewrite the head commit so its hash starts with a hex prefix",
		Long: "Searches for author and committer timestamps near the original " +
			"ones that make the head commit's hash start with the given prefix. " +
			"With no argument the prefix comes from the vain.default config key.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			} else {
				cfg, err := r.ReadConfig()
				if err != nil {
					return err
				}
				prefix = cfg.VanityDefault
			}
			if prefix == "" {
				return fmt.Errorf("no prefix given and vain.default is not set")
			}

			branch, err := r.CurrentBranchRef()
			if err != nil {
				return err
			}
			if branch == "" && !dryRun {
				return repo.ErrDetachedHead
			}

			head, err := r.ResolveRef("HEAD")
			if err != nil {
				return err
			}
			commit, err := r.Store.ReadCommit(head)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "searching for: %s\n", prefix)
			res, err := vanity.Mine(cmd.Context(), commit, prefix, vanity.Options{
				Workers:  workers,
				MaxDelta: maxDelta,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "∆a: %d, ∆c: %d\n%s\n",
				res.AuthorDelta, res.CommitterDelta, color.YellowString(string(res.Hash)))

			if dryRun {
				return nil
			}

			written, err := r.Store.WriteCommit(res.Commit)
			if err != nil {
				return err
			}
			if written != res.Hash {
				return fmt.Errorf("rewritten commit hashed to %s, expected %s", written, res.Hash)
			}
			return r.UpdateRef(branch, written)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "search and report without rewriting the head")
	cmd.Flags().IntVar(&workers, "workers", 0, "search workers (0 = number of CPUs)")
	cmd.Flags().IntVar(&maxDelta, "max-delta", 3600, "timestamp drift limit in seconds")

	return cmd
}
