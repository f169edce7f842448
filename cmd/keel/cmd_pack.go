package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keelvc/keel/pkg/object"
	"github.com/keelvc/keel/pkg/repo"
	"github.com/spf13/cobra"
)

type packProgress struct {
	cmd *cobra.Command
}

func (p *packProgress) ObjectWritten(written, total int) {
	fmt.Fprintf(p.cmd.OutOrStdout(), "\rwriting objects: %d/%d", written, total)
	if written == total {
		fmt.Fprintln(p.cmd.OutOrStdout())
	}
}

func newPackCmd() *cobra.Command {
	var outputDir string
	var install bool
	var noDelta bool
	var workers int

	cmd := &cobra.Command{
		Use:   "pack [rev]...",
		Short: "Write reachable objects into a pack file with index",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			revs := args
			if len(revs) == 0 {
				revs = []string{"HEAD"}
			}
			builder := object.NewBuilder(r.Store)
			for _, rev := range revs {
				root, err := r.ResolveRef(rev)
				if err != nil {
					return err
				}
				if err := builder.AddRecursive(root); err != nil {
					return err
				}
			}
			if builder.Count() == 0 {
				return fmt.Errorf("nothing to pack")
			}

			var packBuf, idxBuf bytes.Buffer
			result, err := builder.Finalize(cmd.Context(), &packBuf, &idxBuf, object.BuildOptions{
				Deltas:   !noDelta,
				Workers:  workers,
				Progress: &packProgress{cmd: cmd},
			})
			if err != nil {
				return err
			}

			if install {
				if err := r.Store.InstallPack(result.PackChecksum, packBuf.Bytes(), idxBuf.Bytes()); err != nil {
					return err
				}
			} else {
				base := filepath.Join(outputDir, "pack-"+string(result.PackChecksum))
				if err := os.WriteFile(base+".pack", packBuf.Bytes(), 0o644); err != nil {
					return err
				}
				if err := os.WriteFile(base+".idx", idxBuf.Bytes(), 0o644); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "packed %d objects (%d deltas), checksum %s\n",
				result.Objects, result.Deltas, result.PackChecksum.Short())
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory for the pack and index files")
	cmd.Flags().BoolVar(&install, "install", false, "install the pack into the repository's object store")
	cmd.Flags().BoolVar(&noDelta, "no-delta", false, "disable delta compression")
	cmd.Flags().IntVar(&workers, "workers", 0, "delta search workers (0 = number of CPUs)")

	return cmd
}
