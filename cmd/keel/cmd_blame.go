package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/keelvc/keel/pkg/blame"
	"github.com/keelvc/keel/pkg/diff"
	"github.com/keelvc/keel/pkg/object"
	"github.com/keelvc/keel/pkg/repo"
	"github.com/spf13/cobra"
)

func newBlameCmd() *cobra.Command {
	var rev string
	var lineRange string
	var ignoreWS bool

	cmd := &cobra.Command{
		Use:   "blame <path>",
		Short: "Show line-by-line attribution for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			start, err := r.ResolveRef(rev)
			if err != nil {
				return err
			}

			opts := blame.Options{IgnoreWhitespace: ignoreWS}
			if lineRange != "" {
				min, max, err := parseLineRange(lineRange)
				if err != nil {
					return err
				}
				opts.MinLine, opts.MaxLine = min, max
			}

			result, err := blame.File(cmd.Context(), r.Store, args[0], start, opts)
			if err != nil {
				return err
			}
			printBlame(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&rev, "rev", "HEAD", "revision to blame at")
	cmd.Flags().StringVarP(&lineRange, "lines", "L", "", "restrict to a line range, e.g. 10,20")
	cmd.Flags().BoolVarP(&ignoreWS, "ignore-whitespace", "w", false, "ignore whitespace-only changes")

	return cmd
}

func parseLineRange(s string) (int, int, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("line range must be start,end: %q", s)
	}
	min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad range start %q: %w", parts[0], err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad range end %q: %w", parts[1], err)
	}
	if min < 1 || max < min {
		return 0, 0, fmt.Errorf("bad line range %q", s)
	}
	return min, max, nil
}

func printBlame(cmd *cobra.Command, result *blame.Result) {
	out := cmd.OutOrStdout()
	lines := diff.SplitLines(string(result.FinalText))
	hashColor := color.New(color.FgYellow).SprintFunc()
	boundaryColor := color.New(color.FgRed).SprintFunc()

	for _, h := range result.Hunks {
		label := hashColor(h.OrigCommit.Short())
		if h.OrigCommit == object.Hash("") {
			label = boundaryColor("uncommitted")
		} else if h.Boundary {
			label = boundaryColor("^" + h.OrigCommit.Short())
		}
		for i := 0; i < h.Lines; i++ {
			final := h.FinalStartLine + i
			text := ""
			if final-1 < len(lines) {
				text = lines[final-1]
			}
			fmt.Fprintf(out, "%s %4d) %s\n", label, final, text)
		}
	}
}
