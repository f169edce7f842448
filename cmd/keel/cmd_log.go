package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/keelvc/keel/pkg/object"
	"github.com/keelvc/keel/pkg/repo"
	"github.com/keelvc/keel/pkg/revwalk"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var orderName string
	var limit int
	var exclude []string

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			start, err := r.ResolveRef(rev)
			if err != nil {
				return err
			}

			order, err := parseOrder(orderName)
			if err != nil {
				return err
			}
			boundary := make([]object.Hash, 0, len(exclude))
			for _, ex := range exclude {
				h, err := r.ResolveRef(ex)
				if err != nil {
					return err
				}
				boundary = append(boundary, h)
			}

			walker := revwalk.New(r.Store, []object.Hash{start}, revwalk.Options{
				Order:    order,
				Boundary: boundary,
			})

			hashColor := color.New(color.FgYellow).SprintFunc()
			shown := 0
			for limit <= 0 || shown < limit {
				item, err := walker.Next(cmd.Context())
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				printCommit(cmd, hashColor, item)
				shown++
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orderName, "order", "date", "traversal order: date, topo, or reverse")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")
	cmd.Flags().StringArrayVar(&exclude, "not", nil, "exclude commits reachable from this rev")

	return cmd
}

func parseOrder(name string) (revwalk.Order, error) {
	switch name {
	case "date":
		return revwalk.DateDescending, nil
	case "topo":
		return revwalk.Topological, nil
	case "reverse":
		return revwalk.Reverse, nil
	}
	return 0, fmt.Errorf("unknown order %q (want date, topo, or reverse)", name)
}

func printCommit(cmd *cobra.Command, hashColor func(...interface{}) string, item *revwalk.Item) {
	out := cmd.OutOrStdout()
	when := time.Unix(item.Commit.CommitterTime, 0).UTC()
	subject := item.Commit.Message
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}
	fmt.Fprintf(out, "%s %s %s %s\n",
		hashColor(item.Hash.Short()),
		when.Format("2006-01-02"),
		item.Commit.Author,
		subject,
	)
}
