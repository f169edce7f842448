package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "keel",
		Short: "Content-addressed object store with line-level history attribution",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newCommitCmd())
	root.AddCommand(newCatCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newBlameCmd())
	root.AddCommand(newPackCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newVainCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("keel 0.1.0-dev")
		},
	}
}
