package main

import (
	"fmt"

	"github.com/keelvc/keel/pkg/repo"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Get or set a configuration value",
		Long:  "Supported keys: user.name, user.email, vain.default",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}

			key := args[0]
			if len(args) == 1 {
				val, ok := configGet(cfg, key)
				if !ok {
					return fmt.Errorf("unknown config key %q", key)
				}
				fmt.Fprintln(cmd.OutOrStdout(), val)
				return nil
			}

			if !configSet(cfg, key, args[1]) {
				return fmt.Errorf("unknown config key %q", key)
			}
			return r.WriteConfig(cfg)
		},
	}
}

func configGet(cfg *repo.Config, key string) (string, bool) {
	switch key {
	case "user.name":
		return cfg.UserName, true
	case "user.email":
		return cfg.UserEmail, true
	case "vain.default":
		return cfg.VanityDefault, true
	}
	return "", false
}

func configSet(cfg *repo.Config, key, value string) bool {
	switch key {
	case "user.name":
		cfg.UserName = value
	case "user.email":
		cfg.UserEmail = value
	case "vain.default":
		cfg.VanityDefault = value
	default:
		return false
	}
	return true
}
