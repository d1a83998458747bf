package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rednight/internal/config"
	"github.com/alfredjeanlab/rednight/internal/store/postgres"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Apply pending database migrations and exit",
		GroupID: "system",
		Args:    cobra.NoArgs,
		// No client connection for server-side commands.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(c.configPath)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New(config.EnvPrefix + "_DATABASE_URL is required")
			}
			pg, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&c.configPath, "config", "", "path to a TOML config file")
	return cmd
}
