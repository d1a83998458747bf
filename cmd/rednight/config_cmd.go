package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rednight/internal/client"
	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/ui"
)

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Manage configs within an environment",
		GroupID: "resources",
	}
	cmd.AddCommand(c.configCreateCmd(), c.configGetCmd(), c.configListCmd(), c.configDeleteCmd())
	return cmd
}

// readPayload resolves the payload for config create: --value wins, then
// --file ("-" for stdin), then piped stdin.
func readPayload(cmd *cobra.Command, value, file string) (string, error) {
	switch {
	case value != "":
		return value, nil
	case file == "-":
		return readAll(cmd.InOrStdin())
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading payload: %w", err)
		}
		return string(data), nil
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok && !ui.IsTerminal(f) {
		return readAll(f)
	}
	return "", errors.New("a payload is required: pass --value, --file or pipe it on stdin")
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading payload: %w", err)
	}
	return string(data), nil
}

func (c *cli) configCreateCmd() *cobra.Command {
	var value, file string
	cmd := &cobra.Command{
		Use:   "create <environment-id> <name>",
		Short: "Create a config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			envID, err := parseID("environment", args[0])
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd, value, file)
			if err != nil {
				return err
			}
			cfg, err := c.client.CreateConfig(cmd.Context(), envID, model.CreateConfig{Name: args[1], Config: payload})
			if err != nil {
				return fmt.Errorf("creating config: %w", err)
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "payload text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the payload from a file (- for stdin)")
	return cmd
}

func (c *cli) configGetCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get <environment-id> <config-id>",
		Short: "Show a config and its payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			envID, err := parseID("environment", args[0])
			if err != nil {
				return err
			}
			id, err := parseID("config", args[1])
			if err != nil {
				return err
			}
			cfg, err := c.client.GetConfig(cmd.Context(), envID, id)
			if err != nil {
				return fmt.Errorf("getting config: %w", err)
			}
			switch {
			case raw:
				_, err := io.WriteString(cmd.OutOrStdout(), cfg.Config)
				return err
			case c.jsonOutput:
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print only the payload")
	return cmd
}

func (c *cli) configListCmd() *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list <environment-id>",
		Short: "List the configs in an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envID, err := parseID("environment", args[0])
			if err != nil {
				return err
			}
			var (
				items []*model.ConfigSummary
				next  string
			)
			if flags.all {
				items, err = client.AllConfigs(cmd.Context(), c.client, envID, flags.pageSize)
				if err != nil {
					return fmt.Errorf("listing configs: %w", err)
				}
			} else {
				page, err := c.client.ListConfigs(cmd.Context(), envID, flags.query())
				if err != nil {
					return fmt.Errorf("listing configs: %w", err)
				}
				items, next = page.Items, page.NextPage
			}

			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), model.Page[*model.ConfigSummary]{Items: nonNil(items), NextPage: next})
			}
			printConfigTable(cmd.OutOrStdout(), items, next)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) configDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <environment-id> <config-id>",
		Short: "Delete a config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			envID, err := parseID("environment", args[0])
			if err != nil {
				return err
			}
			id, err := parseID("config", args[1])
			if err != nil {
				return err
			}
			if err := c.client.DeleteConfig(cmd.Context(), envID, id); err != nil {
				return fmt.Errorf("deleting config: %w", err)
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": id, "environment_id": envID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted config %s\n", formatID(id))
			return nil
		},
	}
}
