package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rednight/internal/client"
	"github.com/alfredjeanlab/rednight/internal/model"
)

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

// listFlags are shared by the list subcommands.
type listFlags struct {
	all      bool
	pageSize int
	nextPage string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.all, "all", false, "follow next_page until every item is listed")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, fmt.Sprintf("items per page (%d-%d)", model.MinPageSize, model.MaxPageSize))
	cmd.Flags().StringVar(&f.nextPage, "next-page", "", "cursor returned by a previous list")
}

func (f *listFlags) query() model.PageQuery {
	return model.PageQuery{NextPage: f.nextPage, PageSize: f.pageSize}
}

func (c *cli) envCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "env",
		Short:   "Manage environments",
		GroupID: "resources",
	}
	cmd.AddCommand(c.envCreateCmd(), c.envListCmd(), c.envShowCmd(), c.envDeleteCmd())
	return cmd
}

func (c *cli) envCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.client.CreateEnvironment(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("creating environment: %w", err)
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), env)
			}
			printEnvironment(cmd.OutOrStdout(), env)
			return nil
		},
	}
}

func (c *cli) envListCmd() *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				items []*model.Environment
				next  string
			)
			if flags.all {
				all, err := client.AllEnvironments(cmd.Context(), c.client, flags.pageSize)
				if err != nil {
					return fmt.Errorf("listing environments: %w", err)
				}
				items = all
			} else {
				page, err := c.client.ListEnvironments(cmd.Context(), flags.query())
				if err != nil {
					return fmt.Errorf("listing environments: %w", err)
				}
				items, next = page.Items, page.NextPage
			}

			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), model.Page[*model.Environment]{Items: nonNil(items), NextPage: next})
			}
			printEnvironmentTable(cmd.OutOrStdout(), items, next)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) envShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <environment-id>",
		Short: "Show an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("environment", args[0])
			if err != nil {
				return err
			}
			env, err := c.client.GetEnvironment(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("getting environment: %w", err)
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), env)
			}
			printEnvironment(cmd.OutOrStdout(), env)
			return nil
		},
	}
}

func (c *cli) envDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <environment-id>",
		Short: "Delete an environment and every config under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("environment", args[0])
			if err != nil {
				return err
			}
			if err := c.client.DeleteEnvironment(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting environment: %w", err)
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted environment %s\n", formatID(id))
			return nil
		},
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
