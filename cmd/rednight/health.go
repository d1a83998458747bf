package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rednight/internal/ui"
)

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "health",
		Short:   "Check the health of the server and its stores",
		GroupID: "system",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.client.Health(cmd.Context())
			if status == nil {
				return fmt.Errorf("checking health: %w", err)
			}

			out := cmd.OutOrStdout()
			if c.jsonOutput {
				if perr := printJSON(out, status); perr != nil {
					return perr
				}
			} else {
				fmt.Fprintf(out, "Health: %s\n", ui.RenderStatus(status.Status, status.Status == "ok"))
				for _, check := range status.Checks {
					line := fmt.Sprintf("  %-10s %s", check.Name, ui.RenderStatus(okText(check.OK), check.OK))
					if check.Error != "" {
						line += "  " + ui.RenderMuted(check.Error)
					}
					fmt.Fprintln(out, line)
				}
			}

			if status.Status != "ok" {
				return errors.New("unhealthy: " + status.Status)
			}
			return nil
		},
	}
}

func okText(ok bool) string {
	if ok {
		return "ok"
	}
	return "failing"
}
