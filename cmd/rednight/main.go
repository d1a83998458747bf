// Command rednight serves and manages environments and their configs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rednight/internal/client"
	"github.com/alfredjeanlab/rednight/internal/ui"
)

// cli holds the flags and client shared by every command.
type cli struct {
	serverURL  string
	jsonOutput bool
	configPath string

	client client.Client
}

func defaultServerURL() string {
	if s := os.Getenv("REDNIGHT_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "rednight <command>",
		Short:         "Store environments and their configuration payloads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !ui.ShouldUseColor() {
				ui.ForceNoColor()
			}
			if c.client == nil {
				c.client = client.NewHTTPClient(c.serverURL)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.serverURL, "server", defaultServerURL(), "server base URL")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "output as JSON")

	root.AddGroup(
		&cobra.Group{ID: "resources", Title: "Resources:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	// Resources
	root.AddCommand(c.envCmd())
	root.AddCommand(c.configCmd())
	root.AddCommand(c.watchCmd())

	// System
	root.AddCommand(c.serveCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.reconcileCmd())
	root.AddCommand(c.healthCmd())

	root.SetHelpFunc(colorizedHelpFunc())
	return root
}

func main() {
	cobra.EnableCommandSorting = false
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
