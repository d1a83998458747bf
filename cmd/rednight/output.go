package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// formatMillis renders a created_at value in local time.
func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

func formatID(id int64) string {
	return ui.RenderAccent(strconv.FormatInt(id, 10))
}

func printEnvironment(w io.Writer, env *model.Environment) {
	fmt.Fprintf(w, "ID:          %s\n", formatID(env.ID))
	fmt.Fprintf(w, "Name:        %s\n", env.Name)
	fmt.Fprintf(w, "Created At:  %s\n", ui.RenderMuted(formatMillis(env.CreatedAt)))
}

func printEnvironmentTable(w io.Writer, envs []*model.Environment, next string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED")
	for _, e := range envs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.ID, e.Name, formatMillis(e.CreatedAt))
	}
	tw.Flush()
	printFooter(w, len(envs), "environments", next)
}

func printConfig(w io.Writer, cfg *model.Config) {
	fmt.Fprintf(w, "ID:          %s\n", formatID(cfg.ID))
	fmt.Fprintf(w, "Name:        %s\n", cfg.Name)
	fmt.Fprintf(w, "Environment: %d\n", cfg.EnvironmentID)
	fmt.Fprintf(w, "Created At:  %s\n", ui.RenderMuted(formatMillis(cfg.CreatedAt)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, cfg.Config)
}

func printConfigTable(w io.Writer, configs []*model.ConfigSummary, next string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED")
	for _, c := range configs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, formatMillis(c.CreatedAt))
	}
	tw.Flush()
	printFooter(w, len(configs), "configs", next)
}

func printFooter(w io.Writer, n int, noun, next string) {
	if next != "" {
		fmt.Fprintf(w, "\n%d %s %s\n", n, noun, ui.RenderMuted("(more: --next-page "+next+")"))
		return
	}
	fmt.Fprintf(w, "\n%d %s\n", n, noun)
}
