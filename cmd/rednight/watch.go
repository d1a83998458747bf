package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rednight/internal/events"
	"github.com/alfredjeanlab/rednight/internal/ui"
)

// watchedEvent pairs a received payload with the topic it arrived on.
type watchedEvent struct {
	Topic string          `json:"topic"`
	Event json.RawMessage `json:"event"`
}

func (c *cli) watchCmd() *cobra.Command {
	natsURL := os.Getenv("REDNIGHT_NATS_URL")
	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Stream environment and config change events",
		GroupID: "resources",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if natsURL == "" {
				return errors.New("--nats-url or REDNIGHT_NATS_URL is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sub, err := events.NewNATSSubscriber(natsURL,
				nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
					slog.Warn("nats: disconnected", "err", err)
				}),
				nats.ReconnectHandler(func(_ *nats.Conn) {
					slog.Info("nats: reconnected")
				}),
			)
			if err != nil {
				return fmt.Errorf("connecting to NATS: %w", err)
			}
			defer sub.Close()

			return c.watch(ctx, sub, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats-url", natsURL, "NATS server URL")
	return cmd
}

// watch prints every event published under TopicAll until ctx ends.
func (c *cli) watch(ctx context.Context, sub events.Subscriber, out io.Writer) error {
	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", events.TopicAll, err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev := watchedEvent{Topic: msg.Topic, Event: msg.Data}
			if c.jsonOutput {
				data, err := json.Marshal(ev)
				if err != nil {
					return fmt.Errorf("marshaling event: %w", err)
				}
				fmt.Fprintln(out, string(data))
				continue
			}
			fmt.Fprintf(out, "%s  %s\n", ui.RenderAccent(ev.Topic), string(ev.Event))
		}
	}
}
