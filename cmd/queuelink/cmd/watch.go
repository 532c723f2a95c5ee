package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/agentstation/queuelink/cmd/application"
	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/events"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(app application.Application) *cobra.Command {
	var kinds []string
	var raw bool

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "live",
		Short:   "Follow live appointment and queue updates",
		Long: `Watch keeps the event stream open and prints a notice for every
appointment status change, queue position update and system notice
addressed to the signed-in user. It reconnects with backoff when the
stream drops and runs until interrupted.`,
		Example: `  queuelink watch
  queuelink watch --kind queue.position_updated --raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := parseKinds(kinds)
			if err != nil {
				return err
			}

			client, err := app.Client()
			if err != nil {
				return err
			}
			if !client.Session().IsAuthenticated() {
				return friendly(errors.ErrNotAuthenticated)
			}

			out := &syncWriter{w: app.Out()}
			client.OnConnectionChange(func(c channel.Connection) {
				printConnection(out, c)
			})

			sub, err := client.Subscribe(func(e events.Event) error {
				if !raw {
					return nil
				}
				frame, err := events.Encode(e)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(frame))
				return err
			}, filter...)
			if err != nil {
				return err
			}
			defer client.Unsubscribe(sub)

			printConnection(out, client.Connection())
			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "only these event kinds (repeatable)")
	cmd.Flags().BoolVar(&raw, "raw", false, "also print each event as its wire frame")
	return cmd
}

func parseKinds(names []string) ([]events.Kind, error) {
	out := make([]events.Kind, 0, len(names))
	for _, n := range names {
		k := events.Kind(n)
		if !k.Valid() {
			return nil, &errors.ValidationError{Field: "kind", Value: n, Message: fmt.Sprintf("unknown event kind %q", n)}
		}
		out = append(out, k)
	}
	return out, nil
}

func printConnection(w io.Writer, c channel.Connection) {
	switch {
	case c.LastError != nil:
		fmt.Fprintf(w, "live updates: %s (attempt %d: %v)\n", c.State, c.RetryCount, c.LastError)
	case c.RetryCount > 0:
		fmt.Fprintf(w, "live updates: %s (attempt %d)\n", c.State, c.RetryCount)
	default:
		fmt.Fprintf(w, "live updates: %s\n", c.State)
	}
}

// syncWriter serialises writes from the event and connection callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
