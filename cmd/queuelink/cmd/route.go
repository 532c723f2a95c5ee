package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/queuelink/cmd/application"
)

// NewRouteCommand creates the route command.
func NewRouteCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "route <path>...",
		GroupID: "live",
		Short:   "Check which views the current session may open",
		Long: `Route asks the route guard about each path in turn, as if the user
navigated to it, and prints the decision and the view shown.`,
		Example: `  queuelink route /my-appointments /admin/queues`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			for _, path := range args {
				d := client.Navigate(path)
				view, _ := client.CurrentView()
				fmt.Fprintf(app.Out(), "%-24s %-18s -> %s\n", path, d, view)
			}
			return nil
		},
	}
}
