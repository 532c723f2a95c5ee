package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/agentstation/queuelink/cmd/application"
)

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(app application.Application) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "whoami",
		GroupID: "session",
		Short:   "Show the current session",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			s := client.Session()
			if asJSON {
				enc := json.NewEncoder(app.Out())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			printSession(app.Out(), s)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session as JSON (tokens are never printed)")
	return cmd
}
