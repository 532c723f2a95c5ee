package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/queuelink/cmd/application"
)

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		GroupID: "session",
		Short:   "Sign out and forget the saved session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			wasSignedIn := client.Session().IsAuthenticated()
			_ = client.Logout(cmd.Context())

			if wasSignedIn {
				fmt.Fprintln(app.Out(), "Signed out")
			} else {
				fmt.Fprintln(app.Out(), "Not signed in")
			}
			return nil
		},
	}
}
