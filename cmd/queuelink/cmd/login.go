package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/queuelink/cmd/application"
	"github.com/agentstation/queuelink/pkg/auth"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(app application.Application) *cobra.Command {
	var identifier, secret string

	cmd := &cobra.Command{
		Use:     "login",
		GroupID: "session",
		Short:   "Sign in with an email address or phone number",
		Long: `Sign in to the queue platform. The identifier is an email address
or a phone number. The password is taken from --password or, when that
is not given, from the QUEUELINK_PASSWORD environment variable.

The session is saved so later commands stay signed in.`,
		Example: `  queuelink login -u ana@example.com
  QUEUELINK_PASSWORD=... queuelink login -u +15551234567`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			s, err := client.Login(cmd.Context(), auth.Credentials{
				Identifier: identifier,
				Secret:     password(secret),
			})
			if err != nil {
				return friendly(err)
			}

			fmt.Fprintf(app.Out(), "Signed in as %s (%s)\n", s.UserID, roles(s))
			return nil
		},
	}

	cmd.Flags().StringVarP(&identifier, "identifier", "u", "", "email address or phone number")
	cmd.Flags().StringVarP(&secret, "password", "p", "", "password (default $"+PasswordEnv+")")

	return cmd
}
