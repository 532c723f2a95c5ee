package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/queuelink/cmd/application"
	"github.com/agentstation/queuelink/pkg/auth"
)

// NewRegisterCommand creates the register command.
func NewRegisterCommand(app application.Application) *cobra.Command {
	var profile auth.Profile

	cmd := &cobra.Command{
		Use:     "register",
		GroupID: "session",
		Short:   "Create an account and sign in",
		Example: `  queuelink register --email ana@example.com --phone +15551234567 \
    --first-name Ana --last-name Lima`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			profile.Password = password(profile.Password)
			s, err := client.Register(cmd.Context(), profile)
			if err != nil {
				return friendly(err)
			}

			fmt.Fprintf(app.Out(), "Account created. Signed in as %s\n", s.UserID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&profile.Email, "email", "", "email address")
	f.StringVar(&profile.Phone, "phone", "", "phone number")
	f.StringVarP(&profile.Password, "password", "p", "", "password (default $"+PasswordEnv+")")
	f.StringVar(&profile.FirstName, "first-name", "", "first name")
	f.StringVar(&profile.LastName, "last-name", "", "last name")
	f.StringVar(&profile.DateOfBirth, "date-of-birth", "", "date of birth (YYYY-MM-DD)")
	f.StringVar(&profile.Address, "address", "", "postal address")

	return cmd
}
