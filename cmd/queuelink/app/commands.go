package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/queuelink/cmd/queuelink/cmd"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Session commands
	rootCmd.AddCommand(cmd.NewLoginCommand(a))
	rootCmd.AddCommand(cmd.NewRegisterCommand(a))
	rootCmd.AddCommand(cmd.NewLogoutCommand(a))
	rootCmd.AddCommand(cmd.NewWhoamiCommand(a))

	// Live commands
	rootCmd.AddCommand(cmd.NewRouteCommand(a))
	rootCmd.AddCommand(cmd.NewWatchCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.newVersionCommand())
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "queuelink version %s\n", a.version)
			fmt.Fprintf(a.out, "commit: %s\n", a.commit)
			fmt.Fprintf(a.out, "built: %s\n", a.date)
			fmt.Fprintf(a.out, "built by: %s\n", a.builtBy)
			fmt.Fprintf(a.out, "go version: %s\n", runtime.Version())
			fmt.Fprintf(a.out, "platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
