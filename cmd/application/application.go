// Package application provides the application interface for queuelink commands.
//
// Commands accept an Application instead of the concrete App so they can be
// tested with application.Mock.
//
// Usage in Commands:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            client, err := app.Client()
//	            if err != nil {
//	                return err
//	            }
//	            s := client.Session()
//	            // ... use the session
//	            return nil
//	        },
//	    }
//	}
package application

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink"
)

// Application provides what commands need from the running CLI.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Client returns the queue client, creating it lazily and resuming any
	// saved session on first use.
	Client() (queuelink.Client, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// Out is where command results are printed.
	Out() io.Writer

	// Version returns the application version string.
	Version() string
}
