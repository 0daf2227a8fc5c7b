package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

// newRootCommand builds the command tree. Subcommands are constructed fresh
// on every call so tests never share flag state.
func newRootCommand() *cobra.Command {
	serve := newServeCommand()

	root := &cobra.Command{
		Use:   "server",
		Short: "Togather RSVP server - event capacity and reservation backend",
		Long: `Togather RSVP server lets users publish events with a fixed number of spots
and reserve those spots without ever overbooking.

The server supports:
- Account registration and bearer-token login
- Event publishing with optional poster images
- Atomic RSVP reservations with capacity enforcement
- PostgreSQL or embedded SQLite storage`,
		SilenceUsage: true,
		// Run serve when no subcommand is given
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve.RunE(cmd, args)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (optional, uses env vars by default)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newTokenCommand())
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	return root
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
