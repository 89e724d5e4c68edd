/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the agency billing server. Subcommands start the
  HTTP server, migrate the schema, print a generated calendar, and sign
  development tokens.

COMMANDS:
  serve     Start the HTTP API (default when no command is given)
  migrate   Create or update the schema of the configured store
  periods   Print the expected calendar for a start date and cadence
  token     Sign a development bearer token with JWT_SECRET

CONFIGURATION:
  Read from .env and the environment by config.Load. See config/config.go
  for every key and its default.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Wait for pending notifications
  4. Close the store

EXAMPLES:
  # Run with the default sqlite file
  JWT_SECRET=dev ./server serve

  # Run against postgres
  DB_DRIVER=postgres DB_HOST=db JWT_SECRET=dev ./server serve

  # Preview a monthly calendar
  ./server periods --start 2024-12-04 --cadence monthly --horizon 2025-06-01

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Stores
*/
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Agency billing server",
	Long: `Billing-period scheduler and financial reconciliation engine for the
agency back-office: period calendars, invoices, payments, commission and
tax expense generation over a REST API.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
