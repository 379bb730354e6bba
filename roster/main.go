// Command roster runs the match roster service and its tooling.
//
// Usage:
//
//	roster serve
//	roster migrate
//	roster token --user u1 --email owner@example.com --role league_owner
//	roster contend --url http://localhost:8080 --match <id> --team <id>_team_a --slot 3 -n 50
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARN: Failed to load .env: %v", err)
	}

	root := &cobra.Command{
		Use:           "roster",
		Short:         "Match roster service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(contendCmd())

	if err := root.Execute(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}
