package main

import (
	"fmt"
	"os"

	"github.com/portside-labs/portside/internal/cli"
	"github.com/portside-labs/portside/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "portside",
		Short: "Portside CLI - Customer thread discovery for order support",
		Long: `Portside CLI provides commands to match orders to their support conversations.

Environment variables:
  PORTSIDE_API_KEY   API key for authentication (required)
  PORTSIDE_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AuthCmd())
	rootCmd.AddCommand(client.DiscoverCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.QueueCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.ApproveCmd())
	rootCmd.AddCommand(client.RejectCmd())
	rootCmd.AddCommand(client.LinkCmd())
	rootCmd.AddCommand(client.ClearCmd())
	rootCmd.AddCommand(client.EvidenceCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
