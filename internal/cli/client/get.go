package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <order-number>",
		Short: "Show the thread link for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(orderNumber string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get("/threads/" + url.PathEscape(orderNumber))
	if err != nil {
		return fmt.Errorf("failed to get thread link: %w", err)
	}

	var link ThreadLink
	if err := json.Unmarshal(resp.Data, &link); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(link, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printThreadLink(&link)
	return nil
}
