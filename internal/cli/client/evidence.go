package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// EvidenceResponse represents the evidence API response.
type EvidenceResponse struct {
	OrderNumber string `json:"order_number"`
	URL         string `json:"url"`
}

// EvidenceCmd creates the evidence command.
func EvidenceCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "evidence <order-number>",
		Short: "Fetch the archived scoring evidence for an order",
		Long:  "Resolves a download URL for the archived candidate scores recorded during discovery.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runEvidence(args[0], outputPath, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Download the evidence file to this path")

	return cmd
}

func runEvidence(orderNumber, outputPath string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get("/threads/" + url.PathEscape(orderNumber) + "/evidence")
	if err != nil {
		return fmt.Errorf("failed to fetch evidence: %w", err)
	}

	var evidence EvidenceResponse
	if err := json.Unmarshal(resp.Data, &evidence); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputPath != "" {
		if err := api.DownloadFile(evidence.URL, outputPath); err != nil {
			return err
		}
		fmt.Printf("Saved evidence for %s to %s\n", orderNumber, outputPath)
		return nil
	}

	if outputJSON {
		output, _ := json.MarshalIndent(evidence, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Evidence for %s:\n%s\n", evidence.OrderNumber, evidence.URL)
	return nil
}
