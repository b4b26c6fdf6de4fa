package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DiscoverRequest represents the discover API request.
type DiscoverRequest struct {
	OrderNumber   string `json:"order_number"`
	OrderName     string `json:"order_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
}

// DiscoverResponse represents the discover API response.
type DiscoverResponse struct {
	Status          string      `json:"status"`
	CandidatesFound int         `json:"candidates_found"`
	TopScore        *float64    `json:"top_score,omitempty"`
	ThreadLink      *ThreadLink `json:"thread_link,omitempty"`
}

// EnqueueResponse represents the async discover API response.
type EnqueueResponse struct {
	JobID       string `json:"job_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

// DiscoverCmd creates the discover command.
func DiscoverCmd() *cobra.Command {
	var (
		orderName     string
		customerEmail string
		customerName  string
		async         bool
	)

	cmd := &cobra.Command{
		Use:   "discover <order-number>",
		Short: "Discover the conversation thread for an order",
		Long:  "Searches the comms system for the conversation belonging to an order and records the match.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDiscover(args[0], orderName, customerEmail, customerName, async, outputJSON)
		},
	}

	cmd.Flags().StringVar(&orderName, "name", "", "Display name of the order (e.g. #1001)")
	cmd.Flags().StringVarP(&customerEmail, "email", "e", "", "Customer email address")
	cmd.Flags().StringVar(&customerName, "customer", "", "Customer name")
	cmd.Flags().BoolVar(&async, "async", false, "Enqueue discovery as a background job")

	return cmd
}

func runDiscover(orderNumber, orderName, customerEmail, customerName string, async, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	req := DiscoverRequest{
		OrderNumber:   orderNumber,
		OrderName:     orderName,
		CustomerEmail: customerEmail,
		CustomerName:  customerName,
	}

	if async {
		resp, err := api.Post("/threads/discover/async", req)
		if err != nil {
			return fmt.Errorf("failed to enqueue discovery: %w", err)
		}

		var enqueued EnqueueResponse
		if err := json.Unmarshal(resp.Data, &enqueued); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		if outputJSON {
			output, _ := json.MarshalIndent(enqueued, "", "  ")
			fmt.Println(string(output))
		} else {
			fmt.Printf("Enqueued discovery for %s (job %s)\n", enqueued.OrderNumber, enqueued.JobID)
		}
		return nil
	}

	resp, err := api.Post("/threads/discover", req)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	var result DiscoverResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Result: %s (%d candidates)\n", result.Status, result.CandidatesFound)
	if result.TopScore != nil {
		fmt.Printf("Top score: %.2f\n", *result.TopScore)
	}
	if result.ThreadLink != nil {
		fmt.Println()
		printThreadLink(result.ThreadLink)
	}

	return nil
}
