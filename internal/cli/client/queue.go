package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ReviewQueueResponse represents the review queue API response.
type ReviewQueueResponse struct {
	Items []*ThreadLink `json:"items"`
}

// QueueCmd creates the queue command.
func QueueCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List thread links waiting for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runQueue(limit, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")

	return cmd
}

func runQueue(limit int, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/threads/review-queue?limit=%d", limit))
	if err != nil {
		return fmt.Errorf("failed to fetch review queue: %w", err)
	}

	var queue ReviewQueueResponse
	if err := json.Unmarshal(resp.Data, &queue); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(queue, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(queue.Items) == 0 {
		fmt.Println("Review queue is empty.")
		return nil
	}

	fmt.Printf("%d links waiting for review:\n\n", len(queue.Items))
	for i, link := range queue.Items {
		printThreadLinkRow(i, link)
		if i < len(queue.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
