package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// LinkedListResponse represents the linked threads API response.
type LinkedListResponse struct {
	Items   []*ThreadLink `json:"items"`
	Cursor  string        `json:"cursor,omitempty"`
	HasMore bool          `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List linked threads",
		Long:  "Lists orders with a linked conversation, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runList(limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/threads/linked?limit=%d", limit)
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list linked threads: %w", err)
	}

	var list LinkedListResponse
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(list.Items) == 0 {
		fmt.Println("No linked threads found.")
		return nil
	}

	fmt.Printf("%d linked threads:\n\n", len(list.Items))
	for i, link := range list.Items {
		printThreadLinkRow(i, link)
		if i < len(list.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	if list.HasMore && list.Cursor != "" {
		fmt.Printf("\n%s\n", strings.Repeat("-", 40))
		fmt.Printf("More results available. Use --cursor %s\n", list.Cursor)
	}

	return nil
}
