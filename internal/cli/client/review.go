package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// ApproveCmd creates the approve command.
func ApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <order-number>",
		Short: "Approve a pending match",
		Long:  "Confirms that the proposed conversation belongs to the order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runReviewAction(args[0], "approve", outputJSON)
		},
	}

	return cmd
}

// RejectCmd creates the reject command.
func RejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <order-number>",
		Short: "Reject a pending match",
		Long:  "Marks the proposed conversation as not belonging to the order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runReviewAction(args[0], "reject", outputJSON)
		},
	}

	return cmd
}

// LinkCmd creates the link command.
func LinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <order-number> <conversation-id>",
		Short: "Link an order to a specific conversation",
		Long:  "Manually links an order to a conversation, overriding any proposed match.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runLink(args[0], args[1], outputJSON)
		},
	}

	return cmd
}

// ClearCmd creates the clear command.
func ClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <order-number>",
		Short: "Clear the thread link for an order",
		Long:  "Removes the stored link so the next discovery starts fresh.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(args[0])
		},
	}

	return cmd
}

func runReviewAction(orderNumber, action string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post("/threads/"+url.PathEscape(orderNumber)+"/"+action, nil)
	if err != nil {
		return fmt.Errorf("failed to %s match: %w", action, err)
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

	fmt.Printf("Order %s is now %s\n", link.OrderNumber, link.Status)
	return nil
}

func runLink(orderNumber, conversationID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	body := map[string]string{"conversation_id": conversationID}
	resp, err := api.Post("/threads/"+url.PathEscape(orderNumber)+"/link", body)
	if err != nil {
		return fmt.Errorf("failed to link conversation: %w", err)
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

	fmt.Printf("Linked order %s to %s\n", link.OrderNumber, link.ConversationID)
	return nil
}

func runClear(orderNumber string) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if _, err := api.Delete("/threads/" + url.PathEscape(orderNumber)); err != nil {
		return fmt.Errorf("failed to clear thread link: %w", err)
	}

	fmt.Printf("Cleared thread link for order %s\n", orderNumber)
	return nil
}
