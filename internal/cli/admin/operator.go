package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/portside-labs/portside/internal/config"
	"github.com/portside-labs/portside/internal/repository"
	"github.com/portside-labs/portside/internal/service"
)

func OperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage operators",
		Long:  "Create and list dashboard operators",
	}

	cmd.AddCommand(OperatorCreateCmd())
	cmd.AddCommand(OperatorListCmd())

	return cmd
}

func OperatorCreateCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new operator",
		Long:  "Create a new operator with the specified name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runOperatorCreate(args[0], email, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().StringVar(&email, "email", "", "Operator email address")

	return cmd
}

func runOperatorCreate(name, email, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	operatorRepo := repository.NewOperatorRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(operatorRepo, nil, uuidGen)

	op, err := authSvc.CreateOperator(ctx, name, email)
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         op.ID,
			"name":       op.Name,
			"email":      op.Email,
			"created_at": op.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Operator created: %s (%s)\n", op.Name, op.ID)
	}

	return nil
}

func OperatorListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all operators",
		Long:  "List all operators in the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runOperatorList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runOperatorList(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	operatorRepo := repository.NewOperatorRepository(pool)

	operators, err := operatorRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list operators: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(operators))
		for i, op := range operators {
			data[i] = map[string]interface{}{
				"id":         op.ID,
				"name":       op.Name,
				"email":      op.Email,
				"created_at": op.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(operators) == 0 {
			fmt.Println("No operators found")
			return nil
		}
		fmt.Println("Operators:")
		for _, op := range operators {
			fmt.Printf("  %s: %s (created: %s)\n", op.ID, op.Name, op.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
