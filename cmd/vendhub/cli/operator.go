package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/service"
)

func newOperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage operator accounts",
		Long:  "Create and list the operator accounts that sign in to the VendHub admin API.",
	}

	cmd.AddCommand(newOperatorCreateCmd())
	cmd.AddCommand(newOperatorListCmd())

	return cmd
}

// ---------- operator create ----------

func newOperatorCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
		admin    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new operator account",
		Example: `  vendhub operator create --email ops@example.com --admin
  vendhub operator create --email tech@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperatorCreate(email, password, name, admin)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Operator email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Operator password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Operator display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant administrative access")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runOperatorCreate(email, password, name string, admin bool) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}

	// Prompt for password if not provided
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := service.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	st, err := openStore(loadConfig())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	op := &model.Operator{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
		IsAdmin:      admin,
	}
	if err := st.CreateOperator(context.Background(), op); err != nil {
		return fmt.Errorf("create operator: %w", err)
	}

	role := "operator"
	if admin {
		role = "admin"
	}
	fmt.Printf("Created %s account %q\n", role, email)
	return nil
}

// ---------- operator list ----------

func newOperatorListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all operator accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperatorList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runOperatorList(jsonOutput bool) error {
	st, err := openStore(loadConfig())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ops, err := st.ListOperators(context.Background())
	if err != nil {
		return fmt.Errorf("list operators: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ops)
	}

	if len(ops) == 0 {
		fmt.Println("No operator accounts. Use 'vendhub operator create' to create one.")
		return nil
	}

	fmt.Printf("%-30s %-24s %-8s %-8s\n", "EMAIL", "NAME", "ADMIN", "ACTIVE")
	fmt.Printf("%-30s %-24s %-8s %-8s\n", "-----", "----", "-----", "------")
	for _, op := range ops {
		admin, active := "no", "yes"
		if op.IsAdmin {
			admin = "yes"
		}
		if !op.IsActive {
			active = "no"
		}
		fmt.Printf("%-30s %-24s %-8s %-8s\n", op.Email, op.Name, admin, active)
	}

	return nil
}
