package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/service"
	"github.com/vendhub/vendhub/internal/store"
)

// cliCaller is the owner recorded for tokens issued from the command line.
// CLI invocations have full access, like an admin session.
const cliCaller = "cli"

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		Long:  "Create, list, revoke, and regenerate the API tokens used by integrations and telemetry collectors.",
	}

	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenListCmd())
	cmd.AddCommand(newTokenRevokeCmd())
	cmd.AddCommand(newTokenRegenerateCmd())

	return cmd
}

// tokenService opens the store and builds a TokenService for one command run.
func tokenService() (*store.Store, *service.TokenService, error) {
	cfg := loadConfig()
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	logger := newLogger(cfg.Logging)
	recorder := service.NewRecorder(st, logger)
	return st, service.NewTokenService(st, recorder, service.NewSlidingWindow(), logger), nil
}

// ---------- token create ----------

func newTokenCreateCmd() *cobra.Command {
	var (
		name        string
		description string
		preset      string
		permissions []string
		scopes      []string
		ips         []string
		rateLimit   int
		expires     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API token",
		Long:  "Issue a new API token. The secret is shown once and cannot be retrieved again.",
		Example: `  vendhub token create --name "route planner" --preset readonly
  vendhub token create --name telemetry --permission write:machines --scope machines --rate-limit 120
  vendhub token create --name "finance export" --preset financial_management --expires 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if preset != "" {
				presetPerms, ok := model.Presets[preset]
				if !ok {
					return fmt.Errorf("unknown preset %q", preset)
				}
				permissions = append(append([]string{}, presetPerms...), permissions...)
			}

			req := service.CreateTokenRequest{
				Name:        name,
				Description: description,
				Permissions: permissions,
				Scopes:      scopes,
				IPWhitelist: ips,
			}
			if rateLimit > 0 {
				req.RateLimit = &rateLimit
			}
			if expires > 0 {
				t := time.Now().UTC().Add(expires)
				req.ExpiresAt = &t
			}

			st, tokens, err := tokenService()
			if err != nil {
				return err
			}
			defer st.Close()

			t, secret, err := tokens.Create(context.Background(), &req, cliCaller, "")
			if err != nil {
				return err
			}

			fmt.Println("API token created:")
			fmt.Println()
			fmt.Printf("  Secret:      %s\n", secret)
			fmt.Printf("  Prefix:      %s\n", t.Prefix)
			fmt.Printf("  Name:        %s\n", t.Name)
			fmt.Printf("  Permissions: %v\n", []string(t.Permissions))
			if len(t.Scopes) > 0 {
				fmt.Printf("  Scopes:      %v\n", []string(t.Scopes))
			}
			if t.ExpiresAt != nil {
				fmt.Printf("  Expires:     %s\n", t.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Println()
			fmt.Println("  Save this secret now - it cannot be retrieved again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Token name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Token description")
	cmd.Flags().StringVar(&preset, "preset", "", "Permission preset (readonly, reports_only, machines_management, financial_management, admin)")
	cmd.Flags().StringArrayVar(&permissions, "permission", nil, "Permission in action:scope form (repeatable)")
	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "Resource scope restriction (repeatable)")
	cmd.Flags().StringArrayVar(&ips, "ip", nil, "Whitelisted client IP (repeatable)")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "Validations allowed per minute (0 = unlimited)")
	cmd.Flags().DurationVar(&expires, "expires", 0, "Lifetime, e.g. 720h (0 = never expires)")
	cmd.MarkFlagRequired("name")

	return cmd
}

// ---------- token list ----------

func newTokenListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runTokenList(jsonOutput bool) error {
	st, tokens, err := tokenService()
	if err != nil {
		return err
	}
	defer st.Close()

	list, _, err := tokens.List(context.Background(), model.TokenFilter{Limit: 500}, cliCaller, true)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println("No API tokens issued. Use 'vendhub token create' to create one.")
		return nil
	}

	fmt.Printf("%-38s %-10s %-24s %-8s %-10s\n", "ID", "PREFIX", "NAME", "ACTIVE", "USES")
	fmt.Printf("%-38s %-10s %-24s %-8s %-10s\n", "--", "------", "----", "------", "----")
	for _, t := range list {
		active := "yes"
		if !t.IsActive {
			active = "no"
		}
		fmt.Printf("%-38s %-10s %-24s %-8s %-10d\n", t.ID, t.Prefix, t.Name, active, t.UsageCount)
	}

	return nil
}

// ---------- token revoke ----------

func newTokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Revoke an API token",
		Long:  "Deactivate a token, refusing any further validations without deleting its record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, tokens, err := tokenService()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := tokens.Revoke(context.Background(), args[0], cliCaller, "", true); err != nil {
				return err
			}
			fmt.Printf("Revoked token %s\n", args[0])
			return nil
		},
	}
}

// ---------- token regenerate ----------

func newTokenRegenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <token-id>",
		Short: "Regenerate an API token",
		Long:  "Issue a fresh secret under the same configuration and deactivate the old token.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, tokens, err := tokenService()
			if err != nil {
				return err
			}
			defer st.Close()

			t, secret, err := tokens.Regenerate(context.Background(), args[0], cliCaller, "", true)
			if err != nil {
				return err
			}

			fmt.Println("API token regenerated:")
			fmt.Println()
			fmt.Printf("  Secret: %s\n", secret)
			fmt.Printf("  Prefix: %s\n", t.Prefix)
			fmt.Printf("  ID:     %s\n", t.ID)
			fmt.Println()
			fmt.Println("  Save this secret now - it cannot be retrieved again.")
			return nil
		},
	}
}
