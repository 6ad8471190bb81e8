package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/tagdesk/tagdesk/internal/auth"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/repository"
)

type bootstrapOutput struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
}

func newBootstrapKeyCmd(a *app) *cobra.Command {
	var (
		email  string
		name   string
		keyEnv string
		scopes string
		tier   string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap-key",
		Short: "Create an admin user if needed and issue an API key for it",
		Long: `bootstrap-key issues the first API key. The plaintext key is printed
once and cannot be recovered later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := parseScopes(scopes)
			if err != nil {
				return err
			}
			if _, ok := model.Tiers[tier]; !ok {
				return fmt.Errorf("unknown rate limit tier %q", tier)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			repo, err := a.openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			user, err := ensureAdmin(ctx, repo, email)
			if err != nil {
				return err
			}

			generated, err := auth.GenerateAPIKey(keyEnv)
			if err != nil {
				return fmt.Errorf("generate api key: %w", err)
			}
			key := &model.APIKey{
				ID:            ulid.Make().String(),
				UserID:        user.ID,
				KeyHash:       generated.Hash,
				KeyPrefix:     generated.Prefix,
				Scopes:        parsed,
				RateLimitTier: tier,
				Name:          name,
				CreatedAt:     time.Now().UTC(),
			}
			if err := repo.CreateAPIKey(ctx, key); err != nil {
				return fmt.Errorf("create api key: %w", err)
			}

			out := bootstrapOutput{
				UserID:    user.ID,
				Email:     user.Email,
				KeyID:     key.ID,
				Key:       generated.Plaintext,
				KeyPrefix: key.KeyPrefix,
				Scopes:    parsed,
			}
			if a.jsonOut {
				return writeJSON(a.out, out)
			}
			fmt.Fprintln(a.out, out.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "admin@tagdesk.local", "email of the owning admin user")
	cmd.Flags().StringVar(&name, "name", "bootstrap", "API key name")
	cmd.Flags().StringVar(&keyEnv, "env", auth.EnvLive, "key environment: live or test")
	cmd.Flags().StringVar(&scopes, "scopes", model.ScopeAdmin, "comma-separated scopes (read,write,admin)")
	cmd.Flags().StringVar(&tier, "tier", model.TierUnlimited, "rate limit tier (free,pro,unlimited)")
	return cmd
}

// parseScopes splits a comma-separated scope list. An empty list means admin.
func parseScopes(input string) ([]string, error) {
	var scopes []string
	for _, part := range strings.Split(input, ",") {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !model.IsValidScope(scope) {
			return nil, fmt.Errorf("invalid scope %q", scope)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeAdmin}
	}
	return scopes, nil
}

// ensureAdmin returns the user with email, creating an admin if none exists.
// An existing non-admin user is refused.
func ensureAdmin(ctx context.Context, repo *repository.Repository, email string) (*model.User, error) {
	user, err := repo.GetOrCreateUser(ctx, &model.User{
		ID:    ulid.Make().String(),
		Name:  "Administrator",
		Email: email,
		Role:  model.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if user.Role != model.RoleAdmin {
		return nil, fmt.Errorf("user %s exists but is not an admin", email)
	}
	return user, nil
}
