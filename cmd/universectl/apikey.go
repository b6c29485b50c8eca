package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jyl/universe/internal/application/auth"
	"github.com/jyl/universe/internal/bootstrap"
	"github.com/jyl/universe/internal/ptr"
)

type apiKeyCreateOptions struct {
	Name string
	Days int
}

func newAPIKeyCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}
	cmd.AddCommand(newAPIKeyCreateCommand(rootOpts))
	return cmd
}

func newAPIKeyCreateCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &apiKeyCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAPIKeyCreate(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "name or description of the key (required)")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "days until expiration (0 = never expires)")

	return cmd
}

func runAPIKeyCreate(cmd *cobra.Command, rootOpts *rootOptions, opts *apiKeyCreateOptions) error {
	if opts.Name == "" {
		return errors.New("--name is required")
	}
	if opts.Days < 0 {
		return fmt.Errorf("--days must be zero or positive, got %d", opts.Days)
	}

	cfg, err := rootOpts.config()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer closeQuietly("store", store)

	var expiresAt *time.Time
	if opts.Days > 0 {
		expiresAt = ptr.To(time.Now().UTC().AddDate(0, 0, opts.Days))
	}

	k := cfg.APIKey
	apiKey, err := auth.CreateAPIKey(ctx, store, k.KeyType, k.ServiceName, k.Version, opts.Name, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "API key created")
	fmt.Fprintln(out, "----------------------------------------")
	fmt.Fprintf(out, "Name:    %s\n", opts.Name)
	fmt.Fprintf(out, "Format:  %s-%s-%s-{short}-{long}\n", k.KeyType, k.ServiceName, k.Version)
	if expiresAt != nil {
		fmt.Fprintf(out, "Expires: %s (%d days)\n", expiresAt.Format(time.RFC3339), opts.Days)
	} else {
		fmt.Fprintln(out, "Expires: never")
	}
	fmt.Fprintln(out, "----------------------------------------")
	fmt.Fprintf(out, "\nAPI key: %s\n\n", apiKey)
	fmt.Fprintln(out, "Save this key now. It will not be shown again.")
	fmt.Fprintln(out, "Sign in with:")
	fmt.Fprintf(out, "  curl -X POST -d '{\"api_key\":\"%s\"}' http://localhost:8081/api/v1/auth/sessions\n", apiKey)
	return nil
}
