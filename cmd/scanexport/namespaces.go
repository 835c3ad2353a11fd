package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/scanexport/internal/config"
)

// NewNamespacesCmd creates the namespaces command.
func NewNamespacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "namespaces",
		Short: "List every namespace reachable from the root namespace",
		Long: `Namespaces lists the root namespace and all of its child namespaces,
one per line. This is the same discovery the export command performs,
so it is a cheap way to preview what an export would walk.`,
		Args: cobra.NoArgs,
		RunE: runNamespacesCmd,
	}

	cmd.Flags().StringP("namespace", "n", "",
		"Root namespace to enumerate (default: ENDOR_NAMESPACE)")
	cmd.Flags().String("api-url", config.DefaultAPIURL,
		"Base URL of the vendor API")

	return cmd
}

// runNamespacesCmd executes the namespaces command.
func runNamespacesCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()

	var err error
	cfg.RootNamespace, err = cmd.Flags().GetString("namespace")
	if err != nil {
		return err
	}
	if cfg.RootNamespace == "" {
		cfg.RootNamespace = config.NamespaceFromEnv()
	}
	cfg.APIURL, err = cmd.Flags().GetString("api-url")
	if err != nil {
		return err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	client := newClient(cfg, creds, logger)
	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	namespaces, err := client.ListNamespaces(ctx, cfg.RootNamespace)
	if err != nil {
		return fmt.Errorf("listing namespaces under %s: %w", cfg.RootNamespace, err)
	}

	for _, ns := range namespaces {
		fmt.Fprintln(cmd.OutOrStdout(), ns)
	}
	return nil
}
