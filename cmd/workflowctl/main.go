// Command workflowctl is the operator client for the workflow API. It keeps
// local collections in sync with the server and fires transitions through
// them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/api/dto"
	"github.com/spec-kit/factory-workflow/internal/apiclient"
	"github.com/spec-kit/factory-workflow/internal/config"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/observability"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	apiURL   string
	apiToken string
)

var rootCmd = &cobra.Command{
	Use:           "workflowctl",
	Short:         "Client for the factory workflow API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if logger, err = observability.NewLogger(cfg.Logger); err != nil {
			return err
		}
		if apiURL == "" {
			apiURL = cfg.Sync.APIBaseURL
		}
		if apiToken == "" {
			apiToken = cfg.Sync.APIToken
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default SYNC_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "Bearer token (default SYNC_API_TOKEN)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newClient() *apiclient.Client {
	return apiclient.New(strings.TrimRight(apiURL, "/"), apiToken,
		apiclient.WithTimeout(cfg.Sync.RequestTimeout()),
		apiclient.WithLogger(logger),
	)
}

func parseKinds(raw []string) ([]domain.Kind, error) {
	kinds := make([]domain.Kind, 0, len(raw))
	for _, r := range raw {
		kind, err := domain.ParseKind(strings.TrimSpace(r))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func printItem(item *domain.WorkflowItem) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.ItemFromDomain(item))
}
