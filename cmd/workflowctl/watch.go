package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/observability"
	"github.com/spec-kit/factory-workflow/internal/persistence"
	"github.com/spec-kit/factory-workflow/internal/push"
	"github.com/spec-kit/factory-workflow/internal/syncer"
)

var (
	watchKinds       []string
	watchWebsocket   string
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep local collections in sync and log every change",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kinds, err := parseKinds(watchKinds)
		if err != nil {
			return err
		}
		if len(kinds) == 0 {
			kinds = domain.Kinds
		}

		metrics := observability.NewMetrics()
		retry := syncer.RetryPolicyFromConfig(cfg.Sync)
		s := syncer.New(newClient(), kinds,
			syncer.WithLogger(logger),
			syncer.WithMetrics(metrics),
			syncer.WithRetryPolicy(retry),
		)
		for _, kind := range kinds {
			c, _ := s.Collection(kind)
			c.Subscribe(logSnapshot)
		}

		if err := s.Load(ctx); err != nil {
			return err
		}

		if watchMetricsAddr != "" {
			app := fiber.New(fiber.Config{DisableStartupMessage: true})
			app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
			go func() {
				if err := app.Listen(watchMetricsAddr); err != nil {
					logger.Warn("metrics listener stopped", zap.Error(err))
				}
			}()
			defer func() { _ = app.Shutdown() }()
		}

		var src push.Source
		wsURL := watchWebsocket
		if wsURL == "" {
			wsURL = cfg.Push.WebsocketURL
		}
		if wsURL != "" {
			src = push.NewWebsocketSource(wsURL, apiToken)
		} else {
			redis := persistence.NewRedis(cfg.Redis, logger)
			defer redis.Close()
			src = push.NewRedisSource(redis.Client, cfg.Push.RedisChannel)
		}
		go push.Listen(ctx, src, s.PushHandler(ctx), retry.Base, retry.Max, logger)

		stopPolling, err := s.StartPolling(ctx, cfg.Sync.PollInterval())
		if err != nil {
			return err
		}
		defer stopPolling()

		logger.Info("watching", zap.Int("kinds", len(kinds)), zap.Duration("poll_interval", cfg.Sync.PollInterval()))
		<-ctx.Done()
		return nil
	},
}

func logSnapshot(kind domain.Kind, items []*domain.WorkflowItem) {
	fields := []zap.Field{zap.String("kind", string(kind)), zap.Int("items", len(items))}
	if len(items) > 0 {
		fields = append(fields,
			zap.String("top_id", items[0].ID),
			zap.String("top_status", string(items[0].Status)),
		)
	}
	logger.Info("collection changed", fields...)
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchKinds, "kind", nil, "Kinds to sync (repeat flag, default all)")
	watchCmd.Flags().StringVar(&watchWebsocket, "websocket", "", "Websocket invalidation URL (default PUSH_WEBSOCKET_URL, Redis when unset)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve client metrics on this address")
	rootCmd.AddCommand(watchCmd)
}
