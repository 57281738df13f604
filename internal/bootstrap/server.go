package bootstrap

import (
	"context"

	"mailagent/internal/httpapi"
	"mailagent/internal/ports"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func runServer(lc fx.Lifecycle, server *httpapi.Server, browser ports.BrowserManager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := browser.Launch(ctx); err != nil {
				logger.Error("Failed to launch browser", zap.Error(err))

				return err
			}

			go func() {
				if err := server.Start(); err != nil {
					logger.Error("HTTP server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := server.Shutdown(ctx); err != nil {
				logger.Error("Failed to stop HTTP server", zap.Error(err))
			}

			return browser.Close(ctx)
		},
	})
}
