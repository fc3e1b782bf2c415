package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/services"
)

func (a *app) serveCmd() *cobra.Command {
	var actorTTL time.Duration
	var perMinute int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON query API",
		Long: `Serve GET /api/expenses, /api/analytics and /api/activities. The acting
user is taken from the X-Ledger-User header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := a.logger

			b, err := cli.OpenBackend(logger, a.cfg)
			if err != nil {
				return err
			}

			opts := []services.Option{services.WithLogger(logger), services.WithActivityLister(b)}
			mq, err := cli.OpenAMQP(logger, a.cfg)
			if err != nil {
				logger.Warn("AMQP unavailable, recording activities directly", log.FieldError, err)
			} else if mq != nil {
				opts = append(opts, services.WithPublisher(mq))
			}
			svc := services.NewQueryService(b, b, b, opts...)

			srv := apphttp.NewServer(apphttp.Config{
				Addr:              ":" + a.cfg.Port,
				RequestsPerMinute: perMinute,
				ActorCacheTTL:     actorTTL,
			}, svc, b, logger)

			ctx, cancel := cli.SignalContext(ctx, logger)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", srv.Addr, "backend", a.cfg.DataBackend)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			var serveErr error
			select {
			case <-ctx.Done():
			case serveErr = <-errCh:
			}

			cli.RunCleanup(logger, a.cfg.ShutdownTimeout, func(ctx context.Context) error {
				err := srv.Shutdown(ctx)
				if mq != nil {
					err = errors.Join(err, mq.Close())
				}
				return errors.Join(err, b.Close())
			})
			return serveErr
		},
	}
	cmd.Flags().DurationVar(&actorTTL, "actor-cache-ttl", 30*time.Second, "how long a user's role is cached (0 disables)")
	cmd.Flags().IntVar(&perMinute, "rate-limit", 120, "requests per minute per user")
	return cmd
}
