package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rednet-io/rednet-go/internal/api"
	"github.com/rednet-io/rednet-go/internal/archive"
	"github.com/rednet-io/rednet-go/internal/channel"
	"github.com/rednet-io/rednet-go/internal/metrics"
)

func listenCmd(flags *globalFlags) *cobra.Command {
	var (
		archiveFrames bool
		metricsAddr   string
		quiet         bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stream frames from the listener channel",
		Long: `Open the listener channel and print every "listener" frame until
interrupted. --archive stores frames in the configured Postgres database;
--metrics-addr serves Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := slog.Default()

			reg := metrics.NewRegistry()
			a, cfg, err := newAPI(flags, api.WithChannelMetrics(channel.NewMetrics(reg)))
			if err != nil {
				return err
			}
			defer a.Close()

			if metricsAddr == "" {
				metricsAddr = cfg.Metrics.Addr
			}

			var handlers []channel.Handler
			if !quiet {
				var mu sync.Mutex
				handlers = append(handlers, func(env channel.Envelope) error {
					mu.Lock()
					defer mu.Unlock()
					printEnvelope(env)
					return nil
				})
			}

			var writer *archive.Writer
			if archiveFrames {
				if !cfg.Archive.Enabled() {
					return fmt.Errorf("--archive needs archive.database in the config file")
				}
				pool, err := archive.Connect(ctx, cfg.Archive.Database)
				if err != nil {
					return fmt.Errorf("connect archive: %w", err)
				}
				defer pool.Close()

				if err := archive.EnsureSchema(ctx, pool); err != nil {
					return err
				}

				writer = archive.NewWriter(archive.WriterConfig{
					BatchSize:     cfg.Archive.Writer.BatchSize,
					FlushInterval: cfg.Archive.Writer.FlushInterval.D(),
					BufferSize:    cfg.Archive.Writer.BufferSize,
				}, pool, logger)
				if err := writer.Start(ctx); err != nil {
					return err
				}
				handlers = append(handlers, writer.Handler(api.ListenerPath))
			}

			conn, err := a.Listener.ConnectWS()
			if err != nil {
				return err
			}
			if err := a.Listener.OnMessage(fanOut(handlers)); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			if metricsAddr != "" {
				srv := metrics.NewServer(metricsAddr, cfg.Metrics.Path, reg, logger)
				g.Go(func() error { return srv.Run(gctx) })
			}
			g.Go(func() error {
				<-gctx.Done()
				a.Listener.DisconnectWS()

				waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := conn.Wait(waitCtx); err != nil {
					logger.Warn("listener channel did not stop in time", "error", err)
				}
				if writer != nil {
					writer.Stop(waitCtx)
					stats := writer.Stats()
					logger.Info("archive summary",
						"received", stats.Received,
						"inserted", stats.Inserts,
						"duplicates", stats.Conflicts,
						"errors", stats.Errors,
					)
				}
				return nil
			})

			logger.Info("listening", "url", conn.URL())
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&archiveFrames, "archive", false, "store received frames in Postgres")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print frames")

	return cmd
}

// fanOut calls every handler in order and returns the first error.
func fanOut(handlers []channel.Handler) channel.Handler {
	return func(env channel.Envelope) error {
		var first error
		for _, h := range handlers {
			if err := h(env); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}
