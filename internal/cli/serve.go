package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/invoice-ocr/internal/observability"
	"github.com/ironsheep/invoice-ocr/internal/pipeline"
	"github.com/ironsheep/invoice-ocr/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

POST /ocr accepts {"image": "<base64>"} and returns the merged text and
confidence. The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, address)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "listen address (overrides server.address)")

	return cmd
}

func runServe(ctx context.Context, root *rootOptions, address string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if address != "" {
		cfg.Server.Address = address
	}

	log.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting invoice-ocr")

	cfg.Tracing.ServiceVersion = Version
	tracer, err := observability.NewTracer(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	p := pipeline.New(newRecognizer(cfg, metrics), cfg.PipelineConfig(), pipelineOptions(tracer, metrics)...)
	srv := server.New(cfg, p, metrics)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		_ = tracer.Shutdown(context.Background())
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to shutdown OpenTelemetry tracer")
	}

	log.Info().Msg("Server exited")
	return nil
}

// pipelineOptions hands the pipeline the configured tracer and, when metrics
// are enabled, the metrics observer.
func pipelineOptions(tracer *observability.Tracer, metrics *observability.Metrics) []pipeline.Option {
	var opts []pipeline.Option
	if tracer != nil && tracer.IsEnabled() {
		opts = append(opts, pipeline.WithTracer(tracer.Tracer()))
	}
	if metrics != nil {
		opts = append(opts, pipeline.WithObserver(metrics))
	}
	return opts
}
