package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndtools/mcp-client/pkg/client"
	"github.com/ndtools/mcp-client/pkg/config"
	"github.com/ndtools/mcp-client/pkg/dispatcher"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/observability"
)

const serviceName = "ndtools-mcp-client"

// app holds what every subcommand shares once flags are parsed
type app struct {
	configFile string
	envFile    string
	history    string
	flags      flagValues

	cfg     *config.Config
	logger  logging.Logger
	metrics *observability.PrometheusMetricsProvider
	server  *observability.MetricsServer
	tracer  *observability.TracingProvider

	stdout io.Writer
	stderr io.Writer
}

// setup loads configuration, applies explicitly set flags on top and starts
// the optional metrics server and tracer
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile, a.envFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, a.flags, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	a.logger, err = cfg.Log.Logger(a.stderr)
	if err != nil {
		return err
	}
	a.logger = a.logger.WithFields(logging.String("service", serviceName))

	if cfg.Metrics.Addr != "" {
		a.metrics, err = observability.NewMetricsProvider(observability.MetricsConfig{
			ServiceName:    serviceName,
			ServiceVersion: Version,
			IncludeRuntime: true,
		})
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		a.server = observability.NewMetricsServer(cfg.Metrics.Addr, a.metrics)
		if err := a.server.Start(); err != nil {
			return err
		}
		a.logger.Info("Serving metrics", logging.String("addr", a.server.Addr()))
	}

	a.tracer, err = cfg.Tracing.Provider(serviceName, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// teardown flushes spans and stops the metrics server
func (a *app) teardown() {
	if a.logger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("Tracer shutdown failed", logging.ErrorField(err))
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown failed", logging.ErrorField(err))
		}
	}
}

func (a *app) clientOptions() []client.Option {
	opts := []client.Option{
		client.WithName(serviceName),
		client.WithVersion(Version),
		client.WithLogger(a.logger),
	}
	if a.metrics != nil {
		opts = append(opts, client.WithMetrics(a.metrics))
	}
	if a.tracer != nil {
		opts = append(opts, client.WithTracer(a.tracer))
	}
	return opts
}

func (a *app) dispatcher(c *client.Client) *dispatcher.Dispatcher {
	opts := []dispatcher.Option{
		dispatcher.WithOutput(a.stdout),
		dispatcher.WithLogger(a.logger),
	}
	if a.metrics != nil {
		opts = append(opts, dispatcher.WithMetrics(a.metrics))
	}
	return dispatcher.New(c, opts...)
}

// connect opens a session with the configured peer, runs fn with a
// dispatcher bound to it and disconnects afterwards
func (a *app) connect(ctx context.Context, fn func(ctx context.Context, c *client.Client, d *dispatcher.Dispatcher) error) error {
	t, err := a.cfg.Transport.Open(a.logger, a.tracer)
	if err != nil {
		return err
	}
	return client.Run(ctx, t, func(ctx context.Context, c *client.Client) error {
		if info := c.ServerInfo(); info != nil {
			a.logger.Info("Connected",
				logging.String("server", info.ServerInfo.Name),
				logging.String("version", info.ServerInfo.Version),
				logging.String("protocol", info.ProtocolVersion))
		}
		return fn(ctx, c, a.dispatcher(c))
	}, a.clientOptions()...)
}

// lineReader uses a line editor on a terminal and plain lines otherwise
func (a *app) lineReader() (dispatcher.LineReader, error) {
	return dispatcher.NewLineReader(os.Stdin, a.stdout, dispatcher.DefaultPrompt, a.history)
}

// interactive prints the banner and runs the command loop
func (a *app) interactive(ctx context.Context, d *dispatcher.Dispatcher) error {
	r, err := a.lineReader()
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintln(a.stdout, "\n=== Interactive Mode ===")
	fmt.Fprintln(a.stdout, dispatcher.Banner)
	return d.Run(ctx, r)
}
