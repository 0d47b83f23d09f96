// Command ndtools-server serves the Nexus Dashboard developer tools over
// stdio or HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndtools/mcp-client/pkg/auth"
	"github.com/ndtools/mcp-client/pkg/config"
	"github.com/ndtools/mcp-client/pkg/content"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/server"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// Set via ldflags
var Version = "dev"

// MCPPath is where the HTTP transport is mounted
const MCPPath = "/mcp"

type options struct {
	configFile     string
	envFile        string
	transport      string
	addr           string
	contentRoot    string
	eventStream    bool
	pageSize       int
	logLevel       string
	logFormat      string
	allowedOrigins []string
	apiKeys        []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var o options

	root := &cobra.Command{
		Use:          "ndtools-server",
		Short:        "MCP server with Nexus Dashboard payloads, responses and prompts",
		Version:      Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return err
			}
			logger, err := cfg.Log.Logger(stderr)
			if err != nil {
				return err
			}
			logger = logger.WithFields(logging.String("service", "ndtools-server"))

			tracer, err := cfg.Tracing.Provider("ndtools-server", Version)
			if err != nil {
				return fmt.Errorf("tracing: %w", err)
			}
			if tracer != nil {
				defer func() {
					if err := tracer.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
						logger.Warn("Tracer shutdown failed", logging.ErrorField(err))
					}
				}()
			}

			provider, err := content.NewFileProvider(cfg.Server.ContentRoot, content.WithLogger(logger))
			if err != nil {
				return err
			}
			defer provider.Close()

			s, err := server.NewNDToolsServer(provider,
				server.WithName(cfg.Server.Name),
				server.WithVersion(Version),
				server.WithLogger(logger),
				server.WithPageSize(cfg.Server.PageSize))
			if err != nil {
				return err
			}

			logger.Info("Starting server",
				logging.String("transport", cfg.Server.Transport),
				logging.String("content_root", provider.Root()))

			if cfg.Server.Transport == "http" {
				var h http.Handler = s.Handler(
					server.WithEventStream(cfg.Server.EventStream),
					server.WithAllowedOrigins(o.allowedOrigins...),
					server.WithTracing(tracer))
				authn, err := cfg.Server.Authenticator()
				if err != nil {
					return err
				}
				if authn != nil {
					h = auth.Middleware(authn, logger)(h)
				} else {
					logger.Warn("Serving HTTP without API keys")
				}
				return serveHTTP(cmd.Context(), cfg.Server.Addr, h, logger)
			}
			return s.Serve(cmd.Context(), transport.NewStdioTransport(stdin, stdout,
				transport.WithStdioLogger(logger)))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configFile, "config", "", "path to a YAML configuration file")
	pf.StringVar(&o.envFile, "env-file", ".env", "path to a .env file")
	pf.StringVar(&o.transport, "transport", "", "transport to serve (stdio, http)")
	pf.StringVar(&o.addr, "addr", "", "listen address for the http transport")
	pf.StringVar(&o.contentRoot, "content-root", "", "directory holding payloads, responses and prompts")
	pf.BoolVar(&o.eventStream, "event-stream", false, "answer HTTP requests as event streams when accepted")
	pf.IntVar(&o.pageSize, "page-size", 0, "entries per list reply, 0 for unpaged")
	pf.StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&o.logFormat, "log-format", "", "log format (text, json)")
	pf.StringSliceVar(&o.allowedOrigins, "allowed-origin", nil, "browser origin allowed besides localhost")
	pf.StringSliceVar(&o.apiKeys, "api-key", nil, "API key required by the http transport, as key or id:key")

	root.AddCommand(&cobra.Command{
		Use:   "settings",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return err
			}
			for _, s := range cfg.Settings() {
				fmt.Fprintf(stdout, "%s: %s\n", s.Key, s.Value)
			}
			return nil
		},
	})
	return root
}

// load reads configuration and applies explicitly set flags
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configFile, o.envFile)
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("transport") {
		cfg.Server.Transport = o.transport
	}
	if set("addr") {
		cfg.Server.Addr = o.addr
	}
	if set("content-root") {
		cfg.Server.ContentRoot = o.contentRoot
	}
	if set("event-stream") {
		cfg.Server.EventStream = o.eventStream
	}
	if set("api-key") {
		cfg.Server.APIKeys = o.apiKeys
	}
	if set("page-size") {
		cfg.Server.PageSize = o.pageSize
	}
	if set("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// serveHTTP mounts h on MCPPath and serves until ctx is cancelled
func serveHTTP(ctx context.Context, addr string, h http.Handler, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(MCPPath, h)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("Listening", logging.String("url", "http://"+ln.Addr().String()+MCPPath))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
