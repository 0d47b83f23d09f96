package main

import (
	"context"
	"fmt"
		"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndtools/mcp-client/pkg/client"
	"github.com/ndtools/mcp-client/pkg/config"
	"github.com/ndtools/mcp-client/pkg/dispatcher"
)

// flagValues holds flags that override configuration when set
type flagValues struct {
	transport       string
	command         string
	args            []string
	endpoint        string
	apiKey          string
	timeout         time.Duration
	logLevel        string
	logFormat       string
	metricsAddr     string
	tracingExporter string
	tracingEndpoint string

	// positional is set when the server command follows --
	positional bool
}

func newRootCommand(a *app) *cobra.Command {
	var interactiveOnly bool
	flags := &a.flags

	root := &cobra.Command{
		Use:   "mcp-client [flags] [-- server-command [server-args...]]",
		Short: "MCP client example for the ND developer tools server",
		Long: `mcp-client starts an MCP server as a subprocess (or reaches one over HTTP),
lists what it offers, runs the scripted demos and then reads tool calls of
the form "tool_name arg1=value1 arg2=value2" until quit.`,
		Version:      fmt.Sprintf("%s (%s)", Version, GitCommit),
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && !cmd.HasParent() {
				if err := cmd.Flags().Set("command", args[0]); err != nil {
					return err
				}
				flags.args = args[1:]
				flags.positional = true
			}
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd.Context(), func(ctx context.Context, c *client.Client, d *dispatcher.Dispatcher) error {
				fmt.Fprintln(a.stdout, "Connected to MCP server successfully!")
				if !interactiveOnly {
					if err := d.RunDemo(ctx, dispatcher.DemoAll); err != nil {
						return err
					}
				}
				return a.interactive(ctx, d)
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "path to a YAML configuration file")
	pf.StringVar(&a.envFile, "env-file", ".env", "path to a .env file")
	pf.StringVar(&flags.transport, "transport", "", "transport to the server (command, http)")
	pf.StringVar(&flags.command, "command", "", "server command")
	pf.StringSliceVar(&flags.args, "args", nil, "server arguments")
	pf.StringVar(&flags.endpoint, "endpoint", "", "server URL for the http transport")
	pf.StringVar(&flags.apiKey, "api-key", "", "API key sent as a bearer token over http")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-request timeout")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format (text, json)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.StringVar(&flags.tracingExporter, "tracing-exporter", "", "trace exporter (none, otlp-grpc, otlp-http)")
	pf.StringVar(&flags.tracingEndpoint, "tracing-endpoint", "", "OTLP collector endpoint")
	pf.StringVar(&a.history, "history-file", "", "keep interactive history in this file")
	root.Flags().BoolVar(&interactiveOnly, "interactive", false, "start in interactive mode only")

	root.AddCommand(
		newDemoCommand(a),
		newCallCommand(a),
		newReadCommand(a),
		newPromptCommand(a),
		newInteractiveCommand(a),
	)
	return root
}

// applyFlags copies explicitly set flags into cfg
func applyFlags(cmd *cobra.Command, flags flagValues, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("transport") {
		cfg.Transport.Type = flags.transport
	}
	if set("command") {
		cfg.Transport.Command = flags.command
		if !set("transport") {
			cfg.Transport.Type = "command"
		}
	}
	if set("args") || flags.positional {
		cfg.Transport.Args = flags.args
	}
	if set("endpoint") {
		cfg.Transport.Endpoint = flags.endpoint
		if !set("transport") {
			cfg.Transport.Type = "http"
		}
	}
	if set("api-key") {
		cfg.Transport.APIKey = flags.apiKey
	}
	if set("timeout") {
		cfg.Transport.Timeout = flags.timeout
	}
	if set("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	if set("metrics-addr") {
		cfg.Metrics.Addr = flags.metricsAddr
	}
	if set("tracing-exporter") {
		cfg.Tracing.Exporter = flags.tracingExporter
	}
	if set("tracing-endpoint") {
		cfg.Tracing.Endpoint = flags.tracingEndpoint
	}
}

func newDemoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "demo [" + strings.Join(dispatcher.DemoNames(), "|") + "]",
		Short:     "Run a scripted demo against the server",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: dispatcher.DemoNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := dispatcher.DemoAll
			if len(args) == 1 {
				name = args[0]
			}
			return a.connect(cmd.Context(), func(ctx context.Context, c *client.Client, d *dispatcher.Dispatcher) error {
				return d.RunDemo(ctx, name)
			})
		},
	}
}

func newCallCommand(a *app) *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "call tool_name [key=value...]",
		Short: "Call one tool and print its result",
		Example: `  mcp-client call echo message="hello world"
  mcp-client call validate_vrf_attachments --json '{"response": {"DATA": []}}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := dispatcher.ArgsFromTokens(args[1:])
			if cmd.Flags().Changed("json") {
				fromJSON, err := dispatcher.ArgsFromJSON(argsJSON)
				if err != nil {
					return err
				}
				for k, v := range fromJSON {
					toolArgs[k] = v
				}
			}
			return a.connect(cmd.Context(), func(ctx context.Context, c *client.Client, d *dispatcher.Dispatcher) error {
				return d.Call(ctx, args[0], toolArgs)
			})
		},
	}
	cmd.Flags().StringVar(&argsJSON, "json", "", "tool arguments as a JSON object")
	return cmd
}

func newReadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read uri",
		Short: "Read a resource and print its text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd.Context(), func(ctx context.Context, c *client.Client, d *dispatcher.Dispatcher) error {
				result, err := c.ReadResource(ctx, args[0])
				if err != nil {
					return err
				}
				return dispatcher.RenderContent(a.stdout, result.Items())
			})
		},
	}
}

func newPromptCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt name [key=value...]",
		Short: "Render a prompt and print its messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd.Context(), func(ctx context.Context, c *client.Client, d *dispatcher.Dispatcher) error {
				result, err := c.GetPrompt(ctx, args[0], dispatcher.ArgsFromTokens(args[1:]))
				if err != nil {
					return err
				}
				return dispatcher.RenderPrompt(a.stdout, result)
			})
		},
	}
}

func newInteractiveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Read tool calls from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd.Context(), func(ctx context.Context, c *client.Client, d *dispatcher.Dispatcher) error {
				return a.interactive(ctx, d)
			})
		},
	}
}
