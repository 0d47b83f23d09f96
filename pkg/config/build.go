package config

import (
	"fmt"
	"io"

	"github.com/ndtools/mcp-client/pkg/auth"
	"github.com/ndtools/mcp-client/pkg/logging"
	"github.com/ndtools/mcp-client/pkg/observability"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// Logger builds the configured logger on the zerolog backend. The text
// format uses zerolog's console writer.
func (l LogConfig) Logger(w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewZerolog(w, level, l.Format != FormatJSON), nil
}

// Open creates the client transport. Nothing is spawned or dialled until
// the transport is initialized. A non-nil tracer propagates trace context
// to an HTTP peer.
func (t TransportConfig) Open(logger logging.Logger, tracer *observability.TracingProvider) (transport.Transport, error) {
	tc := t.toTransport(logger)
	if tracer != nil {
		tc.Tracer = tracer
	}
	return transport.NewTransport(tc)
}

func (t TransportConfig) toTransport(logger logging.Logger) transport.TransportConfig {
	return transport.TransportConfig{
		Type:           transport.TransportType(t.Type),
		Command:        t.Command,
		Args:           t.Args,
		Endpoint:       t.Endpoint,
		Headers:        auth.BearerHeaders(t.APIKey),
		RequestTimeout: t.Timeout,
		Logger:         logger,
	}
}

// Provider creates the tracing provider for service. It returns nil when
// export is disabled.
func (t TracingConfig) Provider(service, version string) (*observability.TracingProvider, error) {
	exporter, err := observability.ParseExporterType(t.Exporter)
	if err != nil {
		return nil, err
	}
	if exporter == observability.ExporterTypeNone {
		return nil, nil
	}
	return observability.NewTracingProvider(observability.TracingConfig{
		ServiceName:    service,
		ServiceVersion: version,
		ExporterType:   exporter,
		Endpoint:       t.Endpoint,
		Insecure:       true,
		SetGlobal:      true,
	})
}

// Authenticator builds the API key check for the http transport. It
// returns nil when no keys are configured.
func (s ServerConfig) Authenticator() (auth.Authenticator, error) {
	if len(s.APIKeys) == 0 {
		return nil, nil
	}
	keys, err := auth.NewAPIKeys(s.APIKeys...)
	if err != nil {
		return nil, fmt.Errorf("server.api_keys: %w", err)
	}
	return keys, nil
}
