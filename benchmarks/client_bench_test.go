package benchmarks

import (
	"context"
	"io"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/ndtools/mcp-client/pkg/client"
	"github.com/ndtools/mcp-client/pkg/content"
	"github.com/ndtools/mcp-client/pkg/server"
	"github.com/ndtools/mcp-client/pkg/transport"
)

// withClient serves the ND tools over in-memory pipes and runs fn with a
// connected client
func withClient(b *testing.B, fn func(ctx context.Context, c *client.Client)) {
	b.Helper()
	provider, err := content.NewFileProvider("../resources")
	if err != nil {
		b.Fatal(err)
	}
	defer provider.Close()
	s, err := server.NewNDToolsServer(provider)
	if err != nil {
		b.Fatal(err)
	}

	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background(), transport.NewStdioTransport(c2sR, s2cW, transport.WithCloseOnStop(s2cW)))
	}()

	ct := transport.NewStdioTransport(s2cR, c2sW, transport.WithCloseOnStop(c2sW))
	err = client.Run(context.Background(), ct, func(ctx context.Context, c *client.Client) error {
		fn(ctx, c)
		return nil
	})
	if err != nil {
		b.Fatal(err)
	}
	if err := <-done; err != nil {
		b.Fatal(err)
	}
}

// BenchmarkClientOperations measures round trips over the stdio framing
func BenchmarkClientOperations(b *testing.B) {
	b.Run("Echo", func(b *testing.B) {
		withClient(b, func(ctx context.Context, c *client.Client) {
			args := map[string]interface{}{"message": "hello"}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.CallTool(ctx, server.ToolEcho, args); err != nil {
					b.Fatal(err)
				}
			}
		})
	})

	b.Run("ListTools", func(b *testing.B) {
		withClient(b, func(ctx context.Context, c *client.Client) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.ListTools(ctx); err != nil {
					b.Fatal(err)
				}
			}
		})
	})

	b.Run("ValidateAttachments", func(b *testing.B) {
		withClient(b, func(ctx context.Context, c *client.Client) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := c.CallTool(ctx, server.ToolValidateAttachments, nil)
				if err != nil {
					b.Fatal(err)
				}
				if result.IsError {
					b.Fatal("bundled sample failed validation")
				}
			}
		})
	})

	b.Run("ReadResource", func(b *testing.B) {
		withClient(b, func(ctx context.Context, c *client.Client) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.ReadResource(ctx, server.ResourceVrfPayload); err != nil {
					b.Fatal(err)
				}
			}
		})
	})

	for _, workers := range []int{10, 100} {
		b.Run("ConcurrentEcho/"+itoa(workers), func(b *testing.B) {
			benchmarkConcurrentEcho(b, workers)
		})
	}
}

func benchmarkConcurrentEcho(b *testing.B, workers int) {
	withClient(b, func(ctx context.Context, c *client.Client) {
		args := map[string]interface{}{"message": "hello"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			g, gctx := errgroup.WithContext(ctx)
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					_, err := c.CallTool(gctx, server.ToolEcho, args)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				b.Fatal(err)
			}
		}
	})
}
