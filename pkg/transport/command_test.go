package transport

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/protocol"
)

func TestCommandTransport_SpawnFailure(t *testing.T) {
	tr := NewCommandTransport("/nonexistent/ndtools-server", nil)

	err := tr.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, mcperrors.IsConnectionError(err))
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionFailed))

	_, err = tr.SendRequest(context.Background(), protocol.MethodPing, nil)
	assert.True(t, mcperrors.IsConnectionError(err))
	assert.NoError(t, tr.Stop(context.Background()))
}

// cat echoes every line back, so a request comes back as a request; the
// transport answers it with method-not-found, cat echoes that answer, and
// it resolves the original request.
func TestCommandTransport_EchoPeer(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	tr := NewCommandTransport("cat", nil, WithShutdownGrace(time.Second))
	require.NoError(t, tr.Initialize(context.Background()))
	assert.Error(t, tr.Initialize(context.Background()), "second Initialize should fail")

	go func() { _ = tr.Start(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := tr.SendRequest(ctx, "tools/list", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.MethodNotFound, resp.Error.Code)

	require.NoError(t, tr.Stop(context.Background()))
	require.NoError(t, tr.Stop(context.Background()))

	_, err = tr.SendRequest(context.Background(), protocol.MethodPing, nil)
	assert.True(t, mcperrors.IsConnectionError(err))
}
