package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/logging"
	"github.com/calm-cli/calm/internal/server"
)

func TestServeCmd_Flags(t *testing.T) {
	cmd := newServeCmd()

	yolo := cmd.Flags().Lookup("yolo")
	require.NotNil(t, yolo)
	assert.Equal(t, "false", yolo.DefValue)

	addr := cmd.Flags().Lookup("metrics-addr")
	require.NotNil(t, addr)
	assert.Empty(t, addr.DefValue)

	transport := cmd.Flags().Lookup("transport")
	require.NotNil(t, transport)
	assert.Equal(t, "stdio", transport.DefValue)
}

func TestServeCmd_UnsupportedTransport(t *testing.T) {
	c := newCLI(t)

	res := c.run("", "serve", "--transport", "sse")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unsupported transport: sse")
}

func TestStartMetricsServer_RequiresPrometheus(t *testing.T) {
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cfg := config.Default()
	rt := &runtime{cfg: cfg, logger: logging.Discard(), provider: provider}
	sc := server.NewServerContext(context.Background(), cfg, nil)
	t.Cleanup(func() { _ = sc.Shutdown() })

	_, err = startMetricsServer(rt, sc, "127.0.0.1:0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--metrics-addr requires instrumentation.enabled")
}

func TestNewMCPServer_RegistersToolsByMode(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		want     int
	}{
		{name: "read-only", readOnly: true, want: 4},
		{name: "yolo", readOnly: false, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := server.NewServerContext(context.Background(), config.Default(), nil)
			t.Cleanup(func() { _ = sc.Shutdown() })

			s := newMCPServer()
			require.NoError(t, registerTools(s, sc, tt.readOnly))
			assert.Len(t, s.ListTools(), tt.want)
		})
	}
}
