package zapharness

import (
	"testing"

	"github.com/mash-protocol/mash-zap/pkg/socket"
)

// MustServerSide is NewServerSide that fails the test on error.
func MustServerSide(tb testing.TB, sctx *socket.Context, cfg ServerConfig) *ServerSide {
	tb.Helper()
	ss, err := NewServerSide(sctx, cfg)
	if err != nil {
		tb.Fatalf("server side: %v", err)
	}
	return ss
}

// MustConnectClient is ConnectClient that fails the test on error.
func MustConnectClient(tb testing.TB, sctx *socket.Context, endpoint string, cfg ClientConfig) *Client {
	tb.Helper()
	c, err := ConnectClient(sctx, endpoint, cfg)
	if err != nil {
		tb.Fatalf("client: %v", err)
	}
	return c
}
