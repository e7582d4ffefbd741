package app

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freePort grabs an ephemeral port and releases it for the server to bind.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestHealthcheckServer_StartsAndShutsDownGracefully(t *testing.T) {
	a := &App{logger: newLogger("debug", "text", &SafeBuffer{})}
	port := freePort(t)

	a.startHealthcheckServer(port)
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)

	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond, "health endpoint never came up")

	require.NoError(t, a.closeHealthcheckServer())

	_, err := http.Get(url)
	assert.Error(t, err, "server still answering after graceful shutdown")
}

func TestCloseHealthcheckServer_NoopWhenNeverStarted(t *testing.T) {
	a := &App{logger: newLogger("debug", "text", &SafeBuffer{})}
	require.NoError(t, a.closeHealthcheckServer())
}
