//go:build linux

package localsock_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_PeerPID(t *testing.T) {
	server, client := pair(t)
	defer server.Close()

	pid, ok := server.PeerPID()
	require.True(t, ok)
	assert.Equal(t, int32(os.Getpid()), pid)

	pid, ok = client.PeerPID()
	require.True(t, ok)
	assert.Equal(t, int32(os.Getpid()), pid)
}
