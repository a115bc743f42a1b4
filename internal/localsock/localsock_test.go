// File: internal/localsock/localsock_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/internal/localsock"
)

var seq atomic.Int64

func testEndpoint(t *testing.T) localsock.Endpoint {
	t.Helper()
	ep, err := localsock.NewEndpoint(fmt.Sprintf("ipcdrop-%d-%d", os.Getpid(), seq.Add(1)))
	require.NoError(t, err)
	return ep
}

func listen(t *testing.T, ep localsock.Endpoint) *localsock.Listener {
	t.Helper()
	l, err := localsock.Listen(ep)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// pair returns the accepted server side and the dialed client side.
func pair(t *testing.T) (*localsock.Conn, *localsock.Conn) {
	t.Helper()
	ep := testEndpoint(t)
	l := listen(t, ep)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := localsock.Dial(ctx, ep.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	server, err := l.Accept(ctx)
	require.NoError(t, err)
	return server, client
}

type recordingDisposer struct {
	mu    sync.Mutex
	whats []string
	alive bool
}

func (d *recordingDisposer) Dispose(what string, release func() error) {
	d.mu.Lock()
	d.whats = append(d.whats, what)
	d.mu.Unlock()
	_ = release()
}

func (d *recordingDisposer) Alive() bool { return d.alive }

func (d *recordingDisposer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.whats)
}

func TestListen_BindConflict(t *testing.T) {
	ep := testEndpoint(t)
	first, err := localsock.Listen(ep)
	require.NoError(t, err)

	_, err = localsock.Listen(ep)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrAddrInUse)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrCodeAddrInUse, apiErr.Code)

	require.NoError(t, first.Close())
	second, err := localsock.Listen(ep)
	require.NoError(t, err, "endpoint must be reusable once its listener is closed")
	require.NoError(t, second.Close())
}

func TestListener_CloseIsIdempotent(t *testing.T) {
	l, err := localsock.Listen(testEndpoint(t))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestDial_NoListenerIsRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := localsock.Dial(ctx, testEndpoint(t).Addr())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConnectRefused)
}

func TestAccept_ContextCancel(t *testing.T) {
	l := listen(t, testEndpoint(t))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := l.Accept(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The interrupt must leave Close idempotent and error free.
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestSplit_SingleWriterDelivery(t *testing.T) {
	server, client := pair(t)
	rh, wh := server.Split(nil)

	payload := []byte("Hello, world!")
	require.NoError(t, wh.WriteAll(context.Background(), payload))
	require.NoError(t, wh.Close())
	require.NoError(t, rh.Close())

	got := make([]byte, len(payload))
	_, err := io.ReadFull(client, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	n, err := client.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSplit_TeardownIsIdempotent(t *testing.T) {
	server, client := pair(t)
	d := &recordingDisposer{alive: true}
	rh, wh := server.Split(d)
	require.NoError(t, client.Close())

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, rh.Close())
		assert.NoError(t, wh.Close())
		assert.NoError(t, wh.Close())
		assert.NoError(t, rh.Close())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("closing split halves blocked")
	}
	assert.Equal(t, 1, d.calls(), "write half must be handed to the disposer exactly once")

	_, err := wh.Write([]byte("x"))
	assert.ErrorIs(t, err, api.ErrHalfClosed)
	_, err = rh.Read(make([]byte, 1))
	assert.ErrorIs(t, err, api.ErrHalfClosed)
}

func TestSplit_ConnCloseAfterSplit(t *testing.T) {
	server, _ := pair(t)
	rh, wh := server.Split(nil)
	assert.ErrorIs(t, server.Close(), api.ErrHalfClosed)
	assert.Panics(t, func() { server.Split(nil) })
	require.NoError(t, rh.Close())
	require.NoError(t, wh.Close())
}

func TestWriteHalf_WriteAfterPeerGone(t *testing.T) {
	server, client := pair(t)
	rh, wh := server.Split(nil)
	defer wh.Close()
	require.NoError(t, rh.Close())
	require.NoError(t, client.Close())

	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = wh.WriteAll(context.Background(), []byte("Hello, world!"))
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrWriteFailed)
}

func TestWriteHalf_WriteAllCancelled(t *testing.T) {
	server, _ := pair(t)
	_, wh := server.Split(nil)
	defer wh.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := wh.WriteAll(ctx, []byte("x"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProbe(t *testing.T) {
	ep := testEndpoint(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	live, err := localsock.Probe(ctx, ep)
	require.NoError(t, err)
	assert.False(t, live)

	listen(t, ep)
	live, err = localsock.Probe(ctx, ep)
	require.NoError(t, err)
	assert.True(t, live)
}
