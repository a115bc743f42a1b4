// File: internal/scenario/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/internal/localsock"
)

// ErrDeliveryMismatch reports that the client did not receive exactly the
// payload.
var ErrDeliveryMismatch = fmt.Errorf("delivered bytes differ from payload")

// trailingWait bounds the check that nothing follows the payload.
const trailingWait = 50 * time.Millisecond

// connect dials the endpoint inline, without giving up the baton. A failed
// listener takes precedence over the dial result.
func (s *Scenario) connect(tc api.TaskContext, listener api.JoinHandle) (*localsock.Conn, error) {
	ctx, cancel := context.WithTimeout(tc.Context(), s.opts.ConnectTimeout)
	defer cancel()

	c, err := localsock.Dial(ctx, s.opts.Endpoint.Addr())
	if lerr := failed(listener); lerr != nil {
		if c != nil {
			_ = c.Close()
		}
		return nil, lerr
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func failed(h api.JoinHandle) error {
	select {
	case <-h.Done():
		return h.Err()
	default:
		return nil
	}
}

// verify reads exactly the payload and checks nothing else follows.
func (s *Scenario) verify(tc api.TaskContext, c *localsock.Conn) error {
	return tc.Await(func(ctx context.Context) error {
		stop := context.AfterFunc(ctx, func() {
			_ = c.SetDeadline(time.Now())
		})
		defer stop()

		buf := make([]byte, len(Payload)+1)
		_ = c.SetDeadline(time.Now().Add(s.opts.ConnectTimeout))
		n, err := io.ReadFull(c, buf[:len(Payload)])
		s.mu.Lock()
		s.got = append(s.got, buf[:n]...)
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("%w: read %d of %d bytes: %v", ErrDeliveryMismatch, n, len(Payload), err)
		}
		if string(buf[:n]) != Payload {
			return fmt.Errorf("%w: got %q", ErrDeliveryMismatch, buf[:n])
		}

		_ = c.SetDeadline(time.Now().Add(trailingWait))
		n, err = c.Read(buf[len(Payload):])
		if n > 0 {
			return fmt.Errorf("%w: %d trailing bytes", ErrDeliveryMismatch, n)
		}
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
			return nil
		}
		return fmt.Errorf("read after payload: %w", err)
	})
}
