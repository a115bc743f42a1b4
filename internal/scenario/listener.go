// File: internal/scenario/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scenario

import (
	"context"

	"go.uber.org/zap"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/internal/localsock"
)

// listen binds the endpoint, accepts one connection, hands its write half to
// a detached sender and drops the read half.
func (s *Scenario) listen(tc api.TaskContext) error {
	s.tr.enter(StateListenerBinding)
	l, err := localsock.Listen(s.opts.Endpoint)
	if err != nil {
		s.log.Error("bind failed", zap.Error(err))
		s.fail(err)
		return err
	}
	defer l.Close()
	s.bound.Fire()

	s.tr.enter(StateAccepting)
	var conn *localsock.Conn
	err = tc.Await(func(ctx context.Context) error {
		c, err := l.Accept(ctx)
		conn = c
		return err
	})
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		s.fail(err)
		return err
	}

	if pid, ok := conn.PeerPID(); ok {
		s.mu.Lock()
		s.pid = pid
		s.mu.Unlock()
		s.log.Debug("accepted connection", zap.Int32("peer_pid", pid))
	} else {
		s.log.Debug("accepted connection")
	}

	rh, wh := conn.Split(tc.Disposer())
	tc.Spawn("sender", func(tc api.TaskContext) error {
		return s.send(tc, wh)
	})
	return rh.Close()
}
