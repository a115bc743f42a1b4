// File: internal/scenario/sender.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scenario

import (
	"context"

	"go.uber.org/zap"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/internal/localsock"
)

// send owns wh: one write, then a long idle. The deferred Close is the
// destructor that runs when the runtime drops this task.
func (s *Scenario) send(tc api.TaskContext, wh *localsock.WriteHalf) error {
	defer wh.Close()

	err := tc.Await(func(ctx context.Context) error {
		return wh.WriteAll(ctx, []byte(Payload))
	})
	if err != nil {
		s.log.Warn("payload write failed", zap.Error(err))
		s.written.Fail(err)
		return err
	}
	s.tr.enter(StateWriteIssued)
	s.written.Fire()

	s.tr.enter(StateIdling)
	if err := tc.Sleep(s.opts.Idle); err != nil {
		return err
	}
	s.log.Debug("sender idle elapsed")
	return nil
}
