// File: internal/scenario/scenario_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scenario_test

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/internal/concurrency"
	"github.com/momentics/ipcdrop/internal/config"
	"github.com/momentics/ipcdrop/internal/localsock"
	"github.com/momentics/ipcdrop/internal/scenario"
)

var seq atomic.Int64

func options(t *testing.T, ordering scenario.Ordering, policy concurrency.DropPolicy) scenario.Options {
	t.Helper()
	opts := scenario.DefaultOptions()
	opts.Endpoint = localsock.MustEndpoint(fmt.Sprintf("ipcdrop-scn-%d-%d", os.Getpid(), seq.Add(1)))
	opts.Ordering = ordering
	opts.DropPolicy = policy
	opts.ConnectTimeout = 2 * time.Second
	opts.PollGrace = 500 * time.Millisecond
	return opts
}

// run fails the test if the scenario does not finish in time.
func run(t *testing.T, opts scenario.Options) (*scenario.Report, error) {
	t.Helper()
	type result struct {
		rep *scenario.Report
		err error
	}
	ch := make(chan result, 1)
	go func() {
		rep, err := scenario.Run(opts)
		ch <- result{rep, err}
	}()
	select {
	case r := <-ch:
		return r.rep, r.err
	case <-time.After(15 * time.Second):
		t.Fatal("scenario did not finish")
		return nil, nil
	}
}

func TestScenarioA_Handshake(t *testing.T) {
	opts := options(t, scenario.OrderingHandshake, concurrency.DropSilent)
	opts.VerifyDelivery = true

	rep, err := run(t, opts)
	require.NoError(t, err)
	assert.Equal(t, scenario.StateCleanTeardown, rep.Outcome)
	assert.Equal(t, []scenario.State{
		scenario.StateInit,
		scenario.StateListenerBinding,
		scenario.StateAccepting,
		scenario.StateConnected,
		scenario.StateWriteIssued,
		scenario.StateIdling,
		scenario.StateRuntimeShutdown,
		scenario.StateCleanTeardown,
	}, rep.States)
	assert.Equal(t, scenario.Payload, string(rep.Delivered))
	assert.Equal(t, 1.0, rep.Metrics["droprepro_limbo_released_inline_total"])
	assert.Equal(t, true, rep.Probes["runtime.closed"])
	assert.Equal(t, 0, rep.Probes["runtime.live_tasks"])
	if runtime.GOOS == "linux" {
		assert.Equal(t, int32(os.Getpid()), rep.PeerPID)
	}
}

func TestScenarioA_DrainPolicy(t *testing.T) {
	rep, err := run(t, options(t, scenario.OrderingHandshake, concurrency.DropDrain))
	require.NoError(t, err)
	assert.Equal(t, scenario.StateCleanTeardown, rep.Outcome)
	assert.True(t, rep.Reached(scenario.StateIdling))
	assert.Equal(t, 1.0, rep.Metrics["droprepro_limbo_jobs_dispatched_total"])
	assert.Equal(t, 1.0, rep.Metrics["droprepro_limbo_released_total"])
	assert.Zero(t, rep.Metrics["droprepro_limbo_released_inline_total"])
}

func TestScenarioA_YieldOrdering(t *testing.T) {
	rep, err := run(t, options(t, scenario.OrderingYield, concurrency.DropSilent))
	require.NoError(t, err)
	assert.Equal(t, scenario.StateCleanTeardown, rep.Outcome)
	assert.Equal(t, []scenario.State{
		scenario.StateInit,
		scenario.StateListenerBinding,
		scenario.StateAccepting,
		scenario.StateConnected,
		scenario.StateWriteIssued,
		scenario.StateIdling,
		scenario.StateRuntimeShutdown,
		scenario.StateCleanTeardown,
	}, rep.States)
	assert.Equal(t, 1.0, rep.Metrics["droprepro_limbo_released_inline_total"])
	assert.Equal(t, 1.0, rep.Metrics["droprepro_runtime_tasks_dropped_total"])
}

func TestScenarioA_YieldOrderingVerified(t *testing.T) {
	opts := options(t, scenario.OrderingYield, concurrency.DropSilent)
	opts.VerifyDelivery = true

	rep, err := run(t, opts)
	require.NoError(t, err)
	assert.Equal(t, scenario.Payload, string(rep.Delivered))
	assert.Equal(t, scenario.StateCleanTeardown, rep.Outcome)
}

func TestScenarioB_DropPanicReproduced(t *testing.T) {
	s, err := scenario.New(options(t, scenario.OrderingHandshake, concurrency.DropPanic))
	require.NoError(t, err)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_ = s.Run()
	}()
	require.NotNil(t, recovered, "dropping the sender after shutdown began must panic")

	dp, ok := recovered.(*api.DropPanic)
	require.True(t, ok, "got %T", recovered)
	assert.Equal(t, "sender", dp.Task)
	var apiErr *api.Error
	require.True(t, errors.As(dp, &apiErr))
	assert.Equal(t, api.ErrCodeRuntimeGone, apiErr.Code)

	rep := s.Report()
	require.NotNil(t, rep)
	assert.Equal(t, scenario.StatePanic, rep.Outcome)
	assert.True(t, rep.Reached(scenario.StateIdling))
	assert.True(t, rep.Reached(scenario.StateRuntimeShutdown))
	assert.Equal(t, scenario.StatePanic, rep.States[len(rep.States)-1])
	assert.Equal(t, 1.0, rep.Metrics["droprepro_runtime_drop_panics_total"])
}

func TestScenarioB_YieldOrderingPanics(t *testing.T) {
	s, err := scenario.New(options(t, scenario.OrderingYield, concurrency.DropPanic))
	require.NoError(t, err)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_ = s.Run()
	}()
	dp, ok := recovered.(*api.DropPanic)
	require.True(t, ok, "got %T", recovered)
	assert.Equal(t, "sender", dp.Task)

	rep := s.Report()
	require.NotNil(t, rep)
	assert.Equal(t, []scenario.State{
		scenario.StateInit,
		scenario.StateListenerBinding,
		scenario.StateAccepting,
		scenario.StateConnected,
		scenario.StateWriteIssued,
		scenario.StateIdling,
		scenario.StateRuntimeShutdown,
		scenario.StatePanic,
	}, rep.States)
}

func TestScenario_RunsOnce(t *testing.T) {
	s, err := scenario.New(options(t, scenario.OrderingHandshake, concurrency.DropSilent))
	require.NoError(t, err)
	require.NoError(t, s.Run())
	first := s.Report()
	require.NotNil(t, first)

	assert.ErrorIs(t, s.Run(), api.ErrRuntimeClosed)
	assert.Same(t, first, s.Report())
	assert.Equal(t, scenario.StateCleanTeardown, s.Report().Outcome)
}

func TestScenarioC_NoYieldBeforeConnect(t *testing.T) {
	opts := options(t, scenario.OrderingYield, concurrency.DropSilent)
	opts.YieldsBeforeConnect = 0

	rep, err := run(t, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConnectRefused)
	assert.Equal(t, scenario.StateCleanTeardown, rep.Outcome)
	assert.False(t, rep.Reached(scenario.StateConnected))
	assert.False(t, rep.Reached(scenario.StateListenerBinding), "listener must be dropped before it ran")
}

func TestScenarioC_NoYieldAfterConnect(t *testing.T) {
	opts := options(t, scenario.OrderingYield, concurrency.DropSilent)
	opts.YieldsAfterConnect = 0

	rep, err := run(t, opts)
	require.NoError(t, err)
	assert.Equal(t, scenario.StateCleanTeardown, rep.Outcome)
	assert.True(t, rep.Reached(scenario.StateConnected))
}

func TestScenario_BindConflict(t *testing.T) {
	for _, ordering := range []scenario.Ordering{scenario.OrderingHandshake, scenario.OrderingYield} {
		t.Run(string(ordering), func(t *testing.T) {
			opts := options(t, ordering, concurrency.DropSilent)
			held, err := localsock.Listen(opts.Endpoint)
			require.NoError(t, err)
			defer held.Close()

			rep, err := run(t, opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, api.ErrAddrInUse)
			assert.Equal(t, scenario.StateCleanTeardown, rep.Outcome)
			assert.False(t, rep.Reached(scenario.StateAccepting))
		})
	}
}

func TestScenario_IdleElapsesBeforeShutdown(t *testing.T) {
	opts := options(t, scenario.OrderingHandshake, concurrency.DropPanic)
	opts.Idle = 10 * time.Millisecond
	opts.Linger = time.Second

	rep, err := run(t, opts)
	require.NoError(t, err, "a write half released while the runtime is alive never panics")
	assert.Equal(t, scenario.StateCleanTeardown, rep.Outcome)
	assert.Equal(t, 1.0, rep.Metrics["droprepro_limbo_jobs_dispatched_total"])
	assert.Equal(t, 1.0, rep.Metrics["droprepro_limbo_released_total"])
	assert.Zero(t, rep.Metrics["droprepro_runtime_tasks_dropped_total"])
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := scenario.New(scenario.Options{})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	opts := scenario.DefaultOptions()
	opts.Ordering = "random"
	_, err = scenario.New(opts)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	opts = scenario.DefaultOptions()
	opts.YieldsAfterConnect = -1
	_, err = scenario.New(opts)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Scenario
	cfg.DropPolicy = "drain"
	cfg.VerifyDelivery = true

	opts, err := scenario.OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, scenario.DefaultName, opts.Endpoint.Name())
	assert.Equal(t, scenario.OrderingYield, opts.Ordering)
	assert.Equal(t, concurrency.DropDrain, opts.DropPolicy)
	assert.True(t, opts.VerifyDelivery)

	cfg.DropPolicy = "explode"
	_, err = scenario.OptionsFromConfig(cfg)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "write_issued", scenario.StateWriteIssued.String())
	assert.Equal(t, "unknown", scenario.State(99).String())
	assert.True(t, scenario.StatePanic.Terminal())
	assert.False(t, scenario.StateIdling.Terminal())
}
