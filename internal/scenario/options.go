// File: internal/scenario/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scenario

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/control"
	"github.com/momentics/ipcdrop/internal/concurrency"
	"github.com/momentics/ipcdrop/internal/config"
	"github.com/momentics/ipcdrop/internal/localsock"
)

// Payload is written exactly once by the sender.
const Payload = "Hello, world!"

// DefaultName is the endpoint name of a plain run.
const DefaultName = "interprocess-drop-panic"

// Ordering selects how the actors are sequenced.
type Ordering string

const (
	// OrderingYield sequences actors with a fixed number of yields. The
	// result depends on how fast the OS completes accept and write.
	OrderingYield Ordering = config.OrderingYield
	// OrderingHandshake sequences actors with one-shot signals.
	OrderingHandshake Ordering = config.OrderingHandshake
)

// Options configures one run.
type Options struct {
	Endpoint            localsock.Endpoint
	Ordering            Ordering
	YieldsBeforeConnect int
	YieldsAfterConnect  int
	// Idle is how long the sender stays suspended after its write.
	Idle time.Duration
	// Linger keeps the main task alive this long before it returns.
	Linger time.Duration
	// PollGrace bounds how long a yield waits for in-flight accept, write
	// and sleep operations before the yielder resumes.
	PollGrace      time.Duration
	ConnectTimeout time.Duration
	DropPolicy     concurrency.DropPolicy
	VerifyDelivery bool

	Logger  *zap.Logger
	Metrics *control.MetricsRegistry
	Probes  *control.DebugProbes
}

// DefaultOptions mirrors config.Default.
func DefaultOptions() Options {
	return Options{
		Endpoint:            localsock.MustEndpoint(DefaultName),
		Ordering:            OrderingYield,
		YieldsBeforeConnect: 1,
		YieldsAfterConnect:  2,
		Idle:                1000 * time.Second,
		PollGrace:           concurrency.DefaultPollGrace,
		ConnectTimeout:      5 * time.Second,
		DropPolicy:          concurrency.DropSilent,
	}
}

// OptionsFromConfig converts validated configuration.
func OptionsFromConfig(c config.ScenarioConfig) (Options, error) {
	ep, err := localsock.ParseAddr(c.Name)
	if err != nil {
		return Options{}, err
	}
	policy, err := concurrency.ParseDropPolicy(c.DropPolicy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Endpoint:            ep,
		Ordering:            Ordering(c.Ordering),
		YieldsBeforeConnect: c.YieldsBeforeConnect,
		YieldsAfterConnect:  c.YieldsAfterConnect,
		Idle:                c.Idle,
		Linger:              c.Linger,
		PollGrace:           c.PollGrace,
		ConnectTimeout:      c.ConnectTimeout,
		DropPolicy:          policy,
		VerifyDelivery:      c.VerifyDelivery,
	}, nil
}

func (o Options) normalize() (Options, error) {
	d := DefaultOptions()
	if o.Endpoint.IsZero() {
		return o, fmt.Errorf("%w: endpoint is required", api.ErrInvalidArgument)
	}
	switch o.Ordering {
	case "":
		o.Ordering = d.Ordering
	case OrderingYield, OrderingHandshake:
	default:
		return o, fmt.Errorf("%w: ordering %q", api.ErrInvalidArgument, o.Ordering)
	}
	if o.YieldsBeforeConnect < 0 || o.YieldsAfterConnect < 0 {
		return o, fmt.Errorf("%w: yield counts must not be negative", api.ErrInvalidArgument)
	}
	if o.Idle <= 0 {
		o.Idle = d.Idle
	}
	if o.PollGrace <= 0 {
		o.PollGrace = d.PollGrace
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.DropPolicy == "" {
		o.DropPolicy = d.DropPolicy
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = control.NewMetricsRegistry("droprepro")
	}
	if o.Probes == nil {
		o.Probes = control.NewDebugProbes()
		control.RegisterPlatformProbes(o.Probes)
	}
	return o, nil
}
