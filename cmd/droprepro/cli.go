// File: cmd/droprepro/cli.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/momentics/ipcdrop/control"
	"github.com/momentics/ipcdrop/internal/config"
	"github.com/momentics/ipcdrop/internal/localsock"
	"github.com/momentics/ipcdrop/internal/observability"
	"github.com/momentics/ipcdrop/internal/scenario"
)

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"name":                  "scenario.name",
	"ordering":              "scenario.ordering",
	"yields-before-connect": "scenario.yields_before_connect",
	"yields-after-connect":  "scenario.yields_after_connect",
	"idle":                  "scenario.idle",
	"linger":                "scenario.linger",
	"poll-grace":            "scenario.poll_grace",
	"connect-timeout":       "scenario.connect_timeout",
	"drop-policy":           "scenario.drop_policy",
	"verify-delivery":       "scenario.verify_delivery",
	"log-level":             "log.level",
	"log-format":            "log.format",
}

type app struct {
	v          *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	def := config.Default()

	root := &cobra.Command{
		Use:   "droprepro",
		Short: "Reproduce a write half dropped during runtime shutdown",
		Long: `droprepro binds a local socket endpoint, connects to it, hands the write
half of the accepted connection to a detached sender task and lets the
runtime shut down while the sender idles.

With --drop-policy=panic the release of the write half panics once the
runtime's cleanup dispatcher is gone. The silent and drain policies tear
down cleanly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runScenario,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "YAML configuration file (default $DROPREPRO_CONFIG)")
	pf.String("name", def.Scenario.Name, "endpoint name or address")
	pf.String("log-level", def.Log.Level, "log level: debug, info, warn, error")
	pf.String("log-format", def.Log.Format, "log format: console or json")

	f := root.Flags()
	f.String("ordering", def.Scenario.Ordering, "actor ordering: yield or handshake")
	f.Int("yields-before-connect", def.Scenario.YieldsBeforeConnect, "yields before the client connects (yield ordering)")
	f.Int("yields-after-connect", def.Scenario.YieldsAfterConnect, "yields after the client connected (yield ordering)")
	f.Duration("idle", def.Scenario.Idle, "sender idle time after its write")
	f.Duration("linger", def.Scenario.Linger, "time the main task waits before returning")
	f.Duration("poll-grace", def.Scenario.PollGrace, "how long a yield waits for in-flight socket operations")
	f.Duration("connect-timeout", def.Scenario.ConnectTimeout, "client connect timeout")
	f.String("drop-policy", def.Scenario.DropPolicy, "write half release at shutdown: silent, drain or panic")
	f.Bool("verify-delivery", def.Scenario.VerifyDelivery, "client reads and checks the payload")

	bindFlags(a.v, pf)
	bindFlags(a.v, f)

	root.AddCommand(a.probeCmd())
	return root
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(fl *pflag.Flag) {
		if key, ok := flagKeys[fl.Name]; ok {
			_ = v.BindPFlag(key, fl)
		}
	})
}

func (a *app) load() (*config.Config, *zap.Logger, error) {
	if err := config.Read(a.v, a.configFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Decode(a.v)
	if err != nil {
		return nil, nil, err
	}
	log, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (a *app) runScenario(cmd *cobra.Command, _ []string) error {
	cfg, log, err := a.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts, err := scenario.OptionsFromConfig(cfg.Scenario)
	if err != nil {
		return err
	}
	opts.Logger = log
	opts.Metrics = control.NewMetricsRegistry(cfg.Metrics.Namespace)

	rep, err := scenario.Run(opts)
	if rep != nil {
		printReport(cmd.OutOrStdout(), rep)
	}
	return err
}

func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report whether a live listener holds the endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := a.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ep, err := localsock.ParseAddr(cfg.Scenario.Name)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Scenario.ConnectTimeout)
			defer cancel()
			live, err := localsock.Probe(ctx, ep)
			if err != nil {
				return err
			}
			state := "free"
			if live {
				state = "live"
			}
			log.Debug("probed endpoint", zap.Stringer("endpoint", ep), zap.Bool("live", live))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ep, state)
			return nil
		},
	}
}

func printReport(w io.Writer, rep *scenario.Report) {
	states := make([]string, len(rep.States))
	for i, s := range rep.States {
		states[i] = s.String()
	}
	fmt.Fprintf(w, "endpoint:    %s\n", rep.Endpoint)
	fmt.Fprintf(w, "ordering:    %s\n", rep.Ordering)
	fmt.Fprintf(w, "drop policy: %s\n", rep.DropPolicy)
	fmt.Fprintf(w, "states:      %s\n", strings.Join(states, " -> "))
	fmt.Fprintf(w, "outcome:     %s\n", rep.Outcome)
	if rep.Err != nil {
		fmt.Fprintf(w, "error:       %v\n", rep.Err)
	}
	if len(rep.Delivered) > 0 {
		fmt.Fprintf(w, "delivered:   %q\n", rep.Delivered)
	}
	if rep.PeerPID != 0 {
		fmt.Fprintf(w, "peer pid:    %d\n", rep.PeerPID)
	}
	fmt.Fprintf(w, "elapsed:     %s\n", rep.Elapsed)

	keys := make([]string, 0, len(rep.Metrics))
	for k := range rep.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "metric:      %s %g\n", k, rep.Metrics[k])
	}
}
