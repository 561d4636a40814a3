// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/sqlsched/pkg/sched"
	"github.com/cockroachdb/sqlsched/pkg/util/log"
	"github.com/cockroachdb/sqlsched/pkg/workload/schedload"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// options are the flags shared by all subcommands. Flags override the
// config file.
type options struct {
	configPath     string
	schedulers     int
	loopInterval   time.Duration
	sessionTimeout time.Duration
	logFormat      string
	verbosity      int32
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "path to a YAML scheduler config file")
	fs.IntVar(&o.schedulers, "schedulers", 0, "number of schedulers (default GOMAXPROCS)")
	fs.DurationVar(&o.loopInterval, "loop-interval", 0, "scheduler idle wait bound")
	fs.DurationVar(&o.sessionTimeout, "session-timeout", 0, "session idle timeout, 0 disables")
	fs.StringVar(&o.logFormat, "log-format", "", "log format, text or json")
	fs.Int32Var(&o.verbosity, "v", 0, "log verbosity")
}

// load merges the config file with the flags that were set.
func (o *options) load(fs *pflag.FlagSet) (sched.FileConfig, error) {
	var fc sched.FileConfig
	if o.configPath != "" {
		var err error
		if fc, err = sched.LoadConfigFile(o.configPath); err != nil {
			return sched.FileConfig{}, err
		}
	}
	if fs.Changed("schedulers") {
		fc.Schedulers = o.schedulers
	}
	if fs.Changed("loop-interval") {
		fc.LoopInterval = o.loopInterval.String()
	}
	if fs.Changed("session-timeout") {
		fc.SessionTimeout = o.sessionTimeout.String()
	}
	if fs.Changed("log-format") {
		fc.LogFormat = o.logFormat
	}
	if fs.Changed("v") {
		fc.Verbosity = o.verbosity
	}
	switch fc.LogFormat {
	case "", "text", "json":
	default:
		return sched.FileConfig{}, errors.Newf("unknown log format %q", fc.LogFormat)
	}
	return fc, nil
}

func setupLogging(fc sched.FileConfig, w io.Writer) {
	log.SetHandler(log.NewHandler(w, fc.LogFormat))
	log.SetVerbosity(fc.Verbosity)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sqlsched",
		Short:        "exercise the SQL scheduler",
		SilenceUsage: true,
	}
	root.AddCommand(newBenchCmd(), newConfigCmd())
	return root
}

func newConfigCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective scheduler configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := o.load(cmd.Flags())
			if err != nil {
				return err
			}
			pc, err := fc.PoolConfig()
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), fc, pc)
		},
	}
	o.addFlags(cmd.Flags())
	return cmd
}

// printConfig prints the file config with defaults filled in.
func printConfig(w io.Writer, fc sched.FileConfig, pc sched.PoolConfig) error {
	fc.Schedulers = pc.Schedulers
	fc.LoopInterval = pc.Scheduler.LoopInterval.String()
	fc.SessionTimeout = pc.Scheduler.SessionTimeout.String()
	if fc.LogFormat == "" {
		fc.LogFormat = "text"
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(fc)
}

func newBenchCmd() *cobra.Command {
	var o options
	var wc schedload.Config
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "run a synthetic workload and report per-scheduler counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := o.load(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(fc, cmd.ErrOrStderr())
			pc, err := fc.PoolConfig()
			if err != nil {
				return err
			}
			return runBench(cmd.Context(), cmd.OutOrStdout(), pc, wc)
		},
	}
	o.addFlags(cmd.Flags())
	fs := cmd.Flags()
	fs.IntVar(&wc.Sessions, "sessions", 16, "number of concurrent sessions")
	fs.DurationVar(&wc.Duration, "duration", 5*time.Second, "workload duration")
	fs.IntVar(&wc.MaxQuanta, "max-quanta", 8, "maximum quanta per statement")
	fs.IntVar(&wc.WorkPerQuantum, "work", 256, "hash rounds per quantum")
	fs.Float64Var(&wc.FailureRate, "failure-rate", 0, "fraction of statements that fail")
	fs.Float64Var(&wc.MaxRate, "max-rate", 0, "maximum statements per second, 0 is unlimited")
	fs.Int64Var(&wc.Seed, "seed", 1, "random seed")
	return cmd
}

func runBench(
	ctx context.Context, w io.Writer, pc sched.PoolConfig, wc schedload.Config,
) error {
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := sched.NewPool(pc)
	if err != nil {
		return err
	}
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer pool.Stop(ctx)

	st, err := schedload.Run(ctx, pool, wc)
	if err != nil {
		return errors.Wrap(err, "running workload")
	}
	secs := st.Elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}
	fmt.Fprintf(w, "%s statements (%s/s), %s failed, %s quanta, %s yields in %s; p50 %s p99 %s max %s\n",
		humanize.Comma(st.Statements),
		humanize.Commaf(float64(int64(float64(st.Statements)/secs))),
		humanize.Comma(st.Failed),
		humanize.Comma(st.Quanta),
		humanize.Comma(st.Yields),
		st.Elapsed.Round(time.Millisecond),
		st.P50, st.P99, st.Max)

	tw := tabwriter.NewWriter(w, 2, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "scheduler\tcommands\tyields\ttasks\tpage ops\tidle waits\tbusy")
	for _, s := range pool.Schedulers() {
		m := s.Metrics()
		tasks := m.HighTasksRun.Count() + m.NormalTasksRun.Count() +
			m.LowTasksRun.Count() + m.SessionTasksRun.Count()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%.0f%%\n",
			s.ID(),
			humanize.Comma(m.CommandsExecuted.Count()),
			humanize.Comma(m.Yields.Count()),
			humanize.Comma(tasks),
			humanize.Comma(m.PageOpsRun.Count()),
			humanize.Comma(m.IdleWaits.Count()),
			100*s.BusyRatio())
	}
	return tw.Flush()
}
