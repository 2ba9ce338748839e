// Command opstat drives a synthetic workload through an op runtime and
// reports per-op metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/opcore/metrics"
	"github.com/wippyai/opcore/runtime"
)

type options struct {
	configFile  string
	rounds      int
	calls       int
	async       int
	sleepMS     int
	realms      int
	logLevel    string
	interactive bool
}

func main() {
	var o options
	flag.StringVar(&o.configFile, "config", "", "Path to a TOML runtime config")
	flag.IntVar(&o.rounds, "rounds", 1, "Workload rounds to run (non-interactive)")
	flag.IntVar(&o.calls, "calls", 1000, "Fast and slow calls per realm per round")
	flag.IntVar(&o.async, "async", 16, "Async sleep calls per realm per round")
	flag.IntVar(&o.sleepMS, "sleep", 2, "Sleep duration of async calls in milliseconds")
	flag.IntVar(&o.realms, "realms", 0, "Number of realms (overrides config)")
	flag.StringVar(&o.logLevel, "log", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with live metrics")
	flag.Parse()

	if o.interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal, running non-interactively")
		o.interactive = false
	}

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}
}

func loadConfig(o options) (runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	if o.configFile != "" {
		var err error
		if cfg, err = runtime.LoadConfig(o.configFile); err != nil {
			return cfg, err
		}
	}
	if o.realms > 0 {
		cfg.Realms = o.realms
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, cfg.Validate()
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	var opts []runtime.Option
	if cfg.LogLevel == "debug" && !o.interactive {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = l.Sync() }()
		opts = append(opts, runtime.WithMetricsHook(metrics.ZapHook(l)))
	}

	w, err := newWorkload(cfg, o.calls, o.async, int32(o.sleepMS), opts...)
	if err != nil {
		return err
	}
	defer func() { _ = w.close() }()

	if o.interactive {
		return runInteractive(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	for i := 0; i < o.rounds; i++ {
		if err := w.round(ctx); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	fmt.Println(titleStyle.Render("opstat") + fmt.Sprintf(" %d round(s), %d realm(s) in %s", o.rounds, w.rt.Realms(), elapsed.Round(time.Microsecond)))
	fmt.Println(metricsTable(w.rt.Dispatcher().Decls(), w.rt.Metrics()))
	fmt.Printf("resolved %d, failed %d\n", w.res.resolved.Load(), w.res.failed.Load())
	return nil
}
