package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2/klogr"

	"github.com/mkock/bootphase/internal/plan"
	"github.com/mkock/bootphase/metrics"
)

type runOptions struct {
	plan       string
	timeout    time.Duration
	metricsOut string
}

func newRunCmd() *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] [-- ARG...]",
		Short: "Run a boot plan",
		Long: "Run the phases of a boot plan in the order given by its sequence.\n" +
			"Every ARG is forwarded to every step of every phase.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.complete(cmd); err != nil {
				return err
			}
			return o.run(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.plan, "plan", "p", "", "Path to the boot plan (.yaml, .yml or .toml). Defaults to $BOOTPHASE_PLAN")
	f.DurationVar(&o.timeout, "timeout", 0, "Time allowed for the whole boot sequence. Defaults to $BOOTPHASE_TIMEOUT, or 5m")
	f.StringVar(&o.metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file. Defaults to $BOOTPHASE_METRICS_OUT")

	return cmd
}

// complete fills the flags that were not set on the command line from the environment.
func (o *runOptions) complete(cmd *cobra.Command) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if !f.Changed("plan") {
		o.plan = c.Plan
	}
	if !f.Changed("timeout") {
		o.timeout = c.Timeout
	}
	if !f.Changed("metrics-out") {
		o.metricsOut = c.MetricsOut
	}

	if o.plan == "" {
		return errors.New("a plan is required: use --plan or set BOOTPHASE_PLAN")
	}
	return nil
}

func (o *runOptions) run(ctx context.Context, out io.Writer, args []string) error {
	log := klogr.New().WithName(rootName)

	p, err := plan.Load(o.plan)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	observer, err := metrics.NewObserver(reg)
	if err != nil {
		return errors.Wrap(err, "failed to register metrics")
	}

	i, err := p.Build(observer)
	if err != nil {
		return err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	forwarded := make([]any, len(args))
	for j, arg := range args {
		forwarded[j] = arg
	}

	if unused := p.Unreferenced(i); len(unused) > 0 {
		log.Info("skipping phases not in sequence", "phases", unused)
	}
	log.Info("starting boot sequence", "plan", o.plan, "sequence", i.String())
	start := time.Now()

	var failed error
	for pr := range i.Up(logr.NewContext(ctx, log), forwarded...).Progress() {
		if pr.Err != nil {
			fmt.Fprintf(out, "FAIL %s: %v\n", pr.Phase, pr.Err)
			if failed == nil {
				failed = pr.Err
			}
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", pr.Phase)
	}

	if o.metricsOut != "" {
		if err := prometheus.WriteToTextfile(o.metricsOut, reg); err != nil {
			return errors.Wrapf(err, "failed to write metrics to %s", o.metricsOut)
		}
	}

	if failed != nil {
		return errors.Wrapf(failed, "boot sequence %q failed", p.Name)
	}

	fmt.Fprintf(out, "boot sequence %q finished in %s\n", p.Name, time.Since(start).Round(time.Millisecond))
	return nil
}
