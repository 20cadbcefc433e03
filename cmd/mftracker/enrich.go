package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"mftracker/internal/tracker"
)

// enrichCmd implements the "enrich" command.
type enrichCmd struct {
	env *env

	in      string
	out     string
	workers int
}

func (*enrichCmd) Name() string     { return "enrich" }
func (*enrichCmd) Synopsis() string { return "values every fund of the holdings directory" }
func (*enrichCmd) Usage() string {
	return `enrich [-in dir] [-out dir] [-workers n]

Reads one holdings file per fund, fetches a live quote for every holding and
writes the enriched table to the output directory under the same file name.
Prints one summary line per fund.
`
}

func (c *enrichCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.in, "in", "", "holdings directory (overrides run.holdings_dir)")
	f.StringVar(&c.out, "out", "", "output directory (overrides run.output_dir)")
	f.IntVar(&c.workers, "workers", 0, "concurrent fund jobs (overrides run.workers)")
}

func (c *enrichCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.env.load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	cfg := c.env.cfg
	if c.in != "" {
		cfg.Run.HoldingsDir = c.in
	}
	if c.out != "" {
		cfg.Run.OutputDir = c.out
	}
	if c.workers > 0 {
		cfg.Run.Workers = c.workers
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := tracker.New(newFetcher(cfg), cfg.Run.Workers, c.env.log)
	report, err := t.RunDir(ctx, tracker.Options{
		InDir:     cfg.Run.HoldingsDir,
		OutDir:    cfg.Run.OutputDir,
		Ext:       cfg.Run.Ext,
		Encodings: cfg.Run.Encodings,
		Funds:     cfg.Funds,
		Out:       os.Stdout,
	})
	if err != nil {
		c.env.log.WithError(err).Error("enrich failed")
		return subcommands.ExitFailure
	}
	if len(report.Results) == 0 && len(report.Skipped) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
