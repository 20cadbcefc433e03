package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"mftracker/internal/quote"
)

// quoteCmd implements the "quote" command.
type quoteCmd struct {
	env *env
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "fetches quote pages and prints them as JSON" }
func (*quoteCmd) Usage() string {
	return `quote <url>...

Fetches each quote page and prints one JSON object per line. Pages that
cannot be fetched or parsed are reported on stderr.
`
}

func (*quoteCmd) SetFlags(*flag.FlagSet) {}

type quoteLine struct {
	URL string `json:"url"`
	quote.Quote
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one quote page url is required")
		return subcommands.ExitUsageError
	}
	if err := c.env.load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	fetcher := newFetcher(c.env.cfg)
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	failed := 0
	for _, url := range f.Args() {
		q, err := fetcher.Fetch(ctx, url)
		if err != nil {
			c.env.log.WithField("url", url).WithError(err).Error("quote unavailable")
			failed++
			continue
		}
		_ = enc.Encode(quoteLine{URL: url, Quote: q})
	}
	if failed == f.NArg() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
