// Package tracker schedules quote enrichment for many funds at once.
//
// Funds run as independent jobs on a bounded pool; within a job every
// holding is fetched concurrently. Each job owns its result slice and each
// holding goroutine owns one slot in it, so no state is shared between units
// of work and a failure never cancels a sibling.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mftracker/internal/holding"
	"mftracker/internal/quote"
	"mftracker/internal/valuation"
)

// DefaultWorkers is the number of fund jobs run concurrently.
const DefaultWorkers = 10

// ErrJobPanicked is reported for a job that panicked.
var ErrJobPanicked = errors.New("fund job panicked")

// Tracker enriches fund holdings with live quotes.
type Tracker struct {
	Fetcher quote.Fetcher
	// Workers bounds concurrent fund jobs; <= 0 means DefaultWorkers.
	Workers int
	Log     *log.Entry
}

// New returns a Tracker using f for every quote fetch.
func New(f quote.Fetcher, workers int, logger *log.Entry) *Tracker {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Tracker{Fetcher: f, Workers: workers, Log: logger}
}

func (t *Tracker) logger() *log.Entry {
	if t.Log == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return t.Log
}

// Job is one fund's holdings batch.
type Job struct {
	Key      string
	Name     string
	Holdings []holding.Holding
	// Done, when set, is called with the job's result on the job's own
	// goroutine, e.g. to write the fund's output file.
	Done func(valuation.Result) error
}

// Outcome is what a job produced. Err is set when Done failed or the job
// panicked; Result is still populated in the former case.
type Outcome struct {
	Key    string
	Name   string
	Result valuation.Result
	Err    error
}

// EnrichFund fetches a quote for every holding of one fund concurrently and
// aggregates the enriched holdings. The returned holdings keep input order.
func (t *Tracker) EnrichFund(ctx context.Context, key, name string, holdings []holding.Holding) valuation.Result {
	logger := t.logger().WithField("fund", key)
	logger.WithField("holdings", len(holdings)).Info("fund started")

	out := make([]holding.EnrichedHolding, len(holdings))
	var wg sync.WaitGroup
	for i, h := range holdings {
		if !h.Fetchable() {
			out[i] = holding.Enrich(h, nil)
			logger.WithField("stock", h.StockName).Debug("no quote url, not fetched")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = t.enrichOne(ctx, logger, h)
		}()
	}
	wg.Wait()

	res := valuation.Aggregate(key, name, out)
	logger.WithFields(log.Fields{
		"defined":        res.Defined,
		"percent_change": res.PercentChange,
	}).Info("fund done")
	return res
}

func (t *Tracker) enrichOne(ctx context.Context, logger *log.Entry, h holding.Holding) (e holding.EnrichedHolding) {
	fields := log.Fields{"stock": h.StockName, "url": h.QuoteURL}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: fetch: %v", ErrJobPanicked, r)
			logger.WithFields(fields).WithError(err).Error("quote fetch panicked")
			e = holding.EnrichFailed(h, err)
		}
	}()

	q, err := t.Fetcher.Fetch(ctx, h.QuoteURL)
	if err != nil {
		logger.WithFields(fields).WithError(err).Warn("quote unavailable")
		return holding.EnrichFailed(h, err)
	}
	e = holding.Enrich(h, &q)
	if e.QuantityErr != nil {
		logger.WithFields(fields).WithError(e.QuantityErr).Warn("quantity not understood")
	}
	return e
}

// Run processes jobs on at most Workers goroutines; jobs beyond the pool size
// wait for a free slot. Outcomes are returned in job order. A job's failure,
// including a panic, is confined to its own Outcome.
func (t *Tracker) Run(ctx context.Context, jobs []Job) []Outcome {
	workers := t.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = t.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (t *Tracker) runJob(ctx context.Context, job Job) (o Outcome) {
	o = Outcome{Key: job.Key, Name: job.Name}
	defer func() {
		if r := recover(); r != nil {
			o.Err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
			t.logger().WithField("fund", job.Key).WithError(o.Err).Error("fund job failed")
		}
	}()

	o.Result = t.EnrichFund(ctx, job.Key, job.Name, job.Holdings)
	if job.Done != nil {
		if err := job.Done(o.Result); err != nil {
			o.Err = err
			t.logger().WithField("fund", job.Key).WithError(err).Error("fund output failed")
		}
	}
	return o
}
