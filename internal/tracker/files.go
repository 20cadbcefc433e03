package tracker

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"mftracker/internal/holding"
	"mftracker/internal/table"
	"mftracker/internal/valuation"
)

// Options configures RunDir.
type Options struct {
	InDir  string
	OutDir string
	// Ext selects holdings files; defaults to table.Ext.
	Ext       string
	Encodings []string
	// Funds, when not empty, restricts the run to files named <key><ext>
	// and supplies fund names missing from the files.
	Funds []holding.Fund
	// Out receives one summary line per fund; nil discards them.
	Out io.Writer
}

// Skipped is a holdings file that produced no output.
type Skipped struct {
	File string
	Err  error
}

// Report summarizes a RunDir call.
type Report struct {
	Results []valuation.Result
	// Written lists output files in completion order.
	Written []string
	Skipped []Skipped
	// Empty lists funds whose jobs produced zero usable rows.
	Empty []string
}

// RunDir enriches every holdings file of opts.InDir and writes one output
// file per fund to opts.OutDir under the same name. Only an unreadable
// holdings directory is fatal; files that cannot be decoded or parsed are
// skipped with a warning.
func (t *Tracker) RunDir(ctx context.Context, opts Options) (Report, error) {
	ext := opts.Ext
	if ext == "" {
		ext = table.Ext
	}
	names, err := table.Discover(opts.InDir, ext)
	if err != nil {
		return Report{}, err
	}

	wanted := make(map[string]holding.Fund, len(opts.Funds))
	for _, f := range opts.Funds {
		wanted[f.Key] = f
	}

	out := &lockedWriter{w: opts.Out}
	var (
		report Report
		mu     sync.Mutex
		jobs   []Job
		files  []string
	)
	for _, name := range names {
		stem := strings.TrimSuffix(name, ext)
		ref, listed := wanted[stem]
		if len(wanted) > 0 && !listed {
			continue
		}

		logger := t.logger().WithField("file", name)
		tbl, err := table.ReadFile(filepath.Join(opts.InDir, name), opts.Encodings)
		if err != nil {
			logger.WithError(err).Warn("skipping holdings file")
			report.Skipped = append(report.Skipped, Skipped{File: name, Err: err})
			continue
		}
		logger.WithField("rows", len(tbl.Holdings)).Info("holdings loaded")

		key := tbl.Key()
		fundName := tbl.FundName()
		if fundName == "" {
			fundName = ref.Name
		}
		files = append(files, name)
		jobs = append(jobs, Job{
			Key:      key,
			Name:     fundName,
			Holdings: tbl.Holdings,
			Done: func(res valuation.Result) error {
				path, err := table.WriteFile(opts.OutDir, tbl, res.Holdings)
				if err != nil {
					return err
				}
				mu.Lock()
				report.Written = append(report.Written, path)
				mu.Unlock()
				out.println(valuation.Summary(res))
				return nil
			},
		})
	}

	for i, o := range t.Run(ctx, jobs) {
		if o.Err != nil {
			report.Skipped = append(report.Skipped, Skipped{File: files[i], Err: o.Err})
		}
		if !o.Result.Usable() {
			report.Empty = append(report.Empty, o.Key)
		}
		report.Results = append(report.Results, o.Result)
	}

	t.logger().WithFields(log.Fields{
		"written": len(report.Written),
		"skipped": len(report.Skipped),
		"empty":   len(report.Empty),
	}).Info("run finished")
	for _, key := range report.Empty {
		out.println(fmt.Sprintf("No usable rows: %s", key))
	}
	return report, nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) println(s string) {
	if l.w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}
