// Command mftracker values mutual fund portfolios against live stock quotes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"mftracker/internal/config"
	"mftracker/internal/httpx"
	"mftracker/internal/quote"
	"mftracker/internal/quote/cache"
	"mftracker/internal/quote/ratelimit"
)

// env is the state shared by every subcommand once the global flags are
// parsed.
type env struct {
	configPath string
	cfg        config.Config
	log        *log.Entry
}

// load reads .env, the config file and the environment, then sets up logging.
func (e *env) load() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return err
	}
	e.cfg = cfg
	e.log = log.WithField("run_id", uuid.NewString())
	return nil
}

func setupLogging(c config.Logging) error {
	level := c.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	if strings.EqualFold(c.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// newFetcher builds the quote fetcher chain: page client, then pacing, then
// the per-URL cache, each layer only when configured.
func newFetcher(cfg config.Config) quote.Fetcher {
	hc := httpx.New(time.Duration(cfg.Fetch.TimeoutSec)*time.Second, cfg.Fetch.UserAgent)
	var f quote.Fetcher = quote.NewClient(
		quote.WithHTTPClient(hc),
		quote.WithEncodings(cfg.Run.Encodings),
		quote.WithMaxBodyBytes(cfg.Fetch.MaxBodyBytes),
	)
	if cfg.Fetch.MaxRequestsPerMinute > 0 {
		f = ratelimit.PerMinute(f, cfg.Fetch.MaxRequestsPerMinute, cfg.Fetch.Burst)
	} else if cfg.Fetch.MinRequestIntervalMs > 0 {
		f = &ratelimit.MinInterval{F: f, Interval: time.Duration(cfg.Fetch.MinRequestIntervalMs) * time.Millisecond}
	}
	if cfg.Fetch.CacheTTLSec > 0 {
		f = &cache.Fetcher{F: f, TTL: time.Duration(cfg.Fetch.CacheTTLSec) * time.Second, MaxItems: cfg.Fetch.CacheMaxItems}
	}
	return f
}

func main() {
	e := &env{}
	flag.StringVar(&e.configPath, "config", os.Getenv("MFT_CONFIG"), "path to mftracker.toml or mftracker.json (optional)")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&enrichCmd{env: e}, "")
	commander.Register(&quoteCmd{env: e}, "")
	commander.Register(&serveCmd{env: e}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
