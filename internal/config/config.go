package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mftracker/internal/charset"
	"mftracker/internal/holding"
)

type Run struct {
	HoldingsDir string   `json:"holdings_dir" toml:"holdings_dir"`
	OutputDir   string   `json:"output_dir" toml:"output_dir"`
	Ext         string   `json:"ext" toml:"ext"`
	Workers     int      `json:"workers" toml:"workers"`
	Encodings   []string `json:"encodings" toml:"encodings"`
}

type Fetch struct {
	TimeoutSec           int    `json:"timeout_sec" toml:"timeout_sec"`
	UserAgent            string `json:"user_agent" toml:"user_agent"`
	MaxBodyBytes         int64  `json:"max_body_bytes" toml:"max_body_bytes"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" toml:"max_requests_per_minute"`
	Burst                int    `json:"burst" toml:"burst"`
	MinRequestIntervalMs int    `json:"min_request_interval_ms" toml:"min_request_interval_ms"`
	CacheTTLSec          int    `json:"cache_ttl_sec" toml:"cache_ttl_sec"`
	CacheMaxItems        int    `json:"cache_max_items" toml:"cache_max_items"`
}

type Server struct {
	Port              string `json:"port" toml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" toml:"request_timeout_sec"`
}

type Logging struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"`
}

type Config struct {
	Run     Run            `json:"run" toml:"run"`
	Fetch   Fetch          `json:"fetch" toml:"fetch"`
	Server  Server         `json:"server" toml:"server"`
	Logging Logging        `json:"logging" toml:"logging"`
	Funds   []holding.Fund `json:"funds" toml:"funds"`
}

func Default() Config {
	return Config{
		Run: Run{
			HoldingsDir: "holdings",
			OutputDir:   "enriched",
			Ext:         ".csv",
			Workers:     10,
			Encodings:   append([]string(nil), charset.DefaultFallbacks...),
		},
		Fetch: Fetch{
			TimeoutSec:    30,
			UserAgent:     "mftracker/1.0",
			MaxBodyBytes:  8 << 20,
			Burst:         1,
			CacheMaxItems: 10000,
		},
		Server:  Server{Port: "8080", RequestTimeoutSec: 60},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// candidates are tried in order when Load is called without a path.
var candidates = []string{"mftracker.toml", "mftracker.json"}

// Load reads the config file at path, TOML when it ends in .toml and JSON
// otherwise. If path is empty the first existing candidate file is used, and
// with none the defaults are returned. MFT_* environment variables override
// the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := unmarshal(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func unmarshal(path string, b []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(b, cfg)
	}
	return json.Unmarshal(b, cfg)
}

// Validate reports every setting that makes a run impossible.
func (c Config) Validate() error {
	var errs []error
	if c.Run.HoldingsDir == "" {
		errs = append(errs, errors.New("run.holdings_dir is empty"))
	}
	if c.Run.OutputDir == "" {
		errs = append(errs, errors.New("run.output_dir is empty"))
	}
	if c.Run.Workers <= 0 {
		errs = append(errs, fmt.Errorf("run.workers must be positive, got %d", c.Run.Workers))
	}
	if len(c.Run.Encodings) == 0 {
		errs = append(errs, errors.New("run.encodings is empty"))
	}
	if c.Fetch.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout_sec must be positive, got %d", c.Fetch.TimeoutSec))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MFT_HOLDINGS_DIR"); v != "" {
		cfg.Run.HoldingsDir = v
	}
	if v := os.Getenv("MFT_OUTPUT_DIR"); v != "" {
		cfg.Run.OutputDir = v
	}
	if v := os.Getenv("MFT_WORKERS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Run.Workers = x
		}
	}
	if v := os.Getenv("MFT_ENCODINGS"); v != "" {
		cfg.Run.Encodings = splitCSV(v)
	}
	if v := os.Getenv("MFT_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Fetch.TimeoutSec = x
		}
	}
	if v := os.Getenv("MFT_USER_AGENT"); v != "" {
		cfg.Fetch.UserAgent = v
	}
	if v := os.Getenv("MFT_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Fetch.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("MFT_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Fetch.Burst = x
		}
	}
	if v := os.Getenv("MFT_MIN_INTERVAL_MS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Fetch.MinRequestIntervalMs = x
		}
	}
	if v := os.Getenv("MFT_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Fetch.CacheTTLSec = x
		}
	}
	if v := os.Getenv("MFT_CACHE_MAX_ITEMS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Fetch.CacheMaxItems = x
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("MFT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MFT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
