package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"mftracker/internal/config"
	"mftracker/internal/quote"
	"mftracker/internal/quote/cache"
	"mftracker/internal/quote/ratelimit"
)

func TestNewFetcher_Layers(t *testing.T) {
	cfg := config.Default()
	_, ok := newFetcher(cfg).(*quote.Client)
	require.True(t, ok, "no pacing or cache by default")

	cfg.Fetch.MinRequestIntervalMs = 250
	_, ok = newFetcher(cfg).(*ratelimit.MinInterval)
	require.True(t, ok)

	cfg.Fetch.MaxRequestsPerMinute = 60
	_, ok = newFetcher(cfg).(*ratelimit.TokenBucketFetcher)
	require.True(t, ok, "requests per minute wins over min interval")

	cfg.Fetch.CacheTTLSec = 30
	c, ok := newFetcher(cfg).(*cache.Fetcher)
	require.True(t, ok)
	_, ok = c.F.(*ratelimit.TokenBucketFetcher)
	require.True(t, ok, "cache sits in front of pacing")
}

func TestSetupLogging(t *testing.T) {
	defer func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	}()

	require.NoError(t, setupLogging(config.Logging{Level: "debug", Format: "json"}))
	require.Equal(t, log.DebugLevel, log.GetLevel())
	_, ok := log.StandardLogger().Formatter.(*log.JSONFormatter)
	require.True(t, ok)

	require.Error(t, setupLogging(config.Logging{Level: "loud"}))
}
