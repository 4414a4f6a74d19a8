package config

import (
	"time"

	"qhse_dashboard/internal/retry"
)

type ResilienceConfig struct {
	SheetFetch   retry.Config
	Notification retry.Config
}

// DefaultResilienceConfig makes a single sheet read per poll. Notifications
// keep a few backoff retries since ntfy outages are usually brief.
var DefaultResilienceConfig = ResilienceConfig{
	SheetFetch: retry.Config{
		MaxRetries: 0,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	Notification: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    10 * time.Second,
	},
}

// Resilience applies the fetch timeout and retry count from s to the defaults.
func (s Settings) Resilience() ResilienceConfig {
	rc := DefaultResilienceConfig
	rc.SheetFetch.Timeout = s.FetchTimeout
	rc.SheetFetch.MaxRetries = s.FetchRetries
	return rc
}
