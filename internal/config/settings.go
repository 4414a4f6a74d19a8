package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSheetName    = "Sheet1"
	DefaultPollInterval = time.Hour
	DefaultFetchTimeout = 15 * time.Second
	DefaultHTTPAddr     = ":8080"
	DefaultTimelineTopN = 10
	DefaultNtfyURL      = "https://ntfy.sh"
	DefaultNtfyTopic    = "qhse-dashboard"
)

var ErrMissingSheetID = errors.New("SHEET_ID environment variable is required")

type NotificationSettings struct {
	Enabled  bool
	URL      string
	Topic    string
	Batch    bool
	Priority string
}

// Settings is everything the dashboard reads from its environment.
type Settings struct {
	SheetID         string
	SheetName       string
	APIKey          string
	CredentialsFile string
	PollInterval    time.Duration
	FetchTimeout    time.Duration
	FetchRetries    int
	HTTPAddr        string
	FieldMapFile    string
	TimelineTopN    int
	Notifications   NotificationSettings
}

// Load reads Settings through getenv, normally os.Getenv. Unset values take
// their defaults; values that are set but unparsable are errors.
func Load(getenv func(string) string) (Settings, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	s := Settings{
		SheetID:         env("SHEET_ID", ""),
		SheetName:       env("SHEET_NAME", DefaultSheetName),
		APIKey:          env("GOOGLE_API_KEY", ""),
		CredentialsFile: env("GOOGLE_CREDENTIALS_FILE", ""),
		HTTPAddr:        env("HTTP_ADDR", DefaultHTTPAddr),
		FieldMapFile:    env("FIELD_MAP_FILE", ""),
		Notifications: NotificationSettings{
			URL:      strings.TrimSuffix(env("NTFY_URL", DefaultNtfyURL), "/"),
			Topic:    env("NTFY_TOPIC", DefaultNtfyTopic),
			Priority: env("NTFY_PRIORITY", ""),
		},
	}
	if s.SheetID == "" {
		return Settings{}, ErrMissingSheetID
	}

	var err error
	if s.PollInterval, err = parseDuration("POLL_INTERVAL", env("POLL_INTERVAL", ""), DefaultPollInterval); err != nil {
		return Settings{}, err
	}
	if s.FetchTimeout, err = parseDuration("FETCH_TIMEOUT", env("FETCH_TIMEOUT", ""), DefaultFetchTimeout); err != nil {
		return Settings{}, err
	}
	if s.FetchRetries, err = parseInt("FETCH_RETRIES", env("FETCH_RETRIES", ""), 0); err != nil {
		return Settings{}, err
	}
	if s.TimelineTopN, err = parseInt("TIMELINE_TOP_N", env("TIMELINE_TOP_N", ""), DefaultTimelineTopN); err != nil {
		return Settings{}, err
	}
	if s.Notifications.Enabled, err = parseBool("NTFY_ENABLED", env("NTFY_ENABLED", "")); err != nil {
		return Settings{}, err
	}
	if s.Notifications.Batch, err = parseBool("NTFY_BATCH", env("NTFY_BATCH", "true")); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func parseDuration(key, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}

func parseInt(key, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return n, nil
}

func parseBool(key, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}
