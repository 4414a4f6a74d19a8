package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"qhse_dashboard/internal/config"
	"qhse_dashboard/internal/notifications"
	"qhse_dashboard/internal/poller"
	"qhse_dashboard/internal/schema"
	"qhse_dashboard/internal/sheets"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	production := os.Getenv("ENV") == "production"
	if production {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	levelStr := strings.ToLower(os.Getenv("LOGLEVEL"))
	switch levelStr {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	case "":
		if production {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
	}

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

// LoadSettings reads the settings from the process environment or exits.
func LoadSettings() config.Settings {
	settings, err := config.Load(os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return settings
}

var ErrNoCredentials = errors.New("GOOGLE_API_KEY or GOOGLE_CREDENTIALS_FILE is required")

// SheetsOptions picks API key auth for a public sheet or a service account
// credentials file for a private one. The API key wins when both are set.
func SheetsOptions(s config.Settings) ([]option.ClientOption, error) {
	switch {
	case s.APIKey != "":
		return []option.ClientOption{option.WithAPIKey(s.APIKey)}, nil
	case s.CredentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(s.CredentialsFile)}, nil
	default:
		return nil, ErrNoCredentials
	}
}

// LoadSchema returns the default field map, overridden by FIELD_MAP_FILE
// when set.
func LoadSchema(s config.Settings) (*schema.Schema, error) {
	if s.FieldMapFile == "" {
		return schema.Default(), nil
	}
	sc, err := schema.Load(s.FieldMapFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load field map: %w", err)
	}
	log.Info().Str("file", s.FieldMapFile).Msg("Loaded field map overrides")
	return sc, nil
}

// InitializeClients creates the Google Sheets client and a poller reading
// the configured sheet through it.
func InitializeClients(ctx context.Context, s config.Settings, opts ...poller.Option) (*sheets.Client, *poller.Poller, error) {
	log.Debug().Msg("Initializing clients")

	clientOpts, err := SheetsOptions(s)
	if err != nil {
		return nil, nil, err
	}
	sheetsClient, err := sheets.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, nil, err
	}

	sc, err := LoadSchema(s)
	if err != nil {
		return nil, nil, err
	}

	fetchConfig := s.Resilience().SheetFetch
	fetchConfig.Retryable = sheets.IsRetryable

	base := []poller.Option{
		poller.WithInterval(s.PollInterval),
		poller.WithRetry(fetchConfig),
	}
	p := poller.New(sheets.NewFetcher(sheetsClient, s.SheetID, s.SheetName), sc, append(base, opts...)...)

	log.Debug().
		Str("sheet_id", s.SheetID).
		Str("sheet_name", s.SheetName).
		Msg("Clients initialized successfully")
	return sheetsClient, p, nil
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient(s config.Settings) *notifications.Client {
	n := s.Notifications
	log.Debug().
		Bool("enabled", n.Enabled).
		Str("base_url", n.URL).
		Str("topic", n.Topic).
		Bool("batch", n.Batch).
		Msg("Initializing notification client")

	client := notifications.NewClient(n, s.Resilience().Notification)

	if n.Enabled {
		log.Info().Str("topic", n.Topic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}
