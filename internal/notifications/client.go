package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"qhse_dashboard/internal/config"
	"qhse_dashboard/internal/retry"

	"github.com/rs/zerolog/log"
)

const (
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
	maxAlertsShown   = 10
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	batchMode  bool
	priority   string
	retry      retry.Config
	// spacing between individual messages
	spacing time.Duration
	now     func() time.Time

	mutex       sync.Mutex
	failures    int
	lastFailure time.Time
	circuitOpen bool
	// Metrics
	totalSent    int64
	totalFailed  int64
	totalRetries int64
}

// ProjectAlert is one project that newly needs attention.
type ProjectAlert struct {
	ProjectNo    string
	Title        string
	Status       string
	UrgencyScore int
	RiskLevel    string
	Reasons      []string
}

type NotificationError struct {
	Type       string
	StatusCode int
	Attempt    int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s] attempt %d: %v", e.Type, e.Attempt, e.Underlying)
}

func (e *NotificationError) Unwrap() error {
	return e.Underlying
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "timeout", "rate_limit":
		return true
	case "auth", "client", "circuit_open":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func isRetryable(err error) bool {
	var notifErr *NotificationError
	if errors.As(err, &notifErr) {
		return notifErr.IsRetryable()
	}
	return true
}

func NewClient(settings config.NotificationSettings, rc retry.Config) *Client {
	rc.Retryable = isRetryable
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   strings.TrimSuffix(settings.URL, "/"),
		topic:     settings.Topic,
		enabled:   settings.Enabled,
		batchMode: settings.Batch,
		priority:  settings.Priority,
		retry:     rc,
		spacing:   100 * time.Millisecond,
		now:       time.Now,
	}
}

func (c *Client) Enabled() bool {
	return c.enabled
}

// SendNotification posts one message to the topic, retrying transient
// failures. Consecutive failures open a circuit breaker that rejects sends
// until it cools down.
func (c *Client) SendNotification(ctx context.Context, title, message string) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	if c.isCircuitOpen() {
		log.Warn().Msg("Circuit breaker open, skipping notification")
		return &NotificationError{
			Type:       "circuit_open",
			Underlying: fmt.Errorf("circuit breaker is open"),
		}
	}

	attempt := 0
	_, err := retry.WithRetry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		attempt++
		if attempt > 1 {
			c.incrementRetries()
		}
		return struct{}{}, c.sendSingleNotification(ctx, title, message, attempt)
	})
	if err != nil {
		log.Warn().
			Err(err).
			Int("attempts", attempt).
			Msg("Notification failed")
		c.recordFailure()
		return err
	}

	c.recordSuccess()
	return nil
}

func (c *Client) sendSingleNotification(ctx context.Context, title, message string, attempt int) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	log.Debug().
		Str("url", url).
		Str("title", title).
		Int("attempt", attempt).
		Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return &NotificationError{
			Type:       "client",
			Attempt:    attempt,
			Underlying: err,
		}
	}

	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}
	req.Header.Set("Tags", "warning")
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errType := "network"
		if errors.Is(err, context.DeadlineExceeded) {
			errType = "timeout"
		}
		return &NotificationError{
			Type:       errType,
			Attempt:    attempt,
			Underlying: err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &NotificationError{
			Type:       categorizeHTTPError(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Int("attempt", attempt).
		Msg("Notification sent successfully")

	return nil
}

// NotifyCriticalProjects sends one batch message, or one message per
// project, about projects that just turned critical.
func (c *Client) NotifyCriticalProjects(ctx context.Context, alerts []ProjectAlert) error {
	if !c.enabled {
		return nil
	}
	if len(alerts) == 0 {
		log.Debug().Msg("No newly critical projects to notify about")
		return nil
	}

	if c.batchMode {
		log.Info().
			Int("projects", len(alerts)).
			Msg("Sending batch notification for critical projects")
		return c.SendNotification(ctx, batchTitle(len(alerts)), formatBatchMessage(alerts))
	}

	log.Info().
		Int("projects", len(alerts)).
		Msg("Sending individual notifications for critical projects")

	var errs []error
	for i, alert := range alerts {
		title, body := formatIndividualMessage(alert, i+1, len(alerts))
		if err := c.SendNotification(ctx, title, body); err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", alert.ProjectNo, err))
		}
		if i < len(alerts)-1 && c.spacing > 0 {
			select {
			case <-time.After(c.spacing):
			case <-ctx.Done():
				return errors.Join(append(errs, ctx.Err())...)
			}
		}
	}
	return errors.Join(errs...)
}

func batchTitle(n int) string {
	if n == 1 {
		return "QHSE: 1 project became critical"
	}
	return fmt.Sprintf("QHSE: %d projects became critical", n)
}

func formatBatchMessage(alerts []ProjectAlert) string {
	var sb strings.Builder

	shown := min(len(alerts), maxAlertsShown)
	for _, a := range alerts[:shown] {
		sb.WriteString(fmt.Sprintf("• %s %s: %s", a.ProjectNo, a.Title, describe(a)))
		sb.WriteString("\n")
	}

	if len(alerts) > maxAlertsShown {
		sb.WriteString(fmt.Sprintf("... and %d more projects\n", len(alerts)-maxAlertsShown))
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func formatIndividualMessage(a ProjectAlert, n, total int) (string, string) {
	title := "QHSE: project became critical"
	if total > 1 {
		title = fmt.Sprintf("QHSE: project became critical (%d/%d)", n, total)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n", a.ProjectNo, a.Title))
	sb.WriteString(describe(a))
	sb.WriteString("\n")
	for _, r := range a.Reasons {
		sb.WriteString(fmt.Sprintf("- %s\n", r))
	}
	return title, strings.TrimSuffix(sb.String(), "\n")
}

func describe(a ProjectAlert) string {
	var parts []string
	if a.Status != "" {
		parts = append(parts, fmt.Sprintf("%s (urgency %d)", a.Status, a.UrgencyScore))
	}
	if a.RiskLevel != "" {
		parts = append(parts, "risk "+a.RiskLevel)
	}
	return strings.Join(parts, ", ")
}

// Circuit breaker helpers

func (c *Client) isCircuitOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.circuitOpen {
		return false
	}

	// half-open: let one attempt through after the cooldown
	if c.now().Sub(c.lastFailure) > circuitCooldown {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker moving to half-open state")
	}

	return c.circuitOpen
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalSent++
	c.failures = 0
	if c.circuitOpen {
		c.circuitOpen = false
		log.Info().Msg("Circuit breaker closed after successful notification")
	}
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalFailed++
	c.failures++
	c.lastFailure = c.now()

	if c.failures >= circuitThreshold && !c.circuitOpen {
		c.circuitOpen = true
		log.Warn().
			Int("failures", c.failures).
			Msg("Circuit breaker opened due to consecutive failures")
	}
}

func (c *Client) incrementRetries() {
	c.mutex.Lock()
	c.totalRetries++
	c.mutex.Unlock()
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

// GetMetrics returns current notification metrics
func (c *Client) GetMetrics() (sent, failed, retries int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed, c.totalRetries
}
