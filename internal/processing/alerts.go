package processing

import (
	"context"
	"sync"
	"time"

	"qhse_dashboard/internal/notifications"
	"qhse_dashboard/internal/poller"
	"qhse_dashboard/internal/project"
	"qhse_dashboard/internal/risk"
	"qhse_dashboard/internal/timeline"

	"github.com/rs/zerolog/log"
)

type Notifier interface {
	NotifyCriticalProjects(ctx context.Context, alerts []notifications.ProjectAlert) error
}

// AlertTracker remembers which projects were critical on the previous fetch
// and notifies only about projects that newly became critical. The first
// fetch primes the set without notifying.
type AlertTracker struct {
	notifier Notifier
	now      func() time.Time
	topN     int

	mu       sync.Mutex
	critical map[string]bool
	primed   bool
}

func NewAlertTracker(notifier Notifier, now func() time.Time, topN int) *AlertTracker {
	if now == nil {
		now = time.Now
	}
	return &AlertTracker{
		notifier: notifier,
		now:      now,
		topN:     topN,
		critical: map[string]bool{},
	}
}

// OnUpdate adapts the tracker to poller.WithOnUpdate.
func (t *AlertTracker) OnUpdate(ctx context.Context) func(poller.State) {
	return func(s poller.State) {
		if _, err := t.Process(ctx, s.Data); err != nil {
			log.Warn().Err(err).Msg("Failed to send critical project alerts")
		}
	}
}

// Process logs the summary of records and notifies about projects that
// became critical since the previous call. It returns the alerts it sent.
// Concurrent calls run one at a time.
func (t *AlertTracker) Process(ctx context.Context, records []project.Record) ([]notifications.ProjectAlert, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	LogSummary(Summarize(records, now, t.topN))

	current := map[string]bool{}
	var fresh []notifications.ProjectAlert
	for _, r := range project.Valid(records) {
		alert, ok := criticalAlert(r, now)
		if !ok {
			continue
		}
		key := alert.ProjectNo
		if current[key] {
			continue
		}
		current[key] = true
		if !t.critical[key] {
			fresh = append(fresh, alert)
		}
	}

	primed := t.primed
	t.critical = current
	t.primed = true

	if !primed {
		log.Debug().
			Int("critical", len(current)).
			Msg("Primed critical project set")
		return nil, nil
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	for _, a := range fresh {
		log.Info().
			Str("project_no", a.ProjectNo).
			Str("status", a.Status).
			Str("risk", a.RiskLevel).
			Msg("Project became critical")
	}
	return fresh, t.notifier.NotifyCriticalProjects(ctx, fresh)
}

func criticalAlert(r project.Record, now time.Time) (notifications.ProjectAlert, bool) {
	entry := timeline.NewEntry(r, now)
	assessment := risk.Assess(r)

	scheduleCritical := entry.Status == timeline.StatusCritical
	riskCritical := assessment.Level == risk.LevelCritical
	if !scheduleCritical && !riskCritical {
		return notifications.ProjectAlert{}, false
	}

	alert := notifications.ProjectAlert{
		ProjectNo:    entry.ProjectNo,
		Title:        entry.Name,
		UrgencyScore: entry.UrgencyScore,
	}
	if scheduleCritical {
		alert.Status = string(entry.Status)
		alert.Reasons = append(alert.Reasons, entry.RiskFactors...)
	}
	if riskCritical {
		alert.RiskLevel = string(assessment.Level)
		alert.Reasons = append(alert.Reasons, assessment.Reasons...)
	}
	return alert, true
}
