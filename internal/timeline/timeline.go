package timeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"qhse_dashboard/internal/coerce"
	"qhse_dashboard/internal/project"
)

// Status is the schedule health of a project. Both timeline views use the
// same classifier.
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusCritical  Status = "Critical"
	StatusExtended  Status = "Extended"
	StatusDelayed   Status = "Delayed"
	StatusAtRisk    Status = "At Risk"
	StatusOnTrack   Status = "On Track"
)

const (
	CompletedPercent = 100.0

	AuditDelaySevereDays = 10
	OpenCARsSevere       = 5
	OpenObsSevere        = 3
	DueSoonDays          = 7
	WatchWindowDays      = 30

	CriticalScore = 7
	DelayedScore  = 4

	DefaultTopN = 10
)

// Urgency weights.
const (
	weightAuditDelaySevere = 4
	weightAuditDelay       = 2
	weightCARsSevere       = 4
	weightCARs             = 2
	weightObsSevere        = 2
	weightObs              = 1
	weightOverdueExtended  = 5
	weightOverdue          = 4
	weightDueSoon          = 2
	weightExtension        = 1
)

// Assessment is the classifier output for one record.
type Assessment struct {
	Status       Status
	UrgencyScore int
	HasDeadline  bool
	Deadline     time.Time
	DaysOverdue  int
	RiskFactors  []string
}

// DaysRemaining is the negated overdue count, nil when there is no deadline.
func (a Assessment) DaysRemaining() *int {
	if !a.HasDeadline {
		return nil
	}
	d := -a.DaysOverdue
	return &d
}

// Classify evaluates a record's schedule health at now. The result depends
// only on the record and now.
func Classify(r project.Record, now time.Time) Assessment {
	a := Assessment{RiskFactors: []string{}}

	deadline, ok := coerce.ParseDate(r.ProjectExtension)
	if !ok {
		deadline, ok = coerce.ParseDate(r.ProjectClosingDate)
	}
	if ok {
		a.HasDeadline = true
		a.Deadline = deadline
		a.DaysOverdue = int(math.Ceil(float64(now.Sub(deadline)) / float64(24*time.Hour)))
	}

	if r.Completion() >= CompletedPercent {
		a.Status = StatusCompleted
		return a
	}

	extended := r.HasExtension()
	score := 0

	switch {
	case r.DelayInAuditsNoDays > AuditDelaySevereDays:
		score += weightAuditDelaySevere
	case r.DelayInAuditsNoDays > 0:
		score += weightAuditDelay
	}
	switch {
	case r.CarsOpen > OpenCARsSevere:
		score += weightCARsSevere
	case r.CarsOpen > 0:
		score += weightCARs
	}
	switch {
	case r.ObsOpen > OpenObsSevere:
		score += weightObsSevere
	case r.ObsOpen > 0:
		score += weightObs
	}
	if a.HasDeadline {
		switch {
		case a.DaysOverdue > 0 && extended:
			score += weightOverdueExtended
		case a.DaysOverdue > 0:
			score += weightOverdue
		case a.DaysOverdue >= -DueSoonDays:
			score += weightDueSoon
		}
	}
	if extended {
		score += weightExtension
	}
	a.UrgencyScore = score

	switch {
	case score >= CriticalScore:
		a.Status = StatusCritical
	case score >= DelayedScore && extended:
		a.Status = StatusExtended
	case score >= DelayedScore:
		a.Status = StatusDelayed
	case score > 0 || (a.HasDeadline && a.DaysOverdue >= -WatchWindowDays):
		a.Status = StatusAtRisk
	default:
		a.Status = StatusOnTrack
	}

	a.RiskFactors = riskFactors(r, a)
	return a
}

func riskFactors(r project.Record, a Assessment) []string {
	factors := []string{}
	if r.DelayInAuditsNoDays > 0 {
		factors = append(factors, fmt.Sprintf("Audit delayed by %s", plural(r.DelayInAuditsNoDays, "day", "days")))
	}
	if r.CarsOpen > 0 {
		factors = append(factors, fmt.Sprintf("%s open", plural(r.CarsOpen, "CAR", "CARs")))
	}
	if r.ObsOpen > 0 {
		factors = append(factors, fmt.Sprintf("%s open", plural(r.ObsOpen, "observation", "observations")))
	}
	if a.HasDeadline {
		switch {
		case a.DaysOverdue > 0:
			factors = append(factors, fmt.Sprintf("Overdue by %s", plural(a.DaysOverdue, "day", "days")))
		case a.DaysOverdue == 0:
			factors = append(factors, "Due today")
		case a.DaysOverdue >= -DueSoonDays:
			factors = append(factors, fmt.Sprintf("Due in %s", plural(-a.DaysOverdue, "day", "days")))
		}
	}
	return factors
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// Entry is one row of the timeline views.
type Entry struct {
	Name          string   `json:"name"`
	ProjectNo     string   `json:"projectNo"`
	Progress      float64  `json:"progress"`
	Status        Status   `json:"status"`
	Deadline      string   `json:"deadline,omitempty"`
	DaysRemaining *int     `json:"daysRemaining"`
	IsCompleted   bool     `json:"isCompleted"`
	HasExtension  bool     `json:"hasExtension"`
	UrgencyScore  int      `json:"urgencyScore"`
	RiskFactors   []string `json:"riskFactors"`
}

// NewEntry classifies a record and shapes the result for the views.
func NewEntry(r project.Record, now time.Time) Entry {
	a := Classify(r, now)
	e := Entry{
		Name:          strings.TrimSpace(r.ProjectTitle),
		ProjectNo:     strings.TrimSpace(r.ProjectNo),
		Progress:      r.Completion(),
		Status:        a.Status,
		DaysRemaining: a.DaysRemaining(),
		IsCompleted:   a.Status == StatusCompleted,
		HasExtension:  r.HasExtension(),
		UrgencyScore:  a.UrgencyScore,
		RiskFactors:   a.RiskFactors,
	}
	if a.HasDeadline {
		e.Deadline = coerce.FormatDate(a.Deadline)
	}
	return e
}

// Full returns an entry for every valid record, in input order.
func Full(records []project.Record, now time.Time) []Entry {
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		if !r.IsValid() {
			continue
		}
		out = append(out, NewEntry(r, now))
	}
	return out
}

// NeedsAttention reports whether an entry belongs in the management view.
func NeedsAttention(e Entry) bool {
	return e.Status != StatusCompleted && e.Status != StatusOnTrack
}

// TopN returns the n entries most in need of attention: highest urgency
// first, then the least time remaining, then by name. n <= 0 means
// DefaultTopN.
func TopN(records []project.Record, now time.Time, n int) []Entry {
	if n <= 0 {
		n = DefaultTopN
	}
	var out []Entry
	for _, e := range Full(records, now) {
		if NeedsAttention(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UrgencyScore != b.UrgencyScore {
			return a.UrgencyScore > b.UrgencyScore
		}
		if da, db := remaining(a), remaining(b); da != db {
			return da < db
		}
		return a.Name < b.Name
	})
	if len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []Entry{}
	}
	return out
}

func remaining(e Entry) int {
	if e.DaysRemaining == nil {
		return math.MaxInt
	}
	return *e.DaysRemaining
}
