package aggregate

import (
	"strings"
	"time"

	"qhse_dashboard/internal/coerce"
	"qhse_dashboard/internal/project"
)

// KPI bucket lower bounds, inclusive.
const (
	KPIGreenThreshold  = 90.0
	KPIYellowThreshold = 70.0
)

const (
	KPIGreen  = "Green"
	KPIYellow = "Yellow"
	KPIRed    = "Red"
)

type KPIStatusBucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// KPIStatusOf buckets a KPI achievement percentage.
func KPIStatusOf(percent float64) string {
	switch {
	case percent >= KPIGreenThreshold:
		return KPIGreen
	case percent >= KPIYellowThreshold:
		return KPIYellow
	default:
		return KPIRed
	}
}

// KPIStatus counts records per KPI bucket. All three buckets are always
// returned, Green first.
func KPIStatus(records []project.Record) []KPIStatusBucket {
	counts := map[string]int{}
	for _, r := range records {
		counts[KPIStatusOf(r.KPIAchieved())]++
	}
	return []KPIStatusBucket{
		{Name: KPIGreen, Value: counts[KPIGreen]},
		{Name: KPIYellow, Value: counts[KPIYellow]},
		{Name: KPIRed, Value: counts[KPIRed]},
	}
}

type ManhoursRow struct {
	Name    string  `json:"name"`
	Planned float64 `json:"Planned"`
	Used    float64 `json:"Used"`
	Balance float64 `json:"Balance"`
}

// Manhours returns one bar-chart row per record.
func Manhours(records []project.Record) []ManhoursRow {
	out := make([]ManhoursRow, 0, len(records))
	for _, r := range records {
		out = append(out, ManhoursRow{
			Name:    r.Name(),
			Planned: r.ManhoursUsed + r.ManhoursBalance,
			Used:    r.ManhoursUsed,
			Balance: r.ManhoursBalance,
		})
	}
	return out
}

type AuditStatus int

const (
	AuditNotApplicable AuditStatus = iota
	AuditCompleted
	AuditUpcoming
)

type AuditStatusBucket struct {
	Name          string `json:"name"`
	Completed     int    `json:"Completed"`
	Upcoming      int    `json:"Upcoming"`
	NotApplicable int    `json:"NotApplicable"`
}

// ClassifyAudit decides whether a planned audit date is behind or ahead of
// now. Blank, N/A, "not applicable" and unparsable values are not applicable.
func ClassifyAudit(value string, now time.Time) AuditStatus {
	if coerce.IsEmpty(value) || strings.EqualFold(strings.TrimSpace(value), "not applicable") {
		return AuditNotApplicable
	}
	date, ok := coerce.ParseDate(value)
	if !ok {
		return AuditNotApplicable
	}
	if date.Before(now) {
		return AuditCompleted
	}
	return AuditUpcoming
}

// AuditStatuses counts each of the four project audit columns separately.
func AuditStatuses(records []project.Record, now time.Time) []AuditStatusBucket {
	columns := []struct {
		name  string
		value func(project.Record) string
	}{
		{"Audit 1", func(r project.Record) string { return r.ProjectAudit1 }},
		{"Audit 2", func(r project.Record) string { return r.ProjectAudit2 }},
		{"Audit 3", func(r project.Record) string { return r.ProjectAudit3 }},
		{"Audit 4", func(r project.Record) string { return r.ProjectAudit4 }},
	}

	out := make([]AuditStatusBucket, 0, len(columns))
	for _, col := range columns {
		bucket := AuditStatusBucket{Name: col.name}
		for _, r := range records {
			switch ClassifyAudit(col.value(r), now) {
			case AuditCompleted:
				bucket.Completed++
			case AuditUpcoming:
				bucket.Upcoming++
			default:
				bucket.NotApplicable++
			}
		}
		out = append(out, bucket)
	}
	return out
}

const (
	QualityPlanIssued    = "Issued"
	QualityPlanNotIssued = "Not Issued"
)

type QualityPlanBucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// QualityPlanStatus counts records with and without a quality plan revision.
func QualityPlanStatus(records []project.Record) []QualityPlanBucket {
	issued := 0
	for _, r := range records {
		if !coerce.IsEmpty(r.ProjectQualityPlanStatusRev) {
			issued++
		}
	}
	return []QualityPlanBucket{
		{Name: QualityPlanIssued, Value: issued},
		{Name: QualityPlanNotIssued, Value: len(records) - issued},
	}
}
