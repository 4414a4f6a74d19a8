package processing

import (
	"time"

	"qhse_dashboard/internal/aggregate"
	"qhse_dashboard/internal/project"
	"qhse_dashboard/internal/risk"
	"qhse_dashboard/internal/timeline"

	"github.com/rs/zerolog/log"
)

// Summary is the condensed state of one fetch, used for logs and the check
// command.
type Summary struct {
	Records     int                           `json:"records"`
	Valid       int                           `json:"valid"`
	KPI         []aggregate.KPIStatusBucket   `json:"kpi"`
	QualityPlan []aggregate.QualityPlanBucket `json:"qualityPlan"`
	Risk        map[risk.Level]int            `json:"risk"`
	Attention   []timeline.Entry              `json:"attention"`
}

func Summarize(records []project.Record, now time.Time, topN int) Summary {
	return Summary{
		Records:     len(records),
		Valid:       len(project.Valid(records)),
		KPI:         aggregate.KPIStatus(records),
		QualityPlan: aggregate.QualityPlanStatus(records),
		Risk:        risk.Counts(records),
		Attention:   timeline.TopN(records, now, topN),
	}
}

// CriticalCount is the number of attention entries in Critical status.
func (s Summary) CriticalCount() int {
	n := 0
	for _, e := range s.Attention {
		if e.Status == timeline.StatusCritical {
			n++
		}
	}
	return n
}

func LogSummary(s Summary) {
	kpi := map[string]int{}
	for _, b := range s.KPI {
		kpi[b.Name] = b.Value
	}

	log.Info().
		Int("records", s.Records).
		Int("valid", s.Valid).
		Int("kpi_green", kpi[aggregate.KPIGreen]).
		Int("kpi_yellow", kpi[aggregate.KPIYellow]).
		Int("kpi_red", kpi[aggregate.KPIRed]).
		Int("risk_critical", s.Risk[risk.LevelCritical]).
		Int("risk_high", s.Risk[risk.LevelHigh]).
		Int("attention", len(s.Attention)).
		Int("schedule_critical", s.CriticalCount()).
		Msg("Dashboard summary")

	for _, e := range s.Attention {
		log.Debug().
			Str("project_no", e.ProjectNo).
			Str("status", string(e.Status)).
			Int("urgency", e.UrgencyScore).
			Strs("factors", e.RiskFactors).
			Msg("Needs attention")
	}
}
