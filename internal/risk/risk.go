package risk

import (
	"qhse_dashboard/internal/coerce"
	"qhse_dashboard/internal/project"
)

type Level string

const (
	LevelCritical Level = "CRITICAL"
	LevelHigh     Level = "HIGH"
	LevelMedium   Level = "MEDIUM"
	LevelLow      Level = "LOW"
)

// Rank orders levels for sorting, CRITICAL highest.
func (l Level) Rank() int {
	switch l {
	case LevelCritical:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// Thresholds. Day counts are strict (>), everything else inclusive (>=, <).
const (
	CriticalCARsAlone       = 6
	CriticalCARsCombined    = 3
	CriticalCombinedDelay   = 30
	CriticalAuditDelay      = 60
	CriticalKPI             = 50.0
	CriticalObsWithLowKPI   = 5
	HighCARs                = 3
	HighCARsFloor           = 1
	HighObsWithCARs         = 3
	HighAuditDelay          = 15
	HighObs                 = 5
	HighObsClosingDelay     = 30
	HighKPI                 = 70.0
	HighCompletionClosing   = 90.0
	HighBillability         = 50.0
	HighBillabilityProgress = 50.0
	MediumKPI               = 90.0
)

// Assessment is the risk level of one project and the rules that fired.
type Assessment struct {
	ProjectNo string   `json:"projectNo"`
	Name      string   `json:"name"`
	Level     Level    `json:"level"`
	Reasons   []string `json:"reasons"`
}

type inputs struct {
	carsOpen      int
	obsOpen       int
	auditDelay    int
	carDelay      int
	obsDelay      int
	kpi           float64
	completion    float64
	billability   float64
	hasKPI        bool
	hasCompletion bool
	hasBill       bool
}

func inputsOf(r project.Record) inputs {
	kpi := coerce.Percent(r.ProjectKPIsAchievedPercent)
	completion := coerce.Percent(r.ProjectCompletionPercent)
	bill := coerce.Percent(r.QualityBillabilityPercent)
	return inputs{
		carsOpen:      r.CarsOpen,
		obsOpen:       r.ObsOpen,
		auditDelay:    r.DelayInAuditsNoDays,
		carDelay:      r.CarsDelayedClosingNoDays,
		obsDelay:      r.ObsDelayedClosingNoDays,
		kpi:           kpi.Value,
		completion:    completion.Value,
		billability:   bill.Value,
		hasKPI:        !kpi.Defaulted(),
		hasCompletion: !completion.Defaulted(),
		hasBill:       !bill.Defaulted(),
	}
}

type rule struct {
	reason string
	match  func(in inputs) bool
}

type tier struct {
	level Level
	rules []rule
}

// Tiers are evaluated top down; the first tier with a matching rule wins.
var tiers = []tier{
	{LevelCritical, []rule{
		{"6 or more open CARs", func(in inputs) bool {
			return in.carsOpen >= CriticalCARsAlone
		}},
		{"3 or more open CARs with closing or audit delay over 30 days", func(in inputs) bool {
			return in.carsOpen >= CriticalCARsCombined &&
				(in.carDelay > CriticalCombinedDelay || in.auditDelay > CriticalCombinedDelay)
		}},
		{"Audits delayed over 60 days", func(in inputs) bool {
			return in.auditDelay > CriticalAuditDelay
		}},
		{"KPI below 50% with open findings", func(in inputs) bool {
			return in.hasKPI && in.kpi < CriticalKPI &&
				(in.carsOpen >= CriticalCARsCombined || in.obsOpen >= CriticalObsWithLowKPI)
		}},
	}},
	{LevelHigh, []rule{
		{"3 or more open CARs", func(in inputs) bool {
			return in.carsOpen >= HighCARs
		}},
		{"Open CARs with delayed closing or 3 or more open observations", func(in inputs) bool {
			return in.carsOpen >= HighCARsFloor && (in.carDelay > 0 || in.obsOpen >= HighObsWithCARs)
		}},
		{"Audits delayed over 15 days", func(in inputs) bool {
			return in.auditDelay > HighAuditDelay
		}},
		{"5 or more open observations", func(in inputs) bool {
			return in.obsOpen >= HighObs
		}},
		{"Observation closing delayed over 30 days", func(in inputs) bool {
			return in.obsDelay > HighObsClosingDelay
		}},
		{"KPI below 70%", func(in inputs) bool {
			return in.hasKPI && in.kpi < HighKPI
		}},
		{"Open CARs on a project 90% complete", func(in inputs) bool {
			return in.hasCompletion && in.completion >= HighCompletionClosing && in.carsOpen >= HighCARsFloor
		}},
		{"Billability below 50% past half completion", func(in inputs) bool {
			return in.hasBill && in.billability < HighBillability &&
				in.hasCompletion && in.completion >= HighBillabilityProgress
		}},
	}},
	{LevelMedium, []rule{
		{"Open CARs", func(in inputs) bool { return in.carsOpen > 0 }},
		{"Open observations", func(in inputs) bool { return in.obsOpen > 0 }},
		{"Audit delay", func(in inputs) bool { return in.auditDelay > 0 }},
		{"Delayed CAR or observation closing", func(in inputs) bool { return in.carDelay > 0 || in.obsDelay > 0 }},
		{"KPI below 90%", func(in inputs) bool { return in.hasKPI && in.kpi < MediumKPI }},
	}},
}

// Assess classifies a record. Reasons lists every rule of the winning tier
// that matched.
func Assess(r project.Record) Assessment {
	in := inputsOf(r)
	a := Assessment{ProjectNo: r.ProjectNo, Name: r.ProjectTitle, Level: LevelLow, Reasons: []string{}}
	for _, t := range tiers {
		for _, rl := range t.rules {
			if rl.match(in) {
				a.Reasons = append(a.Reasons, rl.reason)
			}
		}
		if len(a.Reasons) > 0 {
			a.Level = t.level
			return a
		}
	}
	return a
}

// LevelOf is Assess without the reasons.
func LevelOf(r project.Record) Level {
	return Assess(r).Level
}

// AssessAll classifies every valid record, input order kept.
func AssessAll(records []project.Record) []Assessment {
	out := make([]Assessment, 0, len(records))
	for _, r := range records {
		if !r.IsValid() {
			continue
		}
		out = append(out, Assess(r))
	}
	return out
}

// Counts tallies valid records per level.
func Counts(records []project.Record) map[Level]int {
	counts := map[Level]int{LevelCritical: 0, LevelHigh: 0, LevelMedium: 0, LevelLow: 0}
	for _, a := range AssessAll(records) {
		counts[a.Level]++
	}
	return counts
}
