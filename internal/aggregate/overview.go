package aggregate

import (
	"sort"
	"time"

	"qhse_dashboard/internal/coerce"
	"qhse_dashboard/internal/project"

	"github.com/shopspring/decimal"
)

// OverviewRow is one period of the overview chart. CARs and observations are
// summed; KPI and billability are the mean over the period's projects.
type OverviewRow struct {
	Name        string  `json:"name"`
	Period      string  `json:"period"`
	CarsOpen    int     `json:"carsOpen"`
	ObsOpen     int     `json:"obsOpen"`
	KPIAchieved float64 `json:"kpiAchieved"`
	Billability float64 `json:"billability"`
	Count       int     `json:"count"`
}

type (
	MonthlyOverviewRow = OverviewRow
	YearlyOverviewRow  = OverviewRow
)

type overviewGroup struct {
	start   time.Time
	row     OverviewRow
	kpiSum  float64
	billSum float64
}

// MonthlyOverview groups records by the month of their starting date.
// Records without a parsable starting date are left out.
func MonthlyOverview(records []project.Record) []MonthlyOverviewRow {
	return overview(records, func(t time.Time) (time.Time, string, string) {
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.Format("Jan 2006"), start.Format("2006-01")
	})
}

// YearlyOverview groups records by the year of their starting date.
func YearlyOverview(records []project.Record) []YearlyOverviewRow {
	return overview(records, func(t time.Time) (time.Time, string, string) {
		start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.Format("2006"), start.Format("2006")
	})
}

func overview(records []project.Record, bucket func(time.Time) (time.Time, string, string)) []OverviewRow {
	groups := make(map[string]*overviewGroup)
	for _, r := range records {
		started, ok := coerce.ParseDate(r.ProjectStartingDate)
		if !ok {
			continue
		}
		start, name, period := bucket(started)
		g, ok := groups[period]
		if !ok {
			g = &overviewGroup{start: start, row: OverviewRow{Name: name, Period: period}}
			groups[period] = g
		}
		g.row.CarsOpen += r.CarsOpen
		g.row.ObsOpen += r.ObsOpen
		g.kpiSum += r.KPIAchieved()
		g.billSum += r.Billability()
		g.row.Count++
	}

	sorted := make([]*overviewGroup, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start.Before(sorted[j].start) })

	out := make([]OverviewRow, 0, len(sorted))
	for _, g := range sorted {
		g.row.KPIAchieved = mean(g.kpiSum, g.row.Count)
		g.row.Billability = mean(g.billSum, g.row.Count)
		out = append(out, g.row)
	}
	return out
}

// mean divides and rounds to two decimals.
func mean(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return decimal.NewFromFloat(sum).
		Div(decimal.NewFromInt(int64(count))).
		Round(2).
		InexactFloat64()
}
