package risk

import (
	"testing"

	"qhse_dashboard/internal/project"
	"qhse_dashboard/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessLevels(t *testing.T) {
	tests := []struct {
		name   string
		record project.Record
		want   Level
	}{
		{"empty record", project.Record{}, LevelLow},
		{"healthy project", project.Record{ProjectKPIsAchievedPercent: "95%", ProjectCompletionPercent: "40%", QualityBillabilityPercent: "80%"}, LevelLow},

		{"6 CARs alone", project.Record{CarsOpen: 6}, LevelCritical},
		{"5 CARs alone", project.Record{CarsOpen: 5}, LevelHigh},
		{"3 CARs alone tips high", project.Record{CarsOpen: 3}, LevelHigh},
		{"3 CARs with 31 day closing delay", project.Record{CarsOpen: 3, CarsDelayedClosingNoDays: 31}, LevelCritical},
		{"3 CARs with 30 day closing delay", project.Record{CarsOpen: 3, CarsDelayedClosingNoDays: 30}, LevelHigh},
		{"3 CARs with 31 day audit delay", project.Record{CarsOpen: 3, DelayInAuditsNoDays: 31}, LevelCritical},
		{"2 CARs with long delay", project.Record{CarsOpen: 2, CarsDelayedClosingNoDays: 45}, LevelHigh},
		{"audit delay 61", project.Record{DelayInAuditsNoDays: 61}, LevelCritical},
		{"audit delay 60", project.Record{DelayInAuditsNoDays: 60}, LevelHigh},
		{"audit delay 16", project.Record{DelayInAuditsNoDays: 16}, LevelHigh},
		{"audit delay 15", project.Record{DelayInAuditsNoDays: 15}, LevelMedium},
		{"low KPI with 3 CARs", project.Record{CarsOpen: 3, ProjectKPIsAchievedPercent: "49%"}, LevelCritical},
		{"low KPI with 5 observations", project.Record{ObsOpen: 5, ProjectKPIsAchievedPercent: "30"}, LevelCritical},
		{"KPI 50 with 3 CARs", project.Record{CarsOpen: 3, ProjectKPIsAchievedPercent: "50%"}, LevelHigh},

		{"1 CAR is the high floor with delayed closing", project.Record{CarsOpen: 1, CarsDelayedClosingNoDays: 1}, LevelHigh},
		{"1 CAR with 3 observations", project.Record{CarsOpen: 1, ObsOpen: 3}, LevelHigh},
		{"1 CAR with 2 observations", project.Record{CarsOpen: 1, ObsOpen: 2}, LevelMedium},
		{"1 CAR alone", project.Record{CarsOpen: 1}, LevelMedium},
		{"5 observations", project.Record{ObsOpen: 5}, LevelHigh},
		{"4 observations", project.Record{ObsOpen: 4}, LevelMedium},
		{"observation closing delay 31", project.Record{ObsDelayedClosingNoDays: 31}, LevelHigh},
		{"observation closing delay 30", project.Record{ObsDelayedClosingNoDays: 30}, LevelMedium},
		{"KPI 69", project.Record{ProjectKPIsAchievedPercent: "69%"}, LevelHigh},
		{"KPI 70", project.Record{ProjectKPIsAchievedPercent: "70%"}, LevelMedium},
		{"KPI 89", project.Record{ProjectKPIsAchievedPercent: "89%"}, LevelMedium},
		{"KPI 90", project.Record{ProjectKPIsAchievedPercent: "90%"}, LevelLow},
		{"KPI N/A is ignored", project.Record{ProjectKPIsAchievedPercent: "N/A"}, LevelLow},
		{"closing project with a CAR", project.Record{CarsOpen: 1, ProjectCompletionPercent: "90%"}, LevelHigh},
		{"low billability past half way", project.Record{QualityBillabilityPercent: "45%", ProjectCompletionPercent: "50%"}, LevelHigh},
		{"low billability early on", project.Record{QualityBillabilityPercent: "45%", ProjectCompletionPercent: "49%"}, LevelLow},
		{"low billability without completion", project.Record{QualityBillabilityPercent: "10%"}, LevelLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelOf(tt.record))
		})
	}
}

func TestAssessReasons(t *testing.T) {
	a := Assess(project.Record{ProjectNo: "P-1", ProjectTitle: "Roof", CarsOpen: 3, CarsDelayedClosingNoDays: 40, DelayInAuditsNoDays: 70})
	assert.Equal(t, LevelCritical, a.Level)
	assert.Equal(t, []string{
		"3 or more open CARs with closing or audit delay over 30 days",
		"Audits delayed over 60 days",
	}, a.Reasons)
	assert.Equal(t, "P-1", a.ProjectNo)

	low := Assess(project.Record{})
	assert.Equal(t, LevelLow, low.Level)
	assert.NotNil(t, low.Reasons)
	assert.Empty(t, low.Reasons)
}

func TestEndToEndFromSheetRows(t *testing.T) {
	values := [][]string{
		{"Project No", "Project Title", "CARs Open"},
		{"P-1", "Roof Audit", "6"},
	}
	records, _ := project.NormalizeValues(schema.Default(), values)
	require.Len(t, records, 1)
	assert.Equal(t, LevelCritical, LevelOf(records[0]))
}

func TestAssessAllAndCounts(t *testing.T) {
	records := []project.Record{
		{ProjectNo: "A", ProjectTitle: "a", CarsOpen: 7},
		{ProjectNo: "B", ProjectTitle: "b", CarsOpen: 3},
		{ProjectNo: "C", ProjectTitle: "c", ObsOpen: 1},
		{ProjectNo: "D", ProjectTitle: "d"},
		{ProjectNo: "", ProjectTitle: "invalid", CarsOpen: 9},
	}
	all := AssessAll(records)
	require.Len(t, all, 4)
	assert.Equal(t, "A", all[0].ProjectNo)

	assert.Equal(t, map[Level]int{
		LevelCritical: 1,
		LevelHigh:     1,
		LevelMedium:   1,
		LevelLow:      1,
	}, Counts(records))
}

func TestLevelRank(t *testing.T) {
	assert.Greater(t, LevelCritical.Rank(), LevelHigh.Rank())
	assert.Greater(t, LevelHigh.Rank(), LevelMedium.Rank())
	assert.Greater(t, LevelMedium.Rank(), LevelLow.Rank())
}
