package report

import (
	"fmt"
	"strings"
	"time"

	"qhse_dashboard/internal/aggregate"
	"qhse_dashboard/internal/project"
	"qhse_dashboard/internal/risk"
	"qhse_dashboard/internal/timeline"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	SheetProjects = "Projects"
	SheetMonthly  = "Monthly"
	SheetYearly   = "Yearly"
	SheetKPI      = "KPI"
	SheetAudits   = "Audits"
	SheetTimeline = "Timeline"
	SheetRisk     = "Risk"
)

type table struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

// Build lays out records and every derived view as one sheet each.
func Build(records []project.Record, now time.Time) (*excelize.File, error) {
	tables := []table{
		projectsTable(records),
		overviewTable(SheetMonthly, aggregate.MonthlyOverview(records)),
		overviewTable(SheetYearly, aggregate.YearlyOverview(records)),
		kpiTable(records),
		auditsTable(records, now),
		timelineTable(records, now),
		riskTable(records),
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", t.name, err)
		}
		if err := writeTable(f, t, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook builds the report and saves it to path.
func WriteWorkbook(path string, records []project.Record, now time.Time) error {
	f, err := Build(records, now)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	log.Info().
		Str("path", path).
		Int("records", len(records)).
		Msg("Wrote dashboard workbook")
	return nil
}

func writeTable(f *excelize.File, t table, headerStyle int) error {
	if err := f.SetSheetRow(t.name, "A1", &t.header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", t.name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(t.header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(t.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", t.name, err)
	}

	for i := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.name, cell, &t.rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", t.name, i+2, err)
		}
	}
	return f.SetPanes(t.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func projectsTable(records []project.Record) table {
	t := table{
		name: SheetProjects,
		header: []interface{}{
			"Project No", "Project Title", "Client", "Project Manager", "Quality Engineer",
			"Starting Date", "Closing Date", "Extension", "Completion %", "KPIs Achieved %",
			"Billability %", "CARs Open", "CARs Closed", "Obs Open", "Obs Closed",
			"Audit Delay (days)", "Manhours Used", "Manhours Balance", "Cost of Poor Quality (AED)",
			"Quality Plan Rev", "Remarks",
		},
	}
	for _, r := range records {
		t.rows = append(t.rows, []interface{}{
			r.ProjectNo, r.ProjectTitle, r.Client, r.ProjectManager, r.ProjectQualityEng,
			r.ProjectStartingDate, r.ProjectClosingDate, r.ProjectExtension, r.Completion(), r.KPIAchieved(),
			r.Billability(), r.CarsOpen, r.CarsClosed, r.ObsOpen, r.ObsClosed,
			r.DelayInAuditsNoDays, r.ManhoursUsed, r.ManhoursBalance, r.CostOfPoorQualityAED,
			r.ProjectQualityPlanStatusRev, r.Remarks,
		})
	}
	return t
}

func overviewTable(name string, rows []aggregate.OverviewRow) table {
	t := table{
		name:   name,
		header: []interface{}{"Period", "CARs Open", "Obs Open", "KPI Achieved %", "Billability %", "Projects"},
	}
	for _, o := range rows {
		t.rows = append(t.rows, []interface{}{o.Name, o.CarsOpen, o.ObsOpen, o.KPIAchieved, o.Billability, o.Count})
	}
	return t
}

func kpiTable(records []project.Record) table {
	t := table{name: SheetKPI, header: []interface{}{"Status", "Projects"}}
	for _, b := range aggregate.KPIStatus(records) {
		t.rows = append(t.rows, []interface{}{b.Name, b.Value})
	}
	for _, b := range aggregate.QualityPlanStatus(records) {
		t.rows = append(t.rows, []interface{}{"Quality Plan " + b.Name, b.Value})
	}
	return t
}

func auditsTable(records []project.Record, now time.Time) table {
	t := table{name: SheetAudits, header: []interface{}{"Audit", "Completed", "Upcoming", "Not Applicable"}}
	for _, b := range aggregate.AuditStatuses(records, now) {
		t.rows = append(t.rows, []interface{}{b.Name, b.Completed, b.Upcoming, b.NotApplicable})
	}
	return t
}

func timelineTable(records []project.Record, now time.Time) table {
	t := table{
		name: SheetTimeline,
		header: []interface{}{
			"Project No", "Project Title", "Status", "Urgency", "Progress %",
			"Deadline", "Days Remaining", "Extended", "Risk Factors",
		},
	}
	for _, e := range timeline.Full(records, now) {
		var days interface{}
		if e.DaysRemaining != nil {
			days = *e.DaysRemaining
		}
		t.rows = append(t.rows, []interface{}{
			e.ProjectNo, e.Name, string(e.Status), e.UrgencyScore, e.Progress,
			e.Deadline, days, e.HasExtension, strings.Join(e.RiskFactors, "; "),
		})
	}
	return t
}

func riskTable(records []project.Record) table {
	t := table{name: SheetRisk, header: []interface{}{"Project No", "Project Title", "Level", "Reasons"}}
	for _, a := range risk.AssessAll(records) {
		t.rows = append(t.rows, []interface{}{a.ProjectNo, a.Name, string(a.Level), strings.Join(a.Reasons, "; ")})
	}
	return t
}
