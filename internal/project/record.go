package project

import (
	"strings"

	"qhse_dashboard/internal/coerce"
)

// Record is one project row of the QHSE sheet. Dates are YYYY-MM-DD strings
// with "" meaning no date. Percent fields keep the raw cell text so callers
// decide when to parse them.
type Record struct {
	SrNo              int    `json:"srNo"`
	ProjectNo         string `json:"projectNo"`
	ProjectTitle      string `json:"projectTitle"`
	Client            string `json:"client"`
	ProjectManager    string `json:"projectManager"`
	ProjectQualityEng string `json:"projectQualityEng"`

	ProjectStartingDate               string `json:"projectStartingDate,omitempty"`
	ProjectClosingDate                string `json:"projectClosingDate,omitempty"`
	ProjectExtension                  string `json:"projectExtension,omitempty"`
	ProjectQualityPlanStatusIssueDate string `json:"projectQualityPlanStatusIssueDate,omitempty"`
	ProjectAudit1                     string `json:"projectAudit1,omitempty"`
	ProjectAudit2                     string `json:"projectAudit2,omitempty"`
	ProjectAudit3                     string `json:"projectAudit3,omitempty"`
	ProjectAudit4                     string `json:"projectAudit4,omitempty"`
	ClientAudit1                      string `json:"clientAudit1,omitempty"`
	ClientAudit2                      string `json:"clientAudit2,omitempty"`

	ManHourForQuality        float64 `json:"manHourForQuality"`
	ManhoursUsed             float64 `json:"manhoursUsed"`
	ManhoursBalance          float64 `json:"manhoursBalance"`
	CarsOpen                 int     `json:"carsOpen"`
	CarsClosed               int     `json:"carsClosed"`
	CarsDelayedClosingNoDays int     `json:"carsDelayedClosingNoDays"`
	ObsOpen                  int     `json:"obsOpen"`
	ObsClosed                int     `json:"obsClosed"`
	ObsDelayedClosingNoDays  int     `json:"obsDelayedClosingNoDays"`
	DelayInAuditsNoDays      int     `json:"delayInAuditsNoDays"`
	CostOfPoorQualityAED     float64 `json:"costOfPoorQualityAED"`

	QualityBillabilityPercent      string `json:"qualityBillabilityPercent"`
	ProjectKPIsAchievedPercent     string `json:"projectKPIsAchievedPercent"`
	ProjectCompletionPercent       string `json:"projectCompletionPercent"`
	RejectionOfDeliverablesPercent string `json:"rejectionOfDeliverablesPercent"`

	ProjectQualityPlanStatusRev string `json:"projectQualityPlanStatusRev"`
	Remarks                     string `json:"remarks"`

	// Extra holds columns the record has no typed field for, keyed by their
	// canonical (usually camel-cased) name.
	Extra map[string]string `json:"extra,omitempty"`

	fields []string
}

// IsValid reports whether the record identifies a project. Most views skip
// invalid records.
func (r Record) IsValid() bool {
	return present(r.ProjectNo) && present(r.ProjectTitle)
}

func present(v string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed != "" && trimmed != coerce.NotAvailable
}

// FieldNames lists the canonical names populated by the normalizer, in
// header order, without repeats.
func (r Record) FieldNames() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Name is the label used by chart rows: the project number, or the title
// when the number is missing.
func (r Record) Name() string {
	if present(r.ProjectNo) {
		return strings.TrimSpace(r.ProjectNo)
	}
	return strings.TrimSpace(r.ProjectTitle)
}

// Deadline returns the extension date when there is one, else the closing date.
func (r Record) Deadline() string {
	if r.ProjectExtension != "" {
		return r.ProjectExtension
	}
	return r.ProjectClosingDate
}

// HasExtension reports whether the project's deadline was extended.
func (r Record) HasExtension() bool {
	return present(r.ProjectExtension)
}

// Completion is the parsed project completion percentage.
func (r Record) Completion() float64 {
	return coerce.ParsePercent(r.ProjectCompletionPercent)
}

// KPIAchieved is the parsed KPI achievement percentage.
func (r Record) KPIAchieved() float64 {
	return coerce.ParsePercent(r.ProjectKPIsAchievedPercent)
}

// Billability is the parsed quality billability percentage.
func (r Record) Billability() float64 {
	return coerce.ParsePercent(r.QualityBillabilityPercent)
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := r
	if r.Extra != nil {
		c.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	if r.fields != nil {
		c.fields = r.FieldNames()
	}
	return c
}

// Valid filters records down to the ones that identify a project.
func Valid(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.IsValid() {
			out = append(out, r)
		}
	}
	return out
}
