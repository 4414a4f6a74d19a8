package schema

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Canonical field names shared by the normalizer and the record type.
const (
	SrNo                              = "srNo"
	ProjectNo                         = "projectNo"
	ProjectTitle                      = "projectTitle"
	Client                            = "client"
	ProjectManager                    = "projectManager"
	ProjectQualityEng                 = "projectQualityEng"
	ProjectStartingDate               = "projectStartingDate"
	ProjectClosingDate                = "projectClosingDate"
	ProjectExtension                  = "projectExtension"
	ManHourForQuality                 = "manHourForQuality"
	ManhoursUsed                      = "manhoursUsed"
	ManhoursBalance                   = "manhoursBalance"
	QualityBillabilityPercent         = "qualityBillabilityPercent"
	ProjectQualityPlanStatusRev       = "projectQualityPlanStatusRev"
	ProjectQualityPlanStatusIssueDate = "projectQualityPlanStatusIssueDate"
	ProjectAudit1                     = "projectAudit1"
	ProjectAudit2                     = "projectAudit2"
	ProjectAudit3                     = "projectAudit3"
	ProjectAudit4                     = "projectAudit4"
	ClientAudit1                      = "clientAudit1"
	ClientAudit2                      = "clientAudit2"
	DelayInAuditsNoDays               = "delayInAuditsNoDays"
	CarsOpen                          = "carsOpen"
	CarsDelayedClosingNoDays          = "carsDelayedClosingNoDays"
	CarsClosed                        = "carsClosed"
	ObsOpen                           = "obsOpen"
	ObsDelayedClosingNoDays           = "obsDelayedClosingNoDays"
	ObsClosed                         = "obsClosed"
	ProjectKPIsAchievedPercent        = "projectKPIsAchievedPercent"
	ProjectCompletionPercent          = "projectCompletionPercent"
	RejectionOfDeliverablesPercent    = "rejectionOfDeliverablesPercent"
	CostOfPoorQualityAED              = "costOfPoorQualityAED"
	Remarks                           = "remarks"
)

// Kind decides how the normalizer coerces a cell.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindPercent
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindPercent:
		return "percent"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

var defaultHeaders = map[string]string{
	"Sr No":                                    SrNo,
	"Sr. No.":                                  SrNo,
	"Project No":                               ProjectNo,
	"Project Title":                            ProjectTitle,
	"Client":                                   Client,
	"Project Manager":                          ProjectManager,
	"Project Quality Eng":                      ProjectQualityEng,
	"Project Starting Date":                    ProjectStartingDate,
	"Project Closing Date":                     ProjectClosingDate,
	"Project Extension":                        ProjectExtension,
	"Manhours for Quality":                     ManHourForQuality,
	"Manhours Used":                            ManhoursUsed,
	"Manhours Balance":                         ManhoursBalance,
	"Quality Billability %":                    QualityBillabilityPercent,
	"Project Quality Plan status - Rev":        ProjectQualityPlanStatusRev,
	"Project Quality Plan status - Issued Date": ProjectQualityPlanStatusIssueDate,
	"Project Audit 1":                          ProjectAudit1,
	"Project Audit 2":                          ProjectAudit2,
	"Project Audit 3":                          ProjectAudit3,
	"Project Audit 4":                          ProjectAudit4,
	"Client Audit 1":                           ClientAudit1,
	"Client Audit 2":                           ClientAudit2,
	"Delay in Audits - No. of Days":            DelayInAuditsNoDays,
	"CARs Open":                                CarsOpen,
	"CARs Delayed closing No. days":            CarsDelayedClosingNoDays,
	"CARs Closed":                              CarsClosed,
	"No. of Obs Open":                          ObsOpen,
	"Obs Open":                                 ObsOpen,
	"Obs Delayed closing No. of Days":          ObsDelayedClosingNoDays,
	"Obs Closed":                               ObsClosed,
	"Project KPIs Achieved %":                  ProjectKPIsAchievedPercent,
	"Project Completion %":                     ProjectCompletionPercent,
	"Rejection of Deliverables %":              RejectionOfDeliverablesPercent,
	"Cost of Poor Quality in AED":              CostOfPoorQualityAED,
	"Remarks":                                  Remarks,
}

var defaultNumeric = []string{
	SrNo,
	ManHourForQuality,
	ManhoursUsed,
	ManhoursBalance,
	DelayInAuditsNoDays,
	CarsOpen,
	CarsDelayedClosingNoDays,
	CarsClosed,
	ObsOpen,
	ObsDelayedClosingNoDays,
	ObsClosed,
	CostOfPoorQualityAED,
}

var defaultDates = []string{
	ProjectStartingDate,
	ProjectClosingDate,
	ProjectExtension,
	ProjectQualityPlanStatusIssueDate,
	ProjectAudit1,
	ProjectAudit2,
	ProjectAudit3,
	ProjectAudit4,
	ClientAudit1,
	ClientAudit2,
}

// Schema maps raw sheet headers to canonical field names and records which
// fields are numeric or dates.
type Schema struct {
	headers map[string]string
	numeric map[string]bool
	dates   map[string]bool
}

// Default returns a fresh copy of the QHSE project sheet schema.
func Default() *Schema {
	return New(defaultHeaders, defaultNumeric, defaultDates)
}

func New(headers map[string]string, numeric, dates []string) *Schema {
	s := &Schema{
		headers: make(map[string]string, len(headers)),
		numeric: toSet(numeric),
		dates:   toSet(dates),
	}
	for raw, field := range headers {
		s.headers[strings.TrimSpace(raw)] = field
	}
	return s
}

// Resolve returns the canonical field name for a raw header. Headers missing
// from the table are camel-cased instead of rejected.
func (s *Schema) Resolve(header string) string {
	if field, ok := s.headers[strings.TrimSpace(header)]; ok {
		return field
	}
	return CamelCase(header)
}

// IsKnown reports whether the header has an explicit mapping.
func (s *Schema) IsKnown(header string) bool {
	_, ok := s.headers[strings.TrimSpace(header)]
	return ok
}

// KindOf classifies a canonical field. Numeric membership wins over the
// percent naming rule, which wins over date membership.
func (s *Schema) KindOf(field string) Kind {
	switch {
	case s.numeric[field]:
		return KindNumber
	case strings.Contains(field, "Percent") || strings.Contains(field, "percent"):
		return KindPercent
	case s.dates[field]:
		return KindDate
	default:
		return KindText
	}
}

// Headers returns a copy of the header table.
func (s *Schema) Headers() map[string]string {
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		out[k] = v
	}
	return out
}

var nonWord = regexp.MustCompile(`\W`)

// CamelCase lower-cases the first word, upper-cases the first letter of the
// rest and strips every non-word character:
// "Site Safety Officer" -> "siteSafetyOfficer", "Site e-mail" -> "siteEmail".
func CamelCase(header string) string {
	words := strings.Fields(header)
	// Casers are stateful, so each call gets its own.
	lower := cases.Lower(language.Und)
	upper := cases.Upper(language.Und)
	var sb strings.Builder
	for i, w := range words {
		if i == 0 {
			sb.WriteString(lower.String(w))
			continue
		}
		first, size := utf8.DecodeRuneInString(w)
		sb.WriteString(upper.String(string(first)))
		sb.WriteString(w[size:])
	}
	return nonWord.ReplaceAllString(sb.String(), "")
}

// File is the YAML shape accepted by Load.
type File struct {
	Headers map[string]string `yaml:"headers"`
	Numeric []string          `yaml:"numeric"`
	Dates   []string          `yaml:"dates"`
}

// Load reads a YAML override. Header entries merge over the default table;
// numeric and dates lists replace the defaults when present.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Schema, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	headers := make(map[string]string, len(defaultHeaders)+len(f.Headers))
	for k, v := range defaultHeaders {
		headers[k] = v
	}
	for k, v := range f.Headers {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("schema header %q maps to an empty field name", k)
		}
		headers[k] = v
	}

	numeric := defaultNumeric
	if f.Numeric != nil {
		numeric = f.Numeric
	}
	dates := defaultDates
	if f.Dates != nil {
		dates = f.Dates
	}
	return New(headers, numeric, dates), nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
