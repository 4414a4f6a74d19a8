package project

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"qhse_dashboard/internal/coerce"
	"qhse_dashboard/internal/schema"

	"github.com/rs/zerolog/log"
)

// Diagnostics describes data-quality findings from one normalization pass.
// Nothing here rejects a row; it only reports.
type Diagnostics struct {
	Rows                int            `json:"rows"`
	ValidRecords        int            `json:"validRecords"`
	UnknownHeaders      []string       `json:"unknownHeaders"`
	MalformedCells      int            `json:"malformedCells"`
	DuplicateProjectNos map[string]int `json:"duplicateProjectNos"`
	Duplicates          int            `json:"duplicates"`
}

// setter stores v into its field and reports false when v does not fit.
type setter func(r *Record, v cell) bool

// cell carries the coerced forms of one raw value; setters pick the one
// matching their field type.
type cell struct {
	text   string
	number float64
}

func setText(f func(r *Record) *string) setter {
	return func(r *Record, v cell) bool {
		*f(r) = v.text
		return true
	}
}

// setInt truncates toward zero. Values outside the int range store 0.
func setInt(f func(r *Record) *int) setter {
	return func(r *Record, v cell) bool {
		n := math.Trunc(v.number)
		if !(n >= math.MinInt && n < math.MaxInt) {
			*f(r) = 0
			return false
		}
		*f(r) = int(n)
		return true
	}
}

func setFloat(f func(r *Record) *float64) setter {
	return func(r *Record, v cell) bool {
		*f(r) = v.number
		return true
	}
}

var setters = map[string]setter{
	schema.SrNo:                              setInt(func(r *Record) *int { return &r.SrNo }),
	schema.ProjectNo:                         setText(func(r *Record) *string { return &r.ProjectNo }),
	schema.ProjectTitle:                      setText(func(r *Record) *string { return &r.ProjectTitle }),
	schema.Client:                            setText(func(r *Record) *string { return &r.Client }),
	schema.ProjectManager:                    setText(func(r *Record) *string { return &r.ProjectManager }),
	schema.ProjectQualityEng:                 setText(func(r *Record) *string { return &r.ProjectQualityEng }),
	schema.ProjectStartingDate:               setText(func(r *Record) *string { return &r.ProjectStartingDate }),
	schema.ProjectClosingDate:                setText(func(r *Record) *string { return &r.ProjectClosingDate }),
	schema.ProjectExtension:                  setText(func(r *Record) *string { return &r.ProjectExtension }),
	schema.ProjectQualityPlanStatusIssueDate: setText(func(r *Record) *string { return &r.ProjectQualityPlanStatusIssueDate }),
	schema.ProjectAudit1:                     setText(func(r *Record) *string { return &r.ProjectAudit1 }),
	schema.ProjectAudit2:                     setText(func(r *Record) *string { return &r.ProjectAudit2 }),
	schema.ProjectAudit3:                     setText(func(r *Record) *string { return &r.ProjectAudit3 }),
	schema.ProjectAudit4:                     setText(func(r *Record) *string { return &r.ProjectAudit4 }),
	schema.ClientAudit1:                      setText(func(r *Record) *string { return &r.ClientAudit1 }),
	schema.ClientAudit2:                      setText(func(r *Record) *string { return &r.ClientAudit2 }),
	schema.ManHourForQuality:                 setFloat(func(r *Record) *float64 { return &r.ManHourForQuality }),
	schema.ManhoursUsed:                      setFloat(func(r *Record) *float64 { return &r.ManhoursUsed }),
	schema.ManhoursBalance:                   setFloat(func(r *Record) *float64 { return &r.ManhoursBalance }),
	schema.CarsOpen:                          setInt(func(r *Record) *int { return &r.CarsOpen }),
	schema.CarsClosed:                        setInt(func(r *Record) *int { return &r.CarsClosed }),
	schema.CarsDelayedClosingNoDays:          setInt(func(r *Record) *int { return &r.CarsDelayedClosingNoDays }),
	schema.ObsOpen:                           setInt(func(r *Record) *int { return &r.ObsOpen }),
	schema.ObsClosed:                         setInt(func(r *Record) *int { return &r.ObsClosed }),
	schema.ObsDelayedClosingNoDays:           setInt(func(r *Record) *int { return &r.ObsDelayedClosingNoDays }),
	schema.DelayInAuditsNoDays:               setInt(func(r *Record) *int { return &r.DelayInAuditsNoDays }),
	schema.CostOfPoorQualityAED:              setFloat(func(r *Record) *float64 { return &r.CostOfPoorQualityAED }),
	schema.QualityBillabilityPercent:         setText(func(r *Record) *string { return &r.QualityBillabilityPercent }),
	schema.ProjectKPIsAchievedPercent:        setText(func(r *Record) *string { return &r.ProjectKPIsAchievedPercent }),
	schema.ProjectCompletionPercent:          setText(func(r *Record) *string { return &r.ProjectCompletionPercent }),
	schema.RejectionOfDeliverablesPercent:    setText(func(r *Record) *string { return &r.RejectionOfDeliverablesPercent }),
	schema.ProjectQualityPlanStatusRev:       setText(func(r *Record) *string { return &r.ProjectQualityPlanStatusRev }),
	schema.Remarks:                           setText(func(r *Record) *string { return &r.Remarks }),
}

// NormalizeRow turns one sheet row into a Record. Cells missing from a short
// row read as "". It never fails; bad cells fall back to zero values.
func NormalizeRow(s *schema.Schema, headers, row []string) Record {
	rec, _ := normalizeRow(s, headers, row)
	return rec
}

func normalizeRow(s *schema.Schema, headers, row []string) (Record, int) {
	var rec Record
	malformed := 0
	seen := make(map[string]bool, len(headers))

	for i, header := range headers {
		raw := ""
		if i < len(row) {
			raw = row[i]
		}

		field := s.Resolve(header)
		if field == "" {
			field = fmt.Sprintf("column%d", i+1)
		}

		var v cell
		switch s.KindOf(field) {
		case schema.KindNumber:
			res := coerce.Number(raw)
			if res.Reason == coerce.ReasonMalformed {
				malformed++
				log.Debug().
					Str("field", field).
					Str("value", raw).
					Msg("Malformed number cell, defaulting to 0")
			}
			v = cell{number: res.Value, text: formatNumber(res.Value)}
		case schema.KindDate:
			res := coerce.Date(raw)
			if res.Reason == coerce.ReasonMalformed {
				malformed++
				log.Debug().
					Str("field", field).
					Str("value", raw).
					Msg("Unparsable date cell, treating as empty")
			}
			if !res.Defaulted() {
				v.text = coerce.FormatDate(res.Value)
			}
		default:
			// Percent fields stay raw; consumers parse them on demand.
			v.text = strings.TrimSpace(raw)
			v.number = coerce.ParseNumber(raw)
		}

		if set, ok := setters[field]; ok {
			if !set(&rec, v) {
				malformed++
				log.Debug().
					Str("field", field).
					Str("value", raw).
					Msg("Number cell out of range, defaulting to 0")
			}
		} else {
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[field] = v.text
		}

		if !seen[field] {
			seen[field] = true
			rec.fields = append(rec.fields, field)
		}
	}
	return rec, malformed
}

func formatNumber(n float64) string {
	return fmt.Sprintf("%g", n)
}

// NormalizeValues converts a full values matrix, first row headers, into
// records. Row order is kept and duplicates are reported, not merged.
func NormalizeValues(s *schema.Schema, values [][]string) ([]Record, Diagnostics) {
	diag := Diagnostics{
		UnknownHeaders:      []string{},
		DuplicateProjectNos: map[string]int{},
	}
	if len(values) == 0 {
		return []Record{}, diag
	}

	headers := values[0]
	for _, h := range headers {
		if strings.TrimSpace(h) != "" && !s.IsKnown(h) {
			diag.UnknownHeaders = append(diag.UnknownHeaders, h)
		}
	}

	records := make([]Record, 0, len(values)-1)
	counts := make(map[string]int)
	for _, row := range values[1:] {
		rec, malformed := normalizeRow(s, headers, row)
		diag.MalformedCells += malformed
		if rec.IsValid() {
			diag.ValidRecords++
			counts[strings.TrimSpace(rec.ProjectNo)]++
		}
		records = append(records, rec)
	}
	diag.Rows = len(records)

	for no, n := range counts {
		if n > 1 {
			diag.DuplicateProjectNos[no] = n
			diag.Duplicates += n - 1
		}
	}

	if len(diag.UnknownHeaders) > 0 {
		log.Debug().
			Strs("headers", diag.UnknownHeaders).
			Msg("Sheet has headers without an explicit mapping")
	}
	if diag.Duplicates > 0 {
		dups := make([]string, 0, len(diag.DuplicateProjectNos))
		for no := range diag.DuplicateProjectNos {
			dups = append(dups, no)
		}
		sort.Strings(dups)
		log.Warn().
			Strs("project_nos", dups).
			Int("duplicates", diag.Duplicates).
			Msg("Duplicate project numbers in sheet")
	}

	return records, diag
}
