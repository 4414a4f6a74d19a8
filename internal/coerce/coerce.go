package coerce

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is the sentinel the QHSE sheet uses for cells that do not apply.
const NotAvailable = "N/A"

// Outcome tells whether a coercion produced a real value or fell back to a default.
type Outcome int

const (
	OK Outcome = iota
	Defaulted
)

const (
	ReasonEmpty        = "empty"
	ReasonNotAvailable = "not-available"
	ReasonMalformed    = "malformed"
)

// Result is the detailed outcome of a coercion. The Parse* helpers only
// expose Value; the normalizer uses Outcome and Reason for diagnostics.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Reason  string
}

func (r Result[T]) Defaulted() bool {
	return r.Outcome == Defaulted
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OK}
}

func defaulted[T any](reason string) Result[T] {
	var zero T
	return Result[T]{Value: zero, Outcome: Defaulted, Reason: reason}
}

// IsEmpty reports whether a cell is blank or carries the N/A sentinel.
func IsEmpty(v string) bool {
	return emptyReason(v) != ""
}

func emptyReason(v string) string {
	trimmed := strings.TrimSpace(v)
	switch trimmed {
	case "":
		return ReasonEmpty
	case NotAvailable:
		return ReasonNotAvailable
	}
	return ""
}

// Number converts a cell to a float64.
func Number(v string) Result[float64] {
	if reason := emptyReason(v); reason != "" {
		return defaulted[float64](reason)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return defaulted[float64](ReasonMalformed)
	}
	return ok(n)
}

// Percent converts a cell such as "95%" or "95" to 95.
func Percent(v string) Result[float64] {
	if reason := emptyReason(v); reason != "" {
		return defaulted[float64](reason)
	}
	trimmed := strings.TrimSpace(v)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	return Number(trimmed)
}

// ParseNumber never fails: empty, N/A and malformed cells are 0.
func ParseNumber(v string) float64 {
	return Number(v).Value
}

// ParsePercent never fails: empty, N/A and malformed cells are 0.
func ParsePercent(v string) float64 {
	return Percent(v).Value
}

var europeanDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2,4})$`)

const isoDate = "2006-01-02"

// Layouts tried in order for anything that is not a dotted DD.MM.YYYY date.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	isoDate,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-06",
}

// Date converts a cell to a date at UTC midnight. Timestamps keep the
// calendar date they were written with, whatever their offset.
func Date(v string) Result[time.Time] {
	if reason := emptyReason(v); reason != "" {
		return defaulted[time.Time](reason)
	}
	trimmed := strings.TrimSpace(v)

	if m := europeanDate.FindStringSubmatch(trimmed); m != nil {
		day, month, year := m[1], m[2], m[3]
		switch len(year) {
		case 2:
			year = "20" + year
		case 3:
			return defaulted[time.Time](ReasonMalformed)
		}
		rewritten := year + "-" + pad2(month) + "-" + pad2(day)
		t, err := time.Parse(isoDate, rewritten)
		if err != nil {
			return defaulted[time.Time](ReasonMalformed)
		}
		return ok(t)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return ok(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
		}
	}
	return defaulted[time.Time](ReasonMalformed)
}

// ParseDate returns false for empty, N/A and unparsable cells.
func ParseDate(v string) (time.Time, bool) {
	r := Date(v)
	return r.Value, !r.Defaulted()
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(isoDate)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
