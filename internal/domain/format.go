package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateTimeLayout is the wall-clock layout used for merge keys and weather timestamps.
const DateTimeLayout = "2006-01-02 15:04:05"

// DateLayout is the layout of the cleaned collision date.
const DateLayout = "2006-01-02"

// FormatTime renders t with DateTimeLayout, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateTimeLayout)
}

// FormatFloat renders the shortest representation of *v, or "" when v is nil.
func FormatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatString dereferences s, returning "" when s is nil.
func FormatString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ParseOptionalFloat parses a numeric cell. Blank, "NA" and non-numeric cells are missing.
func ParseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseOptionalString trims a text cell. Blank and "NA" cells are missing.
func ParseOptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return nil
	}
	return &s
}

func isMissing(s string) bool {
	return s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "NaN")
}
