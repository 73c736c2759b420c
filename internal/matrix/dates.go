package matrix

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// LabelLayout is the Go layout of a strict date label.
const LabelLayout = "20060102"

// maxSerial is the first day number past 9999-12-31 in spreadsheet serial terms.
const maxSerial = 2958466

var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var headerLayouts = []string{
	"2006-1-2",
	"2006.1.2",
	"2006.1.2.",
	"2006/1/2",
}

// IsStrictLabel reports whether s is exactly eight ASCII digits after trimming.
func IsStrictLabel(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatLabel renders t as YYYYMMDD.
func FormatLabel(t time.Time) string {
	return t.Format(LabelLayout)
}

// DigitLabel keeps only the digits of raw and returns them when exactly
// eight remain, so "2025-01-03" and "20250103" resolve to the same label.
func DigitLabel(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	return d, len(d) == 8
}

// LabelValue is the numeric value of an 8-digit label for ordering.
func LabelValue(label string) int {
	n, err := strconv.Atoi(label)
	if err != nil {
		return -1
	}
	return n
}

// HeaderDate resolves a header cell to a calendar date. Date cells are
// taken as they are. Number cells are tried as a spreadsheet serial first,
// then like text, which goes through digit extraction and the separated
// layouts. Text is never read as a serial, so "45000" typed as text is
// not a date.
func HeaderDate(c CellValue) (time.Time, bool) {
	switch c.kind {
	case KindDate:
		return c.date, true
	case KindNumber:
		if days := math.Trunc(c.num); days >= 0 && days < maxSerial {
			return serialEpoch.AddDate(0, 0, int(days)), true
		}
		return parseDateText(c.String())
	case KindText:
		return parseDateText(c.text)
	}
	return time.Time{}, false
}

// ParseDateArg accepts the text forms of HeaderDate, for dates typed by a
// user. Bare serial numbers are rejected.
func ParseDateArg(s string) (time.Time, bool) {
	return parseDateText(s)
}

func parseDateText(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if d, ok := DigitLabel(s); ok {
		if t, err := time.Parse(LabelLayout, d); err == nil {
			return t, true
		}
	}
	for _, layout := range headerLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
