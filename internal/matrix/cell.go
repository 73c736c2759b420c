package matrix

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the CellValue variants.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNumber
	KindText
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	default:
		return "absent"
	}
}

// CellValue is one cell of a TimeMatrix. The zero value is Absent.
type CellValue struct {
	kind Kind
	num  float64
	text string
	date time.Time
}

// Absent returns the "no observation" cell.
func Absent() CellValue { return CellValue{} }

// Number returns a numeric cell. NaN and infinities are stored as Absent.
func Number(v float64) CellValue {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return CellValue{}
	}
	return CellValue{kind: KindNumber, num: v}
}

// Text returns a text cell; blank text is Absent.
func Text(s string) CellValue {
	if strings.TrimSpace(s) == "" {
		return CellValue{}
	}
	return CellValue{kind: KindText, text: s}
}

// Date returns a calendar date cell truncated to the day.
func Date(t time.Time) CellValue {
	y, m, d := t.Date()
	return CellValue{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseCell interprets raw stored text of a data cell. Numeric text becomes
// a Number, blank text is Absent, anything else is Text.
func ParseCell(raw string) CellValue {
	s := strings.TrimSpace(raw)
	if s == "" {
		return CellValue{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f)
	}
	return Text(raw)
}

func (c CellValue) Kind() Kind { return c.kind }

func (c CellValue) IsAbsent() bool { return c.kind == KindAbsent }

// AsNumber returns the numeric value of a Number cell.
func (c CellValue) AsNumber() (float64, bool) {
	if c.kind == KindNumber {
		return c.num, true
	}
	return 0, false
}

// AsDateLabel returns the YYYYMMDD label a header cell stands for.
// Text must already be a strict label; numbers must be an integral
// 8-digit value.
func (c CellValue) AsDateLabel() (string, bool) {
	switch c.kind {
	case KindDate:
		return FormatLabel(c.date), true
	case KindText:
		s := strings.TrimSpace(c.text)
		return s, IsStrictLabel(s)
	case KindNumber:
		if c.num != math.Trunc(c.num) {
			return "", false
		}
		s := strconv.FormatFloat(c.num, 'f', 0, 64)
		return s, IsStrictLabel(s)
	}
	return "", false
}

// String renders the cell the way it is written to the store.
func (c CellValue) String() string {
	switch c.kind {
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindText:
		return c.text
	case KindDate:
		return FormatLabel(c.date)
	}
	return ""
}

// Interface returns the value to hand to a spreadsheet writer, nil for Absent.
func (c CellValue) Interface() interface{} {
	switch c.kind {
	case KindNumber:
		return c.num
	case KindText:
		return c.text
	case KindDate:
		return FormatLabel(c.date)
	}
	return nil
}
