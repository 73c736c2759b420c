package domain

import "time"

// Merge outcomes reported in UpdateReport.Status.
const (
	StatusUpdated  = "updated"
	StatusCreated  = "created"
	StatusUpToDate = "up_to_date"
	StatusNoSource = "no_source"
)

// UpdateReport is the result of extending one indicator sheet.
type UpdateReport struct {
	Indicator      string   `json:"indicator"`
	Sheet          string   `json:"sheet"`
	SourceSheet    string   `json:"source_sheet"`
	FormulaVersion string   `json:"formula_version"`
	Status         string   `json:"status"`
	FullRebuild    bool     `json:"full_rebuild"`
	AddedDates     []string `json:"added_dates"`
	AddedDateCount int      `json:"added_date_count"`
	SymbolCount    int      `json:"symbol_count"`
	NewSymbols     int      `json:"new_symbols"`
}

// Changed reports whether the sheet was written.
func (r UpdateReport) Changed() bool {
	return r.Status == StatusUpdated || r.Status == StatusCreated
}

// RollbackResult is the result of deleting the latest date across sheets.
// Observed holds each sheet's latest date even when the sheets disagree.
type RollbackResult struct {
	DeletedDate   string            `json:"deleted_date,omitempty"`
	DeletedSheets []string          `json:"deleted_sheets"`
	Observed      map[string]string `json:"observed"`
	Skipped       []string          `json:"skipped,omitempty"`
	Missing       []string          `json:"missing,omitempty"`
}

// RangeResult is the result of deleting a date range.
type RangeResult struct {
	Start    string         `json:"start"`
	End      string         `json:"end"`
	PerSheet map[string]int `json:"per_sheet"`
	Total    int            `json:"total"`
}

// RunRecord is one ledger entry for an engine call.
type RunRecord struct {
	RunID      string     `json:"run_id"`
	Operation  string     `json:"operation"`
	Store      string     `json:"store"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
}

// ColumnRecord ties a written date column to the formula that produced it.
type ColumnRecord struct {
	Sheet          string    `json:"sheet"`
	Date           string    `json:"date"`
	FormulaVersion string    `json:"formula_version"`
	RunID          string    `json:"run_id"`
	WrittenAt      time.Time `json:"written_at"`
}
