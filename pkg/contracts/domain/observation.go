package domain

// Observation is one dated value of a symbol. A nil Value is an absent
// observation and is stored as an empty cell.
type Observation struct {
	Date  string   `json:"date" validate:"required,datelabel"`
	Value *float64 `json:"value"`
}

// ObservationBatch is what the ingestion collaborator hands over for one symbol.
type ObservationBatch struct {
	SymbolKey    string        `json:"symbol_key" validate:"required,max=32"`
	SymbolName   string        `json:"symbol_name" validate:"max=200"`
	Observations []Observation `json:"observations" validate:"dive"`
}

// IngestReport summarizes one Ingest call.
type IngestReport struct {
	Field       string   `json:"field"`
	Sheet       string   `json:"sheet"`
	Created     bool     `json:"created"`
	AddedDates  []string `json:"added_dates"`
	NewSymbols  int      `json:"new_symbols"`
	Skipped     int      `json:"skipped"`
	Rejected    []string `json:"rejected,omitempty"`
	SymbolCount int      `json:"symbol_count"`
}

// Symbol is a catalog entry.
type Symbol struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}
