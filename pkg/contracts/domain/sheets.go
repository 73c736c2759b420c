package domain

// SheetSummary lists one sheet of the store.
type SheetSummary struct {
	Name string `json:"name"`
}

// SheetRow is one symbol of a sheet. Values line up with SheetView.Header;
// a nil entry is an absent cell.
type SheetRow struct {
	Key    string        `json:"key"`
	Name   string        `json:"name"`
	Values []interface{} `json:"values"`
}

// SheetView is the JSON rendering of a time-matrix sheet.
type SheetView struct {
	Sheet  string     `json:"sheet"`
	Header []string   `json:"header"`
	Dates  []string   `json:"dates"`
	Rows   []SheetRow `json:"rows"`
}

// HeaderView carries the date labels and symbol keys of a sheet.
type HeaderView struct {
	Sheet  string   `json:"sheet"`
	Labels []string `json:"labels"`
	Keys   []string `json:"keys"`
	Latest string   `json:"latest,omitempty"`
}
