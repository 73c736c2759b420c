package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stockmatrix/internal/errors"
	"stockmatrix/internal/matrix"
)

func sample() *matrix.TimeMatrix {
	m := matrix.New([]string{"20250102", "note", "20250103"})
	m.Rows = []matrix.Row{
		{Key: "005930", Name: "Samsung", Values: []matrix.CellValue{matrix.Number(53000), matrix.Text("x"), matrix.Number(53500.5)}},
		{Key: "000660", Name: "Hynix", Values: []matrix.CellValue{matrix.Absent(), matrix.Absent(), matrix.Number(-12)}},
	}
	return m
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_BOM(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(nil)
	require.NoError(t, w.Write(&buf, WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "with,comma"}},
		BOMPrefix: true,
	}))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "with,comma"}}, parseCSV(t, data[len(utf8BOM):]))
}

func TestCSVWriter_WriteFileCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sheet.csv")
	require.NoError(t, NewCSVWriter(nil).WriteFile(path, WriteOptions{Headers: []string{"h"}, Records: [][]string{{"v"}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "h\nv\n", string(data))
}

func TestStreamWriter(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewCSVWriter(nil).NewStreamWriter(&buf, []string{"date", "close"}, false)
	require.NoError(t, err)
	require.NoError(t, s.WriteRecord([]string{"20250102", "1"}))
	require.NoError(t, s.WriteRecord([]string{"20250103", ""}))
	require.NoError(t, s.Flush())

	assert.Equal(t, "date,close\n20250102,1\n20250103,\n", buf.String())
}

func TestMatrixExporter_Records(t *testing.T) {
	e := NewMatrixExporter(NewCSVWriter(nil))

	tests := []struct {
		name        string
		opts        MatrixOptions
		wantHeaders []string
		wantRows    [][]string
	}{
		{
			name:        "as stored",
			opts:        MatrixOptions{Decimals: -1},
			wantHeaders: []string{"display name", "symbol key", "20250102", "note", "20250103"},
			wantRows: [][]string{
				{"Samsung", "005930", "53000", "x", "53500.5"},
				{"Hynix", "000660", "", "", "-12"},
			},
		},
		{
			name:        "dated only with fixed decimals",
			opts:        MatrixOptions{Decimals: 2, DatedOnly: true, NameHeader: "name", KeyHeader: "code"},
			wantHeaders: []string{"name", "code", "20250102", "20250103"},
			wantRows: [][]string{
				{"Samsung", "005930", "53000.00", "53500.50"},
				{"Hynix", "000660", "", "-12.00"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers, rows := e.Records(sample(), tt.opts)
			assert.Equal(t, tt.wantHeaders, headers)
			assert.Equal(t, tt.wantRows, rows)
		})
	}
}

func TestMatrixExporter_ExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "z20.csv")
	e := NewMatrixExporter(NewCSVWriter(nil))
	require.NoError(t, e.ExportFile(path, sample(), MatrixOptions{Decimals: -1, BOMPrefix: true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimPrefix(string(data), string(utf8BOM))
	assert.True(t, strings.HasPrefix(text, "display name,symbol key,20250102,note,20250103\n"))
}

func TestSymbolExporter_Records(t *testing.T) {
	closing := sample()
	z20 := matrix.New([]string{"20250103", "20250106"})
	z20.Rows = []matrix.Row{
		{Key: "005930", Name: "Samsung", Values: []matrix.CellValue{matrix.Number(75), matrix.Number(-3)}},
	}
	empty := matrix.New([]string{"20250103"})

	e := NewSymbolExporter(NewCSVWriter(nil))
	headers, rows, err := e.Records("005930", []NamedMatrix{
		{Sheet: "close", Matrix: closing},
		{Sheet: "z20", Matrix: z20},
		{Sheet: "gap", Matrix: empty},
	}, -1)
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "close", "z20", "gap"}, headers)
	assert.Equal(t, [][]string{
		{"20250102", "53000", "", ""},
		{"20250103", "53500.5", "75", ""},
		{"20250106", "", "-3", ""},
	}, rows)

	_, _, err = e.Records("999999", []NamedMatrix{{Sheet: "close", Matrix: closing}}, -1)
	typ, ok := apperrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrTypeNotFound, typ)
}
