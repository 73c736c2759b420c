package ingest

import (
	"path/filepath"
	"testing"
)

func filepathIn(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "store.xlsx")
}
