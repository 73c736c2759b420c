package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewMissingSheetError("z20"),
			expected: `[MISSING_SHEET] sheet "z20" not found`,
		},
		{
			name:     "with cause",
			err:      NewStorageError("save workbook", errors.New("disk full")),
			expected: "[STORAGE] save workbook: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_IsSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"missing store", NewMissingStoreError("a.xlsx", nil), ErrMissingStore, true},
		{"missing sheet", NewMissingSheetError("raw"), ErrMissingSheet, true},
		{"disagree", NewSheetsDisagreeError(map[string]string{"a": "20250101"}), ErrSheetsDisagree, true},
		{"no dates", NewNoResolvableDatesError("nothing"), ErrNoResolvableDates, true},
		{"wrong sentinel", NewMissingSheetError("raw"), ErrMissingStore, false},
		{"storage has no sentinel", NewStorageError("x", nil), ErrMissingStore, false},
		{"wrapped", fmt.Errorf("compute: %w", NewMissingSheetError("raw")), ErrMissingSheet, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestAppError_UnwrapCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewStorageError("open", cause)

	assert.True(t, errors.Is(err, cause))

	var appErr *AppError
	require.True(t, errors.As(fmt.Errorf("outer: %w", err), &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	observed := map[string]string{"z20": "20250103", "gap": "20250102"}
	err := NewSheetsDisagreeError(observed).WithContext("attempt", 1)

	assert.Equal(t, observed, err.Context["observed"])
	assert.Equal(t, 1, err.Context["attempt"])

	var nilCtx AppError
	nilCtx.WithContext("k", "v")
	assert.Equal(t, "v", nilCtx.Context["k"])
}

func TestTypeOf(t *testing.T) {
	typ, ok := TypeOf(fmt.Errorf("wrap: %w", NewConfigError("bad", nil)))
	assert.True(t, ok)
	assert.Equal(t, ErrTypeConfig, typ)

	_, ok = TypeOf(errors.New("plain"))
	assert.False(t, ok)
}
