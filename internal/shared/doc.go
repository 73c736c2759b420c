// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a capturing slog handler and a
// workbook fixture writer so package tests can build xlsx stores in
// t.TempDir() without going through the workbook package itself.
package shared
