package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, columns ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cells ...interface{}) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

// dateRange shortens a list of labels to "first..last (n)".
func dateRange(labels []string) string {
	switch len(labels) {
	case 0:
		return "-"
	case 1:
		return labels[0]
	}
	return fmt.Sprintf("%s..%s (%d)", labels[0], labels[len(labels)-1], len(labels))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
