package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cell)
		}
		fmt.Println(strings.Join(parts, "  "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

// output prints v as JSON, or only quietVal with --format quiet. Commands
// with a tabular view pass table; nil falls back to JSON.
func output(v any, quietVal string, table func()) {
	switch {
	case flagFmt == "quiet":
		fmt.Println(quietVal)
	case flagFmt == "table" && table != nil:
		table()
	default:
		formatJSON(v)
	}
}

// notice prints a server notice on stderr so stdout stays machine-readable.
func notice(msg string) {
	if msg != "" && flagFmt != "quiet" {
		fmt.Fprintln(os.Stderr, msg)
	}
}
