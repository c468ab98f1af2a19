package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

func writeResults(w io.Writer, results []StoreResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if results == nil {
			results = []StoreResult{}
		}
		return enc.Encode(results)
	}

	failed := 0
	for _, result := range results {
		label := result.File
		if result.Store != "" {
			label += ": " + result.Store
		}
		switch {
		case result.Error != "":
			failed++
			fmt.Fprintf(w, "FAIL %s\n  %s\n", label, result.Error)
		case len(result.Violations) > 0:
			failed++
			fmt.Fprintf(w, "FAIL %s\n", label)
			for _, v := range result.Violations {
				fmt.Fprintf(w, "  %s (%s): %s\n", v.Key, v.Reason, v.Message)
			}
		default:
			fmt.Fprintf(w, "ok   %s\n", label)
		}
		for _, d := range result.Diagnostics {
			fmt.Fprintf(w, "  note: %s\n", d.Message)
		}
	}
	_, err := fmt.Fprintf(w, "%d store(s) checked, %d failed\n", len(results), failed)
	return err
}

func writeDescriptions(w io.Writer, described []StoreDescription, asJSON bool) error {
	if asJSON {
		return writeJSON(w, described)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, store := range described {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s\n", store.Store)
		fmt.Fprintln(tw, "PATH\tTYPE\tCLASS\tREASON")
		for _, field := range store.Fields {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", field.Path, field.Type, field.Class, field.Reason)
		}
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
