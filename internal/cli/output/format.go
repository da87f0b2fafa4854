// Package output renders command results as aligned tables, JSON or CSV.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Format is an output format name.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatJSON, FormatCSV}

// AddFormatFlag adds the --format/-o flag to cmd.
func AddFormatFlag(cmd *cobra.Command, target *string) {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	cmd.Flags().StringVarP(target, "format", "o", string(FormatTable),
		fmt.Sprintf("Output format (%s)", strings.Join(names, ", ")))
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

// Write renders rows, a slice of structs, in the given format. Table and CSV
// output use the fields tagged `header:"..."`; JSON uses the json tags.
func Write(w io.Writer, format string, rows any) error {
	switch Format(strings.ToLower(format)) {
	case FormatTable:
		return writeTable(w, rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatCSV:
		return writeCSV(w, rows)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeTable(w io.Writer, rows any) error {
	headers, records, err := tabulate(rows)
	if err != nil || len(records) == 0 {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range records {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, rows any) error {
	headers, records, err := tabulate(rows)
	if err != nil || len(records) == 0 {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

// tabulate extracts the header tagged columns of a slice of structs.
func tabulate(rows any) ([]string, [][]string, error) {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("rows must be a slice, got %s", v.Kind())
	}

	elem := v.Type().Elem()
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("rows must be structs, got %s", elem.Kind())
	}

	var (
		headers []string
		fields  []int
	)
	for i := 0; i < elem.NumField(); i++ {
		if h := elem.Field(i).Tag.Get("header"); h != "" {
			headers = append(headers, h)
			fields = append(fields, i)
		}
	}

	records := make([][]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		if row.Kind() == reflect.Pointer {
			row = row.Elem()
		}
		record := make([]string, len(fields))
		for j, f := range fields {
			record[j] = fmt.Sprint(row.Field(f).Interface())
		}
		records = append(records, record)
	}
	return headers, records, nil
}
