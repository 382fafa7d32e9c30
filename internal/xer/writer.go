package xer

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Write serializes tables back into the tagged tab-delimited format.
// Tables are emitted in sorted name order so output is deterministic.
// Trailing fields absent from a row are trimmed rather than written as
// empty cells, so extracting the output reproduces the input tables
// exactly, absent keys included.
func Write(w io.Writer, tables Tables) error {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	bw := bufio.NewWriter(w)
	for _, name := range names {
		table := tables[name]
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", recordTable, name); err != nil {
			return fmt.Errorf("failed to write table %s: %w", name, err)
		}
		if len(table.Fields) > 0 {
			if _, err := fmt.Fprintf(bw, "%s\t%s\n", recordFields, strings.Join(table.Fields, "\t")); err != nil {
				return fmt.Errorf("failed to write table %s: %w", name, err)
			}
		}
		for _, row := range table.Rows {
			if err := writeRow(bw, table.Fields, row); err != nil {
				return fmt.Errorf("failed to write table %s: %w", name, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

func writeRow(w io.Writer, fields []string, row Record) error {
	last := -1
	for i, field := range fields {
		if _, ok := row[field]; ok {
			last = i
		}
	}

	values := make([]string, last+2)
	values[0] = recordRow
	for i := 0; i <= last; i++ {
		values[i+1] = row[fields[i]]
	}

	_, err := fmt.Fprintf(w, "%s\n", strings.Join(values, "\t"))
	return err
}
