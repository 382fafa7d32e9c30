package xer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Control codes of the tagged tab-delimited exchange format. Any other
// first token (ERMHDR, %E, ...) is ignored for forward compatibility.
const (
	recordTable  = "%T"
	recordFields = "%F"
	recordRow    = "%R"
)

// Line buffer sizing for the streaming scanner. Memo-style columns can
// push a single row well past the bufio default.
const (
	initialLineBuffer = 64 * 1024
	maxLineBytes      = 4 * 1024 * 1024
)

// Record is one data row keyed by field name. A missing key reads as an
// empty value; downstream mapping treats the two identically.
type Record map[string]string

// Table holds the field names and rows extracted for one table, with
// field order preserved as declared.
type Table struct {
	Name   string
	Fields []string
	Rows   []Record
}

// Tables maps table name to its extracted content. The map is a plain
// value owned by the caller; the extractor keeps no state between calls.
type Tables map[string]*Table

// Extract decodes the tagged table format from r in a single forward
// pass. Lines are split on tabs; %T begins a table, %F declares its
// field names, %R appends a row zipped positionally against the last
// %F. Structurally odd input is skipped, never fatal: a stray %R before
// any %T is dropped, a %R before any %F yields a row with no entries,
// values beyond the field count are ignored and missing trailing values
// leave their keys absent. Both \n and \r\n terminators are accepted.
// The only returned error is an I/O failure from the source stream.
func Extract(r io.Reader) (Tables, error) {
	tables := make(Tables)
	var current *Table

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBytes)

	for scanner.Scan() {
		tokens := strings.Split(scanner.Text(), "\t")

		switch tokens[0] {
		case recordTable:
			if len(tokens) < 2 {
				continue
			}
			name := strings.TrimSpace(tokens[1])
			if name == "" {
				continue
			}
			// Re-declaring a table starts it over.
			current = &Table{Name: name}
			tables[name] = current

		case recordFields:
			if current == nil {
				continue
			}
			fields := make([]string, len(tokens)-1)
			for i, f := range tokens[1:] {
				fields[i] = strings.TrimSpace(f)
			}
			current.Fields = fields

		case recordRow:
			if current == nil {
				continue
			}
			values := tokens[1:]
			rec := make(Record)
			for i, field := range current.Fields {
				if i >= len(values) {
					break
				}
				rec[field] = values[i]
			}
			current.Rows = append(current.Rows, rec)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source stream: %w", err)
	}

	return tables, nil
}
