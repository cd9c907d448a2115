package artifact

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// bom is the UTF-8 byte-order marker written at the start of every artifact
// so downstream spreadsheet tooling detects the encoding.
const bom = "\xef\xbb\xbf"

// WriteTable writes a table to path as CSV, committing atomically: the data
// is written to a temporary file in the same directory and renamed into
// place, so a crash never leaves a partial artifact behind.
func WriteTable(path string, columns []string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	w.WriteString(bom)
	writeRecord(w, columns)
	for _, row := range rows {
		writeRecord(w, row)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}

// ReadTable parses one artifact back into its header and rows.
func ReadTable(path string) ([]string, [][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	records, err := parseRecords(string(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("parse %s: no header record", path)
	}
	return records[0], records[1:], nil
}

func writeRecord(w *bufio.Writer, record []string) {
	for i, field := range record {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(encodeField(field))
	}
	w.WriteByte('\n')
}

// encodeField quotes a field when it contains a separator, quote, backslash
// or line break; inside quotes, quote and backslash characters are escaped
// with a backslash.
func encodeField(field string) string {
	if !strings.ContainsAny(field, ",\"\\\r\n") {
		return field
	}

	var b strings.Builder
	b.Grow(len(field) + 2)
	b.WriteByte('"')
	for _, r := range field {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// parseRecords is the inverse of writeRecord for whole files. It tolerates
// CRLF line endings and a byte-order marker.
func parseRecords(data string) ([][]string, error) {
	data = strings.TrimPrefix(data, bom)

	var (
		records  [][]string
		record   []string
		field    strings.Builder
		inQuotes bool
		escaped  bool
	)

	endField := func() {
		record = append(record, field.String())
		field.Reset()
	}
	endRecord := func() {
		endField()
		records = append(records, record)
		record = nil
	}

	for _, r := range data {
		if inQuotes {
			switch {
			case escaped:
				field.WriteRune(r)
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inQuotes = false
			default:
				field.WriteRune(r)
			}
			continue
		}

		switch r {
		case '"':
			inQuotes = true
		case ',':
			endField()
		case '\r':
			// swallowed; the following '\n' ends the record
		case '\n':
			endRecord()
		default:
			field.WriteRune(r)
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("unterminated quoted field")
	}
	if field.Len() > 0 || len(record) > 0 {
		endRecord()
	}
	return records, nil
}
