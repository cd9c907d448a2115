// Package source reads the identifier list produced by the discovery
// crawler: a JSON array of records, each carrying the record's resource
// path in a string field.
package source

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultField is the record field holding the resource path.
const DefaultField = "url"

// Read loads the ordered identifier list from path, extracting the named
// string field from every record. Any read or parse failure is returned to
// the caller; an unreadable identifier source is fatal to the run.
func Read(path, field string) ([]string, error) {
	if field == "" {
		field = DefaultField
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identifier source: %w", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse identifier source %s: %w", path, err)
	}

	ids := make([]string, 0, len(records))
	for i, record := range records {
		value, ok := record[field].(string)
		if !ok {
			return nil, fmt.Errorf("identifier source %s: record %d has no string field %q", path, i, field)
		}
		ids = append(ids, value)
	}
	return ids, nil
}
