package artifact

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/musecrawl/harvester/pkg/fetch"
)

// Tabulate normalizes heterogeneous documents into one uniform table.
// Nested objects flatten into dot-separated column names; arrays and any
// other non-scalar leaves are serialized as JSON. Columns appear in order
// of first appearance, alphabetically within each document, and a document
// missing a column yields an empty cell.
func Tabulate(docs []fetch.Document) ([]string, [][]string) {
	flats := make([]map[string]string, len(docs))
	var columns []string
	seen := make(map[string]bool)

	for i, doc := range docs {
		flat := make(map[string]string)
		flattenInto("", doc, flat)
		flats[i] = flat

		keys := make([]string, 0, len(flat))
		for key := range flat {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}

	rows := make([][]string, len(docs))
	for i, flat := range flats {
		row := make([]string, len(columns))
		for j, column := range columns {
			row[j] = flat[column]
		}
		rows[i] = row
	}

	return columns, rows
}

func flattenInto(prefix string, obj map[string]any, out map[string]string) {
	for key, value := range obj {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(name, nested, out)
			continue
		}
		out[name] = renderCell(value)
	}
}

func renderCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
