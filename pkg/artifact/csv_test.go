package artifact

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestEncodeField(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"plain", "La Joconde", "La Joconde"},
		{"comma", "oil, canvas", `"oil, canvas"`},
		{"quote", `dit "le brun"`, `"dit \"le brun\""`},
		{"backslash", `a\b`, `"a\\b"`},
		{"newline", "line1\nline2", "\"line1\nline2\""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encodeField(tt.field); got != tt.want {
				t.Errorf("encodeField(%q) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestWriteReadTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch_0001.csv")

	columns := []string{"url", "title", "notes"}
	rows := [][]string{
		{"/works/1", `dit "le brun"`, "oil, canvas"},
		{"/works/2", `a\b`, "line1\nline2"},
		{"/works/3", "plain", ""},
	}

	if err := WriteTable(path, columns, rows); err != nil {
		t.Fatalf("WriteTable() error: %v", err)
	}

	gotColumns, gotRows, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable() error: %v", err)
	}
	if !reflect.DeepEqual(gotColumns, columns) {
		t.Errorf("columns = %v, want %v", gotColumns, columns)
	}
	if !reflect.DeepEqual(gotRows, rows) {
		t.Errorf("rows = %v, want %v", gotRows, rows)
	}
}

func TestParseRecords_CRLFAndBOM(t *testing.T) {
	records, err := parseRecords("\xef\xbb\xbfurl,title\r\n/works/1,A\r\n")
	if err != nil {
		t.Fatalf("parseRecords() error: %v", err)
	}

	want := [][]string{{"url", "title"}, {"/works/1", "A"}}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %v, want %v", records, want)
	}
}

func TestParseRecords_MissingFinalNewline(t *testing.T) {
	records, err := parseRecords("url,title\n/works/1,A")
	if err != nil {
		t.Fatalf("parseRecords() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %v, want 2 records", records)
	}
}

func TestParseRecords_UnterminatedQuote(t *testing.T) {
	if _, err := parseRecords(`url,title` + "\n" + `/works/1,"broken`); err == nil {
		t.Error("Expected error for unterminated quoted field")
	}
}
