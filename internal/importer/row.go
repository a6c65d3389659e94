// Package importer implements the chunked import engine.
//
// Rows are pulled from a RowSource in a single forward pass, buffered into
// fixed-size chunks, validated against a declarative rule set, and persisted
// through a Sink that opens one transactional scope per chunk. Policy flags
// decide whether validation or persistence failures abort the import, roll
// back the current chunk, or are skipped and collected for inspection.
package importer

import "strings"

// Row is one tabular record plus its 1-based position in the source.
// The position is assigned by the RowSource and preserved unchanged through
// every stage, so failures can always be traced back to the input.
type Row struct {
	Position int
	Cells    []string
}

// Cell returns the cleaned cell at column i, or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return CleanCell(r.Cells[i])
}

// IsEmpty reports whether every cell is blank.
func (r Row) IsEmpty() bool {
	for _, v := range r.Cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Chunk is an ordered batch of rows committed or rolled back as one atomic
// unit. Index is the 0-based chunk number within the import.
type Chunk struct {
	Index int
	Rows  []Row
}

// CleanCell removes common CSV artifacts from a cell value:
// whitespace, Excel formula prefixes (="..."), and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}
