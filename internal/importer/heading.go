package importer

import (
	"fmt"
	"strconv"
	"strings"
)

// AttributeMap resolves column indexes to attribute names. With a heading
// row the names come from the normalized headings; without one the mapping
// is the identity: column i is attribute strconv.Itoa(i).
type AttributeMap struct {
	names   []string       // by column index; nil for identity mapping
	indexes map[string]int // normalized name -> column index
}

// IdentityAttributes returns the mapping used when no heading row is
// configured: every column is addressed by its stringified 0-based index.
func IdentityAttributes() *AttributeMap {
	return &AttributeMap{}
}

// BuildAttributeMap derives attribute names from a heading row. Blank
// headings fall back to the column index. Returns a ConfigurationError when
// two headings collide after normalization.
func BuildAttributeMap(heading Row) (*AttributeMap, error) {
	m := &AttributeMap{
		names:   make([]string, len(heading.Cells)),
		indexes: make(map[string]int, len(heading.Cells)),
	}

	for i := range heading.Cells {
		name := NormalizeHeading(heading.Cells[i])
		if name == "" {
			name = strconv.Itoa(i)
		}
		if prev, exists := m.indexes[name]; exists {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("heading %q appears in columns %d and %d", name, prev, i),
			}
		}
		m.names[i] = name
		m.indexes[name] = i
	}

	return m, nil
}

// Name returns the attribute name for column i.
func (m *AttributeMap) Name(i int) string {
	if m.names != nil && i >= 0 && i < len(m.names) {
		return m.names[i]
	}
	return strconv.Itoa(i)
}

// Index resolves a column reference, either an attribute name or a numeric
// index, to a column index.
func (m *AttributeMap) Index(ref string) (int, bool) {
	key := NormalizeHeading(ref)
	if m.indexes != nil {
		if i, ok := m.indexes[key]; ok {
			return i, true
		}
	}
	if i, err := strconv.Atoi(key); err == nil && i >= 0 {
		// Positional references are valid only where no heading name shadows
		// them; with a heading row every named column was registered above.
		if m.indexes == nil || len(m.names) == 0 || i < len(m.names) {
			return i, true
		}
	}
	return 0, false
}

// NormalizeHeading lowercases and cleans a heading cell for matching.
func NormalizeHeading(s string) string {
	return strings.ToLower(CleanCell(s))
}
