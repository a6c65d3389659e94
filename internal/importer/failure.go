package importer

import (
	"sort"
	"strconv"
)

// Failure records one or more rule violations tied to a single row and
// attribute. Errors preserves rule evaluation order.
type Failure struct {
	Row       int      `json:"row"`
	Attribute string   `json:"attribute"`
	Errors    []string `json:"errors"`
}

// Collector aggregates failures across chunks. The collected list is kept in
// deterministic order: row position ascending, then attribute ascending,
// with multiple messages for the same row/attribute merged in evaluation
// order. A failure never outlives the import; callers read the final list
// once via Failures.
type Collector struct {
	failures []Failure
}

// Record adds one chunk's failures to the aggregate list.
func (c *Collector) Record(failures []Failure) {
	c.failures = append(c.failures, failures...)
}

// Empty reports whether any failure has been recorded.
func (c *Collector) Empty() bool { return len(c.failures) == 0 }

// Failures returns the aggregate list, merged and sorted.
func (c *Collector) Failures() []Failure {
	return NormalizeFailures(c.failures)
}

// NormalizeFailures merges failures that share a row and attribute
// (preserving message order) and sorts the result by row position
// ascending, then attribute ascending. The input is not modified.
func NormalizeFailures(failures []Failure) []Failure {
	if len(failures) == 0 {
		return nil
	}

	type key struct {
		row  int
		attr string
	}
	merged := make(map[key]*Failure, len(failures))
	order := make([]key, 0, len(failures))

	for _, f := range failures {
		k := key{f.Row, f.Attribute}
		if m, ok := merged[k]; ok {
			m.Errors = append(m.Errors, f.Errors...)
			continue
		}
		cp := Failure{Row: f.Row, Attribute: f.Attribute}
		cp.Errors = append(cp.Errors, f.Errors...)
		merged[k] = &cp
		order = append(order, k)
	}

	out := make([]Failure, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return lessAttribute(out[i].Attribute, out[j].Attribute)
	})

	return out
}

// lessAttribute orders attribute references. Purely numeric references
// (positional imports) compare numerically so "2" sorts before "10";
// everything else compares lexicographically.
func lessAttribute(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
