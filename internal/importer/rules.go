package importer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RuleKind identifies one built-in validation check.
type RuleKind string

const (
	RuleRequired RuleKind = "required"
	RuleEmail    RuleKind = "email"
	RuleNumeric  RuleKind = "numeric"
	RuleInteger  RuleKind = "integer"
	RuleBoolean  RuleKind = "boolean"
	RuleDate     RuleKind = "date"
	RuleMin      RuleKind = "min"
	RuleMax      RuleKind = "max"
	RuleIn       RuleKind = "in"
	RuleRegex    RuleKind = "regex"

	// RuleDistinct is chunk-scoped: it sees every row of the chunk and flags
	// values that repeat within it.
	RuleDistinct RuleKind = "distinct"
)

// Pre-compiled patterns for cell checks (avoids recompilation per row).
var (
	numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	integerRegex = regexp.MustCompile(`^[+-]?\d+$`)
	emailRegex   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// dateLayouts are the accepted date formats, unambiguous 4-digit years only.
var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
	"Jan 2, 2006", "2 Jan 2006",
	"20060102",
}

// Rule is one parsed validation rule bound to a column reference.
type Rule struct {
	Column   string // column reference as written, wildcard prefix stripped
	Wildcard bool   // true for "*.<column>" references
	Kind     RuleKind
	Param    string // raw parameter text after ':'

	values []string       // parsed for in:
	limit  float64        // parsed for min:/max:
	re     *regexp.Regexp // compiled for regex:
}

// ChunkScoped reports whether the rule needs visibility into the whole
// chunk. Rules that check a cell in isolation behave identically under plain
// and wildcard keys, so scope follows the kind, not the key form.
func (r Rule) ChunkScoped() bool { return r.Kind == RuleDistinct }

// check validates a single cell value. Empty values pass every kind except
// required; emptiness is the required rule's concern alone.
func (r Rule) check(value string) bool {
	if value == "" {
		return r.Kind != RuleRequired
	}

	switch r.Kind {
	case RuleRequired:
		return true
	case RuleEmail:
		return emailRegex.MatchString(value)
	case RuleNumeric:
		return numericRegex.MatchString(value)
	case RuleInteger:
		return integerRegex.MatchString(value)
	case RuleBoolean:
		switch strings.ToLower(value) {
		case "true", "t", "yes", "y", "1", "false", "f", "no", "n", "0":
			return true
		}
		return false
	case RuleDate:
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, value); err == nil {
				return true
			}
		}
		return false
	case RuleMin:
		n, err := strconv.ParseFloat(value, 64)
		return err == nil && n >= r.limit
	case RuleMax:
		n, err := strconv.ParseFloat(value, 64)
		return err == nil && n <= r.limit
	case RuleIn:
		for _, v := range r.values {
			if strings.EqualFold(v, value) {
				return true
			}
		}
		return false
	case RuleRegex:
		return r.re.MatchString(value)
	}
	return true
}

// defaultMessage is the message used when no custom message overrides the
// attribute/kind pair. Messages may reference the display name of the
// attribute via the ":attribute" placeholder.
func (r Rule) defaultMessage() string {
	switch r.Kind {
	case RuleRequired:
		return "required value is missing"
	case RuleEmail:
		return "invalid email"
	case RuleNumeric:
		return "invalid number"
	case RuleInteger:
		return "invalid integer"
	case RuleBoolean:
		return "must be true/false, yes/no, or 1/0"
	case RuleDate:
		return "invalid date"
	case RuleMin:
		return "must be at least " + r.Param
	case RuleMax:
		return "must be at most " + r.Param
	case RuleIn:
		return "value must be one of: " + strings.Join(r.values, ", ")
	case RuleRegex:
		return "invalid format"
	case RuleDistinct:
		return "duplicate value within chunk"
	}
	return "invalid value"
}

// RuleSet is an ordered collection of parsed rules, not yet bound to
// concrete column indexes.
type RuleSet struct {
	rules []Rule
}

// ParseRules parses a rule specification: a mapping from column reference
// ("email", "1", "*.email") to one or more pipe-separated rule expressions
// ("required|email", "min:0|max:100"). Column order is made deterministic by
// sorting references; expression order within a reference is preserved.
// An empty mapping yields an empty set: every chunk evaluates clean, so the
// import is persist-only. Returns a ConfigurationError for unknown kinds or
// malformed parameters.
func ParseRules(spec map[string]string) (*RuleSet, error) {
	refs := make([]string, 0, len(spec))
	for ref := range spec {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	rs := &RuleSet{}
	for _, ref := range refs {
		column, wildcard := strings.CutPrefix(ref, "*.")
		column = strings.TrimSpace(column)
		if column == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("empty column reference %q", ref)}
		}

		for _, expr := range strings.Split(spec[ref], "|") {
			expr = strings.TrimSpace(expr)
			if expr == "" {
				continue
			}
			rule, err := parseRule(column, wildcard, expr)
			if err != nil {
				return nil, err
			}
			rs.rules = append(rs.rules, rule)
		}
	}

	return rs, nil
}

func parseRule(column string, wildcard bool, expr string) (Rule, error) {
	kind, param, _ := strings.Cut(expr, ":")
	r := Rule{
		Column:   column,
		Wildcard: wildcard,
		Kind:     RuleKind(strings.ToLower(strings.TrimSpace(kind))),
		Param:    strings.TrimSpace(param),
	}

	switch r.Kind {
	case RuleRequired, RuleEmail, RuleNumeric, RuleInteger, RuleBoolean, RuleDate, RuleDistinct:
		// No parameter.
	case RuleMin, RuleMax:
		n, err := strconv.ParseFloat(r.Param, 64)
		if err != nil {
			return Rule{}, &ConfigurationError{
				Reason: fmt.Sprintf("rule %q on column %q: non-numeric bound %q", r.Kind, column, r.Param),
			}
		}
		r.limit = n
	case RuleIn:
		for _, v := range strings.Split(r.Param, ",") {
			if v = strings.TrimSpace(v); v != "" {
				r.values = append(r.values, v)
			}
		}
		if len(r.values) == 0 {
			return Rule{}, &ConfigurationError{
				Reason: fmt.Sprintf("rule \"in\" on column %q has no values", column),
			}
		}
	case RuleRegex:
		re, err := regexp.Compile(r.Param)
		if err != nil {
			return Rule{}, &ConfigurationError{
				Reason: fmt.Sprintf("rule \"regex\" on column %q: %v", column, err),
			}
		}
		r.re = re
	default:
		return Rule{}, &ConfigurationError{
			Reason: fmt.Sprintf("unknown rule kind %q on column %q", kind, column),
		}
	}

	return r, nil
}

// BoundRule is a rule resolved against an AttributeMap: it knows which
// column index it reads and the attribute name failures are reported under.
type BoundRule struct {
	Rule
	Index     int
	Attribute string
}

// Bind resolves every column reference in the set. A reference that matches
// neither an attribute name nor a valid column index is a ConfigurationError.
func (rs *RuleSet) Bind(attrs *AttributeMap) ([]BoundRule, error) {
	bound := make([]BoundRule, 0, len(rs.rules))
	for _, r := range rs.rules {
		idx, ok := attrs.Index(r.Column)
		if !ok {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("rule column %q matches no attribute", r.Column),
			}
		}
		bound = append(bound, BoundRule{Rule: r, Index: idx, Attribute: attrs.Name(idx)})
	}
	return bound, nil
}
