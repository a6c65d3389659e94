package importer

import (
	"errors"
	"testing"
)

func TestParseRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec map[string]string
	}{
		{"unknown kind", map[string]string{"email": "shiny"}},
		{"min without number", map[string]string{"age": "min:abc"}},
		{"max without number", map[string]string{"age": "max:"}},
		{"in without values", map[string]string{"status": "in:"}},
		{"bad regex", map[string]string{"code": `regex:[`}},
		{"empty column reference", map[string]string{"*.": "required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules(tt.spec)
			if err == nil {
				t.Fatal("ParseRules() expected error")
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error type = %T, want *ConfigurationError", err)
			}
		})
	}
}

func TestParseRules_EmptySet(t *testing.T) {
	for _, spec := range []map[string]string{nil, {}} {
		rs, err := ParseRules(spec)
		if err != nil {
			t.Fatalf("ParseRules(%v) error = %v, empty set should parse", spec, err)
		}
		if len(rs.rules) != 0 {
			t.Errorf("rule count = %d, want 0", len(rs.rules))
		}
	}
}

func TestParseRules_PipeSplitting(t *testing.T) {
	rs, err := ParseRules(map[string]string{"email": "required|email"})
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if len(rs.rules) != 2 {
		t.Fatalf("rule count = %d, want 2", len(rs.rules))
	}
	if rs.rules[0].Kind != RuleRequired || rs.rules[1].Kind != RuleEmail {
		t.Errorf("kinds = %v, %v, want required, email", rs.rules[0].Kind, rs.rules[1].Kind)
	}
}

func TestParseRules_Wildcard(t *testing.T) {
	rs, err := ParseRules(map[string]string{"*.id": "distinct"})
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	r := rs.rules[0]
	if !r.Wildcard || r.Column != "id" || r.Kind != RuleDistinct {
		t.Errorf("rule = %+v, want wildcard distinct on id", r)
	}
	if !r.ChunkScoped() {
		t.Error("distinct should be chunk scoped")
	}
}

func TestRuleCheck(t *testing.T) {
	tests := []struct {
		name string
		expr string
		pass []string
		fail []string
	}{
		{
			name: "required",
			expr: "required",
			pass: []string{"x", "0"},
			fail: []string{""},
		},
		{
			name: "email",
			expr: "email",
			pass: []string{"a@b.co", "first.last@example.org"},
			fail: []string{"plain", "a@b", "a b@c.d", "@x.y"},
		},
		{
			name: "numeric",
			expr: "numeric",
			pass: []string{"1", "-2.5", "+10", ".5", "1e3"},
			fail: []string{"abc", "1,000", "12.3.4"},
		},
		{
			name: "integer",
			expr: "integer",
			pass: []string{"42", "-7", "+3"},
			fail: []string{"1.5", "abc"},
		},
		{
			name: "boolean",
			expr: "boolean",
			pass: []string{"true", "FALSE", "Yes", "n", "1", "0"},
			fail: []string{"maybe", "2"},
		},
		{
			name: "date",
			expr: "date",
			pass: []string{"2024-01-31", "1/2/2024", "Jan 2, 2024", "20240102"},
			fail: []string{"not a date", "2024-13-01"},
		},
		{
			name: "min",
			expr: "min:10",
			pass: []string{"10", "10.5", "1000"},
			fail: []string{"9.99", "-1", "abc"},
		},
		{
			name: "max",
			expr: "max:10",
			pass: []string{"10", "-5"},
			fail: []string{"10.1", "abc"},
		},
		{
			name: "in",
			expr: "in:red,green,blue",
			pass: []string{"red", "GREEN"},
			fail: []string{"yellow"},
		},
		{
			name: "regex",
			expr: `regex:^[A-Z]{2}\d{4}$`,
			pass: []string{"AB1234"},
			fail: []string{"ab1234", "AB12345"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := parseRule("col", false, tt.expr)
			if err != nil {
				t.Fatalf("parseRule(%q) error = %v", tt.expr, err)
			}
			for _, v := range tt.pass {
				if !rule.check(v) {
					t.Errorf("check(%q) = false, want true", v)
				}
			}
			for _, v := range tt.fail {
				if rule.check(v) {
					t.Errorf("check(%q) = true, want false", v)
				}
			}
		})
	}
}

func TestRuleCheck_EmptyPassesExceptRequired(t *testing.T) {
	for _, expr := range []string{"email", "numeric", "integer", "boolean", "date", "min:1", "max:1", "in:a,b", `regex:^x$`} {
		rule, err := parseRule("col", false, expr)
		if err != nil {
			t.Fatalf("parseRule(%q) error = %v", expr, err)
		}
		if !rule.check("") {
			t.Errorf("%s: empty value should pass", expr)
		}
	}

	required, _ := parseRule("col", false, "required")
	if required.check("") {
		t.Error("required: empty value should fail")
	}
}

func TestRuleSetBind(t *testing.T) {
	attrs, err := BuildAttributeMap(Row{Position: 1, Cells: []string{"email", "age"}})
	if err != nil {
		t.Fatalf("BuildAttributeMap() error = %v", err)
	}

	rs, err := ParseRules(map[string]string{"email": "email", "1": "numeric"})
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}

	bound, err := rs.Bind(attrs)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if len(bound) != 2 {
		t.Fatalf("bound count = %d, want 2", len(bound))
	}
	// Refs sort lexically, so "1" binds first
	if bound[0].Index != 1 || bound[0].Attribute != "age" {
		t.Errorf("bound[0] = index %d attr %q, want 1 age", bound[0].Index, bound[0].Attribute)
	}
	if bound[1].Index != 0 || bound[1].Attribute != "email" {
		t.Errorf("bound[1] = index %d attr %q, want 0 email", bound[1].Index, bound[1].Attribute)
	}
}

func TestRuleSetBind_UnresolvableColumn(t *testing.T) {
	attrs, _ := BuildAttributeMap(Row{Position: 1, Cells: []string{"email"}})
	rs, err := ParseRules(map[string]string{"phone": "required"})
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}

	_, err = rs.Bind(attrs)
	if err == nil {
		t.Fatal("Bind() expected error for unknown column")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error type = %T, want *ConfigurationError", err)
	}
}
