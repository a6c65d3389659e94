package pgsink

import (
	"testing"
	"time"
)

func TestToNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		{"positive integer", "123", true},
		{"zero", "0", true},
		{"negative integer", "-456", true},
		{"decimal", "123.45", true},
		{"leading decimal point", ".99", true},
		{"dollar sign", "$1,234.56", true},
		{"euro sign", "€1234.56", true},
		{"pound sign", "£1234.56", true},
		{"thousands separators", "1,234,567.89", true},
		{"accounting negative", "(123.45)", true},
		{"accounting negative with currency", "($1,234.56)", true},
		{"explicit positive sign", "+123", true},
		{"surrounding whitespace", "  123.45  ", true},

		{"empty string", "", false},
		{"only whitespace", "   ", false},
		{"alphabetic", "abc", false},
		{"mixed alphanumeric", "12abc34", false},
		{"only currency symbol", "$", false},
		{"multiple decimal points", "12.34.56", false},
		{"double negative", "--123", false},
		{"NaN", "NaN", false},
		{"Infinity", "Infinity", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToNumeric(tt.input)

			if result.Valid != tt.wantValid {
				t.Errorf("ToNumeric(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
				return
			}

			if tt.wantValid {
				f, err := result.Float64Value()
				if err != nil || !f.Valid {
					t.Errorf("ToNumeric(%q) Float64Value invalid: %v", tt.input, err)
				}
			}
		})
	}
}

func TestToNumeric_AccountingSign(t *testing.T) {
	result := ToNumeric("($1,234.56)")
	if !result.Valid {
		t.Fatal("ToNumeric returned invalid")
	}
	f, err := result.Float64Value()
	if err != nil || !f.Valid {
		t.Fatalf("Float64Value() error = %v", err)
	}
	if f.Float64 != -1234.56 {
		t.Errorf("value = %v, want -1234.56", f.Float64)
	}
}

func TestToDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantYear  int
		wantMonth time.Month
		wantDay   int
	}{
		{"ISO format", "2024-01-15", true, 2024, time.January, 15},
		{"ISO leap day", "2024-02-29", true, 2024, time.February, 29},
		{"US slashes", "01/15/2024", true, 2024, time.January, 15},
		{"US single digits", "1/5/2024", true, 2024, time.January, 5},
		{"dash separator", "01-15-2024", true, 2024, time.January, 15},
		{"dot separator", "01.15.2024", true, 2024, time.January, 15},
		{"year first slash", "2024/01/15", true, 2024, time.January, 15},
		{"text month", "Jan 15, 2024", true, 2024, time.January, 15},
		{"day first text month", "15 Jan 2024", true, 2024, time.January, 15},
		{"compact", "20240115", true, 2024, time.January, 15},
		{"surrounding whitespace", "  2024-01-15  ", true, 2024, time.January, 15},

		{"empty", "", false, 0, 0, 0},
		{"not a date", "not-a-date", false, 0, 0, 0},
		{"month 13", "2024-13-01", false, 0, 0, 0},
		{"day 32", "2024-01-32", false, 0, 0, 0},
		{"Feb 29 non-leap", "2023-02-29", false, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToDate(tt.input)

			if result.Valid != tt.wantValid {
				t.Errorf("ToDate(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
				return
			}
			if !tt.wantValid {
				return
			}

			if result.Time.Year() != tt.wantYear ||
				result.Time.Month() != tt.wantMonth ||
				result.Time.Day() != tt.wantDay {
				t.Errorf("ToDate(%q) = %v, want %d-%02d-%02d",
					tt.input, result.Time, tt.wantYear, tt.wantMonth, tt.wantDay)
			}
		})
	}
}

func TestToDate_TwoDigitYear(t *testing.T) {
	originalPivot := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = originalPivot }()
	TwoDigitYearPivot = 20

	tests := []struct {
		name     string
		input    string
		wantYear int
	}{
		{"within pivot stays current century", "01/15/25", 2025},
		{"99 shifts to previous century", "01/15/99", 1999},
		{"85 shifts to previous century", "01/15/85", 1985},
		{"dash format", "1-15-99", 1999},
		{"dot format", "01.15.99", 1999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToDate(tt.input)
			if !result.Valid {
				t.Fatalf("ToDate(%q) returned invalid", tt.input)
			}
			if got := result.Time.Year(); got != tt.wantYear {
				t.Errorf("ToDate(%q).Year = %d, want %d", tt.input, got, tt.wantYear)
			}
		})
	}
}

func TestToBool(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		wantBool  bool
	}{
		{"true", true, true},
		{"TRUE", true, true},
		{"t", true, true},
		{"yes", true, true},
		{"Y", true, true},
		{"1", true, true},
		{"false", true, false},
		{"F", true, false},
		{"no", true, false},
		{"n", true, false},
		{"0", true, false},
		{"  yes  ", true, true},

		{"", false, false},
		{"maybe", false, false},
		{"on", false, false},
		{"2", false, false},
		{"-1", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ToBool(tt.input)

			if result.Valid != tt.wantValid {
				t.Errorf("ToBool(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
				return
			}
			if tt.wantValid && result.Bool != tt.wantBool {
				t.Errorf("ToBool(%q).Bool = %v, want %v", tt.input, result.Bool, tt.wantBool)
			}
		})
	}
}

func TestToText(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantValid  bool
		wantString string
	}{
		{"simple string", "hello", true, "hello"},
		{"whitespace trimmed", "  hello world  ", true, "hello world"},
		{"unicode preserved", "café", true, "café"},
		{"empty", "", false, ""},
		{"only whitespace", "   ", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToText(tt.input)

			if result.Valid != tt.wantValid {
				t.Errorf("ToText(%q).Valid = %v, want %v", tt.input, result.Valid, tt.wantValid)
				return
			}
			if tt.wantValid && result.String != tt.wantString {
				t.Errorf("ToText(%q).String = %q, want %q", tt.input, result.String, tt.wantString)
			}
		})
	}
}
