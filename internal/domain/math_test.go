package domain

import (
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSafeParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid integer", "100", "100"},
		{"valid decimal", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"empty string", "", "0"},
		{"invalid string", "abc", "0"},
		{"whitespace", "  ", "0"},
		{"eighteen decimals", "0.000000000000000001", "0.000000000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeParse(tt.input)
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("SafeParse(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestSafeSum(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"none", nil, "0"},
		{"integers", []string{"10", "5"}, "15"},
		{"decimals without drift", []string{"0.1", "0.2"}, "0.3"},
		{"invalid skipped", []string{"1.5", "abc", ""}, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeSum(tt.values...)
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("SafeSum(%v) = %s, want %s", tt.values, got, want)
			}
		})
	}
}

func TestWholeUnits(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"10", 10},
		{"5.9", 5},
		{"0.99", 0},
		{"", 0},
		{"nope", 0},
		{"-2.5", -2},
		{"99999999999999999999", math.MaxInt64},
		{"-99999999999999999999.5", math.MinInt64},
		{"9223372036854775807.9", math.MaxInt64},
	}

	for _, tt := range tests {
		if got := WholeUnits(tt.input); got != tt.want {
			t.Errorf("WholeUnits(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestBaseUnitsRoundTrip(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)

	got := FromBaseUnits(wei, 18)
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("FromBaseUnits = %s, want 1.5", got)
	}

	back := ToBaseUnits(got, 18)
	if back.Cmp(wei) != 0 {
		t.Errorf("ToBaseUnits = %s, want %s", back, wei)
	}
}

func TestFromBaseUnitsNil(t *testing.T) {
	if got := FromBaseUnits(nil, 18); !got.IsZero() {
		t.Errorf("FromBaseUnits(nil) = %s, want 0", got)
	}
}

func TestToBaseUnitsTruncatesExtraPrecision(t *testing.T) {
	got := ToBaseUnits(decimal.RequireFromString("1.239"), 2)
	if got.Int64() != 123 {
		t.Errorf("ToBaseUnits(1.239, 2) = %s, want 123", got)
	}
}
