package source

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestTextValue(t *testing.T) {
	wide, _ := new(big.Int).SetString("12345678901234567890123", 10)

	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"bytes", []byte("raw"), "raw"},
		{"int", int64(42), "42"},
		{"bool", true, "true"},
		{"time", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), "2026-03-01T12:00:00Z"},
		{"numeric", pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}, "12.50"},
		{"wide numeric", pgtype.Numeric{Int: wide, Exp: -3, Valid: true}, "12345678901234567890.123"},
		{"small numeric", pgtype.Numeric{Int: big.NewInt(7), Exp: -4, Valid: true}, "0.0007"},
		{"numeric with positive exponent", pgtype.Numeric{Int: big.NewInt(12), Exp: 3, Valid: true}, "12000"},
		{"negative numeric", pgtype.Numeric{Int: big.NewInt(-901), Exp: -1, Valid: true}, "-90.1"},
		{"numeric NaN", pgtype.Numeric{NaN: true, Valid: true}, "NaN"},
		{"null numeric", pgtype.Numeric{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textValue(tt.input); got != tt.expected {
				t.Errorf("textValue(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
