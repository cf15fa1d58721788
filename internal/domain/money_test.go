package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyMarshalHalfEven(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.00"}, // banker's: empata hacia el par
		{"10.015", "10.02"},
		{"10.025", "10.02"},
		{"2.675", "2.68"},
		{"-3.125", "-3.12"},
		{"5", "5.00"},
		{"0", "0.00"},
	}
	for _, c := range cases {
		m := NewMoney(decimal.RequireFromString(c.in))
		b, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if string(b) != c.want {
			t.Errorf("marshal %s = %s, want %s", c.in, b, c.want)
		}
	}
}

func TestMoneyUnmarshal(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`12.34`), &m); err != nil {
		t.Fatalf("number: %v", err)
	}
	if !m.Decimal.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("number: got %s", m.Decimal)
	}
	if err := json.Unmarshal([]byte(`"56.78"`), &m); err != nil {
		t.Fatalf("quoted: %v", err)
	}
	if !m.Decimal.Equal(decimal.RequireFromString("56.78")) {
		t.Fatalf("quoted: got %s", m.Decimal)
	}
}

func TestDeriveGUIDStable(t *testing.T) {
	a := DeriveGUID("1001", "1", "000042", "2026-08-21T14:03:22")
	b := DeriveGUID("1001", "1", "000042", "2026-08-21T14:03:22")
	if a != b {
		t.Fatalf("same inputs produced different GUIDs: %s vs %s", a, b)
	}
	c := DeriveGUID("1001", "2", "000042", "2026-08-21T14:03:22")
	if a == c {
		t.Fatal("different terminal produced the same GUID")
	}
	if len(a) != 36 {
		t.Fatalf("not a canonical UUID: %s", a)
	}
}
