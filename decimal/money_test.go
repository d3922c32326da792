package decimal

import (
	"encoding/json"
	"testing"
)

func TestMoney_RoundIsBankersAtScaleSix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.0000005", "1.000000"}, // ties to even: 0 stays
		{"1.0000015", "1.000002"}, // ties to even: 1 rounds up to 2
		{"1.0000004", "1.000000"},
		{"1.0000006", "1.000001"},
	}
	for _, c := range cases {
		m, err := NewMoneyFromString(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got := m.Round().String(); got != c.want {
			t.Errorf("Round(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestMoney_IntermediateArithmeticDoesNotRound(t *testing.T) {
	// GIVEN three thirds accumulated without rounding
	third, err := NewMoneyFromString("0.3333333333")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sum := third.Add(third).Add(third)

	// THEN the unrounded sum keeps all digits; only Round materializes
	if sum.Decimal().String() != "0.9999999999" {
		t.Errorf("unrounded sum = %s, want 0.9999999999", sum.Decimal())
	}
	if got := sum.Round().String(); got != "1.000000" {
		t.Errorf("rounded sum = %s, want 1.000000", got)
	}
}

func TestRate_RoundIsBankersAtScaleFour(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0.12345", "0.1234"}, // ties to even: 4 stays
		{"0.12355", "0.1236"}, // ties to even: 5 rounds up to 6
		{"0.0600", "0.0600"},
	}
	for _, c := range cases {
		r, err := NewRateFromString(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got := r.Round().String(); got != c.want {
			t.Errorf("Round(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m, err := NewMoneyFromString("12345.678901")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Decimal().Equal(m.Decimal()) {
		t.Errorf("round trip %s != %s", back, m)
	}
}

func TestMoney_ComparisonsAreExact(t *testing.T) {
	limit, _ := NewMoneyFromString("23000")
	under, _ := NewMoneyFromString("22999.999999")
	over, _ := NewMoneyFromString("23000.000001")

	if !under.LessThan(limit) {
		t.Error("22999.999999 must compare under the limit")
	}
	if !over.GreaterThan(limit) {
		t.Error("23000.000001 must compare over the limit")
	}
	if limit.GreaterThan(limit) || limit.LessThan(limit) {
		t.Error("a limit must not compare against itself")
	}
}

func TestMoney_MinMax(t *testing.T) {
	a := NewMoney(100)
	b := NewMoney(200)
	if !a.Min(b).Decimal().Equal(a.Decimal()) {
		t.Error("Min must return the smaller amount")
	}
	if !a.Max(b).Decimal().Equal(b.Decimal()) {
		t.Error("Max must return the larger amount")
	}
}
