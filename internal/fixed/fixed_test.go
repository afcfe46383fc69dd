package fixed

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDivFloorAndCeil(t *testing.T) {
	a := decimal.NewFromInt(10)
	b := decimal.NewFromInt(3)

	if got := DivFloor(a, b); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("DivFloor(10,3) = %s, want 3", got)
	}
	if got := DivCeil(a, b); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("DivCeil(10,3) = %s, want 4", got)
	}

	exact := decimal.NewFromInt(9)
	if got := DivCeil(exact, b); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("DivCeil(9,3) = %s, want 3", got)
	}
}

func TestMulDiv(t *testing.T) {
	amount := decimal.NewFromInt(1000)
	n := decimal.NewFromInt(3)
	d := decimal.NewFromInt(1000)

	if got := MulDivFloor(amount, n, d); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("MulDivFloor = %s, want 3", got)
	}

	amount = decimal.NewFromInt(999)
	if got := MulDivFloor(amount, n, d); !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("MulDivFloor(999*3/1000) = %s, want 2", got)
	}
	if got := MulDivCeil(amount, n, d); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("MulDivCeil(999*3/1000) = %s, want 3", got)
	}
}

func TestShiftRoundTrip(t *testing.T) {
	v := decimal.RequireFromString("1.5")
	raw := Shift(v, 6)
	if !raw.Equal(decimal.NewFromInt(1_500_000)) {
		t.Fatalf("Shift(1.5, 6) = %s, want 1500000", raw)
	}
	if got := Unshift(raw, 6); !got.Equal(v) {
		t.Fatalf("Unshift round trip = %s, want 1.5", got)
	}
}

func TestIsGood(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"0.000001", true},
		{"0", false},
		{"-1", false},
	}
	for _, tc := range cases {
		if got := IsGood(decimal.RequireFromString(tc.value)); got != tc.want {
			t.Fatalf("IsGood(%s) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
