package model

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPairKeyCanonical(t *testing.T) {
	cases := []struct {
		a, b string
		want string
	}{
		{"token-a", "token-b", "token-a/token-b"},
		{"token-b", "token-a", "token-a/token-b"},
		{"TOKEN-A", "token-b", "token-a/token-b"},
	}
	for _, tc := range cases {
		if got := PairKey(tc.a, tc.b); got != tc.want {
			t.Fatalf("PairKey(%q, %q) = %q, want %q", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPoolOther(t *testing.T) {
	pool := Pool{LeftRoot: "token-a", RightRoot: "token-b"}

	other, ok := pool.Other("token-a")
	if !ok || other != "token-b" {
		t.Fatalf("Other(token-a) = %q, %v", other, ok)
	}
	other, ok = pool.Other("TOKEN-B")
	if !ok || other != "token-a" {
		t.Fatalf("Other is case-insensitive: got %q, %v", other, ok)
	}
	if _, ok := pool.Other("token-x"); ok {
		t.Fatal("foreign root must not match")
	}
	if !pool.Contains("token-b") || pool.Contains("token-x") {
		t.Fatal("Contains mismatch")
	}
}

func TestPoolHasLiquidity(t *testing.T) {
	pool := Pool{
		LeftReserve:  decimal.NewFromInt(1),
		RightReserve: decimal.NewFromInt(1),
	}
	if !pool.HasLiquidity() {
		t.Fatal("both reserves positive")
	}
	pool.RightReserve = decimal.Zero
	if pool.HasLiquidity() {
		t.Fatal("one empty reserve means no liquidity")
	}
}

func TestRouteTokens(t *testing.T) {
	route := Route{Hops: []RouteHop{
		{FromRoot: "token-a", ToRoot: "token-b"},
		{FromRoot: "token-b", ToRoot: "token-c"},
	}}
	want := []string{"token-a", "token-b", "token-c"}
	if got := route.Tokens(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokens() = %v, want %v", got, want)
	}
	if got := (Route{}).Tokens(); got != nil {
		t.Fatalf("empty route tokens = %v", got)
	}
}
