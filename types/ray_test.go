package types

import (
	"math/big"
	"testing"
	"time"
)

func ray(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big.Int literal: " + s)
	}
	return v
}

func TestRayMul(t *testing.T) {
	tests := []struct {
		name     string
		a, b     *big.Int
		expected *big.Int
	}{
		{"identity", Ray, Ray, Ray},
		{"zero left", new(big.Int), Ray, new(big.Int)},
		{"zero right", Ray, new(big.Int), new(big.Int)},
		{"two times three", new(big.Int).Mul(Ray, big.NewInt(2)), new(big.Int).Mul(Ray, big.NewInt(3)), new(big.Int).Mul(Ray, big.NewInt(6))},
		{"rounds half up", big.NewInt(1), ray("500000000000000000000000000"), big.NewInt(1)},
		{"rounds down below half", big.NewInt(1), ray("499999999999999999999999999"), new(big.Int)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RayMul(tt.a, tt.b)
			if got.Cmp(tt.expected) != 0 {
				t.Errorf("Got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestRayDiv(t *testing.T) {
	six := new(big.Int).Mul(Ray, big.NewInt(6))
	three := new(big.Int).Mul(Ray, big.NewInt(3))
	got := RayDiv(six, three)
	want := new(big.Int).Mul(Ray, big.NewInt(2))
	if got.Cmp(want) != 0 {
		t.Errorf("Got %s, want %s", got, want)
	}

	// 1/3 ray rounds half up
	got = RayDiv(Ray, three)
	want = ray("333333333333333333333333333")
	if got.Cmp(want) != 0 {
		t.Errorf("Got %s, want %s", got, want)
	}
}

func TestRayDivByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	_ = RayDiv(Ray, new(big.Int))
}

func TestWadRayConversions(t *testing.T) {
	oneWad := new(big.Int).Set(Wad)
	if got := WadToRay(oneWad); got.Cmp(Ray) != 0 {
		t.Errorf("WadToRay: got %s, want %s", got, Ray)
	}
	if got := RayToWad(Ray); got.Cmp(Wad) != 0 {
		t.Errorf("RayToWad: got %s, want %s", got, Wad)
	}

	// Round trip preserves the value
	v := ray("123456789123456789")
	if got := RayToWad(WadToRay(v)); got.Cmp(v) != 0 {
		t.Errorf("Round trip: got %s, want %s", got, v)
	}
}

func TestCompoundedInterestZeroInterval(t *testing.T) {
	now := time.Now()
	rate := ray("100000000000000000000000000") // 10% yearly

	if got := CompoundedInterest(rate, now, now); got.Cmp(Ray) != 0 {
		t.Errorf("Got %s, want %s", got, Ray)
	}
	// Negative intervals clamp to no interest
	if got := CompoundedInterest(rate, now, now.Add(-time.Hour)); got.Cmp(Ray) != 0 {
		t.Errorf("Got %s, want %s", got, Ray)
	}
}

func TestCompoundedInterestExact(t *testing.T) {
	// Rate chosen so the per-second rate is exactly 1e18 ray (1e-9).
	// Over 3 seconds the cubic expansion is exact:
	// (1 + 1e-9)^3 = 1 + 3e-9 + 3e-18 + 1e-27.
	rate := new(big.Int).Mul(big.NewInt(SecondsPerYear), ray("1000000000000000000"))
	from := time.Unix(1_700_000_000, 0)
	to := from.Add(3 * time.Second)

	want := ray("1000000003000000003000000001")
	if got := CompoundedInterest(rate, from, to); got.Cmp(want) != 0 {
		t.Errorf("Got %s, want %s", got, want)
	}
}

func TestCompoundBalance(t *testing.T) {
	principal := new(big.Int).Mul(big.NewInt(100), Wad)
	rate := new(big.Int).Mul(big.NewInt(SecondsPerYear), ray("1000000000000000000"))
	from := time.Unix(1_700_000_000, 0)

	// No elapsed time: balance unchanged
	if got := CompoundBalance(principal, rate, from, from); got.Cmp(principal) != 0 {
		t.Errorf("Got %s, want %s", got, principal)
	}

	// Zero principal stays zero regardless of rate
	if got := CompoundBalance(new(big.Int), rate, from, from.Add(time.Hour)); got.Sign() != 0 {
		t.Errorf("Got %s, want 0", got)
	}

	// 100 wad over 3 seconds at 1e-9/s
	want := ray("100000000300000000300")
	if got := CompoundBalance(principal, rate, from, from.Add(3*time.Second)); got.Cmp(want) != 0 {
		t.Errorf("Got %s, want %s", got, want)
	}
}
