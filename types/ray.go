// Package types provides common types used across the stable debt ledger.
package types

import (
	"math/big"
	"time"
)

// All amounts are wads (18-decimal fixed point) and all interest rates are
// rays (27-decimal fixed point). Arithmetic is integer-only on big.Int with
// half-up rounding, with no floating point anywhere.

// SecondsPerYear is the year length used for per-second rate derivation.
const SecondsPerYear = 31_536_000

var (
	// Wad is the 18-decimal fixed-point unit for token amounts.
	Wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// Ray is the 27-decimal fixed-point unit for interest rates.
	Ray = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

	halfRay = new(big.Int).Rsh(Ray, 1)

	// wadRayRatio converts between the two scales (10^9).
	wadRayRatio     = new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)
	halfWadRayRatio = new(big.Int).Rsh(wadRayRatio, 1)

	secondsPerYear = big.NewInt(SecondsPerYear)

	two = big.NewInt(2)
	six = big.NewInt(6)
)

// Arithmetic operations

// RayMul multiplies two ray values, rounding half up.
func RayMul(a, b *big.Int) *big.Int {
	if a.Sign() == 0 || b.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(a, b)
	out.Add(out, halfRay)
	return out.Div(out, Ray)
}

// RayDiv divides two ray values, rounding half up. Panics if b is zero.
func RayDiv(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		panic("types: ray division by zero")
	}
	out := new(big.Int).Mul(a, Ray)
	half := new(big.Int).Rsh(b, 1)
	out.Add(out, half)
	return out.Div(out, b)
}

// Conversions

// WadToRay scales a wad value up to ray precision.
func WadToRay(a *big.Int) *big.Int {
	return new(big.Int).Mul(a, wadRayRatio)
}

// RayToWad scales a ray value down to wad precision, rounding half up.
func RayToWad(a *big.Int) *big.Int {
	out := new(big.Int).Add(a, halfWadRayRatio)
	return out.Div(out, wadRayRatio)
}

// Interest

// CompoundedInterest returns the interest factor in ray accrued by rate
// (a yearly rate in ray) over the interval [from, to]. It uses a binomial
// expansion to the third term:
//
//	(1 + r/N)^t ≈ 1 + r·t/N + t(t-1)/2·(r/N)^2 + t(t-1)(t-2)/6·(r/N)^3
//
// where N is SecondsPerYear and t the elapsed whole seconds. The cubic
// approximation slightly undercharges large rates over long intervals,
// which is the convention borrowers expect.
func CompoundedInterest(rate *big.Int, from, to time.Time) *big.Int {
	exp := to.Unix() - from.Unix()
	if exp <= 0 {
		return new(big.Int).Set(Ray)
	}

	expBig := big.NewInt(exp)
	expMinusOne := big.NewInt(exp - 1)
	expMinusTwo := big.NewInt(0)
	if exp > 2 {
		expMinusTwo = big.NewInt(exp - 2)
	}

	ratePerSecond := new(big.Int).Div(rate, secondsPerYear)
	basePowerTwo := RayMul(ratePerSecond, ratePerSecond)
	basePowerThree := RayMul(basePowerTwo, ratePerSecond)

	secondTerm := new(big.Int).Mul(expBig, expMinusOne)
	secondTerm.Mul(secondTerm, basePowerTwo)
	secondTerm.Div(secondTerm, two)

	thirdTerm := new(big.Int).Mul(expBig, expMinusOne)
	thirdTerm.Mul(thirdTerm, expMinusTwo)
	thirdTerm.Mul(thirdTerm, basePowerThree)
	thirdTerm.Div(thirdTerm, six)

	out := new(big.Int).Mul(ratePerSecond, expBig)
	out.Add(out, Ray)
	out.Add(out, secondTerm)
	return out.Add(out, thirdTerm)
}

// CompoundBalance compounds a wad principal at the given yearly ray rate
// over [from, to], returning the grown balance in wad.
func CompoundBalance(principal, rate *big.Int, from, to time.Time) *big.Int {
	if principal.Sign() == 0 {
		return new(big.Int)
	}
	cumulated := CompoundedInterest(rate, from, to)
	return RayToWad(RayMul(WadToRay(principal), cumulated))
}
