package avifgain

import (
	"fmt"
	"math"
)

// UnsignedFraction is an exact non-negative rational with 32-bit terms.
// A zero denominator marks an unset value.
type UnsignedFraction struct {
	N uint32
	D uint32
}

// SignedFraction is an exact rational with a signed 32-bit numerator.
type SignedFraction struct {
	N int32
	D uint32
}

// IsValid reports whether the fraction has a usable denominator.
func (f UnsignedFraction) IsValid() bool { return f.D != 0 }

// Double returns the fraction's value. The fraction must be valid.
func (f UnsignedFraction) Double() float64 { return float64(f.N) / float64(f.D) }

// IsValid reports whether the fraction has a usable denominator.
func (f SignedFraction) IsValid() bool { return f.D != 0 }

// Double returns the fraction's value. The fraction must be valid.
func (f SignedFraction) Double() float64 { return float64(f.N) / float64(f.D) }

// DoubleToUnsignedFraction finds the best rational approximation of v with
// 32-bit unsigned terms. Values that cannot be represented (NaN, negative,
// or larger than the numerator limit) return ErrUnrepresentable.
func DoubleToUnsignedFraction(v float64) (UnsignedFraction, error) {
	n, d, ok := bestFraction(v, math.MaxUint32)
	if !ok {
		return UnsignedFraction{}, fmt.Errorf("%w: %g as unsigned fraction", ErrUnrepresentable, v)
	}
	return UnsignedFraction{N: n, D: d}, nil
}

// DoubleToSignedFraction finds the best rational approximation of v with a
// signed 32-bit numerator.
func DoubleToSignedFraction(v float64) (SignedFraction, error) {
	n, d, ok := bestFraction(math.Abs(v), math.MaxInt32)
	if !ok {
		return SignedFraction{}, fmt.Errorf("%w: %g as signed fraction", ErrUnrepresentable, v)
	}
	sn := int32(n)
	if v < 0 {
		sn = -sn
	}
	return SignedFraction{N: sn, D: d}, nil
}

// bestFraction walks the continued fraction expansion of v, keeping the last
// convergent whose terms fit the limit. Exact hits return early so values
// like 4.0 or 1.5 round-trip bit exactly.
func bestFraction(v float64, maxNumerator uint32) (uint32, uint32, bool) {
	if math.IsNaN(v) || v < 0 || v > float64(maxNumerator) {
		return 0, 0, false
	}
	var maxD uint64
	if v <= 1 {
		maxD = math.MaxUint32
	} else {
		maxD = uint64(math.Floor(float64(maxNumerator) / v))
	}

	den := uint32(1)
	prevD := uint32(0)
	currentV := v - math.Floor(v)
	const maxIter = 39
	for iter := 0; iter < maxIter; iter++ {
		numeratorDouble := float64(den) * v
		if numeratorDouble > float64(maxNumerator) {
			return 0, 0, false
		}
		num := uint32(math.Round(numeratorDouble))
		if numeratorDouble == float64(num) {
			return num, den, true
		}
		if currentV == 0 {
			return num, den, true
		}
		currentV = 1.0 / currentV
		newD := float64(prevD) + math.Floor(currentV)*float64(den)
		if newD > float64(maxD) {
			return num, den, true
		}
		prevD = den
		if newD > float64(math.MaxUint32) {
			return 0, 0, false
		}
		den = uint32(newD)
		currentV -= math.Floor(currentV)
	}
	num := uint32(math.Round(float64(den) * v))
	return num, den, true
}
