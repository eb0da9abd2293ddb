package avifgain

import (
	"errors"
	"math"
	"testing"
)

func TestDoubleToUnsignedFractionExact(t *testing.T) {
	cases := []struct {
		v    float64
		n, d uint32
	}{
		{v: 0, n: 0, d: 1},
		{v: 1, n: 1, d: 1},
		{v: 4, n: 4, d: 1},
		{v: 1.5, n: 3, d: 2},
		{v: 0.25, n: 1, d: 4},
		{v: 2.0 / 3.0, n: 2, d: 3},
	}
	for _, tc := range cases {
		f, err := DoubleToUnsignedFraction(tc.v)
		if err != nil {
			t.Fatalf("DoubleToUnsignedFraction(%g): %v", tc.v, err)
		}
		if f.N != tc.n || f.D != tc.d {
			t.Errorf("DoubleToUnsignedFraction(%g) = %d/%d, want %d/%d", tc.v, f.N, f.D, tc.n, tc.d)
		}
		if f.Double() != tc.v {
			t.Errorf("fraction %d/%d = %g, want %g", f.N, f.D, f.Double(), tc.v)
		}
	}
}

func TestDoubleToUnsignedFractionApprox(t *testing.T) {
	for _, v := range []float64{math.Pi, math.Ln2, 0.1, 1e-6, 12345.6789} {
		f, err := DoubleToUnsignedFraction(v)
		if err != nil {
			t.Fatalf("DoubleToUnsignedFraction(%g): %v", v, err)
		}
		if !f.IsValid() {
			t.Fatalf("DoubleToUnsignedFraction(%g) returned zero denominator", v)
		}
		if rel := math.Abs(f.Double()-v) / v; rel > 1e-9 {
			t.Errorf("DoubleToUnsignedFraction(%g) = %d/%d, relative error %g", v, f.N, f.D, rel)
		}
	}
}

func TestDoubleToUnsignedFractionUnrepresentable(t *testing.T) {
	for _, v := range []float64{-1, math.NaN(), float64(math.MaxUint32) * 2} {
		if _, err := DoubleToUnsignedFraction(v); !errors.Is(err, ErrUnrepresentable) {
			t.Errorf("DoubleToUnsignedFraction(%g): got %v, want ErrUnrepresentable", v, err)
		}
	}
}

func TestDoubleToSignedFraction(t *testing.T) {
	f, err := DoubleToSignedFraction(-1.25)
	if err != nil {
		t.Fatalf("DoubleToSignedFraction(-1.25): %v", err)
	}
	if f.N != -5 || f.D != 4 {
		t.Errorf("DoubleToSignedFraction(-1.25) = %d/%d, want -5/4", f.N, f.D)
	}
	if _, err := DoubleToSignedFraction(float64(math.MaxInt32) * 2); !errors.Is(err, ErrUnrepresentable) {
		t.Errorf("overflowing value: got %v, want ErrUnrepresentable", err)
	}
}
