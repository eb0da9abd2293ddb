package avifgain

import "math"

// Transfer curves map encoded samples in [0,1] to linear light where
// 1.0 is SDR white (203 nits), and back. HDR transfers (PQ, HLG) produce
// linear values above 1.0 for highlights.

type transferFunc func(float64) float64

// PQ (SMPTE ST 2084) constants.
const (
	pqM1 = 2610.0 / 16384.0
	pqM2 = 2523.0 / 4096.0 * 128.0
	pqC1 = 3424.0 / 4096.0
	pqC2 = 2413.0 / 4096.0 * 32.0
	pqC3 = 2392.0 / 4096.0 * 32.0
)

// HLG (ARIB STD-B67) constants.
const (
	hlgA = 0.17883277
	hlgB = 0.28466892
	hlgC = 0.55991073
)

func srgbToLinear(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func srgbFromLinear(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1.0/2.4) - 0.055
}

func bt709ToLinear(v float64) float64 {
	if v < 0.081 {
		return v / 4.5
	}
	return math.Pow((v+0.099)/1.099, 1.0/0.45)
}

func bt709FromLinear(v float64) float64 {
	if v < 0.018 {
		return 4.5 * v
	}
	return 1.099*math.Pow(v, 0.45) - 0.099
}

func smpte240ToLinear(v float64) float64 {
	if v < 0.0913 {
		return v / 4.0
	}
	return math.Pow((v+0.1115)/1.1115, 1.0/0.45)
}

func smpte240FromLinear(v float64) float64 {
	if v < 0.0228 {
		return 4.0 * v
	}
	return 1.1115*math.Pow(v, 0.45) - 0.1115
}

func pqToLinear(v float64) float64 {
	p := math.Pow(v, 1.0/pqM2)
	num := math.Max(p-pqC1, 0)
	den := pqC2 - pqC3*p
	if den <= 0 {
		return pqMaxNits / sdrWhiteNits
	}
	return math.Pow(num/den, 1.0/pqM1) * (pqMaxNits / sdrWhiteNits)
}

func pqFromLinear(v float64) float64 {
	y := clampF(v*(sdrWhiteNits/pqMaxNits), 0, 1)
	p := math.Pow(y, pqM1)
	return math.Pow((pqC1+pqC2*p)/(1+pqC3*p), pqM2)
}

func hlgToLinear(v float64) float64 {
	var e float64
	if v <= 0.5 {
		e = v * v / 3.0
	} else {
		e = (math.Exp((v-hlgC)/hlgA) + hlgB) / 12.0
	}
	return e * (hlgMaxNits / sdrWhiteNits)
}

func hlgFromLinear(v float64) float64 {
	e := clampF(v*(sdrWhiteNits/hlgMaxNits), 0, 1)
	if e <= 1.0/12.0 {
		return math.Sqrt(3.0 * e)
	}
	return hlgA*math.Log(12.0*e-hlgB) + hlgC
}

// transferToLinear returns the EOTF for tc. Unspecified curves decode as
// sRGB, matching the defaulting used throughout the pipeline.
func transferToLinear(tc TransferCharacteristics) transferFunc {
	switch tc {
	case TransferLinear:
		return func(v float64) float64 { return v }
	case TransferBT709, TransferBT601, TransferBT2020_10, TransferBT2020_12:
		return bt709ToLinear
	case TransferBT470M:
		return func(v float64) float64 { return math.Pow(v, 2.2) }
	case TransferBT470BG:
		return func(v float64) float64 { return math.Pow(v, 2.8) }
	case TransferSMPTE240:
		return smpte240ToLinear
	case TransferPQ:
		return pqToLinear
	case TransferHLG:
		return hlgToLinear
	default:
		return srgbToLinear
	}
}

// transferFromLinear returns the inverse of transferToLinear(tc).
func transferFromLinear(tc TransferCharacteristics) transferFunc {
	switch tc {
	case TransferLinear:
		return func(v float64) float64 { return v }
	case TransferBT709, TransferBT601, TransferBT2020_10, TransferBT2020_12:
		return bt709FromLinear
	case TransferBT470M:
		return func(v float64) float64 { return math.Pow(v, 1.0/2.2) }
	case TransferBT470BG:
		return func(v float64) float64 { return math.Pow(v, 1.0/2.8) }
	case TransferSMPTE240:
		return smpte240FromLinear
	case TransferPQ:
		return pqFromLinear
	case TransferHLG:
		return hlgFromLinear
	default:
		return srgbFromLinear
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
