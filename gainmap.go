package avifgain

import "fmt"

// GainMap couples a per-pixel correction image with the metadata needed to
// tone map between its base and alternate renditions. The stored samples
// are log2 multiplier values, normalized to [GainMapMin, GainMapMax] and
// remapped through Gamma.
//
// The alternate rendition is not carried as pixels; only its colorimetry
// travels with the map so a decoder can recover it from the base image.
type GainMap struct {
	// Image holds the encoded gain samples. A monochrome image applies
	// one channel to all three; otherwise the planes are per-channel.
	Image *Image

	GainMapMin      [3]SignedFraction
	GainMapMax      [3]SignedFraction
	Gamma           [3]UnsignedFraction
	BaseOffset      [3]SignedFraction
	AlternateOffset [3]SignedFraction

	// Headrooms are log2 of the rendition's HDR capacity over SDR white.
	// Zero means SDR.
	BaseHdrHeadroom      UnsignedFraction
	AlternateHdrHeadroom UnsignedFraction

	// UseBaseColorSpace selects which rendition's color space the gain
	// map math happens in.
	UseBaseColorSpace bool

	// Colorimetry of the alternate rendition.
	AltICC                     []byte
	AltColorPrimaries          ColorPrimaries
	AltTransferCharacteristics TransferCharacteristics
	AltMatrixCoefficients      MatrixCoefficients
	AltYUVRange                Range
	AltDepth                   int
	AltPlaneCount              int
	AltCLLI                    ContentLightLevel
}

// NewGainMap returns a gain map with the identity metadata defaults:
// unit gamma, zero gains and the standard 1/64 offsets.
func NewGainMap() *GainMap {
	gm := &GainMap{
		UseBaseColorSpace:    true,
		BaseHdrHeadroom:      UnsignedFraction{N: 0, D: 1},
		AlternateHdrHeadroom: UnsignedFraction{N: 0, D: 1},
		AltYUVRange:          RangeFull,
		AltDepth:             8,
		AltPlaneCount:        3,
	}
	for c := 0; c < 3; c++ {
		gm.GainMapMin[c] = SignedFraction{N: 0, D: 1}
		gm.GainMapMax[c] = SignedFraction{N: 0, D: 1}
		gm.Gamma[c] = UnsignedFraction{N: defaultGainMapGamma, D: 1}
		gm.BaseOffset[c] = SignedFraction{N: defaultOffsetN, D: defaultOffsetD}
		gm.AlternateOffset[c] = SignedFraction{N: defaultOffsetN, D: defaultOffsetD}
	}
	return gm
}

// ChannelCount reports how many distinct channels the map carries: one
// when the pixel data is monochrome, three otherwise.
func (gm *GainMap) ChannelCount() int {
	if gm.Image != nil && gm.Image.Format.Monochrome() {
		return 1
	}
	return 3
}

func (gm *GainMap) validate() error {
	for c := 0; c < 3; c++ {
		if !gm.Gamma[c].IsValid() || gm.Gamma[c].N == 0 {
			return fmt.Errorf("%w: gain map gamma must be positive", ErrInvalidArgument)
		}
		if !gm.GainMapMin[c].IsValid() || !gm.GainMapMax[c].IsValid() ||
			!gm.BaseOffset[c].IsValid() || !gm.AlternateOffset[c].IsValid() {
			return fmt.Errorf("%w: gain map fraction has zero denominator", ErrInvalidArgument)
		}
		if gm.GainMapMin[c].Double() > gm.GainMapMax[c].Double() {
			return fmt.Errorf("%w: gain map min above max", ErrInvalidArgument)
		}
	}
	if !gm.BaseHdrHeadroom.IsValid() || !gm.AlternateHdrHeadroom.IsValid() {
		return fmt.Errorf("%w: hdr headroom has zero denominator", ErrInvalidArgument)
	}
	return nil
}

// identicalChannels reports whether the metadata carries one distinct
// channel worth of values.
func (gm *GainMap) identicalChannels() bool {
	for c := 1; c < 3; c++ {
		if gm.GainMapMin[c] != gm.GainMapMin[0] ||
			gm.GainMapMax[c] != gm.GainMapMax[0] ||
			gm.Gamma[c] != gm.Gamma[0] ||
			gm.BaseOffset[c] != gm.BaseOffset[0] ||
			gm.AlternateOffset[c] != gm.AlternateOffset[0] {
			return false
		}
	}
	return true
}
