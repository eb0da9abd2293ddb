package avifgain

import (
	"fmt"
	"math"

	"github.com/nfnt/resize"
)

// minLinear keeps the log2 gain ratio finite when a linear sample plus its
// offset collapses to zero.
const minLinear = 1e-10

// ComputeGainMap fills gm's pixel data and metadata from a base and an
// alternate rendition of the same scene. Both images are converted to
// linear light with their own transfer curves; the per-pixel log2 ratio of
// the two is normalized to the observed extrema and encoded into gm.Image
// at its configured depth, format and dimensions.
//
// gm.Image must be set up by the caller. A monochrome gain map image
// collapses the three channels into one luminance gain. When gm.Image is
// smaller than the renditions, the encoded map is resampled down to it.
//
// The offsets and gamma already present in gm drive the math; NewGainMap
// seeds the standard defaults.
func ComputeGainMap(base, alternate *Image, gm *GainMap) error {
	if base == nil || alternate == nil || gm == nil || gm.Image == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidArgument)
	}
	if base.Width != alternate.Width || base.Height != alternate.Height {
		return fmt.Errorf("%w: base %dx%d vs alternate %dx%d", ErrInvalidArgument,
			base.Width, base.Height, alternate.Width, alternate.Height)
	}
	if len(base.Y) == 0 || len(alternate.Y) == 0 {
		return fmt.Errorf("%w: image has no planes", ErrInvalidArgument)
	}
	if err := gm.validate(); err != nil {
		return err
	}

	w, h := base.Width, base.Height

	baseRGB, err := NewRGBImage(w, h, base.Depth, FormatRGB)
	if err != nil {
		return err
	}
	if err := base.ToRGB(baseRGB); err != nil {
		return err
	}
	altRGB, err := NewRGBImage(w, h, alternate.Depth, FormatRGB)
	if err != nil {
		return err
	}
	if err := alternate.ToRGB(altRGB); err != nil {
		return err
	}

	baseEOTF := transferToLinear(base.TransferCharacteristics)
	altEOTF := transferToLinear(alternate.TransferCharacteristics)

	// Gains are measured in one rendition's color space; convert the
	// other side's linear RGB into it when the primaries differ.
	convertBase, convertAlt := false, false
	var conv matrix3
	workPrimaries := base.ColorPrimaries
	if !gm.UseBaseColorSpace {
		workPrimaries = alternate.ColorPrimaries
	}
	if base.ColorPrimaries != alternate.ColorPrimaries &&
		base.ColorPrimaries != PrimariesUnspecified &&
		alternate.ColorPrimaries != PrimariesUnspecified {
		if gm.UseBaseColorSpace {
			conv = gamutConversionMatrix(alternate.ColorPrimaries, base.ColorPrimaries)
			convertAlt = true
		} else {
			conv = gamutConversionMatrix(base.ColorPrimaries, alternate.ColorPrimaries)
			convertBase = true
		}
	}

	channelCount := gm.ChannelCount()
	kr, kg, kb := lumaCoefficients(workPrimaries)

	gains := make([]float64, w*h*channelCount)
	minGain := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxGain := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	baseMaxLinear, altMaxLinear := 0.0, 0.0

	baseOff := [3]float64{gm.BaseOffset[0].Double(), gm.BaseOffset[1].Double(), gm.BaseOffset[2].Double()}
	altOff := [3]float64{gm.AlternateOffset[0].Double(), gm.AlternateOffset[1].Double(), gm.AlternateOffset[2].Double()}

	baseMax := float64(baseRGB.MaxChannel())
	altMax := float64(altRGB.MaxChannel())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bi := baseRGB.PixelIndex(x, y)
			ai := altRGB.PixelIndex(x, y)
			var bl, al [3]float64
			for c := 0; c < 3; c++ {
				bl[c] = baseEOTF(float64(baseRGB.Pix[bi+c]) / baseMax)
				al[c] = altEOTF(float64(altRGB.Pix[ai+c]) / altMax)
			}
			if convertAlt {
				al[0], al[1], al[2] = conv.mulVec(al[0], al[1], al[2])
			}
			if convertBase {
				bl[0], bl[1], bl[2] = conv.mulVec(bl[0], bl[1], bl[2])
			}
			baseY := kr*bl[0] + kg*bl[1] + kb*bl[2]
			altY := kr*al[0] + kg*al[1] + kb*al[2]
			baseMaxLinear = math.Max(baseMaxLinear, baseY)
			altMaxLinear = math.Max(altMaxLinear, altY)

			gi := (y*w + x) * channelCount
			if channelCount == 1 {
				g := math.Log2(math.Max(altY+altOff[0], minLinear) / math.Max(baseY+baseOff[0], minLinear))
				gains[gi] = g
				minGain[0] = math.Min(minGain[0], g)
				maxGain[0] = math.Max(maxGain[0], g)
			} else {
				for c := 0; c < 3; c++ {
					g := math.Log2(math.Max(al[c]+altOff[c], minLinear) / math.Max(bl[c]+baseOff[c], minLinear))
					gains[gi+c] = g
					minGain[c] = math.Min(minGain[c], g)
					maxGain[c] = math.Max(maxGain[c], g)
				}
			}
		}
	}

	for c := 0; c < channelCount; c++ {
		if gm.GainMapMin[c], err = DoubleToSignedFraction(minGain[c]); err != nil {
			return err
		}
		if gm.GainMapMax[c], err = DoubleToSignedFraction(maxGain[c]); err != nil {
			return err
		}
	}
	for c := channelCount; c < 3; c++ {
		gm.GainMapMin[c] = gm.GainMapMin[0]
		gm.GainMapMax[c] = gm.GainMapMax[0]
		gm.Gamma[c] = gm.Gamma[0]
	}

	// Headrooms describe each rendition's capacity above SDR white, in
	// log2 stops. 1.0 linear is SDR white, so SDR content lands at zero.
	baseHeadroom := math.Log2(math.Max(baseMaxLinear, 1.0))
	altHeadroom := math.Log2(math.Max(altMaxLinear, 1.0))
	if gm.BaseHdrHeadroom, err = DoubleToUnsignedFraction(baseHeadroom); err != nil {
		return err
	}
	if gm.AlternateHdrHeadroom, err = DoubleToUnsignedFraction(altHeadroom); err != nil {
		return err
	}

	// Fill the alternate colorimetry block. Pixel planes of the alternate
	// are recoverable from base + map, so only its description travels.
	gm.AltICC = append([]byte(nil), alternate.ICC...)
	gm.AltColorPrimaries = alternate.ColorPrimaries
	gm.AltTransferCharacteristics = alternate.TransferCharacteristics
	gm.AltMatrixCoefficients = alternate.MatrixCoefficients
	gm.AltYUVRange = alternate.Range
	gm.AltDepth = alternate.Depth
	gm.AltPlaneCount = 3
	if alternate.Format.Monochrome() {
		gm.AltPlaneCount = 1
	}
	if alternate.CLLI != nil {
		gm.AltCLLI = *alternate.CLLI
	} else {
		gm.AltCLLI = ContentLightLevel{}
	}

	return gm.encodePixels(gains, w, h, channelCount, minGain, maxGain)
}

// encodePixels normalizes the raw log2 gains to [0,1], applies the gamma
// remap and converts the result into gm.Image's planes, resampling if the
// map uses a reduced grid.
func (gm *GainMap) encodePixels(gains []float64, w, h, channelCount int, minGain, maxGain [3]float64) error {
	format := FormatRGB
	if channelCount == 1 {
		format = FormatGray
	}
	enc, err := NewRGBImage(w, h, gm.Image.Depth, format)
	if err != nil {
		return err
	}

	var gamma, gainRange [3]float64
	for c := 0; c < channelCount; c++ {
		gamma[c] = gm.Gamma[c].Double()
		gainRange[c] = maxGain[c] - minGain[c]
	}
	sampleMax := float64(enc.MaxChannel())

	for i := 0; i < w*h; i++ {
		for c := 0; c < channelCount; c++ {
			v := 0.0
			if gainRange[c] > 0 {
				v = clampF((gains[i*channelCount+c]-minGain[c])/gainRange[c], 0, 1)
			}
			v = math.Pow(v, gamma[c])
			enc.Pix[i*channelCount+c] = uint16(math.Round(v * sampleMax))
		}
	}

	if gm.Image.Width != w || gm.Image.Height != h {
		enc, err = ResizeRGB(enc, gm.Image.Width, gm.Image.Height, resize.Bilinear)
		if err != nil {
			return err
		}
	}
	return gm.Image.FromRGB(enc)
}
