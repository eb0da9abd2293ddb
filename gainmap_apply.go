package avifgain

import (
	"fmt"
	"math"
)

// ApplyGainMap tone maps base toward the alternate rendition described by
// gm. targetHeadroom is the display's HDR capacity in log2 stops above SDR
// white; the gain map is applied at full strength when the target reaches
// the alternate's headroom and not at all at the base's headroom, with a
// linear blend in between.
//
// The result is written to dst, re-encoded with outTransfer and converted
// to outPrimaries. dst must match the base dimensions; its Pix buffer is
// allocated when nil. When outClli is non-nil it receives the light levels
// of the rendered output.
func ApplyGainMap(base *Image, gm *GainMap, targetHeadroom float64,
	outPrimaries ColorPrimaries, outTransfer TransferCharacteristics,
	dst *RGBImage, outClli *ContentLightLevel) error {
	if base == nil || gm == nil || gm.Image == nil || dst == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidArgument)
	}
	if len(base.Y) == 0 || len(gm.Image.Y) == 0 {
		return fmt.Errorf("%w: image has no planes", ErrInvalidArgument)
	}
	if dst.Width != base.Width || dst.Height != base.Height {
		return fmt.Errorf("%w: dimensions %dx%d vs %dx%d", ErrInvalidArgument,
			dst.Width, dst.Height, base.Width, base.Height)
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

	channelCount := gm.ChannelCount()
	mapFormat := FormatRGB
	if channelCount == 1 {
		mapFormat = FormatGray
	}
	mapRGB, err := NewRGBImage(gm.Image.Width, gm.Image.Height, gm.Image.Depth, mapFormat)
	if err != nil {
		return err
	}
	if err := gm.Image.ToRGB(mapRGB); err != nil {
		return err
	}

	weight := gainMapWeight(targetHeadroom, gm.BaseHdrHeadroom.Double(), gm.AlternateHdrHeadroom.Double())

	var gainMin, gainRange, invGamma, baseOff, altOff [3]float64
	for c := 0; c < 3; c++ {
		gainMin[c] = gm.GainMapMin[c].Double()
		gainRange[c] = gm.GainMapMax[c].Double() - gainMin[c]
		invGamma[c] = 1.0 / gm.Gamma[c].Double()
		baseOff[c] = gm.BaseOffset[c].Double()
		altOff[c] = gm.AlternateOffset[c].Double()
	}

	baseEOTF := transferToLinear(base.TransferCharacteristics)
	outOETF := transferFromLinear(outTransfer)

	// The gain math runs in the base or alternate primaries per the map's
	// flag; the rendered result then converts to the output primaries.
	workPrimaries := base.ColorPrimaries
	if !gm.UseBaseColorSpace {
		workPrimaries = gm.AltColorPrimaries
	}
	var preConv, postConv matrix3
	usePreConv, usePostConv := false, false
	if !gm.UseBaseColorSpace &&
		base.ColorPrimaries != workPrimaries &&
		base.ColorPrimaries != PrimariesUnspecified && workPrimaries != PrimariesUnspecified {
		preConv = gamutConversionMatrix(base.ColorPrimaries, workPrimaries)
		usePreConv = true
	}
	if workPrimaries != outPrimaries &&
		workPrimaries != PrimariesUnspecified && outPrimaries != PrimariesUnspecified {
		postConv = gamutConversionMatrix(workPrimaries, outPrimaries)
		usePostConv = true
	}

	ch := dst.Format.ChannelCount()
	if dst.Pix == nil {
		dst.Pix = make([]uint16, w*h*ch)
		dst.RowSamples = w * ch
	}
	ro, gOff, bo, ao := dst.Format.ChannelOffsets()

	kr, kg, kb := lumaCoefficients(outPrimaries)
	maxLum, sumLum := 0.0, 0.0

	baseMax := float64(baseRGB.MaxChannel())
	mapMax := float64(mapRGB.MaxChannel())
	dstMax := float64(dst.MaxChannel())
	for y := 0; y < h; y++ {
		// Nearest sampling of a possibly reduced-resolution map.
		gy := y * mapRGB.Height / h
		for x := 0; x < w; x++ {
			gx := x * mapRGB.Width / w

			bi := baseRGB.PixelIndex(x, y)
			var lin [3]float64
			for c := 0; c < 3; c++ {
				lin[c] = baseEOTF(float64(baseRGB.Pix[bi+c]) / baseMax)
			}
			if usePreConv {
				lin[0], lin[1], lin[2] = preConv.mulVec(lin[0], lin[1], lin[2])
			}

			mi := mapRGB.PixelIndex(gx, gy)
			for c := 0; c < 3; c++ {
				mc := c
				if channelCount == 1 {
					mc = 0
				}
				sample := float64(mapRGB.Pix[mi+mc]) / mapMax
				gain := gainMin[mc] + math.Pow(sample, invGamma[mc])*gainRange[mc]
				v := (lin[c]+baseOff[mc])*math.Exp2(weight*gain) - altOff[mc]
				lin[c] = math.Max(v, 0)
			}

			if usePostConv {
				lin[0], lin[1], lin[2] = postConv.mulVec(lin[0], lin[1], lin[2])
				for c := 0; c < 3; c++ {
					lin[c] = math.Max(lin[c], 0)
				}
			}

			if outClli != nil {
				lum := kr*lin[0] + kg*lin[1] + kb*lin[2]
				maxLum = math.Max(maxLum, lum)
				sumLum += lum
			}

			di := dst.PixelIndex(x, y)
			if dst.Format == FormatGray {
				lum := kr*lin[0] + kg*lin[1] + kb*lin[2]
				dst.Pix[di] = uint16(roundTiesAway(clampF(outOETF(lum), 0, 1) * dstMax))
			} else {
				dst.Pix[di+ro] = uint16(roundTiesAway(clampF(outOETF(lin[0]), 0, 1) * dstMax))
				dst.Pix[di+gOff] = uint16(roundTiesAway(clampF(outOETF(lin[1]), 0, 1) * dstMax))
				dst.Pix[di+bo] = uint16(roundTiesAway(clampF(outOETF(lin[2]), 0, 1) * dstMax))
			}
		}
	}

	if ao >= 0 {
		reformatAlphaToRGB(base, dst)
	}

	if outClli != nil {
		avg := sumLum / float64(w*h)
		outClli.MaxCLL = clampLightLevel(maxLum * sdrWhiteNits)
		outClli.MaxPALL = clampLightLevel(avg * sdrWhiteNits)
	}
	return nil
}

// gainMapWeight blends between the base (0) and alternate (1) renditions
// for a display headroom h. Equal headrooms mean the map has nothing to
// add, so the base wins.
func gainMapWeight(h, baseH, altH float64) float64 {
	if altH == baseH {
		return 0
	}
	return clampF((h-baseH)/(altH-baseH), 0, 1)
}

func clampLightLevel(nits float64) uint16 {
	v := roundTiesAway(nits)
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
