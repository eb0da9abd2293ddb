package avifgain

import "fmt"

// ChangeBase swaps which rendition of a gain-mapped image is stored as
// pixels. The alternate rendition is rendered by applying the gain map at
// full strength, converted to YUV at the requested depth and format, and
// becomes the new base; the old base survives as the alternate description
// in the swapped gain map, whose pixel data is reused unchanged.
//
// Applying the swapped image's gain map at full strength recovers the old
// base up to conversion rounding.
func ChangeBase(img *Image, depth int, format PixelFormat) (*Image, error) {
	if img == nil || img.GainMap == nil || img.GainMap.Image == nil {
		return nil, fmt.Errorf("%w: image has no gain map", ErrInvalidArgument)
	}
	gm := img.GainMap
	if !gm.AlternateHdrHeadroom.IsValid() {
		return nil, fmt.Errorf("%w: alternate hdr headroom has zero denominator", ErrInvalidArgument)
	}
	headroom := gm.AlternateHdrHeadroom.Double()
	toneMappingToSDR := headroom == 0

	swapped := &Image{}
	img.CopyMetadata(swapped)
	swapped.Depth = depth
	swapped.Format = format

	// The swapped base takes the alternate's colorimetry, defaulting to
	// the old base's primaries and matrix when unspecified. An
	// unspecified transfer becomes PQ for HDR output and sRGB for SDR.
	swapped.ColorPrimaries = gm.AltColorPrimaries
	if swapped.ColorPrimaries == PrimariesUnspecified {
		swapped.ColorPrimaries = img.ColorPrimaries
	}
	swapped.TransferCharacteristics = gm.AltTransferCharacteristics
	if swapped.TransferCharacteristics == TransferUnspecified {
		if toneMappingToSDR {
			swapped.TransferCharacteristics = TransferSRGB
		} else {
			swapped.TransferCharacteristics = TransferPQ
		}
	}
	swapped.MatrixCoefficients = gm.AltMatrixCoefficients
	if swapped.MatrixCoefficients == MatrixUnspecified {
		swapped.MatrixCoefficients = img.MatrixCoefficients
	}
	swapped.Range = gm.AltYUVRange
	swapped.ICC = append([]byte(nil), gm.AltICC...)

	rgb, err := NewRGBImage(img.Width, img.Height, depth, rgbFormatFor(img))
	if err != nil {
		return nil, err
	}

	clli := gm.AltCLLI
	var computeClli *ContentLightLevel
	if !toneMappingToSDR && clli.IsZero() {
		computeClli = &clli
	}
	if err := ApplyGainMap(img, gm, headroom, swapped.ColorPrimaries,
		swapped.TransferCharacteristics, rgb, computeClli); err != nil {
		return nil, err
	}
	if err := swapped.FromRGB(rgb); err != nil {
		return nil, err
	}
	if clli.IsZero() {
		swapped.CLLI = nil
	} else {
		c := clli
		swapped.CLLI = &c
	}

	// The gain map itself is direction-agnostic; only its bookkeeping
	// flips. Offsets and headrooms trade places and the color space flag
	// inverts.
	swappedGM := &GainMap{}
	*swappedGM = *gm
	swappedGM.Image = &Image{}
	gm.Image.CopyMetadata(swappedGM.Image)
	swappedGM.Image.CopyPlanes(gm.Image)

	swappedGM.AltICC = append([]byte(nil), img.ICC...)
	swappedGM.AltColorPrimaries = img.ColorPrimaries
	swappedGM.AltTransferCharacteristics = img.TransferCharacteristics
	swappedGM.AltMatrixCoefficients = img.MatrixCoefficients
	swappedGM.AltYUVRange = img.Range
	swappedGM.AltDepth = img.Depth
	swappedGM.AltPlaneCount = 3
	if img.Format.Monochrome() {
		swappedGM.AltPlaneCount = 1
	}
	if img.CLLI != nil {
		swappedGM.AltCLLI = *img.CLLI
	} else {
		swappedGM.AltCLLI = ContentLightLevel{}
	}

	swappedGM.UseBaseColorSpace = !gm.UseBaseColorSpace
	swappedGM.BaseHdrHeadroom, swappedGM.AlternateHdrHeadroom = gm.AlternateHdrHeadroom, gm.BaseHdrHeadroom
	for c := 0; c < 3; c++ {
		swappedGM.BaseOffset[c], swappedGM.AlternateOffset[c] = gm.AlternateOffset[c], gm.BaseOffset[c]
	}

	swapped.GainMap = swappedGM
	return swapped, nil
}

// rgbFormatFor picks the interleaved buffer layout used when rendering an
// image's alternate rendition.
func rgbFormatFor(img *Image) RGBFormat {
	if img.HasAlpha() {
		return FormatRGBA
	}
	return FormatRGB
}
