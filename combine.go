package avifgain

import "fmt"

// CICP bundles the three H.273 code points used to tag a rendition.
type CICP struct {
	Primaries ColorPrimaries
	Transfer  TransferCharacteristics
	Matrix    MatrixCoefficients
}

// CombineOptions configures Combine. The zero value keeps the computed
// headrooms, a full-resolution 8-bit 4:4:4 gain map and the images'
// own colorimetry.
type CombineOptions struct {
	// Downscaling divides the gain map dimensions. Values below 1 are
	// treated as 1.
	Downscaling int

	// GainMapDepth and GainMapFormat shape the gain map image.
	// Zero values mean 8-bit 4:4:4.
	GainMapDepth  int
	GainMapFormat PixelFormat

	// MaxHeadroom caps the computed headrooms, in log2 stops. A computed
	// headroom below the cap is kept as is. Zero means no cap.
	MaxHeadroom float64

	// BaseCICP and AlternateCICP override the images' colorimetry before
	// any math runs.
	BaseCICP      *CICP
	AlternateCICP *CICP
}

// Combine computes a gain map between base and alternate and attaches it
// to base, so that base carries everything needed to reconstruct the
// alternate rendition. base's planes are left untouched.
func Combine(base, alternate *Image, opts CombineOptions) error {
	if base == nil || alternate == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidArgument)
	}
	if opts.BaseCICP != nil {
		base.ColorPrimaries = opts.BaseCICP.Primaries
		base.TransferCharacteristics = opts.BaseCICP.Transfer
		base.MatrixCoefficients = opts.BaseCICP.Matrix
	}
	if opts.AlternateCICP != nil {
		alternate.ColorPrimaries = opts.AlternateCICP.Primaries
		alternate.TransferCharacteristics = opts.AlternateCICP.Transfer
		alternate.MatrixCoefficients = opts.AlternateCICP.Matrix
	}

	downscaling := opts.Downscaling
	if downscaling < 1 {
		downscaling = 1
	}
	rounding := downscaling / 2
	gmWidth := (base.Width + rounding) / downscaling
	if gmWidth < 1 {
		gmWidth = 1
	}
	gmHeight := (base.Height + rounding) / downscaling
	if gmHeight < 1 {
		gmHeight = 1
	}

	depth := opts.GainMapDepth
	if depth == 0 {
		depth = 8
	}
	format := opts.GainMapFormat
	if format == FormatNone {
		format = Format444
	}

	gmImage, err := NewImage(gmWidth, gmHeight, depth, format)
	if err != nil {
		return err
	}
	gm := NewGainMap()
	gm.Image = gmImage

	if err := ComputeGainMap(base, alternate, gm); err != nil {
		return err
	}

	// The cap only overwrites a headroom whose stored value exceeds it;
	// looser caps leave the computed fraction untouched.
	if opts.MaxHeadroom > 0 {
		if opts.MaxHeadroom*float64(gm.BaseHdrHeadroom.D) < float64(gm.BaseHdrHeadroom.N) {
			if gm.BaseHdrHeadroom, err = DoubleToUnsignedFraction(opts.MaxHeadroom); err != nil {
				return err
			}
		}
		if opts.MaxHeadroom*float64(gm.AlternateHdrHeadroom.D) < float64(gm.AlternateHdrHeadroom.N) {
			if gm.AlternateHdrHeadroom, err = DoubleToUnsignedFraction(opts.MaxHeadroom); err != nil {
				return err
			}
		}
	}

	base.GainMap = gm
	return nil
}
