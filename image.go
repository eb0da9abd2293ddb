package avifgain

import "fmt"

// maxImageSamples bounds a single plane allocation. Anything larger is
// reported as an allocation failure instead of attempting it.
const maxImageSamples = 1 << 30

// Image is a planar YUV (or monochrome) image. Samples occupy the low
// Depth bits of each uint16 storage unit. An Image may own at most one
// GainMap, and owns its plane buffers exclusively.
type Image struct {
	Width  int
	Height int
	Depth  int // 8, 10, 12 or 16
	Format PixelFormat
	Range  Range

	ColorPrimaries          ColorPrimaries
	TransferCharacteristics TransferCharacteristics
	MatrixCoefficients      MatrixCoefficients

	CLLI *ContentLightLevel
	ICC  []byte

	GainMap *GainMap

	Y        []uint16
	U        []uint16
	V        []uint16
	YStride  int // samples per row
	UVStride int

	A       []uint16
	AStride int
}

// NewImage creates an image with allocated YUV planes, full range and
// unspecified colorimetry.
func NewImage(width, height, depth int, format PixelFormat) (*Image, error) {
	img := &Image{
		Width:                   width,
		Height:                  height,
		Depth:                   depth,
		Format:                  format,
		Range:                   RangeFull,
		ColorPrimaries:          PrimariesUnspecified,
		TransferCharacteristics: TransferUnspecified,
		MatrixCoefficients:      MatrixUnspecified,
	}
	if err := img.AllocatePlanes(); err != nil {
		return nil, err
	}
	return img, nil
}

func validDepth(depth int) bool {
	return depth == 8 || depth == 10 || depth == 12 || depth == 16
}

// ChromaSize returns the dimensions of the U and V planes.
func (img *Image) ChromaSize() (w, h int) {
	if img.Format.Monochrome() {
		return 0, 0
	}
	sx, sy := img.Format.ChromaShift()
	return (img.Width + sx) >> sx, (img.Height + sy) >> sy
}

// MaxChannel returns the largest sample value for the image depth.
func (img *Image) MaxChannel() int { return (1 << img.Depth) - 1 }

// AllocatePlanes allocates the Y (and U/V for color formats) planes.
// Existing plane contents are discarded. On failure the image keeps its
// previous buffers untouched.
func (img *Image) AllocatePlanes() error {
	if img.Width < 1 || img.Height < 1 {
		return fmt.Errorf("%w: image dimensions %dx%d", ErrInvalidArgument, img.Width, img.Height)
	}
	if !validDepth(img.Depth) {
		return fmt.Errorf("%w: image depth %d", ErrInvalidArgument, img.Depth)
	}
	if img.Format == FormatNone {
		return fmt.Errorf("%w: pixel format unset", ErrInvalidArgument)
	}
	if img.Width*img.Height > maxImageSamples {
		return fmt.Errorf("%w: plane of %dx%d samples", ErrOutOfMemory, img.Width, img.Height)
	}
	y := make([]uint16, img.Width*img.Height)
	var u, v []uint16
	cw, ch := img.ChromaSize()
	if cw > 0 {
		u = make([]uint16, cw*ch)
		v = make([]uint16, cw*ch)
	}
	img.Y, img.U, img.V = y, u, v
	img.YStride, img.UVStride = img.Width, cw
	return nil
}

// AllocateAlpha allocates the alpha plane at full resolution.
func (img *Image) AllocateAlpha() error {
	if img.Width < 1 || img.Height < 1 || img.Width*img.Height > maxImageSamples {
		return fmt.Errorf("%w: alpha plane of %dx%d samples", ErrOutOfMemory, img.Width, img.Height)
	}
	img.A = make([]uint16, img.Width*img.Height)
	img.AStride = img.Width
	return nil
}

// HasAlpha reports whether an alpha plane is present.
func (img *Image) HasAlpha() bool { return len(img.A) > 0 }

// CopyMetadata copies everything except plane buffers and the gain map:
// dimensions, depth, format, range, colorimetry, CLLI and ICC payload.
func (img *Image) CopyMetadata(dst *Image) {
	dst.Width = img.Width
	dst.Height = img.Height
	dst.Depth = img.Depth
	dst.Format = img.Format
	dst.Range = img.Range
	dst.ColorPrimaries = img.ColorPrimaries
	dst.TransferCharacteristics = img.TransferCharacteristics
	dst.MatrixCoefficients = img.MatrixCoefficients
	if img.CLLI != nil {
		c := *img.CLLI
		dst.CLLI = &c
	} else {
		dst.CLLI = nil
	}
	dst.ICC = append([]byte(nil), img.ICC...)
}

// CopyPlanes deep-copies the source planes into img. Dimensions, depth and
// format are taken from src.
func (img *Image) CopyPlanes(src *Image) {
	img.Width, img.Height = src.Width, src.Height
	img.Depth, img.Format = src.Depth, src.Format
	img.Y = append([]uint16(nil), src.Y...)
	img.U = append([]uint16(nil), src.U...)
	img.V = append([]uint16(nil), src.V...)
	img.YStride, img.UVStride = src.YStride, src.UVStride
	img.A = append([]uint16(nil), src.A...)
	img.AStride = src.AStride
}
