package avifgain

import "fmt"

// RGBImage is an interleaved RGB sample buffer. Samples occupy the low
// Depth bits of each uint16 storage unit. The chroma policy fields matter
// only when the buffer is the source or destination of a YUV conversion.
type RGBImage struct {
	Width  int
	Height int
	Depth  int // 8, 10, 12 or 16
	Format RGBFormat

	Pix        []uint16
	RowSamples int // samples per row, >= Width*Format.ChannelCount()

	ChromaDownsampling ChromaDownsampling
	ChromaUpsampling   ChromaUpsampling
}

// NewRGBImage allocates an RGB buffer.
func NewRGBImage(width, height, depth int, format RGBFormat) (*RGBImage, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: rgb dimensions %dx%d", ErrInvalidArgument, width, height)
	}
	if !validDepth(depth) {
		return nil, fmt.Errorf("%w: rgb depth %d", ErrInvalidArgument, depth)
	}
	ch := format.ChannelCount()
	if width*height*ch > maxImageSamples {
		return nil, fmt.Errorf("%w: rgb buffer of %dx%dx%d samples", ErrOutOfMemory, width, height, ch)
	}
	return &RGBImage{
		Width:      width,
		Height:     height,
		Depth:      depth,
		Format:     format,
		Pix:        make([]uint16, width*height*ch),
		RowSamples: width * ch,
	}, nil
}

// MaxChannel returns the largest sample value for the buffer depth.
func (r *RGBImage) MaxChannel() int { return (1 << r.Depth) - 1 }

// PixelIndex returns the index of the first sample of pixel (x, y).
func (r *RGBImage) PixelIndex(x, y int) int {
	return y*r.RowSamples + x*r.Format.ChannelCount()
}
