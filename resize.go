package avifgain

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// ResizeRGB resamples src to the given dimensions. Samples pass through
// 16-bit precision regardless of src depth, so no precision is lost for
// any supported depth. Alpha-carrying formats keep their alpha channel.
func ResizeRGB(src *RGBImage, width, height int, interp resize.InterpolationFunction) (*RGBImage, error) {
	if src == nil || len(src.Pix) == 0 {
		return nil, fmt.Errorf("%w: no source pixels", ErrInvalidArgument)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: resize to %dx%d", ErrInvalidArgument, width, height)
	}

	dst, err := NewRGBImage(width, height, src.Depth, src.Format)
	if err != nil {
		return nil, err
	}
	dst.ChromaDownsampling = src.ChromaDownsampling
	dst.ChromaUpsampling = src.ChromaUpsampling
	if width == src.Width && height == src.Height {
		copy(dst.Pix, src.Pix)
		return dst, nil
	}

	srcMax := uint32(src.MaxChannel())
	dstMax := uint32(dst.MaxChannel())
	to16 := func(v uint16) uint16 { return uint16(uint32(v) * 65535 / srcMax) }
	from16 := func(v uint16) uint16 { return uint16((uint32(v)*dstMax + 32767) / 65535) }

	if src.Format == FormatGray {
		tmp := image.NewGray16(image.Rect(0, 0, src.Width, src.Height))
		for y := 0; y < src.Height; y++ {
			for x := 0; x < src.Width; x++ {
				tmp.SetGray16(x, y, color.Gray16{Y: to16(src.Pix[src.PixelIndex(x, y)])})
			}
		}
		scaled := resize.Resize(uint(width), uint(height), tmp, interp)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g, _, _, _ := scaled.At(x, y).RGBA()
				dst.Pix[dst.PixelIndex(x, y)] = from16(uint16(g))
			}
		}
		return dst, nil
	}

	ro, gOff, bo, ao := src.Format.ChannelOffsets()
	tmp := image.NewNRGBA64(image.Rect(0, 0, src.Width, src.Height))
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			i := src.PixelIndex(x, y)
			a := uint16(65535)
			if ao >= 0 {
				a = to16(src.Pix[i+ao])
			}
			tmp.SetNRGBA64(x, y, color.NRGBA64{
				R: to16(src.Pix[i+ro]),
				G: to16(src.Pix[i+gOff]),
				B: to16(src.Pix[i+bo]),
				A: a,
			})
		}
	}
	scaled := resize.Resize(uint(width), uint(height), tmp, interp)
	nrgba, ok := scaled.(*image.NRGBA64)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.NRGBA64
			if ok {
				c = nrgba.NRGBA64At(x, y)
			} else {
				c = color.NRGBA64Model.Convert(scaled.At(x, y)).(color.NRGBA64)
			}
			i := dst.PixelIndex(x, y)
			dst.Pix[i+ro] = from16(c.R)
			dst.Pix[i+gOff] = from16(c.G)
			dst.Pix[i+bo] = from16(c.B)
			if ao >= 0 {
				dst.Pix[i+ao] = from16(c.A)
			}
		}
	}
	return dst, nil
}
