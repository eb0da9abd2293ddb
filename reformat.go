package avifgain

import (
	"fmt"
	"math"

	"github.com/vearutop/avifgain/internal/sharpyuv"
)

type reformatMode int

const (
	modeCoefficients reformatMode = iota
	modeIdentity
	modeYCgCo
	modeYCgCoRe
	modeYCgCoRo
)

/// reformatState caches everything the per-pixel loops need: matrix
// coefficients, depth maxima and the limited/full range scale and bias.
type reformatState struct {
	mode       reformatMode
	kr, kg, kb float64

	yuvDepth int
	rgbDepth int
	yuvMax   int
	rgbMax   int

	biasY   int
	biasUV  int
	rangeY  float64
	rangeUV float64
}

func matrixKrKb(mc MatrixCoefficients, cp ColorPrimaries) (kr, kb float64, ok bool) {
	switch mc {
	case MatrixBT709:
		return 0.2126, 0.0722, true
	case MatrixFCC:
		return 0.30, 0.11, true
	case MatrixBT470BG, MatrixBT601, MatrixUnspecified:
		return 0.299, 0.114, true
	case MatrixSMPTE240:
		return 0.212, 0.087, true
	case MatrixBT2020NCL:
		return 0.2627, 0.0593, true
	case MatrixChromaDerivedNCL:
		r, _, b := lumaCoefficients(cp)
		return r, b, true
	}
	return 0, 0, false
}

func prepareReformat(img *Image, rgb *RGBImage) (reformatState, error) {
	var s reformatState
	if img == nil || rgb == nil {
		return s, fmt.Errorf("%w: nil image", ErrInvalidArgument)
	}
	if img.Width != rgb.Width || img.Height != rgb.Height {
		return s, fmt.Errorf("%w: dimensions %dx%d vs %dx%d", ErrInvalidArgument,
			rgb.Width, rgb.Height, img.Width, img.Height)
	}
	if !validDepth(img.Depth) || !validDepth(rgb.Depth) {
		return s, fmt.Errorf("%w: depth %d/%d", ErrInvalidArgument, rgb.Depth, img.Depth)
	}
	if img.Format == FormatNone {
		return s, fmt.Errorf("%w: pixel format unset", ErrInvalidArgument)
	}
	s.yuvDepth, s.rgbDepth = img.Depth, rgb.Depth
	s.yuvMax = (1 << img.Depth) - 1
	s.rgbMax = (1 << rgb.Depth) - 1
	fullRange := img.Range == RangeFull

	switch img.MatrixCoefficients {
	case MatrixIdentity:
		if img.Format != Format444 {
			return s, fmt.Errorf("%w: identity matrix requires 4:4:4, got %s", ErrInvalidArgument, img.Format)
		}
		s.mode = modeIdentity
	case MatrixYCgCo:
		if !fullRange {
			return s, fmt.Errorf("%w: YCgCo requires full range", ErrInvalidArgument)
		}
		s.mode = modeYCgCo
	case MatrixYCgCoRe, MatrixYCgCoRo:
		lift := 2
		s.mode = modeYCgCoRe
		if img.MatrixCoefficients == MatrixYCgCoRo {
			lift = 1
			s.mode = modeYCgCoRo
		}
		if img.Depth != rgb.Depth+lift {
			return s, fmt.Errorf("%w: YCgCo-R%c requires YUV depth %d for RGB depth %d, got %d",
				ErrInvalidArgument, "oe"[lift-1], rgb.Depth+lift, rgb.Depth, img.Depth)
		}
		if !fullRange {
			return s, fmt.Errorf("%w: YCgCo-R requires full range", ErrInvalidArgument)
		}
	case MatrixBT2020CL, MatrixSMPTE2085, MatrixChromaDerivedCL, MatrixICtCp:
		return s, fmt.Errorf("%w: matrix coefficients %d unsupported", ErrInvalidArgument, img.MatrixCoefficients)
	default:
		kr, kb, ok := matrixKrKb(img.MatrixCoefficients, img.ColorPrimaries)
		if !ok {
			return s, fmt.Errorf("%w: matrix coefficients %d unsupported", ErrInvalidArgument, img.MatrixCoefficients)
		}
		s.mode = modeCoefficients
		s.kr, s.kb = kr, kb
		s.kg = 1.0 - kr - kb
	}

	if fullRange {
		s.biasY = 0
		s.rangeY = float64(s.yuvMax)
		s.rangeUV = float64(s.yuvMax)
	} else {
		shift := uint(img.Depth - 8)
		s.biasY = 16 << shift
		s.rangeY = float64(int(219) << shift)
		s.rangeUV = float64(int(224) << shift)
	}
	s.biasUV = 1 << (img.Depth - 1)
	return s, nil
}

// roundTiesAway rounds to nearest with ties away from zero.
func roundTiesAway(v float64) int {
	if v < 0 {
		return -int(math.Floor(-v + 0.5))
	}
	return int(math.Floor(v + 0.5))
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *reformatState) yToUNorm(v float64) uint16 {
	return uint16(clampI(roundTiesAway(v*s.rangeY)+s.biasY, 0, s.yuvMax))
}

func (s *reformatState) uvToUNorm(v float64) uint16 {
	if s.mode == modeIdentity {
		return s.yToUNorm(v)
	}
	// YCgCo is full range only, so rangeY == rangeUV there.
	return uint16(clampI(roundTiesAway(v*s.rangeUV)+s.biasUV, 0, s.yuvMax))
}

func (s *reformatState) unormToY(u float64) float64 {
	return clampF((u-float64(s.biasY))/s.rangeY, 0, 1)
}

func (s *reformatState) unormToUV(u float64) float64 {
	if s.mode == modeIdentity {
		return s.unormToY(u)
	}
	return clampF((u-float64(s.biasUV))/s.rangeUV, -0.5, 0.5)
}

// rgbToYUV maps analog RGB in [0,1] to analog Y in [0,1] and U, V in
// [-0.5, 0.5] (identity keeps all three in [0,1]).
func (s *reformatState) rgbToYUV(r, g, b float64) (y, u, v float64) {
	switch s.mode {
	case modeIdentity:
		return g, b, r
	case modeYCgCo:
		y = 0.5*g + 0.25*(r+b)
		u = 0.5*g - 0.25*(r+b)
		v = 0.5 * (r - b)
		return y, u, v
	default:
		y = s.kr*r + s.kg*g + s.kb*b
		u = (b - y) / (2 * (1 - s.kb))
		v = (r - y) / (2 * (1 - s.kr))
		return y, u, v
	}
}

// yuvToRGB is the inverse of rgbToYUV with clamping to [0,1].
func (s *reformatState) yuvToRGB(y, u, v float64) (r, g, b float64) {
	switch s.mode {
	case modeIdentity:
		return v, y, u
	case modeYCgCo:
		t := y - u
		r = clampF(t+v, 0, 1)
		g = clampF(y+u, 0, 1)
		b = clampF(t-v, 0, 1)
		return r, g, b
	default:
		r = clampF(y+2*(1-s.kr)*v, 0, 1)
		b = clampF(y+2*(1-s.kb)*u, 0, 1)
		g = clampF(y-(2*(1-s.kr)*s.kr*v+2*(1-s.kb)*s.kb*u)/s.kg, 0, 1)
		return r, g, b
	}
}

func (r *RGBImage) rgbAt(x, y int) (float64, float64, float64) {
	ro, gOff, bo, _ := r.Format.ChannelOffsets()
	i := r.PixelIndex(x, y)
	maxF := float64(r.MaxChannel())
	return float64(r.Pix[i+ro]) / maxF, float64(r.Pix[i+gOff]) / maxF, float64(r.Pix[i+bo]) / maxF
}

func (r *RGBImage) rgbSamplesAt(x, y int) (int, int, int) {
	ro, gOff, bo, _ := r.Format.ChannelOffsets()
	i := r.PixelIndex(x, y)
	return int(r.Pix[i+ro]), int(r.Pix[i+gOff]), int(r.Pix[i+bo])
}

func (r *RGBImage) setRGB(x, y int, rv, gv, bv uint16) {
	ro, gOff, bo, _ := r.Format.ChannelOffsets()
	i := r.PixelIndex(x, y)
	if r.Format == FormatGray {
		r.Pix[i] = gv
		return
	}
	r.Pix[i+ro] = rv
	r.Pix[i+gOff] = gv
	r.Pix[i+bo] = bv
}

// FromRGB converts src into the image's YUV representation, allocating the
// image planes. The image's matrix coefficients, range, depth and format
// select the conversion; src.ChromaDownsampling selects the subsampling
// policy for 4:2:2 and 4:2:0 destinations.
func (img *Image) FromRGB(src *RGBImage) error {
	s, err := prepareReformat(img, src)
	if err != nil {
		return err
	}

	policy := src.ChromaDownsampling
	if policy == DownsamplingAutomatic {
		policy = DownsamplingAverage
	}
	if policy == DownsamplingSharp {
		if img.Format != Format420 {
			return fmt.Errorf("%w: sharp chroma downsampling is 4:2:0 only", ErrNotImplemented)
		}
		if src.Depth > 12 {
			return fmt.Errorf("%w: sharp chroma downsampling needs source depth <= 12, got %d", ErrNotImplemented, src.Depth)
		}
		if s.mode != modeCoefficients {
			return fmt.Errorf("%w: sharp chroma downsampling needs plain matrix coefficients", ErrNotImplemented)
		}
	}
	if err := img.AllocatePlanes(); err != nil {
		return err
	}
	if src.Format.HasAlpha() {
		if err := img.AllocateAlpha(); err != nil {
			return err
		}
		reformatAlphaToPlane(src, img)
	} else {
		img.A, img.AStride = nil, 0
	}

	if s.mode == modeYCgCoRe || s.mode == modeYCgCoRo {
		img.fromRGBYCgCoR(src, &s)
		return nil
	}
	if policy == DownsamplingSharp {
		return img.fromRGBSharp(src, &s)
	}

	sx, sy := img.Format.ChromaShift()
	mono := img.Format.Monochrome()
	subsampled := sx != 0 || sy != 0

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := src.rgbAt(x, y)
			yv, uv, vv := s.rgbToYUV(r, g, b)
			img.Y[y*img.YStride+x] = s.yToUNorm(yv)
			if !mono && !subsampled {
				img.U[y*img.UVStride+x] = s.uvToUNorm(uv)
				img.V[y*img.UVStride+x] = s.uvToUNorm(vv)
			}
		}
	}
	if !mono && subsampled {
		img.downsampleChroma(src, &s, policy, sx, sy)
	}
	return nil
}

// downsampleChroma fills the U and V planes of a subsampled image.
// fastest picks the top-left sample of each block; average box-filters the
// RGB neighborhood before the matrix projection; best-quality averages the
// projected chroma over the block footprint.
func (img *Image) downsampleChroma(src *RGBImage, s *reformatState, policy ChromaDownsampling, sx, sy int) {
	cw, ch := img.ChromaSize()
	bw, bh := 1<<sx, 1<<sy
	for cy := 0; cy < ch; cy++ {
		for cx := 0; cx < cw; cx++ {
			x0, y0 := cx<<sx, cy<<sy
			var u, v float64
			switch policy {
			case DownsamplingFastest:
				r, g, b := src.rgbAt(x0, y0)
				_, u, v = s.rgbToYUV(r, g, b)
			case DownsamplingBestQuality:
				var sumU, sumV float64
				n := 0
				for dy := 0; dy < bh && y0+dy < img.Height; dy++ {
					for dx := 0; dx < bw && x0+dx < img.Width; dx++ {
						r, g, b := src.rgbAt(x0+dx, y0+dy)
						_, pu, pv := s.rgbToYUV(r, g, b)
						sumU += pu
						sumV += pv
						n++
					}
				}
				u, v = sumU/float64(n), sumV/float64(n)
			default: // DownsamplingAverage
				var sumR, sumG, sumB float64
				n := 0
				for dy := 0; dy < bh && y0+dy < img.Height; dy++ {
					for dx := 0; dx < bw && x0+dx < img.Width; dx++ {
						r, g, b := src.rgbAt(x0+dx, y0+dy)
						sumR += r
						sumG += g
						sumB += b
						n++
					}
				}
				fn := float64(n)
				_, u, v = s.rgbToYUV(sumR/fn, sumG/fn, sumB/fn)
			}
			img.U[cy*img.UVStride+cx] = s.uvToUNorm(u)
			img.V[cy*img.UVStride+cx] = s.uvToUNorm(v)
		}
	}
}

// fromRGBYCgCoR runs the reversible integer lifting transform. With 4:4:4
// output and the mandated depth lift the round trip is exactly lossless.
func (img *Image) fromRGBYCgCoR(src *RGBImage, s *reformatState) {
	sx, sy := img.Format.ChromaShift()
	mono := img.Format.Monochrome()
	cw, chh := img.ChromaSize()
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := src.rgbSamplesAt(x, y)
			co := r - b
			t := b + (co >> 1)
			cg := g - t
			yy := t + (cg >> 1)
			img.Y[y*img.YStride+x] = uint16(clampI(yy, 0, s.yuvMax))
			if !mono && sx == 0 && sy == 0 {
				img.U[y*img.UVStride+x] = uint16(clampI(cg+s.biasUV, 0, s.yuvMax))
				img.V[y*img.UVStride+x] = uint16(clampI(co+s.biasUV, 0, s.yuvMax))
			}
		}
	}
	if mono || (sx == 0 && sy == 0) {
		return
	}
	// Subsampled YCgCo-R is no longer reversible; box-average the residuals.
	for cy := 0; cy < chh; cy++ {
		for cx := 0; cx < cw; cx++ {
			x0, y0 := cx<<sx, cy<<sy
			var sumCg, sumCo, n int
			for dy := 0; dy < 1<<sy && y0+dy < img.Height; dy++ {
				for dx := 0; dx < 1<<sx && x0+dx < img.Width; dx++ {
					r, g, b := src.rgbSamplesAt(x0+dx, y0+dy)
					co := r - b
					t := b + (co >> 1)
					sumCg += g - t
					sumCo += co
					n++
				}
			}
			img.U[cy*img.UVStride+cx] = uint16(clampI((sumCg+n/2)/n+s.biasUV, 0, s.yuvMax))
			img.V[cy*img.UVStride+cx] = uint16(clampI((sumCo+n/2)/n+s.biasUV, 0, s.yuvMax))
		}
	}
}

func (img *Image) fromRGBSharp(src *RGBImage, s *reformatState) error {
	ro, gOff, bo, _ := src.Format.ChannelOffsets()
	const fix = sharpyuv.Fix
	scaleY := s.rangeY / float64(s.rgbMax)
	scaleUV := s.rangeUV / float64(s.rgbMax)
	coeff := func(k, scale float64) int32 { return int32(math.Round(k * scale * (1 << fix))) }
	p := sharpyuv.Params{
		Width:      img.Width,
		Height:     img.Height,
		Pix:        src.Pix,
		RowSamples: src.RowSamples,
		PixStride:  src.Format.ChannelCount(),
		ROff:       ro,
		GOff:       gOff,
		BOff:       bo,
		RGBDepth:   src.Depth,
		YUVDepth:   img.Depth,
		YUVMax:     s.yuvMax,
		RGBToY: [4]int32{
			coeff(s.kr, scaleY), coeff(s.kg, scaleY), coeff(s.kb, scaleY),
			int32(s.biasY) << fix,
		},
		RGBToU: [4]int32{
			coeff(-s.kr/(2*(1-s.kb)), scaleUV), coeff(-s.kg/(2*(1-s.kb)), scaleUV), coeff(0.5, scaleUV),
			int32(s.biasUV) << fix,
		},
		RGBToV: [4]int32{
			coeff(0.5, scaleUV), coeff(-s.kg/(2*(1-s.kr)), scaleUV), coeff(-s.kb/(2*(1-s.kr)), scaleUV),
			int32(s.biasUV) << fix,
		},
		Y:        img.Y,
		U:        img.U,
		V:        img.V,
		YStride:  img.YStride,
		UVStride: img.UVStride,
	}
	if err := sharpyuv.Convert(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrNotImplemented, err)
	}
	return nil
}

// ToRGB converts the image into dst. dst must have matching dimensions;
// its Pix buffer is allocated when nil. Subsampled chroma is upsampled with
// an edge-replicating bilinear filter unless dst.ChromaUpsampling asks for
// the nearest-neighbor path.
func (img *Image) ToRGB(dst *RGBImage) error {
	s, err := prepareReformat(img, dst)
	if err != nil {
		return err
	}
	if len(img.Y) == 0 {
		return fmt.Errorf("%w: image has no planes", ErrInvalidArgument)
	}
	ch := dst.Format.ChannelCount()
	if dst.Pix == nil {
		dst.Pix = make([]uint16, dst.Width*dst.Height*ch)
		dst.RowSamples = dst.Width * ch
	}

	bilinear := true
	switch dst.ChromaUpsampling {
	case UpsamplingFastest, UpsamplingNearest:
		bilinear = false
	}

	sx, sy := img.Format.ChromaShift()
	mono := img.Format.Monochrome()
	subsampled := sx != 0 || sy != 0
	cw, chh := img.ChromaSize()
	rgbMaxF := float64(s.rgbMax)

	integer := s.mode == modeYCgCoRe || s.mode == modeYCgCoRo

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			yUNorm := float64(img.Y[y*img.YStride+x])
			var uUNorm, vUNorm float64
			switch {
			case mono:
				uUNorm, vUNorm = float64(s.biasUV), float64(s.biasUV)
			case !subsampled:
				uUNorm = float64(img.U[y*img.UVStride+x])
				vUNorm = float64(img.V[y*img.UVStride+x])
			case bilinear:
				uUNorm = sampleBilinear(img.U, img.UVStride, cw, chh, x, y, sx, sy)
				vUNorm = sampleBilinear(img.V, img.UVStride, cw, chh, x, y, sx, sy)
			default:
				uUNorm = float64(img.U[(y>>sy)*img.UVStride+(x>>sx)])
				vUNorm = float64(img.V[(y>>sy)*img.UVStride+(x>>sx)])
			}

			if integer {
				yy := int(yUNorm)
				cg := roundTiesAway(uUNorm) - s.biasUV
				co := roundTiesAway(vUNorm) - s.biasUV
				t := yy - (cg >> 1)
				g := clampI(cg+t, 0, s.rgbMax)
				b := clampI(t-(co>>1), 0, s.rgbMax)
				r := clampI(b+co, 0, s.rgbMax)
				dst.setRGB(x, y, uint16(r), uint16(g), uint16(b))
				continue
			}

			ya := s.unormToY(yUNorm)
			ua := s.unormToUV(uUNorm)
			va := s.unormToUV(vUNorm)
			if mono {
				ua, va = 0, 0
			}
			if dst.Format == FormatGray {
				dst.setRGB(x, y, 0, uint16(roundTiesAway(ya*rgbMaxF)), 0)
				continue
			}
			r, g, b := s.yuvToRGB(ya, ua, va)
			dst.setRGB(x, y,
				uint16(roundTiesAway(r*rgbMaxF)),
				uint16(roundTiesAway(g*rgbMaxF)),
				uint16(roundTiesAway(b*rgbMaxF)))
		}
	}

	if dst.Format.HasAlpha() {
		reformatAlphaToRGB(img, dst)
	}
	return nil
}

// sampleBilinear upsamples one chroma plane at pixel position (x, y) with
// 3:1 weights per axis. First and last rows and columns are replicated
// rather than extrapolated.
func sampleBilinear(plane []uint16, stride, cw, ch, x, y, sx, sy int) float64 {
	cx := x >> sx
	cy := y >> sy
	nx, ny := cx, cy
	if sx != 0 {
		if x&1 == 0 {
			nx = clampI(cx-1, 0, cw-1)
		} else {
			nx = clampI(cx+1, 0, cw-1)
		}
	}
	if sy != 0 {
		if y&1 == 0 {
			ny = clampI(cy-1, 0, ch-1)
		} else {
			ny = clampI(cy+1, 0, ch-1)
		}
	}
	c := float64(plane[cy*stride+cx])
	if sx != 0 && sy != 0 {
		h := float64(plane[cy*stride+nx])
		v := float64(plane[ny*stride+cx])
		d := float64(plane[ny*stride+nx])
		return (9*c + 3*h + 3*v + d) / 16
	}
	if sx != 0 {
		return (3*c + float64(plane[cy*stride+nx])) / 4
	}
	return (3*c + float64(plane[ny*stride+cx])) / 4
}

// Alpha never goes through the matrix or range transforms: it is linearly
// rescaled between bit depths, which is lossless at matching depth.
func rescaleSample(v, fromMax, toMax int) uint16 {
	if fromMax == toMax {
		return uint16(v)
	}
	return uint16(roundTiesAway(float64(v) * float64(toMax) / float64(fromMax)))
}

func reformatAlphaToPlane(src *RGBImage, img *Image) {
	_, _, _, ao := src.Format.ChannelOffsets()
	fromMax := src.MaxChannel()
	toMax := img.MaxChannel()
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.A[y*img.AStride+x] = rescaleSample(int(src.Pix[src.PixelIndex(x, y)+ao]), fromMax, toMax)
		}
	}
}

func reformatAlphaToRGB(img *Image, dst *RGBImage) {
	_, _, _, ao := dst.Format.ChannelOffsets()
	toMax := dst.MaxChannel()
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			v := uint16(toMax)
			if img.HasAlpha() {
				v = rescaleSample(int(img.A[y*img.AStride+x]), img.MaxChannel(), toMax)
			}
			dst.Pix[dst.PixelIndex(x, y)+ao] = v
		}
	}
}
