// Package sharpyuv implements a perceptually weighted RGB to 4:2:0
// downsampler. The chroma residuals are refined iteratively so that the
// luma reconstructed from the subsampled image matches a gamma-aware
// target, which avoids the color fringing of plain box filtering.
package sharpyuv

import (
	"errors"
	"math"
)

// Fix is the fixed-point shift of the conversion matrix coefficients.
const Fix = 16

const (
	numIterations = 4
	fixHalf       = 1 << (Fix - 1)
	maxBitDepth   = 14
	linearScale   = 1 << 16
)

// Params describes one conversion. Pix holds interleaved RGB samples in
// the low RGBDepth bits; Y, U and V are preallocated planes written in the
// low YUVDepth bits. The matrix rows are Fix-point coefficients including
// the range scale, with the bias in the fourth slot (shifted by Fix).
type Params struct {
	Width  int
	Height int

	Pix        []uint16
	RowSamples int
	PixStride  int
	ROff       int
	GOff       int
	BOff       int
	RGBDepth   int

	YUVDepth int
	YUVMax   int
	RGBToY   [4]int32
	RGBToU   [4]int32
	RGBToV   [4]int32

	Y        []uint16
	U        []uint16
	V        []uint16
	YStride  int
	UVStride int
}

// Convert runs the sharp downsampler. RGBDepth above 12 is rejected since
// the working precision would be exhausted.
func Convert(p *Params) error {
	if p.Width <= 0 || p.Height <= 0 {
		return errors.New("sharpyuv: invalid dimensions")
	}
	if p.RGBDepth > 12 {
		return errors.New("sharpyuv: source depth above 12 unsupported")
	}
	if len(p.Y) == 0 || len(p.U) == 0 || len(p.V) == 0 {
		return errors.New("sharpyuv: output planes not allocated")
	}
	if (p.Height-1)*p.RowSamples+p.Width*p.PixStride > len(p.Pix) {
		return errors.New("sharpyuv: rgb buffer too small")
	}

	w := (p.Width + 1) &^ 1
	h := (p.Height + 1) &^ 1
	uvW := w >> 1
	uvH := h >> 1
	sfix := precisionShift(p.RGBDepth)
	yDepth := p.RGBDepth + sfix

	tmpRow1 := make([]uint16, 3*w)
	tmpRow2 := make([]uint16, 3*w)
	bestY := make([]uint16, w*h)
	targetY := make([]uint16, w*h)
	bestUV := make([]int16, 3*uvW*uvH)
	targetUV := make([]int16, 3*uvW*uvH)
	bestRGBY := make([]uint16, 2*w)
	bestRGBUV := make([]int16, 3*uvW)

	// Import rows, seed luma and chroma residual targets.
	for j := 0; j < p.Height; j += 2 {
		p.importRow(j, sfix, w, tmpRow1)
		if j != p.Height-1 {
			p.importRow(j+1, sfix, w, tmpRow2)
		} else {
			copy(tmpRow2, tmpRow1)
		}

		byOff := (j / 2) * 2 * w
		buvOff := (j / 2) * 3 * uvW

		storeGray(tmpRow1, bestY[byOff:], w)
		storeGray(tmpRow2, bestY[byOff+w:], w)

		updateLuma(tmpRow1, targetY[byOff:], w, yDepth)
		updateLuma(tmpRow2, targetY[byOff+w:], w, yDepth)
		updateChroma(tmpRow1, tmpRow2, targetUV[buvOff:], uvW, yDepth)
		copy(bestUV[buvOff:buvOff+3*uvW], targetUV[buvOff:buvOff+3*uvW])
	}

	// Refine the residuals until the luma error stops improving.
	diffThreshold := uint64(3 * w * h)
	prevDiff := ^uint64(0)
	for iter := 0; iter < numIterations; iter++ {
		var diffSum uint64
		for j := 0; j < h; j += 2 {
			jUV := j / 2
			curUV := jUV * 3 * uvW
			prevUV := curUV
			if jUV > 0 {
				prevUV = (jUV - 1) * 3 * uvW
			}
			nextUV := curUV
			if j < h-2 {
				nextUV = (jUV + 1) * 3 * uvW
			}
			byOff := j * w

			interpolateTwoRows(bestY[byOff:], bestUV[prevUV:], bestUV[curUV:], bestUV[nextUV:], w, tmpRow1, tmpRow2, yDepth)

			updateLuma(tmpRow1, bestRGBY[:w], w, yDepth)
			updateLuma(tmpRow2, bestRGBY[w:], w, yDepth)
			updateChroma(tmpRow1, tmpRow2, bestRGBUV, uvW, yDepth)

			diffSum += updateY(targetY[byOff:], bestRGBY, bestY[byOff:], 2*w, yDepth)
			updateUV(targetUV[curUV:], bestRGBUV, bestUV[curUV:], 3*uvW)
		}
		if iter > 0 && (diffSum < diffThreshold || diffSum > prevDiff) {
			break
		}
		prevDiff = diffSum
	}

	p.export(bestY, bestUV, w, uvW, uvH, sfix)
	return nil
}

func precisionShift(bitDepth int) int {
	if bitDepth+2 <= maxBitDepth {
		return 2
	}
	return maxBitDepth - bitDepth
}

func (p *Params) importRow(row, sfix, w int, dst []uint16) {
	off := row * p.RowSamples
	for i := 0; i < p.Width; i++ {
		pix := off + i*p.PixStride
		dst[i] = p.Pix[pix+p.ROff] << sfix
		dst[i+w] = p.Pix[pix+p.GOff] << sfix
		dst[i+2*w] = p.Pix[pix+p.BOff] << sfix
	}
	if p.Width < w {
		dst[p.Width] = dst[p.Width-1]
		dst[p.Width+w] = dst[p.Width+w-1]
		dst[p.Width+2*w] = dst[p.Width+2*w-1]
	}
}

// rgbToGray is a fixed-point BT.709-ish luminance used for the working
// "W" channel.
func rgbToGray(r, g, b int64) int {
	return int((13933*r + 46871*g + 4732*b + fixHalf) >> Fix)
}

func storeGray(src, y []uint16, w int) {
	for i := 0; i < w; i++ {
		y[i] = uint16(rgbToGray(int64(src[i]), int64(src[i+w]), int64(src[i+2*w])))
	}
}

// gammaToLinear and linearToGamma bridge the sRGB-encoded working samples
// and linear light in 16-bit fixed point.
func gammaToLinear(v uint16, bitDepth int) uint32 {
	max := float64(int(1)<<bitDepth - 1)
	x := float64(v) / max
	var l float64
	if x <= 0.04045 {
		l = x / 12.92
	} else {
		l = math.Pow((x+0.055)/1.055, 2.4)
	}
	return uint32(l*linearScale + 0.5)
}

func linearToGamma(l uint32, bitDepth int) uint16 {
	max := float64(int(1)<<bitDepth - 1)
	x := float64(l) / linearScale
	var v float64
	if x <= 0.0031308 {
		v = 12.92 * x
	} else {
		v = 1.055*math.Pow(x, 1/2.4) - 0.055
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint16(v*max + 0.5)
}

func updateLuma(src, dst []uint16, w, bitDepth int) {
	for i := 0; i < w; i++ {
		r := gammaToLinear(src[i], bitDepth)
		g := gammaToLinear(src[i+w], bitDepth)
		b := gammaToLinear(src[i+2*w], bitDepth)
		y := rgbToGray(int64(r), int64(g), int64(b))
		dst[i] = linearToGamma(uint32(y), bitDepth)
	}
}

// scaleDown averages a 2x2 block through linear light.
func scaleDown(a, b, c, d uint16, bitDepth int) int {
	la := gammaToLinear(a, bitDepth)
	lb := gammaToLinear(b, bitDepth)
	lc := gammaToLinear(c, bitDepth)
	ld := gammaToLinear(d, bitDepth)
	return int(linearToGamma((la+lb+lc+ld+2)>>2, bitDepth))
}

func updateChroma(src1, src2 []uint16, dst []int16, uvW, bitDepth int) {
	w := uvW * 2
	for i := 0; i < uvW; i++ {
		i2 := i * 2
		r := scaleDown(src1[i2], src1[i2+1], src2[i2], src2[i2+1], bitDepth)
		g := scaleDown(src1[i2+w], src1[i2+w+1], src2[i2+w], src2[i2+w+1], bitDepth)
		b := scaleDown(src1[i2+2*w], src1[i2+2*w+1], src2[i2+2*w], src2[i2+2*w+1], bitDepth)
		grey := rgbToGray(int64(r), int64(g), int64(b))
		dst[i] = int16(r - grey)
		dst[i+uvW] = int16(g - grey)
		dst[i+2*uvW] = int16(b - grey)
	}
}

func clipDepth(v, bitDepth int) uint16 {
	max := int(1)<<bitDepth - 1
	if v < 0 {
		return 0
	}
	if v > max {
		return uint16(max)
	}
	return uint16(v)
}

func filter2(a, b, w0, bitDepth int) uint16 {
	return clipDepth(((a*3+b+2)>>2)+w0, bitDepth)
}

// interpolateTwoRows reconstructs two full-resolution RGB rows from the
// working luma and the current chroma residuals.
func interpolateTwoRows(bestY []uint16, prevUV, curUV, nextUV []int16, w int, out1, out2 []uint16, bitDepth int) {
	uvW := w >> 1
	filterLen := (w - 1) >> 1
	for k := 0; k < 3; k++ {
		kUV := k * uvW
		kW := k * w

		out1[kW] = filter2(int(curUV[kUV]), int(prevUV[kUV]), int(bestY[0]), bitDepth)
		out2[kW] = filter2(int(curUV[kUV]), int(nextUV[kUV]), int(bestY[w]), bitDepth)

		for i := 0; i < filterLen; i++ {
			a0, a1 := int(curUV[kUV+i]), int(curUV[kUV+i+1])
			b0, b1 := int(prevUV[kUV+i]), int(prevUV[kUV+i+1])
			v0 := (a0*9 + a1*3 + b0*3 + b1 + 8) >> 4
			v1 := (a1*9 + a0*3 + b1*3 + b0 + 8) >> 4
			out1[kW+2*i+1] = clipDepth(int(bestY[2*i+1])+v0, bitDepth)
			out1[kW+2*i+2] = clipDepth(int(bestY[2*i+2])+v1, bitDepth)

			n0, n1 := int(nextUV[kUV+i]), int(nextUV[kUV+i+1])
			nv0 := (a0*9 + a1*3 + n0*3 + n1 + 8) >> 4
			nv1 := (a1*9 + a0*3 + n1*3 + n0 + 8) >> 4
			out2[kW+2*i+1] = clipDepth(int(bestY[w+2*i+1])+nv0, bitDepth)
			out2[kW+2*i+2] = clipDepth(int(bestY[w+2*i+2])+nv1, bitDepth)
		}

		if w&1 == 0 {
			out1[kW+w-1] = filter2(int(curUV[kUV+uvW-1]), int(prevUV[kUV+uvW-1]), int(bestY[w-1]), bitDepth)
			out2[kW+w-1] = filter2(int(curUV[kUV+uvW-1]), int(nextUV[kUV+uvW-1]), int(bestY[2*w-1]), bitDepth)
		}
	}
}

func updateY(target, src, dst []uint16, length, bitDepth int) uint64 {
	var diff uint64
	maxY := int(1)<<bitDepth - 1
	for i := 0; i < length; i++ {
		d := int(target[i]) - int(src[i])
		newY := int(dst[i]) + d
		switch {
		case newY < 0:
			dst[i] = 0
		case newY > maxY:
			dst[i] = uint16(maxY)
		default:
			dst[i] = uint16(newY)
		}
		if d < 0 {
			d = -d
		}
		diff += uint64(d)
	}
	return diff
}

func updateUV(target, src, dst []int16, length int) {
	for i := 0; i < length; i++ {
		dst[i] += target[i] - src[i]
	}
}

// export converts the final W plus residual representation into the
// destination planes through the caller's conversion matrix.
func (p *Params) export(bestY []uint16, bestUV []int16, w, uvW, uvH, sfix int) {
	rounder := int64(1) << (Fix + sfix - 1)
	yOff := int64(p.RGBToY[3]) << sfix
	uOff := int64(p.RGBToU[3]) << sfix
	vOff := int64(p.RGBToV[3]) << sfix

	clip := func(v int64) uint16 {
		if v < 0 {
			return 0
		}
		if v > int64(p.YUVMax) {
			return uint16(p.YUVMax)
		}
		return uint16(v)
	}

	for j := 0; j < p.Height; j++ {
		for i := 0; i < p.Width; i++ {
			wVal := int64(bestY[j*w+i])
			uvIdx := (j/2)*3*uvW + i>>1
			r := int64(bestUV[uvIdx]) + wVal
			g := int64(bestUV[uvIdx+uvW]) + wVal
			b := int64(bestUV[uvIdx+2*uvW]) + wVal
			y := int64(p.RGBToY[0])*r + int64(p.RGBToY[1])*g + int64(p.RGBToY[2])*b + yOff + rounder
			p.Y[j*p.YStride+i] = clip(y >> (Fix + sfix))
		}
	}

	outUVH := (p.Height + 1) >> 1
	outUVW := (p.Width + 1) >> 1
	for j := 0; j < outUVH && j < uvH; j++ {
		for i := 0; i < outUVW && i < uvW; i++ {
			uvIdx := j*3*uvW + i
			r := int64(bestUV[uvIdx])
			g := int64(bestUV[uvIdx+uvW])
			b := int64(bestUV[uvIdx+2*uvW])
			u := int64(p.RGBToU[0])*r + int64(p.RGBToU[1])*g + int64(p.RGBToU[2])*b + uOff + rounder
			v := int64(p.RGBToV[0])*r + int64(p.RGBToV[1])*g + int64(p.RGBToV[2])*b + vOff + rounder
			p.U[j*p.UVStride+i] = clip(u >> (Fix + sfix))
			p.V[j*p.UVStride+i] = clip(v >> (Fix + sfix))
		}
	}
}
