package avifgain

// Gamut math: RGB to XYZ matrices are derived from the CICP chromaticity
// coordinates so every supported primaries value works, instead of a fixed
// matrix per named gamut.

type chromaticities struct {
	rx, ry float64
	gx, gy float64
	bx, by float64
	wx, wy float64
}

func primariesChromaticities(p ColorPrimaries) chromaticities {
	switch p {
	case PrimariesBT470M:
		return chromaticities{0.67, 0.33, 0.21, 0.71, 0.14, 0.08, 0.310, 0.316}
	case PrimariesBT470BG:
		return chromaticities{0.64, 0.33, 0.29, 0.60, 0.15, 0.06, 0.3127, 0.3290}
	case PrimariesBT601, PrimariesSMPTE240:
		return chromaticities{0.630, 0.340, 0.310, 0.595, 0.155, 0.070, 0.3127, 0.3290}
	case PrimariesGenericFilm:
		return chromaticities{0.681, 0.319, 0.243, 0.692, 0.145, 0.049, 0.310, 0.316}
	case PrimariesBT2020:
		return chromaticities{0.708, 0.292, 0.170, 0.797, 0.131, 0.046, 0.3127, 0.3290}
	case PrimariesXYZ:
		return chromaticities{1, 0, 0, 1, 0, 0, 1.0 / 3.0, 1.0 / 3.0}
	case PrimariesSMPTE431:
		return chromaticities{0.680, 0.320, 0.265, 0.690, 0.150, 0.060, 0.314, 0.351}
	case PrimariesSMPTE432:
		return chromaticities{0.680, 0.320, 0.265, 0.690, 0.150, 0.060, 0.3127, 0.3290}
	case PrimariesEBU3213:
		return chromaticities{0.630, 0.340, 0.295, 0.605, 0.155, 0.077, 0.3127, 0.3290}
	default:
		// BT.709, unknown and unspecified.
		return chromaticities{0.64, 0.33, 0.30, 0.60, 0.15, 0.06, 0.3127, 0.3290}
	}
}

type matrix3 [3][3]float64

func (m matrix3) mulVec(x, y, z float64) (float64, float64, float64) {
	return m[0][0]*x + m[0][1]*y + m[0][2]*z,
		m[1][0]*x + m[1][1]*y + m[1][2]*z,
		m[2][0]*x + m[2][1]*y + m[2][2]*z
}

func (m matrix3) mul(o matrix3) matrix3 {
	var r matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

func (m matrix3) inverse() matrix3 {
	a := m[1][1]*m[2][2] - m[1][2]*m[2][1]
	b := m[1][2]*m[2][0] - m[1][0]*m[2][2]
	c := m[1][0]*m[2][1] - m[1][1]*m[2][0]
	det := m[0][0]*a + m[0][1]*b + m[0][2]*c
	inv := 1.0 / det
	return matrix3{
		{a * inv, (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * inv, (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * inv},
		{b * inv, (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * inv, (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * inv},
		{c * inv, (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * inv, (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * inv},
	}
}

// rgbToXYZMatrix derives the linear RGB to XYZ matrix for p, normalized so
// that white maps to Y=1.
func rgbToXYZMatrix(p ColorPrimaries) matrix3 {
	c := primariesChromaticities(p)
	xr, yr, zr := c.rx/c.ry, 1.0, (1-c.rx-c.ry)/c.ry
	xg, yg, zg := c.gx/c.gy, 1.0, (1-c.gx-c.gy)/c.gy
	xb, yb, zb := c.bx/c.by, 1.0, (1-c.bx-c.by)/c.by
	prim := matrix3{{xr, xg, xb}, {yr, yg, yb}, {zr, zg, zb}}
	wX, wY, wZ := c.wx/c.wy, 1.0, (1-c.wx-c.wy)/c.wy
	sr, sg, sb := prim.inverse().mulVec(wX, wY, wZ)
	return matrix3{
		{sr * xr, sg * xg, sb * xb},
		{sr * yr, sg * yg, sb * yb},
		{sr * zr, sg * zg, sb * zb},
	}
}

// gamutConversionMatrix converts linear RGB in `from` primaries to linear
// RGB in `to` primaries (through XYZ, no chromatic adaptation beyond the
// white points baked into each matrix).
func gamutConversionMatrix(from, to ColorPrimaries) matrix3 {
	if from == to {
		return matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
	return rgbToXYZMatrix(to).inverse().mul(rgbToXYZMatrix(from))
}

// lumaCoefficients returns the Y row of the RGB to XYZ matrix for p:
// the relative luminance contribution of each channel.
func lumaCoefficients(p ColorPrimaries) (kr, kg, kb float64) {
	m := rgbToXYZMatrix(p)
	return m[1][0], m[1][1], m[1][2]
}
