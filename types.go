package avifgain

// ColorPrimaries identifies a set of color primaries (ITU-T H.273 / CICP).
type ColorPrimaries uint16

const (
	PrimariesUnknown     ColorPrimaries = 0
	PrimariesBT709       ColorPrimaries = 1
	PrimariesUnspecified ColorPrimaries = 2
	PrimariesBT470M      ColorPrimaries = 4
	PrimariesBT470BG     ColorPrimaries = 5
	PrimariesBT601       ColorPrimaries = 6
	PrimariesSMPTE240    ColorPrimaries = 7
	PrimariesGenericFilm ColorPrimaries = 8
	PrimariesBT2020      ColorPrimaries = 9
	PrimariesXYZ         ColorPrimaries = 10
	PrimariesSMPTE431    ColorPrimaries = 11
	PrimariesSMPTE432    ColorPrimaries = 12 // Display P3
	PrimariesEBU3213     ColorPrimaries = 22
)

// TransferCharacteristics identifies a transfer curve (ITU-T H.273 / CICP).
type TransferCharacteristics uint16

const (
	TransferUnknown     TransferCharacteristics = 0
	TransferBT709       TransferCharacteristics = 1
	TransferUnspecified TransferCharacteristics = 2
	TransferBT470M      TransferCharacteristics = 4 // 2.2 gamma
	TransferBT470BG     TransferCharacteristics = 5 // 2.8 gamma
	TransferBT601       TransferCharacteristics = 6
	TransferSMPTE240    TransferCharacteristics = 7
	TransferLinear      TransferCharacteristics = 8
	TransferSRGB        TransferCharacteristics = 13
	TransferBT2020_10   TransferCharacteristics = 14
	TransferBT2020_12   TransferCharacteristics = 15
	TransferPQ          TransferCharacteristics = 16 // SMPTE ST 2084
	TransferHLG         TransferCharacteristics = 18
)

// MatrixCoefficients identifies a YUV matrix family (ITU-T H.273 / CICP).
type MatrixCoefficients uint16

const (
	MatrixIdentity         MatrixCoefficients = 0
	MatrixBT709            MatrixCoefficients = 1
	MatrixUnspecified      MatrixCoefficients = 2
	MatrixFCC              MatrixCoefficients = 4
	MatrixBT470BG          MatrixCoefficients = 5
	MatrixBT601            MatrixCoefficients = 6
	MatrixSMPTE240         MatrixCoefficients = 7
	MatrixYCgCo            MatrixCoefficients = 8
	MatrixBT2020NCL        MatrixCoefficients = 9
	MatrixBT2020CL         MatrixCoefficients = 10
	MatrixSMPTE2085        MatrixCoefficients = 11
	MatrixChromaDerivedNCL MatrixCoefficients = 12
	MatrixChromaDerivedCL  MatrixCoefficients = 13
	MatrixICtCp            MatrixCoefficients = 14
	MatrixYCgCoRe          MatrixCoefficients = 16
	MatrixYCgCoRo          MatrixCoefficients = 17
)

// PixelFormat identifies the chroma layout of an Image.
type PixelFormat int

const (
	FormatNone PixelFormat = iota
	Format444
	Format422
	Format420
	Format400 // monochrome
)

func (f PixelFormat) String() string {
	switch f {
	case Format444:
		return "YUV444"
	case Format422:
		return "YUV422"
	case Format420:
		return "YUV420"
	case Format400:
		return "YUV400"
	}
	return "none"
}

// Monochrome reports whether the format has no chroma planes.
func (f PixelFormat) Monochrome() bool { return f == Format400 }

// ChromaShift returns the log2 horizontal and vertical subsampling factors.
func (f PixelFormat) ChromaShift() (x, y int) {
	switch f {
	case Format422:
		return 1, 0
	case Format420:
		return 1, 1
	}
	return 0, 0
}

// Range selects between limited (studio swing) and full sample ranges.
type Range int

const (
	RangeLimited Range = iota
	RangeFull
)

// ChromaDownsampling selects the RGB to subsampled-chroma policy.
type ChromaDownsampling int

const (
	DownsamplingAutomatic ChromaDownsampling = iota
	DownsamplingFastest
	DownsamplingBestQuality
	DownsamplingAverage
	DownsamplingSharp
)

// ChromaUpsampling selects the subsampled-chroma to RGB policy.
type ChromaUpsampling int

const (
	UpsamplingAutomatic ChromaUpsampling = iota
	UpsamplingFastest
	UpsamplingBestQuality
	UpsamplingNearest
	UpsamplingBilinear
)

// RGBFormat describes the channel order of an RGBImage.
type RGBFormat int

const (
	FormatRGB RGBFormat = iota
	FormatRGBA
	FormatARGB
	FormatBGR
	FormatBGRA
	FormatABGR
	FormatGray
)

// ChannelCount returns the number of interleaved channels per pixel.
func (f RGBFormat) ChannelCount() int {
	switch f {
	case FormatRGBA, FormatARGB, FormatBGRA, FormatABGR:
		return 4
	case FormatGray:
		return 1
	}
	return 3
}

// HasAlpha reports whether the format carries an alpha channel.
func (f RGBFormat) HasAlpha() bool { return f.ChannelCount() == 4 }

// ChannelOffsets returns the per-pixel sample offsets of R, G, B and A.
// For FormatGray all three color offsets are 0. A is -1 when absent.
func (f RGBFormat) ChannelOffsets() (r, g, b, a int) {
	switch f {
	case FormatRGB:
		return 0, 1, 2, -1
	case FormatRGBA:
		return 0, 1, 2, 3
	case FormatARGB:
		return 1, 2, 3, 0
	case FormatBGR:
		return 2, 1, 0, -1
	case FormatBGRA:
		return 2, 1, 0, 3
	case FormatABGR:
		return 3, 2, 1, 0
	case FormatGray:
		return 0, 0, 0, -1
	}
	return 0, 1, 2, -1
}

// ContentLightLevel carries max and average content light levels in nits.
type ContentLightLevel struct {
	MaxCLL  uint16
	MaxPALL uint16
}

// IsZero reports whether the light levels are unset.
func (c ContentLightLevel) IsZero() bool { return c.MaxCLL == 0 && c.MaxPALL == 0 }
