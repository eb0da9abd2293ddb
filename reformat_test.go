package avifgain

import (
	"errors"
	"testing"
)

func newTestRGB(t *testing.T, w, h, depth int, format RGBFormat) *RGBImage {
	t.Helper()
	rgb, err := NewRGBImage(w, h, depth, format)
	if err != nil {
		t.Fatalf("NewRGBImage: %v", err)
	}
	max := rgb.MaxChannel()
	ch := format.ChannelCount()
	for i := range rgb.Pix {
		rgb.Pix[i] = uint16((i*2654435761 + i/ch) % (max + 1))
	}
	return rgb
}

func newTestImage(t *testing.T, w, h, depth int, format PixelFormat) *Image {
	t.Helper()
	img, err := NewImage(w, h, depth, format)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	return img
}

func TestIdentityRoundTripLossless(t *testing.T) {
	for _, depth := range []int{8, 10, 12, 16} {
		src := newTestRGB(t, 7, 5, depth, FormatRGB)
		img := newTestImage(t, 7, 5, depth, Format444)
		img.MatrixCoefficients = MatrixIdentity
		img.Range = RangeFull
		if err := img.FromRGB(src); err != nil {
			t.Fatalf("depth %d: FromRGB: %v", depth, err)
		}
		dst, err := NewRGBImage(7, 5, depth, FormatRGB)
		if err != nil {
			t.Fatal(err)
		}
		if err := img.ToRGB(dst); err != nil {
			t.Fatalf("depth %d: ToRGB: %v", depth, err)
		}
		for i := range src.Pix {
			if src.Pix[i] != dst.Pix[i] {
				t.Fatalf("depth %d: sample %d changed: %d -> %d", depth, i, src.Pix[i], dst.Pix[i])
			}
		}
	}
}

func TestIdentityRequires444(t *testing.T) {
	src := newTestRGB(t, 4, 4, 8, FormatRGB)
	img := newTestImage(t, 4, 4, 8, Format420)
	img.MatrixCoefficients = MatrixIdentity
	if err := img.FromRGB(src); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("identity with 4:2:0: got %v, want ErrInvalidArgument", err)
	}
}

func TestUnsupportedMatrixCoefficients(t *testing.T) {
	for _, mc := range []MatrixCoefficients{MatrixBT2020CL, MatrixSMPTE2085, MatrixChromaDerivedCL, MatrixICtCp} {
		src := newTestRGB(t, 4, 4, 8, FormatRGB)
		img := newTestImage(t, 4, 4, 8, Format444)
		img.MatrixCoefficients = mc
		if err := img.FromRGB(src); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("matrix %d: got %v, want ErrInvalidArgument", mc, err)
		}
	}
}

func TestYCgCoRequiresFullRange(t *testing.T) {
	src := newTestRGB(t, 4, 4, 8, FormatRGB)
	img := newTestImage(t, 4, 4, 8, Format444)
	img.MatrixCoefficients = MatrixYCgCo
	img.Range = RangeLimited
	if err := img.FromRGB(src); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("limited range YCgCo: got %v, want ErrInvalidArgument", err)
	}
}

func TestYCgCoReRoundTripLossless(t *testing.T) {
	cases := []struct {
		mc       MatrixCoefficients
		rgbDepth int
		yuvDepth int
	}{
		{mc: MatrixYCgCoRe, rgbDepth: 8, yuvDepth: 10},
		{mc: MatrixYCgCoRe, rgbDepth: 10, yuvDepth: 12},
		{mc: MatrixYCgCoRo, rgbDepth: 8, yuvDepth: 12}, // wrong depth
	}
	for _, tc := range cases {
		src := newTestRGB(t, 6, 4, tc.rgbDepth, FormatRGB)
		img := newTestImage(t, 6, 4, tc.yuvDepth, Format444)
		img.MatrixCoefficients = tc.mc
		img.Range = RangeFull
		err := img.FromRGB(src)

		lift := 2
		if tc.mc == MatrixYCgCoRo {
			lift = 1
		}
		if tc.yuvDepth != tc.rgbDepth+lift {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("depth mismatch: got %v, want ErrInvalidArgument", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("FromRGB: %v", err)
		}
		dst, err := NewRGBImage(6, 4, tc.rgbDepth, FormatRGB)
		if err != nil {
			t.Fatal(err)
		}
		if err := img.ToRGB(dst); err != nil {
			t.Fatalf("ToRGB: %v", err)
		}
		for i := range src.Pix {
			if src.Pix[i] != dst.Pix[i] {
				t.Fatalf("sample %d changed: %d -> %d", i, src.Pix[i], dst.Pix[i])
			}
		}
	}
}

func TestMonochromeRoundTripLossless(t *testing.T) {
	src := newTestRGB(t, 9, 3, 8, FormatGray)
	img := newTestImage(t, 9, 3, 8, Format400)
	img.Range = RangeFull
	if err := img.FromRGB(src); err != nil {
		t.Fatalf("FromRGB: %v", err)
	}
	dst, err := NewRGBImage(9, 3, 8, FormatGray)
	if err != nil {
		t.Fatal(err)
	}
	if err := img.ToRGB(dst); err != nil {
		t.Fatalf("ToRGB: %v", err)
	}
	for i := range src.Pix {
		if src.Pix[i] != dst.Pix[i] {
			t.Fatalf("sample %d changed: %d -> %d", i, src.Pix[i], dst.Pix[i])
		}
	}
}

func TestGreyBlockTo420(t *testing.T) {
	// A 2x2 grey block. Luma must come through exactly in full range and
	// the single chroma sample must be neutral.
	src, err := NewRGBImage(2, 2, 8, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	values := []uint16{4, 3, 2, 1}
	for i, v := range values {
		src.Pix[i*3], src.Pix[i*3+1], src.Pix[i*3+2] = v, v, v
	}
	for _, policy := range []ChromaDownsampling{DownsamplingFastest, DownsamplingAverage, DownsamplingBestQuality} {
		src.ChromaDownsampling = policy
		img := newTestImage(t, 2, 2, 8, Format420)
		img.MatrixCoefficients = MatrixBT601
		img.Range = RangeFull
		if err := img.FromRGB(src); err != nil {
			t.Fatalf("policy %d: FromRGB: %v", policy, err)
		}
		for i, v := range values {
			if img.Y[i] != v {
				t.Errorf("policy %d: Y[%d] = %d, want %d", policy, i, img.Y[i], v)
			}
		}
		if img.U[0] != 128 || img.V[0] != 128 {
			t.Errorf("policy %d: chroma = %d/%d, want 128/128", policy, img.U[0], img.V[0])
		}
	}
}

func TestLimitedRangeDepthLiftRoundTrip(t *testing.T) {
	for _, r := range []Range{RangeLimited, RangeFull} {
		src := newTestRGB(t, 5, 5, 8, FormatGray)
		img := newTestImage(t, 5, 5, 12, Format400)
		img.Range = r
		if err := img.FromRGB(src); err != nil {
			t.Fatalf("range %d: FromRGB: %v", r, err)
		}
		dst, err := NewRGBImage(5, 5, 8, FormatGray)
		if err != nil {
			t.Fatal(err)
		}
		if err := img.ToRGB(dst); err != nil {
			t.Fatalf("range %d: ToRGB: %v", r, err)
		}
		for i := range src.Pix {
			if src.Pix[i] != dst.Pix[i] {
				t.Fatalf("range %d: sample %d changed: %d -> %d", r, i, src.Pix[i], dst.Pix[i])
			}
		}
	}
}

func TestSharpDownsamplingPreconditions(t *testing.T) {
	src := newTestRGB(t, 4, 4, 8, FormatRGB)
	src.ChromaDownsampling = DownsamplingSharp

	img := newTestImage(t, 4, 4, 8, Format444)
	img.MatrixCoefficients = MatrixBT601
	if err := img.FromRGB(src); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("sharp with 4:4:4: got %v, want ErrNotImplemented", err)
	}

	img = newTestImage(t, 4, 4, 8, Format420)
	img.MatrixCoefficients = MatrixIdentity
	if err := img.FromRGB(src); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("sharp with identity: got %v, want error", err)
	}

	src16 := newTestRGB(t, 4, 4, 16, FormatRGB)
	src16.ChromaDownsampling = DownsamplingSharp
	img = newTestImage(t, 4, 4, 16, Format420)
	img.MatrixCoefficients = MatrixBT601
	if err := img.FromRGB(src16); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("sharp with 16-bit source: got %v, want ErrNotImplemented", err)
	}
}

func TestSharpDownsamplingFlatImage(t *testing.T) {
	src, err := NewRGBImage(8, 8, 8, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	for i := range src.Pix {
		src.Pix[i] = 100
	}
	src.ChromaDownsampling = DownsamplingSharp
	img := newTestImage(t, 8, 8, 8, Format420)
	img.MatrixCoefficients = MatrixBT601
	img.Range = RangeFull
	if err := img.FromRGB(src); err != nil {
		t.Fatalf("FromRGB: %v", err)
	}
	for i, v := range img.Y {
		if d := int(v) - 100; d < -1 || d > 1 {
			t.Fatalf("Y[%d] = %d, want 100 +/- 1", i, v)
		}
	}
	for i := range img.U {
		if img.U[i] != 128 || img.V[i] != 128 {
			t.Fatalf("chroma[%d] = %d/%d, want neutral", i, img.U[i], img.V[i])
		}
	}
}

func TestBilinearUpsamplingFlatChroma(t *testing.T) {
	img := newTestImage(t, 6, 6, 8, Format420)
	img.MatrixCoefficients = MatrixBT601
	img.Range = RangeFull
	for i := range img.Y {
		img.Y[i] = 90
	}
	for i := range img.U {
		img.U[i] = 140
		img.V[i] = 120
	}
	nearest, err := NewRGBImage(6, 6, 8, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	nearest.ChromaUpsampling = UpsamplingNearest
	if err := img.ToRGB(nearest); err != nil {
		t.Fatalf("ToRGB nearest: %v", err)
	}
	bilinear, err := NewRGBImage(6, 6, 8, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	bilinear.ChromaUpsampling = UpsamplingBilinear
	if err := img.ToRGB(bilinear); err != nil {
		t.Fatalf("ToRGB bilinear: %v", err)
	}
	// Flat chroma interpolates to itself, so both paths must agree.
	for i := range nearest.Pix {
		if nearest.Pix[i] != bilinear.Pix[i] {
			t.Fatalf("sample %d differs: nearest %d, bilinear %d", i, nearest.Pix[i], bilinear.Pix[i])
		}
	}
}
