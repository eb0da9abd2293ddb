package avifgain

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testRenditions builds an SDR sRGB base and a PQ alternate that is
// exactly boost times brighter in linear light.
func testRenditions(t *testing.T, w, h int, boost float64) (*Image, *Image) {
	t.Helper()

	baseRGB, err := NewRGBImage(w, h, 8, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	altRGB, err := NewRGBImage(w, h, 10, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint16((x*8 + y*16) % 256)
			if x == 0 && y == 0 {
				v = 255 // ensure the base peaks at SDR white
			}
			i := baseRGB.PixelIndex(x, y)
			baseRGB.Pix[i], baseRGB.Pix[i+1], baseRGB.Pix[i+2] = v, v, v

			lin := boost * srgbToLinear(float64(v)/255)
			a := uint16(math.Round(pqFromLinear(lin) * 1023))
			j := altRGB.PixelIndex(x, y)
			altRGB.Pix[j], altRGB.Pix[j+1], altRGB.Pix[j+2] = a, a, a
		}
	}

	base, err := NewImage(w, h, 8, Format444)
	if err != nil {
		t.Fatal(err)
	}
	base.MatrixCoefficients = MatrixIdentity
	base.ColorPrimaries = PrimariesBT709
	base.TransferCharacteristics = TransferSRGB
	if err := base.FromRGB(baseRGB); err != nil {
		t.Fatalf("base FromRGB: %v", err)
	}

	alt, err := NewImage(w, h, 10, Format444)
	if err != nil {
		t.Fatal(err)
	}
	alt.MatrixCoefficients = MatrixIdentity
	alt.ColorPrimaries = PrimariesBT709
	alt.TransferCharacteristics = TransferPQ
	if err := alt.FromRGB(altRGB); err != nil {
		t.Fatalf("alternate FromRGB: %v", err)
	}
	return base, alt
}

func TestComputeGainMapHeadrooms(t *testing.T) {
	base, alt := testRenditions(t, 16, 16, 4)
	if err := Combine(base, alt, CombineOptions{}); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	gm := base.GainMap
	if gm == nil || gm.Image == nil {
		t.Fatal("Combine did not attach a gain map")
	}
	if got := gm.BaseHdrHeadroom.Double(); got != 0 {
		t.Errorf("base headroom = %g, want 0", got)
	}
	// The brightest base pixel is SDR white, so the alternate peaks at
	// two stops above it.
	if got := gm.AlternateHdrHeadroom.Double(); math.Abs(got-2) > 0.05 {
		t.Errorf("alternate headroom = %g, want about 2", got)
	}
	if gm.Image.Width != 16 || gm.Image.Height != 16 {
		t.Errorf("gain map size %dx%d, want 16x16", gm.Image.Width, gm.Image.Height)
	}
}

func TestCombineDownscalingAndHeadroomCap(t *testing.T) {
	base, alt := testRenditions(t, 16, 16, 4)
	opts := CombineOptions{Downscaling: 4, MaxHeadroom: 1.5}
	if err := Combine(base, alt, opts); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	gm := base.GainMap
	if gm.Image.Width != 4 || gm.Image.Height != 4 {
		t.Errorf("gain map size %dx%d, want 4x4", gm.Image.Width, gm.Image.Height)
	}
	if got := gm.AlternateHdrHeadroom.Double(); got != 1.5 {
		t.Errorf("capped alternate headroom = %g, want 1.5", got)
	}
	// The base headroom (0) is already below the cap and must stay put.
	if got := gm.BaseHdrHeadroom.Double(); got != 0 {
		t.Errorf("base headroom = %g, want 0", got)
	}
}

func TestApplyGainMapFullStrength(t *testing.T) {
	base, alt := testRenditions(t, 16, 16, 4)
	if err := Combine(base, alt, CombineOptions{}); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	gm := base.GainMap

	dst, err := NewRGBImage(16, 16, 10, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyGainMap(base, gm, gm.AlternateHdrHeadroom.Double(),
		PrimariesBT709, TransferPQ, dst, nil); err != nil {
		t.Fatalf("ApplyGainMap: %v", err)
	}

	altRGB, err := NewRGBImage(16, 16, 10, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	if err := alt.ToRGB(altRGB); err != nil {
		t.Fatal(err)
	}
	for i := range dst.Pix {
		got := pqToLinear(float64(dst.Pix[i]) / 1023)
		want := pqToLinear(float64(altRGB.Pix[i]) / 1023)
		if math.Abs(got-want) > 0.05*want+0.02 {
			t.Fatalf("sample %d: linear %g, want about %g", i, got, want)
		}
	}
}

func TestApplyGainMapAtBaseHeadroomReturnsBase(t *testing.T) {
	base, alt := testRenditions(t, 8, 8, 4)
	if err := Combine(base, alt, CombineOptions{}); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	dst, err := NewRGBImage(8, 8, 8, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyGainMap(base, base.GainMap, 0, PrimariesBT709, TransferSRGB, dst, nil); err != nil {
		t.Fatalf("ApplyGainMap: %v", err)
	}
	baseRGB, err := NewRGBImage(8, 8, 8, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	if err := base.ToRGB(baseRGB); err != nil {
		t.Fatal(err)
	}
	for i := range dst.Pix {
		if d := int(dst.Pix[i]) - int(baseRGB.Pix[i]); d < -1 || d > 1 {
			t.Fatalf("sample %d: %d, want %d +/- 1", i, dst.Pix[i], baseRGB.Pix[i])
		}
	}
}

func TestApplyGainMapHeadroomMonotonic(t *testing.T) {
	base, alt := testRenditions(t, 8, 8, 4)
	if err := Combine(base, alt, CombineOptions{}); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	gm := base.GainMap

	render := func(h float64) []uint16 {
		dst, err := NewRGBImage(8, 8, 10, FormatRGB)
		if err != nil {
			t.Fatal(err)
		}
		if err := ApplyGainMap(base, gm, h, PrimariesBT709, TransferPQ, dst, nil); err != nil {
			t.Fatalf("ApplyGainMap(%g): %v", h, err)
		}
		return dst.Pix
	}

	prev := render(0)
	for _, h := range []float64{0.5, 1, 1.5, 2, 3} {
		cur := render(h)
		for i := range cur {
			if int(cur[i]) < int(prev[i])-1 {
				t.Fatalf("headroom %g: sample %d decreased from %d to %d", h, i, prev[i], cur[i])
			}
		}
		prev = cur
	}
}

func TestApplyGainMapComputesLightLevels(t *testing.T) {
	base, alt := testRenditions(t, 8, 8, 4)
	if err := Combine(base, alt, CombineOptions{}); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	gm := base.GainMap
	dst, err := NewRGBImage(8, 8, 10, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	var clli ContentLightLevel
	if err := ApplyGainMap(base, gm, gm.AlternateHdrHeadroom.Double(),
		PrimariesBT709, TransferPQ, dst, &clli); err != nil {
		t.Fatalf("ApplyGainMap: %v", err)
	}
	// Peak is about four times SDR white.
	if clli.MaxCLL < 700 || clli.MaxCLL > 900 {
		t.Errorf("MaxCLL = %d, want near %d", clli.MaxCLL, 4*203)
	}
	if clli.MaxPALL == 0 || clli.MaxPALL > clli.MaxCLL {
		t.Errorf("MaxPALL = %d, want within (0, MaxCLL]", clli.MaxPALL)
	}
}

func TestApplyGainMapInvalidHeadroomFraction(t *testing.T) {
	base, alt := testRenditions(t, 4, 4, 4)
	if err := Combine(base, alt, CombineOptions{}); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	gm := base.GainMap
	gm.AlternateHdrHeadroom = UnsignedFraction{N: 1, D: 0}
	dst, err := NewRGBImage(4, 4, 8, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyGainMap(base, gm, 1, PrimariesBT709, TransferSRGB, dst, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero denominator headroom: got %v, want ErrInvalidArgument", err)
	}
}

func TestGainMapWeight(t *testing.T) {
	cases := []struct {
		h, baseH, altH float64
		want           float64
	}{
		{h: 0, baseH: 0, altH: 2, want: 0},
		{h: 1, baseH: 0, altH: 2, want: 0.5},
		{h: 2, baseH: 0, altH: 2, want: 1},
		{h: 5, baseH: 0, altH: 2, want: 1},
		{h: 1, baseH: 1, altH: 1, want: 0},
		{h: 0, baseH: 2, altH: 0, want: 1}, // HDR base, SDR alternate
		{h: 3, baseH: 2, altH: 0, want: 0},
	}
	for _, tc := range cases {
		if got := gainMapWeight(tc.h, tc.baseH, tc.altH); got != tc.want {
			t.Errorf("gainMapWeight(%g, %g, %g) = %g, want %g", tc.h, tc.baseH, tc.altH, got, tc.want)
		}
	}
}

func TestMonochromeGainMap(t *testing.T) {
	base, alt := testRenditions(t, 8, 8, 4)
	if err := Combine(base, alt, CombineOptions{GainMapFormat: Format400}); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	gm := base.GainMap
	if got := gm.ChannelCount(); got != 1 {
		t.Fatalf("ChannelCount = %d, want 1", got)
	}
	dst, err := NewRGBImage(8, 8, 10, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	if err := ApplyGainMap(base, gm, gm.AlternateHdrHeadroom.Double(),
		PrimariesBT709, TransferPQ, dst, nil); err != nil {
		t.Fatalf("ApplyGainMap: %v", err)
	}
	altRGB, err := NewRGBImage(8, 8, 10, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	if err := alt.ToRGB(altRGB); err != nil {
		t.Fatal(err)
	}
	for i := range dst.Pix {
		got := pqToLinear(float64(dst.Pix[i]) / 1023)
		want := pqToLinear(float64(altRGB.Pix[i]) / 1023)
		if math.Abs(got-want) > 0.05*want+0.02 {
			t.Fatalf("sample %d: linear %g, want about %g", i, got, want)
		}
	}
}

func TestChangeBaseSwapsMetadata(t *testing.T) {
	base, alt := testRenditions(t, 8, 8, 4)
	if err := Combine(base, alt, CombineOptions{}); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	gm := base.GainMap

	swapped, err := ChangeBase(base, 10, Format444)
	if err != nil {
		t.Fatalf("ChangeBase: %v", err)
	}
	sgm := swapped.GainMap
	if diff := cmp.Diff(gm.AlternateHdrHeadroom, sgm.BaseHdrHeadroom); diff != "" {
		t.Errorf("base headroom after swap (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(gm.BaseHdrHeadroom, sgm.AlternateHdrHeadroom); diff != "" {
		t.Errorf("alternate headroom after swap (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(gm.BaseOffset, sgm.AlternateOffset); diff != "" {
		t.Errorf("offsets after swap (-want +got):\n%s", diff)
	}
	if sgm.UseBaseColorSpace == gm.UseBaseColorSpace {
		t.Error("UseBaseColorSpace did not flip")
	}
	if sgm.AltDepth != base.Depth || sgm.AltTransferCharacteristics != base.TransferCharacteristics {
		t.Errorf("alternate block = depth %d transfer %d, want base's depth %d transfer %d",
			sgm.AltDepth, sgm.AltTransferCharacteristics, base.Depth, base.TransferCharacteristics)
	}
	if swapped.TransferCharacteristics != TransferPQ {
		t.Errorf("swapped transfer = %d, want PQ", swapped.TransferCharacteristics)
	}
	if diff := cmp.Diff(gm.Image.Y, sgm.Image.Y); diff != "" {
		t.Errorf("gain map pixels changed (-want +got):\n%s", diff)
	}

	// Swapping twice restores the original metadata bit for bit.
	double, err := ChangeBase(swapped, 8, Format444)
	if err != nil {
		t.Fatalf("second ChangeBase: %v", err)
	}
	dgm := double.GainMap
	if diff := cmp.Diff(gm.BaseHdrHeadroom, dgm.BaseHdrHeadroom); diff != "" {
		t.Errorf("double swap base headroom (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(gm.BaseOffset, dgm.BaseOffset); diff != "" {
		t.Errorf("double swap offsets (-want +got):\n%s", diff)
	}
	if dgm.UseBaseColorSpace != gm.UseBaseColorSpace {
		t.Error("double swap did not restore UseBaseColorSpace")
	}
}

func TestChangeBaseWithoutGainMap(t *testing.T) {
	img := newTestImage(t, 4, 4, 8, Format444)
	if _, err := ChangeBase(img, 8, Format444); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("ChangeBase without gain map: got %v, want ErrInvalidArgument", err)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	gm := NewGainMap()
	for c := 0; c < 3; c++ {
		gm.GainMapMin[c] = SignedFraction{N: int32(-c - 1), D: 7}
		gm.GainMapMax[c] = SignedFraction{N: int32(c + 10), D: 7}
		gm.Gamma[c] = UnsignedFraction{N: uint32(c + 1), D: 3}
		gm.BaseOffset[c] = SignedFraction{N: 1, D: 64}
		gm.AlternateOffset[c] = SignedFraction{N: int32(c), D: 64}
	}
	gm.BaseHdrHeadroom = UnsignedFraction{N: 0, D: 1}
	gm.AlternateHdrHeadroom = UnsignedFraction{N: 13, D: 5}
	gm.UseBaseColorSpace = false

	data, err := gm.EncodeMetadata()
	if err != nil {
		t.Fatalf("EncodeMetadata: %v", err)
	}
	decoded := NewGainMap()
	if err := decoded.DecodeMetadata(data); err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	got := *decoded
	want := *gm
	got.Image, want.Image = nil, nil
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metadata round trip (-want +got):\n%s", diff)
	}
}

func TestMetadataRoundTripCommonDenominator(t *testing.T) {
	gm := NewGainMap()
	for c := 0; c < 3; c++ {
		gm.GainMapMin[c] = SignedFraction{N: -2, D: 64}
		gm.GainMapMax[c] = SignedFraction{N: 128, D: 64}
		gm.Gamma[c] = UnsignedFraction{N: 64, D: 64}
		gm.BaseOffset[c] = SignedFraction{N: 1, D: 64}
		gm.AlternateOffset[c] = SignedFraction{N: 1, D: 64}
	}
	gm.BaseHdrHeadroom = UnsignedFraction{N: 0, D: 64}
	gm.AlternateHdrHeadroom = UnsignedFraction{N: 192, D: 64}

	data, err := gm.EncodeMetadata()
	if err != nil {
		t.Fatalf("EncodeMetadata: %v", err)
	}
	// version (4) + flags (1) + common denominator (4) + 2 headroom
	// numerators (8) + one channel of 5 fields (20).
	if len(data) != 37 {
		t.Errorf("common denominator payload is %d bytes, want 37", len(data))
	}
	decoded := NewGainMap()
	if err := decoded.DecodeMetadata(data); err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	got := *decoded
	want := *gm
	got.Image, want.Image = nil, nil
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metadata round trip (-want +got):\n%s", diff)
	}
}

func TestDecodeMetadataTruncated(t *testing.T) {
	gm := NewGainMap()
	data, err := gm.EncodeMetadata()
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{0, 3, 5, len(data) - 1} {
		if err := NewGainMap().DecodeMetadata(data[:n]); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("truncated to %d bytes: got %v, want ErrInvalidArgument", n, err)
		}
	}
}
