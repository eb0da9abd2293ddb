package avifgain

import (
	"testing"

	"github.com/nfnt/resize"
)

func TestResizeRGBSameSizeCopies(t *testing.T) {
	src := newTestRGB(t, 6, 4, 8, FormatRGB)
	dst, err := ResizeRGB(src, 6, 4, resize.Bilinear)
	if err != nil {
		t.Fatalf("ResizeRGB: %v", err)
	}
	for i := range src.Pix {
		if src.Pix[i] != dst.Pix[i] {
			t.Fatalf("sample %d changed: %d -> %d", i, src.Pix[i], dst.Pix[i])
		}
	}
}

func TestResizeRGBFlatStaysFlat(t *testing.T) {
	src, err := NewRGBImage(8, 8, 10, FormatRGB)
	if err != nil {
		t.Fatal(err)
	}
	for i := range src.Pix {
		src.Pix[i] = 600
	}
	dst, err := ResizeRGB(src, 3, 3, resize.Bilinear)
	if err != nil {
		t.Fatalf("ResizeRGB: %v", err)
	}
	if dst.Width != 3 || dst.Height != 3 || dst.Depth != 10 {
		t.Fatalf("got %dx%d depth %d, want 3x3 depth 10", dst.Width, dst.Height, dst.Depth)
	}
	for i, v := range dst.Pix {
		if d := int(v) - 600; d < -1 || d > 1 {
			t.Fatalf("sample %d = %d, want 600 +/- 1", i, v)
		}
	}
}

func TestResizeRGBGray(t *testing.T) {
	src, err := NewRGBImage(4, 4, 8, FormatGray)
	if err != nil {
		t.Fatal(err)
	}
	for i := range src.Pix {
		src.Pix[i] = 42
	}
	dst, err := ResizeRGB(src, 2, 2, resize.NearestNeighbor)
	if err != nil {
		t.Fatalf("ResizeRGB: %v", err)
	}
	for i, v := range dst.Pix {
		if v != 42 {
			t.Fatalf("sample %d = %d, want 42", i, v)
		}
	}
}
