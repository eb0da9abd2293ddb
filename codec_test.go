package avifgain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestZstdPlaneRoundTrip(t *testing.T) {
	codec, err := NewZstdPlaneCodec()
	if err != nil {
		t.Fatalf("NewZstdPlaneCodec: %v", err)
	}
	session, err := NewCodecSession(codec)
	if err != nil {
		t.Fatalf("NewCodecSession: %v", err)
	}
	if caps := session.Capabilities(); !caps.Lossless || !caps.Monochrome {
		t.Fatalf("capabilities = %+v, want lossless monochrome backend", caps)
	}

	img := newTestImage(t, 11, 7, 10, Format420)
	max := uint16(img.MaxChannel())
	for i := range img.Y {
		img.Y[i] = uint16(i*37) % (max + 1)
	}
	for i := range img.U {
		img.U[i] = uint16(i*53) % (max + 1)
		img.V[i] = uint16(i*71) % (max + 1)
	}

	payloads, err := session.EncodeImage(img, true)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	if len(payloads) != 3 {
		t.Fatalf("got %d payloads, want 3", len(payloads))
	}
	if !payloads[0].KeyFrame {
		t.Error("key flag not carried through")
	}

	decoded := newTestImage(t, 11, 7, 10, Format420)
	if err := session.DecodeImage(payloads, decoded); err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if diff := cmp.Diff(img.Y, decoded.Y); diff != "" {
		t.Errorf("Y plane (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(img.U, decoded.U); diff != "" {
		t.Errorf("U plane (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(img.V, decoded.V); diff != "" {
		t.Errorf("V plane (-want +got):\n%s", diff)
	}
}

func TestCodecSessionRejectsDimensionChange(t *testing.T) {
	codec, err := NewZstdPlaneCodec()
	if err != nil {
		t.Fatal(err)
	}
	session, err := NewCodecSession(codec)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := session.EncodeImage(newTestImage(t, 8, 8, 8, Format444), true); err != nil {
		t.Fatalf("first EncodeImage: %v", err)
	}
	if _, err := session.EncodeImage(newTestImage(t, 4, 4, 8, Format444), false); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("changed dimensions: got %v, want ErrNotImplemented", err)
	}
}

func TestCodecSessionPayloadCountMismatch(t *testing.T) {
	codec, err := NewZstdPlaneCodec()
	if err != nil {
		t.Fatal(err)
	}
	session, err := NewCodecSession(codec)
	if err != nil {
		t.Fatal(err)
	}
	img := newTestImage(t, 4, 4, 8, Format444)
	payloads, err := session.EncodeImage(img, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := session.DecodeImage(payloads[:2], img); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("short payload list: got %v, want ErrInvalidArgument", err)
	}
}

func TestZstdPlaneCodecMonochrome(t *testing.T) {
	codec, err := NewZstdPlaneCodec()
	if err != nil {
		t.Fatal(err)
	}
	session, err := NewCodecSession(codec)
	if err != nil {
		t.Fatal(err)
	}
	img := newTestImage(t, 6, 6, 12, Format400)
	for i := range img.Y {
		img.Y[i] = uint16(i * 101 % 4096)
	}
	payloads, err := session.EncodeImage(img, true)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads for 4:0:0, want 1", len(payloads))
	}
	decoded := newTestImage(t, 6, 6, 12, Format400)
	if err := session.DecodeImage(payloads, decoded); err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if diff := cmp.Diff(img.Y, decoded.Y); diff != "" {
		t.Errorf("Y plane (-want +got):\n%s", diff)
	}
}
