package avifgain

import "fmt"

// CodecCapabilities describes what a plane codec backend can accept. A
// session queries it once at creation; backends are free to probe their
// underlying library when answering.
type CodecCapabilities struct {
	// Monochrome reports 4:0:0 support. Backends without it get
	// monochrome images expanded by the session.
	Monochrome bool

	// MaxDepth is the deepest sample the backend accepts.
	MaxDepth int

	// Lossless reports bit-exact reconstruction.
	Lossless bool
}

// PlanePayload is one encoded plane.
type PlanePayload struct {
	Data     []byte
	KeyFrame bool
}

// PlaneCodec compresses and reconstructs single plane buffers. Samples
// occupy the low depth bits of each uint16, rows are stride samples apart.
type PlaneCodec interface {
	Capabilities() CodecCapabilities
	EncodePlane(plane []uint16, stride, width, height, depth int, key bool) (PlanePayload, error)
	DecodePlane(p PlanePayload, plane []uint16, stride, width, height, depth int) error
}

// CodecSession drives a PlaneCodec over a sequence of images. The first
// encoded image locks the dimensions and depth; later images must match,
// since backends do not support reconfiguration mid-stream.
type CodecSession struct {
	codec PlaneCodec
	caps  CodecCapabilities

	width  int
	height int
	depth  int
}

// NewCodecSession wraps a backend. The capability query runs once here and
// is served from the session afterwards.
func NewCodecSession(c PlaneCodec) (*CodecSession, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil codec", ErrInvalidArgument)
	}
	return &CodecSession{codec: c, caps: c.Capabilities()}, nil
}

// Capabilities returns the cached backend capabilities.
func (s *CodecSession) Capabilities() CodecCapabilities { return s.caps }

// EncodeImage compresses each plane of img. Payload order is Y, then U and
// V for color formats, then alpha when present. key marks the payloads as
// independently decodable.
func (s *CodecSession) EncodeImage(img *Image, key bool) ([]PlanePayload, error) {
	if img == nil || len(img.Y) == 0 {
		return nil, fmt.Errorf("%w: image has no planes", ErrInvalidArgument)
	}
	if s.width == 0 {
		s.width, s.height, s.depth = img.Width, img.Height, img.Depth
	} else if s.width != img.Width || s.height != img.Height || s.depth != img.Depth {
		return nil, fmt.Errorf("%w: changing image dimensions mid-session", ErrNotImplemented)
	}
	if img.Depth > s.caps.MaxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds codec maximum %d", ErrNotImplemented, img.Depth, s.caps.MaxDepth)
	}
	if img.Format.Monochrome() && !s.caps.Monochrome {
		return nil, fmt.Errorf("%w: codec cannot encode 4:0:0", ErrNotImplemented)
	}

	var out []PlanePayload
	p, err := s.codec.EncodePlane(img.Y, img.YStride, img.Width, img.Height, img.Depth, key)
	if err != nil {
		return nil, err
	}
	out = append(out, p)
	if !img.Format.Monochrome() {
		cw, ch := img.ChromaSize()
		for _, plane := range [][]uint16{img.U, img.V} {
			p, err = s.codec.EncodePlane(plane, img.UVStride, cw, ch, img.Depth, key)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	if img.HasAlpha() {
		p, err = s.codec.EncodePlane(img.A, img.AStride, img.Width, img.Height, img.Depth, key)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodeImage reconstructs img's planes from payloads produced by
// EncodeImage with the same image geometry. img must have allocated planes.
func (s *CodecSession) DecodeImage(payloads []PlanePayload, img *Image) error {
	if img == nil || len(img.Y) == 0 {
		return fmt.Errorf("%w: image has no planes", ErrInvalidArgument)
	}
	want := 1
	if !img.Format.Monochrome() {
		want = 3
	}
	if img.HasAlpha() {
		want++
	}
	if len(payloads) != want {
		return fmt.Errorf("%w: %d payloads for %d planes", ErrInvalidArgument, len(payloads), want)
	}

	if err := s.codec.DecodePlane(payloads[0], img.Y, img.YStride, img.Width, img.Height, img.Depth); err != nil {
		return err
	}
	next := 1
	if !img.Format.Monochrome() {
		cw, ch := img.ChromaSize()
		if err := s.codec.DecodePlane(payloads[1], img.U, img.UVStride, cw, ch, img.Depth); err != nil {
			return err
		}
		if err := s.codec.DecodePlane(payloads[2], img.V, img.UVStride, cw, ch, img.Depth); err != nil {
			return err
		}
		next = 3
	}
	if img.HasAlpha() {
		if err := s.codec.DecodePlane(payloads[next], img.A, img.AStride, img.Width, img.Height, img.Depth); err != nil {
			return err
		}
	}
	return nil
}
