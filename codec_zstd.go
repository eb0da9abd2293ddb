package avifgain

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// ZstdPlaneCodec is a lossless reference backend: plane samples are packed
// big-endian and compressed with zstd. Every payload is independently
// decodable, so the key flag is recorded but has no effect on the stream.
type ZstdPlaneCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdPlaneCodec builds the backend with a shared stateless encoder and
// decoder pair.
func NewZstdPlaneCodec() (*ZstdPlaneCodec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &ZstdPlaneCodec{enc: enc, dec: dec}, nil
}

// Capabilities reports full support: any depth, monochrome, lossless.
func (c *ZstdPlaneCodec) Capabilities() CodecCapabilities {
	return CodecCapabilities{Monochrome: true, MaxDepth: 16, Lossless: true}
}

func (c *ZstdPlaneCodec) EncodePlane(plane []uint16, stride, width, height, depth int, key bool) (PlanePayload, error) {
	if width < 1 || height < 1 || stride < width {
		return PlanePayload{}, fmt.Errorf("%w: plane geometry %dx%d stride %d", ErrInvalidArgument, width, height, stride)
	}
	if (height-1)*stride+width > len(plane) {
		return PlanePayload{}, fmt.Errorf("%w: plane buffer too small", ErrInvalidArgument)
	}
	packed := make([]byte, 0, width*height*2)
	for y := 0; y < height; y++ {
		row := plane[y*stride : y*stride+width]
		for _, v := range row {
			packed = binary.BigEndian.AppendUint16(packed, v)
		}
	}
	return PlanePayload{Data: c.enc.EncodeAll(packed, nil), KeyFrame: key}, nil
}

func (c *ZstdPlaneCodec) DecodePlane(p PlanePayload, plane []uint16, stride, width, height, depth int) error {
	if width < 1 || height < 1 || stride < width {
		return fmt.Errorf("%w: plane geometry %dx%d stride %d", ErrInvalidArgument, width, height, stride)
	}
	if (height-1)*stride+width > len(plane) {
		return fmt.Errorf("%w: plane buffer too small", ErrInvalidArgument)
	}
	packed, err := c.dec.DecodeAll(p.Data, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if len(packed) != width*height*2 {
		return fmt.Errorf("%w: payload is %d bytes for a %dx%d plane", ErrInvalidArgument, len(packed), width, height)
	}
	maxSample := uint16((1 << depth) - 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := binary.BigEndian.Uint16(packed[(y*width+x)*2:])
			if v > maxSample {
				return fmt.Errorf("%w: sample %d exceeds depth %d", ErrInvalidArgument, v, depth)
			}
			plane[y*stride+x] = v
		}
	}
	return nil
}
