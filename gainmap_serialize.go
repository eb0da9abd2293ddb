package avifgain

import (
	"encoding/binary"
	"fmt"
)

const (
	metadataIsMultiChannelMask   = 1 << 7
	metadataUseBaseColorMask     = 1 << 6
	metadataBackwardDirectionBit = 4
	metadataCommonDenominatorBit = 8
)

// EncodeMetadata serializes the gain map metadata as a big-endian field
// set. Fractions are written verbatim, so a decode of the output is
// bit-exact. A common-denominator form is used when every written
// fraction shares one denominator.
func (gm *GainMap) EncodeMetadata() ([]byte, error) {
	if err := gm.validate(); err != nil {
		return nil, err
	}

	channelCount := 3
	if gm.identicalChannels() {
		channelCount = 1
	}

	flags := uint8(0)
	if channelCount == 3 {
		flags |= metadataIsMultiChannelMask
	}
	if gm.UseBaseColorSpace {
		flags |= metadataUseBaseColorMask
	}

	denom := gm.BaseHdrHeadroom.D
	useCommon := gm.AlternateHdrHeadroom.D == denom
	for c := 0; c < channelCount && useCommon; c++ {
		if gm.GainMapMin[c].D != denom || gm.GainMapMax[c].D != denom ||
			gm.Gamma[c].D != denom ||
			gm.BaseOffset[c].D != denom || gm.AlternateOffset[c].D != denom {
			useCommon = false
		}
	}
	if useCommon {
		flags |= metadataCommonDenominatorBit
	}

	out := make([]byte, 0, 128)
	writeU16 := func(v uint16) { out = binary.BigEndian.AppendUint16(out, v) }
	writeU32 := func(v uint32) { out = binary.BigEndian.AppendUint32(out, v) }
	writeS32 := func(v int32) { writeU32(uint32(v)) }

	writeU16(0) // min version
	writeU16(0) // writer version
	out = append(out, flags)

	if useCommon {
		writeU32(denom)
		writeU32(gm.BaseHdrHeadroom.N)
		writeU32(gm.AlternateHdrHeadroom.N)
		for c := 0; c < channelCount; c++ {
			writeS32(gm.GainMapMin[c].N)
			writeS32(gm.GainMapMax[c].N)
			writeU32(gm.Gamma[c].N)
			writeS32(gm.BaseOffset[c].N)
			writeS32(gm.AlternateOffset[c].N)
		}
		return out, nil
	}

	writeU32(gm.BaseHdrHeadroom.N)
	writeU32(gm.BaseHdrHeadroom.D)
	writeU32(gm.AlternateHdrHeadroom.N)
	writeU32(gm.AlternateHdrHeadroom.D)
	for c := 0; c < channelCount; c++ {
		writeS32(gm.GainMapMin[c].N)
		writeU32(gm.GainMapMin[c].D)
		writeS32(gm.GainMapMax[c].N)
		writeU32(gm.GainMapMax[c].D)
		writeU32(gm.Gamma[c].N)
		writeU32(gm.Gamma[c].D)
		writeS32(gm.BaseOffset[c].N)
		writeU32(gm.BaseOffset[c].D)
		writeS32(gm.AlternateOffset[c].N)
		writeU32(gm.AlternateOffset[c].D)
	}
	return out, nil
}

// DecodeMetadata parses a field set produced by EncodeMetadata and fills
// gm's metadata. Pixel data and alternate colorimetry are untouched.
func (gm *GainMap) DecodeMetadata(data []byte) error {
	pos := 0
	readU16 := func() (uint16, error) {
		if pos+2 > len(data) {
			return 0, fmt.Errorf("%w: gain map metadata truncated", ErrInvalidArgument)
		}
		v := binary.BigEndian.Uint16(data[pos:])
		pos += 2
		return v, nil
	}
	readU32 := func() (uint32, error) {
		if pos+4 > len(data) {
			return 0, fmt.Errorf("%w: gain map metadata truncated", ErrInvalidArgument)
		}
		v := binary.BigEndian.Uint32(data[pos:])
		pos += 4
		return v, nil
	}
	readS32 := func() (int32, error) {
		v, err := readU32()
		return int32(v), err
	}

	minVer, err := readU16()
	if err != nil {
		return err
	}
	if minVer != 0 {
		return fmt.Errorf("%w: gain map metadata version %d", ErrNotImplemented, minVer)
	}
	if _, err = readU16(); err != nil {
		return err
	}

	if pos >= len(data) {
		return fmt.Errorf("%w: gain map metadata truncated", ErrInvalidArgument)
	}
	flags := data[pos]
	pos++

	channelCount := 1
	if flags&metadataIsMultiChannelMask != 0 {
		channelCount = 3
	}
	gm.UseBaseColorSpace = flags&metadataUseBaseColorMask != 0
	if flags&metadataBackwardDirectionBit != 0 {
		return fmt.Errorf("%w: backward-direction gain map", ErrNotImplemented)
	}
	useCommon := flags&metadataCommonDenominatorBit != 0

	if useCommon {
		denom, err := readU32()
		if err != nil {
			return err
		}
		if denom == 0 {
			return fmt.Errorf("%w: zero common denominator", ErrInvalidArgument)
		}
		if gm.BaseHdrHeadroom.N, err = readU32(); err != nil {
			return err
		}
		gm.BaseHdrHeadroom.D = denom
		if gm.AlternateHdrHeadroom.N, err = readU32(); err != nil {
			return err
		}
		gm.AlternateHdrHeadroom.D = denom
		for c := 0; c < channelCount; c++ {
			if gm.GainMapMin[c].N, err = readS32(); err != nil {
				return err
			}
			gm.GainMapMin[c].D = denom
			if gm.GainMapMax[c].N, err = readS32(); err != nil {
				return err
			}
			gm.GainMapMax[c].D = denom
			if gm.Gamma[c].N, err = readU32(); err != nil {
				return err
			}
			gm.Gamma[c].D = denom
			if gm.BaseOffset[c].N, err = readS32(); err != nil {
				return err
			}
			gm.BaseOffset[c].D = denom
			if gm.AlternateOffset[c].N, err = readS32(); err != nil {
				return err
			}
			gm.AlternateOffset[c].D = denom
		}
	} else {
		if gm.BaseHdrHeadroom.N, err = readU32(); err != nil {
			return err
		}
		if gm.BaseHdrHeadroom.D, err = readU32(); err != nil {
			return err
		}
		if gm.AlternateHdrHeadroom.N, err = readU32(); err != nil {
			return err
		}
		if gm.AlternateHdrHeadroom.D, err = readU32(); err != nil {
			return err
		}
		for c := 0; c < channelCount; c++ {
			if gm.GainMapMin[c].N, err = readS32(); err != nil {
				return err
			}
			if gm.GainMapMin[c].D, err = readU32(); err != nil {
				return err
			}
			if gm.GainMapMax[c].N, err = readS32(); err != nil {
				return err
			}
			if gm.GainMapMax[c].D, err = readU32(); err != nil {
				return err
			}
			if gm.Gamma[c].N, err = readU32(); err != nil {
				return err
			}
			if gm.Gamma[c].D, err = readU32(); err != nil {
				return err
			}
			if gm.BaseOffset[c].N, err = readS32(); err != nil {
				return err
			}
			if gm.BaseOffset[c].D, err = readU32(); err != nil {
				return err
			}
			if gm.AlternateOffset[c].N, err = readS32(); err != nil {
				return err
			}
			if gm.AlternateOffset[c].D, err = readU32(); err != nil {
				return err
			}
		}
	}

	if channelCount == 1 {
		for c := 1; c < 3; c++ {
			gm.GainMapMin[c] = gm.GainMapMin[0]
			gm.GainMapMax[c] = gm.GainMapMax[0]
			gm.Gamma[c] = gm.Gamma[0]
			gm.BaseOffset[c] = gm.BaseOffset[0]
			gm.AlternateOffset[c] = gm.AlternateOffset[0]
		}
	}
	return gm.validate()
}
