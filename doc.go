// Package avifgain implements the color-science core of a gain-map image
// codec: computing and applying per-pixel multiplicative HDR corrections
// (gain maps), swapping base/alternate renditions, and the bidirectional
// RGB/YUV conversion engine every encode and decode path depends on.
//
// The package operates on raw sample buffers and metadata structures only.
// Container parsing, bitstream coding and file I/O live elsewhere; codec
// backends are consumed through the PlaneCodec contract.
package avifgain
