package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/vearutop/avifgain"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "combine":
		if err := runCombine(os.Args[2:]); err != nil {
			fail(err)
		}
	case "swapbase":
		if err := runSwapBase(os.Args[2:]); err != nil {
			fail(err)
		}
	case "tonemap":
		if err := runToneMap(os.Args[2:]); err != nil {
			fail(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gainmaputil <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  combine  -base base.png -alternate alt.png -out-gainmap gm.png -out-meta meta.bin")
	fmt.Fprintln(os.Stderr, "           [-downscaling 1] [-depth-gain-map 8] [-yuv-gain-map 444] [-max-headroom 4.0]")
	fmt.Fprintln(os.Stderr, "           [-cicp-base P/T/M] [-cicp-alternate P/T/M]")
	fmt.Fprintln(os.Stderr, "  swapbase -base base.png -gainmap gm.png -meta meta.bin -out out.png -out-meta meta2.bin")
	fmt.Fprintln(os.Stderr, "           [-cicp P/T/M] [-alt-cicp P/T/M] [-depth 0]")
	fmt.Fprintln(os.Stderr, "  tonemap  -base base.png -gainmap gm.png -meta meta.bin -headroom 0.0 -out out.png")
}

func runCombine(args []string) error {
	fs := flag.NewFlagSet("combine", flag.ContinueOnError)
	basePath := fs.String("base", "", "base image PNG, shown by viewers without gain map support")
	altPath := fs.String("alternate", "", "alternate image PNG, the result of fully applying the gain map")
	gmOut := fs.String("out-gainmap", "", "output gain map PNG")
	metaOut := fs.String("out-meta", "", "output gain map metadata")
	downscaling := fs.Int("downscaling", 1, "downscaling factor for the gain map")
	gmDepth := fs.Int("depth-gain-map", 8, "output depth for the gain map (8, 10, 12)")
	gmFormat := fs.String("yuv-gain-map", "444", "output format for the gain map (444, 422, 420, 400)")
	maxHeadroom := fs.Float64("max-headroom", 4.0, "cap for the computed headrooms in stops, 0 for none")
	baseCICP := fs.String("cicp-base", "", "override base CICP as P/T/M")
	altCICP := fs.String("cicp-alternate", "", "override alternate CICP as P/T/M")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *altPath == "" || *gmOut == "" || *metaOut == "" {
		return errors.New("missing required arguments")
	}

	base, err := readImage(*basePath)
	if err != nil {
		return err
	}
	alternate, err := readImage(*altPath)
	if err != nil {
		return err
	}

	format, err := parsePixelFormat(*gmFormat)
	if err != nil {
		return err
	}
	opts := avifgain.CombineOptions{
		Downscaling:   *downscaling,
		GainMapDepth:  *gmDepth,
		GainMapFormat: format,
		MaxHeadroom:   *maxHeadroom,
	}
	if opts.BaseCICP, err = parseCICP(*baseCICP); err != nil {
		return err
	}
	if opts.AlternateCICP, err = parseCICP(*altCICP); err != nil {
		return err
	}

	if err := avifgain.Combine(base, alternate, opts); err != nil {
		return err
	}
	gm := base.GainMap
	fmt.Fprintf(os.Stdout, "created a gain map of size %d x %d\n", gm.Image.Width, gm.Image.Height)

	if err := writeImage(gm.Image, *gmOut); err != nil {
		return err
	}
	meta, err := gm.EncodeMetadata()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*metaOut), meta, 0o644)
}

func runSwapBase(args []string) error {
	fs := flag.NewFlagSet("swapbase", flag.ContinueOnError)
	basePath := fs.String("base", "", "base image PNG")
	gmPath := fs.String("gainmap", "", "gain map PNG")
	metaPath := fs.String("meta", "", "gain map metadata")
	outPath := fs.String("out", "", "swapped base output PNG")
	metaOut := fs.String("out-meta", "", "swapped metadata output")
	depth := fs.Int("depth", 0, "output depth, 0 to keep the base depth")
	cicp := fs.String("cicp", "", "override base CICP as P/T/M")
	altCICP := fs.String("alt-cicp", "", "override alternate CICP as P/T/M")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *gmPath == "" || *metaPath == "" || *outPath == "" || *metaOut == "" {
		return errors.New("missing required arguments")
	}

	base, _, err := readGainMappedImage(*basePath, *gmPath, *metaPath, *cicp, *altCICP)
	if err != nil {
		return err
	}
	outDepth := *depth
	if outDepth == 0 {
		outDepth = base.Depth
	}

	swapped, err := avifgain.ChangeBase(base, outDepth, base.Format)
	if err != nil {
		return err
	}
	if err := writeImage(swapped, *outPath); err != nil {
		return err
	}
	meta, err := swapped.GainMap.EncodeMetadata()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*metaOut), meta, 0o644)
}

func runToneMap(args []string) error {
	fs := flag.NewFlagSet("tonemap", flag.ContinueOnError)
	basePath := fs.String("base", "", "base image PNG")
	gmPath := fs.String("gainmap", "", "gain map PNG")
	metaPath := fs.String("meta", "", "gain map metadata")
	headroom := fs.Float64("headroom", 0, "display headroom in stops, 0 for SDR")
	outPath := fs.String("out", "", "tone mapped output PNG")
	cicp := fs.String("cicp", "", "override base CICP as P/T/M")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *gmPath == "" || *metaPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}

	base, gm, err := readGainMappedImage(*basePath, *gmPath, *metaPath, *cicp, "")
	if err != nil {
		return err
	}

	outTransfer := avifgain.TransferSRGB
	if *headroom > 0 {
		outTransfer = avifgain.TransferPQ
	}
	dst, err := avifgain.NewRGBImage(base.Width, base.Height, base.Depth, avifgain.FormatRGB)
	if err != nil {
		return err
	}
	var clli avifgain.ContentLightLevel
	if err := avifgain.ApplyGainMap(base, gm, *headroom, base.ColorPrimaries, outTransfer, dst, &clli); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "maxCLL %d maxPALL %d\n", clli.MaxCLL, clli.MaxPALL)
	return writePNG(dst, *outPath)
}

func readGainMappedImage(basePath, gmPath, metaPath, cicp, altCICP string) (*avifgain.Image, *avifgain.GainMap, error) {
	base, err := readImage(basePath)
	if err != nil {
		return nil, nil, err
	}
	gmImage, err := readImage(gmPath)
	if err != nil {
		return nil, nil, err
	}
	meta, err := os.ReadFile(filepath.Clean(metaPath))
	if err != nil {
		return nil, nil, err
	}
	gm := avifgain.NewGainMap()
	gm.Image = gmImage
	if err := gm.DecodeMetadata(meta); err != nil {
		return nil, nil, err
	}
	if cicp != "" {
		c, err := parseCICP(cicp)
		if err != nil {
			return nil, nil, err
		}
		base.ColorPrimaries = c.Primaries
		base.TransferCharacteristics = c.Transfer
		base.MatrixCoefficients = c.Matrix
	}
	if altCICP != "" {
		c, err := parseCICP(altCICP)
		if err != nil {
			return nil, nil, err
		}
		gm.AltColorPrimaries = c.Primaries
		gm.AltTransferCharacteristics = c.Transfer
		gm.AltMatrixCoefficients = c.Matrix
	}
	base.GainMap = gm
	return base, gm, nil
}

func parseCICP(s string) (*avifgain.CICP, error) {
	if s == "" {
		return nil, nil
	}
	var p, t, m int
	if _, err := fmt.Sscanf(s, "%d/%d/%d", &p, &t, &m); err != nil {
		return nil, fmt.Errorf("invalid CICP %q, expected P/T/M: %v", s, err)
	}
	return &avifgain.CICP{
		Primaries: avifgain.ColorPrimaries(p),
		Transfer:  avifgain.TransferCharacteristics(t),
		Matrix:    avifgain.MatrixCoefficients(m),
	}, nil
}

func parsePixelFormat(s string) (avifgain.PixelFormat, error) {
	switch s {
	case "444":
		return avifgain.Format444, nil
	case "422":
		return avifgain.Format422, nil
	case "420":
		return avifgain.Format420, nil
	case "400":
		return avifgain.Format400, nil
	}
	return avifgain.FormatNone, fmt.Errorf("invalid pixel format %q", s)
}

// readImage decodes a PNG into a full-range 4:4:4 image (4:0:0 for
// grayscale sources), 16-bit PNGs keep their depth.
func readImage(path string) (*avifgain.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	depth := 8
	rgbFormat := avifgain.FormatRGBA
	yuvFormat := avifgain.Format444
	switch src.(type) {
	case *image.NRGBA64, *image.RGBA64:
		depth = 16
	case *image.Gray:
		rgbFormat = avifgain.FormatGray
		yuvFormat = avifgain.Format400
	case *image.Gray16:
		depth = 16
		rgbFormat = avifgain.FormatGray
		yuvFormat = avifgain.Format400
	}

	rgb, err := avifgain.NewRGBImage(w, h, depth, rgbFormat)
	if err != nil {
		return nil, err
	}
	shift := 16 - depth
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA64Model.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA64)
			i := rgb.PixelIndex(x, y)
			if rgbFormat == avifgain.FormatGray {
				rgb.Pix[i] = c.R >> shift
				continue
			}
			rgb.Pix[i] = c.R >> shift
			rgb.Pix[i+1] = c.G >> shift
			rgb.Pix[i+2] = c.B >> shift
			rgb.Pix[i+3] = c.A >> shift
		}
	}

	img, err := avifgain.NewImage(w, h, depth, yuvFormat)
	if err != nil {
		return nil, err
	}
	if err := img.FromRGB(rgb); err != nil {
		return nil, err
	}
	return img, nil
}

func writeImage(img *avifgain.Image, path string) error {
	format := avifgain.FormatRGBA
	if img.Format.Monochrome() {
		format = avifgain.FormatGray
	}
	rgb, err := avifgain.NewRGBImage(img.Width, img.Height, img.Depth, format)
	if err != nil {
		return err
	}
	if err := img.ToRGB(rgb); err != nil {
		return err
	}
	return writePNG(rgb, path)
}

func writePNG(rgb *avifgain.RGBImage, path string) error {
	srcMax := uint32(rgb.MaxChannel())
	to16 := func(v uint16) uint16 { return uint16(uint32(v) * 65535 / srcMax) }
	var dst image.Image
	if rgb.Format == avifgain.FormatGray {
		out := image.NewGray16(image.Rect(0, 0, rgb.Width, rgb.Height))
		for y := 0; y < rgb.Height; y++ {
			for x := 0; x < rgb.Width; x++ {
				out.SetGray16(x, y, color.Gray16{Y: to16(rgb.Pix[rgb.PixelIndex(x, y)])})
			}
		}
		dst = out
	} else {
		ro, g, b, a := rgb.Format.ChannelOffsets()
		out := image.NewNRGBA64(image.Rect(0, 0, rgb.Width, rgb.Height))
		for y := 0; y < rgb.Height; y++ {
			for x := 0; x < rgb.Width; x++ {
				i := rgb.PixelIndex(x, y)
				alpha := uint16(0xffff)
				if a >= 0 {
					alpha = to16(rgb.Pix[i+a])
				}
				out.SetNRGBA64(x, y, color.NRGBA64{
					R: to16(rgb.Pix[i+ro]),
					G: to16(rgb.Pix[i+g]),
					B: to16(rgb.Pix[i+b]),
					A: alpha,
				})
			}
		}
		dst = out
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(f, dst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
