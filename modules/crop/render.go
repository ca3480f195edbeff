package crop

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"fitting-room-server/modules/common/utils"
)

// Format - lossless output encoding of a rendered crop
type Format string

const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// MaxOutputPixels - largest canvas Render allocates
const MaxOutputPixels = 40_000_000

// Encoded - the artifact produced by Render
type Encoded struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Render - rasterize region (displayed coordinates) from src at native resolution.
// The output is round(w*dpr) x round(h*dpr); display falls back to the native size when zero.
// Regions outside the display are rejected with ErrOutOfBounds.
func Render(src image.Image, display Size, region Region, pixelRatio float64, format Format) (*Encoded, error) {
	img, err := Rasterize(src, display, region, pixelRatio)
	if err != nil {
		return nil, err
	}

	var (
		data     []byte
		mimeType string
	)
	switch format {
	case FormatWebP:
		data, err = utils.EncodeLosslessWebP(img)
		mimeType = utils.MIMEWebP
	default:
		data, err = utils.EncodePNG(img)
		mimeType = utils.MIMEPNG
	}
	if err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}

	b := img.Bounds()
	return &Encoded{Data: data, MIMEType: mimeType, Width: b.Dx(), Height: b.Dy()}, nil
}

// Rasterize - the pixel half of Render, without encoding
func Rasterize(src image.Image, display Size, region Region, pixelRatio float64) (*image.NRGBA, error) {
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, ErrInvalidSize
	}
	if display.Width <= 0 || display.Height <= 0 {
		display = Size{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}
	}
	if !display.valid() {
		return nil, ErrInvalidSize
	}

	px := region.ToPixels(display)
	if !px.Complete() {
		return nil, ErrEmptyCrop
	}
	if !region.Within(display) {
		return nil, ErrOutOfBounds
	}
	if pixelRatio <= 0 || math.IsNaN(pixelRatio) || math.IsInf(pixelRatio, 0) {
		pixelRatio = 1
	}

	scaleX := float64(bounds.Dx()) / display.Width
	scaleY := float64(bounds.Dy()) / display.Height

	rect := image.Rect(
		int(math.Round(px.X*scaleX)),
		int(math.Round(px.Y*scaleY)),
		int(math.Round((px.X+px.Width)*scaleX)),
		int(math.Round((px.Y+px.Height)*scaleY)),
	).Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}

	fw := math.Round(px.Width * pixelRatio)
	fh := math.Round(px.Height * pixelRatio)
	if fw <= 0 || fh <= 0 {
		return nil, ErrEmptyCrop
	}
	if fw*fh > MaxOutputPixels {
		return nil, fmt.Errorf("%w: %.0fx%.0f", ErrCropTooLarge, fw, fh)
	}
	outW, outH := int(fw), int(fh)

	cropped := imaging.Crop(src, rect)
	return imaging.Resize(cropped, outW, outH, imaging.CatmullRom), nil
}
