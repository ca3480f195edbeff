package crop

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient - every pixel distinct enough to catch off-by-one crops
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8((x + y) * 3), A: 255})
		}
	}
	return img
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func assertSamePixels(t *testing.T, want, got image.Image, offset image.Point) {
	t.Helper()
	b := got.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			w := color.NRGBAModel.Convert(want.At(x-b.Min.X+offset.X, y-b.Min.Y+offset.Y))
			g := color.NRGBAModel.Convert(got.At(x, y))
			if !assert.Equal(t, w, g, "pixel (%d,%d)", x, y) {
				return
			}
		}
	}
}

func TestParseAspect(t *testing.T) {
	tests := []struct {
		in   string
		want Aspect
	}{
		{"", AspectSquare},
		{"1:1", AspectSquare},
		{"4:3", AspectStandard},
		{"16:9", AspectWide},
		{"Free", AspectFree},
		{"unconstrained", AspectFree},
	}
	for _, tt := range tests {
		got, err := ParseAspect(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseAspect("3:2")
	assert.ErrorIs(t, err, ErrUnknownAspect)
}

func TestRegionToPixels(t *testing.T) {
	r := Region{Unit: UnitPercent, X: 10, Y: 20, Width: 50, Height: 25}
	px := r.ToPixels(Size{Width: 200, Height: 400})
	assert.Equal(t, Region{Unit: UnitPixel, X: 20, Y: 80, Width: 100, Height: 100}, px)

	raw := Region{X: 1, Y: 2, Width: 3, Height: 4}
	assert.Equal(t, UnitPixel, raw.ToPixels(Size{Width: 10, Height: 10}).Unit)
	assert.False(t, Region{Width: 0, Height: 5}.Complete())
}

func TestInitialCropCentered(t *testing.T) {
	display := Size{Width: 400, Height: 300}

	t.Run("square on landscape is height limited", func(t *testing.T) {
		r, err := InitialCrop(display, AspectSquare)
		require.NoError(t, err)
		px := r.ToPixels(display)
		assert.InDelta(t, 270, px.Height, 1e-9)
		assert.InDelta(t, 270, px.Width, 1e-9)
		assert.InDelta(t, 65, px.X, 1e-9)
		assert.InDelta(t, 15, px.Y, 1e-9)
	})

	t.Run("wide on landscape is width limited", func(t *testing.T) {
		r, err := InitialCrop(display, AspectWide)
		require.NoError(t, err)
		px := r.ToPixels(display)
		assert.InDelta(t, 360, px.Width, 1e-9)
		assert.InDelta(t, 202.5, px.Height, 1e-9)
		assert.InDelta(t, px.X, display.Width-px.X-px.Width, 1e-9)
		assert.InDelta(t, px.Y, display.Height-px.Y-px.Height, 1e-9)
	})

	t.Run("free keeps the image ratio", func(t *testing.T) {
		r, err := InitialCrop(display, AspectFree)
		require.NoError(t, err)
		assert.InDelta(t, 90, r.Width, 1e-9)
		assert.InDelta(t, 90, r.Height, 1e-9)
		assert.InDelta(t, 5, r.X, 1e-9)
	})

	_, err := InitialCrop(Size{}, AspectSquare)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestRenderWholeImageRoundTrip(t *testing.T) {
	src := gradient(24, 16)
	region := Region{Unit: UnitPercent, X: 0, Y: 0, Width: 100, Height: 100}

	out, err := Render(src, Size{Width: 24, Height: 16}, region, 1, FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.Equal(t, 24, out.Width)
	assert.Equal(t, 16, out.Height)

	img := decodePNG(t, out.Data)
	assert.Equal(t, src.Bounds(), img.Bounds())
	assertSamePixels(t, src, img, image.Point{})
}

func TestRenderSubRegionFromScaledDisplay(t *testing.T) {
	src := gradient(40, 40)

	// Shown at half size; a 10x10 displayed crop at (5,5) is the native 20x20 at (10,10).
	display := Size{Width: 20, Height: 20}
	region := Region{Unit: UnitPixel, X: 5, Y: 5, Width: 10, Height: 10}

	img, err := Rasterize(src, display, region, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 20), img.Bounds())
	assertSamePixels(t, src, img, image.Pt(10, 10))
}

func TestRenderPixelRatioSizesOutput(t *testing.T) {
	src := gradient(100, 100)
	region := Region{Unit: UnitPixel, X: 10, Y: 10, Width: 30, Height: 20}

	tests := []struct {
		dpr   float64
		wantW int
		wantH int
	}{
		{1, 30, 20},
		{2, 60, 40},
		{1.5, 45, 30},
		{0, 30, 20},
		{-3, 30, 20},
	}
	for _, tt := range tests {
		img, err := Rasterize(src, Size{Width: 100, Height: 100}, region, tt.dpr)
		require.NoError(t, err)
		assert.Equal(t, tt.wantW, img.Bounds().Dx(), "dpr %v", tt.dpr)
		assert.Equal(t, tt.wantH, img.Bounds().Dy(), "dpr %v", tt.dpr)
	}
}

func TestRenderEmptyCrop(t *testing.T) {
	src := gradient(10, 10)
	display := Size{Width: 10, Height: 10}

	for _, region := range []Region{
		{Unit: UnitPixel, X: 1, Y: 1, Width: 0, Height: 5},
		{Unit: UnitPixel, X: 1, Y: 1, Width: 5, Height: 0},
		{Unit: UnitPercent, Width: -10, Height: 50},
	} {
		out, err := Render(src, display, region, 1, FormatPNG)
		assert.ErrorIs(t, err, ErrEmptyCrop)
		assert.Nil(t, out)
	}
}

func TestRenderRejectsRegionPastEdge(t *testing.T) {
	src := gradient(10, 10)
	display := Size{Width: 10, Height: 10}

	for _, region := range []Region{
		{Unit: UnitPixel, X: 5, Y: 0, Width: 10, Height: 10},
		{Unit: UnitPixel, X: 0, Y: 3, Width: 4, Height: 8},
		{Unit: UnitPixel, X: 50, Y: 50, Width: 5, Height: 5},
		{Unit: UnitPixel, X: -1, Y: 0, Width: 4, Height: 4},
		{Unit: UnitPercent, X: 10, Y: 0, Width: 95, Height: 50},
		{Unit: UnitPixel, Width: 100000, Height: 100000},
	} {
		img, err := Rasterize(src, display, region, 8)
		assert.ErrorIs(t, err, ErrOutOfBounds, "region %+v", region)
		assert.Nil(t, img)
	}
}

func TestRenderRejectsOversizedOutput(t *testing.T) {
	src := gradient(10, 10)
	display := Size{Width: 100000, Height: 100000}

	out, err := Render(src, display, Region{Unit: UnitPixel, Width: 100000, Height: 100000}, 8, FormatPNG)
	assert.ErrorIs(t, err, ErrCropTooLarge)
	assert.Nil(t, out)
}

func TestRegionWithinToleratesRounding(t *testing.T) {
	display := Size{Width: 333, Height: 217}
	for _, aspect := range []Aspect{AspectSquare, AspectStandard, AspectWide, AspectFree} {
		region, err := InitialCrop(display, aspect)
		require.NoError(t, err)
		assert.True(t, region.Within(display), "aspect %s", aspect)
	}
	assert.True(t, Region{Unit: UnitPercent, Width: 100, Height: 100}.Within(display))
	assert.False(t, Region{Unit: UnitPercent, X: 0.5, Width: 100, Height: 100}.Within(display))
}

func TestRenderDefaultsDisplayToNativeSize(t *testing.T) {
	src := gradient(12, 8)
	img, err := Rasterize(src, Size{}, Region{Unit: UnitPixel, Width: 12, Height: 8}, 1)
	require.NoError(t, err)
	assertSamePixels(t, src, img, image.Point{})
}

func TestSuggestMatchesAspect(t *testing.T) {
	src := gradient(200, 100)

	r, err := Suggest(context.Background(), src, AspectSquare)
	require.NoError(t, err)
	assert.True(t, r.Complete())
	assert.Equal(t, UnitPercent, r.Unit)

	px := r.ToPixels(Size{Width: 200, Height: 100})
	assert.InDelta(t, 1.0, px.Width/px.Height, 0.1)
	assert.GreaterOrEqual(t, px.X, 0.0)
	assert.LessOrEqual(t, px.X+px.Width, 200.0+1e-9)
	assert.LessOrEqual(t, px.Y+px.Height, 100.0+1e-9)
}

func TestSuggestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Suggest(ctx, gradient(400, 400), AspectWide)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
