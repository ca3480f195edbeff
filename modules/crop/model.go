package crop

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Aspect - aspect constraint offered by the crop tool
type Aspect string

const (
	AspectSquare   Aspect = "1:1"
	AspectStandard Aspect = "4:3"
	AspectWide     Aspect = "16:9"
	AspectFree     Aspect = "free"
)

var (
	ErrUnknownAspect = errors.New("unknown aspect ratio")
	ErrEmptyCrop     = errors.New("crop region has zero width or height")
	ErrInvalidSize   = errors.New("display size must be positive")
	ErrOutOfBounds   = errors.New("crop region extends past the image")
	ErrCropTooLarge  = errors.New("crop output exceeds the pixel limit")
)

// ParseAspect - empty means the page default (1:1); "unconstrained" is accepted as free
func ParseAspect(s string) (Aspect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1:1":
		return AspectSquare, nil
	case "4:3":
		return AspectStandard, nil
	case "16:9":
		return AspectWide, nil
	case "free", "unconstrained", "none":
		return AspectFree, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAspect, s)
}

// Ratio - width/height, false when unconstrained
func (a Aspect) Ratio() (float64, bool) {
	switch a {
	case AspectSquare:
		return 1, true
	case AspectStandard:
		return 4.0 / 3.0, true
	case AspectWide:
		return 16.0 / 9.0, true
	}
	return 0, false
}

// Unit - coordinate unit of a Region
type Unit string

const (
	UnitPercent Unit = "%"
	UnitPixel   Unit = "px"
)

// Size - pixel dimensions
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Size) valid() bool {
	return s.Width > 0 && s.Height > 0 && !math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// Region - crop rectangle in the displayed image's coordinate space
type Region struct {
	Unit   Unit    `json:"unit"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Complete - false while the region has no area; such a region cannot be committed
func (r Region) Complete() bool {
	return r.Width > 0 && r.Height > 0
}

// edgeTolerance - display pixels a region may overhang from float rounding
const edgeTolerance = 1e-3

// Within - region lies inside [0,display] on both axes
func (r Region) Within(display Size) bool {
	px := r.ToPixels(display)
	return px.X >= 0 && px.Y >= 0 &&
		px.X+px.Width <= display.Width+edgeTolerance &&
		px.Y+px.Height <= display.Height+edgeTolerance
}

// ToPixels - convert a percent region to displayed pixels; pixel regions pass through
func (r Region) ToPixels(display Size) Region {
	if r.Unit != UnitPercent {
		r.Unit = UnitPixel
		return r
	}
	return Region{
		Unit:   UnitPixel,
		X:      r.X * display.Width / 100,
		Y:      r.Y * display.Height / 100,
		Width:  r.Width * display.Width / 100,
		Height: r.Height * display.Height / 100,
	}
}
