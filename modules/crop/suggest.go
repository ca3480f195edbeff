package crop

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
)

// resizer - smartcrop.Resizer backed by imaging
type resizer struct {
	filter imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}

// Suggest - content-aware crop for the aspect, as a percent region of src
func Suggest(ctx context.Context, src image.Image, aspect Aspect) (Region, error) {
	bounds := src.Bounds()
	if bounds.Empty() {
		return Region{}, ErrInvalidSize
	}

	w, h := bounds.Dx(), bounds.Dy()
	if ratio, ok := aspect.Ratio(); ok {
		// smartcrop only needs the proportions
		w, h = int(ratio*1000), 1000
	}

	analyzer := smartcrop.NewAnalyzer(&resizer{filter: imaging.Linear})

	type cropResult struct {
		crop image.Rectangle
		err  error
	}
	resultChan := make(chan cropResult, 1)

	go func() {
		best, err := analyzer.FindBestCrop(src, w, h)
		resultChan <- cropResult{crop: best, err: err}
	}()

	select {
	case <-ctx.Done():
		return Region{}, ctx.Err()
	case result := <-resultChan:
		if result.err != nil {
			return Region{}, fmt.Errorf("finding best crop: %w", result.err)
		}
		best := result.crop.Sub(bounds.Min).Intersect(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		if best.Empty() {
			return Region{}, ErrEmptyCrop
		}
		return Region{
			Unit:   UnitPercent,
			X:      float64(best.Min.X) / float64(bounds.Dx()) * 100,
			Y:      float64(best.Min.Y) / float64(bounds.Dy()) * 100,
			Width:  float64(best.Dx()) / float64(bounds.Dx()) * 100,
			Height: float64(best.Dy()) / float64(bounds.Dy()) * 100,
		}, nil
	}
}
