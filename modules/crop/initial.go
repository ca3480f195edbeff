package crop

// initialCoverage - share of the limiting dimension the first crop covers
const initialCoverage = 0.9

// InitialCrop - centered percent region covering 90% of the limiting dimension.
// With AspectFree the display's own ratio is used. Recomputed from scratch on every
// aspect change, so manual adjustments are not preserved.
func InitialCrop(display Size, aspect Aspect) (Region, error) {
	if !display.valid() {
		return Region{}, ErrInvalidSize
	}

	ratio, constrained := aspect.Ratio()
	if !constrained {
		ratio = display.Width / display.Height
	}

	w := display.Width * initialCoverage
	h := w / ratio
	if h > display.Height*initialCoverage {
		h = display.Height * initialCoverage
		w = h * ratio
	}

	wPct := w / display.Width * 100
	hPct := h / display.Height * 100
	return Region{
		Unit:   UnitPercent,
		X:      (100 - wPct) / 2,
		Y:      (100 - hPct) / 2,
		Width:  wPct,
		Height: hPct,
	}, nil
}
