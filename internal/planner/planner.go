package planner

import (
	"fmt"
	"math"
)

const (
	// PixelBudget is the largest width*height a render surface should have.
	PixelBudget = 4_000_000
	// MinScale is the floor the planner never goes below, even when the
	// budget is still exceeded at that scale.
	MinScale = 0.5
	// DefaultScale oversamples the page relative to its nominal size in points.
	DefaultScale = 2.0
)

// Plan describes the surface a page will be rasterized onto.
type Plan struct {
	Scale  float64
	Width  int
	Height int
}

// Pixels returns the total pixel count of the plan.
func (p Plan) Pixels() int {
	return p.Width * p.Height
}

func (p Plan) String() string {
	return fmt.Sprintf("%dx%d@%.3f", p.Width, p.Height, p.Scale)
}

// Budget bounds the size of a rendered surface.
type Budget struct {
	Pixels   int
	MinScale float64
}

// DefaultBudget returns the 4 MP budget with the 0.5 scale floor.
func DefaultBudget() Budget {
	return Budget{Pixels: PixelBudget, MinScale: MinScale}
}

// Compute plans a render of a page whose natural viewport is width x height
// at the default budget.
func Compute(width, height, baseScale float64) (Plan, error) {
	return DefaultBudget().Compute(width, height, baseScale)
}

// Compute returns the plan for rendering a width x height viewport at
// baseScale, shrinking the scale so the surface stays within the pixel
// budget. The scale never drops below b.MinScale.
func (b Budget) Compute(width, height, baseScale float64) (Plan, error) {
	if !finite(width) || !finite(height) || width <= 0 || height <= 0 {
		return Plan{}, fmt.Errorf("invalid viewport %.2fx%.2f", width, height)
	}
	if !finite(baseScale) {
		return Plan{}, fmt.Errorf("invalid base scale %v", baseScale)
	}
	if baseScale <= 0 {
		baseScale = DefaultScale
	}

	scale := baseScale
	w, h := dims(width, height, scale)
	pixels := float64(w) * float64(h)

	if b.Pixels > 0 && pixels > float64(b.Pixels) {
		factor := math.Sqrt(float64(b.Pixels) / pixels)
		scale = math.Max(b.MinScale, baseScale*factor)
		w, h = dims(width, height, scale)
	}

	return Plan{Scale: scale, Width: w, Height: h}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// dims rounds up so the surface never truncates content.
func dims(width, height, scale float64) (int, int) {
	w := int(math.Ceil(width * scale))
	h := int(math.Ceil(height * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
