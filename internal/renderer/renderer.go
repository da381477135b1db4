package renderer

import (
	"context"
	"fmt"

	"github.com/ivlev/pdf2png/internal/canvas"
	"github.com/ivlev/pdf2png/internal/pdflib"
	"github.com/ivlev/pdf2png/internal/planner"
)

// Render rasterizes page onto a new surface sized exactly to plan. On
// success the caller owns the surface and must Release it.
//
// A missing drawing context is reported as canvas.ErrNoContext; failures of
// the render call itself are wrapped with the page number.
func Render(ctx context.Context, env *canvas.Environment, page pdflib.Page, plan planner.Plan) (canvas.Surface, error) {
	surface, err := env.Surfaces.NewSurface(plan.Width, plan.Height)
	if err != nil {
		return nil, fmt.Errorf("allocate %dx%d surface: %w", plan.Width, plan.Height, err)
	}

	dc, err := surface.Context2D()
	if err != nil {
		surface.Release()
		return nil, err
	}
	dc.ImageSmoothingEnabled = true
	dc.ImageSmoothingQuality = canvas.SmoothingHigh

	if err := page.Render(ctx, dc, plan.Scale); err != nil {
		surface.Release()
		return nil, fmt.Errorf("render page %d at %s: %w", page.Index()+1, plan, err)
	}
	return surface, nil
}
