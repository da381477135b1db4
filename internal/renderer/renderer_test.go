package renderer

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/pdf2png/internal/canvas"
	"github.com/ivlev/pdf2png/internal/pdflib"
	"github.com/ivlev/pdf2png/internal/pdflib/pdflibtest"
	"github.com/ivlev/pdf2png/internal/planner"
)

type urls struct{}

func (urls) CreateObjectURL(*canvas.Blob) (string, error) { return "blob:x", nil }
func (urls) RevokeObjectURL(string)                       {}

// contextless mimics a host whose surfaces cannot hand out a 2D context.
type contextless struct{ canvas.NativeSurfaces }

func (c contextless) NewSurface(w, h int) (canvas.Surface, error) {
	s, err := c.NativeSurfaces.NewSurface(w, h)
	if err != nil {
		return nil, err
	}
	return noContext{s}, nil
}

type noContext struct{ canvas.Surface }

func (noContext) Context2D() (*canvas.Context2D, error) { return nil, canvas.ErrNoContext }

func firstPage(t *testing.T, lib *pdflibtest.Library) pdflib.Page {
	t.Helper()
	doc, err := lib.Open(context.Background(), pdflibtest.MinimalPDF(612, 792))
	require.NoError(t, err)
	t.Cleanup(func() { doc.Close() })
	page, err := pdflib.FirstPage(doc)
	require.NoError(t, err)
	return page
}

func TestRender(t *testing.T) {
	env := canvas.Native(urls{})
	page := firstPage(t, pdflibtest.NewLibrary(612, 792))
	plan, err := planner.Compute(612, 792, planner.DefaultScale)
	require.NoError(t, err)

	surface, err := Render(context.Background(), env, page, plan)
	require.NoError(t, err)
	defer surface.Release()

	assert.Equal(t, plan.Width, surface.Width())
	assert.Equal(t, plan.Height, surface.Height())

	top := color.RGBAModel.Convert(surface.Image().At(10, 10)).(color.RGBA)
	bottom := color.RGBAModel.Convert(surface.Image().At(10, plan.Height-10)).(color.RGBA)
	assert.Equal(t, color.RGBA{A: 0xff}, top)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, bottom)
}

func TestRenderNoContext(t *testing.T) {
	env := canvas.Native(urls{})
	env.Surfaces = contextless{}
	page := firstPage(t, pdflibtest.NewLibrary(612, 792))

	_, err := Render(context.Background(), env, page, planner.Plan{Scale: 1, Width: 612, Height: 792})
	assert.ErrorIs(t, err, canvas.ErrNoContext)
}

func TestRenderCallFailure(t *testing.T) {
	env := canvas.Native(urls{})
	lib := pdflibtest.NewLibrary(612, 792)
	lib.RenderErr = errors.New("unsupported shading type 7")
	page := firstPage(t, lib)

	_, err := Render(context.Background(), env, page, planner.Plan{Scale: 1, Width: 612, Height: 792})
	require.Error(t, err)
	assert.NotErrorIs(t, err, canvas.ErrNoContext)
	assert.Contains(t, err.Error(), "unsupported shading type 7")
	assert.Contains(t, err.Error(), "page 1")
}
