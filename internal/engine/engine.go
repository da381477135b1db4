// Package engine converts the first page of a PDF into a PNG image.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ivlev/pdf2png/internal/canvas"
	"github.com/ivlev/pdf2png/internal/pdflib"
	"github.com/ivlev/pdf2png/internal/planner"
	"github.com/ivlev/pdf2png/internal/renderer"
	"github.com/ivlev/pdf2png/internal/serializer"
)

// Acquirer hands out the loaded PDF library. *pdflib.Loader implements it.
type Acquirer interface {
	Acquire(ctx context.Context) (pdflib.Library, error)
}

// Converter runs conversions against one environment and one library
// loader. It holds no per-conversion state and is safe for concurrent use.
type Converter struct {
	env       *canvas.Environment
	loader    Acquirer
	baseScale float64
	budget    planner.Budget
	maxWidth  int
	logger    *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithBaseScale sets the scale tried before the pixel budget applies.
func WithBaseScale(scale float64) Option {
	return func(c *Converter) { c.baseScale = scale }
}

// WithBudget replaces the default pixel budget.
func WithBudget(b planner.Budget) Option {
	return func(c *Converter) { c.budget = b }
}

// WithMaxWidth downscales images wider than width. Zero disables it.
func WithMaxWidth(width int) Option {
	return func(c *Converter) { c.maxWidth = width }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// New returns a Converter. A nil environment fails every conversion with
// EnvironmentUnsupported.
func New(loader Acquirer, env *canvas.Environment, opts ...Option) *Converter {
	c := &Converter{
		env:       env,
		loader:    loader,
		baseScale: planner.DefaultScale,
		budget:    planner.DefaultBudget(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert renders the first page of req.Data. It never panics and never
// returns an error: every failure is reported as a Failure result naming
// the stage that failed.
func (c *Converter) Convert(ctx context.Context, req Request) Result {
	start := time.Now()
	log := c.logger.With("name", req.Name, "bytes", len(req.Data))

	success, err := c.convert(ctx, req)
	if err != nil {
		log.Warn("conversion failed", "kind", err.Kind, "error", err.Err, "elapsed", time.Since(start))
		return failed(err)
	}
	log.Info("conversion done",
		"output", success.Name,
		"plan", success.Plan.String(),
		"png_bytes", success.Image.Len(),
		"fallback", success.Fallback,
		"elapsed", time.Since(start))
	return succeeded(success)
}

// Revoke releases a display URL returned by Convert.
func (c *Converter) Revoke(url string) {
	if c.env != nil && c.env.URLs != nil {
		c.env.URLs.RevokeObjectURL(url)
	}
}

func (c *Converter) convert(ctx context.Context, req Request) (*Success, *Error) {
	// Do not load the library until the environment is complete.
	if err := c.env.Check(); err != nil {
		return nil, newError(EnvironmentUnsupported, err)
	}

	lib, err := guard(func() (pdflib.Library, error) { return c.loader.Acquire(ctx) })
	if err != nil {
		return nil, newError(LibraryLoadFailure, err)
	}

	doc, err := guard(func() (pdflib.Document, error) { return lib.Open(ctx, req.Data) })
	if err != nil {
		return nil, newError(DocumentParseFailure, err)
	}
	defer c.closeDocument(doc)

	page, err := guard(func() (pdflib.Page, error) { return pdflib.FirstPage(doc) })
	if err != nil {
		return nil, newError(DocumentParseFailure, err)
	}

	plan, err := guard(func() (planner.Plan, error) {
		w, h := page.Size()
		return c.budget.Compute(w, h, c.baseScale)
	})
	if err != nil {
		return nil, newError(DocumentParseFailure, fmt.Errorf("page size: %w", err))
	}

	surface, err := guard(func() (canvas.Surface, error) { return renderer.Render(ctx, c.env, page, plan) })
	if err != nil {
		return nil, newError(RenderFailure, err)
	}
	surface, err = c.downscale(surface)
	if err != nil {
		return nil, newError(RenderFailure, err)
	}
	defer surface.Release()

	name := serializer.OutputName(req.Name)
	encoded, err := guard(func() (*serializer.Encoded, error) {
		return serializer.Serialize(ctx, c.env, surface, name)
	})
	if err != nil {
		return nil, newError(SerializationFailure, err)
	}

	url, err := guard(func() (string, error) { return c.env.URLs.CreateObjectURL(encoded.Blob) })
	if err != nil {
		return nil, newError(SerializationFailure, fmt.Errorf("display url: %w", err))
	}

	return &Success{
		Image:      encoded.Blob,
		Name:       encoded.Name,
		DisplayURL: url,
		Plan:       plan,
		Fallback:   encoded.Fallback,
	}, nil
}

// downscale shrinks surface to the configured maximum width, keeping the
// aspect ratio. The original surface is released when it is replaced.
func (c *Converter) downscale(surface canvas.Surface) (canvas.Surface, error) {
	if c.maxWidth <= 0 || surface.Width() <= c.maxWidth {
		return surface, nil
	}
	return guard(func() (canvas.Surface, error) {
		defer surface.Release()
		thumb := imaging.Resize(surface.Image(), c.maxWidth, 0, imaging.Lanczos)

		b := thumb.Bounds()
		out, err := c.env.Surfaces.NewSurface(b.Dx(), b.Dy())
		if err != nil {
			return nil, fmt.Errorf("allocate %dx%d thumbnail: %w", b.Dx(), b.Dy(), err)
		}
		dc, err := out.Context2D()
		if err != nil {
			out.Release()
			return nil, err
		}
		dc.DrawImage(thumb, dc.Bounds())
		return out, nil
	})
}

func (c *Converter) closeDocument(doc pdflib.Document) {
	_, err := guard(func() (struct{}, error) { return struct{}{}, doc.Close() })
	if err != nil {
		c.logger.Debug("close document", "error", err)
	}
}

// guard turns a panic inside fn into an error.
func guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, fmt.Errorf("panic: %v", r)
		}
	}()
	v, err = fn()
	if err == nil && any(v) == nil {
		err = errors.New("no result")
	}
	return v, err
}
