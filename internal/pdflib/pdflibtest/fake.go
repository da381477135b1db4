// Package pdflibtest provides test doubles for pdflib.
package pdflibtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/ivlev/pdf2png/internal/canvas"
	"github.com/ivlev/pdf2png/internal/pdflib"
)

// ErrNotPDF is returned by the fake for input without a %PDF- header.
var ErrNotPDF = errors.New("pdflibtest: not a pdf")

// Library is an in-memory pdflib.Library. Every document it opens has the
// configured pages regardless of content, as long as the bytes start with
// a PDF header.
type Library struct {
	Pages     [][2]float64
	RenderErr error

	opened atomic.Int32
	closed atomic.Int32
}

// NewLibrary returns a fake whose documents have one page of the given size.
func NewLibrary(width, height float64) *Library {
	return &Library{Pages: [][2]float64{{width, height}}}
}

// Opened reports how many documents were opened.
func (l *Library) Opened() int { return int(l.opened.Load()) }

// Closed reports how many documents were closed.
func (l *Library) Closed() int { return int(l.closed.Load()) }

func (l *Library) Info() pdflib.Info {
	return pdflib.Info{Backend: "fake", Version: "v0.0.0", WorkerSource: "in-process", WorkerVersion: "v0.0.0"}
}

func (l *Library) Open(_ context.Context, data []byte) (pdflib.Document, error) {
	if len(data) == 0 {
		return nil, pdflib.ErrEmptyDocument
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	l.opened.Add(1)
	return &document{lib: l}, nil
}

func (l *Library) Close() error { return nil }

type document struct {
	lib *Library
}

func (d *document) NumPages() int { return len(d.lib.Pages) }

func (d *document) Page(index int) (pdflib.Page, error) {
	if index < 0 || index >= len(d.lib.Pages) {
		return nil, fmt.Errorf("%w: %d", pdflib.ErrPageRange, index)
	}
	size := d.lib.Pages[index]
	return &page{lib: d.lib, index: index, width: size[0], height: size[1]}, nil
}

func (d *document) Close() error {
	d.lib.closed.Add(1)
	return nil
}

type page struct {
	lib           *Library
	index         int
	width, height float64
}

func (p *page) Index() int { return p.index }

func (p *page) Size() (float64, float64) { return p.width, p.height }

// Render paints a white page with a black bar across the top quarter.
func (p *page) Render(ctx context.Context, dc *canvas.Context2D, _ float64) error {
	if p.lib.RenderErr != nil {
		return p.lib.RenderErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b := dc.Bounds()
	dc.FillRect(b, color.White)
	dc.FillRect(image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+b.Dy()/4), color.Black)
	return nil
}
