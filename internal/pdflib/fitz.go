package pdflib

import (
	"context"
	"fmt"
	"image"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/pdf2png/internal/canvas"
)

const fitzModule = "github.com/gen2brain/go-fitz"

// fitzLibrary renders through MuPDF. MuPDF rasterizes in-process, so the
// library is its own worker.
type fitzLibrary struct {
	info Info
}

func openFitz(_ context.Context, opts Options) (Library, error) {
	version := moduleVersion(fitzModule)
	if opts.WorkerVersion != "" && opts.WorkerVersion != version {
		return nil, fmt.Errorf("%w: want %s, have %s", ErrVersionSkew, opts.WorkerVersion, version)
	}
	return &fitzLibrary{info: Info{
		Backend:       BackendFitz,
		Version:       version,
		WorkerSource:  "in-process",
		WorkerVersion: version,
	}}, nil
}

func (f *fitzLibrary) Info() Info {
	return f.info
}

func (f *fitzLibrary) Open(_ context.Context, data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("mupdf: open document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

func (f *fitzLibrary) Close() error {
	return nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) Page(index int) (Page, error) {
	if err := checkRange(index, d.NumPages()); err != nil {
		return nil, err
	}
	rect, err := d.doc.Bound(index)
	if err != nil {
		return nil, fmt.Errorf("mupdf: page %d bounds: %w", index, err)
	}
	width, height := d.exactSize(index, rect)
	return &fitzPage{
		doc:    d.doc,
		index:  index,
		width:  width,
		height: height,
	}, nil
}

// Bound truncates the page box to whole points. The SVG writer prints the
// box as floats, so the fractional size is read from its header and checked
// against the integer bounds.
func (d *fitzDocument) exactSize(index int, rect image.Rectangle) (float64, float64) {
	width, height := float64(rect.Dx()), float64(rect.Dy())
	svg, err := d.doc.SVG(index)
	if err != nil {
		return width, height
	}
	w, h, ok := svgSize(svg)
	if !ok || math.Abs(w-width) > 2 || math.Abs(h-height) > 2 {
		return width, height
	}
	return w, h
}

var (
	svgViewBox = regexp.MustCompile(`viewBox="\s*[-+0-9.eE]+[\s,]+[-+0-9.eE]+[\s,]+([0-9.eE+]+)[\s,]+([0-9.eE+]+)\s*"`)
	svgWidth   = regexp.MustCompile(`\swidth="([0-9.eE+]+)(?:pt)?"`)
	svgHeight  = regexp.MustCompile(`\sheight="([0-9.eE+]+)(?:pt)?"`)
)

// svgSize extracts the page size in points from the root <svg> element.
func svgSize(svg string) (float64, float64, bool) {
	head := svg
	if root := strings.Index(svg, "<svg"); root >= 0 {
		if n := strings.IndexByte(svg[root:], '>'); n >= 0 {
			head = svg[root : root+n+1]
		}
	}

	if m := svgViewBox.FindStringSubmatch(head); m != nil {
		if w, h, ok := parseSize(m[1], m[2]); ok {
			return w, h, true
		}
	}
	mw, mh := svgWidth.FindStringSubmatch(head), svgHeight.FindStringSubmatch(head)
	if mw == nil || mh == nil {
		return 0, 0, false
	}
	return parseSize(mw[1], mh[1])
}

func parseSize(ws, hs string) (float64, float64, bool) {
	w, err := strconv.ParseFloat(ws, 64)
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.ParseFloat(hs, 64)
	if err != nil {
		return 0, 0, false
	}
	if w <= 0 || h <= 0 || math.IsInf(w, 0) || math.IsInf(h, 0) || math.IsNaN(w) || math.IsNaN(h) {
		return 0, 0, false
	}
	return w, h, true
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}

type fitzPage struct {
	doc           *fitz.Document
	index         int
	width, height float64
}

func (p *fitzPage) Index() int { return p.index }

func (p *fitzPage) Size() (float64, float64) {
	return p.width, p.height
}

// Render rasterizes at 72*scale DPI. MuPDF rounds the raster size on its
// own, so the result is resampled onto the planned surface if it is off by
// a pixel.
func (p *fitzPage) Render(ctx context.Context, dc *canvas.Context2D, scale float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := p.doc.ImageDPI(p.index, 72*scale)
	if err != nil {
		return fmt.Errorf("mupdf: render page %d: %w", p.index, err)
	}
	dc.DrawImage(img, dc.Bounds())
	return nil
}
