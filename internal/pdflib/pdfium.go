package pdflib

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"

	"github.com/ivlev/pdf2png/internal/canvas"
)

const pdfiumModule = "github.com/klippa-app/go-pdfium"

var errDocumentClosed = errors.New("pdfium: document closed")

// pdfiumLibrary renders through PDFium compiled to WebAssembly. The wasm
// worker is embedded in the go-pdfium module itself, so library and worker
// always come from the same module version.
//
// Each open document holds one worker instance from the pool until it is
// closed, so Options.Workers bounds how many documents render at once.
type pdfiumLibrary struct {
	pool pdfium.Pool
	info Info
}

// instanceTimeout bounds the wait for a free worker.
const instanceTimeout = 30 * time.Second

func openPDFium(_ context.Context, opts Options) (Library, error) {
	// The wasm worker ships in the same module, so it has the same version.
	version := moduleVersion(pdfiumModule)
	if opts.WorkerVersion != "" && opts.WorkerVersion != version {
		return nil, fmt.Errorf("%w: want %s, have %s", ErrVersionSkew, opts.WorkerVersion, version)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  workers,
		MaxTotal: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("pdfium: init webassembly pool: %w", err)
	}

	// Fail the load now if no worker can start.
	instance, err := pool.GetInstance(instanceTimeout)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pdfium: get instance: %w", err)
	}
	instance.Close()

	return &pdfiumLibrary{
		pool: pool,
		info: Info{
			Backend:       BackendPDFium,
			Version:       version,
			WorkerSource:  pdfiumModule + "/webassembly (embedded)",
			WorkerVersion: version,
		},
	}, nil
}

func (l *pdfiumLibrary) Info() Info {
	return l.info
}

func (l *pdfiumLibrary) Open(ctx context.Context, data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	waitCtx, cancel := context.WithTimeout(ctx, instanceTimeout)
	defer cancel()
	instance, err := l.pool.GetInstanceWithContext(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("pdfium: get instance: %w", err)
	}

	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		instance.Close()
		return nil, fmt.Errorf("pdfium: open document: %w", err)
	}
	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		instance.Close()
		return nil, fmt.Errorf("pdfium: page count: %w", err)
	}

	return &pdfiumDocument{instance: instance, doc: doc.Document, pages: count.PageCount}, nil
}

func (l *pdfiumLibrary) Close() error {
	return l.pool.Close()
}

// pdfiumDocument owns its worker instance. An instance runs one call at a
// time, so calls on the document are serialized.
type pdfiumDocument struct {
	mu       sync.Mutex
	instance pdfium.Pdfium
	doc      references.FPDF_DOCUMENT
	pages    int
	closed   bool
}

func (d *pdfiumDocument) NumPages() int {
	return d.pages
}

func (d *pdfiumDocument) Page(index int) (Page, error) {
	if err := checkRange(index, d.pages); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errDocumentClosed
	}

	size, err := d.instance.GetPageSize(&requests.GetPageSize{Page: d.pageRef(index)})
	if err != nil {
		return nil, fmt.Errorf("pdfium: page %d size: %w", index, err)
	}
	return &pdfiumPage{doc: d, index: index, width: size.Width, height: size.Height}, nil
}

// Close closes the document and returns the worker to the pool.
func (d *pdfiumDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	_, closeErr := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: d.doc})
	if err := d.instance.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	return closeErr
}

func (d *pdfiumDocument) pageRef(index int) requests.Page {
	return requests.Page{
		ByIndex: &requests.PageByIndex{
			Document: d.doc,
			Index:    index,
		},
	}
}

type pdfiumPage struct {
	doc           *pdfiumDocument
	index         int
	width, height float64
}

func (p *pdfiumPage) Index() int { return p.index }

func (p *pdfiumPage) Size() (float64, float64) {
	return p.width, p.height
}

// Render asks PDFium for a raster of exactly the context's size; scale is
// already folded into those dimensions by the planner.
func (p *pdfiumPage) Render(ctx context.Context, dc *canvas.Context2D, _ float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()
	if p.doc.closed {
		return errDocumentClosed
	}

	bounds := dc.Bounds()
	render, err := p.doc.instance.RenderPageInPixels(&requests.RenderPageInPixels{
		Page:   p.doc.pageRef(p.index),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	})
	if err != nil {
		return fmt.Errorf("pdfium: render page %d: %w", p.index, err)
	}
	// The raster lives in worker memory until Cleanup.
	defer render.Cleanup()

	dc.DrawImage(render.Result.Image, bounds)
	return nil
}
