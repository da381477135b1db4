// Package pdflib puts PDF rendering engines behind a small capability
// interface and loads the selected engine once per process.
package pdflib

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ivlev/pdf2png/internal/canvas"
)

const (
	BackendFitz   = "fitz"
	BackendPDFium = "pdfium"
)

var (
	// ErrEmptyDocument is returned when Open is given no bytes.
	ErrEmptyDocument = errors.New("pdflib: empty document")
	// ErrNoPages is returned for a document without pages.
	ErrNoPages = errors.New("pdflib: document has no pages")
	// ErrPageRange is returned when a page index does not exist.
	ErrPageRange = errors.New("pdflib: page out of range")
	// ErrVersionSkew is returned when the worker does not match the library build.
	ErrVersionSkew = errors.New("pdflib: worker version does not match library")
	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("pdflib: unknown backend")
)

// Info identifies a loaded library and the worker bound to it.
type Info struct {
	Backend       string
	Version       string
	WorkerSource  string
	WorkerVersion string
}

// Library is a loaded rendering engine.
type Library interface {
	Info() Info
	// Open parses data into a document. The caller must Close it.
	Open(ctx context.Context, data []byte) (Document, error)
	Close() error
}

// Document is a parsed PDF.
type Document interface {
	NumPages() int
	Page(index int) (Page, error)
	Close() error
}

// Page is a single page of a Document.
type Page interface {
	Index() int
	// Size returns the natural viewport in points (scale 1.0).
	Size() (width, height float64)
	// Render rasterizes the page at scale onto the context's full bounds.
	Render(ctx context.Context, dc *canvas.Context2D, scale float64) error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Workers is the size of the pdfium worker pool.
	Workers int
	// WorkerVersion pins the expected worker build. Empty accepts the one
	// shipped with the library.
	WorkerVersion string
}

// FirstPage returns page 0 of doc.
func FirstPage(doc Document) (Page, error) {
	if doc.NumPages() == 0 {
		return nil, ErrNoPages
	}
	return doc.Page(0)
}

// Open loads the backend named in opts. Use a Loader to load it only once.
func Open(ctx context.Context, opts Options) (Library, error) {
	switch opts.Backend {
	case BackendFitz, "":
		return openFitz(ctx, opts)
	case BackendPDFium:
		return openPDFium(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

func checkRange(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: %d of %d", ErrPageRange, index, count)
	}
	return nil
}

// moduleVersion reports the version of a dependency compiled into the binary.
func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return "(devel)"
}
