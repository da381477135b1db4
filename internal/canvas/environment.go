package canvas

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported is returned when the environment lacks a primitive the
	// conversion needs.
	ErrUnsupported = errors.New("canvas: environment unsupported")
	// ErrNoContext is returned when a surface cannot provide a drawing context.
	ErrNoContext = errors.New("canvas: no 2d drawing context available")
)

// SurfaceFactory allocates drawing surfaces.
type SurfaceFactory interface {
	NewSurface(width, height int) (Surface, error)
}

// BlobFactory builds byte objects tagged with a MIME type.
type BlobFactory interface {
	NewBlob(data []byte, mimeType string) (*Blob, error)
}

// URLRegistry hands out process-local, revocable references to blobs.
type URLRegistry interface {
	CreateObjectURL(b *Blob) (string, error)
	RevokeObjectURL(url string)
}

// Environment is the set of host primitives a conversion runs against.
// A nil field means the host does not provide that primitive.
type Environment struct {
	Surfaces SurfaceFactory
	Blobs    BlobFactory
	Base64   *base64.Encoding
	URLs     URLRegistry
}

// Native returns an environment backed by in-process RGBA rasters. The
// caller supplies the URL registry.
func Native(urls URLRegistry) *Environment {
	return &Environment{
		Surfaces: NativeSurfaces{},
		Blobs:    NativeBlobs{},
		Base64:   base64.StdEncoding,
		URLs:     urls,
	}
}

// Check reports every missing primitive in a single ErrUnsupported error.
func (e *Environment) Check() error {
	if e == nil {
		return fmt.Errorf("%w: no environment", ErrUnsupported)
	}

	var missing []string
	if e.Surfaces == nil {
		missing = append(missing, "drawing surface")
	}
	if e.Blobs == nil {
		missing = append(missing, "blob construction")
	}
	if e.Base64 == nil {
		missing = append(missing, "base64 codec")
	}
	if e.URLs == nil {
		missing = append(missing, "object URLs")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrUnsupported, strings.Join(missing, ", "))
	}
	return nil
}
