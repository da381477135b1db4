package canvas

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"golang.org/x/image/draw"
)

// MIMEPNG is the only encoding the native surface produces. Like a browser
// canvas, requests for other types fall back to PNG.
const MIMEPNG = "image/png"

// Surface is an in-memory raster that rendering operations draw onto.
type Surface interface {
	Width() int
	Height() int
	// Context2D returns the drawing context, or ErrNoContext.
	Context2D() (*Context2D, error)
	// ToBlob encodes the surface. A nil blob with a nil error means the
	// host produced nothing, which callers must tolerate.
	ToBlob(ctx context.Context, mimeType string, quality float64) (*Blob, error)
	// ToDataURL encodes the surface synchronously as a base64 data URL.
	ToDataURL(mimeType string, quality float64) (string, error)
	// Image exposes the pixels for post-processing.
	Image() image.Image
	// Release returns the pixel buffer to the pool. The surface must not be
	// used afterwards.
	Release()
}

// SmoothingQuality selects the resampling kernel used when a drawn image
// has to be scaled.
type SmoothingQuality int

const (
	SmoothingLow SmoothingQuality = iota
	SmoothingMedium
	SmoothingHigh
)

func (q SmoothingQuality) String() string {
	switch q {
	case SmoothingLow:
		return "low"
	case SmoothingMedium:
		return "medium"
	case SmoothingHigh:
		return "high"
	default:
		return fmt.Sprintf("SmoothingQuality(%d)", int(q))
	}
}

// Context2D draws onto a surface.
type Context2D struct {
	ImageSmoothingEnabled bool
	ImageSmoothingQuality SmoothingQuality

	dst *image.RGBA
}

// Bounds returns the drawable area.
func (c *Context2D) Bounds() image.Rectangle {
	return c.dst.Bounds()
}

// FillRect paints r with a solid color.
func (c *Context2D) FillRect(r image.Rectangle, col color.Color) {
	draw.Draw(c.dst, r.Intersect(c.dst.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

// DrawImage draws src into dr, resampling it when the sizes differ.
func (c *Context2D) DrawImage(src image.Image, dr image.Rectangle) {
	sr := src.Bounds()
	if sr.Dx() == dr.Dx() && sr.Dy() == dr.Dy() {
		draw.Draw(c.dst, dr, src, sr.Min, draw.Src)
		return
	}
	c.scaler().Scale(c.dst, dr, src, sr, draw.Src, nil)
}

func (c *Context2D) scaler() draw.Scaler {
	if !c.ImageSmoothingEnabled {
		return draw.NearestNeighbor
	}
	switch c.ImageSmoothingQuality {
	case SmoothingHigh:
		return draw.CatmullRom
	case SmoothingMedium:
		return draw.BiLinear
	default:
		return draw.ApproxBiLinear
	}
}

// NativeSurfaces allocates RGBA surfaces from the shared image pool.
type NativeSurfaces struct{}

func (NativeSurfaces) NewSurface(width, height int) (Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas: invalid surface size %dx%d", width, height)
	}
	img := GetImage(image.Rect(0, 0, width, height))
	clear(img.Pix)
	return &RGBASurface{img: img}, nil
}

// RGBASurface is the native Surface.
type RGBASurface struct {
	mu  sync.Mutex
	img *image.RGBA
	// encodes tracks ToBlob goroutines still reading img.
	encodes sync.WaitGroup
}

// NewRGBASurface wraps an existing image. The image is not pooled.
func NewRGBASurface(img *image.RGBA) *RGBASurface {
	return &RGBASurface{img: img}
}

func (s *RGBASurface) raster() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

func (s *RGBASurface) Width() int  { return s.bounds().Dx() }
func (s *RGBASurface) Height() int { return s.bounds().Dy() }

func (s *RGBASurface) bounds() image.Rectangle {
	if img := s.raster(); img != nil {
		return img.Rect
	}
	return image.Rectangle{}
}

func (s *RGBASurface) Image() image.Image { return s.raster() }

func (s *RGBASurface) Context2D() (*Context2D, error) {
	img := s.raster()
	if img == nil {
		return nil, ErrNoContext
	}
	return &Context2D{ImageSmoothingEnabled: true, dst: img}, nil
}

// ToBlob encodes on a separate goroutine and waits for it or for ctx. An
// encode abandoned on cancellation keeps the raster until it finishes;
// Release waits for it.
func (s *RGBASurface) ToBlob(ctx context.Context, mimeType string, quality float64) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	img := s.img
	if img == nil {
		s.mu.Unlock()
		return nil, errReleased
	}
	s.encodes.Add(1)
	s.mu.Unlock()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer s.encodes.Done()
		data, err := encodePNG(img)
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return NewBlob(r.data, MIMEPNG), nil
	}
}

func (s *RGBASurface) ToDataURL(mimeType string, quality float64) (string, error) {
	data, err := encodePNG(s.raster())
	if err != nil {
		return "", err
	}
	return FormatDataURL(MIMEPNG, base64.StdEncoding.EncodeToString(data)), nil
}

// Release returns the raster to the pool once no encode is reading it.
// Releasing twice is a no-op.
func (s *RGBASurface) Release() {
	s.mu.Lock()
	img := s.img
	s.img = nil
	s.mu.Unlock()

	s.encodes.Wait()
	PutImage(img)
}

var errReleased = errors.New("canvas: surface released")

func encodePNG(img *image.RGBA) ([]byte, error) {
	if img == nil {
		return nil, errReleased
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression, BufferPool: encoderBuffers}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("canvas: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
