// Package serializer turns a rendered surface into PNG bytes.
package serializer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/ivlev/pdf2png/internal/canvas"
)

// Quality requested from the host encoder. PNG is lossless, so this only
// matters to hosts that honour it for other formats.
const Quality = 1.0

var (
	// ErrBothPathsFailed wraps the causes of a failed primary and fallback encode.
	ErrBothPathsFailed = errors.New("primary and fallback encoding both failed")
	// errEmptyBlob stands in for a primary encode that produced nothing.
	errEmptyBlob = errors.New("toBlob produced no data")
)

// Encoded is a serialized surface.
type Encoded struct {
	Blob *canvas.Blob
	Name string
	// Fallback is set when the data URL path produced the blob.
	Fallback bool
}

// Serialize encodes surface as PNG. The asynchronous blob encoder is tried
// first; only when it yields nothing is the synchronous data URL encoder
// used, decoding its base64 payload back into a blob. A cancelled ctx ends
// the conversion instead of triggering the fallback.
func Serialize(ctx context.Context, env *canvas.Environment, surface canvas.Surface, name string) (*Encoded, error) {
	blob, primaryErr := surface.ToBlob(ctx, canvas.MIMEPNG, Quality)
	if primaryErr == nil && blob.Len() > 0 {
		return &Encoded{Blob: blob, Name: name}, nil
	}
	// Cancellation ends the conversion; the fallback is only for empty results.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("toBlob: %w", err)
	}
	if primaryErr == nil {
		primaryErr = errEmptyBlob
	}

	blob, fallbackErr := fromDataURL(env, surface)
	if fallbackErr != nil {
		var merr *multierror.Error
		merr = multierror.Append(merr,
			fmt.Errorf("toBlob: %w", primaryErr),
			fmt.Errorf("toDataURL: %w", fallbackErr),
		)
		return nil, fmt.Errorf("%w: %w", ErrBothPathsFailed, merr.ErrorOrNil())
	}
	return &Encoded{Blob: blob, Name: name, Fallback: true}, nil
}

func fromDataURL(env *canvas.Environment, surface canvas.Surface) (*canvas.Blob, error) {
	dataURL, err := surface.ToDataURL(canvas.MIMEPNG, Quality)
	if err != nil {
		return nil, err
	}
	mimeType, payload, err := canvas.ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	raw, err := env.Base64.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("data URL has an empty payload")
	}
	return env.Blobs.NewBlob(raw, mimeType)
}

// OutputName derives the image name from a document name: a trailing
// ".pdf" (any case) is replaced by ".png", otherwise ".png" is appended.
func OutputName(name string) string {
	const ext = ".pdf"
	if len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext) {
		name = name[:len(name)-len(ext)]
	}
	return name + ".png"
}
