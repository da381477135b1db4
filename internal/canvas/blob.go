package canvas

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
)

// Blob is an immutable byte object tagged with a MIME type.
//
// Its methods may be called any number of times; the underlying data is
// never modified.
type Blob struct {
	data     []byte
	mimeType string
}

// NewBlob wraps data without copying it.
func NewBlob(data []byte, mimeType string) *Blob {
	return &Blob{data: data, mimeType: mimeType}
}

// Bytes returns the raw content.
func (b *Blob) Bytes() []byte {
	return b.data
}

// Type returns the MIME type, e.g. "image/png".
func (b *Blob) Type() string {
	return b.mimeType
}

// Len returns the size in bytes. A nil blob has length zero.
func (b *Blob) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Base64 returns the content as a standard base64 string (RFC 4648).
func (b *Blob) Base64() string {
	return base64.StdEncoding.EncodeToString(b.data)
}

// Reader returns a [*bytes.Reader] over the content.
func (b *Blob) Reader() *bytes.Reader {
	return bytes.NewReader(b.data)
}

// WriteTo writes the full content to w. It implements [io.WriterTo].
func (b *Blob) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}

// WriteToFile writes the content to path, creating it if needed.
func (b *Blob) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, b.data, perm)
}

// NativeBlobs builds blobs from private copies of the input.
type NativeBlobs struct{}

func (NativeBlobs) NewBlob(data []byte, mimeType string) (*Blob, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	return NewBlob(buf, mimeType), nil
}
