package canvas

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDataURL is returned by ParseDataURL for input that is not a
// base64 data URL.
var ErrMalformedDataURL = errors.New("canvas: malformed data URL")

// FormatDataURL builds "data:<mime>;base64,<payload>".
func FormatDataURL(mimeType, payload string) string {
	return "data:" + mimeType + ";base64," + payload
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
// The payload is returned still encoded.
func ParseDataURL(s string) (mimeType, payload string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", "", fmt.Errorf("%w: missing data: scheme", ErrMalformedDataURL)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("%w: missing payload separator", ErrMalformedDataURL)
	}

	params := strings.Split(header, ";")
	if params[len(params)-1] != "base64" {
		return "", "", fmt.Errorf("%w: payload is not base64", ErrMalformedDataURL)
	}
	mimeType = params[0]
	if mimeType == "" {
		// RFC 2397 default.
		mimeType = "text/plain"
	}
	return mimeType, payload, nil
}
