package engine

import "fmt"

// Kind classifies the stage a conversion failed in.
type Kind int

const (
	EnvironmentUnsupported Kind = iota + 1
	LibraryLoadFailure
	DocumentParseFailure
	RenderFailure
	SerializationFailure
)

func (k Kind) String() string {
	switch k {
	case EnvironmentUnsupported:
		return "EnvironmentUnsupported"
	case LibraryLoadFailure:
		return "LibraryLoadFailure"
	case DocumentParseFailure:
		return "DocumentParseFailure"
	case RenderFailure:
		return "RenderFailure"
	case SerializationFailure:
		return "SerializationFailure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText lets a Kind appear by name in JSON and logs.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is a failed conversion stage.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
