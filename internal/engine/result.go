package engine

import (
	"github.com/ivlev/pdf2png/internal/canvas"
	"github.com/ivlev/pdf2png/internal/planner"
)

// Request is one document to convert.
type Request struct {
	Data []byte
	Name string
}

// Success carries the rendered first page.
type Success struct {
	Image      *canvas.Blob
	Name       string
	DisplayURL string

	Plan     planner.Plan
	Fallback bool
}

// Failure describes why a conversion produced no image.
type Failure struct {
	Kind    Kind
	Message string

	cause *Error
}

// Result holds exactly one of Success or Failure.
type Result struct {
	Success *Success
	Failure *Failure
}

// OK reports whether the conversion produced an image.
func (r Result) OK() bool { return r.Success != nil }

// Err returns the failure as an *Error, or nil on success.
func (r Result) Err() error {
	if r.Failure == nil || r.Failure.cause == nil {
		return nil
	}
	return r.Failure.cause
}

func succeeded(s *Success) Result {
	return Result{Success: s}
}

func failed(err *Error) Result {
	return Result{Failure: &Failure{Kind: err.Kind, Message: err.Error(), cause: err}}
}
