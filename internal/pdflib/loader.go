package pdflib

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle of a Loader.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// OpenFunc performs the one-time library load.
type OpenFunc func(ctx context.Context) (Library, error)

// Loader loads a library at most once and hands the same outcome to every
// caller. A Loader never returns to Unloaded; a failed load is remembered.
type Loader struct {
	open  OpenFunc
	group singleflight.Group

	mu    sync.Mutex
	state State
	lib   Library
	err   error
}

// NewLoader returns an Unloaded loader.
func NewLoader(open OpenFunc) *Loader {
	return &Loader{open: open}
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Acquire returns the library, loading it on first use. Concurrent callers
// during the first load wait for that load instead of starting another.
func (l *Loader) Acquire(ctx context.Context) (Library, error) {
	l.mu.Lock()
	if l.state == Loaded {
		lib, err := l.lib, l.err
		l.mu.Unlock()
		return lib, err
	}
	l.state = Loading
	l.mu.Unlock()

	v, err, _ := l.group.Do("load", func() (any, error) {
		l.mu.Lock()
		if l.state == Loaded {
			defer l.mu.Unlock()
			return l.lib, l.err
		}
		l.mu.Unlock()

		// The outcome is shared, so one caller's cancellation must not decide it.
		lib, err := l.load(context.WithoutCancel(ctx))

		l.mu.Lock()
		l.lib, l.err, l.state = lib, err, Loaded
		l.mu.Unlock()
		return lib, err
	})
	if err != nil {
		return nil, err
	}
	return v.(Library), nil
}

func (l *Loader) load(ctx context.Context) (lib Library, err error) {
	defer func() {
		if r := recover(); r != nil {
			lib, err = nil, fmt.Errorf("pdflib: load panicked: %v", r)
		}
	}()
	return l.open(ctx)
}

var (
	sharedMu sync.Mutex
	shared   = map[string]*Loader{}
)

// Shared returns the process-wide loader for opts.Backend. The options of
// the first call for a backend win.
func Shared(opts Options) *Loader {
	key := opts.Backend
	if key == "" {
		key = BackendFitz
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if l, ok := shared[key]; ok {
		return l
	}
	l := NewLoader(func(ctx context.Context) (Library, error) {
		return Open(ctx, opts)
	})
	shared[key] = l
	return l
}
