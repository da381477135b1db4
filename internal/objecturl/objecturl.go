// Package objecturl hands out process-local, revocable URLs for blobs so a
// rendered image can be shown without passing its bytes around.
package objecturl

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"

	"github.com/ivlev/pdf2png/internal/canvas"
)

// Scheme prefixes every URL issued by a Store.
const Scheme = "blob:pdf2png/"

// ErrNotFound is returned for URLs that were never issued, were revoked or
// have expired.
var ErrNotFound = errors.New("objecturl: not found")

// Store maps object URLs to blobs. It is safe for concurrent use.
type Store struct {
	items *cache.Cache

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewStore returns a store whose URLs expire after ttl. A ttl of zero keeps
// URLs until they are revoked.
func NewStore(ttl time.Duration) *Store {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}
	return &Store{
		items:   cache.New(expiration, cleanup),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// Default returns the process-wide store. Its URLs live until revoked.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = NewStore(0)
	})
	return defaultStore
}

// CreateObjectURL registers b and returns its URL.
func (s *Store) CreateObjectURL(b *canvas.Blob) (string, error) {
	if b == nil {
		return "", errors.New("objecturl: nil blob")
	}
	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("objecturl: new id: %w", err)
	}
	s.items.SetDefault(id.String(), b)
	return Scheme + id.String(), nil
}

// RevokeObjectURL forgets url. Revoking an unknown URL is a no-op.
func (s *Store) RevokeObjectURL(url string) {
	if id, ok := strings.CutPrefix(url, Scheme); ok {
		s.items.Delete(id)
	}
}

// Resolve returns the blob behind url.
func (s *Store) Resolve(url string) (*canvas.Blob, error) {
	id, ok := strings.CutPrefix(url, Scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, url)
	}
	return s.Lookup(id)
}

// Lookup returns the blob registered under the bare id part of a URL.
func (s *Store) Lookup(id string) (*canvas.Blob, error) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.(*canvas.Blob), nil
}

// Len returns the number of live URLs, including expired ones not yet
// swept.
func (s *Store) Len() int {
	return s.items.ItemCount()
}

// ID returns the id part of an object URL.
func ID(url string) string {
	return strings.TrimPrefix(url, Scheme)
}

func (s *Store) newID() (ulid.ULID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.New(ulid.Timestamp(time.Now()), s.entropy)
}
