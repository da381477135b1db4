package objecturl

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/pdf2png/internal/canvas"
)

func TestCreateResolveRevoke(t *testing.T) {
	s := NewStore(0)
	blob := canvas.NewBlob([]byte{1, 2, 3}, canvas.MIMEPNG)

	url, err := s.CreateObjectURL(blob)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, Scheme))

	got, err := s.Resolve(url)
	require.NoError(t, err)
	assert.Same(t, blob, got)

	got, err = s.Lookup(ID(url))
	require.NoError(t, err)
	assert.Same(t, blob, got)

	s.RevokeObjectURL(url)
	_, err = s.Resolve(url)
	assert.ErrorIs(t, err, ErrNotFound)

	// Revoking twice is harmless.
	s.RevokeObjectURL(url)
	s.RevokeObjectURL("https://example.com")
}

func TestResolveForeignURL(t *testing.T) {
	_, err := NewStore(0).Resolve("blob:https://example.com/abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateNilBlob(t *testing.T) {
	_, err := NewStore(0).CreateObjectURL(nil)
	assert.Error(t, err)
}

func TestURLsAreUnique(t *testing.T) {
	s := NewStore(0)
	blob := canvas.NewBlob([]byte{1}, canvas.MIMEPNG)

	const n = 200
	urls := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, err := s.CreateObjectURL(blob)
			assert.NoError(t, err)
			urls <- url
		}()
	}
	wg.Wait()
	close(urls)

	seen := map[string]bool{}
	for url := range urls {
		assert.False(t, seen[url], "duplicate %s", url)
		seen[url] = true
	}
	assert.Equal(t, n, s.Len())
}

func TestExpiry(t *testing.T) {
	s := NewStore(20 * time.Millisecond)
	url, err := s.CreateObjectURL(canvas.NewBlob([]byte{1}, canvas.MIMEPNG))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := s.Resolve(url)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
