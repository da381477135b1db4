package canvas

import (
	"image"
	"image/png"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxPoolSizes ограничивает число размеров растров, для которых держим пул.
// Сервер видит страницы любых размеров, поэтому редкие размеры вытесняются.
const maxPoolSizes = 32

// ImagePool переиспользует *image.RGBA одного размера, чтобы не гонять GC
// на каждом рендере.
type ImagePool struct {
	mu    sync.Mutex
	sizes *lru.Cache[image.Rectangle, *sync.Pool]
}

// NewImagePool создает пул, помнящий не больше sizes размеров.
func NewImagePool(sizes int) *ImagePool {
	if sizes < 1 {
		sizes = 1
	}
	cache, err := lru.New[image.Rectangle, *sync.Pool](sizes)
	if err != nil {
		// lru.New ошибается только при размере <= 0
		panic(err)
	}
	return &ImagePool{sizes: cache}
}

var globalPool = NewImagePool(maxPoolSizes)

// GetImage берет растр нужного размера из общего пула. Пиксели не очищены.
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutImage возвращает растр в общий пул.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.Lock()
	pool, ok := p.sizes.Get(rect)
	if !ok {
		pool = &sync.Pool{
			New: func() any { return image.NewRGBA(rect) },
		}
		p.sizes.Add(rect, pool)
	}
	p.mu.Unlock()

	return pool.Get().(*image.RGBA)
}

// Put кладет растр обратно, если его размер еще не вытеснен.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.Lock()
	pool, ok := p.sizes.Get(img.Rect)
	p.mu.Unlock()

	if ok {
		pool.Put(img)
	}
}

// Len возвращает число размеров, для которых сейчас есть пул.
func (p *ImagePool) Len() int {
	return p.sizes.Len()
}

// Буферы zlib для png.Encoder, общие для всех поверхностей.
type encoderBufferPool struct {
	pool sync.Pool
}

var encoderBuffers png.EncoderBufferPool = &encoderBufferPool{}

func (p *encoderBufferPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *encoderBufferPool) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}
