package system

import (
	"image"
	"sync"
	"sync/atomic"
)

// FramePool переиспользует кадры *image.RGBA между стадиями рендера и
// кодирования, чтобы снизить нагрузку на GC. Пулы разделены по размеру кадра.
type FramePool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex

	allocated atomic.Int64
	reused    atomic.Int64
}

func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

var globalPool = NewFramePool()

// GetImage returns a frame of the given size from the shared pool. Its pixels
// are not cleared.
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutImage returns a frame to the shared pool.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

// PoolStats reports the shared pool's allocation counters.
func PoolStats() (allocated, reused int64) {
	return globalPool.Stats()
}

func (p *FramePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.RLock()
	pool, exists := p.pools[rect]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[rect]
		if !exists {
			pool = &sync.Pool{}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}

	if img, ok := pool.Get().(*image.RGBA); ok {
		p.reused.Add(1)
		return img
	}
	p.allocated.Add(1)
	return image.NewRGBA(rect)
}

// Put accepts only frames of a size the pool has handed out before.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[img.Rect]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}

func (p *FramePool) Stats() (allocated, reused int64) {
	return p.allocated.Load(), p.reused.Load()
}
