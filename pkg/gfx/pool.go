package gfx

import (
	"math/bits"
	"sync"
)

// maxBufferClass caps a single pixel buffer at 1 TiB.
const maxBufferClass = 40

// bufferPool recycles pixel buffers released by Destroy. Buffers are grouped
// in power-of-two capacity classes. Buffers handed out with zero == false keep
// whatever a previous image left in them.
//
// Thread safety: all methods are safe for concurrent use.
type bufferPool struct {
	classes [maxBufferClass + 1]sync.Pool
}

var pixelBuffers bufferPool

func bufferClass(n uint64) int {
	if n <= 1 {
		return 0
	}
	return bits.Len64(n - 1)
}

// get returns a buffer of length n, or false if n cannot be allocated.
func (p *bufferPool) get(n uint64, zero bool) ([]byte, bool) {
	c := bufferClass(n)
	if c > maxBufferClass || n > uint64(maxInt) {
		return nil, false
	}
	if v, ok := p.classes[c].Get().(*[]byte); ok {
		b := (*v)[:n]
		if zero {
			clear(b)
		}
		return b, true
	}
	return make([]byte, n, uint64(1)<<c), true
}

// put hands b back for reuse. Buffers not allocated by get are dropped.
func (p *bufferPool) put(b []byte) {
	if b == nil {
		return
	}
	c := bufferClass(uint64(cap(b)))
	if c > maxBufferClass || uint64(cap(b)) != uint64(1)<<c {
		return
	}
	b = b[:0]
	p.classes[c].Put(&b)
}

const maxInt = int(^uint(0) >> 1)
