package node

import (
	"net/netip"
	"sync"
	"sync/atomic"
)

// PacketBuffer carries one frame between the device and the UDP socket.
type PacketBuffer struct {
	data []byte         // backing storage, sized for one frame
	size int            // bytes of data in use
	from netip.AddrPort // sender of a datagram, unset for device frames
}

func (b *PacketBuffer) Bytes() []byte {
	return b.data[:b.size]
}

// BufferPool recycles PacketBuffers of a fixed size.
type BufferPool struct {
	pool  sync.Pool
	size  int
	inUse atomic.Int64
}

func NewBufferPool(size int) *BufferPool {
	p := &BufferPool{size: size}
	p.pool.New = func() interface{} {
		return &PacketBuffer{data: make([]byte, size)}
	}
	return p
}

func (p *BufferPool) Get() *PacketBuffer {
	p.inUse.Add(1)
	return p.pool.Get().(*PacketBuffer)
}

func (p *BufferPool) Put(buffer *PacketBuffer) {
	clear(buffer.data[:buffer.size])
	buffer.size = 0
	buffer.from = netip.AddrPort{}

	p.pool.Put(buffer)
	p.inUse.Add(-1)
}

// InUse reports how many buffers have been taken and not returned.
func (p *BufferPool) InUse() int64 {
	return p.inUse.Load()
}

func (p *BufferPool) Size() int {
	return p.size
}
