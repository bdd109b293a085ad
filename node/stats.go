package node

import (
	"fmt"
	"sync/atomic"
)

// Stats counts frames seen on the device side.
type Stats struct {
	RxFrames uint64
	RxBytes  uint64
	TxFrames uint64
	TxBytes  uint64
	Dropped  uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("rx %d frames/%d bytes, tx %d frames/%d bytes, dropped %d",
		s.RxFrames, s.RxBytes, s.TxFrames, s.TxBytes, s.Dropped)
}

type counters struct {
	rxFrames atomic.Uint64
	rxBytes  atomic.Uint64
	txFrames atomic.Uint64
	txBytes  atomic.Uint64
	dropped  atomic.Uint64
}

func (c *counters) rx(n int) {
	c.rxFrames.Add(1)
	c.rxBytes.Add(uint64(n))
}

func (c *counters) tx(n int) {
	c.txFrames.Add(1)
	c.txBytes.Add(uint64(n))
}

func (c *counters) drop() {
	c.dropped.Add(1)
}

func (c *counters) snapshot() Stats {
	return Stats{
		RxFrames: c.rxFrames.Load(),
		RxBytes:  c.rxBytes.Load(),
		TxFrames: c.txFrames.Load(),
		TxBytes:  c.txBytes.Load(),
		Dropped:  c.dropped.Load(),
	}
}
