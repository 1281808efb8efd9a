package pdu

import (
	"log"
	"sync/atomic"
)

// Block runs a Transform over every PDU read from its sink and emits the
// result on the ok or fail channel. Both channels must be drained.
type Block struct {
	sink      chan PDU
	ok        chan PDU
	fail      chan PDU
	transform Transform
	observers []func(Routed)

	okCount   atomic.Uint64
	failCount atomic.Uint64
}

type Stats struct {
	OK   uint64
	Fail uint64
}

// NewBlock starts a goroutine that processes PDUs from sink until it is
// closed, then closes both outputs. sourceSize is the buffer size of each
// output channel. Observers are called synchronously for every routed PDU.
func NewBlock(sink chan PDU, t Transform, sourceSize int, observers ...func(Routed)) *Block {
	b := &Block{
		sink:      sink,
		ok:        make(chan PDU, sourceSize),
		fail:      make(chan PDU, sourceSize),
		transform: t,
		observers: observers,
	}
	go b.handle()
	return b
}

func (b *Block) Ok() chan PDU {
	return b.ok
}

func (b *Block) Fail() chan PDU {
	return b.fail
}

func (b *Block) Stats() Stats {
	return Stats{OK: b.okCount.Load(), Fail: b.failCount.Load()}
}

func (b *Block) handle() {
	for {
		p, ok := <-b.sink
		if !ok {
			break
		}
		r := b.transform.Process(p)
		for _, o := range b.observers {
			o(r)
		}
		if r.Outcome == Accepted {
			b.okCount.Add(1)
			b.ok <- r.PDU
		} else {
			log.Printf("[DEBUG] %s routed to fail", r.PDU)
			b.failCount.Add(1)
			b.fail <- r.PDU
		}
	}
	close(b.ok)
	close(b.fail)
}
