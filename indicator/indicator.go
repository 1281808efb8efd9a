// Package indicator pulses an output line (typically a LED on a GPIO pin)
// for every PDU routed to ok and another for every PDU routed to fail.
package indicator

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jancona/pducrc/pdu"
)

const DefaultPulse = 50 * time.Millisecond

type Line interface {
	SetValue(value int) error
	Close() error
}

type Indicator struct {
	ok   *pulser
	fail *pulser
}

// New builds an Indicator. Either line may be nil.
func New(ok, fail Line, width time.Duration) *Indicator {
	return &Indicator{
		ok:   &pulser{line: ok, width: width, name: "ok"},
		fail: &pulser{line: fail, width: width, name: "fail"},
	}
}

// Observe can be passed to pdu.NewBlock as an observer.
func (i *Indicator) Observe(r pdu.Routed) {
	if r.Outcome == pdu.Accepted {
		i.ok.pulse()
	} else {
		i.fail.pulse()
	}
}

func (i *Indicator) Close() error {
	return errors.Join(i.ok.close(), i.fail.close())
}

type pulser struct {
	mu    sync.Mutex
	line  Line
	width time.Duration
	timer *time.Timer
	name  string
}

// pulse drives the line high and schedules it low after width, extending
// the pulse when called again before it ends.
func (p *pulser) pulse() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return
	}
	if err := p.line.SetValue(1); err != nil {
		log.Printf("[ERROR] indicator %s: %v", p.name, err)
		return
	}
	if p.timer == nil {
		p.timer = time.AfterFunc(p.width, p.off)
	} else {
		p.timer.Reset(p.width)
	}
}

func (p *pulser) off() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return
	}
	if err := p.line.SetValue(0); err != nil {
		log.Printf("[ERROR] indicator %s: %v", p.name, err)
	}
}

func (p *pulser) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	err := errors.Join(p.line.SetValue(0), p.line.Close())
	p.line = nil
	return err
}
