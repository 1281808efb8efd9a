package indicator

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jancona/pducrc/pdu"
)

type fakeLine struct {
	mu     sync.Mutex
	values []int
	closed bool
}

func (l *fakeLine) SetValue(v int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = append(l.values, v)
	return nil
}

func (l *fakeLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLine) snapshot() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.values)
}

func TestIndicatorPulses(t *testing.T) {
	ok, fail := &fakeLine{}, &fakeLine{}
	ind := New(ok, fail, time.Millisecond)

	ind.Observe(pdu.Routed{Outcome: pdu.Accepted})
	deadline := time.Now().Add(2 * time.Second)
	for !slices.Equal(ok.snapshot(), []int{1, 0}) {
		if time.Now().After(deadline) {
			t.Fatalf("ok line = %v, want [1 0]", ok.snapshot())
		}
		time.Sleep(time.Millisecond)
	}
	if got := fail.snapshot(); len(got) != 0 {
		t.Errorf("fail line = %v, want untouched", got)
	}

	ind.Observe(pdu.Routed{Outcome: pdu.Rejected})
	if got := fail.snapshot(); len(got) == 0 || got[0] != 1 {
		t.Errorf("fail line = %v, want pulse", got)
	}

	if err := ind.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !ok.closed || !fail.closed {
		t.Error("lines not closed")
	}
	if got := fail.snapshot(); got[len(got)-1] != 0 {
		t.Errorf("fail line left at %d after Close", got[len(got)-1])
	}
	// no-op after close
	ind.Observe(pdu.Routed{Outcome: pdu.Accepted})
}

func TestIndicatorNilLines(t *testing.T) {
	ind := New(nil, nil, time.Millisecond)
	ind.Observe(pdu.Routed{Outcome: pdu.Accepted})
	ind.Observe(pdu.Routed{Outcome: pdu.Rejected})
	if err := ind.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
