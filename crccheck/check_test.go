package crccheck

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/icza/gog"
	"github.com/jancona/pducrc/crc"
	"github.com/jancona/pducrc/pdu"
)

func crc32Config() Config {
	return Config{
		NumBits:         32,
		Poly:            0x04C11DB7,
		InitialValue:    0xFFFFFFFF,
		FinalXor:        0xFFFFFFFF,
		InputReflected:  true,
		ResultReflected: true,
	}
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero bits", Config{NumBits: 0}},
		{"not multiple of 8", Config{NumBits: 12, Poly: 0x80f}},
		{"too small", Config{NumBits: 4, Poly: 0x3}},
		{"too large", Config{NumBits: 72, Poly: 0x1b}},
		{"negative skip", Config{NumBits: 16, Poly: 0x1021, SkipHeaderBytes: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if c != nil {
				t.Errorf("New() returned a Checker for %+v", tt.cfg)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestKnownVector(t *testing.T) {
	c := gog.Must(New(crc32Config()))
	if got := c.Compute([]byte("123456789")); got != 0xCBF43926 {
		t.Errorf("Compute() = %#x, want 0xcbf43926", got)
	}
	// big-endian trailer
	buf := append([]byte("123456789"), 0xCB, 0xF4, 0x39, 0x26)
	if _, ok := c.Check(buf); !ok {
		t.Error("Check() rejected CRC-32 known vector")
	}
}

func TestSwapEndianness(t *testing.T) {
	cfg := crc32Config()
	cfg.SwapEndianness = true
	c := gog.Must(New(cfg))
	le := append([]byte("123456789"), 0x26, 0x39, 0xF4, 0xCB)
	if _, ok := c.Check(le); !ok {
		t.Error("Check() rejected little-endian trailer")
	}
	be := append([]byte("123456789"), 0xCB, 0xF4, 0x39, 0x26)
	if _, ok := c.Check(be); ok {
		t.Error("Check() accepted big-endian trailer with SwapEndianness")
	}
}

func layoutVariants(p crc.Params) []Config {
	var ret []Config
	for _, swap := range []bool{false, true} {
		for _, discard := range []bool{false, true} {
			for _, skip := range []int{0, 3} {
				cfg := FromParams(p)
				cfg.SwapEndianness = swap
				cfg.DiscardCRC = discard
				cfg.SkipHeaderBytes = skip
				ret = append(ret, cfg)
			}
		}
	}
	return ret
}

func payloads() [][]byte {
	return [][]byte{
		{},
		{0x00},
		[]byte("123"),
		[]byte("CubeSat beacon: batt=7.91V temp=21C"),
		bytes.Repeat([]byte{0xff, 0x00, 0x55}, 40),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, p := range crc.Presets {
		for _, cfg := range layoutVariants(p) {
			name := fmt.Sprintf("%s/swap=%v/discard=%v/skip=%d", p.Name, cfg.SwapEndianness, cfg.DiscardCRC, cfg.SkipHeaderBytes)
			t.Run(name, func(t *testing.T) {
				c := gog.Must(New(cfg))
				for _, payload := range payloads() {
					if len(payload) < cfg.SkipHeaderBytes {
						continue
					}
					framed := gog.Must(c.Append(payload))
					if len(framed) != len(payload)+p.Size() {
						t.Fatalf("Append() len = %d, want %d", len(framed), len(payload)+p.Size())
					}
					got, ok := c.Check(framed)
					if !ok {
						t.Fatalf("Check(%x) rejected", framed)
					}
					want := framed
					if cfg.DiscardCRC {
						want = payload
					}
					if !bytes.Equal(got, want) {
						t.Errorf("Check() = %x, want %x", got, want)
					}
				}
			})
		}
	}
}

func TestTrailerByteOrder(t *testing.T) {
	payload := []byte("abc")
	for _, p := range crc.Presets {
		sum := crc.Reference(payload, p)
		for _, swap := range []bool{false, true} {
			cfg := FromParams(p)
			cfg.SwapEndianness = swap
			framed := gog.Must(gog.Must(New(cfg)).Append(payload))
			trailer := framed[len(payload):]
			for i, b := range trailer {
				shift := 8 * (p.Size() - 1 - i)
				if swap {
					shift = 8 * i
				}
				if b != byte(sum>>shift) {
					t.Errorf("%s swap=%v: trailer %x does not encode %#x", p.Name, swap, trailer, sum)
					break
				}
			}
		}
	}
}

func TestDiscardReturnsCopy(t *testing.T) {
	cfg := crc32Config()
	cfg.DiscardCRC = true
	c := gog.Must(New(cfg))
	framed := gog.Must(c.Append([]byte("payload")))
	got, ok := c.Check(framed)
	if !ok {
		t.Fatal("Check() rejected")
	}
	got[0] = 'X'
	if framed[0] != 'p' {
		t.Error("trimmed output aliases the input buffer")
	}
}

func TestCorruptionRejected(t *testing.T) {
	for _, p := range []crc.Params{crc.CRC8, crc.CRC16X25, crc.CRC16M17, crc.CRC24OpenPGP, crc.CRC32, crc.CRC32MPEG2, crc.CRC64XZ} {
		for _, swap := range []bool{false, true} {
			cfg := FromParams(p)
			cfg.SwapEndianness = swap
			c := gog.Must(New(cfg))
			framed := gog.Must(c.Append([]byte("flip me, any single bit")))
			for bit := 0; bit < len(framed)*8; bit++ {
				bad := slices.Clone(framed)
				bad[bit/8] ^= 1 << (bit % 8)
				got, ok := c.Check(bad)
				if ok {
					t.Fatalf("%s swap=%v: bit %d flip accepted", p.Name, swap, bit)
				}
				if !bytes.Equal(got, bad) {
					t.Fatalf("%s: rejected PDU modified", p.Name)
				}
			}
		}
	}
}

func TestMismatchNotTrimmed(t *testing.T) {
	cfg := crc32Config()
	cfg.DiscardCRC = true
	c := gog.Must(New(cfg))
	in := append([]byte("123456789"), 0, 0, 0, 0)
	got, ok := c.Check(in)
	if ok {
		t.Fatal("Check() accepted bad CRC")
	}
	if !bytes.Equal(got, in) {
		t.Errorf("Check() = %x, want original %x", got, in)
	}
}

func TestEmptyCRCRegion(t *testing.T) {
	for _, p := range crc.Presets {
		cfg := FromParams(p)
		cfg.SkipHeaderBytes = 2
		c := gog.Must(New(cfg))
		empty := crc.Reference(nil, p)
		pduBytes := []byte{0xde, 0xad}
		for i := p.Size() - 1; i >= 0; i-- {
			pduBytes = append(pduBytes, byte(empty>>(8*i)))
		}
		if len(pduBytes) != cfg.SkipHeaderBytes+p.Size() {
			t.Fatalf("bad fixture length %d", len(pduBytes))
		}
		if _, ok := c.Check(pduBytes); !ok {
			t.Errorf("%s: header plus CRC of empty input rejected", p.Name)
		}
	}
}

func TestShortPDURejected(t *testing.T) {
	for _, skip := range []int{0, 1, 5} {
		cfg := crc32Config()
		cfg.SkipHeaderBytes = skip
		cfg.DiscardCRC = true
		c := gog.Must(New(cfg))
		for n := 0; n < skip+4; n++ {
			in := bytes.Repeat([]byte{0xa5}, n)
			got, ok := c.Check(in)
			if ok {
				t.Errorf("skip=%d len=%d: accepted", skip, n)
			}
			if !bytes.Equal(got, in) {
				t.Errorf("skip=%d len=%d: got %x, want original", skip, n, got)
			}
		}
	}
}

func TestHeaderSkip(t *testing.T) {
	cfg := FromParams(crc.CRC16CCITTFalse)
	cfg.SkipHeaderBytes = 4
	cfg.DiscardCRC = true
	c := gog.Must(New(cfg))

	a := gog.Must(c.Append([]byte("HDR1telemetry")))
	b := slices.Clone(a)
	copy(b, "hdr2")
	if !bytes.Equal(a[len(a)-2:], b[len(b)-2:]) {
		t.Fatal("trailers differ")
	}
	gotA, okA := c.Check(a)
	gotB, okB := c.Check(b)
	if !okA || !okB {
		t.Fatalf("Check() = %v, %v; want both accepted", okA, okB)
	}
	if string(gotA) != "HDR1telemetry" || string(gotB) != "hdr2telemetry" {
		t.Errorf("forwarded %q and %q", gotA, gotB)
	}
}

func TestAppendShortHeader(t *testing.T) {
	cfg := crc32Config()
	cfg.SkipHeaderBytes = 8
	c := gog.Must(New(cfg))
	if _, err := c.Append([]byte("short")); err == nil {
		t.Error("Append() succeeded on PDU shorter than header")
	}
}

func TestProcess(t *testing.T) {
	cfg := crc32Config()
	cfg.DiscardCRC = true
	c := gog.Must(New(cfg))
	var tr pdu.Transform = c

	meta := pdu.Meta{pdu.MetaID: "42"}
	good := pdu.PDU{Data: gog.Must(c.Append([]byte("hello"))), Meta: meta}
	r := tr.Process(good)
	if r.Outcome != pdu.Accepted || string(r.Data) != "hello" || r.ID() != "42" {
		t.Errorf("Process(good) = %v %q %v", r.Outcome, r.Data, r.Meta)
	}

	bad := pdu.PDU{Data: []byte("hello\x00\x00\x00\x00"), Meta: meta}
	r = tr.Process(bad)
	if r.Outcome != pdu.Rejected || !bytes.Equal(r.Data, bad.Data) || r.ID() != "42" {
		t.Errorf("Process(bad) = %v %q %v", r.Outcome, r.Data, r.Meta)
	}
}

func TestConcurrentChecks(t *testing.T) {
	c := gog.Must(New(FromParams(crc.CRC64XZ)))
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, 100+i)
			framed := gog.Must(c.Append(payload))
			for range 100 {
				if _, ok := c.Check(framed); !ok {
					errs <- fmt.Errorf("goroutine %d: rejected", i)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
