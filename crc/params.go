package crc

import (
	"fmt"
	"strings"
)

const (
	MinWidth = 8
	MaxWidth = 64
)

// CheckInput is the conventional input used to compute a model's check value.
var CheckInput = []byte("123456789")

// Params describes a CRC model. Poly is always given in normal (MSB-first)
// notation, even for reflected models.
type Params struct {
	Width  int
	Poly   uint64
	Init   uint64
	XorOut uint64
	RefIn  bool
	RefOut bool
	Check  uint64 // CRC of CheckInput, zero if unknown
	Name   string
}

// Validate reports whether the width is one the engine supports.
func (p Params) Validate() error {
	if p.Width < MinWidth || p.Width > MaxWidth {
		return fmt.Errorf("width %d out of range [%d, %d]", p.Width, MinWidth, MaxWidth)
	}
	if p.Width%8 != 0 {
		return fmt.Errorf("width %d is not a multiple of 8", p.Width)
	}
	return nil
}

// Mask returns a value with the low Width bits set.
func (p Params) Mask() uint64 {
	if p.Width >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<p.Width - 1
}

// Size is the number of bytes needed to store a CRC of this model.
func (p Params) Size() int {
	return p.Width / 8
}

// Verify checks the model against its declared check value.
func (p Params) Verify() error {
	if err := p.Validate(); err != nil {
		return err
	}
	got := Reference(CheckInput, p)
	if got != p.Check&p.Mask() {
		return fmt.Errorf("%s: check value %#x, want %#x", p.Name, got, p.Check)
	}
	return nil
}

func (p Params) String() string {
	name := p.Name
	if name == "" {
		name = "custom"
	}
	return fmt.Sprintf("%s(width=%d poly=%#x init=%#x xorout=%#x refin=%v refout=%v)",
		name, p.Width, p.Poly, p.Init, p.XorOut, p.RefIn, p.RefOut)
}

// Well known models, named after the CRC RevEng catalogue.
var (
	CRC8 = Params{Width: 8, Poly: 0x07, Check: 0xf4, Name: "CRC-8"}
	// Dallas/Maxim 1-Wire
	CRC8Maxim = Params{Width: 8, Poly: 0x31, RefIn: true, RefOut: true, Check: 0xa1, Name: "CRC-8/MAXIM"}

	CRC16CCITTFalse = Params{Width: 16, Poly: 0x1021, Init: 0xffff, Check: 0x29b1, Name: "CRC-16/CCITT-FALSE"}
	CRC16ARC        = Params{Width: 16, Poly: 0x8005, RefIn: true, RefOut: true, Check: 0xbb3d, Name: "CRC-16/ARC"}
	// HDLC, AX.25
	CRC16X25    = Params{Width: 16, Poly: 0x1021, Init: 0xffff, XorOut: 0xffff, RefIn: true, RefOut: true, Check: 0x906e, Name: "CRC-16/X-25"}
	CRC16Kermit = Params{Width: 16, Poly: 0x1021, RefIn: true, RefOut: true, Check: 0x2189, Name: "CRC-16/KERMIT"}
	CRC16XModem = Params{Width: 16, Poly: 0x1021, Check: 0x31c3, Name: "CRC-16/XMODEM"}
	CRC16M17    = Params{Width: 16, Poly: 0x5935, Init: 0xffff, Check: 0x772b, Name: "CRC-16/M17"}

	CRC24OpenPGP = Params{Width: 24, Poly: 0x864cfb, Init: 0xb704ce, Check: 0x21cf02, Name: "CRC-24/OPENPGP"}

	CRC32        = Params{Width: 32, Poly: 0x04c11db7, Init: 0xffffffff, XorOut: 0xffffffff, RefIn: true, RefOut: true, Check: 0xcbf43926, Name: "CRC-32"}
	CRC32C       = Params{Width: 32, Poly: 0x1edc6f41, Init: 0xffffffff, XorOut: 0xffffffff, RefIn: true, RefOut: true, Check: 0xe3069283, Name: "CRC-32C"}
	CRC32BZIP2   = Params{Width: 32, Poly: 0x04c11db7, Init: 0xffffffff, XorOut: 0xffffffff, Check: 0xfc891918, Name: "CRC-32/BZIP2"}
	CRC32MPEG2   = Params{Width: 32, Poly: 0x04c11db7, Init: 0xffffffff, Check: 0x0376e6e7, Name: "CRC-32/MPEG-2"}
	CRC64ECMA182 = Params{Width: 64, Poly: 0x42f0e1eba9ea3693, Check: 0x6c40df5f0b497347, Name: "CRC-64/ECMA-182"}
	CRC64XZ      = Params{Width: 64, Poly: 0x42f0e1eba9ea3693, Init: ^uint64(0), XorOut: ^uint64(0), RefIn: true, RefOut: true, Check: 0x995dc9bbdf1939fa, Name: "CRC-64/XZ"}
)

var Presets = []Params{
	CRC8, CRC8Maxim,
	CRC16CCITTFalse, CRC16ARC, CRC16X25, CRC16Kermit, CRC16XModem, CRC16M17,
	CRC24OpenPGP,
	CRC32, CRC32C, CRC32BZIP2, CRC32MPEG2,
	CRC64ECMA182, CRC64XZ,
}

// Lookup finds a preset by name. Case, '-', '_' and '/' are ignored, so
// "crc32c", "CRC-32C" and "crc_32c" all match.
func Lookup(name string) (Params, bool) {
	want := normalizeName(name)
	for _, p := range Presets {
		if normalizeName(p.Name) == want {
			return p, true
		}
	}
	return Params{}, false
}

func normalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '/', ' ':
			return -1
		}
		return r
	}, strings.ToUpper(s))
}
