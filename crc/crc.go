// Package crc implements a parameterised CRC engine for widths from 8 to 64
// bits in multiples of 8.
//
// The register is always shifted MSB-first. Reflected input is handled by
// reversing each byte before it is mixed in, and a reflected result is
// reversed within Width before XorOut is applied.
package crc

import (
	"math/bits"

	"github.com/sigurn/crc16"
	"golang.org/x/exp/constraints"
)

// Table holds the precomputed byte table for a model.
type Table struct {
	params Params
	mask   uint64
	shift  int // Width - 8
	data   [256]uint64
	t16    *crc16.Table
}

// MakeTable builds the lookup table for p. 16-bit models are delegated to
// github.com/sigurn/crc16.
func MakeTable(p Params) (*Table, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Poly &= p.Mask()
	p.Init &= p.Mask()
	p.XorOut &= p.Mask()
	t := &Table{
		params: p,
		mask:   p.Mask(),
		shift:  p.Width - 8,
	}
	if p.Width == 16 {
		t.t16 = crc16.MakeTable(crc16.Params{
			Poly:   uint16(p.Poly),
			Init:   uint16(p.Init),
			RefIn:  p.RefIn,
			RefOut: p.RefOut,
			XorOut: uint16(p.XorOut),
			Name:   p.Name,
		})
		return t, nil
	}
	top := uint64(1) << (p.Width - 1)
	for n := range 256 {
		crc := uint64(n) << t.shift
		for range 8 {
			if crc&top != 0 {
				crc = crc<<1 ^ p.Poly
			} else {
				crc <<= 1
			}
		}
		t.data[n] = crc & t.mask
	}
	return t, nil
}

// Params returns the model with Poly, Init and XorOut masked to Width.
func (t *Table) Params() Params {
	return t.params
}

// Init returns the initial register value.
func Init(t *Table) uint64 {
	return t.params.Init
}

// Update mixes data into the running register crc.
func Update(crc uint64, data []byte, t *Table) uint64 {
	if t.t16 != nil {
		return uint64(crc16.Update(uint16(crc), data, t.t16))
	}
	for _, d := range data {
		if t.params.RefIn {
			d = bits.Reverse8(d)
		}
		crc = (crc<<8 ^ t.data[byte(crc>>t.shift)^d]) & t.mask
	}
	return crc
}

// Complete applies output reflection and then the final XOR.
func Complete(crc uint64, t *Table) uint64 {
	if t.t16 != nil {
		return uint64(crc16.Complete(uint16(crc), t.t16))
	}
	if t.params.RefOut {
		crc = reverse(crc, t.params.Width)
	}
	return (crc ^ t.params.XorOut) & t.mask
}

// Checksum returns the CRC of data.
func Checksum(data []byte, t *Table) uint64 {
	return Complete(Update(Init(t), data, t), t)
}

// Reference computes the CRC of data one bit at a time. It is slow and is
// kept as the definition the table driven path must agree with.
func Reference(data []byte, p Params) uint64 {
	mask := p.Mask()
	top := uint64(1) << (p.Width - 1)
	poly := p.Poly & mask
	reg := p.Init & mask
	for _, d := range data {
		if p.RefIn {
			d = reverse(d, 8)
		}
		for i := 7; i >= 0; i-- {
			if (d>>i)&1 != 0 {
				reg ^= top
			}
			out := reg & top
			reg = (reg << 1) & mask
			if out != 0 {
				reg ^= poly
			}
		}
	}
	if p.RefOut {
		reg = reverse(reg, p.Width)
	}
	return (reg ^ p.XorOut) & mask
}

// reverse reverses the low width bits of v.
func reverse[T constraints.Unsigned](v T, width int) T {
	return T(bits.Reverse64(uint64(v)) >> (64 - width))
}
