// Package crccheck verifies the CRC trailer at the end of a PDU and routes
// the PDU to an ok or fail output, and can append such a trailer.
//
// Any CRC whose size is a multiple of 8 bits between 8 and 64 bits is
// supported. The trailer is stored big-endian unless SwapEndianness is set.
package crccheck

import (
	"errors"
	"fmt"
	"log"

	"github.com/jancona/pducrc/crc"
	"github.com/jancona/pducrc/pdu"
)

var ErrInvalidConfig = errors.New("invalid CRC check configuration")

// Config is fixed when the Checker is built.
type Config struct {
	NumBits         int    // CRC size in bits
	Poly            uint64 // MSB-first notation
	InitialValue    uint64
	FinalXor        uint64
	InputReflected  bool // input bytes are processed LSB-first
	ResultReflected bool // register is reversed before FinalXor
	SwapEndianness  bool // trailer is little-endian in the PDU
	DiscardCRC      bool // strip the trailer from accepted PDUs
	SkipHeaderBytes int  // leading bytes excluded from the CRC
}

// FromParams builds a Config for a CRC model, with the PDU layout options
// left at their defaults.
func FromParams(p crc.Params) Config {
	return Config{
		NumBits:         p.Width,
		Poly:            p.Poly,
		InitialValue:    p.Init,
		FinalXor:        p.XorOut,
		InputReflected:  p.RefIn,
		ResultReflected: p.RefOut,
	}
}

func (c Config) Params() crc.Params {
	return crc.Params{
		Width:  c.NumBits,
		Poly:   c.Poly,
		Init:   c.InitialValue,
		XorOut: c.FinalXor,
		RefIn:  c.InputReflected,
		RefOut: c.ResultReflected,
	}
}

func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.SkipHeaderBytes < 0 {
		return fmt.Errorf("%w: skip_header_bytes %d is negative", ErrInvalidConfig, c.SkipHeaderBytes)
	}
	return nil
}

// Checker is safe for concurrent use.
type Checker struct {
	cfg   Config
	table *crc.Table
	size  int
}

func New(cfg Config) (*Checker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table, err := crc.MakeTable(cfg.Params())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Checker{
		cfg:   cfg,
		table: table,
		size:  cfg.NumBits / 8,
	}, nil
}

func (c *Checker) Config() Config {
	return c.cfg
}

// TrailerSize is the number of CRC bytes at the end of a PDU.
func (c *Checker) TrailerSize() int {
	return c.size
}

// Compute returns the CRC of data using the configured model. Header
// skipping is not applied.
func (c *Checker) Compute(data []byte) uint64 {
	return crc.Checksum(data, c.table)
}

// Check verifies the trailer of data. On success it returns the data to
// forward, which is a trimmed copy when DiscardCRC is set and data itself
// otherwise. On failure it returns data unmodified and false. PDUs too short
// to hold the header and trailer fail.
func (c *Checker) Check(data []byte) ([]byte, bool) {
	end := len(data) - c.size
	if end < c.cfg.SkipHeaderBytes {
		log.Printf("[DEBUG] crccheck: %d byte PDU shorter than header (%d) plus CRC (%d)",
			len(data), c.cfg.SkipHeaderBytes, c.size)
		return data, false
	}
	expected := crc.Checksum(data[c.cfg.SkipHeaderBytes:end], c.table)
	stored := c.readTrailer(data[end:])
	if expected != stored {
		log.Printf("[DEBUG] crccheck: CRC mismatch, computed %#0*x, stored %#0*x",
			c.size*2, expected, c.size*2, stored)
		return data, false
	}
	if c.cfg.DiscardCRC {
		out := make([]byte, end)
		copy(out, data[:end])
		return out, true
	}
	return data, true
}

// Process implements pdu.Transform.
func (c *Checker) Process(p pdu.PDU) pdu.Routed {
	data, ok := c.Check(p.Data)
	if !ok {
		return pdu.Routed{PDU: p, Outcome: pdu.Rejected}
	}
	return pdu.Routed{PDU: pdu.PDU{Data: data, Meta: p.Meta}, Outcome: pdu.Accepted}
}

// Append returns a copy of data with its CRC trailer appended, so that
// Check accepts the result.
func (c *Checker) Append(data []byte) ([]byte, error) {
	if len(data) < c.cfg.SkipHeaderBytes {
		return nil, fmt.Errorf("%d byte PDU shorter than %d byte header", len(data), c.cfg.SkipHeaderBytes)
	}
	sum := crc.Checksum(data[c.cfg.SkipHeaderBytes:], c.table)
	out := make([]byte, len(data), len(data)+c.size)
	copy(out, data)
	return c.appendTrailer(out, sum), nil
}

func (c *Checker) readTrailer(b []byte) uint64 {
	var v uint64
	if c.cfg.SwapEndianness {
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		return v
	}
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func (c *Checker) appendTrailer(b []byte, v uint64) []byte {
	if c.cfg.SwapEndianness {
		for i := 0; i < c.size; i++ {
			b = append(b, byte(v>>(8*i)))
		}
		return b
	}
	for i := c.size - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}
