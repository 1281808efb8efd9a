package crc

import "hash"

type digest struct {
	crc uint64
	tab *Table
}

// New creates a hash.Hash64 computing the CRC described by t. Sum appends
// the CRC big-endian in Width/8 bytes.
func New(t *Table) hash.Hash64 {
	return &digest{crc: Init(t), tab: t}
}

func (d *digest) Size() int { return d.tab.params.Size() }

func (d *digest) BlockSize() int { return 1 }

func (d *digest) Reset() { d.crc = Init(d.tab) }

func (d *digest) Write(p []byte) (n int, err error) {
	d.crc = Update(d.crc, p, d.tab)
	return len(p), nil
}

func (d *digest) Sum64() uint64 { return Complete(d.crc, d.tab) }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum64()
	for i := d.Size() - 1; i >= 0; i-- {
		in = append(in, byte(s>>(8*i)))
	}
	return in
}
