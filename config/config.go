// Package config loads crc-check settings from an INI or YAML file.
//
//	[crc]
//	preset            = CRC-32C      ; optional, other keys override it
//	num_bits          = 32
//	poly              = 0x1EDC6F41
//	initial_value     = 0xFFFFFFFF
//	final_xor         = 0xFFFFFFFF
//	input_reflected   = true
//	result_reflected  = true
//	swap_endianness   = true
//	discard_crc       = true
//	skip_header_bytes = 0
//
//	[io]
//	listen    = :7355
//	ok_dest   = 127.0.0.1:7356
//	fail_dest =
//	serial    = /dev/ttyUSB0
//	baud      = 115200
//	gpio_chip = gpiochip0
//	ok_line   = 17
//	fail_line = 27
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/icza/gog"
	"github.com/jancona/pducrc/crc"
	"github.com/jancona/pducrc/crccheck"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaud     = 115200
	DefaultGPIOChip = "gpiochip0"
)

type Settings struct {
	Preset string
	CRC    crccheck.Config
	IO     IO
}

type IO struct {
	Listen   string
	OkDest   string
	FailDest string
	Serial   string
	Baud     int
	GPIOChip string
	OkLine   int // -1 when unused
	FailLine int // -1 when unused
}

// Default returns CRC-32 with no header and the trailer kept.
func Default() Settings {
	return Settings{
		Preset: crc.CRC32.Name,
		CRC:    crccheck.FromParams(crc.CRC32),
		IO: IO{
			Baud:     DefaultBaud,
			GPIOChip: DefaultGPIOChip,
			OkLine:   -1,
			FailLine: -1,
		},
	}
}

// sections maps section name to key/value pairs, as read from either format.
type sections map[string]map[string]string

// Load reads path, choosing the format from its extension (.yaml or .yml
// for YAML, anything else INI), and validates the CRC configuration.
func Load(path string) (Settings, error) {
	var (
		secs sections
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		secs, err = readYAML(path)
	default:
		secs, err = readINI(path)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read config %s: %w", path, err)
	}
	s, err := secs.settings()
	if err != nil {
		return Settings{}, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

func readINI(path string) (sections, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	secs := sections{}
	for _, sec := range f.Sections() {
		if len(sec.Keys()) == 0 {
			continue
		}
		m := map[string]string{}
		for _, k := range sec.Keys() {
			m[k.Name()] = k.String()
		}
		secs[strings.ToLower(sec.Name())] = m
	}
	return secs, nil
}

func readYAML(path string) (sections, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	secs := sections{}
	if err := yaml.Unmarshal(b, &secs); err != nil {
		return nil, err
	}
	return secs, nil
}

func (secs sections) settings() (Settings, error) {
	s := Default()
	c := secs["crc"]
	name, hasPreset := c["preset"]
	hasPreset = hasPreset && name != ""
	if hasPreset {
		p, found := crc.Lookup(name)
		if !found {
			return Settings{}, fmt.Errorf("unknown CRC preset %q", name)
		}
		s.Preset = p.Name
		s.CRC = crccheck.FromParams(p)
	}
	custom := false
	var err error
	set := func(key string, fn func(string) error) {
		v, ok := c[key]
		if !ok || err != nil {
			return
		}
		if e := fn(v); e != nil {
			err = fmt.Errorf("crc.%s: %w", key, e)
		}
	}
	model := func(key string, fn func(string) error) {
		set(key, fn)
		_, ok := c[key]
		custom = custom || ok
	}
	model("num_bits", intValue(&s.CRC.NumBits))
	model("poly", uintValue(&s.CRC.Poly))
	model("initial_value", uintValue(&s.CRC.InitialValue))
	model("final_xor", uintValue(&s.CRC.FinalXor))
	model("input_reflected", boolValue(&s.CRC.InputReflected))
	model("result_reflected", boolValue(&s.CRC.ResultReflected))
	set("swap_endianness", boolValue(&s.CRC.SwapEndianness))
	set("discard_crc", boolValue(&s.CRC.DiscardCRC))
	set("skip_header_bytes", intValue(&s.CRC.SkipHeaderBytes))

	o := secs["io"]
	ioSet := func(key string, fn func(string) error) {
		v, ok := o[key]
		if !ok || err != nil {
			return
		}
		if e := fn(v); e != nil {
			err = fmt.Errorf("io.%s: %w", key, e)
		}
	}
	ioSet("listen", stringValue(&s.IO.Listen))
	ioSet("ok_dest", stringValue(&s.IO.OkDest))
	ioSet("fail_dest", stringValue(&s.IO.FailDest))
	ioSet("serial", stringValue(&s.IO.Serial))
	ioSet("baud", intValue(&s.IO.Baud))
	ioSet("gpio_chip", stringValue(&s.IO.GPIOChip))
	ioSet("ok_line", intValue(&s.IO.OkLine))
	ioSet("fail_line", intValue(&s.IO.FailLine))
	if err != nil {
		return Settings{}, err
	}

	if custom {
		s.Preset = gog.If(hasPreset, s.Preset+" (modified)", "custom")
	}
	if err := s.CRC.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ParseUint accepts decimal, 0x hex, 0o octal, 0b binary and '_' separators.
func ParseUint(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, 64)
}

func uintValue(dst *uint64) func(string) error {
	return func(s string) error {
		v, err := ParseUint(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func intValue(dst *int) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseInt(s, 0, 0)
		if err != nil {
			return err
		}
		*dst = int(v)
		return nil
	}
}

func boolValue(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func stringValue(dst *string) func(string) error {
	return func(s string) error {
		*dst = strings.TrimSpace(s)
		return nil
	}
}
