package link

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/jancona/pducrc/pdu"
)

// Longest accepted line, in hex characters.
const maxLineLen = 2 * 1024 * 1024

// HexLineSource reads one PDU per line, hex encoded. Whitespace and ':'
// between bytes are ignored. Blank lines and lines starting with '#' are
// skipped; lines that are not valid hex are logged and dropped.
type HexLineSource struct {
	r      io.Reader
	name   string
	source chan pdu.PDU
}

func NewHexLineSource(r io.Reader, name string, sourceSize int) *HexLineSource {
	return &HexLineSource{
		r:      r,
		name:   name,
		source: make(chan pdu.PDU, sourceSize),
	}
}

func (s *HexLineSource) Source() chan pdu.PDU {
	return s.source
}

// Run reads until EOF or a read error.
func (s *HexLineSource) Run() {
	defer close(s.source)
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLen)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		data, err := DecodeHexLine(line)
		if err != nil {
			log.Printf("[INFO] %s:%d: dropping line: %v", s.name, lineNo, err)
			continue
		}
		s.source <- stamp(data, fmt.Sprintf("%s:%d", s.name, lineNo))
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[ERROR] %s: read: %v", s.name, err)
	}
}

// Close closes the underlying reader when it is an io.Closer.
func (s *HexLineSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func DecodeHexLine(line string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ':':
			return -1
		}
		return r
	}, line)
	return hex.DecodeString(clean)
}

// HexLineSink writes one lower case hex line per PDU.
type HexLineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewHexLineSink(w io.Writer) *HexLineSink {
	return &HexLineSink{w: w}
}

func (s *HexLineSink) Send(p pdu.PDU) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, hex.EncodeToString(p.Data))
	return err
}

func (s *HexLineSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
