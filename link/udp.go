package link

import (
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/jancona/pducrc/pdu"
)

const maxDatagram = 65535

// UDPSource turns each received datagram into one PDU.
type UDPSource struct {
	conn   *net.UDPConn
	source chan pdu.PDU
}

func NewUDPSource(listen string, sourceSize int) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return &UDPSource{
		conn:   conn,
		source: make(chan pdu.PDU, sourceSize),
	}, nil
}

func (s *UDPSource) Source() chan pdu.PDU {
	return s.source
}

func (s *UDPSource) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Run reads datagrams until the connection is closed.
func (s *UDPSource) Run() {
	defer close(s.source)
	buffer := make([]byte, maxDatagram)
	for {
		l, from, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("[ERROR] UDPSource.Run(): error reading from UDP: %v", err)
			}
			return
		}
		data := make([]byte, l)
		copy(data, buffer[:l])
		p := stamp(data, from.String())
		log.Printf("[DEBUG] UDPSource.Run(): %s from %s", p, from)
		s.source <- p
	}
}

func (s *UDPSource) Close() error {
	log.Print("[DEBUG] UDPSource.Close()")
	return s.conn.Close()
}

// UDPSink sends each PDU as one datagram to a fixed destination.
type UDPSink struct {
	dest string
	conn *net.UDPConn
}

func NewUDPSink(dest string) (*UDPSink, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &UDPSink{
		dest: dest,
		conn: conn,
	}, nil
}

func (s *UDPSink) Send(p pdu.PDU) error {
	if len(p.Data) > maxDatagram {
		return fmt.Errorf("%s too large for a datagram", p)
	}
	_, err := s.conn.Write(p.Data)
	if err != nil {
		return fmt.Errorf("send to %s: %w", s.dest, err)
	}
	return nil
}

func (s *UDPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
