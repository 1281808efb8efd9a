// Package link moves PDUs between crc-check and the outside world: UDP
// datagrams, hex text lines on a stream, or a serial port carrying such lines.
package link

import (
	"log"

	"github.com/google/uuid"
	"github.com/jancona/pducrc/pdu"
)

// Source produces PDUs on a channel, which is closed when Run returns.
type Source interface {
	Source() chan pdu.PDU
	Run()
	Close() error
}

type Sink interface {
	Send(pdu.PDU) error
	Close() error
}

// Pump sends everything received on ch to s until ch is closed. Send errors
// are logged and do not stop the pump. s may be nil to discard.
func Pump(ch chan pdu.PDU, s Sink, name string) {
	for p := range ch {
		if s == nil {
			log.Printf("[DEBUG] %s: discarding %s", name, p)
			continue
		}
		if err := s.Send(p); err != nil {
			log.Printf("[ERROR] %s: sending %s: %v", name, p, err)
		}
	}
}

func stamp(data []byte, source string) pdu.PDU {
	return pdu.PDU{
		Data: data,
		Meta: pdu.Meta{
			pdu.MetaID:     uuid.NewString(),
			pdu.MetaSource: source,
		},
	}
}
