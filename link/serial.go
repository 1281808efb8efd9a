package link

import (
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"
)

// OpenSerial opens a TNC or modem serial port that emits hex PDU lines.
func OpenSerial(port string, baudRate int) (io.ReadWriteCloser, error) {
	log.Printf("[DEBUG] Opening serial port %s at %d baud", port, baudRate)
	mode := &serial.Mode{
		BaudRate: baudRate,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", port, err)
	}
	return p, nil
}
