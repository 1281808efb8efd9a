//go:build linux

package indicator

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// OpenGPIO requests the ok and fail lines on chip as outputs. A negative
// offset leaves that line unused.
func OpenGPIO(chip string, okOffset, failOffset int, width time.Duration) (*Indicator, error) {
	ok, err := requestLine(chip, okOffset)
	if err != nil {
		return nil, fmt.Errorf("request ok line: %w", err)
	}
	fail, err := requestLine(chip, failOffset)
	if err != nil {
		if ok != nil {
			err = errors.Join(err, ok.Close())
		}
		return nil, fmt.Errorf("request fail line: %w", err)
	}
	log.Printf("[DEBUG] indicator on %s: ok line %d, fail line %d", chip, okOffset, failOffset)
	return New(ok, fail, width), nil
}

func requestLine(chip string, offset int) (Line, error) {
	if offset < 0 {
		return nil, nil
	}
	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return l, nil
}
