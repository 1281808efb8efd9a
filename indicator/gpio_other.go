//go:build !linux

package indicator

import (
	"fmt"
	"time"
)

func OpenGPIO(chip string, okOffset, failOffset int, width time.Duration) (*Indicator, error) {
	return nil, fmt.Errorf("indicator: GPIO unsupported OS (need linux)")
}
