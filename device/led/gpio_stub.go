//go:build !linux || (!arm && !arm64)

package led

import "fmt"

func openGPIO(pin int) (Indicator, error) {
	return nil, fmt.Errorf("led: gpio unsupported on this platform")
}

var openGPIOFn = openGPIO
