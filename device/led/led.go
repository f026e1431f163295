// Package led drives the gateway's status LED: lit while a received packet is
// being handed to the uplink, dark otherwise.
package led

import "fmt"

type State int

const (
	Idle State = iota
	Receiving
)

// Indicator shows gateway activity.
type Indicator interface {
	Set(State)
	Close() error
}

// Nop is used when no LED is configured.
type Nop struct{}

func (Nop) Set(State)    {}
func (Nop) Close() error { return nil }

// Open returns an indicator on BCM GPIO pin, or Nop when pin is 0.
func Open(pin int) (Indicator, error) {
	if pin == 0 {
		return Nop{}, nil
	}
	if pin < 0 {
		return nil, fmt.Errorf("led: invalid gpio pin %d", pin)
	}
	return openGPIOFn(pin)
}
