//go:build tinygo

package nrf24node

import (
	"machine"
)

// tinygoPin wraps a machine.Pin to satisfy the Pin interface.
type tinygoPin struct {
	pin machine.Pin
}

// TinyGoPin adapts a machine pin, for example a status LED.
func TinyGoPin(p machine.Pin) Pin {
	return &tinygoPin{pin: p}
}

func (p *tinygoPin) Out(l Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(l))
	return nil
}

func (p *tinygoPin) In(pull Pull) error {
	mode := machine.PinInput
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	}
	p.pin.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (p *tinygoPin) Read() Level {
	return Level(p.pin.Get())
}

func (p *tinygoPin) Watch(edge Edge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case RisingEdge:
		change = machine.PinRising
	case FallingEdge:
		change = machine.PinFalling
	case BothEdges:
		change = machine.PinToggle
	default:
		return nil
	}
	// The handler runs in interrupt context.
	return p.pin.SetInterrupt(change, func(machine.Pin) {
		handler()
	})
}

func (p *tinygoPin) Unwatch() error {
	return p.pin.SetInterrupt(0, nil)
}

// tinygoBus moves single bytes on a hardware SPI peripheral.
type tinygoBus struct {
	spi *machine.SPI
}

func (b *tinygoBus) Transfer(w byte) (byte, error) {
	return b.spi.Transfer(w)
}

// NewTinyGo creates a new NRF24L01 driver for TinyGo systems.
// spi must already be configured (mode 0). csn, ce and irq are driven
// directly; irq may be machine.NoPin when no capture path is needed.
func NewTinyGo(c RadioConfig, spi *machine.SPI, csn, ce, irq machine.Pin) (*Device, error) {
	hw := HardwareConfig{
		RadioConfig: c,
		Bus:         &tinygoBus{spi: spi},
		CSN:         TinyGoPin(csn),
		CE:          TinyGoPin(ce),
	}
	if irq != machine.NoPin {
		hw.IRQ = TinyGoPin(irq)
	}
	return NewWithHardware(hw)
}
