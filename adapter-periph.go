//go:build !tinygo

package nrf24node

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// realPin wraps a gpio.PinIO to satisfy the Pin interface.
type realPin struct {
	gpio.PinIO
	stopWatch chan struct{}
}

// Level and gpio.Level share the same bool encoding.
func (p *realPin) Out(l Level) error {
	return p.PinIO.Out(gpio.Level(l))
}

func (p *realPin) In(pull Pull) error {
	return p.PinIO.In(periphPull(pull), gpio.NoEdge)
}

func (p *realPin) Read() Level {
	return Level(p.PinIO.Read())
}

func (p *realPin) Watch(edge Edge, handler func()) error {
	var pEdge gpio.Edge
	switch edge {
	case RisingEdge:
		pEdge = gpio.RisingEdge
	case FallingEdge:
		pEdge = gpio.FallingEdge
	case BothEdges:
		pEdge = gpio.BothEdges
	default:
		pEdge = gpio.NoEdge
	}

	// Ensure we are in input mode with the correct edge detection
	if err := p.PinIO.In(gpio.PullUp, pEdge); err != nil {
		return err
	}

	stop := make(chan struct{})
	p.stopWatch = stop

	go func() {
		for {
			// -1 blocks until an edge or until the edge detection is disabled.
			edge := p.PinIO.WaitForEdge(-1)
			select {
			case <-stop:
				return
			default:
			}
			if edge {
				handler()
			}
		}
	}()
	return nil
}

func (p *realPin) Unwatch() error {
	if p.stopWatch != nil {
		close(p.stopWatch)
		p.stopWatch = nil
	}
	// Disable edge detection
	return p.PinIO.In(gpio.PullUp, gpio.NoEdge)
}

func periphPull(pull Pull) gpio.Pull {
	switch pull {
	case PullFloat:
		return gpio.Float
	case PullDown:
		return gpio.PullDown
	case PullUp:
		return gpio.PullUp
	default:
		return gpio.PullNoChange
	}
}

// txer is the part of spi.Conn the bus needs.
type txer interface {
	Tx(w, r []byte) error
}

// spiBus moves one byte per Tx call on a connection opened with spi.NoCS,
// leaving chip-select to the register layer.
type spiBus struct {
	conn txer
	w, r [1]byte
}

func (b *spiBus) Transfer(w byte) (byte, error) {
	b.w[0] = w
	if err := b.conn.Tx(b.w[:], b.r[:]); err != nil {
		return 0, err
	}
	return b.r[0], nil
}

// BitBangPins selects the GPIOs (BCM numbering) of a software SPI bus.
type BitBangPins struct {
	SCLK, MOSI, MISO int
	// Hz is the target clock. Zero toggles as fast as the GPIO driver allows.
	Hz int
}

// Config holds the configuration for the Linux/periph.io driver.
type Config struct {
	RadioConfig
	// CEPin is the GPIO pin number (BCM numbering) for the Chip Enable (CE) pin.
	// Defaults to 25 if not provided.
	CEPin int
	// CSNPin is the GPIO pin number driven as chip-select.
	// Defaults to 8 (SPI0 CE0) if not provided.
	CSNPin int
	// IRQPin is the GPIO pin number (BCM numbering) for the Interrupt Request (IRQ) pin.
	// Defaults to 24 if not provided.
	IRQPin int
	// SpiBusPath is the path to the SPI bus (e.g., "/dev/spidev0.0").
	// Defaults to "/dev/spidev0.0" if not provided. Ignored with BitBang.
	SpiBusPath string
	// SpiClockHz is the SPI clock frequency in Hz.
	// Defaults to 1000000 (1MHz) if not provided.
	SpiClockHz int
	// BitBang replaces the SPI device with a software bus when set.
	BitBang *BitBangPins
	// MaxPolls bounds transmit completion polling. Zero polls forever.
	MaxPolls int
}

// OpenPin opens a GPIO by BCM number. The periph.io host must be initialized,
// which New does.
func OpenPin(n int) (Pin, error) {
	name := fmt.Sprintf("GPIO%d", n)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to open pin %s", name)
	}
	return &realPin{PinIO: p}, nil
}

// New creates and initializes a new NRF24L01 driver for Linux systems.
// It applies configuration defaults, initializes the GPIO and SPI interfaces using periph.io,
// and configures the radio module.
// It returns the initialized driver or an error if hardware initialization fails.
func New(c Config) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}

	if c.CEPin == 0 {
		c.CEPin = 25
	}
	if c.CSNPin == 0 {
		c.CSNPin = 8
	}
	if c.IRQPin == 0 {
		c.IRQPin = 24
	}

	var pins [3]Pin
	for i, n := range []int{c.CEPin, c.CSNPin, c.IRQPin} {
		p, err := OpenPin(n)
		if err != nil {
			return nil, err
		}
		pins[i] = p
	}

	var (
		bus  Bus
		port spi.PortCloser
	)
	if c.BitBang != nil {
		var ps [3]Pin
		for i, n := range []int{c.BitBang.SCLK, c.BitBang.MOSI, c.BitBang.MISO} {
			p, err := OpenPin(n)
			if err != nil {
				return nil, err
			}
			ps[i] = p
		}
		bb, err := NewBitBangBus(ps[0], ps[1], ps[2], c.BitBang.Hz, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to set up bit-bang bus: %w", err)
		}
		bus = bb
	} else {
		if c.SpiBusPath == "" {
			c.SpiBusPath = "/dev/spidev0.0"
		}
		if c.SpiClockHz == 0 {
			c.SpiClockHz = 1000000
		}
		var err error
		port, err = spireg.Open(c.SpiBusPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SPI port: %w", err)
		}
		// Mode 0, 8 bits, chip-select driven by hand.
		conn, err := port.Connect(physic.Frequency(c.SpiClockHz)*physic.Hertz, spi.Mode0|spi.NoCS, 8)
		if err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to create SPI connection: %w", err)
		}
		bus = &spiBus{conn: conn}
	}

	dev, err := NewWithHardware(HardwareConfig{
		RadioConfig: c.RadioConfig,
		Bus:         bus,
		CE:          pins[0],
		CSN:         pins[1],
		IRQ:         pins[2],
		MaxPolls:    c.MaxPolls,
	})
	if err != nil {
		if port != nil {
			err = errors.Join(err, port.Close())
		}
		return nil, err
	}

	// Store the port closer so we can close it later
	if port != nil {
		dev.nrfPort = port
	}
	return dev, nil
}
