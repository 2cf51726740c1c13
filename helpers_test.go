package nrf24node_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	nrf "github.com/michcald/nrf24node"
	"github.com/michcald/nrf24node/nrf24sim"
)

func TestMain(m *testing.M) {
	nrf.SetLogger(nil)
	os.Exit(m.Run())
}

// newDevice returns a configured device on a simulated chip with an empty trace.
func newDevice(t *testing.T, mods ...func(*nrf.HardwareConfig)) (*nrf.Device, *nrf24sim.Chip) {
	t.Helper()
	chip := nrf24sim.New()
	hw := nrf.HardwareConfig{
		Bus:   chip,
		CSN:   chip.CSN(),
		CE:    chip.CE(),
		IRQ:   chip.IRQ(),
		Sleep: chip.Sleep,
	}
	for _, mod := range mods {
		mod(&hw)
	}
	dev, err := nrf.NewWithHardware(hw)
	require.NoError(t, err)
	chip.ResetTrace()
	return dev, chip
}

// frames returns the bytes clocked out inside each chip-select frame.
func frames(trace []nrf24sim.Event) [][]byte {
	var (
		out [][]byte
		cur []byte
		in  bool
	)
	for _, e := range trace {
		switch e.Kind {
		case nrf24sim.EventCSN:
			if e.Level == nrf.Low {
				in, cur = true, []byte{}
			} else if in {
				out = append(out, cur)
				in = false
			}
		case nrf24sim.EventTransfer:
			if in {
				cur = append(cur, e.Out)
			}
		}
	}
	return out
}

func sleep(d time.Duration) nrf24sim.Event {
	return nrf24sim.Event{Kind: nrf24sim.EventSleep, Delay: d}
}

func csn(l nrf.Level) nrf24sim.Event {
	return nrf24sim.Event{Kind: nrf24sim.EventCSN, Level: l}
}

func ce(l nrf.Level) nrf24sim.Event {
	return nrf24sim.Event{Kind: nrf24sim.EventCE, Level: l}
}

func xfer(out, in byte) nrf24sim.Event {
	return nrf24sim.Event{Kind: nrf24sim.EventTransfer, Out: out, In: in}
}

// fakePin records the levels driven on it.
type fakePin struct {
	levels []nrf.Level
	err    error
}

func (p *fakePin) Out(l nrf.Level) error {
	p.levels = append(p.levels, l)
	return p.err
}

func (p *fakePin) In(nrf.Pull) error            { return nil }
func (p *fakePin) Read() nrf.Level              { return nrf.High }
func (p *fakePin) Watch(nrf.Edge, func()) error { return nil }
func (p *fakePin) Unwatch() error               { return nil }

// busFunc adapts a function to nrf.Bus.
type busFunc func(w byte) (byte, error)

func (f busFunc) Transfer(w byte) (byte, error) { return f(w) }

// hookPin wraps a pin so a test can intercept Out and Unwatch. A hook
// returning an error stops the call from reaching the wrapped pin.
type hookPin struct {
	nrf.Pin
	out     func(l nrf.Level) error
	unwatch func() error
}

func (p *hookPin) Out(l nrf.Level) error {
	if p.out != nil {
		if err := p.out(l); err != nil {
			return err
		}
	}
	return p.Pin.Out(l)
}

func (p *hookPin) Unwatch() error {
	if p.unwatch != nil {
		if err := p.unwatch(); err != nil {
			return err
		}
	}
	return p.Pin.Unwatch()
}
