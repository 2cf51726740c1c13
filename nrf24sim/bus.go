package nrf24sim

import (
	"errors"

	nrf "github.com/michcald/nrf24node"
)

// Transfer implements nrf24node.Bus. The first byte of a transaction is the
// command and is answered with STATUS.
func (c *Chip) Transfer(w byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var r byte
	if c.csn == nrf.High {
		// The chip ignores the bus while deselected; MISO floats high.
		c.stray++
		r = 0xFF
	} else {
		if c.pos == 0 {
			c.cmd = w
			r = c.status()
		} else {
			r = c.data(w)
		}
		c.pos++
	}
	c.record(Event{Kind: EventTransfer, Out: w, In: r})
	return r, nil
}

// data handles data byte c.pos of the current command.
func (c *Chip) data(w byte) byte {
	i := c.pos - 1
	ops := nrf.NRF24L01
	switch {
	case c.cmd&^ops.RegisterMask == ops.ReadRegister:
		reg := nrf.Register(c.cmd & ops.RegisterMask)
		if a, ok := c.addrs[reg]; ok {
			if i < len(a) {
				return a[i]
			}
			return 0
		}
		return c.readReg(reg)
	case c.cmd&^ops.RegisterMask == ops.WriteRegister:
		c.writeReg(nrf.Register(c.cmd&ops.RegisterMask), i, w)
	case c.cmd == ops.ReadRxPayload:
		if len(c.rxFIFO) == 0 {
			return 0
		}
		c.rxRead = true
		if p := c.rxFIFO[0]; i < len(p) {
			return p[i]
		}
	case c.cmd == ops.WriteTxPayload:
		c.loaded = append(c.loaded, w)
	}
	return 0
}

// end completes the transaction on CSN rising. Call with lock held.
func (c *Chip) end() {
	ops := nrf.NRF24L01
	if c.pos > 0 {
		switch c.cmd {
		case ops.FlushTX:
			c.txFIFO = nil
		case ops.FlushRX:
			c.rxFIFO = nil
		case ops.ReadRxPayload:
			if c.rxRead {
				c.rxFIFO = c.rxFIFO[1:]
			}
		case ops.WriteTxPayload:
			if len(c.loaded) > 0 && len(c.txFIFO) < fifoDepth {
				c.txFIFO = append(c.txFIFO, c.loaded)
			}
		}
	}
	c.pos, c.cmd, c.loaded, c.rxRead = 0, 0, nil, false
}

// --- Pins ---

// CSN returns the chip-select pin.
func (c *Chip) CSN() nrf.Pin { return &csnPin{c} }

// CE returns the chip-enable pin.
func (c *Chip) CE() nrf.Pin { return &cePin{c} }

// IRQ returns the active-low interrupt pin.
func (c *Chip) IRQ() nrf.Pin { return &irqPin{c} }

var errInputOnly = errors.New("nrf24sim: IRQ is an output of the chip")

type csnPin struct{ c *Chip }

func (p *csnPin) Out(l nrf.Level) error {
	c := p.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(Event{Kind: EventCSN, Level: l})
	if c.csn == nrf.Low && l == nrf.High {
		c.end()
	}
	if c.csn == nrf.High && l == nrf.Low {
		c.pos = 0
	}
	c.csn = l
	return nil
}

func (p *csnPin) In(nrf.Pull) error            { return nil }
func (p *csnPin) Read() nrf.Level              { return p.c.level(&p.c.csn) }
func (p *csnPin) Watch(nrf.Edge, func()) error { return nil }
func (p *csnPin) Unwatch() error               { return nil }

type cePin struct{ c *Chip }

func (p *cePin) Out(l nrf.Level) error {
	c := p.c
	c.mu.Lock()
	c.record(Event{Kind: EventCE, Level: l})
	rising := c.ce == nrf.Low && l == nrf.High
	c.ce = l

	var (
		handler func()
		notify  func([]byte)
		sent    []byte
	)
	if rising {
		handler, notify, sent = c.transmit()
	}
	c.mu.Unlock()

	// The driver holds its own lock while pulsing CE, so handlers run
	// asynchronously as the real IRQ watcher would.
	if handler != nil {
		go handler()
	}
	if notify != nil {
		notify(append([]byte(nil), sent...))
	}
	return nil
}

func (p *cePin) In(nrf.Pull) error            { return nil }
func (p *cePin) Read() nrf.Level              { return p.c.level(&p.c.ce) }
func (p *cePin) Watch(nrf.Edge, func()) error { return nil }
func (p *cePin) Unwatch() error               { return nil }

type irqPin struct{ c *Chip }

func (p *irqPin) Out(nrf.Level) error { return errInputOnly }
func (p *irqPin) In(nrf.Pull) error   { return nil }

func (p *irqPin) Read() nrf.Level {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	return nrf.Level(!p.c.irqPending())
}

func (p *irqPin) Watch(edge nrf.Edge, handler func()) error {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	p.c.irqEdge, p.c.irqHandler = edge, handler
	return nil
}

func (p *irqPin) Unwatch() error {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	p.c.irqEdge, p.c.irqHandler = nrf.NoEdge, nil
	return nil
}

func (c *Chip) level(l *nrf.Level) nrf.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *l
}
