package nrf24node

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// CaptureConfig configures the interrupt capture path.
type CaptureConfig struct {
	// Echo receives every captured byte, one write per byte.
	// Defaults to io.Discard.
	Echo io.Writer
	// Sentinel is the byte value that advances the received-byte counter.
	// Defaults to 0xAA if not provided.
	Sentinel byte
	// CountAll advances the counter on every captured byte instead of on
	// sentinel bytes only.
	CountAll bool
}

// Capture drains received payloads from the radio on the IRQ falling edge.
//
// The handler masks itself on entry and stays masked until EnableInterrupts
// is called; the node loop owns re-arming. The main loop must mask the
// capture before touching the radio: under TinyGo the handler runs in
// interrupt context and takes no locks.
type Capture struct {
	dev    *Device
	config CaptureConfig

	enabled  atomic.Bool
	attached atomic.Bool
	count    atomic.Uint32
	captures atomic.Uint64
	wake     chan struct{}

	mu      sync.Mutex // guards inbound
	inbound Payload
}

// NewCapture returns the capture path for dev. Interrupts start disabled.
func NewCapture(dev *Device, c CaptureConfig) *Capture {
	if c.Echo == nil {
		c.Echo = io.Discard
	}
	if c.Sentinel == 0 {
		c.Sentinel = Sentinel
	}
	return &Capture{
		dev:    dev,
		config: c,
		wake:   make(chan struct{}, 1),
	}
}

// Attach watches the IRQ pin for the falling edge.
func (c *Capture) Attach() error {
	irq := c.dev.config.IRQ
	if irq == nil {
		return fmt.Errorf("IRQ pin not configured")
	}
	if err := irq.In(PullUp); err != nil {
		return fmt.Errorf("failed to configure IRQ pin: %w", err)
	}
	if err := irq.Watch(FallingEdge, c.Handle); err != nil {
		return fmt.Errorf("failed to watch IRQ pin: %w", err)
	}
	c.attached.Store(true)
	return nil
}

// Detach stops watching the IRQ pin.
func (c *Capture) Detach() error {
	if c.dev.config.IRQ == nil {
		return nil
	}
	c.attached.Store(false)
	return c.dev.config.IRQ.Unwatch()
}

// Handle is the IRQ handler. It reads one payload from the RX FIFO,
// echoes and counts its bytes, and clears RX_DR. It does not restart
// listening.
func (c *Capture) Handle() {
	if !c.enabled.CompareAndSwap(true, false) {
		return
	}

	d := c.dev
	defer handlerLock(&d.mu)()

	// Stop listening so the FIFO does not change under the read.
	d.setCE(Low)

	unlock := handlerLock(&c.mu)
	d.regs.Select()
	d.regs.Settle()
	d.regs.Transfer(d.config.Opcodes.ReadRxPayload)
	d.regs.Settle()
	for i := range c.inbound {
		b := d.regs.Transfer(d.config.Opcodes.NOP)
		c.inbound[i] = b
		c.echo(b)
		if c.config.CountAll || b == c.config.Sentinel {
			c.advance()
		}
	}
	d.regs.Settle()
	d.regs.Deselect()
	d.regs.Settle()
	unlock()

	d.regs.Write(RegStatus, StatusDataReady)
	c.captures.Add(1)

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Capture) echo(b byte) {
	if _, err := c.config.Echo.Write([]byte{b}); err != nil {
		captureLog.Warn("debug echo failed: " + err.Error())
	}
}

// advance increments the counter, saturating at PayloadLen.
// Only the handler writes upward, and it cannot preempt itself.
func (c *Capture) advance() {
	if n := c.count.Load(); n < PayloadLen {
		c.count.Store(n + 1)
	}
}

// EnableInterrupts re-arms the handler. The IRQ line stays low until
// RX_DR is cleared, so no new edge follows a payload that arrived while
// masked; if the line is already low the handler runs here instead.
func (c *Capture) EnableInterrupts() {
	c.enabled.Store(true)
	if c.attached.Load() && c.dev.config.IRQ.Read() == Low {
		c.Handle()
	}
}

// DisableInterrupts masks the handler. Edges arriving while masked are
// dropped; EnableInterrupts picks up a payload still pending.
func (c *Capture) DisableInterrupts() {
	c.enabled.Store(false)
}

// InterruptsEnabled reports whether the handler is armed.
func (c *Capture) InterruptsEnabled() bool {
	return c.enabled.Load()
}

// Count returns the received-byte counter.
func (c *Capture) Count() int {
	return int(c.count.Load())
}

// Reset zeroes the received-byte counter. Call it with interrupts disabled.
func (c *Capture) Reset() {
	c.count.Store(0)
}

// Captures returns how many payloads the handler has drained.
func (c *Capture) Captures() uint64 {
	return c.captures.Load()
}

// Payload returns a copy of the last captured payload.
// The handler is masked while the copy is taken.
func (c *Capture) Payload() Payload {
	armed := c.enabled.Swap(false)
	c.mu.Lock()
	p := c.inbound
	c.mu.Unlock()
	if armed {
		c.EnableInterrupts()
	}
	return p
}

// Wake is signalled after each capture.
func (c *Capture) Wake() <-chan struct{} {
	return c.wake
}
