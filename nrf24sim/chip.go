// Package nrf24sim simulates an nRF24L01 at the pin and bus level.
//
// A Chip provides the Bus, CSN, CE and IRQ pins a nrf24node.Device needs.
// It decodes the command set, keeps a register file and the two FIFOs, and
// records every pin edge, transfer and delay in a trace so tests can check
// framing and timing without hardware.
package nrf24sim

import (
	"errors"
	"sync"
	"time"

	nrf "github.com/michcald/nrf24node"
)

var (
	// ErrNotListening is returned by Deliver when the radio could not have
	// heard the packet.
	ErrNotListening = errors.New("nrf24sim: radio is not listening")
	// ErrPayloadWidth is returned by Deliver when the packet does not match
	// the pipe 0 payload width.
	ErrPayloadWidth = errors.New("nrf24sim: payload width mismatch")
	// ErrRXFull is returned by Deliver when the RX FIFO already holds three
	// payloads. The packet is dropped as on air.
	ErrRXFull = errors.New("nrf24sim: RX FIFO full")
)

const (
	fifoDepth = 3

	regCount = 0x20
)

// EventKind identifies a trace entry.
type EventKind uint8

const (
	EventCSN EventKind = iota
	EventCE
	EventTransfer
	EventSleep
)

// Event is one trace entry. Level is set for pin events, Out and In for
// transfers, Delay for sleeps.
type Event struct {
	Kind  EventKind
	Level nrf.Level
	Out   byte
	In    byte
	Delay time.Duration
}

// Chip is a simulated nRF24L01. The zero value is not usable; call New.
type Chip struct {
	mu sync.Mutex

	regs  [regCount]byte
	addrs map[nrf.Register]*nrf.Address

	txFIFO [][]byte
	rxFIFO [][]byte

	csn, ce nrf.Level

	// Current transaction, valid while CSN is low.
	cmd     byte
	pos     int
	loaded  []byte
	rxRead  bool
	stray   int
	tracing bool
	trace   []Event

	sent       [][]byte
	failTX     bool
	onTransmit func(p []byte)

	irqHandler func()
	irqEdge    nrf.Edge
}

// New returns a chip in its power-on reset state with tracing enabled.
func New() *Chip {
	c := &Chip{tracing: true, csn: nrf.High}
	c.reset()
	return c
}

func (c *Chip) reset() {
	c.regs = [regCount]byte{}
	c.regs[nrf.RegConfig] = nrf.ConfigEnCRC
	c.regs[nrf.RegEnAA] = 0x3F
	c.regs[nrf.RegEnRxAddr] = 0x03
	c.regs[nrf.RegSetupAW] = 0x03
	c.regs[nrf.RegSetupRetr] = 0x03
	c.regs[nrf.RegRFCh] = 0x02
	c.regs[nrf.RegRFSetup] = 0x0E
	c.regs[nrf.RegStatus] = 0x0E
	c.regs[0x0C], c.regs[0x0D], c.regs[0x0E], c.regs[0x0F] = 0xC3, 0xC4, 0xC5, 0xC6
	c.addrs = map[nrf.Register]*nrf.Address{
		nrf.RegRxAddrP0: {0xE7, 0xE7, 0xE7, 0xE7, 0xE7},
		nrf.RegRxAddrP1: {0xC2, 0xC2, 0xC2, 0xC2, 0xC2},
		nrf.RegTxAddr:   {0xE7, 0xE7, 0xE7, 0xE7, 0xE7},
	}
	c.txFIFO, c.rxFIFO = nil, nil
}

// --- Introspection ---

// SetTracing turns event recording on or off.
func (c *Chip) SetTracing(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracing = on
}

// Trace returns a copy of the recorded events.
func (c *Chip) Trace() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.trace...)
}

// ResetTrace discards the recorded events.
func (c *Chip) ResetTrace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trace = nil
}

// Register returns a single-byte register as the chip holds it.
func (c *Chip) Register(reg nrf.Register) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readReg(reg)
}

// SetRegister overwrites a register behind the driver's back.
func (c *Chip) SetRegister(reg nrf.Register, v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[reg&(regCount-1)] = v
}

// Address returns a five byte address register.
func (c *Chip) Address(reg nrf.Register) nrf.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.addrs[reg]; ok {
		return *a
	}
	return nrf.Address{}
}

// TXFIFO returns the payloads waiting to be sent.
func (c *Chip) TXFIFO() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.txFIFO)
}

// RXFIFO returns the payloads waiting to be read.
func (c *Chip) RXFIFO() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.rxFIFO)
}

// Sent returns every payload put on air, oldest first.
func (c *Chip) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.sent)
}

// ChipEnabled reports the CE level.
func (c *Chip) ChipEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ce == nrf.High
}

// Selected reports whether CSN is asserted.
func (c *Chip) Selected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csn == nrf.Low
}

// StrayTransfers counts transfers clocked while CSN was high.
func (c *Chip) StrayTransfers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stray
}

// FailTransmit makes following transmissions end in MAX_RT instead of TX_DS.
func (c *Chip) FailTransmit(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failTX = fail
}

// OnTransmit registers fn to receive every payload put on air.
// fn runs without the chip lock held.
func (c *Chip) OnTransmit(fn func(p []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTransmit = fn
}

// Sleep records a delay in the trace instead of waiting.
// Use it as nrf24node.HardwareConfig.Sleep.
func (c *Chip) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(Event{Kind: EventSleep, Delay: d})
}

func (c *Chip) record(e Event) {
	if c.tracing {
		c.trace = append(c.trace, e)
	}
}

func clone(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	for i, p := range in {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

// --- Register file ---

func (c *Chip) status() byte {
	s := c.regs[nrf.RegStatus] & nrf.StatusIRQMask
	if len(c.rxFIFO) == 0 {
		s |= nrf.StatusPipeMask
	}
	if len(c.txFIFO) >= fifoDepth {
		s |= nrf.StatusTXFull
	}
	return s
}

func (c *Chip) fifoStatus() byte {
	var v byte
	switch {
	case len(c.rxFIFO) == 0:
		v |= 1 << 0 // RX_EMPTY
	case len(c.rxFIFO) >= fifoDepth:
		v |= 1 << 1 // RX_FULL
	}
	switch {
	case len(c.txFIFO) == 0:
		v |= 1 << 4 // TX_EMPTY
	case len(c.txFIFO) >= fifoDepth:
		v |= 1 << 5 // TX_FULL
	}
	return v
}

func (c *Chip) readReg(reg nrf.Register) byte {
	switch reg {
	case nrf.RegStatus:
		return c.status()
	case nrf.RegFIFOStatus:
		return c.fifoStatus()
	}
	if a, ok := c.addrs[reg]; ok {
		return a[0]
	}
	return c.regs[reg&(regCount-1)]
}

// writeReg applies data byte i of a W_REGISTER transaction.
func (c *Chip) writeReg(reg nrf.Register, i int, v byte) {
	if a, ok := c.addrs[reg]; ok {
		if i < len(a) {
			a[i] = v
		}
		return
	}
	if i > 0 {
		return
	}
	switch reg {
	case nrf.RegStatus:
		// Interrupt flags clear on 1.
		c.regs[reg] &^= v & nrf.StatusIRQMask
	case nrf.RegFIFOStatus, nrf.RegObserveTX, nrf.RegRPD:
		// read-only
	default:
		c.regs[reg&(regCount-1)] = v
	}
}

func (c *Chip) config(bit byte) bool {
	return c.regs[nrf.RegConfig]&bit != 0
}

func (c *Chip) listening() bool {
	return c.ce == nrf.High && c.config(nrf.ConfigPwrUp) && c.config(nrf.ConfigPrimRX)
}

// irqPending reports whether IRQ is driven low.
func (c *Chip) irqPending() bool {
	s := c.regs[nrf.RegStatus]
	cfg := c.regs[nrf.RegConfig]
	return (s&nrf.StatusDataReady != 0 && cfg&nrf.ConfigMaskRxDR == 0) ||
		(s&nrf.StatusDataSent != 0 && cfg&nrf.ConfigMaskTxDS == 0) ||
		(s&nrf.StatusMaxRetries != 0 && cfg&nrf.ConfigMaskMaxRT == 0)
}

// raise sets status flags and returns the IRQ handler to call if the
// IRQ line fell.
func (c *Chip) raise(flags byte) func() {
	before := c.irqPending()
	c.regs[nrf.RegStatus] |= flags
	if !before && c.irqPending() && c.irqEdge != nrf.RisingEdge && c.irqEdge != nrf.NoEdge {
		return c.irqHandler
	}
	return nil
}

// --- Air side ---

// Deliver puts a packet from the peer into the RX FIFO, as if received on
// pipe 0. If RX_DR is unmasked and the IRQ pin is watched, the handler runs
// on the caller's goroutine before Deliver returns.
func (c *Chip) Deliver(p []byte) error {
	c.mu.Lock()
	if !c.listening() {
		c.mu.Unlock()
		return ErrNotListening
	}
	if w := int(c.regs[nrf.RegRxPwP0]); w != len(p) {
		c.mu.Unlock()
		return ErrPayloadWidth
	}
	if len(c.rxFIFO) >= fifoDepth {
		c.mu.Unlock()
		return ErrRXFull
	}
	c.rxFIFO = append(c.rxFIFO, append([]byte(nil), p...))
	handler := c.raise(nrf.StatusDataReady)
	c.mu.Unlock()

	if handler != nil {
		handler()
	}
	return nil
}

// transmit sends the head of the TX FIFO. Call with lock held.
func (c *Chip) transmit() (handler func(), notify func(p []byte), sent []byte) {
	if len(c.txFIFO) == 0 || !c.config(nrf.ConfigPwrUp) || c.config(nrf.ConfigPrimRX) {
		return nil, nil, nil
	}
	sent = c.txFIFO[0]
	c.txFIFO = c.txFIFO[1:]
	if c.failTX {
		// The payload stays in the FIFO after MAX_RT.
		c.txFIFO = append([][]byte{sent}, c.txFIFO...)
		return c.raise(nrf.StatusMaxRetries), nil, nil
	}
	c.sent = append(c.sent, sent)
	return c.raise(nrf.StatusDataSent), c.onTransmit, sent
}
