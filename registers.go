package nrf24node

import (
	"fmt"
	"time"
)

const (
	// AddressLen is the width of every radio address used by the node.
	AddressLen = 5
	// PayloadLen is the fixed payload width on pipe 0.
	PayloadLen = 8
	// Sentinel is the inbound byte value counted by the capture path.
	Sentinel = 0xAA
)

type (
	Address [AddressLen]byte
	Payload [PayloadLen]byte
)

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4])
}

func (p Payload) String() string {
	return fmt.Sprintf("% X", p[:])
}

// Register is a transceiver register address.
type Register byte

// NRF24 Register Addresses
const (
	RegConfig     Register = 0x00
	RegEnAA       Register = 0x01 // Auto Ack
	RegEnRxAddr   Register = 0x02
	RegSetupAW    Register = 0x03
	RegSetupRetr  Register = 0x04
	RegRFCh       Register = 0x05
	RegRFSetup    Register = 0x06
	RegStatus     Register = 0x07
	RegObserveTX  Register = 0x08
	RegRPD        Register = 0x09
	RegRxAddrP0   Register = 0x0A
	RegRxAddrP1   Register = 0x0B
	RegTxAddr     Register = 0x10
	RegRxPwP0     Register = 0x11 // Receive Payload Width for Data Pipe 0
	RegFIFOStatus Register = 0x17
	RegDynPD      Register = 0x1C
	RegFeature    Register = 0x1D
)

// CONFIG register bits
const (
	ConfigPrimRX    = 1 << 0
	ConfigPwrUp     = 1 << 1
	ConfigCRCO      = 1 << 2
	ConfigEnCRC     = 1 << 3
	ConfigMaskMaxRT = 1 << 4
	ConfigMaskTxDS  = 1 << 5
	ConfigMaskRxDR  = 1 << 6
)

// Status Register Bits
const (
	StatusTXFull     = 1 << 0 // TX_FULL
	StatusPipeMask   = 7 << 1 // RX_P_NO
	StatusMaxRetries = 1 << 4 // MAX_RT
	StatusDataSent   = 1 << 5 // TX_DS
	StatusDataReady  = 1 << 6 // RX_DR

	// StatusIRQMask covers the three interrupt flags. Writing 1s clears them.
	StatusIRQMask = StatusDataReady | StatusDataSent | StatusMaxRetries
)

// Status is a snapshot of the STATUS register.
type Status byte

func (s Status) DataReady() bool  { return s&StatusDataReady != 0 }
func (s Status) DataSent() bool   { return s&StatusDataSent != 0 }
func (s Status) MaxRetries() bool { return s&StatusMaxRetries != 0 }
func (s Status) TXFull() bool     { return s&StatusTXFull != 0 }

// Pipe returns the data pipe of the payload at the head of the RX FIFO.
// ok is false when the RX FIFO is empty.
func (s Status) Pipe() (pipe int, ok bool) {
	pipe = int(s&StatusPipeMask) >> 1
	return pipe, pipe < 6
}

func (s Status) String() string {
	pipe := "-"
	if p, ok := s.Pipe(); ok {
		pipe = fmt.Sprint(p)
	}
	return fmt.Sprintf("0x%02X(RX_DR=%t TX_DS=%t MAX_RT=%t pipe=%s TX_FULL=%t)",
		byte(s), s.DataReady(), s.DataSent(), s.MaxRetries(), pipe, s.TXFull())
}

// Opcodes is the command table of a transceiver.
// The register layer only talks to the chip through this table, so a
// compatible part with a different command set can be driven by swapping it.
type Opcodes struct {
	ReadRegister   byte
	WriteRegister  byte
	RegisterMask   byte
	ReadRxPayload  byte
	WriteTxPayload byte
	FlushTX        byte
	FlushRX        byte
	NOP            byte
}

// NRF24L01 is the command table of the nRF24L01 and nRF24L01+.
var NRF24L01 = Opcodes{
	ReadRegister:   0x00,
	WriteRegister:  0x20,
	RegisterMask:   0x1F,
	ReadRxPayload:  0x61,
	WriteTxPayload: 0xA0,
	FlushTX:        0xE1,
	FlushRX:        0xE2,
	NOP:            0xFF,
}

func (o Opcodes) read(reg Register) byte {
	return o.ReadRegister | byte(reg)&o.RegisterMask
}

func (o Opcodes) write(reg Register) byte {
	return o.WriteRegister | byte(reg)&o.RegisterMask
}

// Registers frames register and command transactions on a Bus.
//
// Every phase change is separated by the settle delay. Registers is not safe
// for concurrent use; Device serializes access to it.
type Registers struct {
	bus    Bus
	csn    Pin
	ops    Opcodes
	settle time.Duration
	sleep  func(time.Duration)
	err    error
}

// NewRegisters returns a register layer on bus, framing transactions with
// the active-low chip-select pin csn.
func NewRegisters(bus Bus, csn Pin, ops Opcodes, settle time.Duration, sleep func(time.Duration)) *Registers {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Registers{
		bus:    bus,
		csn:    csn,
		ops:    ops,
		settle: settle,
		sleep:  sleep,
	}
}

// Err returns the first bus or pin error seen, if any.
// Transactions never stop on error, so CSN is always released.
func (r *Registers) Err() error {
	return r.err
}

func (r *Registers) fail(msg string, err error) {
	if r.err == nil {
		r.err = err
	}
	radioLog.Error(msg + ": " + err.Error())
}

// Settle waits the bus settle delay.
func (r *Registers) Settle() {
	if r.settle > 0 {
		r.sleep(r.settle)
	}
}

// Select asserts chip-select.
func (r *Registers) Select() {
	if err := r.csn.Out(Low); err != nil {
		r.fail("CSN assert failed", err)
	}
}

// Deselect releases chip-select.
func (r *Registers) Deselect() {
	if err := r.csn.Out(High); err != nil {
		r.fail("CSN release failed", err)
	}
}

// Transfer moves one byte inside a transaction opened with Select.
func (r *Registers) Transfer(w byte) byte {
	v, err := r.bus.Transfer(w)
	if err != nil {
		r.fail("SPI transfer failed", err)
		return 0
	}
	return v
}

// Read returns the value of a single-byte register.
func (r *Registers) Read(reg Register) byte {
	r.Settle()
	r.Select()
	r.Settle()
	r.Transfer(r.ops.read(reg))
	r.Settle()
	v := r.Transfer(r.ops.NOP)
	r.Settle()
	r.Deselect()
	return v
}

// Write sets a single-byte register.
func (r *Registers) Write(reg Register, v byte) {
	r.Settle()
	r.Select()
	r.Settle()
	r.Transfer(r.ops.write(reg))
	r.Settle()
	r.Transfer(v)
	r.Settle()
	r.Deselect()
}

// WriteAddress streams a full address into a multi-byte address register,
// least significant byte first, inside a single chip-select frame.
func (r *Registers) WriteAddress(reg Register, addr Address) {
	r.Settle()
	r.Select()
	r.Settle()
	r.Transfer(r.ops.write(reg))
	for _, b := range addr {
		r.Settle()
		r.Transfer(b)
	}
	r.Settle()
	r.Deselect()
}

// Command issues a single-byte command such as FLUSH_TX.
func (r *Registers) Command(op byte) {
	r.Settle()
	r.Select()
	r.Settle()
	r.Transfer(op)
	r.Settle()
	r.Deselect()
	r.Settle()
}

// Status clocks a NOP and returns the status byte the chip shifts out with
// the first byte of every transaction.
func (r *Registers) Status() Status {
	r.Select()
	v := r.Transfer(r.ops.NOP)
	r.Deselect()
	return Status(v)
}
