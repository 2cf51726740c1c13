package nrf24node

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrPkg             = errors.New("nrf24node")
	ErrTimeout         = errors.New("timeout waiting for device")
	ErrNotTransmitting = errors.New("radio is not configured for transmit")
	ErrVerify          = errors.New("failed to verify NRF24L01 connection: check wiring/power")
)

type (
	DataRate byte
	PALevel  byte
)

const (
	// DataRate250kbps represents a data rate of 250kbps
	DataRate250kbps DataRate = iota
	// DataRate1mbps represents a data rate of 1mbps
	DataRate1mbps
	// DataRate2mbps represents a data rate of 2mbps
	DataRate2mbps
)

func (d DataRate) String() string {
	switch d {
	case DataRate250kbps:
		return "250kbps"
	case DataRate1mbps:
		return "1mbps"
	case DataRate2mbps:
		return "2mbps"
	default:
		return "unknown"
	}
}

const (
	// PALevelMax represents a power amplifier level of 0dBm
	PALevelMax PALevel = iota
	// PALevelHigh represents a power amplifier level of -6dBm
	PALevelHigh
	// PALevelLow represents a power amplifier level of -12dBm
	PALevelLow
	// PALevelMin represents a power amplifier level of -18dBm
	PALevelMin
)

func (p PALevel) String() string {
	switch p {
	case PALevelMin:
		return "-18dBm"
	case PALevelLow:
		return "-12dBm"
	case PALevelHigh:
		return "-6dBm"
	case PALevelMax:
		return "0dBm"
	default:
		return "unknown"
	}
}

// Mode is the radio state as configured by the driver.
type Mode uint8

const (
	// ModeStandby: not yet configured, or powered down.
	ModeStandby Mode = iota
	// ModeTransmitting: PTX configuration, CE low between pulses.
	ModeTransmitting
	// ModeListening: PRX configuration with CE driven high.
	ModeListening
)

func (m Mode) String() string {
	switch m {
	case ModeStandby:
		return "standby"
	case ModeTransmitting:
		return "transmitting"
	case ModeListening:
		return "listening"
	default:
		return "unknown"
	}
}

// Wire defaults shared with the base station.
var (
	DefaultRxAddr   = Address{0x11, 0x12, 0x13, 0x14, 0x15}
	DefaultTxAddr   = Address{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	DefaultOutbound = Payload{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18}
)

const (
	// DefaultChannel is RF channel 105, 2.505GHz.
	DefaultChannel = 0x69

	maxChannel = 125

	enableP0  = 1 << 0
	addrWidth = AddressLen - 2

	defaultSettle     = 10 * time.Microsecond
	defaultModeSettle = 150 * time.Microsecond
	defaultPulse      = 10 * time.Microsecond
	minPulse          = 10 * time.Microsecond
	maxPulse          = 4 * time.Millisecond
	busStartup        = 10 * time.Millisecond
	powerUpDelay      = 10 * time.Millisecond
)

// RadioConfig holds the over-the-air settings shared with the base station.
// Zero values select the defaults.
type RadioConfig struct {
	// Channel is the RF channel, 2400MHz + Channel MHz. Range 0 to 125.
	// Defaults to 105 (2.505GHz) if not provided, so channel 0 cannot be used.
	Channel byte
	// RxAddr is the address of this node, programmed into pipe 0.
	// Defaults to DefaultRxAddr if not provided.
	RxAddr Address
	// TxAddr is the address of the base station.
	// Defaults to DefaultTxAddr if not provided.
	TxAddr Address
	// DataRate sets the air data rate.
	// Defaults to DataRate250kbps.
	DataRate DataRate
	// PALevel sets the power amplifier level.
	// Defaults to PALevelMax.
	PALevel PALevel
	// AutoRetransmitDelay is the auto-retransmit delay in microseconds.
	// Must be a multiple of 250 between 250 and 4000.
	// Defaults to 750 if not provided.
	AutoRetransmitDelay uint16
	// AutoRetransmitCount is the number of hardware retries. Range 1 to 15.
	// Defaults to 15 if not provided.
	AutoRetransmitCount byte
}

// Device drives a single nRF24L01 between listening and transmitting.
type Device struct {
	config  HardwareConfig
	regs    *Registers
	mu      sync.Mutex
	mode    Mode
	ce      Level
	nrfPort io.Closer
}

// NewWithHardware creates and initializes a new NRF24L01 driver with the provided hardware interfaces.
// On success the radio is configured and listening on RxAddr.
func NewWithHardware(c HardwareConfig) (*Device, error) {
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}

	dev := &Device{
		config: c,
		regs:   NewRegisters(c.Bus, c.CSN, c.Opcodes, c.SettleDelay, c.Sleep),
	}

	radioLog.Info("initializing NRF24L01 bus")

	// Bus idle: CSN high, CE low (Standby-I).
	dev.regs.Deselect()
	dev.setCE(Low)
	dev.sleep(busStartup)

	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.configure()

	// Read back the channel to ensure SPI write/read is working
	if got := dev.regs.Read(RegRFCh); got != dev.config.Channel {
		dev.setCE(Low)
		return nil, fmt.Errorf("%w: %w (RF_CH read 0x%02X)", ErrPkg, ErrVerify, got)
	}

	radioLog.Info("initialized, listening on " + dev.config.RxAddr.String())
	return dev, nil
}

// configure performs the one-time register setup and enters listening.
// Call with lock held.
func (d *Device) configure() {
	d.regs.Write(RegEnRxAddr, enableP0)
	d.regs.Write(RegSetupAW, addrWidth)
	d.regs.Write(RegRFCh, d.config.Channel)
	d.regs.Write(RegRFSetup, d.rfSetup())
	d.regs.WriteAddress(RegRxAddrP0, d.config.RxAddr)
	d.regs.WriteAddress(RegTxAddr, d.config.TxAddr)
	d.regs.Write(RegRxPwP0, PayloadLen)
	d.regs.Write(RegSetupRetr, d.setupRetr())
	// CRC (CONFIG) and auto-ack (EN_AA) keep their reset values.
	d.enterReceiveMode()
	d.sleep(powerUpDelay)
}

func (d *Device) rfSetup() byte {
	var rfSetup byte
	switch d.config.DataRate {
	case DataRate1mbps:
		// RF_DR_HIGH = 0, RF_DR_LOW = 0
	case DataRate2mbps:
		rfSetup |= 1 << 3 // RF_DR_HIGH
	case DataRate250kbps:
		rfSetup |= 1 << 5 // RF_DR_LOW
	}
	switch d.config.PALevel {
	case PALevelMin:
		// 0
	case PALevelLow:
		rfSetup |= 1 << 1
	case PALevelHigh:
		rfSetup |= 2 << 1
	case PALevelMax:
		rfSetup |= 3 << 1
	}
	return rfSetup
}

func (d *Device) setupRetr() byte {
	ard := (d.config.AutoRetransmitDelay/250 - 1) & 0x0F
	arc := d.config.AutoRetransmitCount & 0x0F
	return byte(ard)<<4 | arc
}

func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fmt.Sprintf("NRF24L01(Channel=%d, DataRate=%s, PALevel=%s, RxAddr=%s, TxAddr=%s, Mode=%s)",
		d.config.Channel,
		d.config.DataRate,
		d.config.PALevel,
		d.config.RxAddr,
		d.config.TxAddr,
		d.mode,
	)
}

// Close cleans up the resources used by the NRF24L01 driver.
// It powers down the radio and closes the bus. The IRQ pin belongs to the
// capture path; see Capture.Detach.
// This method is concurrent safe.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setCE(Low)
	d.regs.Write(RegConfig, d.regs.Read(RegConfig)&^byte(ConfigPwrUp))
	d.mode = ModeStandby
	radioLog.Info("powered down")

	var err error
	if d.nrfPort != nil {
		if err = d.nrfPort.Close(); err != nil {
			radioLog.Warn("failed to close bus: " + err.Error())
		} else {
			radioLog.Info("bus closed")
		}
	}
	return err
}

func (d *Device) sleep(t time.Duration) {
	d.config.Sleep(t)
}

func (d *Device) setCE(l Level) error {
	if err := d.config.CE.Out(l); err != nil {
		radioLog.Error("CE write failed: " + err.Error())
		return err
	}
	d.ce = l
	return nil
}

// --- Mode transitions ---

// EnterTransmitMode reconfigures the radio as primary transmitter.
// This method is concurrent safe.
func (d *Device) EnterTransmitMode() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enterTransmitMode()
}

func (d *Device) enterTransmitMode() {
	d.setCE(Low) // Standby-I
	// Two separate round trips: drop PRIM_RX first, then power up.
	d.regs.Write(RegConfig, d.regs.Read(RegConfig)&^byte(ConfigPrimRX))
	d.regs.Write(RegConfig, d.regs.Read(RegConfig)|ConfigPwrUp)
	d.regs.Command(d.config.Opcodes.FlushTX)
	d.regs.Write(RegStatus, StatusIRQMask)
	d.regs.Write(RegConfig, d.regs.Read(RegConfig)|ConfigMaskTxDS|ConfigMaskMaxRT)
	d.sleep(d.config.ModeSettleDelay)
	d.mode = ModeTransmitting
	radioLog.Debug("mode: transmitting")
}

// EnterReceiveMode reconfigures the radio as primary receiver and starts
// listening. Calling it repeatedly leaves the radio in the same state.
// This method is concurrent safe.
func (d *Device) EnterReceiveMode() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enterReceiveMode()
}

func (d *Device) enterReceiveMode() {
	d.setCE(Low) // Standby-I
	d.regs.Write(RegConfig, d.regs.Read(RegConfig)|ConfigPwrUp|ConfigPrimRX)
	d.regs.Command(d.config.Opcodes.FlushRX)
	d.regs.Write(RegStatus, StatusIRQMask)
	d.regs.Write(RegConfig, d.regs.Read(RegConfig)|ConfigMaskTxDS|ConfigMaskMaxRT)
	d.setCE(High)
	d.sleep(d.config.ModeSettleDelay)
	d.mode = ModeListening
	radioLog.Debug("mode: listening")
}

// --- Payload transfer ---

// SendPayload loads p into the TX FIFO and pulses CE to send it.
// The radio must be in transmit configuration.
// This method is concurrent safe.
func (d *Device) SendPayload(p Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModeTransmitting {
		return fmt.Errorf("%w: %w (mode %s)", ErrPkg, ErrNotTransmitting, d.mode)
	}

	// Drop any stale partial payload.
	d.regs.Command(d.config.Opcodes.FlushTX)

	d.regs.Select()
	d.regs.Settle()
	d.regs.Transfer(d.config.Opcodes.WriteTxPayload)
	d.regs.Settle()
	for _, b := range p {
		d.regs.Transfer(b)
	}
	d.regs.Settle()
	d.regs.Deselect()
	d.regs.Settle()

	// A short pulse sends one payload; holding CE would keep transmitting.
	if err := d.setCE(High); err != nil {
		return fmt.Errorf("%w: CE pulse: %w", ErrPkg, err)
	}
	d.sleep(d.config.PulseWidth)
	d.setCE(Low)
	return nil
}

// IsSending reports whether the last transmission is still in flight.
// It returns false once either TX_DS or MAX_RT is set.
// This method is concurrent safe.
func (d *Device) IsSending() bool {
	_, sending := d.pollSending()
	return sending
}

// pollSending reads STATUS once. It is the single IsSending poll, also
// returning the status it was decided on.
func (d *Device) pollSending() (Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status := d.regs.Status()
	return status, status&(StatusDataSent|StatusMaxRetries) == 0
}

// WaitTransmitted busy-polls IsSending until the transmission finishes and
// returns the final status. A max-retries status is not an error: the
// payload is simply not guaranteed delivered. With MaxPolls set, it gives up
// with ErrTimeout after that many polls.
// This method is concurrent safe.
func (d *Device) WaitTransmitted() (Status, error) {
	for polls := 1; ; polls++ {
		status, sending := d.pollSending()
		if !sending {
			return status, nil
		}
		if d.config.MaxPolls > 0 && polls >= d.config.MaxPolls {
			return status, fmt.Errorf("%w: %w after %d polls", ErrPkg, ErrTimeout, polls)
		}
	}
}

// --- Commands ---

// FlushTX clears the transmit FIFO buffer.
// This method is concurrent safe.
func (d *Device) FlushTX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs.Command(d.config.Opcodes.FlushTX)
}

// FlushRX clears the receive FIFO buffer.
// This method is concurrent safe.
func (d *Device) FlushRX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs.Command(d.config.Opcodes.FlushRX)
}

// ResetStatus clears all interrupt flags to re-arm the radio.
// This method is concurrent safe.
func (d *Device) ResetStatus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs.Settle()
	d.regs.Write(RegStatus, StatusIRQMask)
	d.regs.Settle()
}

// Status returns the current value of the STATUS register.
// This method is concurrent safe.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.Status()
}

// Mode returns the configured radio mode.
// This method is concurrent safe.
func (d *Device) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// ChipEnabled reports the last level driven on CE.
// This method is concurrent safe.
func (d *Device) ChipEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ce == High
}

// StartListening drives CE high. In receive configuration the radio
// starts monitoring the air.
// This method is concurrent safe.
func (d *Device) StartListening() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setCE(High)
}

// StopListening drives CE low, back to Standby-I.
// This method is concurrent safe.
func (d *Device) StopListening() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setCE(Low)
}

// Err returns the first bus error seen by the device, if any.
// This method is concurrent safe.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.Err()
}

// --- Configuration ---

// SetChannel changes the radio channel (frequency).
// channel must be between 0 and 125.
// This method is concurrent safe.
func (d *Device) SetChannel(channel byte) error {
	if channel > maxChannel {
		return fmt.Errorf("channel number must be between 0 and %d", maxChannel)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regs.Write(RegRFCh, channel)
	d.config.Channel = channel
	return nil
}

// SetDataRate changes the air data rate.
// This method is concurrent safe.
func (d *Device) SetDataRate(rate DataRate) error {
	if rate > DataRate2mbps {
		return fmt.Errorf("unknown data rate %d", rate)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.config.DataRate = rate
	d.regs.Write(RegRFSetup, d.rfSetup())
	return nil
}

// SetPALevel changes the power amplifier level.
// This method is concurrent safe.
func (d *Device) SetPALevel(level PALevel) error {
	if level > PALevelMin {
		return fmt.Errorf("unknown PA level %d", level)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.config.PALevel = level
	d.regs.Write(RegRFSetup, d.rfSetup())
	return nil
}

// SetAddresses reprograms the node address (pipe 0) and the peer address.
// CE is dropped while the registers change and restored afterwards.
// This method is concurrent safe.
func (d *Device) SetAddresses(rx, tx Address) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ce := d.ce
	d.setCE(Low)
	d.regs.WriteAddress(RegRxAddrP0, rx)
	d.regs.WriteAddress(RegTxAddr, tx)
	d.config.RxAddr = rx
	d.config.TxAddr = tx
	d.setCE(ce)
}

// RetransmitCounters returns the number of lost packets and the number of retransmissions
// for the last sent packet.
// This method is concurrent safe.
func (d *Device) RetransmitCounters() (lostPackets byte, currentRetries byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	val := d.regs.Read(RegObserveTX)
	return (val >> 4) & 0x0F, val & 0x0F
}

// CarrierDetected returns true if a signal above -64dBm is present on the
// current channel. Only valid while listening.
// This method is concurrent safe.
func (d *Device) CarrierDetected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.Read(RegRPD)&0x01 != 0
}

// ReadRegister returns the raw value of a single-byte register.
// This method is concurrent safe.
func (d *Device) ReadRegister(reg Register) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs.Read(reg)
}
