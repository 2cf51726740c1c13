package nrf24node

import (
	"fmt"
	"time"
)

// HardwareConfig wires a Device to its bus and pins. It embeds the radio
// settings; zero values select the defaults.
type HardwareConfig struct {
	RadioConfig
	// Bus carries the register and payload transfers.
	Bus Bus
	// CSN is the active-low chip-select pin.
	CSN Pin
	// CE is the Chip Enable pin interface.
	CE Pin
	// IRQ is the Interrupt Request pin interface.
	// Optional, required only by Capture.
	IRQ Pin
	// Opcodes is the command table. Defaults to NRF24L01.
	Opcodes Opcodes
	// SettleDelay separates every bus phase change. Defaults to 10us.
	SettleDelay time.Duration
	// ModeSettleDelay is waited at the end of each mode transition.
	// Defaults to 150us.
	ModeSettleDelay time.Duration
	// PulseWidth is how long CE is held high to start a transmission.
	// Range 10us to 4ms. Defaults to 10us.
	PulseWidth time.Duration
	// MaxPolls bounds WaitTransmitted. Zero means poll forever, which is
	// what the radio's own timing assumes.
	MaxPolls int
	// Sleep implements every delay. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (c *HardwareConfig) applyDefaults() error {
	if c.Channel == 0 {
		c.Channel = DefaultChannel
	}
	if c.Channel > maxChannel {
		return fmt.Errorf("channel number must be between 0 and %d", maxChannel)
	}
	if c.RxAddr == (Address{}) {
		c.RxAddr = DefaultRxAddr
	}
	if c.TxAddr == (Address{}) {
		c.TxAddr = DefaultTxAddr
	}
	if c.DataRate > DataRate2mbps {
		return fmt.Errorf("unknown data rate %d", c.DataRate)
	}
	if c.PALevel > PALevelMin {
		return fmt.Errorf("unknown PA level %d", c.PALevel)
	}
	if c.AutoRetransmitDelay == 0 {
		c.AutoRetransmitDelay = 750
	}
	if c.AutoRetransmitDelay < 250 || c.AutoRetransmitDelay > 4000 || c.AutoRetransmitDelay%250 != 0 {
		return fmt.Errorf("delay must be between 250 and 4000 us and multiple of 250")
	}
	if c.AutoRetransmitCount == 0 {
		c.AutoRetransmitCount = 15
	}
	if c.AutoRetransmitCount > 15 {
		return fmt.Errorf("count must be between 0 and 15")
	}
	if c.Opcodes == (Opcodes{}) {
		c.Opcodes = NRF24L01
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = defaultSettle
	}
	if c.ModeSettleDelay == 0 {
		c.ModeSettleDelay = defaultModeSettle
	}
	if c.PulseWidth == 0 {
		c.PulseWidth = defaultPulse
	}
	if c.PulseWidth < minPulse || c.PulseWidth > maxPulse {
		return fmt.Errorf("CE pulse width must be between %s and %s", minPulse, maxPulse)
	}
	if c.MaxPolls < 0 {
		return fmt.Errorf("MaxPolls must not be negative")
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	if c.Bus == nil {
		return fmt.Errorf("bus not configured")
	}
	if c.CSN == nil {
		return fmt.Errorf("CSN pin not configured")
	}
	if c.CE == nil {
		return fmt.Errorf("CE pin not configured")
	}
	return nil
}
