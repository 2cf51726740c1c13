package nrf24node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// NodeConfig configures the node loop. Zero values select the defaults.
type NodeConfig struct {
	// Outbound is the payload sent after every full inbound payload.
	// Defaults to DefaultOutbound if not provided.
	Outbound Payload
	// LEDs are blinked alternately at start-up. Optional.
	LEDs [2]Pin
	// BlinkCycles is the number of start-up blink cycles. Defaults to 5.
	BlinkCycles int
	// BlinkPeriod is the time each LED stays lit. Defaults to 100ms.
	BlinkPeriod time.Duration
	// StartupPause is waited after the blink sequence. Defaults to 750ms.
	StartupPause time.Duration
	// PollInterval is the idle wait between loop iterations. Defaults to 1ms.
	PollInterval time.Duration
}

// Stats counts transmit cycles by outcome.
type Stats struct {
	Cycles     uint64
	Sent       uint64
	MaxRetries uint64
	Timeouts   uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("cycles=%d sent=%d max_rt=%d timeouts=%d", s.Cycles, s.Sent, s.MaxRetries, s.Timeouts)
}

// Node answers every complete inbound payload with the outbound payload.
type Node struct {
	dev     *Device
	capture *Capture
	config  NodeConfig

	mu    sync.Mutex
	stats Stats
}

// NewNode returns a node answering on dev. capture must belong to dev.
// Call Start before Run.
func NewNode(dev *Device, capture *Capture, c NodeConfig) *Node {
	if c.Outbound == (Payload{}) {
		c.Outbound = DefaultOutbound
	}
	if c.BlinkCycles == 0 {
		c.BlinkCycles = 5
	}
	if c.BlinkPeriod == 0 {
		c.BlinkPeriod = 100 * time.Millisecond
	}
	if c.StartupPause == 0 {
		c.StartupPause = 750 * time.Millisecond
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Millisecond
	}
	return &Node{dev: dev, capture: capture, config: c}
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(%s, Outbound=[%s])", n.dev, n.config.Outbound)
}

// Start plays the LED sequence, starts listening and arms the capture path.
// Interrupts are armed last, once the radio no longer needs the bus.
func (n *Node) Start() error {
	if err := n.blink(); err != nil {
		return err
	}
	n.capture.DisableInterrupts()
	if err := n.capture.Attach(); err != nil {
		return err
	}
	n.capture.Reset()

	n.dev.FlushRX()
	n.dev.ResetStatus()
	n.dev.StartListening()
	n.capture.EnableInterrupts()

	nodeLog.Info("listening")
	return nil
}

func (n *Node) blink() error {
	a, b := n.config.LEDs[0], n.config.LEDs[1]
	if a == nil || b == nil {
		return nil
	}
	set := func(la, lb Level) error {
		return errors.Join(a.Out(la), b.Out(lb))
	}
	for i := n.config.BlinkCycles; i != 0; i-- {
		if err := set(Low, High); err != nil {
			return fmt.Errorf("LED sequence: %w", err)
		}
		n.dev.sleep(n.config.BlinkPeriod)
		if err := set(High, Low); err != nil {
			return fmt.Errorf("LED sequence: %w", err)
		}
		n.dev.sleep(n.config.BlinkPeriod)
	}
	if err := set(Low, Low); err != nil {
		return fmt.Errorf("LED sequence: %w", err)
	}
	n.dev.sleep(n.config.StartupPause)
	return nil
}

// Step runs one loop iteration. It reports whether a transmit cycle ran.
// If the payload cannot be sent, the node still returns to listening and
// the error is reported.
func (n *Node) Step() (bool, error) {
	if n.capture.Count() != PayloadLen {
		return false, nil
	}

	n.capture.DisableInterrupts()
	n.capture.Reset()

	n.dev.EnterTransmitMode()
	if err := n.dev.SendPayload(n.config.Outbound); err != nil {
		n.listen()
		return true, err
	}
	status, err := n.dev.WaitTransmitted()

	n.mu.Lock()
	n.stats.Cycles++
	switch {
	case err != nil:
		n.stats.Timeouts++
		nodeLog.Warn("transmit not confirmed: " + err.Error())
	case status.MaxRetries():
		n.stats.MaxRetries++
		nodeLog.Warn("max retransmissions reached, payload not acknowledged")
	default:
		n.stats.Sent++
		nodeLog.Debug("payload sent")
	}
	n.mu.Unlock()

	n.dev.ResetStatus()
	n.listen()
	return true, nil
}

// listen puts the radio back in receive mode and re-arms the capture path.
func (n *Node) listen() {
	n.dev.EnterReceiveMode()
	n.dev.FlushRX()
	n.dev.StartListening()
	n.capture.EnableInterrupts()
}

// Run repeats Step until ctx is done. A cycle that has started always
// completes before Run returns.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := n.Step(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-n.capture.Wake():
		}
	}
}

// Stats returns a snapshot of the cycle counters.
func (n *Node) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

// Close detaches the capture path and closes the device.
func (n *Node) Close() error {
	n.capture.DisableInterrupts()
	return errors.Join(n.capture.Detach(), n.dev.Close())
}
