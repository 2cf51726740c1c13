//go:build !tinygo

package main

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/michcald/nrf24node"
	"github.com/michcald/nrf24node/nrf24sim"
)

const simDefaultPeriod = 500 * time.Millisecond

// newSimNode wires the node to a simulated radio. A simulated base station
// sends a request frame every period until ctx is done and logs the replies.
func newSimNode(ctx context.Context, radio nrf24node.RadioConfig, capture nrf24node.CaptureConfig, maxPolls int, period time.Duration) (*nrf24node.Node, error) {
	chip := nrf24sim.New()
	chip.SetTracing(false)
	chip.OnTransmit(func(p []byte) {
		glog.Infof("base station: reply % X", p)
	})

	dev, err := nrf24node.NewWithHardware(nrf24node.HardwareConfig{
		RadioConfig: radio,
		Bus:         chip,
		CSN:         chip.CSN(),
		CE:          chip.CE(),
		IRQ:         chip.IRQ(),
		MaxPolls:    maxPolls,
	})
	if err != nil {
		return nil, err
	}
	glog.Infof("Simulated radio initialized: %s", dev)

	go baseStation(ctx, chip, period)
	return nrf24node.NewNode(dev, nrf24node.NewCapture(dev, capture), nrf24node.NodeConfig{}), nil
}

func baseStation(ctx context.Context, chip *nrf24sim.Chip, period time.Duration) {
	request := bytes.Repeat([]byte{nrf24node.Sentinel}, nrf24node.PayloadLen)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		switch err := chip.Deliver(request); {
		case err == nil:
			glog.V(1).Info("base station: request sent")
		case errors.Is(err, nrf24sim.ErrNotListening):
			glog.V(1).Info("base station: node not listening, frame lost")
		default:
			glog.Warningf("base station: %v", err)
		}
	}
}
