//go:build tinygo

package main

import (
	"context"
	"machine"
	"time"

	"github.com/michcald/nrf24node"
)

// Pico 2 wiring.
const (
	pinSCK  = machine.GP18
	pinMOSI = machine.GP19
	pinMISO = machine.GP16
	pinCSN  = machine.GP17
	pinCE   = machine.GP20
	pinIRQ  = machine.GP21
	pinLEDA = machine.GP14
	pinLEDB = machine.GP15
)

// Context never ends on a microcontroller.
func Context() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

// Setup wires the node to the Pico 2 peripherals. Nothing needs releasing.
func Setup(ctx context.Context) (*nrf24node.Node, func(), error) {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})
	time.Sleep(2 * time.Second) // Give time to open serial monitor
	Log("Starting NRF24L01 sensor node on Pico 2...")

	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 1000000,
		Mode:      0,
		SCK:       pinSCK,
		SDO:       pinMOSI,
		SDI:       pinMISO,
	})
	if err != nil {
		Log("Failed to configure SPI")
		return nil, nil, err
	}

	dev, err := nrf24node.NewTinyGo(nrf24node.RadioConfig{}, machine.SPI0, pinCSN, pinCE, pinIRQ)
	if err != nil {
		return nil, nil, err
	}

	// Received bytes are echoed raw on the same UART as the log.
	capture := nrf24node.NewCapture(dev, nrf24node.CaptureConfig{Echo: machine.Serial})
	return nrf24node.NewNode(dev, capture, nrf24node.NodeConfig{
		LEDs: [2]nrf24node.Pin{nrf24node.TinyGoPin(pinLEDA), nrf24node.TinyGoPin(pinLEDB)},
	}), func() {}, nil
}

func Log(msg string) {
	machine.Serial.Write([]byte(msg + "\r\n"))
}

func Flush() {}
