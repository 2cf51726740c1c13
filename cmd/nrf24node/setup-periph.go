//go:build !tinygo

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/golang/glog"

	"github.com/michcald/nrf24node"
)

var (
	simulate  = flag.Bool("sim", false, "run against a simulated radio and base station")
	channel   = flag.Uint("channel", nrf24node.DefaultChannel, "RF channel, 0 to 125")
	spiPath   = flag.String("spi", "/dev/spidev0.0", "SPI device")
	spiHz     = flag.Int("spi-hz", 1000000, "SPI clock in Hz")
	bitBang   = flag.String("bitbang", "", "software SPI pins as SCLK,MOSI,MISO (BCM numbers), replaces -spi")
	cePin     = flag.Int("ce", 25, "CE GPIO (BCM)")
	csnPin    = flag.Int("csn", 8, "CSN GPIO (BCM)")
	irqPin    = flag.Int("irq", 24, "IRQ GPIO (BCM)")
	ledPins   = flag.String("leds", "", "two status LED GPIOs as A,B (BCM), empty to disable")
	echo      = flag.String("echo", "", "hex dump of received bytes: '-' for stdout, a file path, or empty to disable")
	maxPolls  = flag.Int("max-polls", 0, "give up waiting for a transmission after this many status polls, 0 waits forever")
	simPeriod = flag.Duration("sim-period", simDefaultPeriod, "interval between simulated base station frames")
)

// Context is cancelled on SIGINT or SIGTERM.
func Context() (context.Context, context.CancelFunc) {
	flag.Parse()
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Setup builds the node from the command line flags. release closes the
// echo target and must run after the node is closed.
func Setup(ctx context.Context) (node *nrf24node.Node, release func(), err error) {
	if *channel > 125 {
		return nil, nil, fmt.Errorf("channel %d out of range", *channel)
	}
	echoOut, err := openEcho(*echo)
	if err != nil {
		return nil, nil, err
	}
	release = func() {
		if echoOut == nil {
			return
		}
		if err := echoOut.Close(); err != nil {
			glog.Warningf("closing echo: %v", err)
		}
	}

	node, err = newNode(ctx, nrf24node.CaptureConfig{Echo: echoOut})
	if err != nil {
		release()
		return nil, nil, err
	}
	return node, release, nil
}

func newNode(ctx context.Context, capture nrf24node.CaptureConfig) (*nrf24node.Node, error) {
	radio := nrf24node.RadioConfig{Channel: byte(*channel)}
	if *simulate {
		return newSimNode(ctx, radio, capture, *maxPolls, *simPeriod)
	}

	config := nrf24node.Config{
		RadioConfig: radio,
		CEPin:       *cePin,
		CSNPin:      *csnPin,
		IRQPin:      *irqPin,
		SpiBusPath:  *spiPath,
		SpiClockHz:  *spiHz,
		MaxPolls:    *maxPolls,
	}
	if *bitBang != "" {
		pins, err := parsePins(*bitBang, 3)
		if err != nil {
			return nil, fmt.Errorf("-bitbang: %w", err)
		}
		config.BitBang = &nrf24node.BitBangPins{SCLK: pins[0], MOSI: pins[1], MISO: pins[2]}
	}

	dev, err := nrf24node.New(config)
	if err != nil {
		return nil, err
	}

	var nodeConfig nrf24node.NodeConfig
	if *ledPins != "" {
		pins, err := parsePins(*ledPins, 2)
		if err != nil {
			dev.Close()
			return nil, fmt.Errorf("-leds: %w", err)
		}
		for i, n := range pins {
			if nodeConfig.LEDs[i], err = nrf24node.OpenPin(n); err != nil {
				dev.Close()
				return nil, err
			}
		}
	}

	glog.Infof("Radio initialized: %s", dev)
	return nrf24node.NewNode(dev, nrf24node.NewCapture(dev, capture), nodeConfig), nil
}

// openEcho returns nil when the echo is disabled. The hex dumper flushes
// its last line on Close.
func openEcho(target string) (io.WriteCloser, error) {
	switch target {
	case "":
		return nil, nil
	case "-":
		return hex.Dumper(os.Stdout), nil
	}
	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open echo file: %w", err)
	}
	return f, nil
}

func parsePins(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated pins, got %q", n, s)
	}
	pins := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad pin %q: %w", p, err)
		}
		pins[i] = v
	}
	return pins, nil
}

func Log(msg string) {
	glog.Info(msg)
}

func Flush() {
	glog.Flush()
}
