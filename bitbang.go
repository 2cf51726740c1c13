package nrf24node

import (
	"errors"
	"time"
)

// BitBangBus is a software SPI master (mode 0, MSB first) on three GPIOs.
type BitBangBus struct {
	sclk, mosi, miso Pin
	halfPeriod       time.Duration
	sleep            func(time.Duration)
}

// NewBitBangBus configures the pins and returns a bus clocked at about hz.
// A zero hz runs the clock as fast as the pins toggle.
func NewBitBangBus(sclk, mosi, miso Pin, hz int, sleep func(time.Duration)) (*BitBangBus, error) {
	if sclk == nil || mosi == nil || miso == nil {
		return nil, errors.New("bit-bang bus needs SCLK, MOSI and MISO pins")
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	b := &BitBangBus{sclk: sclk, mosi: mosi, miso: miso, sleep: sleep}
	if hz > 0 {
		b.halfPeriod = time.Second / time.Duration(2*hz)
	}
	if err := errors.Join(sclk.Out(Low), mosi.Out(Low), miso.In(PullNoChange)); err != nil {
		return nil, err
	}
	return b, nil
}

// Transfer implements Bus.
func (b *BitBangBus) Transfer(w byte) (byte, error) {
	var r byte
	for bit := 7; bit >= 0; bit-- {
		if err := b.mosi.Out(Level(w&(1<<bit) != 0)); err != nil {
			return r, err
		}
		b.wait()
		// CPHA=0: the peer samples MOSI on the rising edge, we sample MISO.
		if err := b.sclk.Out(High); err != nil {
			return r, err
		}
		if b.miso.Read() == High {
			r |= 1 << bit
		}
		b.wait()
		if err := b.sclk.Out(Low); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (b *BitBangBus) wait() {
	if b.halfPeriod > 0 {
		b.sleep(b.halfPeriod)
	}
}
