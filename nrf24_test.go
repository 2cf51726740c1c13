package nrf24node_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nrf "github.com/michcald/nrf24node"
	"github.com/michcald/nrf24node/nrf24sim"
)

func TestInitialization(t *testing.T) {
	dev, chip := newDevice(t)

	assert.Equal(t, byte(0x01), chip.Register(nrf.RegEnRxAddr), "EN_RXADDR")
	assert.Equal(t, byte(0x03), chip.Register(nrf.RegSetupAW), "SETUP_AW")
	assert.Equal(t, byte(0x69), chip.Register(nrf.RegRFCh), "RF_CH")
	assert.Equal(t, byte(0x26), chip.Register(nrf.RegRFSetup), "RF_SETUP")
	assert.Equal(t, byte(0x08), chip.Register(nrf.RegRxPwP0), "RX_PW_P0")
	assert.Equal(t, byte(0x2F), chip.Register(nrf.RegSetupRetr), "SETUP_RETR")
	assert.Equal(t, byte(0x3F), chip.Register(nrf.RegEnAA), "EN_AA keeps its reset value")
	assert.Equal(t, nrf.DefaultRxAddr, chip.Address(nrf.RegRxAddrP0))
	assert.Equal(t, nrf.DefaultTxAddr, chip.Address(nrf.RegTxAddr))

	// EN_CRC from reset, PWR_UP, PRIM_RX, TX_DS and MAX_RT masked.
	assert.Equal(t, byte(0x3B), chip.Register(nrf.RegConfig), "CONFIG")

	assert.True(t, chip.ChipEnabled())
	assert.True(t, dev.ChipEnabled())
	assert.Equal(t, nrf.ModeListening, dev.Mode())
	assert.NoError(t, dev.Err())
	assert.Contains(t, dev.String(), "RxAddr=11:12:13:14:15")
}

func TestInitializationCustomRadio(t *testing.T) {
	_, chip := newDevice(t, func(hw *nrf.HardwareConfig) {
		hw.Channel = 76
		hw.DataRate = nrf.DataRate2mbps
		hw.PALevel = nrf.PALevelLow
		hw.AutoRetransmitDelay = 500
		hw.AutoRetransmitCount = 3
		hw.RxAddr = nrf.Address{1, 2, 3, 4, 5}
	})

	assert.Equal(t, byte(76), chip.Register(nrf.RegRFCh))
	assert.Equal(t, byte(0x0A), chip.Register(nrf.RegRFSetup))
	assert.Equal(t, byte(0x13), chip.Register(nrf.RegSetupRetr))
	assert.Equal(t, nrf.Address{1, 2, 3, 4, 5}, chip.Address(nrf.RegRxAddrP0))
}

func TestInitializationVerifyFails(t *testing.T) {
	dead := busFunc(func(byte) (byte, error) { return 0, nil })
	_, err := nrf.NewWithHardware(nrf.HardwareConfig{
		Bus:   dead,
		CSN:   &fakePin{},
		CE:    &fakePin{},
		Sleep: func(time.Duration) {},
	})
	assert.ErrorIs(t, err, nrf.ErrVerify)
	assert.ErrorIs(t, err, nrf.ErrPkg)
}

func TestConfigValidation(t *testing.T) {
	chip := nrf24sim.New()
	valid := func() nrf.HardwareConfig {
		return nrf.HardwareConfig{Bus: chip, CSN: chip.CSN(), CE: chip.CE(), Sleep: chip.Sleep}
	}
	tests := []struct {
		name string
		mod  func(*nrf.HardwareConfig)
	}{
		{"channel", func(c *nrf.HardwareConfig) { c.Channel = 126 }},
		{"delay not multiple of 250", func(c *nrf.HardwareConfig) { c.AutoRetransmitDelay = 300 }},
		{"delay too long", func(c *nrf.HardwareConfig) { c.AutoRetransmitDelay = 4250 }},
		{"retries", func(c *nrf.HardwareConfig) { c.AutoRetransmitCount = 16 }},
		{"data rate", func(c *nrf.HardwareConfig) { c.DataRate = 7 }},
		{"pulse too short", func(c *nrf.HardwareConfig) { c.PulseWidth = 5 * time.Microsecond }},
		{"pulse too long", func(c *nrf.HardwareConfig) { c.PulseWidth = 5 * time.Millisecond }},
		{"negative polls", func(c *nrf.HardwareConfig) { c.MaxPolls = -1 }},
		{"no bus", func(c *nrf.HardwareConfig) { c.Bus = nil }},
		{"no CSN", func(c *nrf.HardwareConfig) { c.CSN = nil }},
		{"no CE", func(c *nrf.HardwareConfig) { c.CE = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := valid()
			tt.mod(&hw)
			_, err := nrf.NewWithHardware(hw)
			assert.Error(t, err)
		})
	}
}

func TestEnterTransmitModeOrder(t *testing.T) {
	dev, chip := newDevice(t)
	// Powered down receiver: the two round trips must be distinguishable.
	chip.SetRegister(nrf.RegConfig, nrf.ConfigEnCRC|nrf.ConfigPrimRX)

	dev.EnterTransmitMode()

	assert.Equal(t, [][]byte{
		// clear PRIM_RX, then set PWR_UP
		{0x00, 0xFF}, {0x20, 0x08},
		{0x00, 0xFF}, {0x20, 0x0A},
		{0xE1},
		{0x27, 0x70},
		// mask TX_DS and MAX_RT
		{0x00, 0xFF}, {0x20, 0x3A},
	}, frames(chip.Trace()))

	trace := chip.Trace()
	assert.Equal(t, ce(nrf.Low), trace[0])
	assert.Equal(t, sleep(150*time.Microsecond), trace[len(trace)-1])
	assert.Equal(t, nrf.ModeTransmitting, dev.Mode())
	assert.False(t, chip.ChipEnabled())
}

func TestIsSendingAroundSend(t *testing.T) {
	dev, chip := newDevice(t)
	p := nrf.Payload{1, 2, 3, 4, 5, 6, 7, 8}

	dev.EnterTransmitMode()
	assert.True(t, dev.IsSending(), "no completion flag before a send")

	require.NoError(t, dev.SendPayload(p))
	assert.False(t, dev.IsSending())
	assert.Equal(t, [][]byte{p[:]}, chip.Sent())

	status, err := dev.WaitTransmitted()
	require.NoError(t, err)
	assert.True(t, status.DataSent())
	assert.False(t, status.MaxRetries())
}

func TestSendPayloadFraming(t *testing.T) {
	dev, chip := newDevice(t)
	p := nrf.Payload{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18}
	dev.EnterTransmitMode()
	chip.ResetTrace()

	require.NoError(t, dev.SendPayload(p))

	assert.Equal(t, [][]byte{
		{0xE1},
		append([]byte{0xA0}, p[:]...),
	}, frames(chip.Trace()))

	// CSN high, >=10us, CE pulse of 10us.
	trace := chip.Trace()
	n := len(trace)
	require.GreaterOrEqual(t, n, 5)
	assert.Equal(t, []nrf24sim.Event{
		csn(nrf.High),
		sleep(settle),
		ce(nrf.High),
		sleep(10 * time.Microsecond),
		ce(nrf.Low),
	}, trace[n-5:])
}

func TestSendPayloadCustomPulse(t *testing.T) {
	dev, chip := newDevice(t, func(hw *nrf.HardwareConfig) {
		hw.PulseWidth = 15 * time.Microsecond
	})
	dev.EnterTransmitMode()
	chip.ResetTrace()

	require.NoError(t, dev.SendPayload(nrf.Payload{}))

	trace := chip.Trace()
	assert.Equal(t, sleep(15*time.Microsecond), trace[len(trace)-2])
}

func TestSendPayloadCEFailure(t *testing.T) {
	boom := errors.New("CE stuck")
	dev, chip := newDevice(t, func(hw *nrf.HardwareConfig) {
		hw.CE = &hookPin{Pin: hw.CE, out: func(l nrf.Level) error {
			if l == nrf.High {
				return boom
			}
			return nil
		}}
	})
	dev.EnterTransmitMode()

	err := dev.SendPayload(nrf.DefaultOutbound)

	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, nrf.ErrPkg)
	assert.Empty(t, chip.Sent())
}

func TestSendPayloadRequiresTransmitMode(t *testing.T) {
	dev, chip := newDevice(t)

	err := dev.SendPayload(nrf.Payload{1})

	assert.ErrorIs(t, err, nrf.ErrNotTransmitting)
	assert.Empty(t, chip.TXFIFO())
	assert.Empty(t, chip.Trace())
}

func TestSendPayloadFlushesStaleData(t *testing.T) {
	dev, chip := newDevice(t)
	dev.EnterTransmitMode()
	chip.FailTransmit(true)
	require.NoError(t, dev.SendPayload(nrf.Payload{0xEE}))
	require.Len(t, chip.TXFIFO(), 1, "MAX_RT keeps the payload queued")

	chip.FailTransmit(false)
	dev.ResetStatus()
	p := nrf.Payload{0x01}
	require.NoError(t, dev.SendPayload(p))

	assert.Equal(t, [][]byte{p[:]}, chip.Sent())
}

func TestEnterReceiveModeIdempotent(t *testing.T) {
	dev, chip := newDevice(t)
	dev.EnterTransmitMode()
	dev.EnterReceiveMode()
	require.NoError(t, chip.Deliver(make([]byte, nrf.PayloadLen)))

	dev.EnterReceiveMode()
	once := chip.Register(nrf.RegConfig)
	dev.EnterReceiveMode()
	twice := chip.Register(nrf.RegConfig)

	assert.Equal(t, once, twice)
	assert.NotZero(t, twice&nrf.ConfigPwrUp)
	assert.NotZero(t, twice&nrf.ConfigPrimRX)
	assert.Empty(t, chip.RXFIFO())
	assert.Zero(t, chip.Register(nrf.RegStatus)&nrf.StatusIRQMask)
	assert.True(t, chip.ChipEnabled())
	assert.Equal(t, nrf.ModeListening, dev.Mode())
}

func TestEnterReceiveModeOrder(t *testing.T) {
	dev, chip := newDevice(t)
	dev.EnterTransmitMode()
	require.Equal(t, byte(0x3A), chip.Register(nrf.RegConfig))
	chip.ResetTrace()

	dev.EnterReceiveMode()

	assert.Equal(t, [][]byte{
		// PWR_UP and PRIM_RX in one round trip
		{0x00, 0xFF}, {0x20, 0x3B},
		{0xE2},
		{0x27, 0x70},
		// mask TX_DS and MAX_RT
		{0x00, 0xFF}, {0x20, 0x3B},
	}, frames(chip.Trace()))

	trace := chip.Trace()
	require.GreaterOrEqual(t, len(trace), 4)
	assert.Equal(t, ce(nrf.Low), trace[0])
	assert.Equal(t, []nrf24sim.Event{
		csn(nrf.High),
		ce(nrf.High),
		sleep(150 * time.Microsecond),
	}, trace[len(trace)-3:])
	assert.Equal(t, nrf.ModeListening, dev.Mode())
}

func TestWaitTransmittedMaxRetries(t *testing.T) {
	dev, chip := newDevice(t)
	chip.FailTransmit(true)
	dev.EnterTransmitMode()
	require.NoError(t, dev.SendPayload(nrf.DefaultOutbound))

	status, err := dev.WaitTransmitted()

	require.NoError(t, err)
	assert.True(t, status.MaxRetries())
	assert.False(t, dev.IsSending())
	assert.Empty(t, chip.Sent())
}

func TestWaitTransmittedPollsIsSending(t *testing.T) {
	dev, chip := newDevice(t, func(hw *nrf.HardwareConfig) {
		hw.MaxPolls = 1
	})
	dev.EnterTransmitMode()

	require.True(t, dev.IsSending())
	_, err := dev.WaitTransmitted()
	assert.ErrorIs(t, err, nrf.ErrTimeout)

	require.NoError(t, dev.SendPayload(nrf.DefaultOutbound))
	require.False(t, dev.IsSending())
	chip.ResetTrace()
	status, err := dev.WaitTransmitted()
	require.NoError(t, err)
	assert.True(t, status.DataSent())
	assert.Equal(t, [][]byte{{0xFF}}, frames(chip.Trace()), "one poll when already done")
}

func TestWaitTransmittedMaxPolls(t *testing.T) {
	dev, chip := newDevice(t, func(hw *nrf.HardwareConfig) {
		hw.MaxPolls = 3
	})
	dev.EnterTransmitMode()
	chip.ResetTrace()

	_, err := dev.WaitTransmitted()

	assert.ErrorIs(t, err, nrf.ErrTimeout)
	assert.Len(t, frames(chip.Trace()), 3)
}

func TestFlushCommands(t *testing.T) {
	dev, chip := newDevice(t)

	dev.FlushTX()
	dev.FlushRX()

	assert.Equal(t, [][]byte{{0xE1}, {0xE2}}, frames(chip.Trace()))
}

func TestResetStatus(t *testing.T) {
	dev, chip := newDevice(t)
	require.NoError(t, chip.Deliver(make([]byte, nrf.PayloadLen)))
	require.True(t, dev.Status().DataReady())
	chip.ResetTrace()

	dev.ResetStatus()

	assert.False(t, dev.Status().DataReady())
	trace := chip.Trace()
	assert.Equal(t, sleep(settle), trace[0])
	assert.Equal(t, [][]byte{{0x27, 0x70}, {0xFF}}, frames(trace))
}

func TestRadioSettings(t *testing.T) {
	dev, chip := newDevice(t)

	require.NoError(t, dev.SetChannel(76))
	assert.Equal(t, byte(76), chip.Register(nrf.RegRFCh))
	assert.Error(t, dev.SetChannel(126))

	require.NoError(t, dev.SetDataRate(nrf.DataRate2mbps))
	assert.Equal(t, byte(0x0E), chip.Register(nrf.RegRFSetup))

	require.NoError(t, dev.SetPALevel(nrf.PALevelMin))
	assert.Equal(t, byte(0x08), chip.Register(nrf.RegRFSetup))
	assert.Error(t, dev.SetPALevel(9))

	rx, tx := nrf.Address{9, 9, 9, 9, 9}, nrf.Address{8, 8, 8, 8, 8}
	dev.SetAddresses(rx, tx)
	assert.Equal(t, rx, chip.Address(nrf.RegRxAddrP0))
	assert.Equal(t, tx, chip.Address(nrf.RegTxAddr))
	assert.True(t, chip.ChipEnabled(), "CE restored")
}

func TestDiagnostics(t *testing.T) {
	dev, chip := newDevice(t)

	chip.SetRegister(nrf.RegObserveTX, 0xF3)
	lost, retries := dev.RetransmitCounters()
	assert.Equal(t, byte(15), lost)
	assert.Equal(t, byte(3), retries)

	assert.False(t, dev.CarrierDetected())
	chip.SetRegister(nrf.RegRPD, 0x01)
	assert.True(t, dev.CarrierDetected())

	assert.Equal(t, byte(0x69), dev.ReadRegister(nrf.RegRFCh))
}

func TestClosePowersDown(t *testing.T) {
	unwatched := 0
	dev, chip := newDevice(t, func(hw *nrf.HardwareConfig) {
		hw.IRQ = &hookPin{Pin: hw.IRQ, unwatch: func() error {
			unwatched++
			return nil
		}}
	})

	require.NoError(t, dev.Close())
	assert.Zero(t, unwatched, "the IRQ pin belongs to the capture path")

	assert.Zero(t, chip.Register(nrf.RegConfig)&nrf.ConfigPwrUp)
	assert.False(t, chip.ChipEnabled())
	assert.Equal(t, nrf.ModeStandby, dev.Mode())
}
