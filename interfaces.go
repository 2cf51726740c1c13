package nrf24node

// Level is a logic level on a pin. High is true.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "High"
	}
	return "Low"
}

// Pull selects the input bias of a pin.
type Pull uint8

const (
	PullNoChange Pull = iota
	PullFloat
	PullDown
	PullUp
)

// Edge selects which transitions Watch reports.
type Edge uint8

const (
	NoEdge Edge = iota
	RisingEdge
	FallingEdge
	BothEdges
)

// Bus is a byte-wide full-duplex serial bus.
// Chip-select is not part of the bus: the caller frames transactions with
// its own chip-select pin.
type Bus interface {
	// Transfer clocks w out while shifting one byte in, and blocks until
	// the transfer is complete.
	Transfer(w byte) (byte, error)
}

// Pin is a GPIO line: CE, CSN, IRQ, a status LED or a bit-bang bus wire.
type Pin interface {
	// Out drives the pin with l, switching it to output if needed.
	Out(l Level) error
	// In switches the pin to input with the given bias.
	In(pull Pull) error
	// Read samples the pin.
	Read() Level
	// Watch calls handler on every matching edge. Depending on the
	// platform the handler runs on a watcher goroutine or in interrupt
	// context, so it must not block for long.
	Watch(edge Edge, handler func()) error
	// Unwatch stops edge reporting.
	Unwatch() error
}
