// Package acia65c51 implements a W65C51N ACIA (UART style serial
// adapter) at byte granularity: single slot transmit and receive holding
// registers, a status/command register pair and a control register whose
// baud and frame format selection drives a ticks-per-byte transmit
// countdown. Bit level shift register emulation is not modeled.
package acia65c51

import (
	"fmt"
	"math"

	"github.com/berrycomp/wdc65xx/device"
	"github.com/berrycomp/wdc65xx/irq"
)

var _ = device.Device(&Chip{})

// Register offsets within the 4 byte window.
const (
	kREG_DATA    = uint16(0x0)
	kREG_STATUS  = uint16(0x1) // Read = status, write = command.
	kREG_CONTROL = uint16(0x2)
	kREG_TEST    = uint16(0x3)

	kMASK_WINDOW = uint16(0x0003)
)

// Status register bits.
const (
	kST_RDRF = uint8(0x01) // Receive data register full.
	kST_TDRE = uint8(0x02) // Transmit data register empty.
	kST_DCD  = uint8(0x04) // Data carrier detect.
	kST_CTS  = uint8(0x08) // Clear to send.
	kST_FE   = uint8(0x10) // Framing error.
	kST_OVR  = uint8(0x20) // Overrun error.
	kST_PE   = uint8(0x40) // Parity error.
	kST_IRQ  = uint8(0x80) // IRQ asserted.
)

// Command register bits.
const (
	kCMD_RX_ENABLE     = uint8(0x01)
	kCMD_DTR           = uint8(0x02)
	kCMD_TX_IRQ_ENABLE = uint8(0x04)
	kCMD_RX_IRQ_ENABLE = uint8(0x08)
	kCMD_TX_ENABLE     = uint8(0x10)
	kCMD_RTS           = uint8(0x20)
)

const kDEFAULT_CLOCK_HZ = 1000000

// Two bank baud rate table indexed by control register bits 0-2 with the
// bank selected by bit 3.
var baudTable = [2][8]int{
	{50, 75, 110, 134, 150, 300, 600, 1200},
	{1800, 2400, 3600, 4800, 7200, 9600, 19200, 38400},
}

// Sink receives each completed transmit. A Sink returning an error (or
// panicking) never corrupts chip state; the fault is surfaced from Tick
// for the host to inspect.
type Sink interface {
	// TransmitByte is invoked once per completed transmit with the raw
	// byte value.
	TransmitByte(val uint8) error
}

// Chip implements the register window, timing and interrupt state of a
// single W65C51N.
type Chip struct {
	status  uint8
	command uint8
	control uint8
	test    uint8

	rxHolding uint8 // Pending iff status RDRF is set.
	txHolding uint8 // Pending iff status TDRE is clear.
	txTicks   int   // Countdown until the pending transmit completes.

	// Frame shape derived from the control register.
	baud          int
	dataBits      int
	stopBits      int
	parityEnabled bool
	parityEven    bool

	clockHz int         // Driving clock used for baud to tick conversion.
	sink    Sink        // Transmit consumer, may be nil.
	irqLine *irq.Source // This chip's vote on the shared IRQ line.
	nmiLine *irq.Source // Non-maskable line, driven only via Signal.
}

// ChipDef is the set of options for initializing a Chip.
type ChipDef struct {
	// Sink consumes transmitted bytes. May be nil and may be swapped
	// later with SetSink.
	Sink Sink

	// IRQ is this chip's contribution on the shared interrupt line.
	// If nil a detached source is allocated.
	IRQ *irq.Source

	// NMI is this chip's contribution on the non-maskable line.
	// If nil a detached source is allocated.
	NMI *irq.Source

	// ClockHz is the driving clock for baud conversion. <= 0 uses 1MHz.
	ClockHz int
}

// State is the complete persisted state of a Chip. The frame shape and
// baud are re-derived from the control register on Load.
type State struct {
	Status    uint8
	Command   uint8
	Control   uint8
	Test      uint8
	RXHolding uint8
	TXHolding uint8
	TXTicks   int
}

// Init returns a fully initialized Chip in its reset state.
func Init(d *ChipDef) *Chip {
	if d == nil {
		d = &ChipDef{}
	}
	a := &Chip{
		sink:    d.Sink,
		irqLine: d.IRQ,
		nmiLine: d.NMI,
		clockHz: d.ClockHz,
	}
	if a.irqLine == nil {
		a.irqLine = irq.NewLine().Source("acia65c51")
	}
	if a.nmiLine == nil {
		a.nmiLine = irq.NewLine().Source("acia65c51-nmi")
	}
	if a.clockHz <= 0 {
		a.clockHz = kDEFAULT_CLOCK_HZ
	}
	a.Reset()
	return a
}

// Reset returns the chip to power on state: transmitter empty with
// CTS/DCD active, everything else cleared and this chip's IRQ vote
// dropped.
func (a *Chip) Reset() {
	a.status = kST_TDRE | kST_CTS | kST_DCD
	a.command = 0x00
	a.control = 0x00
	a.test = 0x00
	a.rxHolding = 0x00
	a.txHolding = 0x00
	a.txTicks = 0
	a.configureFromControl()
	a.irqLine.Clear()
}

// SetSink attaches (or with nil detaches) the transmit consumer.
func (a *Chip) SetSink(s Sink) {
	a.sink = s
}

// WindowSize implements device.Device.
func (a *Chip) WindowSize() uint16 {
	return 4
}

// Raised implements irq.Sender for this chip's own interrupt state.
func (a *Chip) Raised() bool {
	return a.interruptWanted()
}

// Read returns the register at the given window offset. Reading the data
// register consumes a pending receive byte, clearing RDRF and the
// parity/framing error bits; with nothing pending it reads as 0.
func (a *Chip) Read(addr uint16) uint8 {
	switch addr & kMASK_WINDOW {
	case kREG_DATA:
		if a.status&kST_RDRF == 0 {
			return 0x00
		}
		val := a.rxHolding
		a.rxHolding = 0x00
		a.status &^= kST_RDRF | kST_PE | kST_FE
		a.updateIRQ()
		return val
	case kREG_STATUS:
		return a.status
	case kREG_CONTROL:
		return a.control
	case kREG_TEST:
		return a.test
	}
	return 0x00
}

// Write stores the register at the given window offset. A data write
// with the transmitter enabled loads the single transmit slot
// (overwriting any unsent byte) and arms the per byte countdown; with
// only the receiver enabled it loads the receive slot directly, the
// loopback path used for host injected delivery through the register
// window.
func (a *Chip) Write(addr uint16, val uint8) {
	switch addr & kMASK_WINDOW {
	case kREG_DATA:
		if a.command&kCMD_TX_ENABLE != 0 {
			a.txHolding = val
			a.status &^= kST_TDRE
			a.txTicks = a.ticksPerByte()
			a.updateIRQ()
		} else if a.command&kCMD_RX_ENABLE != 0 {
			a.rxHolding = val
			a.status |= kST_RDRF
			a.updateIRQ()
		}
	case kREG_STATUS:
		a.command = val
		a.updateIRQ()
	case kREG_CONTROL:
		a.control = val
		a.configureFromControl()
	case kREG_TEST:
		a.test = val
	}
}

// ReceiveByte injects a byte arriving from outside (a peer serial device
// or console). Ignored entirely while the receiver is disabled. If a
// byte is already pending the new byte is lost and the overrun flag set;
// the pending byte is never overwritten.
func (a *Chip) ReceiveByte(val uint8) {
	if a.command&kCMD_RX_ENABLE == 0 {
		return
	}
	if a.status&kST_RDRF != 0 {
		a.status |= kST_OVR
	} else {
		a.rxHolding = val
		a.status |= kST_RDRF
	}
	a.updateIRQ()
}

// Tick advances transmit timing one clock. When a pending byte's
// countdown elapses it is delivered to the sink; a sink error or panic
// is captured and returned while the chip still completes the transmit
// (slot emptied, TDRE set, IRQ re-evaluated).
func (a *Chip) Tick() error {
	if a.status&kST_TDRE != 0 {
		return nil
	}
	a.txTicks--
	if a.txTicks > 0 {
		return nil
	}
	err := a.deliver(a.txHolding)
	a.txHolding = 0x00
	a.status |= kST_TDRE
	a.updateIRQ()
	return err
}

// Signal handles named control signals: the reset family plus NMI and
// IRQ which drive the respective bus lines directly.
func (a *Chip) Signal(name string) {
	switch n := device.NormalizeSignal(name); {
	case device.IsReset(n):
		a.Reset()
	case n == "NMI":
		a.nmiLine.Assert()
	case n == "IRQ":
		a.irqLine.Assert()
	}
}

// Save captures the complete register state.
func (a *Chip) Save() State {
	return State{
		Status:    a.status,
		Command:   a.command,
		Control:   a.control,
		Test:      a.test,
		RXHolding: a.rxHolding,
		TXHolding: a.txHolding,
		TXTicks:   a.txTicks,
	}
}

// Load restores a previously captured state, re-derives the baud/frame
// configuration from the restored control register and re-evaluates the
// IRQ line rather than trusting the stored IRQ status bit.
func (a *Chip) Load(s State) {
	a.status = s.Status
	a.command = s.Command
	a.control = s.Control
	a.test = s.Test
	a.rxHolding = s.RXHolding
	a.txHolding = s.TXHolding
	a.txTicks = s.TXTicks
	a.configureFromControl()
	a.updateIRQ()
}

// Baud returns the currently configured baud rate.
func (a *Chip) Baud() int {
	return a.baud
}

// TicksPerByte returns the transmit countdown a data write would arm
// under the current configuration.
func (a *Chip) TicksPerByte() int {
	return a.ticksPerByte()
}

func (a *Chip) deliver(val uint8) (err error) {
	if a.sink == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serial sink panic: %v", r)
		}
	}()
	if serr := a.sink.TransmitByte(val); serr != nil {
		err = fmt.Errorf("serial sink: %w", serr)
	}
	return err
}

func (a *Chip) configureFromControl() {
	bank := (a.control >> 3) & 0x01
	a.baud = baudTable[bank][a.control&0x07]

	switch (a.control >> 4) & 0x07 {
	case 1:
		a.dataBits, a.stopBits, a.parityEnabled = 7, 1, false
	case 2:
		a.dataBits, a.stopBits, a.parityEnabled, a.parityEven = 7, 1, true, true
	case 3:
		a.dataBits, a.stopBits, a.parityEnabled, a.parityEven = 7, 1, true, false
	case 4:
		a.dataBits, a.stopBits, a.parityEnabled = 8, 2, false
	default:
		// Includes format 0 and unrecognized codes: 8N1.
		a.dataBits, a.stopBits, a.parityEnabled = 8, 1, false
	}
}

// ticksPerByte converts the configured baud and frame shape into clock
// ticks per transmitted byte: start bit + data bits + optional parity +
// stop bits, each costing clockHz/baud ticks.
func (a *Chip) ticksPerByte() int {
	if a.baud <= 0 {
		return 1
	}
	frameBits := 1 + a.dataBits + a.stopBits
	if a.parityEnabled {
		frameBits++
	}
	if frameBits < 1 {
		frameBits = 1
	}
	ticksPerBit := a.clockHz / a.baud
	if ticksPerBit < 1 {
		ticksPerBit = 1
	}
	ticks := int64(ticksPerBit) * int64(frameBits)
	if ticks > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ticks)
}

func (a *Chip) interruptWanted() bool {
	rx := a.command&kCMD_RX_IRQ_ENABLE != 0 && a.status&kST_RDRF != 0
	tx := a.command&kCMD_TX_IRQ_ENABLE != 0 && a.status&kST_TDRE != 0
	return rx || tx
}

func (a *Chip) updateIRQ() {
	if a.interruptWanted() {
		a.status |= kST_IRQ
		a.irqLine.Assert()
	} else {
		a.status &^= kST_IRQ
		a.irqLine.Clear()
	}
}
