// Package machine is the main logic for pulling together the peripheral
// chips onto one bus. The actual chips are implemented in other packages
// and most of the logic here is simply the memory mappings for their
// register windows plus broadcast of clock ticks and control signals.
// The driving CPU core is an external collaborator: it consumes this
// package through the memory.Bank interface and the shared IRQ/NMI
// senders.
package machine

import (
	"fmt"

	"github.com/berrycomp/wdc65xx/acia65c51"
	"github.com/berrycomp/wdc65xx/device"
	"github.com/berrycomp/wdc65xx/io"
	"github.com/berrycomp/wdc65xx/irq"
	"github.com/berrycomp/wdc65xx/memory"
	"github.com/berrycomp/wdc65xx/pia65c21"
	"github.com/berrycomp/wdc65xx/via65c22"
)

var _ = memory.Bank(&Machine{})

// Base addresses of each chip's register window. Address decoding inside
// a window masks down to the window size; aliasing across repeats of a
// window is not modeled here.
const (
	ACIABase = uint16(0x8800)
	PIABase  = uint16(0x8C00)
	VIABase  = uint16(0x9000)
)

type mapping struct {
	base uint16
	dev  device.Device
}

// Machine composes a VIA, an ACIA and a PIA on a shared IRQ line.
type Machine struct {
	via  *via65c22.Chip
	acia *acia65c51.Chip
	pia  *pia65c21.Chip

	irqLine *irq.Line
	nmiLine *irq.Line

	windows []mapping
}

// MachineDef defines the pieces needed to set up the peripheral set.
type MachineDef struct {
	// Sink consumes bytes transmitted by the ACIA. May be nil.
	Sink acia65c51.Sink

	// ClockHz is the driving clock for the ACIA baud conversion.
	// <= 0 uses the chip default.
	ClockHz int

	// VIAPortA/VIAPortB optionally provide external input sampling for
	// the VIA ports.
	VIAPortA io.PortIn8
	VIAPortB io.PortIn8
}

// State aggregates every chip's persisted state.
type State struct {
	VIA  via65c22.State
	ACIA acia65c51.State
	PIA  pia65c21.State
}

// Init returns an initialized machine with all chips in reset state.
func Init(def *MachineDef) *Machine {
	if def == nil {
		def = &MachineDef{}
	}
	m := &Machine{
		irqLine: irq.NewLine(),
		nmiLine: irq.NewLine(),
	}
	m.via = via65c22.Init(&via65c22.ChipDef{
		PortA: def.VIAPortA,
		PortB: def.VIAPortB,
		IRQ:   m.irqLine.Source("via65c22"),
	})
	m.acia = acia65c51.Init(&acia65c51.ChipDef{
		Sink:    def.Sink,
		ClockHz: def.ClockHz,
		IRQ:     m.irqLine.Source("acia65c51"),
		NMI:     m.nmiLine.Source("acia65c51"),
	})
	m.pia = pia65c21.Init(&pia65c21.ChipDef{
		IRQ: m.irqLine.Source("pia65c21"),
	})
	m.windows = []mapping{
		{ACIABase, m.acia},
		{PIABase, m.pia},
		{VIABase, m.via},
	}
	return m
}

// VIA returns the timer/port chip.
func (m *Machine) VIA() *via65c22.Chip {
	return m.via
}

// ACIA returns the serial chip.
func (m *Machine) ACIA() *acia65c51.Chip {
	return m.acia
}

// PIA returns the parallel chip.
func (m *Machine) PIA() *pia65c21.Chip {
	return m.pia
}

// IRQ returns the shared interrupt line for a CPU core to poll.
func (m *Machine) IRQ() irq.Sender {
	return m.irqLine
}

// NMI returns the non-maskable line for a CPU core to poll.
func (m *Machine) NMI() irq.Sender {
	return m.nmiLine
}

// Read implements the memory.Bank interface. Addresses outside every
// register window read as 0xFF.
func (m *Machine) Read(addr uint16) uint8 {
	if d, off, ok := m.decode(addr); ok {
		return d.Read(off)
	}
	return 0xFF
}

// Write implements the memory.Bank interface. Writes outside every
// register window are no-ops.
func (m *Machine) Write(addr uint16, val uint8) {
	if d, off, ok := m.decode(addr); ok {
		d.Write(off, val)
	}
}

// PowerOn implements the memory.Bank interface by resetting every chip.
func (m *Machine) PowerOn() {
	m.Signal("RESET")
}

// Tick advances every chip one clock cycle. Chip faults (currently only
// ACIA sink failures) are collected rather than aborting the tick so a
// misbehaving consumer never stalls the other chips.
func (m *Machine) Tick() error {
	var errs []error
	for _, w := range m.windows {
		if err := w.dev.Tick(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Errorf("multiple chip faults: %v", errs)
}

// Signal broadcasts a named control signal to every chip.
func (m *Machine) Signal(name string) {
	for _, w := range m.windows {
		w.dev.Signal(name)
	}
}

// Save captures the state of every chip.
func (m *Machine) Save() State {
	return State{
		VIA:  m.via.Save(),
		ACIA: m.acia.Save(),
		PIA:  m.pia.Save(),
	}
}

// Load restores every chip and leaves the shared lines re-evaluated
// against the restored register state.
func (m *Machine) Load(s State) {
	m.via.Load(s.VIA)
	m.acia.Load(s.ACIA)
	m.pia.Load(s.PIA)
}

func (m *Machine) decode(addr uint16) (device.Device, uint16, bool) {
	for _, w := range m.windows {
		if addr >= w.base && addr < w.base+w.dev.WindowSize() {
			return w.dev, addr - w.base, true
		}
	}
	return nil, 0, false
}
