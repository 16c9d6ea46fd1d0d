// Package pia65c21 implements a W65C21 PIA: two 8 bit ports with per bit
// direction control selected through the control registers, four
// discrete control lines (CA1/CA2/CB1/CB2) with edge triggered interrupt
// flags and a simplified single bit handshake output mirror. Unlike the
// VIA no live external sampling is modeled on port reads.
package pia65c21

import (
	"github.com/berrycomp/wdc65xx/device"
	"github.com/berrycomp/wdc65xx/irq"
)

var _ = device.Device(&Chip{})

// Register offsets within the 4 byte window.
const (
	kREG_PORT_B    = uint16(0x0)
	kREG_PORT_A    = uint16(0x1)
	kREG_CONTROL_B = uint16(0x2)
	kREG_CONTROL_A = uint16(0x3)

	kMASK_WINDOW = uint16(0x0003)
)

// Control register bits.
const (
	kCTRL_LINE1       = uint8(0x01) // Read: line 1 input level.
	kCTRL_LINE2       = uint8(0x02) // Read: line 2 level. Write: line 2 output mode.
	kCTRL_DDR         = uint8(0x0F) // Write: low nibble becomes the port DDR.
	kCTRL_IRQ1_ENABLE = uint8(0x10) // Line 1 edge interrupt enable.
	kCTRL_IRQ2_ENABLE = uint8(0x20) // Line 2 edge interrupt enable.
	kCTRL_IRQ_FLAG    = uint8(0x80) // Read: side interrupt flag.
)

// Chip implements the register window and control line state of a
// single W65C21.
type Chip struct {
	portA uint8
	portB uint8
	ddra  uint8 // 1 == output, set from control A low nibble.
	ddrb  uint8

	controlA uint8
	controlB uint8

	// Control line levels, true == high.
	ca1, ca2, cb1, cb2 bool

	// Edge triggered interrupt flags, one per port side.
	irqA, irqB bool

	// Derived handshake output levels.
	ca2Output bool
	cb2Output bool

	irqLine *irq.Source // This chip's vote on the shared IRQ line.
}

// ChipDef is the set of options for initializing a Chip.
type ChipDef struct {
	// IRQ is this chip's contribution on the shared interrupt line.
	// If nil a detached source is allocated.
	IRQ *irq.Source
}

// State is the complete persisted state of a Chip.
type State struct {
	PortA     uint8
	PortB     uint8
	DDRA      uint8
	DDRB      uint8
	ControlA  uint8
	ControlB  uint8
	CA1       bool
	CA2       bool
	CB1       bool
	CB2       bool
	IRQA      bool
	IRQB      bool
	CA2Output bool
	CB2Output bool
}

// Init returns a fully initialized Chip in its reset state.
func Init(d *ChipDef) *Chip {
	if d == nil {
		d = &ChipDef{}
	}
	p := &Chip{irqLine: d.IRQ}
	if p.irqLine == nil {
		p.irqLine = irq.NewLine().Source("pia65c21")
	}
	p.Reset()
	return p
}

// Reset zeroes all ports, directions and controls, drops all four line
// levels, both interrupt flags and both handshake outputs, and clears
// this chip's IRQ vote.
func (p *Chip) Reset() {
	p.portA, p.portB = 0x00, 0x00
	p.ddra, p.ddrb = 0x00, 0x00
	p.controlA, p.controlB = 0x00, 0x00
	p.ca1, p.ca2, p.cb1, p.cb2 = false, false, false, false
	p.irqA, p.irqB = false, false
	p.ca2Output, p.cb2Output = false, false
	p.irqLine.Clear()
}

// WindowSize implements device.Device.
func (p *Chip) WindowSize() uint16 {
	return 4
}

// Raised implements irq.Sender for this chip's own interrupt state.
func (p *Chip) Raised() bool {
	return p.irqA || p.irqB
}

// Read returns the register at the given window offset. Control reads
// mirror the live line levels in bits 0/1 and the side's interrupt flag
// in bit 7.
func (p *Chip) Read(addr uint16) uint8 {
	switch addr & kMASK_WINDOW {
	case kREG_PORT_B:
		return p.readPort(p.portB, p.ddrb)
	case kREG_PORT_A:
		return p.readPort(p.portA, p.ddra)
	case kREG_CONTROL_B:
		return p.readControl(p.cb1, p.cb2, p.irqB)
	case kREG_CONTROL_A:
		return p.readControl(p.ca1, p.ca2, p.irqA)
	}
	return 0x00
}

// Write stores the register at the given window offset. A control write
// installs its low nibble as the matching port's DDR, recomputes the
// handshake output and re-evaluates the IRQ line.
func (p *Chip) Write(addr uint16, val uint8) {
	switch addr & kMASK_WINDOW {
	case kREG_PORT_B:
		p.portB = val
		p.updateCB2Output()
	case kREG_PORT_A:
		p.portA = val
		p.updateCA2Output()
	case kREG_CONTROL_B:
		p.controlB = val
		p.ddrb = val & kCTRL_DDR
		p.updateCB2Output()
		p.updateIRQ()
	case kREG_CONTROL_A:
		p.controlA = val
		p.ddra = val & kCTRL_DDR
		p.updateCA2Output()
		p.updateIRQ()
	}
}

// Tick implements device.Device. The PIA has no timing behavior.
func (p *Chip) Tick() error {
	return nil
}

// Signal handles named control signals. Only the reset family is
// recognized.
func (p *Chip) Signal(name string) {
	if device.IsReset(device.NormalizeSignal(name)) {
		p.Reset()
	}
}

// SetCA1 drives the CA1 input. Only an actual level change has effect:
// the side A flag latches if control A has the line 1 enable bit set.
func (p *Chip) SetCA1(level bool) {
	if p.ca1 == level {
		return
	}
	p.ca1 = level
	p.irqA = p.controlA&kCTRL_IRQ1_ENABLE != 0
	p.updateIRQ()
}

// SetCA2 drives the CA2 input. Ignored while CA2 is in output mode.
func (p *Chip) SetCA2(level bool) {
	if p.controlA&kCTRL_LINE2 != 0 {
		return
	}
	if p.ca2 == level {
		return
	}
	p.ca2 = level
	p.irqA = p.controlA&kCTRL_IRQ2_ENABLE != 0
	p.updateIRQ()
}

// SetCB1 drives the CB1 input. Same contract as SetCA1 for side B.
func (p *Chip) SetCB1(level bool) {
	if p.cb1 == level {
		return
	}
	p.cb1 = level
	p.irqB = p.controlB&kCTRL_IRQ1_ENABLE != 0
	p.updateIRQ()
}

// SetCB2 drives the CB2 input. Ignored while CB2 is in output mode.
func (p *Chip) SetCB2(level bool) {
	if p.controlB&kCTRL_LINE2 != 0 {
		return
	}
	if p.cb2 == level {
		return
	}
	p.cb2 = level
	p.irqB = p.controlB&kCTRL_IRQ2_ENABLE != 0
	p.updateIRQ()
}

// CA2Output returns the derived CA2 handshake output level.
func (p *Chip) CA2Output() bool {
	return p.ca2Output
}

// CB2Output returns the derived CB2 handshake output level.
func (p *Chip) CB2Output() bool {
	return p.cb2Output
}

// Save captures the complete register and line state.
func (p *Chip) Save() State {
	return State{
		PortA:     p.portA,
		PortB:     p.portB,
		DDRA:      p.ddra,
		DDRB:      p.ddrb,
		ControlA:  p.controlA,
		ControlB:  p.controlB,
		CA1:       p.ca1,
		CA2:       p.ca2,
		CB1:       p.cb1,
		CB2:       p.cb2,
		IRQA:      p.irqA,
		IRQB:      p.irqB,
		CA2Output: p.ca2Output,
		CB2Output: p.cb2Output,
	}
}

// Load restores a previously captured state and re-evaluates the IRQ
// line from the restored flags.
func (p *Chip) Load(s State) {
	p.portA = s.PortA
	p.portB = s.PortB
	p.ddra = s.DDRA
	p.ddrb = s.DDRB
	p.controlA = s.ControlA
	p.controlB = s.ControlB
	p.ca1 = s.CA1
	p.ca2 = s.CA2
	p.cb1 = s.CB1
	p.cb2 = s.CB2
	p.irqA = s.IRQA
	p.irqB = s.IRQB
	p.ca2Output = s.CA2Output
	p.cb2Output = s.CB2Output
	p.updateIRQ()
}

// readPort combines stored port bits against the DDR. Both directions
// return the last written value since no live sampling is modeled.
func (p *Chip) readPort(port, ddr uint8) uint8 {
	return (port & ddr) | (port &^ ddr)
}

func (p *Chip) readControl(line1, line2, flag bool) uint8 {
	var ret uint8
	if line1 {
		ret |= kCTRL_LINE1
	}
	if line2 {
		ret |= kCTRL_LINE2
	}
	if flag {
		ret |= kCTRL_IRQ_FLAG
	}
	return ret
}

// updateCA2Output mirrors port A bit 1 onto CA2 while control A has the
// output mode bit set.
func (p *Chip) updateCA2Output() {
	p.ca2Output = p.controlA&kCTRL_LINE2 != 0 && p.portA&0x02 != 0
}

func (p *Chip) updateCB2Output() {
	p.cb2Output = p.controlB&kCTRL_LINE2 != 0 && p.portB&0x02 != 0
}

func (p *Chip) updateIRQ() {
	p.irqLine.Set(p.irqA || p.irqB)
}
