// Package via65c22 implements the register level state of a W65C22 VIA:
// two 8 bit bi-directional ports with data direction registers and two
// free running 16 bit down counting timers feeding an interrupt
// flag/enable register pair. Timers are modeled at byte granularity per
// clock tick. One-shot timer mode and the shift register are stored but
// not modeled.
package via65c22

import (
	"github.com/berrycomp/wdc65xx/device"
	"github.com/berrycomp/wdc65xx/io"
	"github.com/berrycomp/wdc65xx/irq"
)

var _ = device.Device(&Chip{})

// Register offsets within the 16 byte window. Only the low 4 address
// bits are significant on Read/Write.
const (
	kORB_IRB      = uint16(0x0)
	kORA_IRA      = uint16(0x1)
	kDDRB         = uint16(0x2)
	kDDRA         = uint16(0x3)
	kT1C_L        = uint16(0x4)
	kT1C_H        = uint16(0x5)
	kT1L_L        = uint16(0x6)
	kT1L_H        = uint16(0x7)
	kT2C_L        = uint16(0x8)
	kT2C_H        = uint16(0x9)
	kSR           = uint16(0xA)
	kACR          = uint16(0xB)
	kPCR          = uint16(0xC)
	kIFR          = uint16(0xD)
	kIER          = uint16(0xE)
	kORA_NO_LATCH = uint16(0xF)

	kMASK_WINDOW = uint16(0x000F)

	// IFR/IER bit assignments (subset modeled).
	kIFR_TIMER1 = uint8(0x40)
	kIFR_TIMER2 = uint8(0x20)

	kMASK_FLAGS = uint8(0x7F)
	kMASK_SET   = uint8(0x80)
)

// Chip implements the register window, timers and interrupt state of a
// single W65C22.
type Chip struct {
	portA    uint8 // ORA output latch.
	portB    uint8 // ORB output latch.
	portADDR uint8 // Port A DDR (1 == output).
	portBDDR uint8 // Port B DDR (1 == output).

	timer1Counter uint16 // Live T1 down counter.
	timer1Latch   uint16 // T1 reload latch.
	timer2Counter uint16 // Live T2 down counter.
	timer2Latch   uint16 // T2 reload latch.

	shift uint8 // SR contents, stored only.
	acr   uint8 // Auxiliary control, stored only.
	pcr   uint8 // Peripheral control, stored only.
	ifr   uint8 // Interrupt flags, low 7 bits. Bit 7 synthesized on read.
	ier   uint8 // Interrupt enables, low 7 bits. Bit 7 forced on read.

	portAInput io.PortIn8  // Optional external input for port A.
	portBInput io.PortIn8  // Optional external input for port B.
	irqLine    *irq.Source // This chip's vote on the shared IRQ line.
}

// ChipDef is the set of options for initializing a Chip.
type ChipDef struct {
	// PortA is the external input for port A. If nil input bits read as ones.
	PortA io.PortIn8

	// PortB is the external input for port B. If nil input bits read as ones.
	PortB io.PortIn8

	// IRQ is this chip's contribution on the shared interrupt line.
	// If nil a detached source is allocated.
	IRQ *irq.Source
}

// State is the complete persisted state of a Chip. Save/Load round trip
// through this; the encoding is the host's choice.
type State struct {
	PortA         uint8
	PortB         uint8
	PortADDR      uint8
	PortBDDR      uint8
	Timer1Counter uint16
	Timer1Latch   uint16
	Timer2Counter uint16
	Timer2Latch   uint16
	Shift         uint8
	ACR           uint8
	PCR           uint8
	IFR           uint8
	IER           uint8
}

// Init returns a fully initialized Chip in its reset state.
func Init(d *ChipDef) *Chip {
	if d == nil {
		d = &ChipDef{}
	}
	v := &Chip{
		portAInput: d.PortA,
		portBInput: d.PortB,
		irqLine:    d.IRQ,
	}
	if v.irqLine == nil {
		v.irqLine = irq.NewLine().Source("via65c22")
	}
	v.Reset()
	return v
}

// Reset performs a power on reset of the chip: all ports, directions,
// timers and interrupt state cleared and this chip's IRQ vote dropped.
func (v *Chip) Reset() {
	v.portA, v.portB = 0x00, 0x00
	v.portADDR, v.portBDDR = 0x00, 0x00
	v.timer1Counter, v.timer1Latch = 0x0000, 0x0000
	v.timer2Counter, v.timer2Latch = 0x0000, 0x0000
	v.shift = 0x00
	v.acr, v.pcr = 0x00, 0x00
	v.ifr, v.ier = 0x00, 0x00
	v.irqLine.Clear()
}

// WindowSize implements device.Device.
func (v *Chip) WindowSize() uint16 {
	return 16
}

// Raised implements irq.Sender for this chip's own interrupt state.
func (v *Chip) Raised() bool {
	return v.interruptPending()
}

// Read returns the register at the given window offset. Reading a timer
// counter low byte clears that timer's interrupt flag. Unmapped offsets
// read as 0xFF.
func (v *Chip) Read(addr uint16) uint8 {
	switch addr & kMASK_WINDOW {
	case kORB_IRB:
		return v.readPort(v.portB, v.portBDDR, v.portBInput)
	case kORA_IRA, kORA_NO_LATCH:
		return v.readPort(v.portA, v.portADDR, v.portAInput)
	case kDDRB:
		return v.portBDDR
	case kDDRA:
		return v.portADDR
	case kT1C_L:
		v.clearFlag(kIFR_TIMER1)
		return uint8(v.timer1Counter & 0xFF)
	case kT1C_H:
		return uint8(v.timer1Counter >> 8)
	case kT1L_L:
		return uint8(v.timer1Latch & 0xFF)
	case kT1L_H:
		return uint8(v.timer1Latch >> 8)
	case kT2C_L:
		v.clearFlag(kIFR_TIMER2)
		return uint8(v.timer2Counter & 0xFF)
	case kT2C_H:
		return uint8(v.timer2Counter >> 8)
	case kSR:
		return v.shift
	case kACR:
		return v.acr
	case kPCR:
		return v.pcr
	case kIFR:
		ret := v.ifr & kMASK_FLAGS
		if v.interruptPending() {
			ret |= kMASK_SET
		}
		return ret
	case kIER:
		// Bit 7 always reads as set to announce the mask register.
		return (v.ier & kMASK_FLAGS) | kMASK_SET
	}
	return 0xFF
}

// Write stores the register at the given window offset. Writing a timer
// high counter byte reloads the live counter from the latch and clears
// that timer's flag. IFR writes are write-ones-to-clear and IER writes
// set or clear enables based on bit 7 of the payload.
func (v *Chip) Write(addr uint16, val uint8) {
	switch addr & kMASK_WINDOW {
	case kORB_IRB:
		v.portB = val
	case kORA_IRA, kORA_NO_LATCH:
		v.portA = val
	case kDDRB:
		v.portBDDR = val
	case kDDRA:
		v.portADDR = val
	case kT1C_L, kT1L_L:
		v.timer1Latch = (v.timer1Latch & 0xFF00) | uint16(val)
	case kT1C_H:
		v.timer1Latch = (v.timer1Latch & 0x00FF) | (uint16(val) << 8)
		// Arms and starts the timer.
		v.timer1Counter = v.timer1Latch
		v.clearFlag(kIFR_TIMER1)
	case kT1L_H:
		v.timer1Latch = (v.timer1Latch & 0x00FF) | (uint16(val) << 8)
	case kT2C_L:
		v.timer2Latch = (v.timer2Latch & 0xFF00) | uint16(val)
	case kT2C_H:
		v.timer2Latch = (v.timer2Latch & 0x00FF) | (uint16(val) << 8)
		v.timer2Counter = v.timer2Latch
		v.clearFlag(kIFR_TIMER2)
	case kSR:
		v.shift = val
	case kACR:
		v.acr = val
	case kPCR:
		v.pcr = val
	case kIFR:
		// Writing ones clears the matching flag bits.
		v.ifr &^= val & kMASK_FLAGS
		v.updateIRQ()
	case kIER:
		if val&kMASK_SET != 0 {
			v.ier |= val & kMASK_FLAGS
		} else {
			v.ier &^= val & kMASK_FLAGS
		}
		v.updateIRQ()
	}
}

// Tick advances both timers one clock. A counter decrementing off zero
// wraps to 0xFFFF which sets its interrupt flag and reloads the counter
// from the latch (free run). A counter already sitting at zero is left
// alone until the next high byte write rearms it.
func (v *Chip) Tick() error {
	if v.timer1Counter > 0 {
		v.timer1Counter--
		if v.timer1Counter == 0xFFFF {
			v.ifr |= kIFR_TIMER1
			v.updateIRQ()
			v.timer1Counter = v.timer1Latch
		}
	}
	if v.timer2Counter > 0 {
		v.timer2Counter--
		if v.timer2Counter == 0xFFFF {
			v.ifr |= kIFR_TIMER2
			v.updateIRQ()
			v.timer2Counter = v.timer2Latch
		}
	}
	return nil
}

// Signal handles named control signals. Only the reset family is
// recognized.
func (v *Chip) Signal(name string) {
	if device.IsReset(device.NormalizeSignal(name)) {
		v.Reset()
	}
}

// Save captures the complete register state.
func (v *Chip) Save() State {
	return State{
		PortA:         v.portA,
		PortB:         v.portB,
		PortADDR:      v.portADDR,
		PortBDDR:      v.portBDDR,
		Timer1Counter: v.timer1Counter,
		Timer1Latch:   v.timer1Latch,
		Timer2Counter: v.timer2Counter,
		Timer2Latch:   v.timer2Latch,
		Shift:         v.shift,
		ACR:           v.acr,
		PCR:           v.pcr,
		IFR:           v.ifr,
		IER:           v.ier,
	}
}

// Load restores a previously captured state and re-evaluates the IRQ
// line from the restored flags rather than trusting any stored line
// state.
func (v *Chip) Load(s State) {
	v.portA = s.PortA
	v.portB = s.PortB
	v.portADDR = s.PortADDR
	v.portBDDR = s.PortBDDR
	v.timer1Counter = s.Timer1Counter
	v.timer1Latch = s.Timer1Latch
	v.timer2Counter = s.Timer2Counter
	v.timer2Latch = s.Timer2Latch
	v.shift = s.Shift
	v.acr = s.ACR
	v.pcr = s.PCR
	v.ifr = s.IFR
	v.ier = s.IER
	v.updateIRQ()
}

// readPort combines the output latch with externally sampled input per
// the DDR: output bits come from the latch, input bits from the sampled
// pins. Absent input reads as all ones.
func (v *Chip) readPort(latch, ddr uint8, in io.PortIn8) uint8 {
	inputs := uint8(0xFF)
	if in != nil {
		inputs = in.Input()
	}
	return (latch & ddr) | (inputs &^ ddr)
}

func (v *Chip) clearFlag(mask uint8) {
	v.ifr &^= mask
	v.updateIRQ()
}

func (v *Chip) interruptPending() bool {
	return v.ifr&v.ier&kMASK_FLAGS != 0x00
}

func (v *Chip) updateIRQ() {
	v.irqLine.Set(v.interruptPending())
}
