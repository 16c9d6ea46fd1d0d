// Package device defines the capability interface shared by the memory
// mapped peripheral chips in this module. A host composes devices behind
// this interface and is responsible for dispatching bus accesses into the
// right register window and for calling Tick once per emulated clock.
package device

import "strings"

// Device is the register window and clock surface of a peripheral chip.
type Device interface {
	// Read returns the byte at the given window offset. Only the low
	// bits covering the window size are significant.
	Read(addr uint16) uint8
	// Write stores a byte at the given window offset. Writes to
	// undefined offsets are no-ops.
	Write(addr uint16, val uint8)
	// Tick advances the chip one clock cycle. Any error returned is a
	// captured fault for the host to inspect. The chip itself is always
	// left in a consistent state.
	Tick() error
	// Signal delivers a named control signal (RESET etc). Unknown names
	// are ignored.
	Signal(name string)
	// WindowSize returns the size in bytes of the register window.
	WindowSize() uint16
}

// NormalizeSignal canonicalizes a signal name for comparison.
func NormalizeSignal(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// IsReset reports whether the (already normalized) signal name is one of
// the reset spellings devices accept.
func IsReset(name string) bool {
	switch name {
	case "RESET", "RES", "RST":
		return true
	}
	return false
}
