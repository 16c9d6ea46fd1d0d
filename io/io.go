// Package io defines the basic interfaces for working
// with a 6502 family based I/O port (generally bi-directional).
// Implementors of chips with ports sample the input interface (if provided)
// when a port data register is read and combine it against the DDR.
package io

// PortIn8 defines an 8 bit input port.
type PortIn8 interface {
	// Input will return the current value being set on the given input port.
	Input() uint8
}

// PortOut8 defines an 8 bit output port.
type PortOut8 interface {
	// Output returns the current value the port is driving.
	Output() uint8
}
