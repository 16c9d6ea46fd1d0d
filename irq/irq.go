// Package irq defines the interfaces and shared line state for working
// with a 6502 family interrupt. A receiver of interrupts (IRQ/NMI)
// will implement the Sender check to allow other components which generate
// them to easily raise state without cross coupling component logic.
// NOTE: Even though chips make a distinction between level and edge type interrupts
//       the interfaces here don't matter and assume implementors simply account for
//       this in clock cycle management.
package irq

type Sender interface {
	// Raised indicates whether the interrupt is currently held high.
	Raised() bool
}

type Receiver interface {
	// Install takes the given sender and stores it for later checks in appropriate logic.
	Install(s Sender)
}

// Line models a wired-OR interrupt line shared by any number of devices.
// Each device records its own contribution through a Source and the
// physical line is high whenever any contribution is. A device clearing
// its Source never drops another device's vote, so attaching more than
// one simultaneously active device to the same line is safe.
type Line struct {
	sources []*Source
}

// Source is one device's contribution to a Line. Devices hold their own
// Source and must never touch another device's.
type Source struct {
	name   string
	raised bool
}

// NewLine returns an empty line with no contributors.
func NewLine() *Line {
	return &Line{}
}

// Source allocates a new named contribution on the line. The name is only
// used for debugging output.
func (l *Line) Source(name string) *Source {
	s := &Source{name: name}
	l.sources = append(l.sources, s)
	return s
}

// Raised implements Sender over the OR of all contributions.
func (l *Line) Raised() bool {
	for _, s := range l.sources {
		if s.raised {
			return true
		}
	}
	return false
}

// Reset drops every contribution on the line.
func (l *Line) Reset() {
	for _, s := range l.sources {
		s.raised = false
	}
}

// Assert records this source as wanting the line high.
func (s *Source) Assert() {
	s.raised = true
}

// Clear drops this source's vote. The line itself stays high if any other
// source still wants it.
func (s *Source) Clear() {
	s.raised = false
}

// Raised reports this source's own vote, not the line state.
func (s *Source) Raised() bool {
	return s.raised
}

// Set records the vote at the given level.
func (s *Source) Set(raised bool) {
	s.raised = raised
}

// Name returns the name given at allocation.
func (s *Source) Name() string {
	return s.name
}
