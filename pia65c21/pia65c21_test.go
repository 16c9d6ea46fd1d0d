package pia65c21

import (
	"testing"

	"github.com/berrycomp/wdc65xx/irq"
	"github.com/go-test/deep"
)

func TestControlWriteSetsDDR(t *testing.T) {
	p := Init(nil)
	p.Write(kREG_CONTROL_A, 0x3C)
	if got, want := p.ddra, uint8(0x0C); got != want {
		t.Errorf("Bad DDRA from control write. Got %.2X and want %.2X", got, want)
	}
	p.Write(kREG_CONTROL_B, 0xF5)
	if got, want := p.ddrb, uint8(0x05); got != want {
		t.Errorf("Bad DDRB from control write. Got %.2X and want %.2X", got, want)
	}
}

func TestPortReadback(t *testing.T) {
	p := Init(nil)
	p.Write(kREG_CONTROL_A, 0x0F)
	p.Write(kREG_PORT_A, 0xA5)
	// No live sampling on this chip: both directions read the last write.
	if got, want := p.Read(kREG_PORT_A), uint8(0xA5); got != want {
		t.Errorf("Bad port A readback. Got %.2X and want %.2X", got, want)
	}
	p.Write(kREG_PORT_B, 0x5A)
	if got, want := p.Read(kREG_PORT_B), uint8(0x5A); got != want {
		t.Errorf("Bad port B readback. Got %.2X and want %.2X", got, want)
	}
}

func TestControlLineEdges(t *testing.T) {
	tests := []struct {
		name    string
		ctrlReg uint16
		enable  uint8
		set     func(p *Chip, level bool)
		flag    func(p *Chip) bool
	}{
		{
			name:    "CA1",
			ctrlReg: kREG_CONTROL_A,
			enable:  kCTRL_IRQ1_ENABLE,
			set:     (*Chip).SetCA1,
			flag:    func(p *Chip) bool { return p.irqA },
		},
		{
			name:    "CA2",
			ctrlReg: kREG_CONTROL_A,
			enable:  kCTRL_IRQ2_ENABLE,
			set:     (*Chip).SetCA2,
			flag:    func(p *Chip) bool { return p.irqA },
		},
		{
			name:    "CB1",
			ctrlReg: kREG_CONTROL_B,
			enable:  kCTRL_IRQ1_ENABLE,
			set:     (*Chip).SetCB1,
			flag:    func(p *Chip) bool { return p.irqB },
		},
		{
			name:    "CB2",
			ctrlReg: kREG_CONTROL_B,
			enable:  kCTRL_IRQ2_ENABLE,
			set:     (*Chip).SetCB2,
			flag:    func(p *Chip) bool { return p.irqB },
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			l := irq.NewLine()
			p := Init(&ChipDef{IRQ: l.Source("pia")})
			p.Write(test.ctrlReg, test.enable)
			// Any transition latches the flag while enabled.
			test.set(p, true)
			if got, want := test.flag(p), true; got != want {
				t.Fatalf("Flag not latched on rising edge. Got %t and want %t", got, want)
			}
			if got, want := l.Raised(), true; got != want {
				t.Errorf("Shared line not raised. Got %t and want %t", got, want)
			}
			// Setting the same level again is a no-op.
			test.set(p, true)
			if got, want := test.flag(p), true; got != want {
				t.Errorf("Same level call changed flag. Got %t and want %t", got, want)
			}
			// A transition with the enable clear drops the flag.
			p.Write(test.ctrlReg, 0x00)
			test.set(p, false)
			if got, want := test.flag(p), false; got != want {
				t.Errorf("Flag survived disabled transition. Got %t and want %t", got, want)
			}
			if got, want := l.Raised(), false; got != want {
				t.Errorf("Shared line still raised. Got %t and want %t", got, want)
			}
		})
	}
}

func TestLine2OutputModeIgnoresInput(t *testing.T) {
	p := Init(nil)
	// CA2 in output mode: level setter has no effect.
	p.Write(kREG_CONTROL_A, kCTRL_LINE2|kCTRL_IRQ2_ENABLE)
	p.SetCA2(true)
	if got, want := p.ca2, false; got != want {
		t.Errorf("CA2 moved while in output mode. Got %t and want %t", got, want)
	}
	if got, want := p.irqA, false; got != want {
		t.Errorf("CA2 flag latched while in output mode. Got %t and want %t", got, want)
	}
	p.Write(kREG_CONTROL_B, kCTRL_LINE2|kCTRL_IRQ2_ENABLE)
	p.SetCB2(true)
	if got, want := p.cb2, false; got != want {
		t.Errorf("CB2 moved while in output mode. Got %t and want %t", got, want)
	}
}

func TestControlRead(t *testing.T) {
	p := Init(nil)
	p.Write(kREG_CONTROL_A, kCTRL_IRQ1_ENABLE)
	// Each transition overwrites the side flag, so drive CA2 (enable
	// clear, flag dropped) before the CA1 edge that latches it.
	p.SetCA2(true)
	p.SetCA1(true)
	want := kCTRL_LINE1 | kCTRL_LINE2 | kCTRL_IRQ_FLAG
	if got := p.Read(kREG_CONTROL_A); got != want {
		t.Errorf("Bad control A read. Got %.2X and want %.2X", got, want)
	}
	// Side B untouched.
	if got, want := p.Read(kREG_CONTROL_B), uint8(0x00); got != want {
		t.Errorf("Bad control B read. Got %.2X and want %.2X", got, want)
	}
}

func TestHandshakeOutputs(t *testing.T) {
	p := Init(nil)
	// Output only while control bit 1 and port bit 1 are both set.
	p.Write(kREG_PORT_A, 0x02)
	if got, want := p.CA2Output(), false; got != want {
		t.Errorf("CA2 output high without output mode. Got %t and want %t", got, want)
	}
	p.Write(kREG_CONTROL_A, kCTRL_LINE2)
	if got, want := p.CA2Output(), true; got != want {
		t.Errorf("CA2 output not raised. Got %t and want %t", got, want)
	}
	p.Write(kREG_PORT_A, 0x00)
	if got, want := p.CA2Output(), false; got != want {
		t.Errorf("CA2 output not dropped. Got %t and want %t", got, want)
	}
	p.Write(kREG_CONTROL_B, kCTRL_LINE2)
	p.Write(kREG_PORT_B, 0x03)
	if got, want := p.CB2Output(), true; got != want {
		t.Errorf("CB2 output not raised. Got %t and want %t", got, want)
	}
}

func TestSharedLineBothSides(t *testing.T) {
	l := irq.NewLine()
	p := Init(&ChipDef{IRQ: l.Source("pia")})
	p.Write(kREG_CONTROL_A, kCTRL_IRQ1_ENABLE)
	p.Write(kREG_CONTROL_B, kCTRL_IRQ1_ENABLE)
	p.SetCA1(true)
	p.SetCB1(true)
	if got, want := l.Raised(), true; got != want {
		t.Fatalf("Line not raised. Got %t and want %t", got, want)
	}
	// Clearing one side's flag keeps the line while the other is pending.
	p.Write(kREG_CONTROL_A, 0x00)
	p.SetCA1(false)
	if got, want := p.irqA, false; got != want {
		t.Fatalf("Side A flag still set. Got %t and want %t", got, want)
	}
	if got, want := l.Raised(), true; got != want {
		t.Errorf("Line dropped with side B still pending. Got %t and want %t", got, want)
	}
	p.Write(kREG_CONTROL_B, 0x00)
	p.SetCB1(false)
	if got, want := l.Raised(), false; got != want {
		t.Errorf("Line still raised with both sides clear. Got %t and want %t", got, want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := Init(nil)
	p.Write(kREG_CONTROL_A, kCTRL_IRQ1_ENABLE|kCTRL_LINE2|0x0C)
	p.Write(kREG_CONTROL_B, kCTRL_IRQ1_ENABLE)
	p.Write(kREG_PORT_A, 0x12)
	p.Write(kREG_PORT_B, 0x34)
	p.SetCA1(true)
	p.SetCB1(true)
	state := p.Save()

	o := Init(nil)
	o.Load(state)
	if diff := deep.Equal(o.Save(), state); diff != nil {
		t.Errorf("State didn't round trip: %v", diff)
	}
	for addr := uint16(0x0); addr <= 0x3; addr++ {
		if got, want := o.Read(addr), p.Read(addr); got != want {
			t.Errorf("Register %.X differs after load. Got %.2X and want %.2X", addr, got, want)
		}
	}
}

func TestLoadReevaluatesIRQ(t *testing.T) {
	l := irq.NewLine()
	p := Init(&ChipDef{IRQ: l.Source("pia")})
	p.Load(State{IRQB: true})
	if got, want := l.Raised(), true; got != want {
		t.Errorf("Load didn't re-evaluate the IRQ line. Got %t and want %t", got, want)
	}
}

func TestResetIdempotent(t *testing.T) {
	p := Init(nil)
	p.Write(kREG_CONTROL_A, 0xFF)
	p.Write(kREG_PORT_A, 0xFF)
	p.SetCA1(true)
	p.Signal("RES")
	first := p.Save()
	p.Signal("reset")
	if diff := deep.Equal(p.Save(), first); diff != nil {
		t.Errorf("Double reset differs from single: %v", diff)
	}
	if diff := deep.Equal(first, State{}); diff != nil {
		t.Errorf("Reset state not zeroed: %v", diff)
	}
}
