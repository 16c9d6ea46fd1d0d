package device

import "testing"

func TestNormalizeSignal(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"reset", "RESET"},
		{" rst ", "RST"},
		{"Nmi", "NMI"},
	} {
		if got := NormalizeSignal(tc.in); got != tc.want {
			t.Errorf("NormalizeSignal(%q) got %q and want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsReset(t *testing.T) {
	for _, name := range []string{"RESET", "RES", "RST"} {
		if !IsReset(name) {
			t.Errorf("IsReset(%q) should be true", name)
		}
	}
	for _, name := range []string{"IRQ", "NMI", "", "RESETX"} {
		if IsReset(name) {
			t.Errorf("IsReset(%q) should be false", name)
		}
	}
}
