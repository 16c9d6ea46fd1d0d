// wdcterm is a small glass TTY front end for the peripheral set: a tcell
// screen acts as the serial sink for the ACIA, keystrokes are injected as
// received bytes and a polled echo loop plays the role of firmware. The
// status line shows the VIA timer, the shared IRQ line and the PIA port
// state. There is no CPU core here; the host loop below is the driver.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"time"

	"github.com/berrycomp/wdc65xx/machine"
	"github.com/gdamore/tcell"
)

var (
	clock    = flag.Int("clock", 1000000, "Driving clock in Hz used for baud timing")
	control  = flag.Int("control", 0x0D, "ACIA control register value (default 9600 8N1)")
	saveFile = flag.String("save", "", "Path for state snapshots (F2 saves, F3 restores)")
)

const ticksPerFrame = 10000 // 10ms of a 1MHz clock per UI frame.

// console renders transmitted bytes onto a tcell screen.
type console struct {
	screen tcell.Screen
	x, y   int
	style  tcell.Style
}

// TransmitByte implements acia65c51.Sink.
func (c *console) TransmitByte(val uint8) error {
	w, h := c.screen.Size()
	switch val {
	case '\r':
		c.x = 0
	case '\n':
		c.y++
	case 0x08: // backspace
		if c.x > 0 {
			c.x--
			c.screen.SetContent(c.x, c.y, ' ', nil, c.style)
		}
	case 0x0C: // form feed clears the screen
		c.screen.Clear()
		c.x, c.y = 0, 0
	default:
		c.screen.SetContent(c.x, c.y, rune(val), nil, c.style)
		c.x++
	}
	if c.x >= w {
		c.x = 0
		c.y++
	}
	if c.y >= h-1 {
		// Cheap scroll: wipe and restart at the top.
		c.screen.Clear()
		c.x, c.y = 0, 0
	}
	return nil
}

func drawString(s tcell.Screen, x, y int, style tcell.Style, str string) {
	for _, r := range str {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

func saveState(m *machine.Machine, path string) error {
	buf, err := json.MarshalIndent(m.Save(), "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, buf, 0644)
}

func loadState(m *machine.Machine, path string) error {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	var s machine.State
	if err := json.Unmarshal(buf, &s); err != nil {
		return err
	}
	m.Load(s)
	return nil
}

func main() {
	flag.Parse()

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("Can't create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("Can't init screen: %v", err)
	}
	defer screen.Fini()

	con := &console{screen: screen, style: tcell.StyleDefault}
	m := machine.Init(&machine.MachineDef{
		Sink:    con,
		ClockHz: *clock,
	})

	// Program the chips the way boot firmware would: serial format and
	// both directions enabled, VIA timer 1 free running at ~60Hz with
	// its interrupt unmasked, PIA port A low nibble as outputs.
	m.Write(machine.ACIABase+0x2, uint8(*control))
	m.Write(machine.ACIABase+0x1, 0x01|0x10) // RX enable | TX enable
	period := uint16(*clock / 60)
	m.Write(machine.VIABase+0x4, uint8(period&0xFF))
	m.Write(machine.VIABase+0x5, uint8(period>>8))
	m.Write(machine.VIABase+0xE, 0x80|0x40)
	m.Write(machine.PIABase+0x3, 0x0F)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			events <- screen.PollEvent()
		}
	}()

	var blink uint8
	frame := time.NewTicker(10 * time.Millisecond)
	defer frame.Stop()
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				switch ev.Key() {
				case tcell.KeyEscape, tcell.KeyCtrlC:
					return
				case tcell.KeyF2:
					if *saveFile != "" {
						if err := saveState(m, *saveFile); err != nil {
							log.Printf("Can't save state: %v", err)
						}
					}
				case tcell.KeyF3:
					if *saveFile != "" {
						if err := loadState(m, *saveFile); err != nil {
							log.Printf("Can't load state: %v", err)
						}
					}
				case tcell.KeyF5:
					m.Signal("RESET")
				case tcell.KeyEnter:
					m.ACIA().ReceiveByte('\r')
					m.ACIA().ReceiveByte('\n')
				case tcell.KeyBackspace, tcell.KeyBackspace2:
					m.ACIA().ReceiveByte(0x08)
				case tcell.KeyRune:
					r := ev.Rune()
					if r < 0x80 {
						m.ACIA().ReceiveByte(uint8(r))
					}
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		case <-frame.C:
			for i := 0; i < ticksPerFrame; i++ {
				if err := m.Tick(); err != nil {
					log.Printf("chip fault: %v", err)
				}
				// Polled echo firmware: anything received goes
				// straight back out the transmitter.
				if m.Read(machine.ACIABase+0x1)&0x01 != 0 {
					m.Write(machine.ACIABase+0x0, m.Read(machine.ACIABase+0x0))
				}
			}
			// Service the VIA timer interrupt and blink the PIA port.
			if m.Read(machine.VIABase+0xD)&0x40 != 0 {
				m.Read(machine.VIABase + 0x4) // clears the flag
				blink ^= 0x0F
				m.Write(machine.PIABase+0x1, blink)
			}
			status := fmt.Sprintf("wdcterm  clock=%dHz baud=%d irq=%-5t portA=%.2X  [ESC quit, F2 save, F3 load, F5 reset]",
				*clock, m.ACIA().Baud(), m.IRQ().Raised(), m.Read(machine.PIABase+0x1))
			w, h := screen.Size()
			style := tcell.StyleDefault.Reverse(true)
			for x := 0; x < w; x++ {
				screen.SetContent(x, h-1, ' ', nil, style)
			}
			drawString(screen, 0, h-1, style, status)
			screen.Show()
		}
	}
}

func init() {
	// tcell writes escape sequences; make sure log output doesn't fight
	// the screen while it's up.
	log.SetOutput(os.Stderr)
}
