// Package jetibox renders the 2x16 character JetiBox terminal pages.
package jetibox

import (
	"fmt"

	"github.com/robotalks/exbus.go/pkg/telemetry"
)

// Display geometry.
const (
	LineSize = 16
	Size     = 2 * LineSize
)

// Buttons is the button byte of a JetiBox request, 0bLDUR0000.
// A cleared bit means the button is pressed.
type Buttons byte

// Buttons.
const (
	Right Buttons = 0x10
	Up    Buttons = 0x20
	Down  Buttons = 0x40
	Left  Buttons = 0x80
	None  Buttons = 0xF0
)

// Pressed returns the pressed buttons as set bits.
func (b Buttons) Pressed() Buttons {
	return ^b & None
}

// String implements fmt.Stringer.
func (b Buttons) String() string {
	s := ""
	for _, k := range []struct {
		b    Buttons
		name string
	}{{Left, "L"}, {Down, "D"}, {Up, "U"}, {Right, "R"}} {
		if b.Pressed()&k.b != 0 {
			s += k.name
		}
	}
	if s == "" {
		return "-"
	}
	return s
}

// Menu is the page navigation state.
// Page 0 shows the device, each following page shows one value, text
// values included. A Menu is owned by the bus context and is not safe
// for concurrent use.
type Menu struct {
	DeviceName string

	page int
	held Buttons
}

// NewMenu creates a Menu.
func NewMenu(deviceName string) *Menu {
	return &Menu{DeviceName: deviceName}
}

// Page gets the current page.
func (m *Menu) Page() int {
	return m.page
}

// Handle applies the buttons of a request and renders the current page.
// A button acts once when pressed, holding it has no further effect.
func (m *Menu) Handle(buttons byte, snap *telemetry.Snapshot) [Size]byte {
	pressed := Buttons(buttons).Pressed()
	edge := pressed &^ m.held
	m.held = pressed

	pages := len(snap.Values) + 1
	switch {
	case edge&Right != 0:
		m.page = (m.page + 1) % pages
	case edge&Left != 0:
		m.page = (m.page + pages - 1) % pages
	case edge&Up != 0:
		m.page = 0
	}
	if m.page >= pages {
		m.page = 0
	}
	return m.render(snap)
}

// Render renders the current page.
func (m *Menu) Render(snap *telemetry.Snapshot) [Size]byte {
	if m.page > len(snap.Values) {
		m.page = 0
	}
	return m.render(snap)
}

func (m *Menu) render(snap *telemetry.Snapshot) (text [Size]byte) {
	var line1, line2 string
	if m.page == 0 {
		line1 = m.DeviceName
		if snap.Generation == 0 {
			line2 = "no data"
		} else {
			line2 = fmt.Sprintf("%d values", len(snap.Values))
		}
	} else {
		v := snap.Values[m.page-1]
		line1 = v.Label
		line2 = fmt.Sprintf("%*s", LineSize, v.Format())
	}
	fill(text[:LineSize], line1)
	fill(text[LineSize:], line2)
	return
}

// fill writes s as ASCII, padded with spaces and truncated to dst.
func fill(dst []byte, s string) {
	n := 0
	for _, r := range s {
		if n >= len(dst) {
			break
		}
		if r < 0x20 || r > 0x7E {
			r = '?'
		}
		dst[n] = byte(r)
		n++
	}
	for ; n < len(dst); n++ {
		dst[n] = ' '
	}
}
