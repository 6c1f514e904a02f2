package frames

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/robotalks/exbus.go/pkg/ex"
	"github.com/robotalks/exbus.go/pkg/exbus"
	"github.com/robotalks/exbus.go/pkg/jetibox"
)

// Decoded is the printable form of a frame or an EX packet.
type Decoded struct {
	Kind     string       `json:"kind"`
	PacketID byte         `json:"packet-id"`
	DataID   byte         `json:"data-id"`
	Length   int          `json:"length"`
	Channels []float64    `json:"channels,omitempty"`
	Buttons  string       `json:"buttons,omitempty"`
	Packets  []*ex.Packet `json:"packets,omitempty"`
	Text     []string     `json:"text,omitempty"`
}

// Decode decodes an Ex Bus frame, or a bare EX packet when b starts with
// the EX start byte.
func Decode(b []byte) (*Decoded, error) {
	if len(b) > 0 && b[0] == ex.PacketStart {
		packets, err := decodePackets(b)
		if err != nil {
			return nil, err
		}
		return &Decoded{Kind: "ex", Length: len(b), Packets: packets}, nil
	}
	f, err := exbus.Classify(b)
	if err != nil {
		return nil, err
	}
	d := &Decoded{
		Kind:     f.Kind.String(),
		PacketID: f.PacketID,
		DataID:   f.DataID,
		Length:   f.DeclaredLength,
	}
	switch f.Kind {
	case exbus.KindChannelData:
		for _, v := range f.Channels() {
			d.Channels = append(d.Channels, exbus.ChannelMillis(v))
		}
	case exbus.KindJetiBoxRequest:
		d.Buttons = jetibox.Buttons(f.Buttons()).String()
	case exbus.KindTelemetryResponse:
		if d.Packets, err = decodePackets(f.Payload()); err != nil {
			return nil, err
		}
	case exbus.KindJetiBoxResponse:
		text := f.Payload()
		for len(text) > 0 {
			n := jetibox.LineSize
			if n > len(text) {
				n = len(text)
			}
			d.Text = append(d.Text, string(text[:n]))
			text = text[n:]
		}
	}
	return d, nil
}

func decodePackets(b []byte) (packets []*ex.Packet, err error) {
	for len(b) >= ex.PacketOverhead {
		p, err := ex.ParsePacket(b)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		b = b[int(b[1]&0x3F)+2:]
	}
	if len(b) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ex.ErrInvalidPacket, len(b))
	}
	return
}

// String implements fmt.Stringer.
func (d *Decoded) String() string {
	var w bytes.Buffer
	if d.Kind == "ex" {
		fmt.Fprintf(&w, "ex len=%d", d.Length)
	} else {
		fmt.Fprintf(&w, "%s id=%02x data=%02x len=%d", d.Kind, d.PacketID, d.DataID, d.Length)
	}
	if len(d.Channels) > 0 {
		items := make([]string, len(d.Channels))
		for n, v := range d.Channels {
			items[n] = fmt.Sprintf("%d:%.3fms", n+1, v)
		}
		fmt.Fprintf(&w, "\n  %s", strings.Join(items, " "))
	}
	if d.Buttons != "" {
		fmt.Fprintf(&w, " buttons=%s", d.Buttons)
	}
	for _, p := range d.Packets {
		fmt.Fprintf(&w, "\n  %s %s", p.Type, p.Serial)
		switch {
		case p.Label != nil:
			fmt.Fprintf(&w, " %d %q [%s]", p.Label.ID, p.Label.Name, p.Label.Unit)
		case p.Type == ex.TypeMessage:
			fmt.Fprintf(&w, " class=%d %q", p.Class, p.Message)
		}
		for _, v := range p.Values {
			fmt.Fprintf(&w, " %d=%g", v.ID, v.Number)
		}
	}
	for _, line := range d.Text {
		fmt.Fprintf(&w, "\n  |%s|", line)
	}
	return w.String()
}
