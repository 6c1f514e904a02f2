// Package telemetry hands sensor values from the acquisition context to
// the bus context.
package telemetry

import (
	"fmt"
	"strconv"

	"github.com/robotalks/exbus.go/pkg/ex"
)

// Kind tells how a value is transmitted.
type Kind int

// Value kinds.
const (
	// Numeric values are sent in EX data packets.
	Numeric Kind = iota
	// Text values are only shown on the JetiBox.
	Text
)

// Descriptor defines how a value is announced and encoded.
type Descriptor struct {
	ID        uint8
	Label     string
	Unit      string
	Type      ex.DataType
	Precision uint8
	Longitude bool
}

// Value is one sensor reading.
type Value struct {
	Descriptor
	Kind   Kind
	Number float64
	Text   string
}

// Numeric creates a numeric value.
func (d Descriptor) Numeric(n float64) Value {
	return Value{Descriptor: d, Kind: Numeric, Number: n}
}

// Text creates a text value.
func (d Descriptor) Text(s string) Value {
	return Value{Descriptor: d, Kind: Text, Text: s}
}

// EX converts a numeric value for the data packet.
func (v Value) EX() ex.Value {
	return ex.Value{
		ID:        v.ID,
		Type:      v.Type,
		Precision: v.Precision,
		Number:    v.Number,
		Longitude: v.Longitude,
	}
}

// Format renders the value with its unit.
func (v Value) Format() string {
	if v.Kind == Text {
		return v.Text
	}
	s := strconv.FormatFloat(v.Number, 'f', int(v.Precision), 64)
	if v.Unit != "" {
		s += v.Unit
	}
	return s
}

// String implements fmt.Stringer.
func (v Value) String() string {
	return fmt.Sprintf("%d:%s=%s", v.ID, v.Label, v.Format())
}
