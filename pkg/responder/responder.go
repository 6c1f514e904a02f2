// Package responder answers Ex Bus requests from the latest telemetry snapshot.
package responder

import (
	"bytes"

	"github.com/golang/glog"

	"github.com/robotalks/exbus.go/pkg/ex"
	"github.com/robotalks/exbus.go/pkg/exbus"
	"github.com/robotalks/exbus.go/pkg/jetibox"
	"github.com/robotalks/exbus.go/pkg/telemetry"
)

// DefaultLabelFrames is the number of telemetry answers announcing labels
// before values are sent.
const DefaultLabelFrames = 100

// Responder implements exbus.Responder.
// It is used from the bus context only.
type Responder struct {
	Store       *telemetry.Store
	Serial      ex.Serial
	DeviceName  string
	LabelFrames int
	Menu        *jetibox.Menu

	answers    int
	next       int
	generation uint64
	labels     [][]byte
	chunks     [][]byte
}

// New creates a Responder.
func New(store *telemetry.Store, serial ex.Serial, deviceName string) *Responder {
	return &Responder{
		Store:       store,
		Serial:      serial,
		DeviceName:  deviceName,
		LabelFrames: DefaultLabelFrames,
		Menu:        jetibox.NewMenu(deviceName),
	}
}

// Respond implements exbus.Responder.
func (r *Responder) Respond(req *exbus.Frame) ([]byte, bool) {
	snap := r.Store.Read()
	var (
		answer []byte
		err    error
	)
	switch req.Kind {
	case exbus.KindTelemetryRequest:
		packet := r.telemetry(snap)
		if packet == nil {
			return nil, false
		}
		answer, err = exbus.EncodeResponse(req.PacketID, exbus.DataIDTelemetry, packet)
	case exbus.KindJetiBoxRequest:
		if r.Menu == nil {
			return nil, false
		}
		text := r.Menu.Handle(req.Buttons(), snap)
		answer, err = exbus.EncodeResponse(req.PacketID, exbus.DataIDJetiBox, text[:])
	default:
		return nil, false
	}
	if err != nil {
		glog.Errorf("responder: encode answer to %v: %v", req, err)
		return nil, false
	}
	return answer, true
}

// telemetry selects the EX packet for the next telemetry answer.
func (r *Responder) telemetry(snap *telemetry.Snapshot) []byte {
	if snap.Generation == 0 {
		return nil
	}
	if snap.Generation != r.generation {
		r.rebuild(snap)
	}
	if r.answers < r.LabelFrames && len(r.labels) > 0 {
		packet := r.labels[r.answers%len(r.labels)]
		r.answers++
		return packet
	}
	if len(r.chunks) == 0 {
		return nil
	}
	packet := r.chunks[r.next%len(r.chunks)]
	r.next++
	return packet
}

func (r *Responder) rebuild(snap *telemetry.Snapshot) {
	r.generation = snap.Generation
	numeric := snap.Numeric()

	labels := make([][]byte, 0, len(numeric)+1)
	if packet, err := ex.TextPacket(r.Serial, 0, r.DeviceName, ""); err == nil {
		labels = append(labels, packet)
	} else {
		glog.Warningf("responder: device name %q: %v", r.DeviceName, err)
	}
	for _, v := range numeric {
		packet, err := ex.TextPacket(r.Serial, v.ID, v.Label, v.Unit)
		if err != nil {
			glog.Warningf("responder: label of %d %q: %v", v.ID, v.Label, err)
			continue
		}
		labels = append(labels, packet)
	}
	if !sameLabels(r.labels, labels) {
		if r.labels != nil {
			glog.Infof("responder: labels changed, announcing %d labels", len(labels))
		}
		r.labels, r.answers = labels, 0
	}

	r.chunks = r.chunks[:0]
	var (
		body   []byte
		values []ex.Value
	)
	flush := func() {
		if len(values) == 0 {
			return
		}
		packet, err := ex.DataPacket(r.Serial, values...)
		if err != nil {
			glog.Errorf("responder: data packet: %v", err)
		} else {
			r.chunks = append(r.chunks, packet)
		}
		body, values = body[:0], values[:0]
	}
	for _, v := range numeric {
		encoded, err := ex.AppendValue(nil, v.EX())
		if err != nil {
			if glog.V(1) {
				glog.Warningf("responder: value %v: %v", v, err)
			}
			continue
		}
		if len(body)+len(encoded) > ex.MaxBodySize {
			flush()
		}
		body = append(body, encoded...)
		values = append(values, v.EX())
	}
	flush()
	if r.next >= len(r.chunks) {
		r.next = 0
	}
}

func sameLabels(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if !bytes.Equal(a[n], b[n]) {
			return false
		}
	}
	return true
}
