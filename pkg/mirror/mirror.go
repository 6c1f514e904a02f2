// Package mirror publishes telemetry snapshots to an MQTT broker.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/exbus.go/pkg/ex"
	fx "github.com/robotalks/exbus.go/pkg/framework"
	"github.com/robotalks/exbus.go/pkg/telemetry"
)

// Publisher is the part of Queue used by Mirror.
type Publisher interface {
	Connected() bool
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// Meta is published retained on the meta topic.
type Meta struct {
	Name         string      `json:"name"`
	Manufacturer uint16      `json:"manufacturer"`
	Device       uint16      `json:"device"`
	Values       []MetaValue `json:"values"`
}

// MetaValue describes a published value.
type MetaValue struct {
	ID        uint8  `json:"id"`
	Label     string `json:"label"`
	Unit      string `json:"unit,omitempty"`
	Type      string `json:"type"`
	Precision uint8  `json:"precision"`
}

// NewMeta builds Meta from value descriptors.
func NewMeta(name string, serial ex.Serial, descs ...telemetry.Descriptor) Meta {
	meta := Meta{Name: name, Manufacturer: serial.Manufacturer, Device: serial.Device}
	for _, d := range descs {
		meta.Values = append(meta.Values, MetaValue{
			ID:        d.ID,
			Label:     d.Label,
			Unit:      d.Unit,
			Type:      d.Type.String(),
			Precision: d.Precision,
		})
	}
	return meta
}

// Topic returns the topic name of a device.
func Topic(serial ex.Serial) string {
	return fmt.Sprintf("%04x-%04x", serial.Manufacturer, serial.Device)
}

// Mirror publishes every new snapshot generation. It implements
// framework.Controller and framework.Runnable, Run publishes on its own
// loop so a slow broker never delays acquisition.
type Mirror struct {
	Queue     *Queue
	Publisher Publisher
	Store     *telemetry.Store
	Device    string
	Interval  time.Duration

	metaJSON []byte
	last     uint64
	resend   atomic.Bool
}

// New creates a Mirror connected to brokerURL.
func New(brokerURL string, store *telemetry.Store, serial ex.Serial, meta Meta) (*Mirror, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	device := Topic(serial)
	opts.SetBinaryWill(topicPrefix+device+"/meta", nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("exbus:" + device)
	}
	m := &Mirror{
		Queue:    NewQueue(opts, topicPrefix),
		Store:    store,
		Device:   device,
		Interval: fx.DefaultInterval,
	}
	m.Publisher = m.Queue
	if m.metaJSON, err = json.Marshal(&meta); err != nil {
		return nil, err
	}
	m.Queue.OnConnect = func(*Queue) { m.publishMeta(m.metaJSON) }
	m.Queue.OnDisconnect = func(*Queue) { m.resend.Store(true) }
	return m, nil
}

// Control implements framework.Controller.
func (m *Mirror) Control(ctx context.Context, now time.Time) error {
	if m.resend.Swap(false) {
		m.last = 0
	}
	snap := m.Store.Read()
	if snap.Generation == 0 || snap.Generation == m.last || !m.Publisher.Connected() {
		return nil
	}
	payload, err := Payload(snap)
	if err != nil {
		return err
	}
	m.last = snap.Generation
	token := m.Publisher.PubWith(m.Device+"/telemetry", payload, 0, false)
	if token.WaitTimeout(time.Second) {
		return token.Error()
	}
	return nil
}

// Run implements framework.Runnable.
func (m *Mirror) Run(ctx context.Context) error {
	if token := m.Queue.Connect(); token.Wait() && token.Error() != nil {
		glog.Warningf("mqtt connect: %v", token.Error())
	}
	m.Publish(ctx)
	if m.Queue.Connected() {
		m.publishMeta(nil)
	}
	return m.Queue.Close()
}

// Publish runs the publish loop until ctx is done.
func (m *Mirror) Publish(ctx context.Context) error {
	return fx.NewLoop(m.Interval).Add(m).Run(ctx)
}

func (m *Mirror) publishMeta(payload []byte) {
	token := m.Publisher.PubWith(m.Device+"/meta", payload, 1, true)
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		glog.Warningf("publish meta: %v", token.Error())
	}
}

// Payload encodes a snapshot as a protobuf Struct.
func Payload(snap *telemetry.Snapshot) ([]byte, error) {
	values := make([]*structpb.Value, 0, len(snap.Values))
	for _, v := range snap.Values {
		fields := map[string]*structpb.Value{
			"id":    numberValue(float64(v.ID)),
			"label": stringValue(v.Label),
		}
		if v.Unit != "" {
			fields["unit"] = stringValue(v.Unit)
		}
		if v.Kind == telemetry.Text {
			fields["text"] = stringValue(v.Text)
		} else {
			fields["value"] = numberValue(v.Number)
		}
		values = append(values, &structpb.Value{
			Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{Fields: fields}},
		})
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"generation": numberValue(float64(snap.Generation)),
		"time":       stringValue(snap.Time.UTC().Format(time.RFC3339Nano)),
		"values": {Kind: &structpb.Value_ListValue{
			ListValue: &structpb.ListValue{Values: values},
		}},
	}}
	return proto.Marshal(msg)
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}
