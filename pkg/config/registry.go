package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"

	"github.com/robotalks/exbus.go/pkg/ex"
	"github.com/robotalks/exbus.go/pkg/telemetry"
)

// DefaultManufacturer is the manufacturer part of the sensor serial.
const DefaultManufacturer = 0xA409

// ValueConfig describes one telemetry value in the registry file.
type ValueConfig struct {
	ID        uint8  `mapstructure:"id"`
	Label     string `mapstructure:"label"`
	Unit      string `mapstructure:"unit"`
	Type      string `mapstructure:"type"`
	Precision uint8  `mapstructure:"precision"`
	Longitude bool   `mapstructure:"longitude"`
}

// Registry maps sensor value names to telemetry descriptors.
type Registry struct {
	DeviceName   string                 `mapstructure:"device_name"`
	Manufacturer uint16                 `mapstructure:"manufacturer"`
	Device       uint16                 `mapstructure:"device"`
	Values       map[string]ValueConfig `mapstructure:"values"`
}

// DefaultRegistry describes the values of the vario.
func DefaultRegistry() *Registry {
	return &Registry{
		DeviceName:   "Ex Bus Vario",
		Manufacturer: DefaultManufacturer,
		Values: map[string]ValueConfig{
			"pressure":     {ID: 1, Label: "Air press.", Unit: "hPa", Type: "int22", Precision: 2},
			"temperature":  {ID: 2, Label: "Air temp.", Unit: "°C", Type: "int14", Precision: 1},
			"altitude":     {ID: 3, Label: "Altitude", Unit: "m", Type: "int22", Precision: 1},
			"climb":        {ID: 4, Label: "Climb", Unit: "m/s", Type: "int14", Precision: 2},
			"max_altitude": {ID: 11, Label: "Max alt.", Unit: "m", Type: "int22", Precision: 1},
			"max_climb":    {ID: 12, Label: "Max climb", Unit: "m/s", Type: "int14", Precision: 2},
		},
	}
}

// LoadRegistry reads a registry file. The format follows the extension.
func LoadRegistry(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("device_name", "Ex Bus Sensor")
	v.SetDefault("manufacturer", DefaultManufacturer)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read sensor registry: %w", err)
	}
	reg := &Registry{}
	if err := v.Unmarshal(reg); err != nil {
		return nil, fmt.Errorf("parse sensor registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("sensor registry %s: %w", path, err)
	}
	return reg, nil
}

// Names returns the value names ordered by ID.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Values))
	for name := range r.Values {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return r.Values[names[i]].ID < r.Values[names[j]].ID
	})
	return names
}

// Validate checks IDs are unique and every value can be announced.
func (r *Registry) Validate() error {
	if _, err := ex.TextPacket(ex.Serial{}, 0, r.DeviceName, ""); err != nil {
		return fmt.Errorf("device name %q: %w", r.DeviceName, err)
	}
	ids := make(map[uint8]string)
	for _, name := range r.Names() {
		vc := r.Values[name]
		if vc.ID == 0 || vc.ID > ex.MaxID {
			return fmt.Errorf("value %s: %w", name, ex.ErrInvalidID)
		}
		if other, ok := ids[vc.ID]; ok {
			return fmt.Errorf("value %s: id %d already used by %s", name, vc.ID, other)
		}
		ids[vc.ID] = name
		if _, err := ex.ParseDataType(vc.Type); err != nil {
			return fmt.Errorf("value %s: %w", name, err)
		}
		if vc.Precision > 3 {
			return fmt.Errorf("value %s: %w", name, ex.ErrInvalidPrecision)
		}
		if _, err := ex.TextPacket(ex.Serial{}, vc.ID, vc.Label, vc.Unit); err != nil {
			return fmt.Errorf("value %s label: %w", name, err)
		}
	}
	return nil
}

// Descriptor gets the descriptor of a value. A missing value yields a
// zero descriptor, which sensors skip.
func (r *Registry) Descriptor(name string) telemetry.Descriptor {
	vc, ok := r.Values[name]
	if !ok {
		return telemetry.Descriptor{}
	}
	typ, err := ex.ParseDataType(vc.Type)
	if err != nil {
		return telemetry.Descriptor{}
	}
	return telemetry.Descriptor{
		ID:        vc.ID,
		Label:     vc.Label,
		Unit:      vc.Unit,
		Type:      typ,
		Precision: vc.Precision,
		Longitude: vc.Longitude,
	}
}

// Descriptors lists all value descriptors ordered by ID.
func (r *Registry) Descriptors() []telemetry.Descriptor {
	names := r.Names()
	descs := make([]telemetry.Descriptor, 0, len(names))
	for _, name := range names {
		descs = append(descs, r.Descriptor(name))
	}
	return descs
}
