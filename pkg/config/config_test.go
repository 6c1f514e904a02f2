package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/exbus.go/pkg/ex"
	"github.com/robotalks/exbus.go/pkg/telemetry"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	require.NoError(t, reg.Validate())
	require.Equal(t, []string{"pressure", "temperature", "altitude", "climb", "max_altitude", "max_climb"}, reg.Names())
	require.Equal(t, telemetry.Descriptor{
		ID: 4, Label: "Climb", Unit: "m/s", Type: ex.Int14, Precision: 2,
	}, reg.Descriptor("climb"))
	require.Zero(t, reg.Descriptor("rpm").ID)

	descs := reg.Descriptors()
	require.Len(t, descs, 6)
	require.Equal(t, uint8(1), descs[0].ID)
	require.Equal(t, uint8(12), descs[5].ID)
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeFile(t, "sensors.yaml", `
device_name: Glider Vario
device: 0x0102
values:
  climb:
    id: 4
    label: Climb
    unit: m/s
    type: int14
    precision: 2
  latitude:
    id: 9
    label: Latitude
    type: gps
`)
	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Equal(t, "Glider Vario", reg.DeviceName)
	require.Equal(t, uint16(DefaultManufacturer), reg.Manufacturer)
	require.Equal(t, uint16(0x0102), reg.Device)
	require.Equal(t, ex.Int30GPS, reg.Descriptor("latitude").Type)
	require.Equal(t, []string{"climb", "latitude"}, reg.Names())
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "sensors.json", `{
  "values": {
    "voltage": {"id": 5, "label": "Voltage", "unit": "V", "type": "int14", "precision": 1}
  }
}`)
	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Equal(t, "Ex Bus Sensor", reg.DeviceName)
	require.Equal(t, uint8(5), reg.Descriptor("voltage").ID)
}

func TestLoadRegistryInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"duplicate id", `
values:
  a: {id: 1, label: A, type: int14}
  b: {id: 1, label: B, type: int14}
`},
		{"id out of range", `
values:
  a: {id: 16, label: A, type: int14}
`},
		{"unknown type", `
values:
  a: {id: 1, label: A, type: float}
`},
		{"precision", `
values:
  a: {id: 1, label: A, type: int14, precision: 4}
`},
		{"label too long", `
values:
  a: {id: 1, label: A label much too long, unit: km/h, type: int14}
`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRegistry(writeFile(t, "sensors.yaml", tc.content))
			require.Error(t, err)
		})
	}

	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Validate())
	c.Baud = 115200
	require.Error(t, c.Validate())
	c = NewConfig()
	c.Budget = 0
	require.Error(t, c.Validate())
}

func TestConfigSerial(t *testing.T) {
	reg := DefaultRegistry()
	reg.Device = 0x0042

	c := NewConfig()
	c.DeviceID = ""
	s, err := c.Serial(reg)
	require.NoError(t, err)
	require.Equal(t, ex.Serial{Manufacturer: DefaultManufacturer, Device: 0x0042}, s)

	c.DeviceID = "0x1234"
	s, err = c.Serial(reg)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), s.Device)

	c.DeviceID = "bogus"
	_, err = c.Serial(reg)
	require.Error(t, err)

	c.DeviceID = ""
	reg.Device = 0
	s, err = c.Serial(reg)
	require.NoError(t, err)
	require.NotZero(t, s.Device)
}

func TestNewConfigCopiesDefaults(t *testing.T) {
	c := NewConfig()
	c.Port = "/dev/other"
	require.NotEqual(t, "/dev/other", Default().Port)
}
