// Package config provides the options of the sensor daemon.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/exbus.go/pkg/ex"
	"github.com/robotalks/exbus.go/pkg/exbus"
	"github.com/robotalks/exbus.go/pkg/responder"
	"github.com/robotalks/exbus.go/pkg/uart"
)

// Config provides options to setup the sensor.
type Config struct {
	Port         string
	Baud         int
	AutoBaud     bool
	PollInterval time.Duration
	Budget       time.Duration
	FrameTimeout time.Duration
	LabelFrames  int
	Interval     time.Duration
	// SensorsFile is the sensor registry, built-in registry if empty.
	SensorsFile string
	// CaptureFile records the raw bus stream if set.
	CaptureFile string
	// MirrorURL publishes telemetry to MQTT if set,
	// e.g. mqtt://host:port/topic-prefix
	MirrorURL string
	// MonitorAddr serves bus statistics if set, e.g. :8080
	MonitorAddr string
	// DeviceID overrides the device part of the sensor serial.
	DeviceID string
	Demo     bool
}

var defaultConfig = Config{
	Port:         "/dev/ttyUSB0",
	Baud:         uart.Baud125k,
	AutoBaud:     true,
	PollInterval: uart.DefaultPollInterval,
	Budget:       exbus.DefaultResponseBudget,
	LabelFrames:  responder.DefaultLabelFrames,
	Interval:     100 * time.Millisecond,
}

func init() {
	if val := os.Getenv("EXBUS_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("EXBUS_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.Baud = baud
		}
	}
	if val := os.Getenv("EXBUS_SENSORS"); val != "" {
		defaultConfig.SensorsFile = val
	}
	if val := os.Getenv("EXBUS_MIRROR_URL"); val != "" {
		defaultConfig.MirrorURL = val
	}
	if val := os.Getenv("EXBUS_MONITOR"); val != "" {
		defaultConfig.MonitorAddr = val
	}
	if val := os.Getenv("EXBUS_DEVICE_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port connected to the receiver.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Initial baud rate, 125000 or 250000.")
	flag.BoolVar(&defaultConfig.AutoBaud, "auto-baud", defaultConfig.AutoBaud, "Switch baud rate when no valid frame is received.")
	flag.DurationVar(&defaultConfig.PollInterval, "poll", defaultConfig.PollInterval, "Serial read timeout.")
	flag.DurationVar(&defaultConfig.Budget, "budget", defaultConfig.Budget, "Response window after a request.")
	flag.DurationVar(&defaultConfig.FrameTimeout, "frame-timeout", defaultConfig.FrameTimeout, "Abandon partial frames after this idle time, 0 to disable.")
	flag.IntVar(&defaultConfig.LabelFrames, "label-frames", defaultConfig.LabelFrames, "Telemetry answers announcing labels.")
	flag.DurationVar(&defaultConfig.Interval, "interval", defaultConfig.Interval, "Sensor acquisition interval.")
	flag.StringVar(&defaultConfig.SensorsFile, "sensors", defaultConfig.SensorsFile, "Sensor registry file (yaml, json, toml).")
	flag.StringVar(&defaultConfig.CaptureFile, "capture", defaultConfig.CaptureFile, "Record the raw bus stream to file.")
	flag.StringVar(&defaultConfig.MirrorURL, "mqtt", defaultConfig.MirrorURL, "Mirror telemetry to MQTT, e.g. mqtt://localhost:1883/exbus/.")
	flag.StringVar(&defaultConfig.MonitorAddr, "monitor", defaultConfig.MonitorAddr, "Serve bus statistics on address.")
	flag.StringVar(&defaultConfig.DeviceID, "device-id", defaultConfig.DeviceID, "Device ID (16 bits), derived from machine ID if empty.")
	flag.BoolVar(&defaultConfig.Demo, "demo", defaultConfig.Demo, "Use the synthetic vario source.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the options.
func (c *Config) Validate() error {
	if c.Baud != uart.Baud125k && c.Baud != uart.Baud250k {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.Budget <= 0 {
		return errors.New("response budget must be positive")
	}
	if c.LabelFrames < 0 {
		return errors.New("label frames must not be negative")
	}
	return nil
}

// LoadRegistry loads the sensor registry.
func (c *Config) LoadRegistry() (*Registry, error) {
	if c.SensorsFile == "" {
		return DefaultRegistry(), nil
	}
	return LoadRegistry(c.SensorsFile)
}

// MustLoadRegistry loads the sensor registry and fails on error.
func (c *Config) MustLoadRegistry() *Registry {
	reg, err := c.LoadRegistry()
	if err != nil {
		log.Fatalln(err)
	}
	return reg
}

// Serial determines the sensor serial.
// The device ID comes from the option, the registry or the machine ID.
func (c *Config) Serial(reg *Registry) (ex.Serial, error) {
	s := ex.Serial{Manufacturer: reg.Manufacturer, Device: reg.Device}
	if c.DeviceID != "" {
		id, err := strconv.ParseUint(c.DeviceID, 0, 16)
		if err != nil {
			return s, fmt.Errorf("invalid device id %q: %w", c.DeviceID, err)
		}
		s.Device = uint16(id)
		return s, nil
	}
	if s.Device != 0 {
		return s, nil
	}
	id, err := MachineDeviceID()
	if err != nil {
		glog.Warningf("device id from machine id: %v", err)
		id = 1
	}
	s.Device = id
	return s, nil
}

// MachineDeviceID derives a device ID from the machine ID.
func MachineDeviceID() (uint16, error) {
	id, err := machineid.ProtectedID("exbus")
	if err != nil {
		return 0, err
	}
	if len(id) < 4 {
		return 0, fmt.Errorf("short machine id %q", id)
	}
	v, err := strconv.ParseUint(id[:4], 16, 16)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		v = 1
	}
	return uint16(v), nil
}

// OpenPort opens the serial port.
func (c *Config) OpenPort() (*uart.Port, error) {
	return uart.Open(c.Port, c.Baud, c.PollInterval)
}

// MustOpenPort opens the serial port and fails on error.
func (c *Config) MustOpenPort() *uart.Port {
	port, err := c.OpenPort()
	if err != nil {
		log.Fatalln(err)
	}
	return port
}
