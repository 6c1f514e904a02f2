package main

import (
	"bufio"
	"flag"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/exbus.go/pkg/capture"
	"github.com/robotalks/exbus.go/pkg/config"
	"github.com/robotalks/exbus.go/pkg/exbus"
	fx "github.com/robotalks/exbus.go/pkg/framework"
	"github.com/robotalks/exbus.go/pkg/mirror"
	"github.com/robotalks/exbus.go/pkg/monitor"
	"github.com/robotalks/exbus.go/pkg/responder"
	"github.com/robotalks/exbus.go/pkg/sensor"
	"github.com/robotalks/exbus.go/pkg/telemetry"
	"github.com/robotalks/exbus.go/pkg/uart"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := config.NewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}
	reg := conf.MustLoadRegistry()
	serial, err := conf.Serial(reg)
	if err != nil {
		log.Fatalln(err)
	}
	glog.Infof("sensor %q serial %s", reg.DeviceName, serial)

	store := telemetry.NewStore()
	resp := responder.New(store, serial, reg.DeviceName)
	resp.LabelFrames = conf.LabelFrames

	port := conf.MustOpenPort()
	defer port.Close()
	ctl := exbus.NewController(port, resp)
	ctl.Budget = conf.Budget
	ctl.FrameTimeout = conf.FrameTimeout
	if conf.AutoBaud {
		ctl.Observer = uart.NewAutoBaud(port)
	}

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("bus", ctl))

	if conf.CaptureFile != "" {
		f, err := os.Create(conf.CaptureFile)
		if err != nil {
			log.Fatalln(err)
		}
		defer f.Close()
		rec, err := capture.NewRecorder(bufio.NewWriter(f), capture.DefaultDepth)
		if err != nil {
			log.Fatalln(err)
		}
		ctl.Capture = rec
		runner.Go(fx.NamedRun("capture", rec))
	}

	loop := fx.NewLoop(conf.Interval)
	acq := sensor.NewAcquisition(store)
	if conf.Demo {
		acq.Add(sensor.NewVario(sensor.NewDemo(), sensor.VarioValues{
			Pressure:    reg.Descriptor("pressure"),
			Temperature: reg.Descriptor("temperature"),
			Altitude:    reg.Descriptor("altitude"),
			Climb:       reg.Descriptor("climb"),
			MaxAltitude: reg.Descriptor("max_altitude"),
			MaxClimb:    reg.Descriptor("max_climb"),
		}))
	} else {
		glog.Warning("no sensor source, use -demo for the synthetic vario")
	}
	loop.Add(acq)

	if conf.MirrorURL != "" {
		m, err := mirror.New(conf.MirrorURL, store, serial,
			mirror.NewMeta(reg.DeviceName, serial, reg.Descriptors()...))
		if err != nil {
			log.Fatalln(err)
		}
		m.Interval = conf.Interval
		runner.Go(fx.NamedRun("mirror", m))
	}
	runner.Go(fx.NamedRun("acquisition", loop))

	if conf.MonitorAddr != "" {
		runner.Go(fx.NamedRun("monitor", monitor.New(conf.MonitorAddr, ctl, store)))
	}

	if err := runner.Wait(); err != nil {
		glog.Errorf("exit: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}
