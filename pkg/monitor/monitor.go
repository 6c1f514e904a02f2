// Package monitor serves live bus statistics over a websocket.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/exbus.go/pkg/exbus"
	fx "github.com/robotalks/exbus.go/pkg/framework"
	"github.com/robotalks/exbus.go/pkg/telemetry"
)

// DefaultInterval is the period between two status messages.
const DefaultInterval = time.Second

// Source provides the bus state and counters, implemented by exbus.Controller.
type Source interface {
	State() exbus.BusState
	Stats() *exbus.Stats
}

// Status is sent to websocket clients.
type Status struct {
	Time       time.Time           `json:"time"`
	State      string              `json:"state"`
	Generation uint64              `json:"generation"`
	Values     []string            `json:"values,omitempty"`
	Stats      exbus.StatsSnapshot `json:"stats"`
}

// Monitor is the HTTP server.
type Monitor struct {
	Addr     string
	Interval time.Duration
	Source   Source
	Store    *telemetry.Store
}

// New creates a Monitor.
func New(addr string, source Source, store *telemetry.Store) *Monitor {
	return &Monitor{Addr: addr, Interval: DefaultInterval, Source: source, Store: store}
}

// Status captures the current status.
func (m *Monitor) Status() Status {
	st := Status{
		Time:  time.Now(),
		State: m.Source.State().String(),
		Stats: m.Source.Stats().Snapshot(),
	}
	if m.Store != nil {
		snap := m.Store.Read()
		st.Generation = snap.Generation
		for _, v := range snap.Values {
			st.Values = append(st.Values, v.String())
		}
	}
	return st
}

// Handler returns the HTTP handler.
// GET /status returns a single Status, /ws streams them.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", m.serveStatus)
	mux.Handle("/ws", websocket.Handler(m.serveWS))
	return mux
}

// Run implements framework.Runnable.
func (m *Monitor) Run(ctx context.Context) error {
	server := &http.Server{Addr: m.Addr, Handler: m.Handler()}
	glog.Infof("monitor listening on %s", m.Addr)
	err := fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (m *Monitor) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Status())
}

func (m *Monitor) serveWS(conn *websocket.Conn) {
	defer conn.Close()
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := conn.Request().Context()
	for {
		if err := websocket.JSON.Send(conn, m.Status()); err != nil {
			glog.V(2).Infof("monitor client %s gone: %v", conn.Request().RemoteAddr, err)
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
