package exbus

import "sync/atomic"

// Stats are the bus counters. They are updated by the bus context
// and may be read from any goroutine.
type Stats struct {
	ChannelFrames  atomic.Uint64
	Requests       atomic.Uint64
	JetiBoxFrames  atomic.Uint64
	OtherFrames    atomic.Uint64
	ChecksumErrors atomic.Uint64
	FramingErrors  atomic.Uint64
	WindowsOpened  atomic.Uint64
	Responses      atomic.Uint64
	DeadlineMisses atomic.Uint64
	Unanswered     atomic.Uint64
	BytesReceived  atomic.Uint64
	BytesSent      atomic.Uint64
}

// StatsSnapshot is a copy of Stats.
type StatsSnapshot struct {
	ChannelFrames  uint64 `json:"channel-frames"`
	Requests       uint64 `json:"requests"`
	JetiBoxFrames  uint64 `json:"jetibox-frames"`
	OtherFrames    uint64 `json:"other-frames"`
	ChecksumErrors uint64 `json:"checksum-errors"`
	FramingErrors  uint64 `json:"framing-errors"`
	WindowsOpened  uint64 `json:"windows-opened"`
	Responses      uint64 `json:"responses"`
	DeadlineMisses uint64 `json:"deadline-misses"`
	Unanswered     uint64 `json:"unanswered"`
	BytesReceived  uint64 `json:"bytes-received"`
	BytesSent      uint64 `json:"bytes-sent"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ChannelFrames:  s.ChannelFrames.Load(),
		Requests:       s.Requests.Load(),
		JetiBoxFrames:  s.JetiBoxFrames.Load(),
		OtherFrames:    s.OtherFrames.Load(),
		ChecksumErrors: s.ChecksumErrors.Load(),
		FramingErrors:  s.FramingErrors.Load(),
		WindowsOpened:  s.WindowsOpened.Load(),
		Responses:      s.Responses.Load(),
		DeadlineMisses: s.DeadlineMisses.Load(),
		Unanswered:     s.Unanswered.Load(),
		BytesReceived:  s.BytesReceived.Load(),
		BytesSent:      s.BytesSent.Load(),
	}
}

func (s *Stats) countFrame(k Kind) {
	switch k {
	case KindChannelData:
		s.ChannelFrames.Add(1)
	case KindTelemetryRequest:
		s.Requests.Add(1)
	case KindJetiBoxRequest:
		s.JetiBoxFrames.Add(1)
	default:
		s.OtherFrames.Add(1)
	}
}
