package sgxnet

import (
	"sync/atomic"
	"time"
)

// Metrics tracks operational statistics for a Registry and the sources
// registered on it.
type Metrics struct {
	Registrations   atomic.Uint64
	Deregistrations atomic.Uint64

	EventsDelivered atomic.Uint64
	EventsDropped   atomic.Uint64

	AcceptOps  atomic.Uint64
	ConnectOps atomic.Uint64
	ReadOps    atomic.Uint64
	WriteOps   atomic.Uint64

	ReadBytes  atomic.Uint64
	WriteBytes atomic.Uint64

	ReadErrors    atomic.Uint64
	WriteErrors   atomic.Uint64
	ConnectErrors atomic.Uint64
	AcceptErrors  atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) RecordRegistration()   { m.Registrations.Add(1) }
func (m *Metrics) RecordDeregistration() { m.Deregistrations.Add(1) }
func (m *Metrics) RecordEventDelivered() { m.EventsDelivered.Add(1) }
func (m *Metrics) RecordEventDropped()   { m.EventsDropped.Add(1) }

func (m *Metrics) RecordAccept(success bool) {
	m.AcceptOps.Add(1)
	if !success {
		m.AcceptErrors.Add(1)
	}
}

func (m *Metrics) RecordConnect(success bool) {
	m.ConnectOps.Add(1)
	if !success {
		m.ConnectErrors.Add(1)
	}
}

func (m *Metrics) RecordRead(bytes uint64, success bool) {
	m.ReadOps.Add(1)
	if success {
		m.ReadBytes.Add(bytes)
	} else {
		m.ReadErrors.Add(1)
	}
}

func (m *Metrics) RecordWrite(bytes uint64, success bool) {
	m.WriteOps.Add(1)
	if success {
		m.WriteBytes.Add(bytes)
	} else {
		m.WriteErrors.Add(1)
	}
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics suitable
// for logging or exposition.
type MetricsSnapshot struct {
	Registrations   uint64
	Deregistrations uint64
	LiveRegistered  uint64

	EventsDelivered uint64
	EventsDropped   uint64

	AcceptOps, ConnectOps, ReadOps, WriteOps             uint64
	ReadBytes, WriteBytes                                uint64
	ReadErrors, WriteErrors, ConnectErrors, AcceptErrors uint64

	UptimeNs uint64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	regs := m.Registrations.Load()
	deregs := m.Deregistrations.Load()
	live := uint64(0)
	if regs > deregs {
		live = regs - deregs
	}
	return MetricsSnapshot{
		Registrations:   regs,
		Deregistrations: deregs,
		LiveRegistered:  live,
		EventsDelivered: m.EventsDelivered.Load(),
		EventsDropped:   m.EventsDropped.Load(),
		AcceptOps:       m.AcceptOps.Load(),
		ConnectOps:      m.ConnectOps.Load(),
		ReadOps:         m.ReadOps.Load(),
		WriteOps:        m.WriteOps.Load(),
		ReadBytes:       m.ReadBytes.Load(),
		WriteBytes:      m.WriteBytes.Load(),
		ReadErrors:      m.ReadErrors.Load(),
		WriteErrors:     m.WriteErrors.Load(),
		ConnectErrors:   m.ConnectErrors.Load(),
		AcceptErrors:    m.AcceptErrors.Load(),
		UptimeNs:        uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
}

// Reset zeroes all counters. Useful for testing.
func (m *Metrics) Reset() {
	m.Registrations.Store(0)
	m.Deregistrations.Store(0)
	m.EventsDelivered.Store(0)
	m.EventsDropped.Store(0)
	m.AcceptOps.Store(0)
	m.ConnectOps.Store(0)
	m.ReadOps.Store(0)
	m.WriteOps.Store(0)
	m.ReadBytes.Store(0)
	m.WriteBytes.Store(0)
	m.ReadErrors.Store(0)
	m.WriteErrors.Store(0)
	m.ConnectErrors.Store(0)
	m.AcceptErrors.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
}

// MetricsObserver adapts a Metrics instance to the internal selector's
// Observer interface (satisfied structurally, see internal/selector.Observer).
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRegistration()   { o.metrics.RecordRegistration() }
func (o *MetricsObserver) ObserveDeregistration() { o.metrics.RecordDeregistration() }
func (o *MetricsObserver) ObserveEventDelivered() { o.metrics.RecordEventDelivered() }
func (o *MetricsObserver) ObserveEventDropped()   { o.metrics.RecordEventDropped() }

func (o *MetricsObserver) ObserveAccept(success bool)  { o.metrics.RecordAccept(success) }
func (o *MetricsObserver) ObserveConnect(success bool) { o.metrics.RecordConnect(success) }
func (o *MetricsObserver) ObserveRead(bytes uint64, success bool) {
	o.metrics.RecordRead(bytes, success)
}
func (o *MetricsObserver) ObserveWrite(bytes uint64, success bool) {
	o.metrics.RecordWrite(bytes, success)
}

// NoOpObserver discards all observations; the zero value is ready to use.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRegistration()   {}
func (NoOpObserver) ObserveDeregistration() {}
func (NoOpObserver) ObserveEventDelivered() {}
func (NoOpObserver) ObserveEventDropped()   {}

func (NoOpObserver) ObserveAccept(bool)        {}
func (NoOpObserver) ObserveConnect(bool)       {}
func (NoOpObserver) ObserveRead(uint64, bool)  {}
func (NoOpObserver) ObserveWrite(uint64, bool) {}
