package metrics

import "etf-mm-bot/internal/strategy"

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	InsertsSent Counter
	CancelsSent Counter
	HedgesSent  Counter
	SendFailed  Counter
	Disconnects Counter
	BadFrames   Counter

	NetPosition     Gauge
	HedgePosition   Gauge
	PendingSell     Gauge
	PendingBuy      Gauge
	AskOrders       Gauge
	BidOrders       Gauge
	StaleBooks      Gauge
	UnknownStatuses Gauge
	SessionLive     Gauge
	SessionLosses   Gauge
}

// Observe publishes the trader's position and book state.
func (m *Metrics) Observe(s strategy.Snapshot) {
	m.NetPosition.Set(float64(s.NetPosition))
	m.HedgePosition.Set(float64(s.HedgePosition))
	m.PendingSell.Set(float64(s.PendingSell))
	m.PendingBuy.Set(float64(s.PendingBuy))
	m.AskOrders.Set(float64(s.AskOrders))
	m.BidOrders.Set(float64(s.BidOrders))
	m.StaleBooks.Set(float64(s.StaleBooks))
	m.UnknownStatuses.Set(float64(s.UnknownStatuses))
}

// ObserveSession publishes the gateway connection state: live is 1 while
// connected, losses counts dropped connections since start.
func (m *Metrics) ObserveSession(live bool, losses int) {
	v := 0.0
	if live {
		v = 1
	}
	m.SessionLive.Set(v)
	m.SessionLosses.Set(float64(losses))
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	n := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		InsertsSent:     n,
		CancelsSent:     n,
		HedgesSent:      n,
		SendFailed:      n,
		Disconnects:     n,
		BadFrames:       n,
		NetPosition:     g,
		HedgePosition:   g,
		PendingSell:     g,
		PendingBuy:      g,
		AskOrders:       g,
		BidOrders:       g,
		StaleBooks:      g,
		UnknownStatuses: g,
		SessionLive:     g,
		SessionLosses:   g,
	}
}
