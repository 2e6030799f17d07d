package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "etf_mm_bot"

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}
	p.Metrics = &Metrics{
		InsertsSent: p.counter("inserts_sent_total", "Total number of insert commands sent."),
		CancelsSent: p.counter("cancels_sent_total", "Total number of cancel commands sent."),
		HedgesSent:  p.counter("hedges_sent_total", "Total number of hedge commands sent."),
		SendFailed:  p.counter("send_failed_total", "Total number of commands that could not be delivered."),
		Disconnects: p.counter("disconnects_total", "Total number of gateway connection losses."),
		BadFrames:   p.counter("bad_frames_total", "Total number of gateway frames that failed to decode."),

		NetPosition:     p.gauge("net_position", "Signed ETF position in lots."),
		HedgePosition:   p.gauge("hedge_position", "Signed filled future hedge position."),
		PendingSell:     p.gauge("pending_sell_volume", "Unfilled resting ask volume."),
		PendingBuy:      p.gauge("pending_buy_volume", "Unfilled resting bid volume."),
		AskOrders:       p.gauge("ask_orders", "Resting ask quotes including those being cancelled."),
		BidOrders:       p.gauge("bid_orders", "Resting bid quotes including those being cancelled."),
		StaleBooks:      p.gauge("stale_books", "Order books discarded as stale since start."),
		UnknownStatuses: p.gauge("unknown_statuses", "Order statuses received for untracked orders since start."),
		SessionLive:     p.gauge("session_live", "1 while the gateway connection is live, 0 otherwise."),
		SessionLosses:   p.gauge("session_losses", "Gateway connection losses since start."),
	}
	return p
}

func (p *Prometheus) counter(name, help string) Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
	p.registry.MustRegister(c)
	p.counters[name] = c
	return c
}

func (p *Prometheus) gauge(name, help string) Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
	p.registry.MustRegister(g)
	p.gauges[name] = g
	return g
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
