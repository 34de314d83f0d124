package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nrtstress"

// Collector exposes a Metrics snapshot to Prometheus on every scrape.
type Collector struct {
	m *Metrics

	sent            *prometheus.Desc
	responses       *prometheus.Desc
	receiveTimeouts *prometheus.Desc
	decodeErrors    *prometheus.Desc
	ioErrors        *prometheus.Desc
	connectRetries  *prometheus.Desc
	orders          *prometheus.Desc
	trades          *prometheus.Desc
	workers         *prometheus.Desc
	publishErrors   *prometheus.Desc
	rttAvg          *prometheus.Desc
	rttMax          *prometheus.Desc
}

// NewCollector wraps m. A nil m yields zero values.
func NewCollector(m *Metrics) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		m:               m,
		sent:            desc("commands_sent_total", "Commands sent to the server.", "kind"),
		responses:       desc("responses_total", "Non-empty responses received."),
		receiveTimeouts: desc("receive_timeouts_total", "Reads that returned no data before the deadline."),
		decodeErrors:    desc("decode_errors_total", "Responses that were not valid text."),
		ioErrors:        desc("io_errors_total", "Send or receive failures."),
		connectRetries:  desc("connect_retries_total", "Failed dial attempts."),
		orders:          desc("orders_observed_total", "Order announcements captured."),
		trades:          desc("trades_observed_total", "Trade announcements captured."),
		workers:         desc("workers_finished_total", "Workers that reached a terminal state.", "state"),
		publishErrors:   desc("publish_errors_total", "Failed event publishes."),
		rttAvg:          desc("round_trip_avg_seconds", "Average send to response latency."),
		rttMax:          desc("round_trip_max_seconds", "Maximum send to response latency."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sent
	ch <- c.responses
	ch <- c.receiveTimeouts
	ch <- c.decodeErrors
	ch <- c.ioErrors
	ch <- c.connectRetries
	ch <- c.orders
	ch <- c.trades
	ch <- c.workers
	ch <- c.publishErrors
	ch <- c.rttAvg
	ch <- c.rttMax
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	for k := CommandKind(0); k < commandKindCount; k++ {
		ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(s.CommandsSent[k]), k.String())
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.responses, s.Responses)
	counter(c.receiveTimeouts, s.ReceiveTimeouts)
	counter(c.decodeErrors, s.DecodeErrors)
	counter(c.ioErrors, s.IOErrors)
	counter(c.connectRetries, s.ConnectRetries)
	counter(c.orders, s.OrdersObserved)
	counter(c.trades, s.TradesObserved)
	counter(c.publishErrors, s.PublishErrors)
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.CounterValue, float64(s.WorkersDone), "done")
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.CounterValue, float64(s.WorkersErrored), "errored")
	ch <- prometheus.MustNewConstMetric(c.rttAvg, prometheus.GaugeValue, s.RoundTrip.Avg.Seconds())
	ch <- prometheus.MustNewConstMetric(c.rttMax, prometheus.GaugeValue, s.RoundTrip.Max.Seconds())
}
