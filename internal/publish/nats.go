package publish

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"nrtstress/internal/obs"
	"nrtstress/internal/protocol"
	"nrtstress/pkg/exception"
)

const (
	DefaultSubject = "nrtstress"

	ordersSuffix = ".orders"
	tradesSuffix = ".trades"
)

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher streams observed events to NATS as JSON. Publish failures are
// counted and logged, never returned, so it can sit in a sink fanout.
type Publisher struct {
	conn          conn
	ordersSubject string
	tradesSubject string
	metrics       *obs.Metrics
}

// NewNATS connects to url and publishes under subject.
func NewNATS(url, subject string, metrics *obs.Metrics) (*Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "empty nats url")
	}
	nc, err := nats.Connect(url,
		nats.Name("nrtstress"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect nats %s", url)
	}
	logs.Infof("nats connected, url: %s, subject: %s", url, subject)
	return newPublisher(nc, subject, metrics), nil
}

func newPublisher(c conn, subject string, metrics *obs.Metrics) *Publisher {
	subject = strings.TrimSuffix(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{
		conn:          c,
		ordersSubject: subject + ordersSuffix,
		tradesSubject: subject + tradesSuffix,
		metrics:       metrics,
	}
}

// Subjects returns the order and trade subjects.
func (p *Publisher) Subjects() (orders, trades string) {
	return p.ordersSubject, p.tradesSubject
}

func (p *Publisher) RecordOrder(ev protocol.OrderEvent) {
	p.publish(p.ordersSubject, ev)
}

func (p *Publisher) RecordTrade(ev protocol.TradeEvent) {
	p.publish(p.tradesSubject, ev)
}

func (p *Publisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.metrics.IncPublishError()
		logs.Errorf("marshal event for %s, err: %+v", subject, err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.metrics.IncPublishError()
		logs.Errorf("publish %s, err: %+v", subject, err)
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
