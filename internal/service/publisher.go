// Package service publishes activity events to RabbitMQ.  Publishing is
// best-effort: failures are logged, and a user action never fails or waits
// because of them.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/classsync/internal/queue"
)

// Publisher sends activity events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev q.ActivityEvent) error
}

// Discard drops every event.  It is used when EVENTS_ENABLED is off.
type Discard struct{}

func (Discard) Publish(context.Context, q.ActivityEvent) error { return nil }

// ErrBacklog is returned when the publish queue is full and the event was
// dropped.
var ErrBacklog = errors.New("activity event queue full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("activity publisher closed")

// DefaultSendTimeout bounds one delivery attempt, dial included.
const DefaultSendTimeout = 3 * time.Second

const queueSize = 64

// AMQPPublisher publishes to the durable activity queue.  Publish only
// enqueues; a single worker dials per message and delivers in order, so a
// slow or silent broker never holds up the caller.  Events are rare (one
// per scan or session change).
type AMQPPublisher struct {
	URL         string
	SendTimeout time.Duration

	events    chan q.ActivityEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAMQPPublisher starts the delivery worker.  Close stops it.
func NewAMQPPublisher(url string) *AMQPPublisher {
	p := &AMQPPublisher{
		URL:         url,
		SendTimeout: DefaultSendTimeout,
		events:      make(chan q.ActivityEvent, queueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues ev for delivery and returns at once.
func (p *AMQPPublisher) Publish(_ context.Context, ev q.ActivityEvent) error {
	select {
	case <-p.quit:
		return ErrClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		log.Warnf("rabbitmq: queue full, dropping %s %s", ev.Type, ev.EventID)
		return ErrBacklog
	}
}

// Close stops the worker after the delivery in progress.  Queued events
// that were not sent yet are dropped.
func (p *AMQPPublisher) Close() {
	p.closeOnce.Do(func() { close(p.quit) })
	<-p.done
}

func (p *AMQPPublisher) run() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			return
		case ev := <-p.events:
			ctx, cancel := context.WithTimeout(context.Background(), p.SendTimeout)
			if err := p.send(ctx, ev); err != nil {
				log.Warnf("events: %s %s not published: %v", ev.Type, ev.EventID, err)
			}
			cancel()
		}
	}
}

// dialer connects within ctx.  The deadline also covers the AMQP
// handshake; the library clears it once the connection is open.
func dialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if dl, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(dl)
		}
		return conn, nil
	}
}

// send delivers ev as a persistent JSON message.
func (p *AMQPPublisher) send(ctx context.Context, ev q.ActivityEvent) error {
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialer(ctx),
	})
	if err != nil {
		log.Warnf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warnf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(q.ActivityQueue, true, false, false, false, nil); err != nil {
		log.Warnf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.ActivityQueue, false, false, pub); err != nil {
		log.Warnf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// Emit hands ev to p without letting the caller's cancellation drop it.  A
// nil p is a no-op.  Publishers that talk to a broker must not block here;
// AMQPPublisher only enqueues.
func Emit(ctx context.Context, p Publisher, ev q.ActivityEvent) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		log.Warnf("events: %s %s not published: %v", ev.Type, ev.EventID, err)
	}
}
