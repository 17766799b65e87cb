// Package notify delivers anomaly alerts to downstream collaborators without
// ever blocking the ingestion path.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"safety-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Total number of alert deliveries by sink and result",
	}, []string{"sink", "result"})

	notificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Total number of alerts dropped because the queue was full",
	})
)

// Sink delivers one alert. Implementations must honour ctx cancellation.
type Sink interface {
	Send(ctx context.Context, alert models.Alert) error
	Name() string
}

type Options struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

func DefaultOptions() Options {
	return Options{QueueSize: 1000, Workers: 2, Timeout: 5 * time.Second}
}

type Dispatcher struct {
	sinks   []Sink
	queue   chan models.Alert
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(opts Options, sinks ...Sink) *Dispatcher {
	def := DefaultOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}

	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan models.Alert, opts.QueueSize),
		timeout: opts.Timeout,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Notify enqueues alert and returns its id. It never blocks: when the queue
// is full or the dispatcher is closed the alert is dropped and ok is false.
func (d *Dispatcher) Notify(alert models.Alert) (id string, ok bool) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Type == "" {
		alert.Type = models.AlertTypeLocationAnomaly
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		notificationsDropped.Inc()
		return alert.ID, false
	}

	select {
	case d.queue <- alert:
		return alert.ID, true
	default:
		notificationsDropped.Inc()
		log.Printf("[notify] queue full, dropping alert %s for %s", alert.ID, alert.SubjectID)
		return alert.ID, false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for alert := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(sink, alert)
		}
	}
}

func (d *Dispatcher) deliver(sink Sink, alert models.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := sink.Send(ctx, alert); err != nil {
		notificationsTotal.WithLabelValues(sink.Name(), "error").Inc()
		log.Printf("[notify] %s failed for alert %s: %v", sink.Name(), alert.ID, err)
		return
	}
	notificationsTotal.WithLabelValues(sink.Name(), "ok").Inc()
}

// Close stops accepting alerts and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
