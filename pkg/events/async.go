package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"geousers/pkg/ctxutil"
	"geousers/pkg/logger"
	"geousers/pkg/models"

	"github.com/google/uuid"
)

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

// Options configures an AsyncPublisher.
type Options struct {
	// QueueSize bounds the number of events waiting for the sink.
	QueueSize int
	// SendTimeout bounds a single Sink.Send call.
	SendTimeout time.Duration
	// SourceService is stamped on every envelope.
	SourceService string
}

// AsyncPublisher queues events on a bounded channel drained by one
// background goroutine. Publish never blocks: when the queue is full, or the
// publisher is closed, the event is dropped and logged. Sink errors are
// logged and never retried. Delivery is at-most-once and nothing survives a
// process restart.
type AsyncPublisher struct {
	sink          Sink
	log           *logger.Logger
	sourceService string
	sendTimeout   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	done   chan struct{}

	now   func() time.Time
	newID func() string
}

// NewAsyncPublisher starts the delivery goroutine. Call Close to stop it.
func NewAsyncPublisher(sink Sink, log *logger.Logger, opts Options) *AsyncPublisher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}

	p := &AsyncPublisher{
		sink:          sink,
		log:           log.With("service", "AsyncPublisher"),
		sourceService: opts.SourceService,
		sendTimeout:   opts.SendTimeout,
		queue:         make(chan Message, opts.QueueSize),
		done:          make(chan struct{}),
		now:           time.Now,
		newID:         uuid.NewString,
	}
	go p.run()
	return p
}

// Publish builds the change event envelope and enqueues it. changes may be nil.
func (p *AsyncPublisher) Publish(ctx context.Context, topic string, eventType models.EventType, userID string, data any, changes any) {
	event := models.ChangeEvent{
		EventID:       p.newID(),
		CorrelationID: ctxutil.CorrelationID(ctx),
		EventType:     eventType,
		Timestamp:     p.now().UTC(),
		UserID:        userID,
		Data:          data,
		Changes:       changes,
		SourceService: p.sourceService,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error("Failed to marshal event", "event_type", eventType, "user_id", userID, "error", err)
		return
	}

	msg := Message{
		Topic:         topic,
		Key:           userID,
		EventID:       event.EventID,
		EventType:     string(eventType),
		CorrelationID: event.CorrelationID,
		Body:          body,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("Publisher closed, event dropped", "event_type", eventType, "user_id", userID)
		return
	}

	select {
	case p.queue <- msg:
	default:
		p.log.Warn("Event queue full, event dropped", "event_type", eventType, "user_id", userID)
	}
}

// Close stops accepting events and waits for queued ones to be handed to
// the sink, or for ctx to expire.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		p.deliver(msg)
	}
}

func (p *AsyncPublisher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
	defer cancel()

	if err := p.sink.Send(ctx, msg); err != nil {
		p.log.Error("Failed to publish event",
			"topic", msg.Topic, "event_type", msg.EventType, "user_id", msg.Key,
			"correlation_id", msg.CorrelationID, "error", err)
		return
	}
	p.log.Debug("Event published",
		"topic", msg.Topic, "event_type", msg.EventType, "user_id", msg.Key,
		"correlation_id", msg.CorrelationID)
}

// LogSink is used when no bus is configured: it records that the event was
// not published.
type LogSink struct {
	Log *logger.Logger
}

func (s LogSink) Send(_ context.Context, msg Message) error {
	s.Log.Warn("No event bus configured, event not published",
		"topic", msg.Topic, "event_type", msg.EventType, "user_id", msg.Key)
	return nil
}
