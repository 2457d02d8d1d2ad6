package audit

import (
	"context"
	"sync"
	"time"

	"project-service/internal/auth"
	"project-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultWriteTimeout = 2 * time.Second
	defaultQueueSize    = 1024
)

// Record is one row of the audit trail. It never carries token, password or
// hash material.
type Record struct {
	ID        uuid.UUID
	EventType string
	Result    string
	ActorID   *uuid.UUID
	Route     string
	Policy    string
	IPAddress string
	UserAgent string
	RequestID string
	CreatedAt time.Time
}

// Sink persists audit records.
type Sink interface {
	Write(ctx context.Context, r *Record) error
}

// Recorder turns auth events into audit records and writes them off the
// request path. Login attempts and access denials are recorded; permitted
// access and token outcomes are left to metrics.
//
// Records go through a bounded queue drained by a single writer. When the
// queue is full the record is dropped and the drop logged, so a flood of
// denials never stacks up sink writes.
type Recorder struct {
	sink    Sink
	log     zerolog.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan *Record
	done   chan struct{}
	once   sync.Once
}

type RecorderOption func(*Recorder)

// WithQueueSize bounds the number of records waiting for the sink.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan *Record, n)
		}
	}
}

func NewRecorder(sink Sink, log zerolog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		sink:    sink,
		log:     log,
		timeout: defaultWriteTimeout,
		now:     time.Now,
		queue:   make(chan *Record, defaultQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.run()
	return r
}

// Observe implements auth.Observer. It never blocks; each write gets a fresh
// timeout so a cancelled request still gets audited.
func (r *Recorder) Observe(_ context.Context, e auth.Event) {
	if !Audited(e) {
		return
	}
	record := r.newRecord(e)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- record:
	default:
		r.log.Warn().
			Str("event_type", record.EventType).
			Str("request_id", record.RequestID).
			Msg("audit queue full, record dropped")
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for record := range r.queue {
		r.write(record)
	}
}

func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sink.Write(ctx, record); err != nil {
		r.log.Error().
			Str("error", logger.SanitizeError(err)).
			Str("event_type", record.EventType).
			Str("request_id", record.RequestID).
			Msg("audit write failed")
	}
}

// Close stops accepting records and waits for queued ones to be written.
// It is safe to call more than once.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	<-r.done
}

// Audited reports whether an event belongs in the audit trail.
func Audited(e auth.Event) bool {
	switch e.Kind {
	case auth.EventLogin:
		return true
	case auth.EventAccess:
		return e.Result != auth.ResultPermitted
	default:
		return false
	}
}

func (r *Recorder) newRecord(e auth.Event) *Record {
	record := &Record{
		ID:        uuid.New(),
		EventType: string(e.Kind),
		Result:    e.Result,
		Route:     e.Route,
		Policy:    e.Access,
		IPAddress: e.RemoteIP,
		UserAgent: e.UserAgent,
		RequestID: e.RequestID,
		CreatedAt: r.now().UTC(),
	}
	if e.Subject != uuid.Nil {
		subject := e.Subject
		record.ActorID = &subject
	}
	return record
}
