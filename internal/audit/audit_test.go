package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"project-service/internal/auth"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	records []*Record
	err     error
}

func (s *memorySink) Write(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	s.records = append(s.records, r)
	return s.err
}

func TestAudited(t *testing.T) {
	tests := []struct {
		event auth.Event
		want  bool
	}{
		{auth.Event{Kind: auth.EventLogin, Result: auth.ResultSuccess}, true},
		{auth.Event{Kind: auth.EventLogin, Result: auth.ResultFailure}, true},
		{auth.Event{Kind: auth.EventAccess, Result: auth.ResultForbidden}, true},
		{auth.Event{Kind: auth.EventAccess, Result: auth.ResultUnauthorized}, true},
		{auth.Event{Kind: auth.EventAccess, Result: auth.ResultPermitted}, false},
		{auth.Event{Kind: auth.EventToken, Result: "expired"}, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.event.Kind)+"/"+tt.event.Result, func(t *testing.T) {
			assert.Equal(t, tt.want, Audited(tt.event))
		})
	}
}

func TestRecorderWritesAuditedEvents(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zerolog.Nop())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	subject := uuid.New()
	// A cancelled request context must not stop the write.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.Observe(ctx, auth.Event{
		Kind:      auth.EventAccess,
		Result:    auth.ResultForbidden,
		Subject:   subject,
		Access:    "roles[ADMIN]",
		Route:     "GET /api/admin/users",
		RequestID: "req-1",
		RemoteIP:  "10.0.0.1",
		UserAgent: "curl/8",
	})
	rec.Observe(ctx, auth.Event{Kind: auth.EventAccess, Result: auth.ResultPermitted})
	rec.Observe(ctx, auth.Event{Kind: auth.EventLogin, Result: auth.ResultFailure, Route: "POST /auth/login"})
	rec.Close()

	require.Len(t, sink.records, 2)
	var denial, login *Record
	for _, r := range sink.records {
		if r.EventType == string(auth.EventAccess) {
			denial = r
		} else {
			login = r
		}
	}
	require.NotNil(t, denial)
	require.NotNil(t, login)

	assert.NotEqual(t, uuid.Nil, denial.ID)
	assert.Equal(t, auth.ResultForbidden, denial.Result)
	require.NotNil(t, denial.ActorID)
	assert.Equal(t, subject, *denial.ActorID)
	assert.Equal(t, "roles[ADMIN]", denial.Policy)
	assert.Equal(t, "10.0.0.1", denial.IPAddress)
	assert.Equal(t, "curl/8", denial.UserAgent)
	assert.Equal(t, fixed, denial.CreatedAt)

	assert.Nil(t, login.ActorID)
	assert.Equal(t, auth.ResultFailure, login.Result)
}

func TestRecorderLogsSinkFailure(t *testing.T) {
	var buf bytes.Buffer
	sink := &memorySink{err: errors.New("db down")}
	rec := NewRecorder(sink, zerolog.New(&buf))

	rec.Observe(context.Background(), auth.Event{Kind: auth.EventLogin, Result: auth.ResultFailure, RequestID: "req-9"})
	rec.Close()

	assert.Contains(t, buf.String(), "audit write failed")
	assert.Contains(t, buf.String(), "req-9")
}

// gatedSink holds every write until release is closed.
type gatedSink struct {
	memorySink
	started chan struct{}
	release chan struct{}
}

func (s *gatedSink) Write(ctx context.Context, r *Record) error {
	s.started <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return s.memorySink.Write(ctx, r)
}

func TestRecorderDropsWhenQueueIsFull(t *testing.T) {
	var buf bytes.Buffer
	sink := &gatedSink{started: make(chan struct{}, 4), release: make(chan struct{})}
	rec := NewRecorder(sink, zerolog.New(&buf), WithQueueSize(1))

	login := func(id string) auth.Event {
		return auth.Event{Kind: auth.EventLogin, Result: auth.ResultFailure, RequestID: id}
	}

	rec.Observe(context.Background(), login("req-1"))
	select {
	case <-sink.started:
	case <-time.After(time.Second):
		t.Fatal("writer did not pick up the first record")
	}

	rec.Observe(context.Background(), login("req-2"))
	rec.Observe(context.Background(), login("req-3"))

	close(sink.release)
	rec.Close()

	require.Len(t, sink.records, 2)
	assert.Equal(t, "req-1", sink.records[0].RequestID)
	assert.Equal(t, "req-2", sink.records[1].RequestID)
	assert.Contains(t, buf.String(), "audit queue full")
	assert.Contains(t, buf.String(), "req-3")
}

func TestRecorderCloseIsIdempotent(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zerolog.Nop())

	rec.Observe(context.Background(), auth.Event{Kind: auth.EventLogin, Result: auth.ResultSuccess})
	rec.Close()
	rec.Close()

	rec.Observe(context.Background(), auth.Event{Kind: auth.EventLogin, Result: auth.ResultSuccess})
	assert.Len(t, sink.records, 1)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	actor := uuid.New()
	err := NewLogSink(zerolog.New(&buf)).Write(context.Background(), &Record{
		ID:        uuid.New(),
		EventType: "login",
		Result:    auth.ResultSuccess,
		ActorID:   &actor,
		Route:     "POST /auth/login",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "audit", line["message"])
	assert.Equal(t, actor.String(), line["actor_id"])
	assert.NotContains(t, line, "policy")
	assert.False(t, strings.Contains(buf.String(), "password"))
}
