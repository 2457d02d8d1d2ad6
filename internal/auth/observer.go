package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type EventKind string

const (
	EventToken  EventKind = "token"
	EventLogin  EventKind = "login"
	EventAccess EventKind = "access"
)

// Event outcomes beyond the token reasons.
const (
	ResultSuccess      = "success"
	ResultFailure      = "failure"
	ResultPermitted    = "permitted"
	ResultUnauthorized = "unauthenticated"
	ResultForbidden    = "forbidden"
	ResultError        = "error"
)

// Event describes one authentication or authorization outcome. It carries
// no token, password or hash material.
type Event struct {
	Kind      EventKind
	Result    string
	Subject   uuid.UUID
	Access    string
	Route     string
	RequestID string
	RemoteIP  string
	UserAgent string
}

// Observer receives auth events. Implementations must be safe for
// concurrent use and must not block the request.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

// Observers fans an event out to several observers.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, e)
		}
	}
}

// NewEvent fills the request metadata of an event from an echo context.
func NewEvent(c echo.Context, kind EventKind, result string) Event {
	return Event{
		Kind:      kind,
		Result:    result,
		Route:     c.Request().Method + " " + c.Path(),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		RemoteIP:  c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
