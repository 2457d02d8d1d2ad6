package http

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"
)

// StageName identifies a request pipeline stage.
type StageName string

// Stages of the request pipeline, in the order the server installs them.
const (
	// StageRequestID assigns X-Request-ID. Post: every later stage and the
	// error handler can read the ID from the response header.
	StageRequestID StageName = "request_id"
	// StageSecurityHeaders sets hardening headers on every response.
	StageSecurityHeaders StageName = "security_headers"
	// StageAccessLog logs the final status of every request, errors included.
	StageAccessLog StageName = "access_log"
	// StageRecover turns handler panics into 500 responses.
	StageRecover StageName = "recover"
	// StageBodyLimit caps the request body before any handler reads it.
	StageBodyLimit StageName = "body_limit"
	// StageMetrics counts requests by route template and final status.
	StageMetrics StageName = "metrics"
	// StageAuthenticate resolves the bearer token. Post: the request context
	// holds a SecurityContext, anonymous when no valid token was presented.
	StageAuthenticate StageName = "authenticate"
	// StageRateLimit throttles by principal or client address. Pre: the
	// SecurityContext is set.
	StageRateLimit StageName = "rate_limit"
	// StageAuthorize applies the route's policy. Pre: the SecurityContext is
	// set. Post: the handler only runs for permitted callers.
	StageAuthorize StageName = "authorize"
)

var (
	errEmptyStageName     = errors.New("pipeline stage has no name")
	errNilStageMiddleware = errors.New("pipeline stage has no middleware")
)

const (
	errDuplicateStageFmt = "pipeline stage %q appears more than once"
	errStageOrderFmt     = "pipeline stage %q must run after %q"
)

// Stage is one named middleware of the pipeline. After lists the stages
// that must already have run when this one starts.
type Stage struct {
	Name       StageName
	After      []StageName
	Middleware echo.MiddlewareFunc
}

// Pipeline is an ordered, validated list of stages.
type Pipeline struct {
	stages []Stage
}

// implicitOrder holds ordering rules enforced whether or not a stage
// declares them.
var implicitOrder = map[StageName][]StageName{
	StageAuthorize: {StageAuthenticate},
	StageRateLimit: {StageAuthenticate},
}

// NewPipeline validates the stage order and returns the pipeline.
func NewPipeline(stages ...Stage) (*Pipeline, error) {
	p := &Pipeline{stages: stages}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects unnamed or duplicate stages and any stage placed before
// a stage it depends on, such as authorize ahead of authenticate.
func (p *Pipeline) Validate() error {
	seen := make(map[StageName]bool, len(p.stages))
	for _, s := range p.stages {
		if s.Name == "" {
			return errEmptyStageName
		}
		if s.Middleware == nil {
			return fmt.Errorf("%w: %s", errNilStageMiddleware, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf(errDuplicateStageFmt, s.Name)
		}

		deps := append(append([]StageName{}, implicitOrder[s.Name]...), s.After...)
		for _, dep := range deps {
			if !seen[dep] {
				return fmt.Errorf(errStageOrderFmt, s.Name, dep)
			}
		}
		seen[s.Name] = true
	}
	return nil
}

// Names returns the stage names in execution order.
func (p *Pipeline) Names() []StageName {
	names := make([]StageName, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Apply installs the stages on e in order. Echo runs e.Use middleware after
// routing, so stages can read the matched route template.
func (p *Pipeline) Apply(e *echo.Echo) {
	for _, s := range p.stages {
		e.Use(s.Middleware)
	}
}
