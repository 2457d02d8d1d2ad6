package rbac

import (
	"fmt"
	"strings"

	"project-service/internal/domain/identity"
)

type routeKey struct {
	method string
	path   string
}

// PolicyTable answers which policy applies to a matched route. It is built
// once and only read afterwards, so concurrent lookups need no locking.
type PolicyTable struct {
	routes        map[routeKey]Policy
	defaultPolicy Policy
}

// New creates a PolicyTable from a validated Config.
func New(cfg Config) (*PolicyTable, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &PolicyTable{
		routes:        make(map[routeKey]Policy, len(cfg.Routes)),
		defaultPolicy: clonePolicy(cfg.DefaultPolicy),
	}
	for _, r := range cfg.Routes {
		t.routes[routeKey{method: strings.ToUpper(r.Method), path: r.Path}] = clonePolicy(r.Policy)
	}

	return t, nil
}

// MustNew creates a PolicyTable and panics on invalid config.
func MustNew(cfg Config) *PolicyTable {
	t, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf(errMustNewPanicFmt, err))
	}
	return t
}

// Lookup returns the policy for method and route pattern. An exact method
// rule wins over a MethodAny rule; unmapped routes get the default policy.
func (t *PolicyTable) Lookup(method, path string) Policy {
	if p, ok := t.routes[routeKey{method: strings.ToUpper(method), path: path}]; ok {
		return p
	}
	if p, ok := t.routes[routeKey{method: MethodAny, path: path}]; ok {
		return p
	}
	return t.defaultPolicy
}

func (t *PolicyTable) DefaultPolicy() Policy {
	return t.defaultPolicy
}

func clonePolicy(p Policy) Policy {
	return Policy{Access: p.Access, Roles: append([]identity.Role(nil), p.Roles...)}
}
