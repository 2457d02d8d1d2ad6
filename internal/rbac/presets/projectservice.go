// Package presets holds the built-in route policy tables.
package presets

import (
	"net/http"

	"project-service/internal/domain/identity"
	"project-service/internal/rbac"
)

// Route patterns registered by the HTTP server.
const (
	RouteLogin      = "/auth/login"
	RouteRegister   = "/auth/register"
	RouteHealth     = "/health"
	RouteMetrics    = "/metrics"
	RouteMe         = "/api/me"
	RouteAdminUsers = "/api/admin/users"
	RouteAdminUser  = "/api/admin/users/:id"
	RouteDebugPprof = "/debug/pprof/*"
)

// ProjectService returns the default policy table. Anything not listed
// requires an authenticated caller.
func ProjectService() rbac.Config {
	admin := rbac.RequireRoles(identity.RoleAdmin)

	return rbac.Config{
		DefaultPolicy: rbac.Authenticated(),
		Routes: []rbac.RouteRule{
			{Method: http.MethodPost, Path: RouteLogin, Policy: rbac.Public()},
			{Method: http.MethodPost, Path: RouteRegister, Policy: rbac.Public()},
			{Method: http.MethodGet, Path: RouteHealth, Policy: rbac.Public()},
			{Method: http.MethodGet, Path: RouteMetrics, Policy: rbac.Public()},
			{Method: rbac.MethodAny, Path: RouteMe, Policy: rbac.Authenticated()},
			{Method: http.MethodGet, Path: RouteAdminUsers, Policy: admin},
			{Method: http.MethodPatch, Path: RouteAdminUser, Policy: admin},
			{Method: http.MethodGet, Path: RouteDebugPprof, Policy: admin},
		},
	}
}
