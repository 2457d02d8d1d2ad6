package rbac

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	MethodAny:          true,
}

// Validate checks internal consistency of the Config. Every error wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.DefaultPolicy.Validate(); err != nil {
		return fmt.Errorf(errConfigWrapFmt, ErrInvalidConfig, fmt.Errorf(errConfigDefaultPolicyFmt, err))
	}
	if c.DefaultPolicy.Access == AccessPublic {
		return fmt.Errorf(errConfigWrapFmt, ErrInvalidConfig, errors.New(errConfigDefaultPolicyPublicFmt))
	}

	seen := make(map[routeKey]bool, len(c.Routes))
	for i, r := range c.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf(errConfigWrapFmt, ErrInvalidConfig, fmt.Errorf(errConfigRoutePathFmt, i, r.Path))
		}
		method := strings.ToUpper(r.Method)
		if !supportedMethods[method] {
			return fmt.Errorf(errConfigWrapFmt, ErrInvalidConfig, fmt.Errorf(errConfigRouteMethodFmt, i, r.Method))
		}
		if err := r.Policy.Validate(); err != nil {
			return fmt.Errorf(errConfigWrapFmt, ErrInvalidConfig, fmt.Errorf(errConfigRoutePolicyFmt, i, method, r.Path, err))
		}

		key := routeKey{method: method, path: r.Path}
		if seen[key] {
			return fmt.Errorf(errConfigWrapFmt, ErrInvalidConfig, fmt.Errorf(errConfigDuplicateRouteFmt, method, r.Path))
		}
		seen[key] = true
	}

	return nil
}

// Validate checks that the access kind is known and that roles are listed
// exactly when the kind needs them.
func (p Policy) Validate() error {
	switch p.Access {
	case AccessPublic, AccessAuthenticated:
		if len(p.Roles) > 0 {
			return fmt.Errorf(errConfigRolesNotAllowedFmt, p.Access)
		}
	case AccessRoles:
		if len(p.Roles) == 0 {
			return fmt.Errorf(errConfigRolesRequiredFmt, p.Access)
		}
		for _, r := range p.Roles {
			if !r.Valid() {
				return fmt.Errorf(errConfigUnknownRoleFmt, ErrInvalidRole, r)
			}
		}
	default:
		return fmt.Errorf(errConfigUnknownAccessFmt, p.Access)
	}
	return nil
}
