package rbac

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid route policy config")
	ErrInvalidRole   = errors.New("invalid role")
)

const (
	errConfigUnknownAccessFmt       = "unknown access %q"
	errConfigRolesRequiredFmt       = "access %q requires at least one role"
	errConfigRolesNotAllowedFmt     = "access %q must not list roles"
	errConfigUnknownRoleFmt         = "%w: %s"
	errConfigRoutePathFmt           = "route %d: path must start with '/': %q"
	errConfigRouteMethodFmt         = "route %d: unsupported method %q"
	errConfigRoutePolicyFmt         = "route %d (%s %s): %w"
	errConfigDuplicateRouteFmt      = "duplicate route %s %s"
	errConfigDefaultPolicyFmt       = "default policy: %w"
	errConfigDefaultPolicyPublicFmt = "default policy must not be public"
	errConfigWrapFmt                = "%w: %w"
	errMustNewPanicFmt              = "rbac.MustNew: %v"
	errReadPolicyFileFmt            = "failed to read route policy file %s: %w"
	errDecodePolicyFileFmt          = "failed to decode route policy file %s: %w"
)
