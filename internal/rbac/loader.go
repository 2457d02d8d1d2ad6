package rbac

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"project-service/internal/domain/identity"
)

type fileConfig struct {
	Default fileRule   `yaml:"default"`
	Routes  []fileRule `yaml:"routes"`
}

type fileRule struct {
	Method string   `yaml:"method"`
	Path   string   `yaml:"path"`
	Access string   `yaml:"access"`
	Roles  []string `yaml:"roles"`
}

// LoadFile reads a route policy table from a YAML file:
//
//	default:
//	  access: authenticated
//	routes:
//	  - method: GET
//	    path: /api/admin/users
//	    access: roles
//	    roles: [ADMIN]
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf(errReadPolicyFileFmt, path, err)
	}

	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf(errDecodePolicyFileFmt, path, err)
	}
	return cfg, nil
}

// Decode parses a YAML route policy table. Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && err != io.EOF {
		return Config{}, err
	}

	cfg := Config{DefaultPolicy: Authenticated()}
	if fc.Default.Access != "" || len(fc.Default.Roles) > 0 {
		p, err := fc.Default.policy()
		if err != nil {
			return Config{}, fmt.Errorf(errConfigWrapFmt, ErrInvalidConfig, fmt.Errorf(errConfigDefaultPolicyFmt, err))
		}
		cfg.DefaultPolicy = p
	}

	for i, fr := range fc.Routes {
		p, err := fr.policy()
		if err != nil {
			return Config{}, fmt.Errorf(errConfigWrapFmt, ErrInvalidConfig, fmt.Errorf(errConfigRoutePolicyFmt, i, fr.Method, fr.Path, err))
		}
		method := fr.Method
		if method == "" {
			method = MethodAny
		}
		cfg.Routes = append(cfg.Routes, RouteRule{Method: method, Path: fr.Path, Policy: p})
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fr fileRule) policy() (Policy, error) {
	p := Policy{Access: Access(fr.Access)}
	for _, name := range fr.Roles {
		role, err := identity.ParseRole(name)
		if err != nil {
			return Policy{}, fmt.Errorf(errConfigUnknownRoleFmt, ErrInvalidRole, name)
		}
		p.Roles = append(p.Roles, role)
	}
	return p, nil
}
