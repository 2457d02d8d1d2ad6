package handler

import (
	"time"

	"project-service/internal/domain/identity"
)

type LoginResponse struct {
	Token     string           `json:"token"`
	TokenType string           `json:"tokenType"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Identity  identity.Summary `json:"identity"`
}

type MeResponse struct {
	Identity    identity.Summary `json:"identity"`
	Authorities []identity.Role  `json:"authorities"`
}

// IdentityView is the admin listing row. It never includes the password hash.
type IdentityView struct {
	identity.Summary
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ListIdentitiesResponse struct {
	Users  []IdentityView `json:"users"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func newIdentityView(i *identity.Identity) IdentityView {
	return IdentityView{
		Summary:   i.Summary(),
		Enabled:   i.Enabled,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}
