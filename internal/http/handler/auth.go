package handler

import (
	"errors"
	"net/http"

	"project-service/internal/auth"
	"project-service/internal/domain/identity"
	apperrors "project-service/pkg/errors"
	"project-service/pkg/validator"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	login      Authenticator
	hasher     PasswordHasher
	identities IdentityCreator
	observer   auth.Observer
}

func NewAuthHandler(login Authenticator, hasher PasswordHasher, identities IdentityCreator, observer auth.Observer) *AuthHandler {
	if observer == nil {
		observer = auth.Observers{}
	}
	return &AuthHandler{
		login:      login,
		hasher:     hasher,
		identities: identities,
		observer:   observer,
	}
}

// Login exchanges a username and password for a bearer token. Unknown users,
// wrong passwords and disabled accounts get the same 401 response.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	result, err := h.login.Authenticate(c.Request().Context(), req.Username, req.Password)
	h.observeLogin(c, result, err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, LoginResponse{
		Token:     result.Token.Value,
		TokenType: auth.TokenType,
		ExpiresAt: result.Token.ExpiresAt,
		Identity:  result.Identity,
	})
}

func (h *AuthHandler) observeLogin(c echo.Context, result *auth.LoginResult, err error) {
	outcome := auth.ResultSuccess
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		outcome = auth.ResultFailure
	default:
		outcome = auth.ResultError
	}

	event := auth.NewEvent(c, auth.EventLogin, outcome)
	if result != nil {
		if id, parseErr := uuid.Parse(result.Identity.ID); parseErr == nil {
			event.Subject = id
		}
	}
	h.observer.Observe(c.Request().Context(), event)
}

// Register creates a USER identity. Elevated roles are granted through the
// admin API or the CLI only.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	username := identity.NormalizeUsername(req.Username)
	if err := validator.Username(username); err != nil {
		return apperrors.Validation(err.Error())
	}
	if err := validator.Password(req.Password); err != nil {
		return apperrors.Validation(err.Error())
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		return apperrors.InternalServer(msgPasswordProcessFail, err)
	}

	created, err := h.identities.Create(c.Request().Context(), identity.CreateIdentityInput{
		Username:     username,
		PasswordHash: hash,
		Role:         identity.RoleUser,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created.Summary())
}

// Me describes the caller as seen by the authorization layer.
func Me(c echo.Context) error {
	sc := auth.Current(c)
	p, ok := sc.Principal()
	if !ok {
		return apperrors.Unauthorized(msgNoPrincipal)
	}
	return c.JSON(http.StatusOK, MeResponse{
		Identity:    p.Summary(),
		Authorities: sc.Authorities(),
	})
}
