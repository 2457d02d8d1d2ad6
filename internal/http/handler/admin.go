package handler

import (
	"net/http"

	"project-service/internal/domain/identity"
	apperrors "project-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	identities IdentityAdmin
}

func NewAdminHandler(identities IdentityAdmin) *AdminHandler {
	return &AdminHandler{identities: identities}
}

// ListUsers pages through identities, optionally filtered by username prefix.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, okLimit := queryInt(c, queryLimit, 0)
	offset, okOffset := queryInt(c, queryOffset, 0)
	if !okLimit || !okOffset {
		return apperrors.Validation(msgInvalidPagination)
	}

	filter := identity.ListFilter{
		Query:  identity.NormalizeUsername(c.QueryParam(queryFilter)),
		Limit:  limit,
		Offset: offset,
	}
	found, err := h.identities.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	users := make([]IdentityView, 0, len(found))
	for _, i := range found {
		users = append(users, newIdentityView(i))
	}
	return c.JSON(http.StatusOK, ListIdentitiesResponse{
		Users:  users,
		Limit:  limit,
		Offset: offset,
	})
}

// UpdateUser enables, disables or re-roles an identity. Tokens already issued
// to it keep validating, but the next request resolves the new state.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param(paramID))
	if err != nil {
		return apperrors.Validation(msgInvalidIdentityID)
	}

	var req UpdateIdentityRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}
	if req.Enabled == nil && req.Role == nil {
		return apperrors.Validation(msgEmptyUpdate)
	}

	input := identity.UpdateIdentityInput{Enabled: req.Enabled}
	if req.Role != nil {
		role, err := identity.ParseRole(*req.Role)
		if err != nil {
			return apperrors.Validation(err.Error())
		}
		input.Role = &role
	}

	if err := h.identities.Update(c.Request().Context(), id, input); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
