// Package handler contains the HTTP handlers of the API.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"tourplanner/internal/delivery/api/response"
	"tourplanner/internal/usecase"
)

// SessionHandlerParams holds dependencies for SessionHandler, injected by Fx.
type SessionHandlerParams struct {
	fx.In

	TourUC usecase.TourUsecase
	Logger *slog.Logger
}

// SessionHandler serves the creation, loading and removal of sessions
type SessionHandler struct {
	tourUC usecase.TourUsecase
	logger *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler
func NewSessionHandler(params SessionHandlerParams) *SessionHandler {
	return &SessionHandler{
		tourUC: params.TourUC,
		logger: params.Logger,
	}
}

// CreateSession loads a network, and optionally requests, into a new session
func (h *SessionHandler) CreateSession(c echo.Context) error {
	var req usecase.CreateSessionInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid session input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	summary, err := h.tourUC.CreateSession(c.Request().Context(), &req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, summary)
}

// ListSessions returns every open session
func (h *SessionHandler) ListSessions(c echo.Context) error {
	sessions, err := h.tourUC.ListSessions(c.Request().Context())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, sessions)
}

// GetSession returns the state of one session
func (h *SessionHandler) GetSession(c echo.Context) error {
	summary, err := h.tourUC.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}

// DeleteSession closes a session
func (h *SessionHandler) DeleteSession(c echo.Context) error {
	if err := h.tourUC.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return response.HandleAppError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// LoadNetwork replaces the road network of a session
func (h *SessionHandler) LoadNetwork(c echo.Context) error {
	var req usecase.LoadNetworkInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid network input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	summary, err := h.tourUC.LoadNetwork(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}

// LoadRequests replaces the requests of a session
func (h *SessionHandler) LoadRequests(c echo.Context) error {
	var req usecase.LoadRequestsInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid requests input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	summary, err := h.tourUC.LoadRequests(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}
