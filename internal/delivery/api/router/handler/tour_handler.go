package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"tourplanner/internal/delivery/api/response"
	"tourplanner/internal/usecase"
)

// TourHandlerParams holds dependencies for TourHandler, injected by Fx.
type TourHandlerParams struct {
	fx.In

	TourUC usecase.TourUsecase
	Logger *slog.Logger
}

// TourHandler serves the tour of a session and its edits
type TourHandler struct {
	tourUC usecase.TourUsecase
	logger *slog.Logger
}

// NewTourHandler is the constructor for TourHandler
func NewTourHandler(params TourHandlerParams) *TourHandler {
	return &TourHandler{
		tourUC: params.TourUC,
		logger: params.Logger,
	}
}

// SelectRequest represents the request body for highlighting a demand
type SelectRequest struct {
	DemandID int64 `json:"demandId" validate:"required,gt=0"`
}

// GetTour returns the current schedule
func (h *TourHandler) GetTour(c echo.Context) error {
	tour, err := h.tourUC.GetTour(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, tour)
}

// GetLeg returns the road path between two stops, given as ?from=&to=
func (h *TourHandler) GetLeg(c echo.Context) error {
	var from, to int
	if err := echo.QueryParamsBinder(c).
		MustInt("from", &from).
		MustInt("to", &to).
		BindError(); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", "from and to must be stop positions")
	}

	leg, err := h.tourUC.GetLeg(c.Request().Context(), c.Param("id"), from, to)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, leg)
}

// ListRequests returns the live request set
func (h *TourHandler) ListRequests(c echo.Context) error {
	requests, err := h.tourUC.ListRequests(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, requests)
}

// Recompute builds and optimises the tour
func (h *TourHandler) Recompute(c echo.Context) error {
	result, err := h.tourUC.Recompute(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// CancelComputation stops a running computation
func (h *TourHandler) CancelComputation(c echo.Context) error {
	if err := h.tourUC.CancelComputation(c.Request().Context(), c.Param("id")); err != nil {
		return response.HandleAppError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

// BeginAddRequest enters the request creation phase
func (h *TourHandler) BeginAddRequest(c echo.Context) error {
	summary, err := h.tourUC.BeginAddRequest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}

// CancelAddRequest leaves the request creation phase
func (h *TourHandler) CancelAddRequest(c echo.Context) error {
	summary, err := h.tourUC.CancelAddRequest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}

// AddRequest adds a pickup/delivery pair
func (h *TourHandler) AddRequest(c echo.Context) error {
	var req usecase.AddRequestInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid request input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	result, err := h.tourUC.AddRequest(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, result)
}

// RemoveRequest removes a request from the tour
func (h *TourHandler) RemoveRequest(c echo.Context) error {
	requestID, err := idParam(c, "requestId")
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", err.Error())
	}

	result, err := h.tourUC.RemoveRequest(c.Request().Context(), c.Param("id"), requestID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// RemoveDemand removes a demand, and its request, from the tour
func (h *TourHandler) RemoveDemand(c echo.Context) error {
	demandID, err := idParam(c, "demandId")
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", err.Error())
	}

	result, err := h.tourUC.RemoveDemand(c.Request().Context(), c.Param("id"), demandID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// SetServiceDuration changes the time spent at one stop
func (h *TourHandler) SetServiceDuration(c echo.Context) error {
	demandID, err := idParam(c, "demandId")
	if err != nil {
		return response.BadRequest(c, "INVALID_ID", err.Error())
	}

	var req usecase.ServiceDurationInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid service duration input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	result, err := h.tourUC.SetServiceDuration(c.Request().Context(), c.Param("id"), demandID, &req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// Reorder moves or swaps two stops
func (h *TourHandler) Reorder(c echo.Context) error {
	var req usecase.ReorderInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid reorder input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	result, err := h.tourUC.Reorder(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// Undo reverts the last edit
func (h *TourHandler) Undo(c echo.Context) error {
	result, err := h.tourUC.Undo(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// Redo reapplies the last undone edit
func (h *TourHandler) Redo(c echo.Context) error {
	result, err := h.tourUC.Redo(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// Select highlights a demand and its sibling
func (h *TourHandler) Select(c echo.Context) error {
	var req SelectRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid selection input")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	summary, err := h.tourUC.Select(c.Request().Context(), c.Param("id"), req.DemandID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}

// ClearSelection removes the highlight
func (h *TourHandler) ClearSelection(c echo.Context) error {
	summary, err := h.tourUC.Select(c.Request().Context(), c.Param("id"), 0)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}
