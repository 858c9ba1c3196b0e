package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tourplanner/internal/delivery/api/response"
)

// HealthCheck reports that the server accepts requests
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}
