package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// idParam parses a positive integer path parameter.
func idParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("%s must be a positive integer", name)
	}

	return id, nil
}
