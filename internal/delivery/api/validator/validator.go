// Package validator adapts go-playground/validator to echo.
package validator

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type customValidator struct {
	validate *validator.Validate
}

// New returns an echo.Validator that checks `validate` struct tags.
func New() echo.Validator {
	return &customValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (v *customValidator) Validate(i any) error {
	return v.validate.Struct(i)
}
