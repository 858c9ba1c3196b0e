package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type reorderRequest struct {
	From int `validate:"required,gte=1"`
	To   int `validate:"required,gte=1"`
}

func TestValidator(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&reorderRequest{From: 1, To: 3}))
	assert.Error(t, v.Validate(&reorderRequest{From: 0, To: 3}))
	assert.Error(t, v.Validate(&reorderRequest{From: 2}))
}
