package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestFormatValidationError(t *testing.T) {
	SetupValidator()

	type input struct {
		CorrelationID string `json:"correlation_id" binding:"required,max=128"`
		Kind          string `json:"kind" binding:"required,oneof=APPOINTMENT WORK_ORDER"`
	}

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	t.Run("uses json field names and readable messages", func(t *testing.T) {
		err := v.Struct(input{Kind: "SOMETHING_ELSE"})
		require.Error(t, err)

		msg := FormatValidationError(err)
		assert.Contains(t, msg, "correlation_id: this field is required")
		assert.Contains(t, msg, "kind: must be one of: APPOINTMENT WORK_ORDER")
	})

	t.Run("alternately required fields report the pairing", func(t *testing.T) {
		type event struct {
			CorrelationID string `json:"correlation_id" binding:"required_without=TicketRef"`
			TicketRef     string `json:"ticket_ref" binding:"required_without=CorrelationID"`
		}

		err := v.Struct(event{})
		require.Error(t, err)

		msg := FormatValidationError(err)
		assert.Contains(t, msg, "correlation_id: this field is required when TicketRef is absent")
	})

	t.Run("passes non-validator errors through", func(t *testing.T) {
		msg := FormatValidationError(assert.AnError)
		assert.Equal(t, assert.AnError.Error(), msg)
	})
}
