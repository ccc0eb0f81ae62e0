package request

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleClassifier(t *testing.T) {
	c := NewRuleClassifier()

	payload := func(priority string) RequestPayload {
		return RequestPayload{
			Subject:       "Quarterly filter swap",
			Priority:      priority,
			EstimatedCost: decimal.NewFromInt(80),
		}
	}

	t.Run("appointment maps to field service", func(t *testing.T) {
		got, err := c.Classify(KindAppointment, payload(PriorityNormal))
		require.NoError(t, err)
		assert.Equal(t, CategoryFieldService, got.Category)
		assert.True(t, got.AutoResolvable)
	})

	t.Run("work order priority splits maintenance", func(t *testing.T) {
		got, err := c.Classify(KindWorkOrder, payload(PriorityLow))
		require.NoError(t, err)
		assert.Equal(t, CategoryMaintenance, got.Category)

		got, err = c.Classify(KindWorkOrder, payload(PriorityCritical))
		require.NoError(t, err)
		assert.Equal(t, CategoryUrgentMaintenance, got.Category)
		assert.False(t, got.AutoResolvable)
	})

	t.Run("account creation is never auto-resolvable", func(t *testing.T) {
		got, err := c.Classify(KindAccountCreation, payload(PriorityLow))
		require.NoError(t, err)
		assert.Equal(t, CategoryOnboarding, got.Category)
		assert.False(t, got.AutoResolvable)
	})

	t.Run("required parts block auto-resolution", func(t *testing.T) {
		p := payload(PriorityLow)
		p.RequiredParts = []string{"belt"}
		got, err := c.Classify(KindWorkOrder, p)
		require.NoError(t, err)
		assert.False(t, got.AutoResolvable)
	})

	t.Run("escalation wording blocks auto-resolution", func(t *testing.T) {
		p := payload(PriorityNormal)
		p.Description = "Please escalate to a supervisor"
		got, err := c.Classify(KindWorkOrder, p)
		require.NoError(t, err)
		assert.False(t, got.AutoResolvable)
	})

	t.Run("deterministic for identical input", func(t *testing.T) {
		a, err := c.Classify(KindWorkOrder, payload(PriorityHigh))
		require.NoError(t, err)
		b, err := c.Classify(KindWorkOrder, payload(PriorityHigh))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("invalid payload rejected", func(t *testing.T) {
		p := payload("weird")
		_, err := c.Classify(KindWorkOrder, p)
		assert.Error(t, err)
	})
}
