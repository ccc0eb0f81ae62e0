package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validationRequest(t *testing.T) *request.ServiceRequest {
	t.Helper()
	req, err := request.NewServiceRequest("corr-v1", request.KindWorkOrder, request.RequestPayload{
		Subject:        "Replace compressor unit",
		Priority:       request.PriorityHigh,
		RequiredParts:  []string{"compressor", "belt"},
		RequiredSkills: []string{"hvac"},
		CostCenter:     "cc-100",
		EstimatedCost:  decimal.NewFromInt(500),
		Location:       "zone-7",
	})
	require.NoError(t, err)
	return req
}

func fullReport() *connector.AvailabilityReport {
	return &connector.AvailabilityReport{
		Parts: []connector.PartStock{
			{PartID: "compressor", Available: 2},
			{PartID: "belt", Available: 10},
		},
		Technicians: []connector.TechnicianAvailability{
			{TechnicianID: "tech-3", Skills: []string{"hvac", "electrical"}, Workload: 1},
			{TechnicianID: "tech-1", Skills: []string{"hvac"}, Workload: 4},
			{TechnicianID: "tech-2", Skills: []string{"hvac"}, Workload: 4},
		},
		BudgetRemaining: decimal.NewFromInt(2000),
		LocationKnown:   true,
	}
}

func TestResourceValidator(t *testing.T) {
	run := func(t *testing.T, report *connector.AvailabilityReport) ValidationResult {
		t.Helper()
		erp := new(MockERPConnector)
		erp.On("CheckAvailability", mock.Anything, mock.Anything).Return(report, nil).Once()
		result, err := NewResourceValidator(erp).Validate(context.Background(), validationRequest(t))
		require.NoError(t, err)
		return result
	}

	t.Run("passes and recommends the exact skill match", func(t *testing.T) {
		result := run(t, fullReport())

		assert.True(t, result.OK)
		assert.Empty(t, result.Reasons)
		// tech-1 and tech-2 match the required skill set exactly and beat
		// the broader tech-3; the tie breaks on the lexically smaller ID.
		assert.Equal(t, "tech-1", result.RecommendedResource)
	})

	t.Run("missing part is a hard failure", func(t *testing.T) {
		report := fullReport()
		report.Parts = report.Parts[:1]
		result := run(t, report)

		assert.False(t, result.OK)
		assert.Contains(t, result.Reason(), "belt")
	})

	t.Run("insufficient budget is a hard failure", func(t *testing.T) {
		report := fullReport()
		report.BudgetRemaining = decimal.NewFromInt(100)
		result := run(t, report)

		assert.False(t, result.OK)
		assert.Contains(t, result.Reason(), "budget")
	})

	t.Run("no qualified technician is a hard failure", func(t *testing.T) {
		report := fullReport()
		report.Technicians = []connector.TechnicianAvailability{
			{TechnicianID: "tech-9", Skills: []string{"plumbing"}, Workload: 0},
		}
		result := run(t, report)

		assert.False(t, result.OK)
		assert.Contains(t, result.Reason(), "skills")
	})

	t.Run("unknown location is only a warning", func(t *testing.T) {
		report := fullReport()
		report.LocationKnown = false
		result := run(t, report)

		assert.True(t, result.OK)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "zone-7")
	})

	t.Run("workload breaks ties among exact matches", func(t *testing.T) {
		report := fullReport()
		report.Technicians[2].Workload = 1
		result := run(t, report)

		assert.Equal(t, "tech-2", result.RecommendedResource)
	})

	t.Run("erp failure propagates", func(t *testing.T) {
		erp := new(MockERPConnector)
		erp.On("CheckAvailability", mock.Anything, mock.Anything).
			Return(nil, connector.NewTransientError("erp", "CheckAvailability", 503, errors.New("down"))).Once()

		_, err := NewResourceValidator(erp).Validate(context.Background(), validationRequest(t))
		assert.Error(t, err)
	})
}
