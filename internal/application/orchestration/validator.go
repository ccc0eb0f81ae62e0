package orchestration

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/domain/request"
)

// ValidationResult is the outcome of a resource validation run
type ValidationResult struct {
	OK bool
	// Reasons lists the hard failures when OK is false
	Reasons []string
	// Warnings lists soft findings that do not block approval
	Warnings []string
	// RecommendedResource is the technician to assign, empty when none fits
	RecommendedResource string
}

// Reason returns the hard failures joined into one message
func (r ValidationResult) Reason() string {
	return strings.Join(r.Reasons, "; ")
}

// ResourceValidator checks an approval against the ERP's current resource
// picture: part stock, cost-center budget and technician skills are hard
// gates, an unknown location is only a warning.
type ResourceValidator struct {
	erp connector.ERPConnector
}

// NewResourceValidator creates a resource validator backed by the ERP
func NewResourceValidator(erp connector.ERPConnector) *ResourceValidator {
	return &ResourceValidator{erp: erp}
}

// Validate runs the availability check for the request. A returned error
// means the ERP could not be consulted; the caller decides whether to fail
// the approval or leave the request pending.
func (v *ResourceValidator) Validate(ctx context.Context, req *request.ServiceRequest) (ValidationResult, error) {
	query := connector.AvailabilityQuery{
		RequiredParts:  req.Payload.RequiredParts,
		RequiredSkills: req.Payload.RequiredSkills,
		CostCenter:     req.Payload.CostCenter,
		EstimatedCost:  req.Payload.EstimatedCost,
		Location:       req.Payload.Location,
	}

	report, err := v.erp.CheckAvailability(ctx, query)
	if err != nil {
		return ValidationResult{}, err
	}

	var result ValidationResult

	for _, part := range req.Payload.RequiredParts {
		if !report.PartAvailable(part) {
			result.Reasons = append(result.Reasons, fmt.Sprintf("part %s is out of stock", part))
		}
	}

	if req.Payload.CostCenter != "" && report.BudgetRemaining.LessThan(req.Payload.EstimatedCost) {
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"cost center %s budget %s is below estimated cost %s",
			req.Payload.CostCenter, report.BudgetRemaining, req.Payload.EstimatedCost))
	}

	qualified := qualifiedTechnicians(report.Technicians, req.Payload.RequiredSkills)
	if len(req.Payload.RequiredSkills) > 0 && len(qualified) == 0 {
		result.Reasons = append(result.Reasons, "no technician covers the required skills")
	}

	if req.Payload.Location != "" && !report.LocationKnown {
		result.Warnings = append(result.Warnings, fmt.Sprintf("location %s is not in the ERP service area", req.Payload.Location))
	}

	result.OK = len(result.Reasons) == 0
	if result.OK && len(qualified) > 0 {
		result.RecommendedResource = recommend(qualified, req.Payload.RequiredSkills)
	}
	return result, nil
}

func qualifiedTechnicians(techs []connector.TechnicianAvailability, required []string) []connector.TechnicianAvailability {
	if len(required) == 0 {
		return techs
	}
	var out []connector.TechnicianAvailability
	for _, tech := range techs {
		if hasAllSkills(tech.Skills, required) {
			out = append(out, tech)
		}
	}
	return out
}

func hasAllSkills(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, s := range have {
		set[s] = true
	}
	for _, s := range want {
		if !set[s] {
			return false
		}
	}
	return true
}

// recommend picks the technician to assign: an exact skill-set match beats a
// superset, then lower workload wins, then the lexically smallest ID so the
// choice is deterministic.
func recommend(techs []connector.TechnicianAvailability, required []string) string {
	sorted := make([]connector.TechnicianAvailability, len(techs))
	copy(sorted, techs)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		exactA := len(required) > 0 && len(a.Skills) == len(required)
		exactB := len(required) > 0 && len(b.Skills) == len(required)
		if exactA != exactB {
			return exactA
		}
		if a.Workload != b.Workload {
			return a.Workload < b.Workload
		}
		return a.TechnicianID < b.TechnicianID
	})
	return sorted[0].TechnicianID
}
