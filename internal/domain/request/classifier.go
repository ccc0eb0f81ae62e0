package request

import (
	"fmt"
	"strings"

	"github.com/fieldbridge/backend/internal/domain/shared"
)

// Request categories assigned by the classifier
const (
	CategoryFieldService      = "field_service"
	CategoryMaintenance       = "maintenance"
	CategoryUrgentMaintenance = "urgent_maintenance"
	CategoryOnboarding        = "onboarding"
)

// Classification is the routing hint attached to a request at submission.
// It never influences the state machine.
type Classification struct {
	Category       string
	AutoResolvable bool
}

// Classifier assigns a category and an auto-resolvable flag to a request
type Classifier interface {
	Classify(kind RequestKind, payload RequestPayload) (Classification, error)
}

// RuleClassifier is a pure, deterministic rule table. The same kind and
// payload always produce the same classification.
type RuleClassifier struct{}

// NewRuleClassifier creates a rule-based classifier
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify derives the category from the request kind and priority, and marks
// the request auto-resolvable when it is routine enough to skip human review.
func (c *RuleClassifier) Classify(kind RequestKind, payload RequestPayload) (Classification, error) {
	if !kind.IsValid() {
		return Classification{}, shared.NewDomainError("INVALID_PAYLOAD", fmt.Sprintf("Unknown request kind %q", kind))
	}
	if err := payload.Validate(); err != nil {
		return Classification{}, err
	}

	var category string
	switch kind {
	case KindAppointment:
		category = CategoryFieldService
	case KindWorkOrder:
		if payload.Priority == PriorityHigh || payload.Priority == PriorityCritical {
			category = CategoryUrgentMaintenance
		} else {
			category = CategoryMaintenance
		}
	case KindAccountCreation:
		category = CategoryOnboarding
	}

	return Classification{
		Category:       category,
		AutoResolvable: c.autoResolvable(kind, payload),
	}, nil
}

// autoResolvable marks routine requests: low-stakes priority, no special
// parts or skills, and no free-text escalation markers.
func (c *RuleClassifier) autoResolvable(kind RequestKind, payload RequestPayload) bool {
	if kind == KindAccountCreation {
		// Account creation touches the ERP master data and always gets a
		// human decision.
		return false
	}
	if payload.Priority != PriorityLow && payload.Priority != PriorityNormal {
		return false
	}
	if len(payload.RequiredParts) > 0 || len(payload.RequiredSkills) > 0 {
		return false
	}
	desc := strings.ToLower(payload.Description)
	if strings.Contains(desc, "escalate") || strings.Contains(desc, "urgent") {
		return false
	}
	return true
}
