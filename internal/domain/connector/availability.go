package connector

import (
	"github.com/shopspring/decimal"
)

// AvailabilityQuery asks the ERP whether a request can be resourced
type AvailabilityQuery struct {
	RequiredParts  []string
	RequiredSkills []string
	CostCenter     string
	EstimatedCost  decimal.Decimal
	Location       string
}

// TechnicianAvailability describes one technician the ERP knows about
type TechnicianAvailability struct {
	TechnicianID string
	Skills       []string
	Workload     int
	Location     string
}

// PartStock describes stock for one requested part
type PartStock struct {
	PartID    string
	Available int
}

// AvailabilityReport is the ERP's answer to an availability query
type AvailabilityReport struct {
	Parts           []PartStock
	Technicians     []TechnicianAvailability
	BudgetRemaining decimal.Decimal
	LocationKnown   bool
}

// PartAvailable reports whether the named part has stock
func (r *AvailabilityReport) PartAvailable(partID string) bool {
	for _, p := range r.Parts {
		if p.PartID == partID {
			return p.Available > 0
		}
	}
	return false
}
