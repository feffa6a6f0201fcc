// Package workflow holds the stage state machine: the per-target-stage
// requirement table, the pure transition validator, and the payload merge
// applied once a transition is accepted.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/facumancuso/minoil/internal/domain"
)

// Payload carries the stage-specific fields a caller supplies with a
// transition request. Only the fields relevant to the target stage are read;
// the rest are ignored.
type Payload struct {
	// TransitionDate overrides "now" as the effective date of the
	// transition; derived milestone dates fall back to it.
	TransitionDate *time.Time `json:"transition_date,omitempty" format:"date-time"`

	EvaluationStartDate        *time.Time `json:"evaluation_start_date,omitempty" format:"date-time"`
	EvaluationEstimatedEndDate *time.Time `json:"evaluation_estimated_end_date,omitempty" format:"date-time"`
	EvaluationMechanics        int        `json:"evaluation_mechanics,omitempty"`

	IsViableForRepair *bool               `json:"is_viable_for_repair,omitempty"`
	EvaluationReports []domain.Attachment `json:"evaluation_reports,omitempty"`

	SupplierQuotationDate *time.Time          `json:"supplier_quotation_date,omitempty" format:"date-time"`
	SupplierQuotes        []domain.Attachment `json:"supplier_quotes,omitempty"`

	ClientQuotes []domain.Attachment `json:"client_quotes,omitempty"`

	ClientQuotationApprovalDate    *time.Time `json:"client_quotation_approval_date,omitempty" format:"date-time"`
	EstimatedDeliveryDate          *time.Time `json:"estimated_delivery_date,omitempty" format:"date-time"`
	SparePartsEstimatedArrivalDate *time.Time `json:"spare_parts_estimated_arrival_date,omitempty" format:"date-time"`

	SparePartsArrivalDate *time.Time `json:"spare_parts_arrival_date,omitempty" format:"date-time"`

	IsStockUsage             *bool               `json:"is_stock_usage,omitempty"`
	AssemblyStartDate        *time.Time          `json:"assembly_start_date,omitempty" format:"date-time"`
	AssemblyEstimatedEndDate *time.Time          `json:"assembly_estimated_end_date,omitempty" format:"date-time"`
	AssemblyMechanics        int                 `json:"assembly_mechanics,omitempty"`
	PurchaseOrderFiles       []domain.Attachment `json:"purchase_order_files,omitempty"`

	DeliveryDate *time.Time `json:"delivery_date,omitempty" format:"date-time"`
}

// FieldError names one missing or malformed payload field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects a transition with per-field errors so the caller
// can highlight exactly which inputs are missing. The transition is
// all-or-nothing: nothing is applied when this is returned.
type ValidationError struct {
	Target domain.Stage
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("transition to %s rejected: %s", e.Target, strings.Join(names, ", "))
}

// ErrUnknownStage rejects a target that is not a recognized stage.
type ErrUnknownStage struct {
	Target domain.Stage
}

func (e *ErrUnknownStage) Error() string {
	return fmt.Sprintf("unknown stage %q", e.Target)
}

// fieldRule is one row of the requirement table: the payload field a target
// stage demands and how to tell it is present.
type fieldRule struct {
	field   string
	message string
	present func(Payload) bool
}

// requirements maps each target stage to its required payload fields. The
// table is the contract: stages absent from it require nothing beyond the
// transition itself.
var requirements = map[domain.Stage][]fieldRule{
	domain.StageTeardownEvaluation: {
		{"evaluation_start_date", "evaluation start date is required", func(p Payload) bool { return p.EvaluationStartDate != nil }},
		{"evaluation_mechanics", "at least one mechanic must be assigned", func(p Payload) bool { return p.EvaluationMechanics >= 1 }},
		{"evaluation_estimated_end_date", "estimated evaluation end date is required", func(p Payload) bool { return p.EvaluationEstimatedEndDate != nil }},
	},
	domain.StageSimulation: nil,
	domain.StageQuotation: {
		{"supplier_quotation_date", "supplier quotation received date is required", func(p Payload) bool { return p.SupplierQuotationDate != nil }},
	},
	domain.StageClientQuotation: nil,
	domain.StageWaitingForPart: {
		{"client_quotation_approval_date", "client approval date is required", func(p Payload) bool { return p.ClientQuotationApprovalDate != nil }},
	},
	domain.StagePartArrived: {
		{"spare_parts_arrival_date", "part arrival date is required", func(p Payload) bool { return p.SparePartsArrivalDate != nil }},
	},
	domain.StageAssembly: {
		{"is_stock_usage", "stock usage must be indicated", func(p Payload) bool { return p.IsStockUsage != nil }},
		{"assembly_start_date", "assembly start date is required", func(p Payload) bool { return p.AssemblyStartDate != nil }},
		{"assembly_mechanics", "at least one mechanic must be assigned", func(p Payload) bool { return p.AssemblyMechanics >= 1 }},
		{"assembly_estimated_end_date", "estimated assembly end date is required", func(p Payload) bool { return p.AssemblyEstimatedEndDate != nil }},
	},
	domain.StageReadyForDelivery: nil,
	domain.StageDelivered:        nil, // delivery date defaults to the transition date
	domain.StageRejectedByClient: nil, // storage exit, reachable from anywhere
}

// Validate checks a proposed transition against the requirement table. It is
// pure: no persisted state is read or written. A nil return means the
// transition may be applied.
func Validate(current, target domain.Stage, p Payload) error {
	if !target.Valid() {
		return &ErrUnknownStage{Target: target}
	}
	if target == domain.StageWaitingForPickup {
		return &ValidationError{Target: target, Fields: []FieldError{
			{Field: "status", Message: "waiting_for_pickup is legacy and cannot be entered"},
		}}
	}
	if target == domain.StageWaitingForTeardown && current != domain.StageWaitingForTeardown {
		// Returning to the initial stage carries no data requirements.
		return nil
	}
	var missing []FieldError
	for _, rule := range requirements[target] {
		if !rule.present(p) {
			missing = append(missing, FieldError{Field: rule.field, Message: rule.message})
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Target: target, Fields: missing}
	}
	return nil
}

// progressByStage is the denormalized completion percentage shown per stage.
var progressByStage = map[domain.Stage]int{
	domain.StageWaitingForTeardown: 5,
	domain.StageTeardownEvaluation: 15,
	domain.StageSimulation:         25,
	domain.StageQuotation:          35,
	domain.StageClientQuotation:    45,
	domain.StageWaitingForPart:     55,
	domain.StagePartArrived:        65,
	domain.StageAssembly:           80,
	domain.StageReadyForDelivery:   95,
	domain.StageDelivered:          100,
	domain.StageRejectedByClient:   100,
	domain.StageWaitingForPickup:   95,
}

// Progress returns the completion percentage for a stage.
func Progress(s domain.Stage) int {
	return progressByStage[s]
}

// Apply merges the payload into the order and advances its status. Each
// stage owns disjoint fields, so milestones belonging to other stages are
// untouched. Validate must have accepted the transition first; Apply does
// not re-check requirements. at is the effective transition instant.
func Apply(o *domain.WorkOrder, target domain.Stage, p Payload, at time.Time) {
	switch target {
	case domain.StageTeardownEvaluation:
		o.EvaluationStartDate = p.EvaluationStartDate
		o.EvaluationEstimatedEndDate = p.EvaluationEstimatedEndDate
		o.EvaluationMechanics = p.EvaluationMechanics

	case domain.StageSimulation:
		// Entering simulation closes the evaluation.
		o.EvaluationEndDate = timePtr(at)
		if p.IsViableForRepair != nil {
			o.IsViableForRepair = p.IsViableForRepair
		}
		o.EvaluationReports = append(o.EvaluationReports, p.EvaluationReports...)

	case domain.StageQuotation:
		o.SupplierQuotationDate = p.SupplierQuotationDate
		o.SupplierQuotes = append(o.SupplierQuotes, p.SupplierQuotes...)

	case domain.StageClientQuotation:
		o.ClientQuotationDate = timePtr(at)
		o.ClientQuotes = append(o.ClientQuotes, p.ClientQuotes...)

	case domain.StageWaitingForPart:
		o.ClientQuotationApprovalDate = p.ClientQuotationApprovalDate
		if p.EstimatedDeliveryDate != nil {
			o.EstimatedDeliveryDate = p.EstimatedDeliveryDate
		}
		if p.SparePartsEstimatedArrivalDate != nil {
			o.SparePartsEstimatedArrivalDate = p.SparePartsEstimatedArrivalDate
		}

	case domain.StagePartArrived:
		o.SparePartsArrivalDate = p.SparePartsArrivalDate
		o.PartsArrivalComplete = true

	case domain.StageAssembly:
		o.IsStockUsage = p.IsStockUsage
		o.AssemblyStartDate = p.AssemblyStartDate
		o.AssemblyEstimatedEndDate = p.AssemblyEstimatedEndDate
		o.AssemblyMechanics = p.AssemblyMechanics
		o.PurchaseOrderFiles = append(o.PurchaseOrderFiles, p.PurchaseOrderFiles...)

	case domain.StageReadyForDelivery:
		// Entering ready-for-delivery closes the assembly.
		o.AssemblyEndDate = timePtr(at)

	case domain.StageDelivered:
		if p.DeliveryDate != nil {
			o.DeliveryDate = p.DeliveryDate
		} else {
			o.DeliveryDate = timePtr(at)
		}
	}
	o.Status = target
	o.Progress = Progress(target)
}

func timePtr(t time.Time) *time.Time { return &t }
