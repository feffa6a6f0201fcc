package domain

import "time"

// Stage is the phase of the repair pipeline a work order is in.
type Stage string

const (
	StageWaitingForTeardown Stage = "waiting_for_teardown"
	StageTeardownEvaluation Stage = "teardown_evaluation"
	StageSimulation         Stage = "simulation"
	StageQuotation          Stage = "quotation"
	StageClientQuotation    Stage = "client_quotation"
	StageWaitingForPart     Stage = "waiting_for_part"
	StagePartArrived        Stage = "part_arrived"
	StageRejectedByClient   Stage = "rejected_by_client"
	StageAssembly           Stage = "assembly"
	StageReadyForDelivery   Stage = "ready_for_delivery"
	StageDelivered          Stage = "delivered"
	// StageWaitingForPickup exists only on records created before delivery
	// tracking was introduced. New transitions must never produce it.
	StageWaitingForPickup Stage = "waiting_for_pickup"
)

// StageInitial is the stage every new work order starts in.
const StageInitial = StageWaitingForTeardown

// SystemUser is the audit actor for automated entries.
const SystemUser = "system"

// Stages returns the pipeline stages in nominal order, side exits last.
func Stages() []Stage {
	return []Stage{
		StageWaitingForTeardown,
		StageTeardownEvaluation,
		StageSimulation,
		StageQuotation,
		StageClientQuotation,
		StageWaitingForPart,
		StagePartArrived,
		StageAssembly,
		StageReadyForDelivery,
		StageDelivered,
		StageRejectedByClient,
		StageWaitingForPickup,
	}
}

// Valid reports whether s is a known stage, legacy included.
func (s Stage) Valid() bool {
	for _, known := range Stages() {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the pipeline ends at s.
func (s Stage) Terminal() bool {
	return s == StageDelivered || s == StageRejectedByClient || s == StageWaitingForPickup
}

// OrderType distinguishes billable repairs from warranty claims.
type OrderType string

const (
	OrderTypeNormal   OrderType = "normal"
	OrderTypeWarranty OrderType = "warranty"
)

// Attachment describes an uploaded file; content storage lives elsewhere.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type SparePart struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Status      string `json:"status" enum:"pending,ordered,received"`
}

// StageLogEntry is one immutable audit record. Entries are appended on every
// stage transition and never edited or removed; chronological order of
// Timestamp defines the stage sequence, ties broken by insertion order.
type StageLogEntry struct {
	Stage     Stage     `json:"status"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp" format:"date-time"`
	User      string    `json:"user"`
}

// WorkOrder is the aggregate root: one component-repair job tracked through
// the pipeline. Status caches the stage of the latest log entry; Revision
// guards against concurrent updates.
type WorkOrder struct {
	ID           string    `json:"id"`
	OrderNumber  string    `json:"order_number"`
	Client       string    `json:"client"`
	ClientID     string    `json:"client_id,omitempty"`
	Component    string    `json:"component,omitempty"`
	Brand        string    `json:"brand,omitempty"`
	SerialNumber string    `json:"serial_number,omitempty"`
	Equipment    string    `json:"equipment,omitempty"`
	OrderType    OrderType `json:"order_type"`
	Status       Stage     `json:"status"`
	Progress     int       `json:"progress"`
	Revision     int64     `json:"revision"`
	CreatedAt    time.Time `json:"created_at" format:"date-time"`
	UpdatedAt    time.Time `json:"updated_at" format:"date-time"`

	Notes []StageLogEntry `json:"notes,omitempty"`

	SpareParts         []SparePart  `json:"spare_parts,omitempty"`
	EvaluationReports  []Attachment `json:"evaluation_reports,omitempty"`
	SupplierQuotes     []Attachment `json:"supplier_quotes,omitempty"`
	ClientQuotes       []Attachment `json:"client_quotes,omitempty"`
	PurchaseOrderFiles []Attachment `json:"purchase_order_files,omitempty"`

	Solped        string `json:"solped,omitempty"`
	PurchaseOrder string `json:"purchase_order,omitempty"`

	EstimatedEvaluationStartDate   *time.Time `json:"estimated_evaluation_start_date,omitempty" format:"date-time"`
	EvaluationStartDate            *time.Time `json:"evaluation_start_date,omitempty" format:"date-time"`
	EvaluationEndDate              *time.Time `json:"evaluation_end_date,omitempty" format:"date-time"`
	EvaluationEstimatedEndDate     *time.Time `json:"evaluation_estimated_end_date,omitempty" format:"date-time"`
	SupplierQuotationDate          *time.Time `json:"supplier_quotation_date,omitempty" format:"date-time"`
	ClientQuotationDate            *time.Time `json:"client_quotation_date,omitempty" format:"date-time"`
	ClientQuotationApprovalDate    *time.Time `json:"client_quotation_approval_date,omitempty" format:"date-time"`
	EstimatedDeliveryDate          *time.Time `json:"estimated_delivery_date,omitempty" format:"date-time"`
	SparePartsEstimatedArrivalDate *time.Time `json:"spare_parts_estimated_arrival_date,omitempty" format:"date-time"`
	SparePartsArrivalDate          *time.Time `json:"spare_parts_arrival_date,omitempty" format:"date-time"`
	AssemblyStartDate              *time.Time `json:"assembly_start_date,omitempty" format:"date-time"`
	AssemblyEstimatedEndDate       *time.Time `json:"assembly_estimated_end_date,omitempty" format:"date-time"`
	AssemblyEndDate                *time.Time `json:"assembly_end_date,omitempty" format:"date-time"`
	DeliveryDate                   *time.Time `json:"delivery_date,omitempty" format:"date-time"`

	EvaluationMechanics int `json:"evaluation_mechanics,omitempty"`
	AssemblyMechanics   int `json:"assembly_mechanics,omitempty"`

	IsViableForRepair    *bool `json:"is_viable_for_repair,omitempty"`
	IsStockUsage         *bool `json:"is_stock_usage,omitempty"`
	PartsArrivalComplete bool  `json:"parts_arrival_complete,omitempty"`
}

// StageInterval is a derived, non-persisted time range spent in one stage.
// Intervals are produced in non-decreasing Start order and End is never
// before Start.
type StageInterval struct {
	Stage        Stage      `json:"stage"`
	Start        time.Time  `json:"start" format:"date-time"`
	End          time.Time  `json:"end" format:"date-time"`
	Open         bool       `json:"open,omitempty"`
	DurationDays int        `json:"duration_days"`
	Mechanics    int        `json:"mechanics,omitempty"`
	ManHours     int        `json:"man_hours,omitempty"`
	EstimatedEnd *time.Time `json:"estimated_end,omitempty" format:"date-time"`
	ActualEnd    *time.Time `json:"actual_end,omitempty" format:"date-time"`
	Note         string     `json:"note,omitempty"`
}
