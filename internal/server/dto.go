package server

import (
	"time"

	"github.com/facumancuso/minoil/internal/domain"
	"github.com/facumancuso/minoil/internal/metrics"
	"github.com/facumancuso/minoil/internal/workflow"
)

// Request payloads

type CreateOrderRequest struct {
	OrderNumber  string             `json:"order_number"`
	Client       string             `json:"client"`
	ClientID     *string            `json:"client_id,omitempty"`
	Component    *string            `json:"component,omitempty"`
	Brand        *string            `json:"brand,omitempty"`
	SerialNumber *string            `json:"serial_number,omitempty"`
	Equipment    *string            `json:"equipment,omitempty"`
	OrderType    *string            `json:"order_type,omitempty" enum:"normal,warranty"`
	SpareParts   []domain.SparePart `json:"spare_parts,omitempty"`
	Solped       *string            `json:"solped,omitempty"`

	CreatedAt                    *time.Time `json:"created_at,omitempty" format:"date-time"`
	EstimatedEvaluationStartDate *time.Time `json:"estimated_evaluation_start_date,omitempty" format:"date-time"`
}

type TransitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
	workflow.Payload
}

type AddNoteRequest struct {
	Note string `json:"note"`
}

// Response payloads

type OrderResponse struct {
	domain.WorkOrder
}

type TimelineResponse struct {
	OrderID   string                 `json:"order_id"`
	Intervals []domain.StageInterval `json:"intervals"`
}

type MetricsResponse struct {
	metrics.Report
	GeneratedAt time.Time `json:"generated_at" format:"date-time"`
}

type fieldErrorBody struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func orderResponse(o domain.WorkOrder) OrderResponse {
	return OrderResponse{WorkOrder: o}
}

func mapOrders(in []domain.WorkOrder) []OrderResponse {
	out := make([]OrderResponse, 0, len(in))
	for _, o := range in {
		out = append(out, orderResponse(o))
	}
	return out
}
