// Package metrics aggregates cycle-time, planning-compliance and warranty
// figures across many work orders. Aggregation is a pure read-path function:
// orders lacking the dates for one phase are excluded from that phase only.
package metrics

import (
	"math"
	"time"

	"github.com/facumancuso/minoil/internal/busday"
	"github.com/facumancuso/minoil/internal/domain"
)

// Phase identifies one of the five canonical cycle phases.
type Phase string

const (
	PhaseWait       Phase = "wait"
	PhaseTeardown   Phase = "teardown"
	PhasePartWait   Phase = "part_wait"
	PhaseAssembly   Phase = "assembly"
	PhaseTotalCycle Phase = "total_cycle"
)

// Phases returns the canonical phases in report order.
func Phases() []Phase {
	return []Phase{PhaseWait, PhaseTeardown, PhasePartWait, PhaseAssembly, PhaseTotalCycle}
}

// PhaseAverage is the mean duration of one phase and how many orders
// contributed to it.
type PhaseAverage struct {
	Phase   Phase   `json:"phase"`
	AvgDays float64 `json:"avg_days"`
	Count   int     `json:"count"`
}

// Report is the aggregate over a collection of work orders.
type Report struct {
	Phases []PhaseAverage `json:"phases"`

	// Planning compliance: delivered on or before the estimated date.
	OnTimeCount       int     `json:"on_time_count"`
	ComplianceCount   int     `json:"compliance_count"`
	OnTimeRatio       float64 `json:"on_time_ratio"`
	MeanDeviationDays float64 `json:"mean_deviation_days"`

	// Warranty claims versus delivered components, current calendar year.
	WarrantyClaims int     `json:"warranty_claims"`
	DeliveredCount int     `json:"delivered_count"`
	WarrantyRatio  float64 `json:"warranty_ratio"`
}

// Aggregate computes the report for a collection of work orders. now anchors
// the warranty year. An empty collection yields zero counts, not an error.
func Aggregate(orders []domain.WorkOrder, now time.Time) Report {
	type acc struct {
		total float64
		count int
	}
	phases := map[Phase]*acc{}
	for _, p := range Phases() {
		phases[p] = &acc{}
	}
	add := func(p Phase, days float64) {
		phases[p].total += days
		phases[p].count++
	}

	var (
		onTime, withCompliance int
		deviationSum           float64
		warrantyClaims         int
		delivered              int
	)
	year := now.Year()

	for _, o := range orders {
		if o.EvaluationStartDate != nil {
			add(PhaseWait, float64(busday.Inclusive(o.CreatedAt, *o.EvaluationStartDate)))
		}
		if o.EvaluationStartDate != nil && o.EvaluationEndDate != nil {
			add(PhaseTeardown, float64(busday.Inclusive(*o.EvaluationStartDate, *o.EvaluationEndDate)))
		}
		if o.ClientQuotationApprovalDate != nil && o.SparePartsArrivalDate != nil {
			add(PhasePartWait, float64(busday.Inclusive(*o.ClientQuotationApprovalDate, *o.SparePartsArrivalDate)))
		}
		if o.AssemblyStartDate != nil && o.AssemblyEndDate != nil {
			add(PhaseAssembly, float64(busday.Inclusive(*o.AssemblyStartDate, *o.AssemblyEndDate)))
		}
		if end := cycleEnd(o); end != nil {
			add(PhaseTotalCycle, calendarDays(o.CreatedAt, *end))
		}

		if o.EstimatedDeliveryDate != nil && o.DeliveryDate != nil {
			withCompliance++
			delta := o.DeliveryDate.Sub(*o.EstimatedDeliveryDate).Hours() / 24
			deviationSum += delta
			if delta <= 0 {
				onTime++
			}
		}

		if o.CreatedAt.Year() == year {
			if o.OrderType == domain.OrderTypeWarranty {
				warrantyClaims++
			}
			if o.Status == domain.StageReadyForDelivery || o.Status == domain.StageDelivered {
				delivered++
			}
		}
	}

	r := Report{
		OnTimeCount:     onTime,
		ComplianceCount: withCompliance,
		WarrantyClaims:  warrantyClaims,
		DeliveredCount:  delivered,
	}
	for _, p := range Phases() {
		a := phases[p]
		pa := PhaseAverage{Phase: p, Count: a.count}
		if a.count > 0 {
			pa.AvgDays = a.total / float64(a.count)
		}
		r.Phases = append(r.Phases, pa)
	}
	if withCompliance > 0 {
		r.OnTimeRatio = float64(onTime) / float64(withCompliance)
		r.MeanDeviationDays = deviationSum / float64(withCompliance)
	}
	if delivered > 0 {
		r.WarrantyRatio = float64(warrantyClaims) / float64(delivered)
	}
	return r
}

// cycleEnd is the instant the full cycle closed: delivery, or assembly end
// when the order never recorded a delivery date.
func cycleEnd(o domain.WorkOrder) *time.Time {
	if o.DeliveryDate != nil {
		return o.DeliveryDate
	}
	return o.AssemblyEndDate
}

// calendarDays counts whole calendar days between two instants, never
// negative.
func calendarDays(start, end time.Time) float64 {
	d := math.Ceil(end.Sub(start).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
