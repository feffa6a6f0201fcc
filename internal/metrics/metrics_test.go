package metrics_test

import (
	"math"
	"testing"
	"time"

	"github.com/facumancuso/minoil/internal/domain"
	"github.com/facumancuso/minoil/internal/metrics"
)

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }

func phase(r metrics.Report, p metrics.Phase) metrics.PhaseAverage {
	for _, pa := range r.Phases {
		if pa.Phase == p {
			return pa
		}
	}
	return metrics.PhaseAverage{}
}

func TestAggregateEmpty(t *testing.T) {
	r := metrics.Aggregate(nil, ts(2025, time.June, 1))
	if len(r.Phases) != 5 {
		t.Fatalf("phases = %d, want all 5 reported", len(r.Phases))
	}
	for _, pa := range r.Phases {
		if pa.Count != 0 || pa.AvgDays != 0 {
			t.Fatalf("empty input produced %+v", pa)
		}
	}
	if r.OnTimeRatio != 0 || r.WarrantyRatio != 0 {
		t.Fatalf("ratios must be zero, not NaN: %+v", r)
	}
	if math.IsNaN(r.MeanDeviationDays) {
		t.Fatalf("mean deviation is NaN")
	}
}

func TestAggregatePhaseAverages(t *testing.T) {
	// Jan 6 2025 is a Monday.
	o := domain.WorkOrder{
		CreatedAt:           ts(2025, time.January, 6),
		EvaluationStartDate: timePtr(ts(2025, time.January, 8)),
		EvaluationEndDate:   timePtr(ts(2025, time.January, 10)),
		AssemblyStartDate:   timePtr(ts(2025, time.January, 13)),
		AssemblyEndDate:     timePtr(ts(2025, time.January, 17)),
		DeliveryDate:        timePtr(ts(2025, time.January, 20)),
	}
	r := metrics.Aggregate([]domain.WorkOrder{o}, ts(2025, time.June, 1))

	if got := phase(r, metrics.PhaseWait); got.Count != 1 || got.AvgDays != 3 {
		t.Fatalf("wait = %+v, want 3 business days (Mon-Wed)", got)
	}
	if got := phase(r, metrics.PhaseTeardown); got.Count != 1 || got.AvgDays != 3 {
		t.Fatalf("teardown = %+v, want 3 business days (Wed-Fri)", got)
	}
	if got := phase(r, metrics.PhaseAssembly); got.Count != 1 || got.AvgDays != 5 {
		t.Fatalf("assembly = %+v, want 5 business days (Mon-Fri)", got)
	}
	// Part-wait has no approval/arrival dates: excluded from that phase only.
	if got := phase(r, metrics.PhasePartWait); got.Count != 0 {
		t.Fatalf("part_wait counted an order missing its dates: %+v", got)
	}
	// Total cycle is calendar days, creation to delivery.
	if got := phase(r, metrics.PhaseTotalCycle); got.Count != 1 || got.AvgDays != 14 {
		t.Fatalf("total_cycle = %+v, want 14 calendar days", got)
	}
}

func TestAggregateCompliance(t *testing.T) {
	early := domain.WorkOrder{
		CreatedAt:             ts(2025, time.February, 1),
		EstimatedDeliveryDate: timePtr(ts(2025, time.February, 20)),
		DeliveryDate:          timePtr(ts(2025, time.February, 18)), // 2 days early
	}
	late := domain.WorkOrder{
		CreatedAt:             ts(2025, time.February, 1),
		EstimatedDeliveryDate: timePtr(ts(2025, time.February, 20)),
		DeliveryDate:          timePtr(ts(2025, time.February, 23)), // 3 days late
	}
	noEstimate := domain.WorkOrder{
		CreatedAt:    ts(2025, time.February, 1),
		DeliveryDate: timePtr(ts(2025, time.February, 25)),
	}
	r := metrics.Aggregate([]domain.WorkOrder{early, late, noEstimate}, ts(2025, time.June, 1))

	if r.ComplianceCount != 2 {
		t.Fatalf("compliance count = %d, want 2 (order without estimate excluded)", r.ComplianceCount)
	}
	if r.OnTimeCount != 1 || r.OnTimeRatio != 0.5 {
		t.Fatalf("on-time = %d ratio %v, want 1 and 0.5", r.OnTimeCount, r.OnTimeRatio)
	}
	if r.MeanDeviationDays != 0.5 {
		t.Fatalf("mean deviation = %v, want +0.5 (-2 and +3 averaged)", r.MeanDeviationDays)
	}
}

func TestAggregateWarrantyScopedToCurrentYear(t *testing.T) {
	now := ts(2025, time.June, 1)
	thisYearWarranty := domain.WorkOrder{
		CreatedAt: ts(2025, time.January, 10),
		OrderType: domain.OrderTypeWarranty,
		Status:    domain.StageDelivered,
	}
	thisYearNormal := domain.WorkOrder{
		CreatedAt: ts(2025, time.March, 1),
		OrderType: domain.OrderTypeNormal,
		Status:    domain.StageReadyForDelivery,
	}
	lastYearWarranty := domain.WorkOrder{
		CreatedAt: ts(2024, time.November, 1),
		OrderType: domain.OrderTypeWarranty,
		Status:    domain.StageDelivered,
	}
	r := metrics.Aggregate([]domain.WorkOrder{thisYearWarranty, thisYearNormal, lastYearWarranty}, now)

	if r.WarrantyClaims != 1 {
		t.Fatalf("warranty claims = %d, want 1 (last year excluded)", r.WarrantyClaims)
	}
	if r.DeliveredCount != 2 {
		t.Fatalf("delivered count = %d, want 2 (ready_for_delivery counts)", r.DeliveredCount)
	}
	if r.WarrantyRatio != 0.5 {
		t.Fatalf("warranty ratio = %v, want 0.5", r.WarrantyRatio)
	}
}
