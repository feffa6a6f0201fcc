package timeline_test

import (
	"testing"
	"time"

	"github.com/facumancuso/minoil/internal/domain"
	"github.com/facumancuso/minoil/internal/timeline"
)

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestReconstructSingleOpenInterval(t *testing.T) {
	created := ts(2025, time.February, 3)
	now := ts(2025, time.February, 7)
	o := domain.WorkOrder{
		CreatedAt: created,
		Status:    domain.StageWaitingForTeardown,
		Notes: []domain.StageLogEntry{
			{Stage: domain.StageWaitingForTeardown, Timestamp: created, User: "system"},
		},
	}
	got := timeline.Reconstruct(o, now)
	if len(got) != 1 {
		t.Fatalf("intervals = %d, want 1", len(got))
	}
	iv := got[0]
	if iv.Stage != domain.StageWaitingForTeardown || !iv.Open {
		t.Fatalf("interval = %+v, want open initial stage", iv)
	}
	if !iv.Start.Equal(created) || !iv.End.Equal(now) {
		t.Fatalf("bounds = %v..%v, want %v..%v", iv.Start, iv.End, created, now)
	}
	if iv.DurationDays != 4 {
		t.Fatalf("duration = %d, want 4", iv.DurationDays)
	}
}

func TestReconstructSortsUnorderedLog(t *testing.T) {
	now := ts(2025, time.March, 1)
	o := domain.WorkOrder{
		CreatedAt: ts(2025, time.February, 1),
		Notes: []domain.StageLogEntry{
			{Stage: domain.StageTeardownEvaluation, Timestamp: ts(2025, time.February, 5)},
			{Stage: domain.StageWaitingForTeardown, Timestamp: ts(2025, time.February, 1)},
			{Stage: domain.StageSimulation, Timestamp: ts(2025, time.February, 10)},
		},
	}
	got := timeline.Reconstruct(o, now)
	if len(got) != 3 {
		t.Fatalf("intervals = %d, want 3", len(got))
	}
	order := []domain.Stage{domain.StageWaitingForTeardown, domain.StageTeardownEvaluation, domain.StageSimulation}
	for i, want := range order {
		if got[i].Stage != want {
			t.Fatalf("interval %d = %s, want %s", i, got[i].Stage, want)
		}
	}
	// Each closed interval ends where the next begins.
	if !got[0].End.Equal(got[1].Start) || !got[1].End.Equal(got[2].Start) {
		t.Fatalf("intervals not contiguous: %+v", got)
	}
}

func TestReconstructCollapsesConsecutiveSameStage(t *testing.T) {
	now := ts(2025, time.March, 1)
	o := domain.WorkOrder{
		CreatedAt: ts(2025, time.February, 1),
		Notes: []domain.StageLogEntry{
			{Stage: domain.StageAssembly, Timestamp: ts(2025, time.February, 1), Note: "started"},
			{Stage: domain.StageAssembly, Timestamp: ts(2025, time.February, 3), Note: "second shift"},
			{Stage: domain.StageReadyForDelivery, Timestamp: ts(2025, time.February, 6)},
		},
	}
	got := timeline.Reconstruct(o, now)
	if len(got) != 2 {
		t.Fatalf("intervals = %d, want 2 (consecutive assembly entries collapse)", len(got))
	}
	if got[0].Stage != domain.StageAssembly || !got[0].Start.Equal(ts(2025, time.February, 1)) {
		t.Fatalf("assembly occurrence = %+v", got[0])
	}
	if got[0].Note != "started" {
		t.Fatalf("note = %q, want the first entry's note", got[0].Note)
	}
}

func TestReconstructRevisitedStageGetsTwoIntervals(t *testing.T) {
	now := ts(2025, time.March, 1)
	o := domain.WorkOrder{
		CreatedAt: ts(2025, time.February, 1),
		Notes: []domain.StageLogEntry{
			{Stage: domain.StageQuotation, Timestamp: ts(2025, time.February, 1)},
			{Stage: domain.StageClientQuotation, Timestamp: ts(2025, time.February, 4)},
			{Stage: domain.StageQuotation, Timestamp: ts(2025, time.February, 8)},
		},
	}
	got := timeline.Reconstruct(o, now)
	if len(got) != 3 {
		t.Fatalf("intervals = %d, want 3 (quotation visited twice)", len(got))
	}
	if got[0].Stage != domain.StageQuotation || got[2].Stage != domain.StageQuotation {
		t.Fatalf("revisit not preserved: %+v", got)
	}
}

func TestReconstructClampsRealEndToNextOccurrence(t *testing.T) {
	// Teardown's recorded end is later than the next stage's start; the
	// interval must not overlap its successor.
	now := ts(2025, time.March, 1)
	o := domain.WorkOrder{
		CreatedAt:         ts(2025, time.February, 1),
		EvaluationEndDate: timePtr(ts(2025, time.February, 20)),
		Notes: []domain.StageLogEntry{
			{Stage: domain.StageTeardownEvaluation, Timestamp: ts(2025, time.February, 1)},
			{Stage: domain.StageSimulation, Timestamp: ts(2025, time.February, 10)},
		},
	}
	got := timeline.Reconstruct(o, now)
	if !got[0].End.Equal(ts(2025, time.February, 10)) {
		t.Fatalf("teardown end = %v, want clamped to simulation start", got[0].End)
	}
}

func TestReconstructTerminalOrderStopsGrowing(t *testing.T) {
	delivery := ts(2025, time.February, 20)
	o := domain.WorkOrder{
		CreatedAt:    ts(2025, time.February, 1),
		Status:       domain.StageDelivered,
		DeliveryDate: timePtr(delivery),
		Notes: []domain.StageLogEntry{
			{Stage: domain.StageReadyForDelivery, Timestamp: ts(2025, time.February, 15)},
			{Stage: domain.StageDelivered, Timestamp: delivery},
		},
	}
	early := timeline.Reconstruct(o, ts(2025, time.March, 1))
	late := timeline.Reconstruct(o, ts(2025, time.June, 1))
	lastEarly := early[len(early)-1]
	lastLate := late[len(late)-1]
	if !lastEarly.End.Equal(lastLate.End) {
		t.Fatalf("terminal interval grew with now: %v vs %v", lastEarly.End, lastLate.End)
	}
	if !lastLate.End.Equal(delivery) {
		t.Fatalf("terminal end = %v, want delivery date", lastLate.End)
	}
}

func TestReconstructFromMilestones(t *testing.T) {
	// No audit log: records created before logging fall back to milestones.
	now := ts(2025, time.March, 1)
	o := domain.WorkOrder{
		CreatedAt:           ts(2025, time.January, 6),
		EvaluationStartDate: timePtr(ts(2025, time.January, 8)),
		EvaluationEndDate:   timePtr(ts(2025, time.January, 10)),
		AssemblyStartDate:   timePtr(ts(2025, time.January, 20)),
		EvaluationMechanics: 2,
	}
	got := timeline.Reconstruct(o, now)
	if len(got) != 3 {
		t.Fatalf("intervals = %d, want 3 (wait, teardown, assembly)", len(got))
	}
	if got[0].Stage != domain.StageWaitingForTeardown || got[1].Stage != domain.StageTeardownEvaluation {
		t.Fatalf("unexpected stages: %+v", got)
	}
	if got[1].Mechanics != 2 {
		t.Fatalf("teardown mechanics = %d, want 2", got[1].Mechanics)
	}
	// Wed-Fri is 3 business days; with 2 mechanics that is 3*2*8 hours.
	if got[1].ManHours != 48 {
		t.Fatalf("teardown man-hours = %d, want 48", got[1].ManHours)
	}
	// Assembly has a start but no end or estimate: open until now.
	if got[2].Stage != domain.StageAssembly || !got[2].Open || !got[2].End.Equal(now) {
		t.Fatalf("assembly interval = %+v, want open ending at now", got[2])
	}
}

func TestReconstructMilestoneEstimateClosesInterval(t *testing.T) {
	now := ts(2025, time.March, 1)
	o := domain.WorkOrder{
		CreatedAt:                  ts(2025, time.January, 6),
		EvaluationStartDate:        timePtr(ts(2025, time.January, 8)),
		EvaluationEstimatedEndDate: timePtr(ts(2025, time.January, 12)),
	}
	got := timeline.Reconstruct(o, now)
	teardown := got[len(got)-1]
	if teardown.Stage != domain.StageTeardownEvaluation {
		t.Fatalf("last interval = %s", teardown.Stage)
	}
	if teardown.Open || !teardown.End.Equal(ts(2025, time.January, 12)) {
		t.Fatalf("estimate should close the interval: %+v", teardown)
	}
}

func TestClip(t *testing.T) {
	intervals := []domain.StageInterval{
		{Stage: domain.StageWaitingForTeardown, Start: ts(2025, time.February, 1), End: ts(2025, time.February, 10)},
		{Stage: domain.StageTeardownEvaluation, Start: ts(2025, time.February, 10), End: ts(2025, time.February, 20)},
		{Stage: domain.StageSimulation, Start: ts(2025, time.February, 20), End: ts(2025, time.February, 25)},
	}
	got := timeline.Clip(intervals, ts(2025, time.February, 12), ts(2025, time.February, 21))
	if len(got) != 2 {
		t.Fatalf("clipped = %d, want 2", len(got))
	}
	if !got[0].Start.Equal(ts(2025, time.February, 12)) || !got[1].End.Equal(ts(2025, time.February, 21)) {
		t.Fatalf("clip bounds wrong: %+v", got)
	}
	// The source slice must be untouched.
	if !intervals[0].Start.Equal(ts(2025, time.February, 1)) {
		t.Fatalf("Clip mutated its input")
	}
}
