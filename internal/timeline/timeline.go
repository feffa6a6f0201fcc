// Package timeline reconstructs the sequence of stage intervals a work order
// went through, for Gantt rendering and cycle-time analysis. Two independent
// strategies exist: the audit log is the primary source; milestone dates are
// the fallback for records that predate audit logging.
package timeline

import (
	"sort"
	"time"

	"github.com/facumancuso/minoil/internal/busday"
	"github.com/facumancuso/minoil/internal/domain"
)

// Reconstruct returns the ordered stage intervals for an order. now closes
// still-open stages. The result is a pure function of the inputs; it reads
// no state and is safe to call repeatedly.
func Reconstruct(o domain.WorkOrder, now time.Time) []domain.StageInterval {
	if len(o.Notes) > 0 {
		return fromLog(o, now)
	}
	return fromMilestones(o, now)
}

// occurrence is one visit to a stage: consecutive log entries with the same
// stage collapse into a single occurrence keyed by the first timestamp.
type occurrence struct {
	stage domain.Stage
	start time.Time
	note  string
}

func fromLog(o domain.WorkOrder, now time.Time) []domain.StageInterval {
	notes := make([]domain.StageLogEntry, len(o.Notes))
	copy(notes, o.Notes)
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Timestamp.Before(notes[j].Timestamp)
	})

	var occ []occurrence
	for _, n := range notes {
		if len(occ) > 0 && occ[len(occ)-1].stage == n.Stage {
			continue
		}
		occ = append(occ, occurrence{stage: n.Stage, start: n.Timestamp, note: n.Note})
	}

	intervals := make([]domain.StageInterval, 0, len(occ))
	for i, cur := range occ {
		last := i == len(occ)-1
		var end time.Time
		open := false
		switch {
		case !last:
			end = occ[i+1].start
		case cur.stage.Terminal():
			// A closed-out order should not keep growing: end at the
			// latest real milestone, falling back to now only when the
			// record carries no real date at all.
			if latest := latestRealDate(o); latest != nil {
				end = *latest
			} else {
				end = now
				open = true
			}
		default:
			end = now
			open = true
		}

		// Teardown and assembly record their real end independently; that
		// date is authoritative for duration but never extends past the
		// next occurrence's start.
		if realEnd := realEndFor(o, cur.stage); realEnd != nil && !last {
			end = minTime(end, *realEnd)
		}
		if end.Before(cur.start) {
			end = cur.start
		}

		iv := domain.StageInterval{
			Stage:        cur.stage,
			Start:        cur.start,
			End:          end,
			Open:         open,
			DurationDays: calendarDays(cur.start, end),
			Note:         cur.note,
		}
		decorate(&iv, o)
		intervals = append(intervals, iv)
	}
	return intervals
}

// fromMilestones rebuilds intervals from the fixed milestone fields in
// pipeline order, skipping stages with no start date. It exists for orders
// created before audit logging and must remain available indefinitely.
func fromMilestones(o domain.WorkOrder, now time.Time) []domain.StageInterval {
	type row struct {
		stage domain.Stage
		start *time.Time
		ends  []*time.Time // first non-nil wins; nil list means still open
	}
	createdAt := o.CreatedAt
	rows := []row{
		{domain.StageWaitingForTeardown, &createdAt, []*time.Time{o.EvaluationStartDate}},
		{domain.StageTeardownEvaluation, o.EvaluationStartDate, []*time.Time{o.EvaluationEndDate, o.EvaluationEstimatedEndDate}},
		{domain.StageWaitingForPart, o.ClientQuotationApprovalDate, []*time.Time{o.SparePartsArrivalDate, o.SparePartsEstimatedArrivalDate}},
		{domain.StagePartArrived, o.SparePartsArrivalDate, []*time.Time{o.AssemblyStartDate}},
		{domain.StageAssembly, o.AssemblyStartDate, []*time.Time{o.AssemblyEndDate, o.AssemblyEstimatedEndDate}},
		{domain.StageDelivered, o.DeliveryDate, []*time.Time{o.DeliveryDate}},
	}

	var intervals []domain.StageInterval
	for _, r := range rows {
		if r.start == nil {
			continue
		}
		end := now
		open := true
		for _, e := range r.ends {
			if e != nil {
				end = *e
				open = false
				break
			}
		}
		if end.Before(*r.start) {
			end = *r.start
		}
		iv := domain.StageInterval{
			Stage:        r.stage,
			Start:        *r.start,
			End:          end,
			Open:         open,
			DurationDays: calendarDays(*r.start, end),
		}
		decorate(&iv, o)
		intervals = append(intervals, iv)
	}
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})
	return intervals
}

// Clip restricts intervals to a display window without mutating the
// reconstructed model: it returns adjusted copies and drops intervals
// entirely outside [from, to].
func Clip(intervals []domain.StageInterval, from, to time.Time) []domain.StageInterval {
	var out []domain.StageInterval
	for _, iv := range intervals {
		if iv.End.Before(from) || iv.Start.After(to) {
			continue
		}
		c := iv
		if c.Start.Before(from) {
			c.Start = from
		}
		if c.End.After(to) {
			c.End = to
		}
		out = append(out, c)
	}
	return out
}

// decorate fills stage-specific metadata for the stages that carry it.
func decorate(iv *domain.StageInterval, o domain.WorkOrder) {
	switch iv.Stage {
	case domain.StageTeardownEvaluation:
		iv.Mechanics = o.EvaluationMechanics
		iv.EstimatedEnd = o.EvaluationEstimatedEndDate
		iv.ActualEnd = o.EvaluationEndDate
	case domain.StageAssembly:
		iv.Mechanics = o.AssemblyMechanics
		iv.EstimatedEnd = o.AssemblyEstimatedEndDate
		iv.ActualEnd = o.AssemblyEndDate
	}
	iv.ManHours = busday.ManHours(busday.Inclusive(iv.Start, iv.End), iv.Mechanics)
}

func realEndFor(o domain.WorkOrder, s domain.Stage) *time.Time {
	switch s {
	case domain.StageTeardownEvaluation:
		return o.EvaluationEndDate
	case domain.StageAssembly:
		return o.AssemblyEndDate
	}
	return nil
}

// latestRealDate returns the most recent real (not estimated) milestone.
func latestRealDate(o domain.WorkOrder) *time.Time {
	var latest *time.Time
	for _, d := range []*time.Time{
		o.EvaluationStartDate,
		o.EvaluationEndDate,
		o.SupplierQuotationDate,
		o.ClientQuotationDate,
		o.ClientQuotationApprovalDate,
		o.SparePartsArrivalDate,
		o.AssemblyStartDate,
		o.AssemblyEndDate,
		o.DeliveryDate,
	} {
		if d == nil {
			continue
		}
		if latest == nil || d.After(*latest) {
			latest = d
		}
	}
	return latest
}

// calendarDays reports the interval length in whole calendar days, at least 1.
func calendarDays(start, end time.Time) int {
	days := int(end.Sub(start).Hours() / 24)
	if end.Sub(start) > time.Duration(days)*24*time.Hour {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
