package billing

import "sort"

// =============================================================================
// PERIOD ADJUSTER - Manual boundary shift with optional cascade
// =============================================================================

// PlanAdjustment computes the periods rewritten when the target period's end
// moves to newDateTo. It does not touch the store.
//
// Rules:
//   - newDateTo must be after the target's DateFrom.
//   - delta = newDateTo - old DateTo, in days (may be negative).
//   - The target's DateTo always changes.
//   - With cascade and delta != 0, every other period whose DateFrom is
//     strictly after the old DateTo moves by delta on both ends, so each keeps
//     its duration and the gaps between them.
//   - Without cascade later periods stay as they are, even if that leaves a
//     gap or an overlap next to the target.
//
// The result holds the target first, then cascaded periods in ascending
// DateFrom order.
func PlanAdjustment(periods []Period, targetID PeriodID, newDateTo Date, cascade bool) ([]Period, error) {
	var target *Period
	for i := range periods {
		if periods[i].ID == targetID {
			target = &periods[i]
			break
		}
	}
	if target == nil {
		return nil, notFound("period", targetID)
	}
	if !newDateTo.After(target.DateFrom) {
		return nil, invalid("date_to", "must be after period start %s, got %s", target.DateFrom, newDateTo)
	}

	oldDateTo := target.DateTo
	delta := DaysBetween(oldDateTo, newDateTo)

	adjusted := *target
	adjusted.DateTo = newDateTo
	changed := []Period{adjusted}

	if !cascade || delta == 0 {
		return changed, nil
	}

	var following []Period
	for _, p := range periods {
		if p.ID != targetID && p.DateFrom.After(oldDateTo) {
			following = append(following, p)
		}
	}
	sort.SliceStable(following, func(i, j int) bool {
		return following[i].DateFrom.Before(following[j].DateFrom)
	})
	for _, p := range following {
		p.DateFrom = p.DateFrom.AddDays(delta)
		p.DateTo = p.DateTo.AddDays(delta)
		changed = append(changed, p)
	}
	return changed, nil
}
