package billing

import "time"

// =============================================================================
// PERIOD GENERATOR - Expected calendar of a service
// =============================================================================

// GeneratedPeriod is a period boundary the service is expected to produce.
type GeneratedPeriod struct {
	DateFrom        Date
	DateTo          Date
	IsInvoicePeriod bool
}

// maxGeneratedPeriods bounds the calendar for far-future end dates.
const maxGeneratedPeriods = 1200

// Generate returns the expected periods from start up to horizon.
//
// A period ends the day before the same day of month in the following month
// (2024-12-04 -> 2025-01-03). Period i ends at start+i months minus a day,
// so short months clamp the boundary without drifting later periods, and the
// next period always starts the day after the previous end.
//
// Cadence rules:
//   - OneTime:   exactly one period, regardless of horizon
//   - Monthly:   monthly periods while DateFrom <= horizon, all invoiceable
//   - Quarterly: same as Monthly (persisted data depends on it)
//   - Yearly:    monthly periods, invoiceable only when DateTo is in December
func Generate(start Date, cadence Cadence, horizon Date) []GeneratedPeriod {
	if cadence == CadenceOneTime {
		return []GeneratedPeriod{{
			DateFrom:        start,
			DateTo:          start.AddMonths(1).AddDays(-1),
			IsInvoicePeriod: true,
		}}
	}

	var periods []GeneratedPeriod
	from := start
	for i := 1; !from.After(horizon) && i <= maxGeneratedPeriods; i++ {
		to := start.AddMonths(i).AddDays(-1)
		periods = append(periods, GeneratedPeriod{
			DateFrom:        from,
			DateTo:          to,
			IsInvoicePeriod: isInvoicePeriod(cadence, to),
		})
		from = to.AddDays(1)
	}
	return periods
}

func isInvoicePeriod(cadence Cadence, dateTo Date) bool {
	if cadence == CadenceYearly {
		return dateTo.Month() == time.December
	}
	return true
}

// HorizonFor returns the generation horizon of a service: its end date when
// closed, otherwise one month past today.
func HorizonFor(s Service, today Date) Date {
	if s.EndDate != nil {
		return *s.EndDate
	}
	return today.AddMonths(1)
}
