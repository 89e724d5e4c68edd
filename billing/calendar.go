package billing

import (
	"context"
	"fmt"
)

// =============================================================================
// PERIOD OPERATIONS - calendar view, confirm/create, update, delete, adjust
// =============================================================================

// Calendar is the reconciled period view of one service.
type Calendar struct {
	Service Service
	Horizon Date
	Rows    []PeriodView

	// Unmatched holds persisted periods with no exact generated match
	// (manually created or adjusted). The match rule stays exact.
	Unmatched []Period
}

// PeriodCalendar generates the expected periods of a service up to its
// horizon and reconciles them with the persisted ones.
func (e *Engine) PeriodCalendar(ctx context.Context, actor Actor, serviceID ServiceID, today Date) (Calendar, error) {
	if today.IsZero() {
		today = e.today()
	}
	chain, err := loadChain(ctx, e.store, serviceID)
	if err != nil {
		return Calendar{}, err
	}
	if err := e.access.Authorize(ctx, actor, SectionPeriods, chain.ownership(chain.service.CreatedBy)); err != nil {
		return Calendar{}, err
	}

	persisted, err := e.store.ListPeriods(ctx, serviceID)
	if err != nil {
		return Calendar{}, storeErr("list periods", err)
	}
	counts, err := e.store.CountInvoicesByPeriod(ctx, serviceID)
	if err != nil {
		return Calendar{}, storeErr("count invoices", err)
	}

	svc := chain.service
	horizon := HorizonFor(svc, today)
	generated := Generate(svc.StartDate, svc.Cadence, horizon)
	rows := Reconcile(generated, persisted, svc.Price)
	annotateInvoices(rows, counts)

	return Calendar{
		Service:   svc,
		Horizon:   horizon,
		Rows:      rows,
		Unmatched: Unmatched(generated, persisted),
	}, nil
}

type CreatePeriodInput struct {
	ServiceID          ServiceID
	DateFrom           Date
	DateTo             Date
	Type               PeriodType // defaults to standard
	ExpectedAmount     *Money
	InvoiceNotRequired bool
}

// CreatePeriod persists a period. The new range may not overlap an existing
// period of the service.
func (e *Engine) CreatePeriod(ctx context.Context, actor Actor, in CreatePeriodInput) (Period, error) {
	if in.ServiceID == "" {
		return Period{}, invalid("service_id", "is required")
	}
	if in.DateFrom.IsZero() || in.DateTo.IsZero() {
		return Period{}, invalid("date_from", "period boundaries are required")
	}
	if in.DateTo.Before(in.DateFrom) {
		return Period{}, invalid("date_to", "must not be before date_from")
	}
	if in.Type == "" {
		in.Type = PeriodStandard
	}
	if !in.Type.Valid() {
		return Period{}, invalid("type", "unknown period type %q", in.Type)
	}
	if in.ExpectedAmount != nil && in.ExpectedAmount.IsNegative() {
		return Period{}, invalid("expected_amount", "must not be negative")
	}

	unlock := e.serviceLocks.Lock(string(in.ServiceID))
	defer unlock()

	var created Period
	err := e.store.WithTx(ctx, func(s Store) error {
		chain, err := loadChain(ctx, s, in.ServiceID)
		if err != nil {
			return err
		}
		if err := e.access.Authorize(ctx, actor, SectionPeriods, chain.ownership(chain.service.CreatedBy)); err != nil {
			return err
		}
		if err := s.LockService(ctx, in.ServiceID); err != nil {
			return storeErr("lock service", err)
		}

		existing, err := s.ListPeriods(ctx, in.ServiceID)
		if err != nil {
			return storeErr("list periods", err)
		}
		for _, p := range existing {
			if p.Intersects(in.DateFrom, in.DateTo) {
				return &ConflictError{
					Kind: "period",
					Key:  fmt.Sprintf("%s overlaps %s", DateRange{From: in.DateFrom, To: in.DateTo}, DateRange{From: p.DateFrom, To: p.DateTo}),
				}
			}
		}

		now := e.now().UTC()
		created = Period{
			ID:                 PeriodID(NewID()),
			ServiceID:          in.ServiceID,
			DateFrom:           in.DateFrom,
			DateTo:             in.DateTo,
			Type:               in.Type,
			ExpectedAmount:     in.ExpectedAmount,
			InvoiceNotRequired: in.InvoiceNotRequired,
			CreatedBy:          actor.ID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return storeErr("save period", s.SavePeriod(ctx, created))
	})
	if err != nil {
		return Period{}, err
	}

	e.log.Info().
		Str("actor_id", string(actor.ID)).
		Str("service_id", string(in.ServiceID)).
		Str("period_id", string(created.ID)).
		Str("range", DateRange{From: created.DateFrom, To: created.DateTo}.String()).
		Msg("period created")
	return created, nil
}

// ConfirmPeriod persists the generated period that starts on dateFrom.
func (e *Engine) ConfirmPeriod(ctx context.Context, actor Actor, serviceID ServiceID, dateFrom Date, today Date) (Period, error) {
	if today.IsZero() {
		today = e.today()
	}
	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return Period{}, storeErr("get service", err)
	}
	if svc == nil {
		return Period{}, notFound("service", serviceID)
	}
	for _, g := range Generate(svc.StartDate, svc.Cadence, HorizonFor(*svc, today)) {
		if g.DateFrom.Equal(dateFrom) {
			return e.CreatePeriod(ctx, actor, CreatePeriodInput{
				ServiceID: serviceID,
				DateFrom:  g.DateFrom,
				DateTo:    g.DateTo,
				Type:      PeriodStandard,
			})
		}
	}
	return Period{}, invalid("date_from", "no generated period starts on %s", dateFrom)
}

type UpdatePeriodInput struct {
	Type                *PeriodType
	ExpectedAmount      *Money
	ClearExpectedAmount bool
	InvoiceNotRequired  *bool
}

// UpdatePeriod changes period attributes other than its boundaries. Use
// AdjustPeriod to move a boundary.
func (e *Engine) UpdatePeriod(ctx context.Context, actor Actor, periodID PeriodID, in UpdatePeriodInput) (Period, error) {
	if in.Type != nil && !in.Type.Valid() {
		return Period{}, invalid("type", "unknown period type %q", *in.Type)
	}
	if in.ExpectedAmount != nil && in.ExpectedAmount.IsNegative() {
		return Period{}, invalid("expected_amount", "must not be negative")
	}

	unlock, err := e.lockPeriodService(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	defer unlock()

	var updated Period
	err = e.store.WithTx(ctx, func(s Store) error {
		p, err := e.reloadPeriod(ctx, s, periodID)
		if err != nil {
			return err
		}
		chain, err := loadChain(ctx, s, p.ServiceID)
		if err != nil {
			return err
		}
		if err := e.access.Authorize(ctx, actor, SectionPeriods, chain.ownership(p.CreatedBy)); err != nil {
			return err
		}
		if in.Type != nil {
			p.Type = *in.Type
		}
		switch {
		case in.ClearExpectedAmount:
			p.ExpectedAmount = nil
		case in.ExpectedAmount != nil:
			amount := *in.ExpectedAmount
			p.ExpectedAmount = &amount
		}
		if in.InvoiceNotRequired != nil {
			p.InvoiceNotRequired = *in.InvoiceNotRequired
		}
		p.UpdatedAt = e.now().UTC()
		updated = p
		return storeErr("save period", s.SavePeriod(ctx, p))
	})
	return updated, err
}

// DeletePeriod removes a persisted period. A period on an invoice line is
// not deleted.
func (e *Engine) DeletePeriod(ctx context.Context, actor Actor, periodID PeriodID) error {
	unlock, err := e.lockPeriodService(ctx, periodID)
	if err != nil {
		return err
	}
	defer unlock()

	err = e.store.WithTx(ctx, func(s Store) error {
		p, err := e.reloadPeriod(ctx, s, periodID)
		if err != nil {
			return err
		}
		chain, err := loadChain(ctx, s, p.ServiceID)
		if err != nil {
			return err
		}
		if err := e.access.Authorize(ctx, actor, SectionPeriods, chain.ownership(p.CreatedBy)); err != nil {
			return err
		}
		counts, err := s.CountInvoicesByPeriod(ctx, p.ServiceID)
		if err != nil {
			return storeErr("count invoices", err)
		}
		if n := counts[periodID]; n > 0 {
			return &ConflictError{Kind: "invoice line", Key: fmt.Sprintf("period %s is on %d invoice(s)", periodID, n)}
		}
		return storeErr("delete period", s.DeletePeriod(ctx, periodID))
	})
	if err == nil {
		e.log.Info().Str("actor_id", string(actor.ID)).Str("period_id", string(periodID)).Msg("period deleted")
	}
	return err
}

// lockPeriodService takes the in-process lock of the service owning the
// period. The caller must still take the store lock via reloadPeriod.
func (e *Engine) lockPeriodService(ctx context.Context, periodID PeriodID) (func(), error) {
	p, err := loadPeriod(ctx, e.store, periodID)
	if err != nil {
		return nil, err
	}
	return e.serviceLocks.Lock(string(p.ServiceID)), nil
}

// reloadPeriod locks the owning service row and reads the period again, so
// boundaries moved by a concurrent adjustment are not written back stale.
func (e *Engine) reloadPeriod(ctx context.Context, s Store, periodID PeriodID) (Period, error) {
	p, err := loadPeriod(ctx, s, periodID)
	if err != nil {
		return Period{}, err
	}
	if err := s.LockService(ctx, p.ServiceID); err != nil {
		return Period{}, storeErr("lock service", err)
	}
	return loadPeriod(ctx, s, periodID)
}

// AdjustPeriod moves the end of a persisted period and, with cascade, shifts
// every later period of the service by the same number of days. See
// PlanAdjustment for the rules. Adjustments of one service are serialized.
func (e *Engine) AdjustPeriod(ctx context.Context, actor Actor, serviceID ServiceID, periodID PeriodID, newDateTo Date, cascade bool) ([]Period, error) {
	if newDateTo.IsZero() {
		return nil, invalid("date_to", "is required")
	}

	unlock := e.serviceLocks.Lock(string(serviceID))
	defer unlock()

	var changed []Period
	err := e.store.WithTx(ctx, func(s Store) error {
		if err := s.LockService(ctx, serviceID); err != nil {
			return storeErr("lock service", err)
		}
		chain, err := loadChain(ctx, s, serviceID)
		if err != nil {
			return err
		}
		target, err := loadPeriod(ctx, s, periodID)
		if err != nil {
			return err
		}
		if target.ServiceID != serviceID {
			return notFound("period", periodID)
		}
		if err := e.access.Authorize(ctx, actor, SectionPeriods, chain.ownership(target.CreatedBy)); err != nil {
			return err
		}

		periods, err := s.ListPeriods(ctx, serviceID)
		if err != nil {
			return storeErr("list periods", err)
		}
		plan, err := PlanAdjustment(periods, periodID, newDateTo, cascade)
		if err != nil {
			return err
		}
		now := e.now().UTC()
		for i := range plan {
			plan[i].UpdatedAt = now
			if err := s.SavePeriod(ctx, plan[i]); err != nil {
				return storeErr("save period", err)
			}
		}
		changed = plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("actor_id", string(actor.ID)).
		Str("service_id", string(serviceID)).
		Str("period_id", string(periodID)).
		Str("date_to", newDateTo.String()).
		Bool("cascade", cascade).
		Int("changed", len(changed)).
		Msg("period adjusted")
	return changed, nil
}

// CommissionForRange returns expected commission for the periods of a
// service intersecting [from, to].
func (e *Engine) CommissionForRange(ctx context.Context, actor Actor, serviceID ServiceID, from, to Date) (Commission, error) {
	if !(DateRange{From: from, To: to}).Valid() {
		return Commission{}, invalid("to", "range must be non-empty")
	}
	chain, err := loadChain(ctx, e.store, serviceID)
	if err != nil {
		return Commission{}, err
	}
	if err := e.access.Authorize(ctx, actor, SectionCommissions, chain.ownership(chain.service.CreatedBy)); err != nil {
		return Commission{}, err
	}
	periods, err := e.store.ListPeriods(ctx, serviceID)
	if err != nil {
		return Commission{}, storeErr("list periods", err)
	}
	return ExpectedCommission(chain.service, CountPeriodsInRange(periods, from, to)), nil
}
