package billing

import "context"

// =============================================================================
// SERVICES AND INCOMES
// =============================================================================

// Service returns a service to an actor allowed on its periods. The record
// carries the per-period commission amounts.
func (e *Engine) Service(ctx context.Context, actor Actor, id ServiceID) (Service, error) {
	chain, err := loadChain(ctx, e.store, id)
	if err != nil {
		return Service{}, err
	}
	if err := e.access.Authorize(ctx, actor, SectionPeriods, chain.ownership(chain.service.CreatedBy)); err != nil {
		return Service{}, err
	}
	return chain.service, nil
}

type RecordIncomeInput struct {
	ServiceID     ServiceID
	PeriodID      *PeriodID
	LegalEntityID LegalEntityID
	Amount        Money
	ReceivedAt    Date
}

// RecordIncome stores realized income of a service. Incomes bound to a
// legal entity are the input of BulkGenerateTaxExpenses.
func (e *Engine) RecordIncome(ctx context.Context, actor Actor, in RecordIncomeInput) (Income, error) {
	switch {
	case in.ServiceID == "":
		return Income{}, invalid("service_id", "is required")
	case in.ReceivedAt.IsZero():
		return Income{}, invalid("received_at", "is required")
	case in.Amount.IsNegative():
		return Income{}, invalid("amount", "must not be negative")
	}

	var created Income
	err := e.store.WithTx(ctx, func(s Store) error {
		chain, err := loadChain(ctx, s, in.ServiceID)
		if err != nil {
			return err
		}
		if err := e.access.Authorize(ctx, actor, SectionIncomes, chain.ownership(chain.service.CreatedBy)); err != nil {
			return err
		}
		if in.LegalEntityID != "" {
			le, err := s.GetLegalEntity(ctx, in.LegalEntityID)
			if err != nil {
				return storeErr("get legal entity", err)
			}
			if le == nil {
				return notFound("legal entity", in.LegalEntityID)
			}
		}
		created = Income{
			ID:            IncomeID(NewID()),
			ServiceID:     in.ServiceID,
			LegalEntityID: in.LegalEntityID,
			Amount:        in.Amount,
			ReceivedAt:    in.ReceivedAt,
			CreatedBy:     actor.ID,
		}
		if in.PeriodID != nil && *in.PeriodID != "" {
			p, err := s.GetPeriod(ctx, *in.PeriodID)
			if err != nil {
				return storeErr("get period", err)
			}
			if p == nil || p.ServiceID != in.ServiceID {
				return notFound("period", *in.PeriodID)
			}
			created.PeriodID = &p.ID
		}
		return storeErr("save income", s.SaveIncome(ctx, created))
	})
	if err != nil {
		return Income{}, err
	}

	e.log.Info().
		Str("actor_id", string(actor.ID)).
		Str("income_id", string(created.ID)).
		Str("service_id", string(created.ServiceID)).
		Int64("amount", int64(created.Amount)).
		Msg("income recorded")
	return created, nil
}
