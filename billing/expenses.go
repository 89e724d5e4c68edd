package billing

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// BULK TAX EXPENSE GENERATION
// =============================================================================

type incomeOutcome struct {
	created []Expense
	skipped *SkipReason
	err     error
}

// BulkGenerateTaxExpenses creates the tax (and optionally VAT) expense of
// every selected income that has not been taxed yet. Each income commits on
// its own, so a failure on one never rolls back another. Running it twice
// over the same incomes creates nothing the second time.
func (e *Engine) BulkGenerateTaxExpenses(ctx context.Context, actor Actor, in BulkTaxInput) (BulkTaxResult, error) {
	if actor.ID == "" {
		return BulkTaxResult{}, invalid("actor", "actor id is required")
	}
	if in.LegalEntityID == "" {
		return BulkTaxResult{}, invalid("legal_entity_id", "is required")
	}
	if in.CostItemID == "" {
		return BulkTaxResult{}, invalid("cost_item_id", "is required")
	}
	if in.From != nil && in.To != nil && in.To.Before(*in.From) {
		return BulkTaxResult{}, invalid("to", "must not be before from")
	}

	le, err := e.store.GetLegalEntity(ctx, in.LegalEntityID)
	if err != nil {
		return BulkTaxResult{}, storeErr("get legal entity", err)
	}
	if le == nil {
		return BulkTaxResult{}, notFound("legal entity", in.LegalEntityID)
	}
	if err := e.requireCostItem(ctx, in.CostItemID); err != nil {
		return BulkTaxResult{}, err
	}
	withVAT := in.CostItemIDVat != nil && *in.CostItemIDVat != ""
	if withVAT {
		if err := e.requireCostItem(ctx, *in.CostItemIDVat); err != nil {
			return BulkTaxResult{}, err
		}
	}

	ids, err := e.selectIncomes(ctx, in)
	if err != nil {
		return BulkTaxResult{}, err
	}

	outcomes := make([]incomeOutcome, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.bulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = e.taxIncome(gctx, actor, *le, id, in, withVAT)
			return nil
		})
	}
	_ = g.Wait()

	var result BulkTaxResult
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			e.log.Warn().Err(o.err).Str("income_id", string(ids[i])).Msg("tax expense not generated")
			result.Failed = append(result.Failed, FailedIncome{IncomeID: ids[i], Err: o.err})
		case o.skipped != nil:
			result.Skipped = append(result.Skipped, SkippedIncome{IncomeID: ids[i], Reason: *o.skipped})
		default:
			for _, x := range o.created {
				result.Created = append(result.Created, x)
				result.Total = result.Total.Add(x.Amount)
			}
		}
	}

	e.log.Info().
		Str("actor_id", string(actor.ID)).
		Str("legal_entity_id", string(in.LegalEntityID)).
		Int("incomes", len(ids)).
		Int("created", len(result.Created)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Int64("total", int64(result.Total)).
		Msg("tax expenses generated")

	if len(result.Created) > 0 {
		e.notify(Notification{
			Kind:          NotifyTaxExpensesCreated,
			ActorID:       actor.ID,
			LegalEntityID: in.LegalEntityID,
			Count:         len(result.Created),
			Total:         result.Total,
			At:            e.now().UTC(),
		})
	}
	return result, nil
}

func (e *Engine) requireCostItem(ctx context.Context, id CostItemID) error {
	c, err := e.store.GetCostItem(ctx, id)
	if err != nil {
		return storeErr("get cost item", err)
	}
	if c == nil {
		return notFound("cost item", id)
	}
	return nil
}

// selectIncomes returns explicit ids deduplicated in request order, or the
// incomes of the legal entity within the range.
func (e *Engine) selectIncomes(ctx context.Context, in BulkTaxInput) ([]IncomeID, error) {
	if len(in.IncomeIDs) > 0 {
		seen := make(map[IncomeID]bool, len(in.IncomeIDs))
		ids := make([]IncomeID, 0, len(in.IncomeIDs))
		for _, id := range in.IncomeIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		return ids, nil
	}
	incomes, err := e.store.ListIncomes(ctx, IncomeFilter{LegalEntityID: in.LegalEntityID, From: in.From, To: in.To})
	if err != nil {
		return nil, storeErr("list incomes", err)
	}
	ids := make([]IncomeID, len(incomes))
	for i, inc := range incomes {
		ids[i] = inc.ID
	}
	return ids, nil
}

func skip(r SkipReason) incomeOutcome { return incomeOutcome{skipped: &r} }

func (e *Engine) taxIncome(ctx context.Context, actor Actor, le LegalEntity, id IncomeID, in BulkTaxInput, withVAT bool) incomeOutcome {
	var out incomeOutcome
	err := e.store.WithTx(ctx, func(s Store) error {
		out = incomeOutcome{}
		inc, err := s.GetIncome(ctx, id)
		if err != nil {
			return storeErr("get income", err)
		}
		if inc == nil {
			return notFound("income", id)
		}
		if inc.LegalEntityID != le.ID {
			return invalid("income_ids", "income %s is not bound to legal entity %s", id, le.ID)
		}
		chain, err := loadChain(ctx, s, inc.ServiceID)
		if err != nil {
			return err
		}
		if err := e.access.Authorize(ctx, actor, SectionExpenses, chain.ownership(inc.CreatedBy)); err != nil {
			return err
		}

		existing, err := s.ListExpensesBySourceIncome(ctx, id)
		if err != nil {
			return storeErr("list expenses", err)
		}
		if len(existing) > 0 {
			out = skip(SkipAlreadyTaxed)
			return nil
		}

		amounts := ComputeTax(inc.Amount, le, withVAT)
		if amounts.Tax.IsZero() && amounts.VAT.IsZero() {
			out = skip(SkipZeroAmount)
			return nil
		}

		now := e.now().UTC()
		source := inc.ID
		base := Expense{
			LegalEntityID:  le.ID,
			ServiceID:      inc.ServiceID,
			PeriodID:       inc.PeriodID,
			SpentAt:        inc.ReceivedAt,
			SourceIncomeID: &source,
			CreatedBy:      actor.ID,
			CreatedAt:      now,
		}
		if !amounts.Tax.IsZero() {
			tax := base
			tax.ID = ExpenseID(NewID())
			tax.CostItemID = in.CostItemID
			tax.Amount = amounts.Tax
			tax.Comment = "tax " + le.UsnPercent.String() + "%"
			out.created = append(out.created, tax)
		}
		if !amounts.VAT.IsZero() {
			vat := base
			vat.ID = ExpenseID(NewID())
			vat.CostItemID = *in.CostItemIDVat
			vat.Amount = amounts.VAT
			vat.Comment = "vat " + le.VatPercent.String() + "%"
			out.created = append(out.created, vat)
		}
		for _, x := range out.created {
			if err := s.InsertExpense(ctx, x); err != nil {
				return storeErr("insert expense", err)
			}
		}
		return nil
	})

	switch {
	case err == nil:
		return out
	case errors.Is(err, ErrConflict):
		// Another run inserted the expense between our check and insert.
		return skip(SkipAlreadyTaxed)
	default:
		return incomeOutcome{err: err}
	}
}
