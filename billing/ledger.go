/*
ledger.go - Invoice ledger operations

PURPOSE:
  Creates and updates invoices bound to periods, maintains invoice lines
  and payments, and answers the outstanding balance.

CRITICAL INVARIANTS:
  1. invoice.Amount == sum(lines.Amount) after every line mutation. The
     total is re-derived from the full line set in the same transaction as
     the line write, never incremented or decremented in place.
  2. (invoice, period) is unique across lines.
  3. All lines of an invoice belong to one client.
  4. Outstanding balance = Amount - sum(payments), computed on read.
     Overpayment is allowed and yields a negative balance.
  5. Every mutation takes the in-process invoice lock and the store row lock
     before it reads the invoice it will write back.

PRIMARY LINE:
  CreateInvoice writes the invoice together with the line of its primary
  period carrying the billed amount, so invariant 1 holds from the first
  commit. The primary line cannot be deleted on its own.

SEE ALSO:
  - invoice.go: InvoiceTotal, OutstandingBalance and input types
*/
package billing

import (
	"context"
	"errors"
	"time"
)

func (e *Engine) invoiceOwnership(ctx context.Context, s Store, inv Invoice) (Ownership, error) {
	primary, err := loadPeriod(ctx, s, inv.PeriodID)
	if err != nil {
		return Ownership{}, err
	}
	chain, err := loadChain(ctx, s, primary.ServiceID)
	if err != nil {
		return Ownership{}, err
	}
	return chain.ownership(inv.CreatedBy), nil
}

// authorizeInvoice loads the invoice and checks the actor against it.
func (e *Engine) authorizeInvoice(ctx context.Context, s Store, actor Actor, section Section, id InvoiceID) (Invoice, error) {
	inv, err := loadInvoice(ctx, s, id)
	if err != nil {
		return Invoice{}, err
	}
	owner, err := e.invoiceOwnership(ctx, s, inv)
	if err != nil {
		return Invoice{}, err
	}
	if err := e.access.Authorize(ctx, actor, section, owner); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// lockInvoice takes the invoice row lock before loading, so the copy that is
// later saved back is the one committed by the previous writer.
func (e *Engine) lockInvoice(ctx context.Context, s Store, actor Actor, section Section, id InvoiceID) (Invoice, error) {
	if err := s.LockInvoice(ctx, id); err != nil {
		return Invoice{}, storeErr("lock invoice", err)
	}
	return e.authorizeInvoice(ctx, s, actor, section, id)
}

// rederiveTotal recomputes Amount from the stored lines and saves it.
func (e *Engine) rederiveTotal(ctx context.Context, s Store, inv Invoice) (Invoice, error) {
	lines, err := s.ListInvoiceLines(ctx, inv.ID)
	if err != nil {
		return Invoice{}, storeErr("list invoice lines", err)
	}
	inv.Amount = InvoiceTotal(lines)
	inv.UpdatedAt = e.now().UTC()
	if err := s.SaveInvoice(ctx, inv); err != nil {
		return Invoice{}, storeErr("save invoice", err)
	}
	return inv, nil
}

func insertLine(ctx context.Context, s Store, line InvoiceLine) error {
	err := s.InsertInvoiceLine(ctx, line)
	if errors.Is(err, ErrConflict) {
		return &ConflictError{Kind: "invoice line", Key: string(line.InvoiceID) + "/" + string(line.PeriodID)}
	}
	return storeErr("insert invoice line", err)
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoice creates an invoice for a period with the billed amount.
func (e *Engine) CreateInvoice(ctx context.Context, actor Actor, in CreateInvoiceInput) (Invoice, error) {
	if in.PeriodID == "" {
		return Invoice{}, invalid("period_id", "is required")
	}
	if in.Amount.IsNegative() {
		return Invoice{}, invalid("amount", "must not be negative")
	}
	if !in.Coverage.From.IsZero() && !in.Coverage.Valid() {
		return Invoice{}, invalid("coverage", "coverage_to must not be before coverage_from")
	}

	var created Invoice
	err := e.store.WithTx(ctx, func(s Store) error {
		period, err := loadPeriod(ctx, s, in.PeriodID)
		if err != nil {
			return err
		}
		chain, err := loadChain(ctx, s, period.ServiceID)
		if err != nil {
			return err
		}
		if err := e.access.Authorize(ctx, actor, SectionInvoices, chain.ownership(period.CreatedBy)); err != nil {
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

		coverage := in.Coverage
		if coverage.From.IsZero() {
			coverage = DateRange{From: period.DateFrom, To: period.DateTo}
		}
		now := e.now().UTC()
		created = Invoice{
			ID:                 InvoiceID(NewID()),
			PeriodID:           period.ID,
			ClientID:           chain.client.ID,
			Amount:             in.Amount,
			CoverageFrom:       coverage.From,
			CoverageTo:         coverage.To,
			InvoiceNumber:      in.InvoiceNumber,
			LegalEntityID:      in.LegalEntityID,
			InvoiceNotRequired: in.InvoiceNotRequired,
			CreatedBy:          actor.ID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.SaveInvoice(ctx, created); err != nil {
			return storeErr("save invoice", err)
		}
		return insertLine(ctx, s, InvoiceLine{
			ID:        InvoiceLineID(NewID()),
			InvoiceID: created.ID,
			PeriodID:  period.ID,
			Amount:    in.Amount,
			Title:     in.LineTitle,
			CreatedAt: now,
		})
	})
	if err != nil {
		return Invoice{}, err
	}

	e.log.Info().
		Str("actor_id", string(actor.ID)).
		Str("invoice_id", string(created.ID)).
		Str("period_id", string(created.PeriodID)).
		Int64("amount", int64(created.Amount)).
		Msg("invoice created")
	return created, nil
}

// UpdateInvoice changes invoice attributes.
func (e *Engine) UpdateInvoice(ctx context.Context, actor Actor, id InvoiceID, in UpdateInvoiceInput) (Invoice, error) {
	if in.Coverage != nil && !in.Coverage.Valid() {
		return Invoice{}, invalid("coverage", "coverage_to must not be before coverage_from")
	}

	unlock := e.invoiceLocks.Lock(string(id))
	defer unlock()

	var updated Invoice
	err := e.store.WithTx(ctx, func(s Store) error {
		inv, err := e.lockInvoice(ctx, s, actor, SectionInvoices, id)
		if err != nil {
			return err
		}
		if in.InvoiceNumber != nil {
			inv.InvoiceNumber = *in.InvoiceNumber
		}
		if in.Coverage != nil {
			inv.CoverageFrom, inv.CoverageTo = in.Coverage.From, in.Coverage.To
		}
		if in.LegalEntityID != nil {
			if *in.LegalEntityID != "" {
				le, err := s.GetLegalEntity(ctx, *in.LegalEntityID)
				if err != nil {
					return storeErr("get legal entity", err)
				}
				if le == nil {
					return notFound("legal entity", *in.LegalEntityID)
				}
			}
			inv.LegalEntityID = *in.LegalEntityID
		}
		if in.InvoiceNotRequired != nil {
			inv.InvoiceNotRequired = *in.InvoiceNotRequired
		}
		inv.UpdatedAt = e.now().UTC()
		updated = inv
		return storeErr("save invoice", s.SaveInvoice(ctx, inv))
	})
	return updated, err
}

// MarkPDFGenerated records that the invoice document was rendered, which
// enables the public download link.
func (e *Engine) MarkPDFGenerated(ctx context.Context, actor Actor, id InvoiceID, at time.Time) (Invoice, error) {
	if at.IsZero() {
		at = e.now()
	}

	unlock := e.invoiceLocks.Lock(string(id))
	defer unlock()

	var updated Invoice
	err := e.store.WithTx(ctx, func(s Store) error {
		inv, err := e.lockInvoice(ctx, s, actor, SectionInvoices, id)
		if err != nil {
			return err
		}
		stamp := at.UTC()
		inv.PDFGeneratedAt = &stamp
		inv.UpdatedAt = e.now().UTC()
		updated = inv
		return storeErr("save invoice", s.SaveInvoice(ctx, inv))
	})
	return updated, err
}

// =============================================================================
// LINES
// =============================================================================

// AddLine adds a period of the same client to an invoice and re-derives the
// invoice total in the same transaction.
func (e *Engine) AddLine(ctx context.Context, actor Actor, in AddLineInput) (InvoiceLine, error) {
	if in.InvoiceID == "" || in.PeriodID == "" {
		return InvoiceLine{}, invalid("period_id", "invoice and period are required")
	}
	if in.Amount.IsNegative() {
		return InvoiceLine{}, invalid("amount", "must not be negative")
	}

	unlock := e.invoiceLocks.Lock(string(in.InvoiceID))
	defer unlock()

	var line InvoiceLine
	err := e.store.WithTx(ctx, func(s Store) error {
		inv, err := e.lockInvoice(ctx, s, actor, SectionInvoices, in.InvoiceID)
		if err != nil {
			return err
		}

		period, err := loadPeriod(ctx, s, in.PeriodID)
		if err != nil {
			return err
		}
		chain, err := loadChain(ctx, s, period.ServiceID)
		if err != nil {
			return err
		}
		if chain.client.ID != inv.ClientID {
			return invalid("period_id", "period belongs to client %s, invoice to client %s", chain.client.ID, inv.ClientID)
		}
		if err := e.access.Authorize(ctx, actor, SectionInvoices, chain.ownership(period.CreatedBy)); err != nil {
			return err
		}

		lines, err := s.ListInvoiceLines(ctx, inv.ID)
		if err != nil {
			return storeErr("list invoice lines", err)
		}
		for _, l := range lines {
			if l.PeriodID == in.PeriodID {
				return &ConflictError{Kind: "invoice line", Key: string(inv.ID) + "/" + string(in.PeriodID)}
			}
		}

		line = InvoiceLine{
			ID:          InvoiceLineID(NewID()),
			InvoiceID:   inv.ID,
			PeriodID:    in.PeriodID,
			Amount:      in.Amount,
			Title:       in.Title,
			Description: in.Description,
			CreatedAt:   e.now().UTC(),
		}
		if err := insertLine(ctx, s, line); err != nil {
			return err
		}
		_, err = e.rederiveTotal(ctx, s, inv)
		return err
	})
	if err != nil {
		return InvoiceLine{}, err
	}

	e.log.Info().
		Str("actor_id", string(actor.ID)).
		Str("invoice_id", string(in.InvoiceID)).
		Str("period_id", string(in.PeriodID)).
		Int64("amount", int64(in.Amount)).
		Msg("invoice line added")
	return line, nil
}

// UpdateLineAmount changes a line amount and re-derives the invoice total.
func (e *Engine) UpdateLineAmount(ctx context.Context, actor Actor, lineID InvoiceLineID, amount Money) (Invoice, error) {
	if amount.IsNegative() {
		return Invoice{}, invalid("amount", "must not be negative")
	}
	return e.mutateLine(ctx, actor, lineID, func(s Store, inv Invoice, line InvoiceLine) error {
		line.Amount = amount
		return storeErr("update invoice line", s.UpdateInvoiceLine(ctx, line))
	})
}

// DeleteLine removes a non-primary line and re-derives the invoice total
// from the remaining lines.
func (e *Engine) DeleteLine(ctx context.Context, actor Actor, lineID InvoiceLineID) (Invoice, error) {
	return e.mutateLine(ctx, actor, lineID, func(s Store, inv Invoice, line InvoiceLine) error {
		if line.PeriodID == inv.PeriodID {
			return invalid("line_id", "the primary period line cannot be removed")
		}
		return storeErr("delete invoice line", s.DeleteInvoiceLine(ctx, lineID))
	})
}

func (e *Engine) mutateLine(ctx context.Context, actor Actor, lineID InvoiceLineID, fn func(Store, Invoice, InvoiceLine) error) (Invoice, error) {
	line, err := e.store.GetInvoiceLine(ctx, lineID)
	if err != nil {
		return Invoice{}, storeErr("get invoice line", err)
	}
	if line == nil {
		return Invoice{}, notFound("invoice line", lineID)
	}

	unlock := e.invoiceLocks.Lock(string(line.InvoiceID))
	defer unlock()

	var updated Invoice
	err = e.store.WithTx(ctx, func(s Store) error {
		inv, err := e.lockInvoice(ctx, s, actor, SectionInvoices, line.InvoiceID)
		if err != nil {
			return err
		}
		current, err := s.GetInvoiceLine(ctx, lineID)
		if err != nil {
			return storeErr("get invoice line", err)
		}
		if current == nil {
			return notFound("invoice line", lineID)
		}
		if err := fn(s, inv, *current); err != nil {
			return err
		}
		updated, err = e.rederiveTotal(ctx, s, inv)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}

	e.log.Info().
		Str("actor_id", string(actor.ID)).
		Str("invoice_id", string(updated.ID)).
		Str("line_id", string(lineID)).
		Int64("amount", int64(updated.Amount)).
		Msg("invoice lines changed")
	return updated, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment records a payment. There is no upper bound against the
// outstanding balance.
func (e *Engine) RecordPayment(ctx context.Context, actor Actor, in RecordPaymentInput) (Payment, error) {
	if in.InvoiceID == "" {
		return Payment{}, invalid("invoice_id", "is required")
	}
	if !in.Amount.IsPositive() {
		return Payment{}, invalid("amount", "must be positive")
	}
	paidAt := e.today()
	if in.PaidAt != nil && !in.PaidAt.IsZero() {
		paidAt = *in.PaidAt
	}

	unlock := e.invoiceLocks.Lock(string(in.InvoiceID))
	defer unlock()

	var payment Payment
	err := e.store.WithTx(ctx, func(s Store) error {
		inv, err := e.lockInvoice(ctx, s, actor, SectionPayments, in.InvoiceID)
		if err != nil {
			return err
		}
		payment = Payment{
			ID:        PaymentID(NewID()),
			InvoiceID: inv.ID,
			Amount:    in.Amount,
			PaidAt:    paidAt,
			Comment:   in.Comment,
			CreatedBy: actor.ID,
			CreatedAt: e.now().UTC(),
		}
		return storeErr("insert payment", s.InsertPayment(ctx, payment))
	})
	if err != nil {
		return Payment{}, err
	}

	e.log.Info().
		Str("actor_id", string(actor.ID)).
		Str("invoice_id", string(in.InvoiceID)).
		Int64("amount", int64(in.Amount)).
		Msg("payment recorded")
	return payment, nil
}

// DeletePayment removes a payment and returns the re-derived outstanding
// balance.
func (e *Engine) DeletePayment(ctx context.Context, actor Actor, paymentID PaymentID) (Money, error) {
	p, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return 0, storeErr("get payment", err)
	}
	if p == nil {
		return 0, notFound("payment", paymentID)
	}

	unlock := e.invoiceLocks.Lock(string(p.InvoiceID))
	defer unlock()

	var outstanding Money
	err = e.store.WithTx(ctx, func(s Store) error {
		inv, err := e.lockInvoice(ctx, s, actor, SectionPayments, p.InvoiceID)
		if err != nil {
			return err
		}
		if err := s.DeletePayment(ctx, paymentID); err != nil {
			return storeErr("delete payment", err)
		}
		payments, err := s.ListPayments(ctx, inv.ID)
		if err != nil {
			return storeErr("list payments", err)
		}
		outstanding = OutstandingBalance(inv, payments)
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.log.Info().Str("actor_id", string(actor.ID)).Str("payment_id", string(paymentID)).Msg("payment deleted")
	return outstanding, nil
}

// OutstandingBalance returns invoice.Amount minus all payments.
func (e *Engine) OutstandingBalance(ctx context.Context, actor Actor, id InvoiceID) (Money, error) {
	summary, err := e.InvoiceSummary(ctx, actor, id)
	if err != nil {
		return 0, err
	}
	return summary.Outstanding, nil
}

// InvoiceSummary returns the invoice with its lines, payments and balance,
// read in one transaction.
func (e *Engine) InvoiceSummary(ctx context.Context, actor Actor, id InvoiceID) (InvoiceSummary, error) {
	var summary InvoiceSummary
	err := e.store.WithTx(ctx, func(s Store) error {
		inv, err := e.authorizeInvoice(ctx, s, actor, SectionInvoices, id)
		if err != nil {
			return err
		}
		lines, err := s.ListInvoiceLines(ctx, id)
		if err != nil {
			return storeErr("list invoice lines", err)
		}
		payments, err := s.ListPayments(ctx, id)
		if err != nil {
			return storeErr("list payments", err)
		}
		summary = summarize(inv, lines, payments)
		return nil
	})
	return summary, err
}
