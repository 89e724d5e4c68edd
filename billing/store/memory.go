// Package store provides Store implementations.
package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/warp/agency-billing/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a billing.TxStore held in maps. WithTx runs against a snapshot
// and restores it when fn fails, so a failed operation leaves no trace.
type Memory struct {
	mu sync.RWMutex
	d  *data
}

type lineKey struct {
	InvoiceID billing.InvoiceID
	PeriodID  billing.PeriodID
}

type expenseKey struct {
	IncomeID   billing.IncomeID
	CostItemID billing.CostItemID
}

// data holds the tables. It implements billing.Store without locking; the
// owning Memory serializes access.
type data struct {
	clients       map[billing.ClientID]billing.Client
	sites         map[billing.SiteID]billing.Site
	services      map[billing.ServiceID]billing.Service
	periods       map[billing.PeriodID]billing.Period
	invoices      map[billing.InvoiceID]billing.Invoice
	lines         map[billing.InvoiceLineID]billing.InvoiceLine
	lineIndex     map[lineKey]billing.InvoiceLineID
	payments      map[billing.PaymentID]billing.Payment
	legalEntities map[billing.LegalEntityID]billing.LegalEntity
	costItems     map[billing.CostItemID]billing.CostItem
	incomes       map[billing.IncomeID]billing.Income
	expenses      map[billing.ExpenseID]billing.Expense
	expenseIndex  map[expenseKey]billing.ExpenseID
	seq           int64 // insertion order for stable listings
	order         map[string]int64
}

func newData() *data {
	return &data{
		clients:       make(map[billing.ClientID]billing.Client),
		sites:         make(map[billing.SiteID]billing.Site),
		services:      make(map[billing.ServiceID]billing.Service),
		periods:       make(map[billing.PeriodID]billing.Period),
		invoices:      make(map[billing.InvoiceID]billing.Invoice),
		lines:         make(map[billing.InvoiceLineID]billing.InvoiceLine),
		lineIndex:     make(map[lineKey]billing.InvoiceLineID),
		payments:      make(map[billing.PaymentID]billing.Payment),
		legalEntities: make(map[billing.LegalEntityID]billing.LegalEntity),
		costItems:     make(map[billing.CostItemID]billing.CostItem),
		incomes:       make(map[billing.IncomeID]billing.Income),
		expenses:      make(map[billing.ExpenseID]billing.Expense),
		expenseIndex:  make(map[expenseKey]billing.ExpenseID),
		order:         make(map[string]int64),
	}
}

func (d *data) clone() *data {
	return &data{
		clients:       maps.Clone(d.clients),
		sites:         maps.Clone(d.sites),
		services:      maps.Clone(d.services),
		periods:       maps.Clone(d.periods),
		invoices:      maps.Clone(d.invoices),
		lines:         maps.Clone(d.lines),
		lineIndex:     maps.Clone(d.lineIndex),
		payments:      maps.Clone(d.payments),
		legalEntities: maps.Clone(d.legalEntities),
		costItems:     maps.Clone(d.costItems),
		incomes:       maps.Clone(d.incomes),
		expenses:      maps.Clone(d.expenses),
		expenseIndex:  maps.Clone(d.expenseIndex),
		seq:           d.seq,
		order:         maps.Clone(d.order),
	}
}

func (d *data) stamp(id string) {
	if _, ok := d.order[id]; ok {
		return
	}
	d.seq++
	d.order[id] = d.seq
}

func ptr[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

func NewMemory() *Memory {
	return &Memory{d: newData()}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// view runs fn under the read lock.
func view[T any](m *Memory, fn func(*data) (T, error)) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.d)
}

// write runs fn under the write lock.
func (m *Memory) write(fn func(*data) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.d)
}

// =============================================================================
// LOCKED FACADE - each call is its own transaction
// =============================================================================

func (m *Memory) GetClient(ctx context.Context, id billing.ClientID) (*billing.Client, error) {
	return view(m, func(d *data) (*billing.Client, error) { return d.GetClient(ctx, id) })
}

func (m *Memory) SaveClient(ctx context.Context, c billing.Client) error {
	return m.write(func(d *data) error { return d.SaveClient(ctx, c) })
}

func (m *Memory) GetSite(ctx context.Context, id billing.SiteID) (*billing.Site, error) {
	return view(m, func(d *data) (*billing.Site, error) { return d.GetSite(ctx, id) })
}

func (m *Memory) SaveSite(ctx context.Context, s billing.Site) error {
	return m.write(func(d *data) error { return d.SaveSite(ctx, s) })
}

func (m *Memory) GetService(ctx context.Context, id billing.ServiceID) (*billing.Service, error) {
	return view(m, func(d *data) (*billing.Service, error) { return d.GetService(ctx, id) })
}

func (m *Memory) SaveService(ctx context.Context, s billing.Service) error {
	return m.write(func(d *data) error { return d.SaveService(ctx, s) })
}

func (m *Memory) LockService(context.Context, billing.ServiceID) error { return nil }

func (m *Memory) GetPeriod(ctx context.Context, id billing.PeriodID) (*billing.Period, error) {
	return view(m, func(d *data) (*billing.Period, error) { return d.GetPeriod(ctx, id) })
}

func (m *Memory) ListPeriods(ctx context.Context, serviceID billing.ServiceID) ([]billing.Period, error) {
	return view(m, func(d *data) ([]billing.Period, error) { return d.ListPeriods(ctx, serviceID) })
}

func (m *Memory) SavePeriod(ctx context.Context, p billing.Period) error {
	return m.write(func(d *data) error { return d.SavePeriod(ctx, p) })
}

func (m *Memory) DeletePeriod(ctx context.Context, id billing.PeriodID) error {
	return m.write(func(d *data) error { return d.DeletePeriod(ctx, id) })
}

func (m *Memory) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	return view(m, func(d *data) (*billing.Invoice, error) { return d.GetInvoice(ctx, id) })
}

func (m *Memory) SaveInvoice(ctx context.Context, inv billing.Invoice) error {
	return m.write(func(d *data) error { return d.SaveInvoice(ctx, inv) })
}

func (m *Memory) LockInvoice(context.Context, billing.InvoiceID) error { return nil }

func (m *Memory) GetInvoiceLine(ctx context.Context, id billing.InvoiceLineID) (*billing.InvoiceLine, error) {
	return view(m, func(d *data) (*billing.InvoiceLine, error) { return d.GetInvoiceLine(ctx, id) })
}

func (m *Memory) ListInvoiceLines(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.InvoiceLine, error) {
	return view(m, func(d *data) ([]billing.InvoiceLine, error) { return d.ListInvoiceLines(ctx, invoiceID) })
}

func (m *Memory) InsertInvoiceLine(ctx context.Context, l billing.InvoiceLine) error {
	return m.write(func(d *data) error { return d.InsertInvoiceLine(ctx, l) })
}

func (m *Memory) UpdateInvoiceLine(ctx context.Context, l billing.InvoiceLine) error {
	return m.write(func(d *data) error { return d.UpdateInvoiceLine(ctx, l) })
}

func (m *Memory) DeleteInvoiceLine(ctx context.Context, id billing.InvoiceLineID) error {
	return m.write(func(d *data) error { return d.DeleteInvoiceLine(ctx, id) })
}

func (m *Memory) CountInvoicesByPeriod(ctx context.Context, serviceID billing.ServiceID) (map[billing.PeriodID]int, error) {
	return view(m, func(d *data) (map[billing.PeriodID]int, error) { return d.CountInvoicesByPeriod(ctx, serviceID) })
}

func (m *Memory) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.Payment, error) {
	return view(m, func(d *data) (*billing.Payment, error) { return d.GetPayment(ctx, id) })
}

func (m *Memory) ListPayments(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.Payment, error) {
	return view(m, func(d *data) ([]billing.Payment, error) { return d.ListPayments(ctx, invoiceID) })
}

func (m *Memory) InsertPayment(ctx context.Context, p billing.Payment) error {
	return m.write(func(d *data) error { return d.InsertPayment(ctx, p) })
}

func (m *Memory) DeletePayment(ctx context.Context, id billing.PaymentID) error {
	return m.write(func(d *data) error { return d.DeletePayment(ctx, id) })
}

func (m *Memory) GetLegalEntity(ctx context.Context, id billing.LegalEntityID) (*billing.LegalEntity, error) {
	return view(m, func(d *data) (*billing.LegalEntity, error) { return d.GetLegalEntity(ctx, id) })
}

func (m *Memory) SaveLegalEntity(ctx context.Context, le billing.LegalEntity) error {
	return m.write(func(d *data) error { return d.SaveLegalEntity(ctx, le) })
}

func (m *Memory) GetCostItem(ctx context.Context, id billing.CostItemID) (*billing.CostItem, error) {
	return view(m, func(d *data) (*billing.CostItem, error) { return d.GetCostItem(ctx, id) })
}

func (m *Memory) SaveCostItem(ctx context.Context, c billing.CostItem) error {
	return m.write(func(d *data) error { return d.SaveCostItem(ctx, c) })
}

func (m *Memory) GetIncome(ctx context.Context, id billing.IncomeID) (*billing.Income, error) {
	return view(m, func(d *data) (*billing.Income, error) { return d.GetIncome(ctx, id) })
}

func (m *Memory) SaveIncome(ctx context.Context, in billing.Income) error {
	return m.write(func(d *data) error { return d.SaveIncome(ctx, in) })
}

func (m *Memory) ListIncomes(ctx context.Context, f billing.IncomeFilter) ([]billing.Income, error) {
	return view(m, func(d *data) ([]billing.Income, error) { return d.ListIncomes(ctx, f) })
}

func (m *Memory) InsertExpense(ctx context.Context, e billing.Expense) error {
	return m.write(func(d *data) error { return d.InsertExpense(ctx, e) })
}

func (m *Memory) ListExpensesBySourceIncome(ctx context.Context, incomeID billing.IncomeID) ([]billing.Expense, error) {
	return view(m, func(d *data) ([]billing.Expense, error) { return d.ListExpensesBySourceIncome(ctx, incomeID) })
}

// =============================================================================
// TABLES
// =============================================================================

func (d *data) GetClient(_ context.Context, id billing.ClientID) (*billing.Client, error) {
	c, ok := d.clients[id]
	return ptr(c, ok), nil
}

func (d *data) SaveClient(_ context.Context, c billing.Client) error {
	d.clients[c.ID] = c
	return nil
}

func (d *data) GetSite(_ context.Context, id billing.SiteID) (*billing.Site, error) {
	s, ok := d.sites[id]
	return ptr(s, ok), nil
}

func (d *data) SaveSite(_ context.Context, s billing.Site) error {
	d.sites[s.ID] = s
	return nil
}

func (d *data) GetService(_ context.Context, id billing.ServiceID) (*billing.Service, error) {
	s, ok := d.services[id]
	return ptr(s, ok), nil
}

func (d *data) SaveService(_ context.Context, s billing.Service) error {
	d.services[s.ID] = s
	return nil
}

func (d *data) LockService(context.Context, billing.ServiceID) error { return nil }

func (d *data) GetPeriod(_ context.Context, id billing.PeriodID) (*billing.Period, error) {
	p, ok := d.periods[id]
	return ptr(p, ok), nil
}

func (d *data) ListPeriods(_ context.Context, serviceID billing.ServiceID) ([]billing.Period, error) {
	var out []billing.Period
	for _, p := range d.periods {
		if p.ServiceID == serviceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateFrom.Equal(out[j].DateFrom) {
			return out[i].DateFrom.Before(out[j].DateFrom)
		}
		return d.order[string(out[i].ID)] < d.order[string(out[j].ID)]
	})
	return out, nil
}

func (d *data) SavePeriod(_ context.Context, p billing.Period) error {
	d.stamp(string(p.ID))
	d.periods[p.ID] = p
	return nil
}

func (d *data) DeletePeriod(_ context.Context, id billing.PeriodID) error {
	delete(d.periods, id)
	return nil
}

func (d *data) GetInvoice(_ context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	inv, ok := d.invoices[id]
	return ptr(inv, ok), nil
}

func (d *data) SaveInvoice(_ context.Context, inv billing.Invoice) error {
	d.invoices[inv.ID] = inv
	return nil
}

func (d *data) LockInvoice(context.Context, billing.InvoiceID) error { return nil }

func (d *data) GetInvoiceLine(_ context.Context, id billing.InvoiceLineID) (*billing.InvoiceLine, error) {
	l, ok := d.lines[id]
	return ptr(l, ok), nil
}

func (d *data) ListInvoiceLines(_ context.Context, invoiceID billing.InvoiceID) ([]billing.InvoiceLine, error) {
	var out []billing.InvoiceLine
	for _, l := range d.lines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	byInsertion(d, out, func(x billing.InvoiceLine) string { return string(x.ID) })
	return out, nil
}

func (d *data) InsertInvoiceLine(_ context.Context, l billing.InvoiceLine) error {
	k := lineKey{InvoiceID: l.InvoiceID, PeriodID: l.PeriodID}
	if _, dup := d.lineIndex[k]; dup {
		return billing.ErrConflict
	}
	d.stamp(string(l.ID))
	d.lines[l.ID] = l
	d.lineIndex[k] = l.ID
	return nil
}

func (d *data) UpdateInvoiceLine(_ context.Context, l billing.InvoiceLine) error {
	old, ok := d.lines[l.ID]
	if !ok {
		return nil
	}
	// invoice and period are fixed for the life of a line
	l.InvoiceID, l.PeriodID = old.InvoiceID, old.PeriodID
	d.lines[l.ID] = l
	return nil
}

func (d *data) DeleteInvoiceLine(_ context.Context, id billing.InvoiceLineID) error {
	if l, ok := d.lines[id]; ok {
		delete(d.lineIndex, lineKey{InvoiceID: l.InvoiceID, PeriodID: l.PeriodID})
		delete(d.lines, id)
	}
	return nil
}

func (d *data) CountInvoicesByPeriod(_ context.Context, serviceID billing.ServiceID) (map[billing.PeriodID]int, error) {
	counts := make(map[billing.PeriodID]int)
	for k := range d.lineIndex {
		if p, ok := d.periods[k.PeriodID]; ok && p.ServiceID == serviceID {
			counts[k.PeriodID]++
		}
	}
	return counts, nil
}

func (d *data) GetPayment(_ context.Context, id billing.PaymentID) (*billing.Payment, error) {
	p, ok := d.payments[id]
	return ptr(p, ok), nil
}

func (d *data) ListPayments(_ context.Context, invoiceID billing.InvoiceID) ([]billing.Payment, error) {
	var out []billing.Payment
	for _, p := range d.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	byInsertion(d, out, func(x billing.Payment) string { return string(x.ID) })
	return out, nil
}

func (d *data) InsertPayment(_ context.Context, p billing.Payment) error {
	d.stamp(string(p.ID))
	d.payments[p.ID] = p
	return nil
}

func (d *data) DeletePayment(_ context.Context, id billing.PaymentID) error {
	delete(d.payments, id)
	return nil
}

func (d *data) GetLegalEntity(_ context.Context, id billing.LegalEntityID) (*billing.LegalEntity, error) {
	le, ok := d.legalEntities[id]
	return ptr(le, ok), nil
}

func (d *data) SaveLegalEntity(_ context.Context, le billing.LegalEntity) error {
	d.legalEntities[le.ID] = le
	return nil
}

func (d *data) GetCostItem(_ context.Context, id billing.CostItemID) (*billing.CostItem, error) {
	c, ok := d.costItems[id]
	return ptr(c, ok), nil
}

func (d *data) SaveCostItem(_ context.Context, c billing.CostItem) error {
	d.costItems[c.ID] = c
	return nil
}

func (d *data) GetIncome(_ context.Context, id billing.IncomeID) (*billing.Income, error) {
	in, ok := d.incomes[id]
	return ptr(in, ok), nil
}

func (d *data) SaveIncome(_ context.Context, in billing.Income) error {
	d.stamp(string(in.ID))
	d.incomes[in.ID] = in
	return nil
}

func (d *data) ListIncomes(_ context.Context, f billing.IncomeFilter) ([]billing.Income, error) {
	var out []billing.Income
	for _, in := range d.incomes {
		if f.LegalEntityID != "" && in.LegalEntityID != f.LegalEntityID {
			continue
		}
		if f.From != nil && in.ReceivedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && in.ReceivedAt.After(*f.To) {
			continue
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return d.order[string(out[i].ID)] < d.order[string(out[j].ID)]
	})
	return out, nil
}

func (d *data) InsertExpense(_ context.Context, e billing.Expense) error {
	if e.SourceIncomeID != nil {
		k := expenseKey{IncomeID: *e.SourceIncomeID, CostItemID: e.CostItemID}
		if _, dup := d.expenseIndex[k]; dup {
			return billing.ErrConflict
		}
		d.expenseIndex[k] = e.ID
	}
	d.stamp(string(e.ID))
	d.expenses[e.ID] = e
	return nil
}

func (d *data) ListExpensesBySourceIncome(_ context.Context, incomeID billing.IncomeID) ([]billing.Expense, error) {
	var out []billing.Expense
	for _, e := range d.expenses {
		if e.SourceIncomeID != nil && *e.SourceIncomeID == incomeID {
			out = append(out, e)
		}
	}
	byInsertion(d, out, func(x billing.Expense) string { return string(x.ID) })
	return out, nil
}

func byInsertion[T any](d *data, out []T, id func(T) string) {
	slices.SortStableFunc(out, func(a, b T) int { return cmp.Compare(d.order[id(a)], d.order[id(b)]) })
}

var (
	_ billing.TxStore = (*Memory)(nil)
	_ billing.Store   = (*data)(nil)
)
