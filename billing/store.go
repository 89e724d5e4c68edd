/*
store.go - Persistence interface for billing records

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never talks to a driver directly; every operation runs against a Store,
  and every mutation runs inside TxStore.WithTx so that dependent
  recomputation (invoice totals, cascaded periods) commits with the write.

CONTRACT:
  - Get* returns (nil, nil) when the row does not exist.
  - ListPeriods returns periods ordered by DateFrom ascending.
  - InsertInvoiceLine returns ErrConflict when (invoice, period) exists.
  - InsertExpense returns ErrConflict when (source income, cost item) exists.
  - Lock* takes a row lock for the rest of the transaction. Stores that
    already serialize transactions implement it as a no-op.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:     database/sql + go-sqlite3 (default)
  - store/postgres/postgres.go: gorm + postgres (row locks)
  - billing/store/memory.go:    in-memory for tests

SEE ALSO:
  - engine.go: The only caller of WithTx
*/
package billing

import "context"

// =============================================================================
// STORE - Interface for record persistence
// =============================================================================

type Store interface {
	GetClient(ctx context.Context, id ClientID) (*Client, error)
	SaveClient(ctx context.Context, c Client) error
	GetSite(ctx context.Context, id SiteID) (*Site, error)
	SaveSite(ctx context.Context, s Site) error
	GetService(ctx context.Context, id ServiceID) (*Service, error)
	SaveService(ctx context.Context, s Service) error
	LockService(ctx context.Context, id ServiceID) error

	GetPeriod(ctx context.Context, id PeriodID) (*Period, error)
	ListPeriods(ctx context.Context, serviceID ServiceID) ([]Period, error)
	SavePeriod(ctx context.Context, p Period) error
	DeletePeriod(ctx context.Context, id PeriodID) error

	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)
	SaveInvoice(ctx context.Context, inv Invoice) error
	LockInvoice(ctx context.Context, id InvoiceID) error
	GetInvoiceLine(ctx context.Context, id InvoiceLineID) (*InvoiceLine, error)
	ListInvoiceLines(ctx context.Context, invoiceID InvoiceID) ([]InvoiceLine, error)
	InsertInvoiceLine(ctx context.Context, l InvoiceLine) error
	UpdateInvoiceLine(ctx context.Context, l InvoiceLine) error
	DeleteInvoiceLine(ctx context.Context, id InvoiceLineID) error

	// CountInvoicesByPeriod returns, for each period of the service that is
	// on at least one line, the number of distinct invoices referencing it.
	CountInvoicesByPeriod(ctx context.Context, serviceID ServiceID) (map[PeriodID]int, error)

	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	ListPayments(ctx context.Context, invoiceID InvoiceID) ([]Payment, error)
	InsertPayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, id PaymentID) error

	GetLegalEntity(ctx context.Context, id LegalEntityID) (*LegalEntity, error)
	SaveLegalEntity(ctx context.Context, le LegalEntity) error
	GetCostItem(ctx context.Context, id CostItemID) (*CostItem, error)
	SaveCostItem(ctx context.Context, c CostItem) error

	GetIncome(ctx context.Context, id IncomeID) (*Income, error)
	SaveIncome(ctx context.Context, in Income) error
	ListIncomes(ctx context.Context, f IncomeFilter) ([]Income, error)
	InsertExpense(ctx context.Context, e Expense) error
	ListExpensesBySourceIncome(ctx context.Context, incomeID IncomeID) ([]Expense, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
