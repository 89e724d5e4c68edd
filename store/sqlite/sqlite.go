/*
Package sqlite provides a SQLite-backed implementation of billing.TxStore.

PURPOSE:
  Default persistence for the billing engine. One file, no server, WAL mode.

KEY TABLES:
  clients, sites, services:  ownership chain (Client -> Site -> Service)
  periods:                   persisted billing periods
  invoices, invoice_lines:   invoices and the periods they bill
  payments:                  payments against invoices
  legal_entities, cost_items: accounting reference data
  incomes, expenses:         realized income and generated expenses

ENCODING:
  - Dates are TEXT "YYYY-MM-DD", so ORDER BY and range filters compare
    lexically in calendar order.
  - Money is INTEGER minor units.
  - Tax rates are TEXT decimals, parsed with shopspring/decimal.
  - Timestamps are TEXT RFC 3339 in UTC.

UNIQUENESS:
  - idx_invoice_lines_invoice_period: one line per (invoice, period)
  - idx_expenses_source_cost_item:    one generated expense per
                                      (source income, cost item)
  Violations surface as billing.ErrConflict.

CONCURRENCY:
  The pool holds a single connection, so transactions are serialized by
  database/sql and LockService / LockInvoice are no-ops. This also keeps a
  ":memory:" database shared across every call.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := billing.NewEngine(store, grants)

SEE ALSO:
  - billing/store.go: Interface definition
  - store/postgres:   Server-backed implementation with row locks
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/agency-billing/billing"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		seller_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(id),
		domain TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL REFERENCES sites(id),
		name TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT,
		cadence TEXT NOT NULL,
		price INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		account_manager_id TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		seller_commission INTEGER NOT NULL DEFAULT 0,
		account_manager_commission INTEGER NOT NULL DEFAULT 0,
		account_manager_fee INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		service_id TEXT NOT NULL REFERENCES services(id),
		date_from TEXT NOT NULL,
		date_to TEXT NOT NULL,
		type TEXT NOT NULL,
		expected_amount INTEGER,
		invoice_not_required INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_periods_service_from
		ON periods(service_id, date_from);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL REFERENCES periods(id),
		client_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		coverage_from TEXT NOT NULL,
		coverage_to TEXT NOT NULL,
		invoice_number TEXT NOT NULL DEFAULT '',
		legal_entity_id TEXT NOT NULL DEFAULT '',
		invoice_not_required INTEGER NOT NULL DEFAULT 0,
		pdf_generated_at TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		period_id TEXT NOT NULL REFERENCES periods(id),
		amount INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_lines_invoice_period
		ON invoice_lines(invoice_id, period_id);
	CREATE INDEX IF NOT EXISTS idx_invoice_lines_period
		ON invoice_lines(period_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		amount INTEGER NOT NULL,
		paid_at TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id);

	CREATE TABLE IF NOT EXISTS legal_entities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		usn_percent TEXT NOT NULL DEFAULT '0',
		vat_percent TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS cost_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS incomes (
		id TEXT PRIMARY KEY,
		service_id TEXT NOT NULL REFERENCES services(id),
		period_id TEXT,
		legal_entity_id TEXT NOT NULL DEFAULT '',
		amount INTEGER NOT NULL,
		received_at TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_incomes_entity_received
		ON incomes(legal_entity_id, received_at);

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		cost_item_id TEXT NOT NULL REFERENCES cost_items(id),
		legal_entity_id TEXT NOT NULL DEFAULT '',
		service_id TEXT NOT NULL DEFAULT '',
		period_id TEXT,
		amount INTEGER NOT NULL,
		spent_at TEXT NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		source_income_id TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_expenses_source_cost_item
		ON expenses(source_income_id, cost_item_id)
		WHERE source_income_id IS NOT NULL;
`

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn in a database transaction, committing when it returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements billing.Store over either the pool or a transaction.
type queries struct {
	q querier
}

// =============================================================================
// OWNERSHIP CHAIN
// =============================================================================

func (s queries) GetClient(ctx context.Context, id billing.ClientID) (*billing.Client, error) {
	var c billing.Client
	err := s.q.QueryRowContext(ctx, `SELECT id, name, seller_id FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.SellerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s queries) SaveClient(ctx context.Context, c billing.Client) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO clients (id, name, seller_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, seller_id = excluded.seller_id`,
		c.ID, c.Name, c.SellerID)
	return err
}

func (s queries) GetSite(ctx context.Context, id billing.SiteID) (*billing.Site, error) {
	var st billing.Site
	err := s.q.QueryRowContext(ctx, `SELECT id, client_id, domain FROM sites WHERE id = ?`, id).
		Scan(&st.ID, &st.ClientID, &st.Domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s queries) SaveSite(ctx context.Context, st billing.Site) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sites (id, client_id, domain) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET client_id = excluded.client_id, domain = excluded.domain`,
		st.ID, st.ClientID, st.Domain)
	return err
}

func (s queries) GetService(ctx context.Context, id billing.ServiceID) (*billing.Service, error) {
	var (
		svc        billing.Service
		start      string
		end        sql.NullString
		price      int64
		seller, am int64
		fee        int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, site_id, name, start_date, end_date, cadence, price, status,
		       account_manager_id, created_by,
		       seller_commission, account_manager_commission, account_manager_fee
		FROM services WHERE id = ?`, id).
		Scan(&svc.ID, &svc.SiteID, &svc.Name, &start, &end, &svc.Cadence, &price, &svc.Status,
			&svc.AccountManagerID, &svc.CreatedBy, &seller, &am, &fee)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if svc.StartDate, err = billing.ParseDate(start); err != nil {
		return nil, err
	}
	if svc.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	svc.Price = billing.Money(price)
	svc.SellerCommission = billing.Money(seller)
	svc.AccountManagerCommission = billing.Money(am)
	svc.AccountManagerFee = billing.Money(fee)
	return &svc, nil
}

func (s queries) SaveService(ctx context.Context, svc billing.Service) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO services (id, site_id, name, start_date, end_date, cadence, price, status,
		                      account_manager_id, created_by,
		                      seller_commission, account_manager_commission, account_manager_fee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			site_id = excluded.site_id, name = excluded.name,
			start_date = excluded.start_date, end_date = excluded.end_date,
			cadence = excluded.cadence, price = excluded.price, status = excluded.status,
			account_manager_id = excluded.account_manager_id,
			seller_commission = excluded.seller_commission,
			account_manager_commission = excluded.account_manager_commission,
			account_manager_fee = excluded.account_manager_fee`,
		svc.ID, svc.SiteID, svc.Name, svc.StartDate.String(), nullDate(svc.EndDate), svc.Cadence,
		int64(svc.Price), svc.Status, svc.AccountManagerID, svc.CreatedBy,
		int64(svc.SellerCommission), int64(svc.AccountManagerCommission), int64(svc.AccountManagerFee))
	return err
}

func (s queries) LockService(context.Context, billing.ServiceID) error { return nil }

// =============================================================================
// PERIODS
// =============================================================================

const periodColumns = `id, service_id, date_from, date_to, type, expected_amount,
	invoice_not_required, created_by, created_at, updated_at`

func scanPeriod(row interface{ Scan(...any) error }) (billing.Period, error) {
	var (
		p                  billing.Period
		from, to           string
		expected           sql.NullInt64
		created, updated   string
		invoiceNotRequired bool
	)
	if err := row.Scan(&p.ID, &p.ServiceID, &from, &to, &p.Type, &expected,
		&invoiceNotRequired, &p.CreatedBy, &created, &updated); err != nil {
		return p, err
	}
	var err error
	if p.DateFrom, err = billing.ParseDate(from); err != nil {
		return p, err
	}
	if p.DateTo, err = billing.ParseDate(to); err != nil {
		return p, err
	}
	if expected.Valid {
		m := billing.Money(expected.Int64)
		p.ExpectedAmount = &m
	}
	p.InvoiceNotRequired = invoiceNotRequired
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func (s queries) GetPeriod(ctx context.Context, id billing.PeriodID) (*billing.Period, error) {
	p, err := scanPeriod(s.q.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s queries) ListPeriods(ctx context.Context, serviceID billing.ServiceID) ([]billing.Period, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+periodColumns+` FROM periods
		WHERE service_id = ?
		ORDER BY date_from ASC, created_at ASC`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s queries) SavePeriod(ctx context.Context, p billing.Period) error {
	var expected any
	if p.ExpectedAmount != nil {
		expected = int64(*p.ExpectedAmount)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO periods (`+periodColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date_from = excluded.date_from, date_to = excluded.date_to,
			type = excluded.type, expected_amount = excluded.expected_amount,
			invoice_not_required = excluded.invoice_not_required,
			updated_at = excluded.updated_at`,
		p.ID, p.ServiceID, p.DateFrom.String(), p.DateTo.String(), p.Type, expected,
		p.InvoiceNotRequired, p.CreatedBy, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return err
}

func (s queries) DeletePeriod(ctx context.Context, id billing.PeriodID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM periods WHERE id = ?`, id)
	return err
}

// =============================================================================
// INVOICES AND LINES
// =============================================================================

func (s queries) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	var (
		inv                billing.Invoice
		amount             int64
		from, to           string
		pdf                sql.NullString
		created, updated   string
		invoiceNotRequired bool
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, period_id, client_id, amount, coverage_from, coverage_to, invoice_number,
		       legal_entity_id, invoice_not_required, pdf_generated_at, created_by, created_at, updated_at
		FROM invoices WHERE id = ?`, id).
		Scan(&inv.ID, &inv.PeriodID, &inv.ClientID, &amount, &from, &to, &inv.InvoiceNumber,
			&inv.LegalEntityID, &invoiceNotRequired, &pdf, &inv.CreatedBy, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inv.Amount = billing.Money(amount)
	if inv.CoverageFrom, err = billing.ParseDate(from); err != nil {
		return nil, err
	}
	if inv.CoverageTo, err = billing.ParseDate(to); err != nil {
		return nil, err
	}
	inv.InvoiceNotRequired = invoiceNotRequired
	if pdf.Valid {
		t := parseTime(pdf.String)
		inv.PDFGeneratedAt = &t
	}
	inv.CreatedAt = parseTime(created)
	inv.UpdatedAt = parseTime(updated)
	return &inv, nil
}

func (s queries) SaveInvoice(ctx context.Context, inv billing.Invoice) error {
	var pdf any
	if inv.PDFGeneratedAt != nil {
		pdf = formatTime(*inv.PDFGeneratedAt)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO invoices (id, period_id, client_id, amount, coverage_from, coverage_to, invoice_number,
		                      legal_entity_id, invoice_not_required, pdf_generated_at, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			coverage_from = excluded.coverage_from, coverage_to = excluded.coverage_to,
			invoice_number = excluded.invoice_number, legal_entity_id = excluded.legal_entity_id,
			invoice_not_required = excluded.invoice_not_required,
			pdf_generated_at = excluded.pdf_generated_at,
			updated_at = excluded.updated_at`,
		inv.ID, inv.PeriodID, inv.ClientID, int64(inv.Amount), inv.CoverageFrom.String(), inv.CoverageTo.String(),
		inv.InvoiceNumber, inv.LegalEntityID, inv.InvoiceNotRequired, pdf, inv.CreatedBy,
		formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt))
	return err
}

func (s queries) LockInvoice(context.Context, billing.InvoiceID) error { return nil }

const lineColumns = `id, invoice_id, period_id, amount, title, description, created_at`

func scanLine(row interface{ Scan(...any) error }) (billing.InvoiceLine, error) {
	var (
		l       billing.InvoiceLine
		amount  int64
		created string
	)
	if err := row.Scan(&l.ID, &l.InvoiceID, &l.PeriodID, &amount, &l.Title, &l.Description, &created); err != nil {
		return l, err
	}
	l.Amount = billing.Money(amount)
	l.CreatedAt = parseTime(created)
	return l, nil
}

func (s queries) GetInvoiceLine(ctx context.Context, id billing.InvoiceLineID) (*billing.InvoiceLine, error) {
	l, err := scanLine(s.q.QueryRowContext(ctx, `SELECT `+lineColumns+` FROM invoice_lines WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s queries) ListInvoiceLines(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.InvoiceLine, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+lineColumns+` FROM invoice_lines
		WHERE invoice_id = ?
		ORDER BY created_at ASC, rowid ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.InvoiceLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s queries) InsertInvoiceLine(ctx context.Context, l billing.InvoiceLine) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO invoice_lines (`+lineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.InvoiceID, l.PeriodID, int64(l.Amount), l.Title, l.Description, formatTime(l.CreatedAt))
	return conflict(err)
}

func (s queries) UpdateInvoiceLine(ctx context.Context, l billing.InvoiceLine) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE invoice_lines SET amount = ?, title = ?, description = ? WHERE id = ?`,
		int64(l.Amount), l.Title, l.Description, l.ID)
	return err
}

func (s queries) DeleteInvoiceLine(ctx context.Context, id billing.InvoiceLineID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM invoice_lines WHERE id = ?`, id)
	return err
}

func (s queries) CountInvoicesByPeriod(ctx context.Context, serviceID billing.ServiceID) (map[billing.PeriodID]int, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT l.period_id, COUNT(DISTINCT l.invoice_id)
		FROM invoice_lines l
		JOIN periods p ON p.id = l.period_id
		WHERE p.service_id = ?
		GROUP BY l.period_id`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[billing.PeriodID]int)
	for rows.Next() {
		var (
			id billing.PeriodID
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, invoice_id, amount, paid_at, comment, created_by, created_at`

func scanPayment(row interface{ Scan(...any) error }) (billing.Payment, error) {
	var (
		p       billing.Payment
		amount  int64
		paidAt  string
		created string
	)
	if err := row.Scan(&p.ID, &p.InvoiceID, &amount, &paidAt, &p.Comment, &p.CreatedBy, &created); err != nil {
		return p, err
	}
	p.Amount = billing.Money(amount)
	var err error
	if p.PaidAt, err = billing.ParseDate(paidAt); err != nil {
		return p, err
	}
	p.CreatedAt = parseTime(created)
	return p, nil
}

func (s queries) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.Payment, error) {
	p, err := scanPayment(s.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s queries) ListPayments(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.Payment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE invoice_id = ?
		ORDER BY paid_at ASC, rowid ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s queries) InsertPayment(ctx context.Context, p billing.Payment) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.InvoiceID, int64(p.Amount), p.PaidAt.String(), p.Comment, p.CreatedBy, formatTime(p.CreatedAt))
	return err
}

func (s queries) DeletePayment(ctx context.Context, id billing.PaymentID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	return err
}

// =============================================================================
// ACCOUNTING
// =============================================================================

func (s queries) GetLegalEntity(ctx context.Context, id billing.LegalEntityID) (*billing.LegalEntity, error) {
	var (
		le       billing.LegalEntity
		usn, vat string
	)
	err := s.q.QueryRowContext(ctx, `SELECT id, name, usn_percent, vat_percent FROM legal_entities WHERE id = ?`, id).
		Scan(&le.ID, &le.Name, &usn, &vat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if le.UsnPercent, err = decimal.NewFromString(usn); err != nil {
		return nil, fmt.Errorf("legal entity %s usn_percent: %w", id, err)
	}
	if le.VatPercent, err = decimal.NewFromString(vat); err != nil {
		return nil, fmt.Errorf("legal entity %s vat_percent: %w", id, err)
	}
	return &le, nil
}

func (s queries) SaveLegalEntity(ctx context.Context, le billing.LegalEntity) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO legal_entities (id, name, usn_percent, vat_percent) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, usn_percent = excluded.usn_percent, vat_percent = excluded.vat_percent`,
		le.ID, le.Name, le.UsnPercent.String(), le.VatPercent.String())
	return err
}

func (s queries) GetCostItem(ctx context.Context, id billing.CostItemID) (*billing.CostItem, error) {
	var c billing.CostItem
	err := s.q.QueryRowContext(ctx, `SELECT id, name FROM cost_items WHERE id = ?`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s queries) SaveCostItem(ctx context.Context, c billing.CostItem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO cost_items (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, c.ID, c.Name)
	return err
}

const incomeColumns = `id, service_id, period_id, legal_entity_id, amount, received_at, created_by`

func scanIncome(row interface{ Scan(...any) error }) (billing.Income, error) {
	var (
		in       billing.Income
		periodID sql.NullString
		amount   int64
		received string
	)
	if err := row.Scan(&in.ID, &in.ServiceID, &periodID, &in.LegalEntityID, &amount, &received, &in.CreatedBy); err != nil {
		return in, err
	}
	if periodID.Valid {
		id := billing.PeriodID(periodID.String)
		in.PeriodID = &id
	}
	in.Amount = billing.Money(amount)
	var err error
	in.ReceivedAt, err = billing.ParseDate(received)
	return in, err
}

func (s queries) GetIncome(ctx context.Context, id billing.IncomeID) (*billing.Income, error) {
	in, err := scanIncome(s.q.QueryRowContext(ctx, `SELECT `+incomeColumns+` FROM incomes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (s queries) SaveIncome(ctx context.Context, in billing.Income) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO incomes (`+incomeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			service_id = excluded.service_id, period_id = excluded.period_id,
			legal_entity_id = excluded.legal_entity_id, amount = excluded.amount,
			received_at = excluded.received_at`,
		in.ID, in.ServiceID, nullID(in.PeriodID), in.LegalEntityID, int64(in.Amount), in.ReceivedAt.String(), in.CreatedBy)
	return err
}

func (s queries) ListIncomes(ctx context.Context, f billing.IncomeFilter) ([]billing.Income, error) {
	query := `SELECT ` + incomeColumns + ` FROM incomes WHERE 1 = 1`
	var args []any
	if f.LegalEntityID != "" {
		query += ` AND legal_entity_id = ?`
		args = append(args, f.LegalEntityID)
	}
	if f.From != nil {
		query += ` AND received_at >= ?`
		args = append(args, f.From.String())
	}
	if f.To != nil {
		query += ` AND received_at <= ?`
		args = append(args, f.To.String())
	}
	query += ` ORDER BY received_at ASC, rowid ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Income
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

const expenseColumns = `id, cost_item_id, legal_entity_id, service_id, period_id, amount, spent_at,
	comment, source_income_id, created_by, created_at`

func (s queries) InsertExpense(ctx context.Context, e billing.Expense) error {
	var source any
	if e.SourceIncomeID != nil {
		source = string(*e.SourceIncomeID)
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CostItemID, e.LegalEntityID, e.ServiceID, nullID(e.PeriodID), int64(e.Amount), e.SpentAt.String(),
		e.Comment, source, e.CreatedBy, formatTime(e.CreatedAt))
	return conflict(err)
}

func (s queries) ListExpensesBySourceIncome(ctx context.Context, incomeID billing.IncomeID) ([]billing.Expense, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE source_income_id = ?
		ORDER BY rowid ASC`, incomeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Expense
	for rows.Next() {
		var (
			e              billing.Expense
			periodID       sql.NullString
			amount         int64
			spent, created string
			source         sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CostItemID, &e.LegalEntityID, &e.ServiceID, &periodID, &amount, &spent,
			&e.Comment, &source, &e.CreatedBy, &created); err != nil {
			return nil, err
		}
		if periodID.Valid {
			id := billing.PeriodID(periodID.String)
			e.PeriodID = &id
		}
		if source.Valid {
			id := billing.IncomeID(source.String)
			e.SourceIncomeID = &id
		}
		e.Amount = billing.Money(amount)
		if e.SpentAt, err = billing.ParseDate(spent); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// conflict maps a UNIQUE violation to billing.ErrConflict.
func conflict(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return billing.ErrConflict
	}
	return err
}

func nullDate(d *billing.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullDate(s sql.NullString) (*billing.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := billing.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullID(id *billing.PeriodID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

var _ billing.TxStore = (*Store)(nil)
