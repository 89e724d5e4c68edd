/*
Package postgres provides a PostgreSQL implementation of billing.TxStore
built on gorm.

PURPOSE:
  Server-backed persistence for multi-instance deployments. Unlike the
  SQLite store, transactions here run concurrently, so LockService and
  LockInvoice take SELECT ... FOR UPDATE row locks for the rest of the
  transaction.

ERRORS:
  The connection is opened with TranslateError, so unique violations come
  back as gorm.ErrDuplicatedKey and are mapped to billing.ErrConflict.
  gorm.ErrRecordNotFound becomes the (nil, nil) "missing row" result.

SCHEMA:
  AutoMigrate creates every table and index from the row models in
  models.go, including the two unique indexes the engine relies on.

SEE ALSO:
  - billing/store.go:    Interface definition
  - store/sqlite:        Single-file default implementation
*/
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/warp/agency-billing/billing"
)

type Config struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Timezone string
}

func (c Config) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

// Store implements billing.TxStore using PostgreSQL.
type Store struct {
	queries
}

// Open connects to PostgreSQL. It does not migrate; call Migrate.
func Open(cfg Config) (*Store, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)

	return &Store{queries: queries{db: db}}, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(queries{db: tx})
	})
}

// queries implements billing.Store over the pool or a transaction handle.
type queries struct {
	db *gorm.DB
}

// first loads one row by primary key. ok is false when it does not exist.
func first[T any](ctx context.Context, db *gorm.DB, id string) (row T, ok bool, err error) {
	err = db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, false, nil
	}
	return row, err == nil, err
}

func upsert[T any](ctx context.Context, db *gorm.DB, row *T) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

func conflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return billing.ErrConflict
	}
	return err
}

func (s queries) lock(ctx context.Context, table, id string) error {
	var found string
	return s.db.WithContext(ctx).
		Table(table).
		Select("id").
		Where("id = ?", id).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Limit(1).
		Scan(&found).Error
}

// =============================================================================
// OWNERSHIP CHAIN
// =============================================================================

func (s queries) GetClient(ctx context.Context, id billing.ClientID) (*billing.Client, error) {
	row, ok, err := first[clientRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	return &billing.Client{ID: billing.ClientID(row.ID), Name: row.Name, SellerID: billing.EmployeeID(row.SellerID)}, nil
}

func (s queries) SaveClient(ctx context.Context, c billing.Client) error {
	return upsert(ctx, s.db, &clientRow{ID: string(c.ID), Name: c.Name, SellerID: string(c.SellerID)})
}

func (s queries) GetSite(ctx context.Context, id billing.SiteID) (*billing.Site, error) {
	row, ok, err := first[siteRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	return &billing.Site{ID: billing.SiteID(row.ID), ClientID: billing.ClientID(row.ClientID), Domain: row.Domain}, nil
}

func (s queries) SaveSite(ctx context.Context, st billing.Site) error {
	return upsert(ctx, s.db, &siteRow{ID: string(st.ID), ClientID: string(st.ClientID), Domain: st.Domain})
}

func (s queries) GetService(ctx context.Context, id billing.ServiceID) (*billing.Service, error) {
	row, ok, err := first[serviceRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	svc := row.domain()
	return &svc, nil
}

func (s queries) SaveService(ctx context.Context, svc billing.Service) error {
	row := toServiceRow(svc)
	return upsert(ctx, s.db, &row)
}

func (s queries) LockService(ctx context.Context, id billing.ServiceID) error {
	return s.lock(ctx, "services", string(id))
}

// =============================================================================
// PERIODS
// =============================================================================

func (s queries) GetPeriod(ctx context.Context, id billing.PeriodID) (*billing.Period, error) {
	row, ok, err := first[periodRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	p := row.domain()
	return &p, nil
}

func (s queries) ListPeriods(ctx context.Context, serviceID billing.ServiceID) ([]billing.Period, error) {
	var rows []periodRow
	if err := s.db.WithContext(ctx).
		Where("service_id = ?", string(serviceID)).
		Order("date_from ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]billing.Period, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func (s queries) SavePeriod(ctx context.Context, p billing.Period) error {
	row := toPeriodRow(p)
	return upsert(ctx, s.db, &row)
}

func (s queries) DeletePeriod(ctx context.Context, id billing.PeriodID) error {
	return s.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&periodRow{}).Error
}

// =============================================================================
// INVOICES AND LINES
// =============================================================================

func (s queries) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	row, ok, err := first[invoiceRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	inv := row.domain()
	return &inv, nil
}

func (s queries) SaveInvoice(ctx context.Context, inv billing.Invoice) error {
	row := toInvoiceRow(inv)
	return upsert(ctx, s.db, &row)
}

func (s queries) LockInvoice(ctx context.Context, id billing.InvoiceID) error {
	return s.lock(ctx, "invoices", string(id))
}

func (s queries) GetInvoiceLine(ctx context.Context, id billing.InvoiceLineID) (*billing.InvoiceLine, error) {
	row, ok, err := first[invoiceLineRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	l := row.domain()
	return &l, nil
}

func (s queries) ListInvoiceLines(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.InvoiceLine, error) {
	var rows []invoiceLineRow
	if err := s.db.WithContext(ctx).
		Where("invoice_id = ?", string(invoiceID)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]billing.InvoiceLine, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func (s queries) InsertInvoiceLine(ctx context.Context, l billing.InvoiceLine) error {
	row := toLineRow(l)
	return conflict(s.db.WithContext(ctx).Create(&row).Error)
}

func (s queries) UpdateInvoiceLine(ctx context.Context, l billing.InvoiceLine) error {
	return s.db.WithContext(ctx).Model(&invoiceLineRow{}).
		Where("id = ?", string(l.ID)).
		Updates(map[string]any{
			"amount":      int64(l.Amount),
			"title":       l.Title,
			"description": l.Description,
		}).Error
}

func (s queries) DeleteInvoiceLine(ctx context.Context, id billing.InvoiceLineID) error {
	return s.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&invoiceLineRow{}).Error
}

func (s queries) CountInvoicesByPeriod(ctx context.Context, serviceID billing.ServiceID) (map[billing.PeriodID]int, error) {
	var rows []struct {
		PeriodID string
		N        int
	}
	err := s.db.WithContext(ctx).
		Table("invoice_lines AS l").
		Select("l.period_id AS period_id, COUNT(DISTINCT l.invoice_id) AS n").
		Joins("JOIN periods p ON p.id = l.period_id").
		Where("p.service_id = ?", string(serviceID)).
		Group("l.period_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[billing.PeriodID]int, len(rows))
	for _, r := range rows {
		counts[billing.PeriodID(r.PeriodID)] = r.N
	}
	return counts, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s queries) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.Payment, error) {
	row, ok, err := first[paymentRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	p := row.domain()
	return &p, nil
}

func (s queries) ListPayments(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.Payment, error) {
	var rows []paymentRow
	if err := s.db.WithContext(ctx).
		Where("invoice_id = ?", string(invoiceID)).
		Order("paid_at ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]billing.Payment, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func (s queries) InsertPayment(ctx context.Context, p billing.Payment) error {
	row := toPaymentRow(p)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s queries) DeletePayment(ctx context.Context, id billing.PaymentID) error {
	return s.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&paymentRow{}).Error
}

// =============================================================================
// ACCOUNTING
// =============================================================================

func (s queries) GetLegalEntity(ctx context.Context, id billing.LegalEntityID) (*billing.LegalEntity, error) {
	row, ok, err := first[legalEntityRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	return &billing.LegalEntity{
		ID:         billing.LegalEntityID(row.ID),
		Name:       row.Name,
		UsnPercent: row.UsnPercent,
		VatPercent: row.VatPercent,
	}, nil
}

func (s queries) SaveLegalEntity(ctx context.Context, le billing.LegalEntity) error {
	return upsert(ctx, s.db, &legalEntityRow{
		ID:         string(le.ID),
		Name:       le.Name,
		UsnPercent: le.UsnPercent,
		VatPercent: le.VatPercent,
	})
}

func (s queries) GetCostItem(ctx context.Context, id billing.CostItemID) (*billing.CostItem, error) {
	row, ok, err := first[costItemRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	return &billing.CostItem{ID: billing.CostItemID(row.ID), Name: row.Name}, nil
}

func (s queries) SaveCostItem(ctx context.Context, c billing.CostItem) error {
	return upsert(ctx, s.db, &costItemRow{ID: string(c.ID), Name: c.Name})
}

func (s queries) GetIncome(ctx context.Context, id billing.IncomeID) (*billing.Income, error) {
	row, ok, err := first[incomeRow](ctx, s.db, string(id))
	if !ok {
		return nil, err
	}
	in := row.domain()
	return &in, nil
}

func (s queries) SaveIncome(ctx context.Context, in billing.Income) error {
	row := toIncomeRow(in)
	return upsert(ctx, s.db, &row)
}

func (s queries) ListIncomes(ctx context.Context, f billing.IncomeFilter) ([]billing.Income, error) {
	q := s.db.WithContext(ctx).Model(&incomeRow{})
	if f.LegalEntityID != "" {
		q = q.Where("legal_entity_id = ?", string(f.LegalEntityID))
	}
	if f.From != nil {
		q = q.Where("received_at >= ?", dateTime(*f.From))
	}
	if f.To != nil {
		q = q.Where("received_at <= ?", dateTime(*f.To))
	}
	var rows []incomeRow
	if err := q.Order("received_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]billing.Income, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func (s queries) InsertExpense(ctx context.Context, e billing.Expense) error {
	row := toExpenseRow(e)
	return conflict(s.db.WithContext(ctx).Create(&row).Error)
}

func (s queries) ListExpensesBySourceIncome(ctx context.Context, incomeID billing.IncomeID) ([]billing.Expense, error) {
	var rows []expenseRow
	if err := s.db.WithContext(ctx).
		Where("source_income_id = ?", string(incomeID)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]billing.Expense, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

var _ billing.TxStore = (*Store)(nil)
