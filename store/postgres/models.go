package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-billing/billing"
)

// =============================================================================
// ROW MODELS - gorm mappings of the billing records
// =============================================================================

type clientRow struct {
	ID       string `gorm:"primaryKey;type:text"`
	Name     string `gorm:"not null"`
	SellerID string `gorm:"index"`
}

func (clientRow) TableName() string { return "clients" }

type siteRow struct {
	ID       string `gorm:"primaryKey;type:text"`
	ClientID string `gorm:"not null;index"`
	Domain   string
}

func (siteRow) TableName() string { return "sites" }

type serviceRow struct {
	ID                       string `gorm:"primaryKey;type:text"`
	SiteID                   string `gorm:"not null;index"`
	Name                     string
	StartDate                time.Time  `gorm:"type:date;not null"`
	EndDate                  *time.Time `gorm:"type:date"`
	Cadence                  string     `gorm:"not null"`
	Price                    int64      `gorm:"not null"`
	Status                   string     `gorm:"not null"`
	AccountManagerID         string     `gorm:"index"`
	CreatedBy                string
	SellerCommission         int64 `gorm:"not null"`
	AccountManagerCommission int64 `gorm:"not null"`
	AccountManagerFee        int64 `gorm:"not null"`
}

func (serviceRow) TableName() string { return "services" }

type periodRow struct {
	ID                 string    `gorm:"primaryKey;type:text"`
	ServiceID          string    `gorm:"not null;index:idx_periods_service_from,priority:1"`
	DateFrom           time.Time `gorm:"type:date;not null;index:idx_periods_service_from,priority:2"`
	DateTo             time.Time `gorm:"type:date;not null"`
	Type               string    `gorm:"not null"`
	ExpectedAmount     *int64
	InvoiceNotRequired bool `gorm:"not null"`
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (periodRow) TableName() string { return "periods" }

type invoiceRow struct {
	ID                 string    `gorm:"primaryKey;type:text"`
	PeriodID           string    `gorm:"not null;index"`
	ClientID           string    `gorm:"not null;index"`
	Amount             int64     `gorm:"not null"`
	CoverageFrom       time.Time `gorm:"type:date;not null"`
	CoverageTo         time.Time `gorm:"type:date;not null"`
	InvoiceNumber      string
	LegalEntityID      string
	InvoiceNotRequired bool `gorm:"not null"`
	PDFGeneratedAt     *time.Time
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (invoiceRow) TableName() string { return "invoices" }

type invoiceLineRow struct {
	ID          string `gorm:"primaryKey;type:text"`
	InvoiceID   string `gorm:"not null;uniqueIndex:idx_invoice_lines_invoice_period,priority:1"`
	PeriodID    string `gorm:"not null;uniqueIndex:idx_invoice_lines_invoice_period,priority:2;index"`
	Amount      int64  `gorm:"not null"`
	Title       string
	Description string
	CreatedAt   time.Time
}

func (invoiceLineRow) TableName() string { return "invoice_lines" }

type paymentRow struct {
	ID        string    `gorm:"primaryKey;type:text"`
	InvoiceID string    `gorm:"not null;index"`
	Amount    int64     `gorm:"not null"`
	PaidAt    time.Time `gorm:"type:date;not null"`
	Comment   string
	CreatedBy string
	CreatedAt time.Time
}

func (paymentRow) TableName() string { return "payments" }

type legalEntityRow struct {
	ID         string          `gorm:"primaryKey;type:text"`
	Name       string          `gorm:"not null"`
	UsnPercent decimal.Decimal `gorm:"type:numeric(7,4);not null"`
	VatPercent decimal.Decimal `gorm:"type:numeric(7,4);not null"`
}

func (legalEntityRow) TableName() string { return "legal_entities" }

type costItemRow struct {
	ID   string `gorm:"primaryKey;type:text"`
	Name string `gorm:"not null"`
}

func (costItemRow) TableName() string { return "cost_items" }

type incomeRow struct {
	ID            string `gorm:"primaryKey;type:text"`
	ServiceID     string `gorm:"not null;index"`
	PeriodID      *string
	LegalEntityID string    `gorm:"index:idx_incomes_entity_received,priority:1"`
	Amount        int64     `gorm:"not null"`
	ReceivedAt    time.Time `gorm:"type:date;not null;index:idx_incomes_entity_received,priority:2"`
	CreatedBy     string
}

func (incomeRow) TableName() string { return "incomes" }

type expenseRow struct {
	ID             string `gorm:"primaryKey;type:text"`
	CostItemID     string `gorm:"not null;uniqueIndex:idx_expenses_source_cost_item,priority:2"`
	LegalEntityID  string
	ServiceID      string
	PeriodID       *string
	Amount         int64     `gorm:"not null"`
	SpentAt        time.Time `gorm:"type:date;not null"`
	Comment        string
	SourceIncomeID *string `gorm:"uniqueIndex:idx_expenses_source_cost_item,priority:1"`
	CreatedBy      string
	CreatedAt      time.Time
}

func (expenseRow) TableName() string { return "expenses" }

func allModels() []any {
	return []any{
		&clientRow{}, &siteRow{}, &serviceRow{}, &periodRow{},
		&invoiceRow{}, &invoiceLineRow{}, &paymentRow{},
		&legalEntityRow{}, &costItemRow{}, &incomeRow{}, &expenseRow{},
	}
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func dateTime(d billing.Date) time.Time { return d.Time }

func fromTime(t time.Time) billing.Date { return billing.NewDate(t.Year(), t.Month(), t.Day()) }

func optString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func optID[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}

func toServiceRow(s billing.Service) serviceRow {
	row := serviceRow{
		ID:                       string(s.ID),
		SiteID:                   string(s.SiteID),
		Name:                     s.Name,
		StartDate:                dateTime(s.StartDate),
		Cadence:                  string(s.Cadence),
		Price:                    int64(s.Price),
		Status:                   string(s.Status),
		AccountManagerID:         string(s.AccountManagerID),
		CreatedBy:                string(s.CreatedBy),
		SellerCommission:         int64(s.SellerCommission),
		AccountManagerCommission: int64(s.AccountManagerCommission),
		AccountManagerFee:        int64(s.AccountManagerFee),
	}
	if s.EndDate != nil {
		t := dateTime(*s.EndDate)
		row.EndDate = &t
	}
	return row
}

func (r serviceRow) domain() billing.Service {
	s := billing.Service{
		ID:                       billing.ServiceID(r.ID),
		SiteID:                   billing.SiteID(r.SiteID),
		Name:                     r.Name,
		StartDate:                fromTime(r.StartDate),
		Cadence:                  billing.Cadence(r.Cadence),
		Price:                    billing.Money(r.Price),
		Status:                   billing.ServiceStatus(r.Status),
		AccountManagerID:         billing.EmployeeID(r.AccountManagerID),
		CreatedBy:                billing.EmployeeID(r.CreatedBy),
		SellerCommission:         billing.Money(r.SellerCommission),
		AccountManagerCommission: billing.Money(r.AccountManagerCommission),
		AccountManagerFee:        billing.Money(r.AccountManagerFee),
	}
	if r.EndDate != nil {
		d := fromTime(*r.EndDate)
		s.EndDate = &d
	}
	return s
}

func toPeriodRow(p billing.Period) periodRow {
	row := periodRow{
		ID:                 string(p.ID),
		ServiceID:          string(p.ServiceID),
		DateFrom:           dateTime(p.DateFrom),
		DateTo:             dateTime(p.DateTo),
		Type:               string(p.Type),
		InvoiceNotRequired: p.InvoiceNotRequired,
		CreatedBy:          string(p.CreatedBy),
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.ExpectedAmount != nil {
		v := int64(*p.ExpectedAmount)
		row.ExpectedAmount = &v
	}
	return row
}

func (r periodRow) domain() billing.Period {
	p := billing.Period{
		ID:                 billing.PeriodID(r.ID),
		ServiceID:          billing.ServiceID(r.ServiceID),
		DateFrom:           fromTime(r.DateFrom),
		DateTo:             fromTime(r.DateTo),
		Type:               billing.PeriodType(r.Type),
		InvoiceNotRequired: r.InvoiceNotRequired,
		CreatedBy:          billing.EmployeeID(r.CreatedBy),
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.ExpectedAmount != nil {
		m := billing.Money(*r.ExpectedAmount)
		p.ExpectedAmount = &m
	}
	return p
}

func toInvoiceRow(inv billing.Invoice) invoiceRow {
	return invoiceRow{
		ID:                 string(inv.ID),
		PeriodID:           string(inv.PeriodID),
		ClientID:           string(inv.ClientID),
		Amount:             int64(inv.Amount),
		CoverageFrom:       dateTime(inv.CoverageFrom),
		CoverageTo:         dateTime(inv.CoverageTo),
		InvoiceNumber:      inv.InvoiceNumber,
		LegalEntityID:      string(inv.LegalEntityID),
		InvoiceNotRequired: inv.InvoiceNotRequired,
		PDFGeneratedAt:     inv.PDFGeneratedAt,
		CreatedBy:          string(inv.CreatedBy),
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

func (r invoiceRow) domain() billing.Invoice {
	inv := billing.Invoice{
		ID:                 billing.InvoiceID(r.ID),
		PeriodID:           billing.PeriodID(r.PeriodID),
		ClientID:           billing.ClientID(r.ClientID),
		Amount:             billing.Money(r.Amount),
		CoverageFrom:       fromTime(r.CoverageFrom),
		CoverageTo:         fromTime(r.CoverageTo),
		InvoiceNumber:      r.InvoiceNumber,
		LegalEntityID:      billing.LegalEntityID(r.LegalEntityID),
		InvoiceNotRequired: r.InvoiceNotRequired,
		CreatedBy:          billing.EmployeeID(r.CreatedBy),
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.PDFGeneratedAt != nil {
		t := r.PDFGeneratedAt.UTC()
		inv.PDFGeneratedAt = &t
	}
	return inv
}

func toLineRow(l billing.InvoiceLine) invoiceLineRow {
	return invoiceLineRow{
		ID:          string(l.ID),
		InvoiceID:   string(l.InvoiceID),
		PeriodID:    string(l.PeriodID),
		Amount:      int64(l.Amount),
		Title:       l.Title,
		Description: l.Description,
		CreatedAt:   l.CreatedAt,
	}
}

func (r invoiceLineRow) domain() billing.InvoiceLine {
	return billing.InvoiceLine{
		ID:          billing.InvoiceLineID(r.ID),
		InvoiceID:   billing.InvoiceID(r.InvoiceID),
		PeriodID:    billing.PeriodID(r.PeriodID),
		Amount:      billing.Money(r.Amount),
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func toPaymentRow(p billing.Payment) paymentRow {
	return paymentRow{
		ID:        string(p.ID),
		InvoiceID: string(p.InvoiceID),
		Amount:    int64(p.Amount),
		PaidAt:    dateTime(p.PaidAt),
		Comment:   p.Comment,
		CreatedBy: string(p.CreatedBy),
		CreatedAt: p.CreatedAt,
	}
}

func (r paymentRow) domain() billing.Payment {
	return billing.Payment{
		ID:        billing.PaymentID(r.ID),
		InvoiceID: billing.InvoiceID(r.InvoiceID),
		Amount:    billing.Money(r.Amount),
		PaidAt:    fromTime(r.PaidAt),
		Comment:   r.Comment,
		CreatedBy: billing.EmployeeID(r.CreatedBy),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func toIncomeRow(in billing.Income) incomeRow {
	return incomeRow{
		ID:            string(in.ID),
		ServiceID:     string(in.ServiceID),
		PeriodID:      optString(in.PeriodID),
		LegalEntityID: string(in.LegalEntityID),
		Amount:        int64(in.Amount),
		ReceivedAt:    dateTime(in.ReceivedAt),
		CreatedBy:     string(in.CreatedBy),
	}
}

func (r incomeRow) domain() billing.Income {
	return billing.Income{
		ID:            billing.IncomeID(r.ID),
		ServiceID:     billing.ServiceID(r.ServiceID),
		PeriodID:      optID[billing.PeriodID](r.PeriodID),
		LegalEntityID: billing.LegalEntityID(r.LegalEntityID),
		Amount:        billing.Money(r.Amount),
		ReceivedAt:    fromTime(r.ReceivedAt),
		CreatedBy:     billing.EmployeeID(r.CreatedBy),
	}
}

func toExpenseRow(e billing.Expense) expenseRow {
	return expenseRow{
		ID:             string(e.ID),
		CostItemID:     string(e.CostItemID),
		LegalEntityID:  string(e.LegalEntityID),
		ServiceID:      string(e.ServiceID),
		PeriodID:       optString(e.PeriodID),
		Amount:         int64(e.Amount),
		SpentAt:        dateTime(e.SpentAt),
		Comment:        e.Comment,
		SourceIncomeID: optString(e.SourceIncomeID),
		CreatedBy:      string(e.CreatedBy),
		CreatedAt:      e.CreatedAt,
	}
}

func (r expenseRow) domain() billing.Expense {
	return billing.Expense{
		ID:             billing.ExpenseID(r.ID),
		CostItemID:     billing.CostItemID(r.CostItemID),
		LegalEntityID:  billing.LegalEntityID(r.LegalEntityID),
		ServiceID:      billing.ServiceID(r.ServiceID),
		PeriodID:       optID[billing.PeriodID](r.PeriodID),
		Amount:         billing.Money(r.Amount),
		SpentAt:        fromTime(r.SpentAt),
		Comment:        r.Comment,
		SourceIncomeID: optID[billing.IncomeID](r.SourceIncomeID),
		CreatedBy:      billing.EmployeeID(r.CreatedBy),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}
