/*
Package billing provides the billing-period scheduler and financial
reconciliation engine of the agency back-office.

PURPOSE:
  Services bill on a cadence. This package derives the calendar of periods a
  service is expected to generate, reconciles that calendar against periods
  actually recorded, lets an operator shift a period boundary (optionally
  cascading the shift through later periods), aggregates periods into
  invoices with payments, and derives commission and tax expense amounts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: type-safe ids for every record kind
  - Client / Site / Service: the ownership chain a period hangs off
  - Period, Invoice, InvoiceLine, Payment: the billing records
  - Income, Expense, LegalEntity, CostItem: the accounting records

DESIGN PRINCIPLES:
  1. Money is integer minor units (see money.go). No float anywhere.
  2. Derived values (invoice outstanding balance) are computed on read.
  3. The caller passes an explicit Actor into every Engine call.
  4. Pure functions (Generate, Reconcile, PlanAdjustment, ComputeTax) hold
     the algorithms; Engine wires them to the Store.

SEE ALSO:
  - period.go:     Period Generator
  - reconcile.go:  Period Reconciler
  - adjust.go:     Period Adjuster
  - invoice.go:    Invoice Ledger
  - tax.go:        Commission & Tax Expense Calculator
  - access.go:     Access Scope Resolver
  - engine.go:     Store-backed facade used by request handlers
*/
package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type SiteID string
type ServiceID string
type PeriodID string
type InvoiceID string
type InvoiceLineID string
type PaymentID string
type IncomeID string
type ExpenseID string
type LegalEntityID string
type CostItemID string
type EmployeeID string

// NewID returns a random identifier suitable for any record kind.
func NewID() string { return uuid.NewString() }

// =============================================================================
// OWNERSHIP CHAIN - Client -> Site -> Service
// =============================================================================

type Client struct {
	ID       ClientID
	Name     string
	SellerID EmployeeID // employee who sold the client
}

type Site struct {
	ID       SiteID
	ClientID ClientID
	Domain   string
}

// Cadence is the billing frequency policy of a Service.
type Cadence string

const (
	CadenceOneTime Cadence = "one_time"
	CadenceMonthly Cadence = "monthly"
	// CadenceQuarterly generates monthly periods. Existing services were
	// persisted that way and their period semantics must not change.
	CadenceQuarterly Cadence = "quarterly"
	CadenceYearly    Cadence = "yearly"
)

func (c Cadence) Valid() bool {
	switch c {
	case CadenceOneTime, CadenceMonthly, CadenceQuarterly, CadenceYearly:
		return true
	}
	return false
}

type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "active"
	ServicePaused   ServiceStatus = "paused"
	ServiceFinished ServiceStatus = "finished"
)

type Service struct {
	ID               ServiceID
	SiteID           SiteID
	Name             string
	StartDate        Date
	EndDate          *Date
	Cadence          Cadence
	Price            Money // default expected amount per period
	Status           ServiceStatus
	AccountManagerID EmployeeID
	CreatedBy        EmployeeID

	// Per-period amounts fixed when the service was configured.
	SellerCommission         Money
	AccountManagerCommission Money
	AccountManagerFee        Money
}

// =============================================================================
// PERIOD
// =============================================================================

type PeriodType string

const (
	PeriodStandard     PeriodType = "standard"
	PeriodExtended     PeriodType = "extended"
	PeriodBonus        PeriodType = "bonus"
	PeriodCompensation PeriodType = "compensation"
)

func (t PeriodType) Valid() bool {
	switch t {
	case PeriodStandard, PeriodExtended, PeriodBonus, PeriodCompensation:
		return true
	}
	return false
}

// Period is a persisted billing interval. DateFrom and DateTo are inclusive.
type Period struct {
	ID                 PeriodID
	ServiceID          ServiceID
	DateFrom           Date
	DateTo             Date
	Type               PeriodType
	ExpectedAmount     *Money // overrides Service.Price when set
	InvoiceNotRequired bool
	CreatedBy          EmployeeID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Duration returns DateTo - DateFrom in days.
func (p Period) Duration() int { return DaysBetween(p.DateFrom, p.DateTo) }

// Intersects reports whether [DateFrom, DateTo] overlaps [from, to].
func (p Period) Intersects(from, to Date) bool {
	return !p.DateTo.Before(from) && !p.DateFrom.After(to)
}

// Expected returns the period override, or the service default.
func (p Period) Expected(defaultAmount Money) Money {
	if p.ExpectedAmount != nil {
		return *p.ExpectedAmount
	}
	return defaultAmount
}

// =============================================================================
// INVOICE / LINES / PAYMENTS
// =============================================================================

type Invoice struct {
	ID                 InvoiceID
	PeriodID           PeriodID // primary period
	ClientID           ClientID // client of the primary period
	Amount             Money    // always the sum of line amounts
	CoverageFrom       Date
	CoverageTo         Date
	InvoiceNumber      string
	LegalEntityID      LegalEntityID
	InvoiceNotRequired bool
	PDFGeneratedAt     *time.Time
	CreatedBy          EmployeeID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PubliclyDownloadable reports whether the rendered document may be served
// on the public download link.
func (i Invoice) PubliclyDownloadable() bool { return i.PDFGeneratedAt != nil }

type InvoiceLine struct {
	ID        InvoiceLineID
	InvoiceID InvoiceID
	PeriodID  PeriodID
	Amount    Money

	// Display overrides for the rendered invoice.
	Title       string
	Description string

	CreatedAt time.Time
}

type Payment struct {
	ID        PaymentID
	InvoiceID InvoiceID
	Amount    Money
	PaidAt    Date
	Comment   string
	CreatedBy EmployeeID
	CreatedAt time.Time
}

// =============================================================================
// ACCOUNTING - Income, Expense, LegalEntity, CostItem
// =============================================================================

type LegalEntity struct {
	ID         LegalEntityID
	Name       string
	UsnPercent decimal.Decimal // turnover tax rate
	VatPercent decimal.Decimal
}

type CostItem struct {
	ID   CostItemID
	Name string
}

type Income struct {
	ID            IncomeID
	ServiceID     ServiceID
	PeriodID      *PeriodID
	LegalEntityID LegalEntityID // empty when not bound to a legal entity
	Amount        Money
	ReceivedAt    Date
	CreatedBy     EmployeeID
}

type Expense struct {
	ID             ExpenseID
	CostItemID     CostItemID
	LegalEntityID  LegalEntityID
	ServiceID      ServiceID
	PeriodID       *PeriodID
	Amount         Money
	SpentAt        Date
	Comment        string
	SourceIncomeID *IncomeID // set on expenses generated from an income
	CreatedBy      EmployeeID
	CreatedAt      time.Time
}

// IncomeFilter selects incomes for bulk tax generation.
type IncomeFilter struct {
	LegalEntityID LegalEntityID
	From          *Date
	To            *Date
}
