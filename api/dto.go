/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  billing records so fields can be renamed without touching the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

ENCODING:
  - Money is an integer count of minor units ("amount": 80000 is 800.00).
  - Dates are "YYYY-MM-DD" strings.
  - Tax rates are decimal strings or numbers ("usn_percent": "6").

VALIDATION:
  Validation is done by the engine, not in DTOs. DTOs are pure data
  carriers; malformed JSON or dates are rejected while decoding.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-billing/billing"
)

// =============================================================================
// OWNERSHIP CHAIN
// =============================================================================

type ClientDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SellerID string `json:"seller_id"`
}

type SiteDTO struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Domain   string `json:"domain"`
}

type ServiceDTO struct {
	ID                       string        `json:"id"`
	SiteID                   string        `json:"site_id"`
	Name                     string        `json:"name"`
	StartDate                billing.Date  `json:"start_date"`
	EndDate                  *billing.Date `json:"end_date,omitempty"`
	Cadence                  string        `json:"cadence"`
	Price                    int64         `json:"price"`
	Status                   string        `json:"status"`
	AccountManagerID         string        `json:"account_manager_id"`
	CreatedBy                string        `json:"created_by,omitempty"`
	SellerCommission         int64         `json:"seller_commission"`
	AccountManagerCommission int64         `json:"account_manager_commission"`
	AccountManagerFee        int64         `json:"account_manager_fee"`
}

// =============================================================================
// PERIODS
// =============================================================================

type PeriodDTO struct {
	ID                 string       `json:"id"`
	ServiceID          string       `json:"service_id"`
	DateFrom           billing.Date `json:"date_from"`
	DateTo             billing.Date `json:"date_to"`
	Type               string       `json:"type"`
	ExpectedAmount     *int64       `json:"expected_amount,omitempty"`
	InvoiceNotRequired bool         `json:"invoice_not_required"`
	CreatedBy          string       `json:"created_by,omitempty"`
	CreatedAt          string       `json:"created_at,omitempty"`
	UpdatedAt          string       `json:"updated_at,omitempty"`
}

type CalendarRowDTO struct {
	DateFrom        billing.Date `json:"date_from"`
	DateTo          billing.Date `json:"date_to"`
	IsInvoicePeriod bool         `json:"is_invoice_period"`
	PeriodID        *string      `json:"period_id,omitempty"`
	PeriodType      string       `json:"period_type,omitempty"`
	ExpectedAmount  int64        `json:"expected_amount"`
	InvoiceCount    int          `json:"invoice_count"`
}

type CalendarDTO struct {
	ServiceID string           `json:"service_id"`
	Horizon   billing.Date     `json:"horizon"`
	Rows      []CalendarRowDTO `json:"rows"`
	Unmatched []PeriodDTO      `json:"unmatched"`
}

type CreatePeriodRequest struct {
	DateFrom           billing.Date `json:"date_from"`
	DateTo             billing.Date `json:"date_to"`
	Type               string       `json:"type"`
	ExpectedAmount     *int64       `json:"expected_amount"`
	InvoiceNotRequired bool         `json:"invoice_not_required"`
}

type ConfirmPeriodRequest struct {
	DateFrom billing.Date `json:"date_from"`
	Today    billing.Date `json:"today"` // optional, defaults to the server date
}

type UpdatePeriodRequest struct {
	Type                *string `json:"type"`
	ExpectedAmount      *int64  `json:"expected_amount"`
	ClearExpectedAmount bool    `json:"clear_expected_amount"`
	InvoiceNotRequired  *bool   `json:"invoice_not_required"`
}

type AdjustPeriodRequest struct {
	DateTo  billing.Date `json:"date_to"`
	Cascade bool         `json:"cascade"`
}

type AdjustPeriodResponse struct {
	Changed []PeriodDTO `json:"changed"`
}

type CommissionDTO struct {
	Periods              int   `json:"periods"`
	SellerAmount         int64 `json:"seller_amount"`
	AccountManagerAmount int64 `json:"account_manager_amount"`
	AccountManagerFee    int64 `json:"account_manager_fee"`
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceDTO struct {
	ID                   string       `json:"id"`
	PeriodID             string       `json:"period_id"`
	ClientID             string       `json:"client_id"`
	Amount               int64        `json:"amount"`
	CoverageFrom         billing.Date `json:"coverage_from"`
	CoverageTo           billing.Date `json:"coverage_to"`
	InvoiceNumber        string       `json:"invoice_number"`
	LegalEntityID        string       `json:"legal_entity_id,omitempty"`
	InvoiceNotRequired   bool         `json:"invoice_not_required"`
	PDFGeneratedAt       string       `json:"pdf_generated_at,omitempty"`
	PubliclyDownloadable bool         `json:"publicly_downloadable"`
	CreatedBy            string       `json:"created_by,omitempty"`
	CreatedAt            string       `json:"created_at,omitempty"`
}

type InvoiceLineDTO struct {
	ID          string `json:"id"`
	InvoiceID   string `json:"invoice_id"`
	PeriodID    string `json:"period_id"`
	Amount      int64  `json:"amount"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type PaymentDTO struct {
	ID        string       `json:"id"`
	InvoiceID string       `json:"invoice_id"`
	Amount    int64        `json:"amount"`
	PaidAt    billing.Date `json:"paid_at"`
	Comment   string       `json:"comment,omitempty"`
	CreatedBy string       `json:"created_by,omitempty"`
}

type InvoiceSummaryDTO struct {
	Invoice     InvoiceDTO       `json:"invoice"`
	Lines       []InvoiceLineDTO `json:"lines"`
	Payments    []PaymentDTO     `json:"payments"`
	Paid        int64            `json:"paid"`
	Outstanding int64            `json:"outstanding"`
}

type BalanceDTO struct {
	InvoiceID   string `json:"invoice_id"`
	Outstanding int64  `json:"outstanding"`
}

type PublicInvoiceDTO struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	Downloadable  bool   `json:"downloadable"`
}

type CreateInvoiceRequest struct {
	PeriodID           string       `json:"period_id"`
	Amount             int64        `json:"amount"`
	CoverageFrom       billing.Date `json:"coverage_from"`
	CoverageTo         billing.Date `json:"coverage_to"`
	LegalEntityID      string       `json:"legal_entity_id"`
	InvoiceNumber      string       `json:"invoice_number"`
	InvoiceNotRequired bool         `json:"invoice_not_required"`
	LineTitle          string       `json:"line_title"`
}

type UpdateInvoiceRequest struct {
	InvoiceNumber      *string       `json:"invoice_number"`
	CoverageFrom       *billing.Date `json:"coverage_from"`
	CoverageTo         *billing.Date `json:"coverage_to"`
	LegalEntityID      *string       `json:"legal_entity_id"`
	InvoiceNotRequired *bool         `json:"invoice_not_required"`
}

type MarkPDFRequest struct {
	GeneratedAt *time.Time `json:"generated_at"`
}

type AddLineRequest struct {
	PeriodID    string `json:"period_id"`
	Amount      int64  `json:"amount"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateLineRequest struct {
	Amount int64 `json:"amount"`
}

type RecordPaymentRequest struct {
	Amount  int64         `json:"amount"`
	PaidAt  *billing.Date `json:"paid_at"`
	Comment string        `json:"comment"`
}

// =============================================================================
// ACCOUNTING
// =============================================================================

type LegalEntityDTO struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	UsnPercent decimal.Decimal `json:"usn_percent"`
	VatPercent decimal.Decimal `json:"vat_percent"`
}

type CostItemDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type IncomeDTO struct {
	ID            string       `json:"id"`
	ServiceID     string       `json:"service_id"`
	PeriodID      *string      `json:"period_id,omitempty"`
	LegalEntityID string       `json:"legal_entity_id"`
	Amount        int64        `json:"amount"`
	ReceivedAt    billing.Date `json:"received_at"`
	CreatedBy     string       `json:"created_by,omitempty"`
}

type ExpenseDTO struct {
	ID             string       `json:"id"`
	CostItemID     string       `json:"cost_item_id"`
	LegalEntityID  string       `json:"legal_entity_id"`
	ServiceID      string       `json:"service_id"`
	PeriodID       *string      `json:"period_id,omitempty"`
	Amount         int64        `json:"amount"`
	SpentAt        billing.Date `json:"spent_at"`
	Comment        string       `json:"comment,omitempty"`
	SourceIncomeID *string      `json:"source_income_id,omitempty"`
}

type BulkTaxRequest struct {
	LegalEntityID string        `json:"legal_entity_id"`
	IncomeIDs     []string      `json:"income_ids"`
	From          *billing.Date `json:"from"`
	To            *billing.Date `json:"to"`
	CostItemID    string        `json:"cost_item_id"`
	CostItemIDVat *string       `json:"cost_item_id_vat"`
}

type SkippedIncomeDTO struct {
	IncomeID string `json:"income_id"`
	Reason   string `json:"reason"`
}

type FailedIncomeDTO struct {
	IncomeID string `json:"income_id"`
	Error    string `json:"error"`
}

type BulkTaxResponse struct {
	Created []ExpenseDTO       `json:"created"`
	Skipped []SkippedIncomeDTO `json:"skipped"`
	Failed  []FailedIncomeDTO  `json:"failed"`
	Total   int64              `json:"total"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func optMoney(m *billing.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}

func optStr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toServiceDTO(s billing.Service) ServiceDTO {
	return ServiceDTO{
		ID:                       string(s.ID),
		SiteID:                   string(s.SiteID),
		Name:                     s.Name,
		StartDate:                s.StartDate,
		EndDate:                  s.EndDate,
		Cadence:                  string(s.Cadence),
		Price:                    int64(s.Price),
		Status:                   string(s.Status),
		AccountManagerID:         string(s.AccountManagerID),
		CreatedBy:                string(s.CreatedBy),
		SellerCommission:         int64(s.SellerCommission),
		AccountManagerCommission: int64(s.AccountManagerCommission),
		AccountManagerFee:        int64(s.AccountManagerFee),
	}
}

func toPeriodDTO(p billing.Period) PeriodDTO {
	return PeriodDTO{
		ID:                 string(p.ID),
		ServiceID:          string(p.ServiceID),
		DateFrom:           p.DateFrom,
		DateTo:             p.DateTo,
		Type:               string(p.Type),
		ExpectedAmount:     optMoney(p.ExpectedAmount),
		InvoiceNotRequired: p.InvoiceNotRequired,
		CreatedBy:          string(p.CreatedBy),
		CreatedAt:          timestamp(p.CreatedAt),
		UpdatedAt:          timestamp(p.UpdatedAt),
	}
}

func toPeriodDTOs(ps []billing.Period) []PeriodDTO {
	dtos := make([]PeriodDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPeriodDTO(p)
	}
	return dtos
}

func toCalendarDTO(c billing.Calendar) CalendarDTO {
	rows := make([]CalendarRowDTO, len(c.Rows))
	for i, v := range c.Rows {
		rows[i] = CalendarRowDTO{
			DateFrom:        v.DateFrom,
			DateTo:          v.DateTo,
			IsInvoicePeriod: v.IsInvoicePeriod,
			PeriodID:        optStr(v.PersistedPeriodID),
			PeriodType:      string(v.PeriodType),
			ExpectedAmount:  int64(v.ExpectedAmount),
			InvoiceCount:    v.InvoiceCount,
		}
	}
	return CalendarDTO{
		ServiceID: string(c.Service.ID),
		Horizon:   c.Horizon,
		Rows:      rows,
		Unmatched: toPeriodDTOs(c.Unmatched),
	}
}

func toInvoiceDTO(inv billing.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:                   string(inv.ID),
		PeriodID:             string(inv.PeriodID),
		ClientID:             string(inv.ClientID),
		Amount:               int64(inv.Amount),
		CoverageFrom:         inv.CoverageFrom,
		CoverageTo:           inv.CoverageTo,
		InvoiceNumber:        inv.InvoiceNumber,
		LegalEntityID:        string(inv.LegalEntityID),
		InvoiceNotRequired:   inv.InvoiceNotRequired,
		PubliclyDownloadable: inv.PubliclyDownloadable(),
		CreatedBy:            string(inv.CreatedBy),
		CreatedAt:            timestamp(inv.CreatedAt),
	}
	if inv.PDFGeneratedAt != nil {
		dto.PDFGeneratedAt = timestamp(*inv.PDFGeneratedAt)
	}
	return dto
}

func toLineDTO(l billing.InvoiceLine) InvoiceLineDTO {
	return InvoiceLineDTO{
		ID:          string(l.ID),
		InvoiceID:   string(l.InvoiceID),
		PeriodID:    string(l.PeriodID),
		Amount:      int64(l.Amount),
		Title:       l.Title,
		Description: l.Description,
	}
}

func toPaymentDTO(p billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        string(p.ID),
		InvoiceID: string(p.InvoiceID),
		Amount:    int64(p.Amount),
		PaidAt:    p.PaidAt,
		Comment:   p.Comment,
		CreatedBy: string(p.CreatedBy),
	}
}

func toSummaryDTO(s billing.InvoiceSummary) InvoiceSummaryDTO {
	dto := InvoiceSummaryDTO{
		Invoice:     toInvoiceDTO(s.Invoice),
		Lines:       make([]InvoiceLineDTO, len(s.Lines)),
		Payments:    make([]PaymentDTO, len(s.Payments)),
		Paid:        int64(s.Paid),
		Outstanding: int64(s.Outstanding),
	}
	for i, l := range s.Lines {
		dto.Lines[i] = toLineDTO(l)
	}
	for i, p := range s.Payments {
		dto.Payments[i] = toPaymentDTO(p)
	}
	return dto
}

func toIncomeDTO(in billing.Income) IncomeDTO {
	return IncomeDTO{
		ID:            string(in.ID),
		ServiceID:     string(in.ServiceID),
		PeriodID:      optStr(in.PeriodID),
		LegalEntityID: string(in.LegalEntityID),
		Amount:        int64(in.Amount),
		ReceivedAt:    in.ReceivedAt,
		CreatedBy:     string(in.CreatedBy),
	}
}

func toExpenseDTO(e billing.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:             string(e.ID),
		CostItemID:     string(e.CostItemID),
		LegalEntityID:  string(e.LegalEntityID),
		ServiceID:      string(e.ServiceID),
		PeriodID:       optStr(e.PeriodID),
		Amount:         int64(e.Amount),
		SpentAt:        e.SpentAt,
		Comment:        e.Comment,
		SourceIncomeID: optStr(e.SourceIncomeID),
	}
}

func toBulkTaxResponse(r billing.BulkTaxResult) BulkTaxResponse {
	resp := BulkTaxResponse{
		Created: make([]ExpenseDTO, len(r.Created)),
		Skipped: make([]SkippedIncomeDTO, len(r.Skipped)),
		Failed:  make([]FailedIncomeDTO, len(r.Failed)),
		Total:   int64(r.Total),
	}
	for i, e := range r.Created {
		resp.Created[i] = toExpenseDTO(e)
	}
	for i, s := range r.Skipped {
		resp.Skipped[i] = SkippedIncomeDTO{IncomeID: string(s.IncomeID), Reason: string(s.Reason)}
	}
	for i, f := range r.Failed {
		resp.Failed[i] = FailedIncomeDTO{IncomeID: string(f.IncomeID), Error: f.Err.Error()}
	}
	return resp
}

// =============================================================================
// REFERENCE DATA REQUESTS
// =============================================================================

type CreateClientRequest struct {
	Name     string `json:"name"`
	SellerID string `json:"seller_id"`
}

type CreateSiteRequest struct {
	ClientID string `json:"client_id"`
	Domain   string `json:"domain"`
}

type CreateServiceRequest struct {
	SiteID                   string        `json:"site_id"`
	Name                     string        `json:"name"`
	StartDate                billing.Date  `json:"start_date"`
	EndDate                  *billing.Date `json:"end_date"`
	Cadence                  string        `json:"cadence"`
	Price                    int64         `json:"price"`
	Status                   string        `json:"status"` // defaults to active
	AccountManagerID         string        `json:"account_manager_id"`
	SellerCommission         int64         `json:"seller_commission"`
	AccountManagerCommission int64         `json:"account_manager_commission"`
	AccountManagerFee        int64         `json:"account_manager_fee"`
}

type CreateLegalEntityRequest struct {
	Name       string          `json:"name"`
	UsnPercent decimal.Decimal `json:"usn_percent"`
	VatPercent decimal.Decimal `json:"vat_percent"`
}

type CreateCostItemRequest struct {
	Name string `json:"name"`
}

type CreateIncomeRequest struct {
	ServiceID     string       `json:"service_id"`
	PeriodID      *string      `json:"period_id"`
	LegalEntityID string       `json:"legal_entity_id"`
	Amount        int64        `json:"amount"`
	ReceivedAt    billing.Date `json:"received_at"`
}
