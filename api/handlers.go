/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every billing decision to billing.Engine.

ENDPOINTS:
  Public:
    GET    /healthz                              Liveness check
    GET    /public/invoices/{id}                 Download gate for a rendered invoice

  Ownership chain (reference data):
    POST   /api/clients                          Create client
    POST   /api/sites                            Create site
    POST   /api/services                         Create service
    GET    /api/services/{id}                    Get service

  Periods:
    GET    /api/services/{id}/calendar           Reconciled period calendar
    POST   /api/services/{id}/periods            Create a manual period
    POST   /api/services/{id}/periods/confirm    Persist a generated period
    POST   /api/services/{id}/periods/{periodID}/adjust  Move a period end
    GET    /api/services/{id}/commission         Expected commission for a window
    PATCH  /api/periods/{id}                     Update period attributes
    DELETE /api/periods/{id}                     Delete an uninvoiced period

  Invoices:
    POST   /api/invoices                         Create invoice with primary line
    GET    /api/invoices/{id}                    Invoice summary
    PATCH  /api/invoices/{id}                    Update invoice attributes
    POST   /api/invoices/{id}/pdf                Mark document generated
    GET    /api/invoices/{id}/balance            Outstanding balance
    POST   /api/invoices/{id}/lines              Add a period line
    POST   /api/invoices/{id}/payments           Record a payment
    PATCH  /api/invoice-lines/{id}               Change a line amount
    DELETE /api/invoice-lines/{id}               Remove a secondary line
    DELETE /api/payments/{id}                    Delete a payment

  Accounting:
    POST   /api/legal-entities                   Create legal entity
    POST   /api/cost-items                       Create cost item
    POST   /api/incomes                          Record an income
    POST   /api/expenses/bulk-tax                Bulk-generate tax expenses

  Scenarios:
    GET    /api/scenarios                        List demo scenarios
    POST   /api/scenarios/load                   Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the actor placed on the context by Authenticator
  3. Call the engine
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid bearer token
  - 403: Actor outside own scope without a view-all grant
  - 404: Resource not found
  - 409: Conflict (overlap, duplicate line, invoiced period)
  - 429: Rate limit exceeded
  - 500: Internal errors (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/agency-billing/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *billing.Engine
	Store  billing.TxStore // reference data is written directly
	log    zerolog.Logger
}

func NewHandler(engine *billing.Engine, store billing.TxStore, log zerolog.Logger) *Handler {
	return &Handler{Engine: engine, Store: store, log: log}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// OWNERSHIP CHAIN HANDLERS
// =============================================================================

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.fail(w, required("name"))
		return
	}
	c := billing.Client{
		ID:       billing.ClientID(billing.NewID()),
		Name:     req.Name,
		SellerID: billing.EmployeeID(req.SellerID),
	}
	if err := h.Store.SaveClient(r.Context(), c); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClientDTO{ID: string(c.ID), Name: c.Name, SellerID: string(c.SellerID)})
}

func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req CreateSiteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		h.fail(w, required("client_id"))
		return
	}
	if req.Domain == "" {
		h.fail(w, required("domain"))
		return
	}
	client, err := h.Store.GetClient(r.Context(), billing.ClientID(req.ClientID))
	if err != nil {
		h.fail(w, err)
		return
	}
	if client == nil {
		h.fail(w, &billing.NotFoundError{Kind: "client", ID: req.ClientID})
		return
	}
	s := billing.Site{ID: billing.SiteID(billing.NewID()), ClientID: client.ID, Domain: req.Domain}
	if err := h.Store.SaveSite(r.Context(), s); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SiteDTO{ID: string(s.ID), ClientID: string(s.ClientID), Domain: s.Domain})
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	var req CreateServiceRequest
	if !decode(w, r, &req) {
		return
	}

	svc := billing.Service{
		ID:                       billing.ServiceID(billing.NewID()),
		SiteID:                   billing.SiteID(req.SiteID),
		Name:                     req.Name,
		StartDate:                req.StartDate,
		EndDate:                  req.EndDate,
		Cadence:                  billing.Cadence(req.Cadence),
		Price:                    billing.Money(req.Price),
		Status:                   billing.ServiceStatus(req.Status),
		AccountManagerID:         billing.EmployeeID(req.AccountManagerID),
		CreatedBy:                actor.ID,
		SellerCommission:         billing.Money(req.SellerCommission),
		AccountManagerCommission: billing.Money(req.AccountManagerCommission),
		AccountManagerFee:        billing.Money(req.AccountManagerFee),
	}
	if svc.Status == "" {
		svc.Status = billing.ServiceActive
	}
	if err := validateService(svc); err != nil {
		h.fail(w, err)
		return
	}

	site, err := h.Store.GetSite(r.Context(), svc.SiteID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if site == nil {
		h.fail(w, &billing.NotFoundError{Kind: "site", ID: req.SiteID})
		return
	}
	if err := h.Store.SaveService(r.Context(), svc); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceDTO(svc))
}

func validateService(s billing.Service) error {
	switch {
	case s.SiteID == "":
		return required("site_id")
	case s.Name == "":
		return required("name")
	case s.StartDate.IsZero():
		return required("start_date")
	case !s.Cadence.Valid():
		return &billing.ValidationError{Field: "cadence", Message: "unknown cadence " + string(s.Cadence)}
	case s.EndDate != nil && s.EndDate.Before(s.StartDate):
		return &billing.ValidationError{Field: "end_date", Message: "must not precede start_date"}
	case s.Price.IsNegative():
		return &billing.ValidationError{Field: "price", Message: "must not be negative"}
	}
	switch s.Status {
	case billing.ServiceActive, billing.ServicePaused, billing.ServiceFinished:
		return nil
	}
	return &billing.ValidationError{Field: "status", Message: "unknown status " + string(s.Status)}
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.Engine.Service(r.Context(), mustActor(r), billing.ServiceID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toServiceDTO(svc))
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// GetCalendar returns the reconciled calendar. ?today=YYYY-MM-DD overrides
// the server date used for the horizon.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	today, ok := queryDate(w, r, "today")
	if !ok {
		return
	}
	cal, err := h.Engine.PeriodCalendar(r.Context(), mustActor(r), serviceParam(r), today)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalendarDTO(cal))
}

func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Engine.CreatePeriod(r.Context(), mustActor(r), billing.CreatePeriodInput{
		ServiceID:          serviceParam(r),
		DateFrom:           req.DateFrom,
		DateTo:             req.DateTo,
		Type:               billing.PeriodType(req.Type),
		ExpectedAmount:     moneyPtr(req.ExpectedAmount),
		InvoiceNotRequired: req.InvoiceNotRequired,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(p))
}

func (h *Handler) ConfirmPeriod(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPeriodRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Engine.ConfirmPeriod(r.Context(), mustActor(r), serviceParam(r), req.DateFrom, req.Today)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(p))
}

func (h *Handler) AdjustPeriod(w http.ResponseWriter, r *http.Request) {
	var req AdjustPeriodRequest
	if !decode(w, r, &req) {
		return
	}
	periodID := billing.PeriodID(chi.URLParam(r, "periodID"))
	changed, err := h.Engine.AdjustPeriod(r.Context(), mustActor(r), serviceParam(r), periodID, req.DateTo, req.Cascade)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdjustPeriodResponse{Changed: toPeriodDTOs(changed)})
}

// GetCommission expects ?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	from, ok := queryDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to")
	if !ok {
		return
	}
	c, err := h.Engine.CommissionForRange(r.Context(), mustActor(r), serviceParam(r), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CommissionDTO{
		Periods:              c.Periods,
		SellerAmount:         int64(c.SellerAmount),
		AccountManagerAmount: int64(c.AccountManagerAmount),
		AccountManagerFee:    int64(c.AccountManagerFee),
	})
}

func (h *Handler) UpdatePeriod(w http.ResponseWriter, r *http.Request) {
	var req UpdatePeriodRequest
	if !decode(w, r, &req) {
		return
	}
	in := billing.UpdatePeriodInput{
		ExpectedAmount:      moneyPtr(req.ExpectedAmount),
		ClearExpectedAmount: req.ClearExpectedAmount,
		InvoiceNotRequired:  req.InvoiceNotRequired,
	}
	if req.Type != nil {
		t := billing.PeriodType(*req.Type)
		in.Type = &t
	}
	p, err := h.Engine.UpdatePeriod(r.Context(), mustActor(r), billing.PeriodID(chi.URLParam(r, "id")), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

func (h *Handler) DeletePeriod(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeletePeriod(r.Context(), mustActor(r), billing.PeriodID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.Engine.CreateInvoice(r.Context(), mustActor(r), billing.CreateInvoiceInput{
		PeriodID:           billing.PeriodID(req.PeriodID),
		Amount:             billing.Money(req.Amount),
		Coverage:           billing.DateRange{From: req.CoverageFrom, To: req.CoverageTo},
		LegalEntityID:      billing.LegalEntityID(req.LegalEntityID),
		InvoiceNumber:      req.InvoiceNumber,
		InvoiceNotRequired: req.InvoiceNotRequired,
		LineTitle:          req.LineTitle,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Engine.InvoiceSummary(r.Context(), mustActor(r), invoiceParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req UpdateInvoiceRequest
	if !decode(w, r, &req) {
		return
	}
	in := billing.UpdateInvoiceInput{
		InvoiceNumber:      req.InvoiceNumber,
		InvoiceNotRequired: req.InvoiceNotRequired,
	}
	if req.LegalEntityID != nil {
		le := billing.LegalEntityID(*req.LegalEntityID)
		in.LegalEntityID = &le
	}
	if req.CoverageFrom != nil || req.CoverageTo != nil {
		if req.CoverageFrom == nil || req.CoverageTo == nil {
			h.fail(w, &billing.ValidationError{Field: "coverage", Message: "coverage_from and coverage_to go together"})
			return
		}
		in.Coverage = &billing.DateRange{From: *req.CoverageFrom, To: *req.CoverageTo}
	}
	inv, err := h.Engine.UpdateInvoice(r.Context(), mustActor(r), invoiceParam(r), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// MarkPDFGenerated records that the document was rendered. An empty body
// uses the current time.
func (h *Handler) MarkPDFGenerated(w http.ResponseWriter, r *http.Request) {
	var req MarkPDFRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	at := time.Now()
	if req.GeneratedAt != nil {
		at = *req.GeneratedAt
	}
	inv, err := h.Engine.MarkPDFGenerated(r.Context(), mustActor(r), invoiceParam(r), at)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := invoiceParam(r)
	bal, err := h.Engine.OutstandingBalance(r.Context(), mustActor(r), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{InvoiceID: string(id), Outstanding: int64(bal)})
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if !decode(w, r, &req) {
		return
	}
	line, err := h.Engine.AddLine(r.Context(), mustActor(r), billing.AddLineInput{
		InvoiceID:   invoiceParam(r),
		PeriodID:    billing.PeriodID(req.PeriodID),
		Amount:      billing.Money(req.Amount),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLineDTO(line))
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var req UpdateLineRequest
	if !decode(w, r, &req) {
		return
	}
	lineID := billing.InvoiceLineID(chi.URLParam(r, "id"))
	inv, err := h.Engine.UpdateLineAmount(r.Context(), mustActor(r), lineID, billing.Money(req.Amount))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	lineID := billing.InvoiceLineID(chi.URLParam(r, "id"))
	inv, err := h.Engine.DeleteLine(r.Context(), mustActor(r), lineID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Engine.RecordPayment(r.Context(), mustActor(r), billing.RecordPaymentInput{
		InvoiceID: invoiceParam(r),
		Amount:    billing.Money(req.Amount),
		PaidAt:    req.PaidAt,
		Comment:   req.Comment,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPayment(r.Context(), billing.PaymentID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Payment not found", nil)
		return
	}
	bal, err := h.Engine.DeletePayment(r.Context(), mustActor(r), p.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{InvoiceID: string(p.InvoiceID), Outstanding: int64(bal)})
}

// PublicInvoice is the unauthenticated download gate. The rendered file
// itself is served elsewhere; this answers whether it may be.
func (h *Handler) PublicInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Store.GetInvoice(r.Context(), invoiceParam(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}
	if !inv.PubliclyDownloadable() {
		writeError(w, http.StatusForbidden, "Invoice document has not been generated", nil)
		return
	}
	writeJSON(w, http.StatusOK, PublicInvoiceDTO{ID: string(inv.ID), InvoiceNumber: inv.InvoiceNumber, Downloadable: true})
}

// =============================================================================
// ACCOUNTING HANDLERS
// =============================================================================

func (h *Handler) CreateLegalEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateLegalEntityRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.fail(w, required("name"))
		return
	}
	if req.UsnPercent.IsNegative() || req.VatPercent.IsNegative() {
		h.fail(w, &billing.ValidationError{Field: "usn_percent", Message: "tax rates must not be negative"})
		return
	}
	le := billing.LegalEntity{
		ID:         billing.LegalEntityID(billing.NewID()),
		Name:       req.Name,
		UsnPercent: req.UsnPercent,
		VatPercent: req.VatPercent,
	}
	if err := h.Store.SaveLegalEntity(r.Context(), le); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LegalEntityDTO{ID: string(le.ID), Name: le.Name, UsnPercent: le.UsnPercent, VatPercent: le.VatPercent})
}

func (h *Handler) CreateCostItem(w http.ResponseWriter, r *http.Request) {
	var req CreateCostItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.fail(w, required("name"))
		return
	}
	c := billing.CostItem{ID: billing.CostItemID(billing.NewID()), Name: req.Name}
	if err := h.Store.SaveCostItem(r.Context(), c); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CostItemDTO{ID: string(c.ID), Name: c.Name})
}

func (h *Handler) CreateIncome(w http.ResponseWriter, r *http.Request) {
	var req CreateIncomeRequest
	if !decode(w, r, &req) {
		return
	}
	in := billing.RecordIncomeInput{
		ServiceID:     billing.ServiceID(req.ServiceID),
		LegalEntityID: billing.LegalEntityID(req.LegalEntityID),
		Amount:        billing.Money(req.Amount),
		ReceivedAt:    req.ReceivedAt,
	}
	if req.PeriodID != nil {
		id := billing.PeriodID(*req.PeriodID)
		in.PeriodID = &id
	}
	income, err := h.Engine.RecordIncome(r.Context(), mustActor(r), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncomeDTO(income))
}

// BulkTax runs one bulk tax generation. Per-income failures are reported
// in the body; the request itself still succeeds.
func (h *Handler) BulkTax(w http.ResponseWriter, r *http.Request) {
	var req BulkTaxRequest
	if !decode(w, r, &req) {
		return
	}
	in := billing.BulkTaxInput{
		LegalEntityID: billing.LegalEntityID(req.LegalEntityID),
		From:          req.From,
		To:            req.To,
		CostItemID:    billing.CostItemID(req.CostItemID),
	}
	for _, id := range req.IncomeIDs {
		in.IncomeIDs = append(in.IncomeIDs, billing.IncomeID(id))
	}
	if req.CostItemIDVat != nil && *req.CostItemIDVat != "" {
		vat := billing.CostItemID(*req.CostItemIDVat)
		in.CostItemIDVat = &vat
	}
	res, err := h.Engine.BulkGenerateTaxExpenses(r.Context(), mustActor(r), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkTaxResponse(res))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeErrorCode(w, status, message, "", err)
}

// fail maps an engine or store error onto a status code.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrValidation):
		writeErrorCode(w, http.StatusBadRequest, "Validation failed", "validation", err)
	case billing.IsForbidden(err):
		writeErrorCode(w, http.StatusForbidden, "Forbidden", "forbidden", err)
	case billing.IsNotFound(err):
		writeErrorCode(w, http.StatusNotFound, "Not found", "not_found", err)
	case billing.IsConflict(err):
		writeErrorCode(w, http.StatusConflict, "Conflict", "conflict", err)
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeErrorCode(w, http.StatusInternalServerError, "Internal error", "internal", nil)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// queryDate parses an optional YYYY-MM-DD query parameter. A missing value
// is the zero Date.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (billing.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return billing.Date{}, true
	}
	d, err := billing.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name+" format (use YYYY-MM-DD)", err)
		return billing.Date{}, false
	}
	return d, true
}

// mustActor returns the context actor. Routes under /api always run behind
// Authenticator.Middleware; an absent actor yields the empty Actor, which
// the engine rejects.
func mustActor(r *http.Request) billing.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}

func required(field string) error {
	return &billing.ValidationError{Field: field, Message: "is required"}
}

func moneyPtr(v *int64) *billing.Money {
	if v == nil {
		return nil
	}
	m := billing.Money(*v)
	return &m
}

func serviceParam(r *http.Request) billing.ServiceID {
	return billing.ServiceID(chi.URLParam(r, "id"))
}

func invoiceParam(r *http.Request) billing.InvoiceID {
	return billing.InvoiceID(chi.URLParam(r, "id"))
}
