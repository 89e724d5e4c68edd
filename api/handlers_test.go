/*
handlers_test.go - HTTP tests for the billing API

Tests for:
- Bearer token handling
- Service, period and invoice flows through the router
- Error category to status code mapping
- Public download gate
- Demo scenario loading
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-billing/billing"
	"github.com/warp/agency-billing/billing/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	t      *testing.T
	router http.Handler
	auth   *Authenticator
	store  *store.Memory
	token  string // emp-am, the account manager of everything seeded here
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	grants := billing.NewStaticGrants()
	grants.Grant("finance", "*")
	now := time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	engine := billing.NewEngine(mem, grants, billing.WithClock(func() time.Time { return now }))
	auth := NewAuthenticator("test-secret", "agency-billing")

	h := NewHandler(engine, mem, zerolog.Nop())
	router := NewRouter(h, RouterConfig{Auth: auth, Logger: zerolog.Nop()})

	ts := &testServer{t: t, router: router, auth: auth, store: mem}
	ts.token = ts.issue(demoAccountManager, "account_manager")
	return ts
}

func (ts *testServer) issue(id billing.EmployeeID, role billing.Role) string {
	ts.t.Helper()
	token, err := ts.auth.Issue(id, role, time.Hour)
	require.NoError(ts.t, err)
	return token
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedService creates client -> site -> service over the API and returns the
// service id.
func (ts *testServer) seedService(start string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/clients", ts.token, CreateClientRequest{Name: "Acme", SellerID: string(demoSeller)})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	client := decodeBody[ClientDTO](ts.t, rec)

	rec = ts.do(http.MethodPost, "/api/sites", ts.token, CreateSiteRequest{ClientID: client.ID, Domain: "acme.example"})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	site := decodeBody[SiteDTO](ts.t, rec)

	rec = ts.do(http.MethodPost, "/api/services", ts.token, CreateServiceRequest{
		SiteID:           site.ID,
		Name:             "SEO retainer",
		StartDate:        billing.MustParseDate(start),
		Cadence:          string(billing.CadenceMonthly),
		Price:            50000,
		AccountManagerID: string(demoAccountManager),
		SellerCommission: 1000,
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[ServiceDTO](ts.t, rec).ID
}

func (ts *testServer) confirm(serviceID, from string) PeriodDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/services/"+serviceID+"/periods/confirm", ts.token,
		ConfirmPeriodRequest{DateFrom: billing.MustParseDate(from)})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[PeriodDTO](ts.t, rec)
}

func (ts *testServer) createInvoice(periodID string, amount int64) InvoiceDTO {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/invoices", ts.token, CreateInvoiceRequest{PeriodID: periodID, Amount: amount})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[InvoiceDTO](ts.t, rec)
}

// =============================================================================
// AUTH
// =============================================================================

func TestAPI_RequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/scenarios", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/scenarios", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := NewAuthenticator("other-secret", "agency-billing")
	forged, err := other.Issue(demoAccountManager, "account_manager", time.Hour)
	require.NoError(t, err)
	rec = ts.do(http.MethodGet, "/api/scenarios", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticator_ParseRoundTrip(t *testing.T) {
	auth := NewAuthenticator("secret", "")
	token, err := auth.Issue("emp-7", "finance", time.Minute)
	require.NoError(t, err)

	actor, err := auth.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, billing.Actor{ID: "emp-7", Role: "finance"}, actor)

	expired, err := auth.Issue("emp-7", "finance", -time.Minute)
	require.NoError(t, err)
	_, err = auth.Parse(expired)
	assert.Error(t, err)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestAPI_CalendarAndAdjust(t *testing.T) {
	// GIVEN: A monthly service from 2025-01-04 with two confirmed periods
	// WHEN: Extending the first to 2025-02-10 with cascade
	// THEN: The second shifts to [2025-02-11..2025-03-10] and both leave the
	//       generated calendar as unmatched periods

	ts := newTestServer(t)
	svc := ts.seedService("2025-01-04")
	p1 := ts.confirm(svc, "2025-01-04")
	ts.confirm(svc, "2025-02-04")

	rec := ts.do(http.MethodPost, "/api/services/"+svc+"/periods/"+p1.ID+"/adjust", ts.token,
		AdjustPeriodRequest{DateTo: billing.MustParseDate("2025-02-10"), Cascade: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	adjusted := decodeBody[AdjustPeriodResponse](t, rec)
	require.Len(t, adjusted.Changed, 2)
	assert.Equal(t, "2025-02-11", adjusted.Changed[1].DateFrom.String())
	assert.Equal(t, "2025-03-10", adjusted.Changed[1].DateTo.String())

	rec = ts.do(http.MethodGet, "/api/services/"+svc+"/calendar?today=2025-02-10", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cal := decodeBody[CalendarDTO](t, rec)
	assert.Equal(t, "2025-03-10", cal.Horizon.String())
	require.NotEmpty(t, cal.Rows)
	assert.Nil(t, cal.Rows[0].PeriodID)
	assert.Len(t, cal.Unmatched, 2)
}

func TestAPI_PeriodErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t)
	svc := ts.seedService("2024-12-04")
	p := ts.confirm(svc, "2024-12-04")

	t.Run("overlap is 409", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/services/"+svc+"/periods", ts.token, CreatePeriodRequest{
			DateFrom: billing.MustParseDate("2024-12-20"),
			DateTo:   billing.MustParseDate("2025-01-10"),
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "conflict", decodeBody[ErrorResponse](t, rec).Code)
	})
	t.Run("no generated period is 400", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/services/"+svc+"/periods/confirm", ts.token,
			ConfirmPeriodRequest{DateFrom: billing.MustParseDate("2024-12-05")})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation", decodeBody[ErrorResponse](t, rec).Code)
	})
	t.Run("unknown service is 404", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/services/nope/calendar", ts.token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("outsider is 403", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/services/"+svc+"/calendar", ts.issue("emp-x", "account_manager"), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("view-all grant reads any service", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/services/"+svc+"/calendar", ts.issue("emp-fin", "finance"), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("bad query date is 400", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/api/services/"+svc+"/commission?from=2025-01-01&to=tomorrow", ts.token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("malformed body is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/periods/"+p.ID, bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer "+ts.token)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("invalid service is 400", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/services", ts.token, CreateServiceRequest{SiteID: "s", Name: "x", StartDate: billing.MustParseDate("2025-01-01"), Cadence: "weekly"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_Commission(t *testing.T) {
	ts := newTestServer(t)
	svc := ts.seedService("2024-12-04")
	ts.confirm(svc, "2024-12-04")
	ts.confirm(svc, "2025-01-04")

	rec := ts.do(http.MethodGet, "/api/services/"+svc+"/commission?from=2025-01-01&to=2025-01-31", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decodeBody[CommissionDTO](t, rec)
	assert.Equal(t, 2, c.Periods)
	assert.Equal(t, int64(2000), c.SellerAmount)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestAPI_InvoiceFlow(t *testing.T) {
	// GIVEN: Two confirmed periods
	// WHEN: Invoicing the first at 50000, adding the second at 30000 and
	//       paying 90000
	// THEN: The summary shows 80000 billed and -10000 outstanding, and the
	//       invoiced period cannot be deleted

	ts := newTestServer(t)
	svc := ts.seedService("2024-12-04")
	p1 := ts.confirm(svc, "2024-12-04")
	p2 := ts.confirm(svc, "2025-01-04")
	inv := ts.createInvoice(p1.ID, 50000)
	assert.Equal(t, p1.DateFrom, inv.CoverageFrom)
	assert.False(t, inv.PubliclyDownloadable)

	rec := ts.do(http.MethodPost, "/api/invoices/"+inv.ID+"/lines", ts.token, AddLineRequest{PeriodID: p2.ID, Amount: 30000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	line := decodeBody[InvoiceLineDTO](t, rec)

	rec = ts.do(http.MethodPost, "/api/invoices/"+inv.ID+"/lines", ts.token, AddLineRequest{PeriodID: p2.ID, Amount: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/invoices/"+inv.ID+"/payments", ts.token, RecordPaymentRequest{Amount: 90000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decodeBody[PaymentDTO](t, rec)
	assert.Equal(t, "2025-02-10", payment.PaidAt.String())

	rec = ts.do(http.MethodGet, "/api/invoices/"+inv.ID, ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decodeBody[InvoiceSummaryDTO](t, rec)
	assert.Equal(t, int64(80000), sum.Invoice.Amount)
	assert.Len(t, sum.Lines, 2)
	assert.Equal(t, int64(-10000), sum.Outstanding)

	rec = ts.do(http.MethodDelete, "/api/periods/"+p2.ID, ts.token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPatch, "/api/invoice-lines/"+line.ID, ts.token, UpdateLineRequest{Amount: 40000})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(90000), decodeBody[InvoiceDTO](t, rec).Amount)

	rec = ts.do(http.MethodGet, "/api/invoices/"+inv.ID+"/balance", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decodeBody[BalanceDTO](t, rec).Outstanding)

	rec = ts.do(http.MethodDelete, "/api/payments/"+payment.ID, ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(90000), decodeBody[BalanceDTO](t, rec).Outstanding)

	rec = ts.do(http.MethodDelete, "/api/payments/"+payment.ID, ts.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/invoice-lines/"+line.ID, ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(50000), decodeBody[InvoiceDTO](t, rec).Amount)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/periods/"+p2.ID, ts.token, nil).Code)
}

func TestAPI_PaymentMustBePositive(t *testing.T) {
	ts := newTestServer(t)
	svc := ts.seedService("2024-12-04")
	inv := ts.createInvoice(ts.confirm(svc, "2024-12-04").ID, 50000)

	rec := ts.do(http.MethodPost, "/api/invoices/"+inv.ID+"/payments", ts.token, RecordPaymentRequest{Amount: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_PublicDownloadGate(t *testing.T) {
	// GIVEN: An invoice with no generated document
	// WHEN: Fetching the public link before and after marking the PDF
	// THEN: 403 before, 200 after, with no token either time

	ts := newTestServer(t)
	svc := ts.seedService("2024-12-04")
	inv := ts.createInvoice(ts.confirm(svc, "2024-12-04").ID, 50000)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/public/invoices/"+inv.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/public/invoices/nope", "", nil).Code)

	rec := ts.do(http.MethodPost, "/api/invoices/"+inv.ID+"/pdf", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[InvoiceDTO](t, rec).PubliclyDownloadable)

	rec = ts.do(http.MethodGet, "/public/invoices/"+inv.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[PublicInvoiceDTO](t, rec).Downloadable)
}

func TestAPI_UpdateInvoiceCoverageNeedsBothEnds(t *testing.T) {
	ts := newTestServer(t)
	svc := ts.seedService("2024-12-04")
	inv := ts.createInvoice(ts.confirm(svc, "2024-12-04").ID, 50000)
	from := billing.MustParseDate("2024-12-01")

	rec := ts.do(http.MethodPatch, "/api/invoices/"+inv.ID, ts.token, UpdateInvoiceRequest{CoverageFrom: &from})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	number := "INV-42"
	rec = ts.do(http.MethodPatch, "/api/invoices/"+inv.ID, ts.token, UpdateInvoiceRequest{InvoiceNumber: &number})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "INV-42", decodeBody[InvoiceDTO](t, rec).InvoiceNumber)
}

// =============================================================================
// ACCOUNTING
// =============================================================================

func TestAPI_BulkTax(t *testing.T) {
	ts := newTestServer(t)
	svc := ts.seedService("2024-12-04")

	rec := ts.do(http.MethodPost, "/api/legal-entities", ts.token, map[string]any{"name": "Agency", "usn_percent": "6", "vat_percent": "20"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	le := decodeBody[LegalEntityDTO](t, rec)

	rec = ts.do(http.MethodPost, "/api/cost-items", ts.token, CreateCostItemRequest{Name: "Tax"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	costItem := decodeBody[CostItemDTO](t, rec)

	rec = ts.do(http.MethodPost, "/api/incomes", ts.token, CreateIncomeRequest{
		ServiceID:     svc,
		LegalEntityID: le.ID,
		Amount:        100000,
		ReceivedAt:    billing.MustParseDate("2025-01-10"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req := BulkTaxRequest{LegalEntityID: le.ID, CostItemID: costItem.ID}
	rec = ts.do(http.MethodPost, "/api/expenses/bulk-tax", ts.token, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[BulkTaxResponse](t, rec)
	require.Len(t, first.Created, 1)
	assert.Equal(t, int64(6000), first.Total)

	rec = ts.do(http.MethodPost, "/api/expenses/bulk-tax", ts.token, req)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[BulkTaxResponse](t, rec)
	assert.Empty(t, second.Created)
	require.Len(t, second.Skipped, 1)
	assert.Equal(t, string(billing.SkipAlreadyTaxed), second.Skipped[0].Reason)

	rec = ts.do(http.MethodPost, "/api/expenses/bulk-tax", ts.token, BulkTaxRequest{CostItemID: costItem.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateIncome_UnknownService(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/incomes", ts.token, CreateIncomeRequest{
		ServiceID:  "nope",
		Amount:     100,
		ReceivedAt: billing.MustParseDate("2025-01-10"),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ServiceAndIncome_RequireOwnership(t *testing.T) {
	// GIVEN: A service owned by the default token's account manager
	// WHEN: Another account manager reads it or records income on it
	// THEN: Both are forbidden, while the owner succeeds

	ts := newTestServer(t)
	svc := ts.seedService("2024-12-04")
	stranger := ts.issue("emp-other", "account_manager")
	income := CreateIncomeRequest{ServiceID: svc, Amount: 100000, ReceivedAt: billing.MustParseDate("2025-01-10")}

	rec := ts.do(http.MethodGet, "/api/services/"+svc, stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/api/incomes", stranger, income)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/services/"+svc, ts.token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/api/incomes", ts.token, income)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/services/nope", ts.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestAPI_Scenarios(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/scenarios", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(scenarios))

	rec = ts.do(http.MethodPost, "/api/scenarios/load", ts.token, LoadScenarioRequest{ScenarioID: "missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/scenarios/load", ts.token, LoadScenarioRequest{ScenarioID: "yearly-contract"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[ScenarioResult](t, rec)
	require.Len(t, res.InvoiceIDs, 1)

	// the yearly invoice has its document generated
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/public/invoices/"+res.InvoiceIDs[0], "", nil).Code)
}

func TestSeeder_LoadAll(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Loading every scenario
	// THEN: Each one succeeds and the retainer invoice is fully paid

	ctx := context.Background()
	mem := store.NewMemory()
	engine := billing.NewEngine(mem, billing.NewStaticGrants())
	seeder := Seeder{Engine: engine, Store: mem}

	results, err := seeder.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, len(scenarios))

	retainer := results[0]
	require.Equal(t, "monthly-retainer", retainer.Scenario)
	require.Len(t, retainer.InvoiceIDs, 1)
	bal, err := engine.OutstandingBalance(ctx, demoActor, billing.InvoiceID(retainer.InvoiceIDs[0]))
	require.NoError(t, err)
	assert.Equal(t, billing.Money(0), bal)

	taxRun := results[len(results)-1]
	assert.Equal(t, "tax-run", taxRun.Scenario)
	assert.Len(t, taxRun.ExpenseIDs, 2) // tax and vat of the single non-zero income
}
