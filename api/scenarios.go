/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	billing data. Each scenario creates its own client, site and service
	chain and then drives the engine exactly as an operator would.

AVAILABLE SCENARIOS:

	monthly-retainer: Monthly service, two periods on one invoice, paid in full
	yearly-contract:  Yearly cadence invoiced on the December period, partly paid
	adjusted-period:  First period extended by a week with the shift cascaded
	tax-run:          Incomes on a legal entity with bulk tax and VAT expenses

HOW SCENARIOS WORK:
 1. Create client, site and service through the store
 2. Confirm generated periods through the engine
 3. Create invoices, lines and payments through the engine
 4. Return the ids created so the caller can inspect them

Scenarios never reset the store. Every load creates fresh ids, so loading
the same scenario twice yields two independent chains.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "monthly-retainer"}

SEE ALSO:
  - handlers.go: Handler plumbing
  - cmd/server/main.go: APP_SEED loads every scenario on startup
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/agency-billing/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// Demo staff. The account manager is the scenario actor.
const (
	demoSeller         billing.EmployeeID = "emp-seller"
	demoAccountManager billing.EmployeeID = "emp-am"
)

var scenarios = []ScenarioDTO{
	{
		ID:          "monthly-retainer",
		Name:        "Monthly Retainer",
		Description: "Monthly service from 2024-12-04, two periods on one invoice, paid in full",
	},
	{
		ID:          "yearly-contract",
		Name:        "Yearly Contract",
		Description: "Yearly cadence, invoiced on the period ending in December, partly paid",
	},
	{
		ID:          "adjusted-period",
		Name:        "Adjusted Period",
		Description: "First period extended by seven days with the shift cascaded to later periods",
	},
	{
		ID:          "tax-run",
		Name:        "Tax Run",
		Description: "Two incomes on a 6% / 20% legal entity with bulk tax and VAT expense generation",
	},
}

var errUnknownScenario = errors.New("unknown scenario")

// ScenarioResult lists what a scenario created.
type ScenarioResult struct {
	Scenario   string   `json:"scenario"`
	ServiceIDs []string `json:"service_ids"`
	InvoiceIDs []string `json:"invoice_ids,omitempty"`
	ExpenseIDs []string `json:"expense_ids,omitempty"`
}

// Seeder loads scenarios into a store through an engine.
type Seeder struct {
	Engine *billing.Engine
	Store  billing.Store
}

func (h *Handler) seeder() Seeder { return Seeder{Engine: h.Engine, Store: h.Store} }

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.seeder().Load(r.Context(), req.ScenarioID)
	if err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		h.fail(w, err)
		return
	}
	h.log.Info().Str("scenario", req.ScenarioID).Strs("service_ids", res.ServiceIDs).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, res)
}

// Load runs one scenario by id.
func (s Seeder) Load(ctx context.Context, id string) (ScenarioResult, error) {
	res := ScenarioResult{Scenario: id}
	var err error
	switch id {
	case "monthly-retainer":
		err = s.loadMonthlyRetainer(ctx, &res)
	case "yearly-contract":
		err = s.loadYearlyContract(ctx, &res)
	case "adjusted-period":
		err = s.loadAdjustedPeriod(ctx, &res)
	case "tax-run":
		err = s.loadTaxRun(ctx, &res)
	default:
		return ScenarioResult{}, fmt.Errorf("%w: %q", errUnknownScenario, id)
	}
	if err != nil {
		return ScenarioResult{}, fmt.Errorf("scenario %s: %w", id, err)
	}
	return res, nil
}

// LoadAll runs every scenario once.
func (s Seeder) LoadAll(ctx context.Context) ([]ScenarioResult, error) {
	out := make([]ScenarioResult, 0, len(scenarios))
	for _, sc := range scenarios {
		res, err := s.Load(ctx, sc.ID)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var demoActor = billing.Actor{ID: demoAccountManager, Role: "account_manager"}

func (s Seeder) loadMonthlyRetainer(ctx context.Context, res *ScenarioResult) error {
	svc, err := s.createChain(ctx, "Retainer Ltd", "retainer.example", billing.Service{
		Name:      "SEO retainer",
		StartDate: billing.NewDate(2024, 12, 4),
		Cadence:   billing.CadenceMonthly,
		Price:     50000,
	})
	if err != nil {
		return err
	}
	res.ServiceIDs = append(res.ServiceIDs, string(svc.ID))

	today := billing.NewDate(2025, 2, 10)
	first, err := s.Engine.ConfirmPeriod(ctx, demoActor, svc.ID, billing.NewDate(2024, 12, 4), today)
	if err != nil {
		return err
	}
	second, err := s.Engine.ConfirmPeriod(ctx, demoActor, svc.ID, billing.NewDate(2025, 1, 4), today)
	if err != nil {
		return err
	}

	inv, err := s.Engine.CreateInvoice(ctx, demoActor, billing.CreateInvoiceInput{
		PeriodID:      first.ID,
		Amount:        50000,
		InvoiceNumber: "RT-0001",
		Coverage:      billing.DateRange{From: first.DateFrom, To: second.DateTo},
	})
	if err != nil {
		return err
	}
	if _, err := s.Engine.AddLine(ctx, demoActor, billing.AddLineInput{
		InvoiceID: inv.ID,
		PeriodID:  second.ID,
		Amount:    30000,
		Title:     "January, discounted",
	}); err != nil {
		return err
	}
	paidAt := billing.NewDate(2025, 1, 20)
	if _, err := s.Engine.RecordPayment(ctx, demoActor, billing.RecordPaymentInput{
		InvoiceID: inv.ID,
		Amount:    80000,
		PaidAt:    &paidAt,
	}); err != nil {
		return err
	}
	res.InvoiceIDs = append(res.InvoiceIDs, string(inv.ID))
	return nil
}

func (s Seeder) loadYearlyContract(ctx context.Context, res *ScenarioResult) error {
	svc, err := s.createChain(ctx, "Annual Corp", "annual.example", billing.Service{
		Name:      "Hosting and support",
		StartDate: billing.NewDate(2024, 3, 15),
		Cadence:   billing.CadenceYearly,
		Price:     20000,
	})
	if err != nil {
		return err
	}
	res.ServiceIDs = append(res.ServiceIDs, string(svc.ID))

	// 2024-11-15 .. 2024-12-14 is the first period ending in December.
	dec, err := s.Engine.ConfirmPeriod(ctx, demoActor, svc.ID, billing.NewDate(2024, 11, 15), billing.NewDate(2025, 1, 10))
	if err != nil {
		return err
	}
	inv, err := s.Engine.CreateInvoice(ctx, demoActor, billing.CreateInvoiceInput{
		PeriodID:      dec.ID,
		Amount:        240000,
		InvoiceNumber: "AN-2024",
		LineTitle:     "Annual fee 2024",
		Coverage:      billing.DateRange{From: svc.StartDate, To: dec.DateTo},
	})
	if err != nil {
		return err
	}
	if _, err := s.Engine.MarkPDFGenerated(ctx, demoActor, inv.ID, billing.NewDate(2024, 12, 15).Time); err != nil {
		return err
	}
	paidAt := billing.NewDate(2024, 12, 28)
	if _, err := s.Engine.RecordPayment(ctx, demoActor, billing.RecordPaymentInput{
		InvoiceID: inv.ID,
		Amount:    100000,
		PaidAt:    &paidAt,
		Comment:   "first instalment",
	}); err != nil {
		return err
	}
	res.InvoiceIDs = append(res.InvoiceIDs, string(inv.ID))
	return nil
}

func (s Seeder) loadAdjustedPeriod(ctx context.Context, res *ScenarioResult) error {
	svc, err := s.createChain(ctx, "Shifted GmbH", "shifted.example", billing.Service{
		Name:      "Content plan",
		StartDate: billing.NewDate(2025, 1, 4),
		Cadence:   billing.CadenceMonthly,
		Price:     40000,
	})
	if err != nil {
		return err
	}
	res.ServiceIDs = append(res.ServiceIDs, string(svc.ID))

	today := billing.NewDate(2025, 3, 1)
	var first billing.Period
	for i, from := range []billing.Date{billing.NewDate(2025, 1, 4), billing.NewDate(2025, 2, 4), billing.NewDate(2025, 3, 4)} {
		p, err := s.Engine.ConfirmPeriod(ctx, demoActor, svc.ID, from, today)
		if err != nil {
			return err
		}
		if i == 0 {
			first = p
		}
	}
	_, err = s.Engine.AdjustPeriod(ctx, demoActor, svc.ID, first.ID, first.DateTo.AddDays(7), true)
	return err
}

func (s Seeder) loadTaxRun(ctx context.Context, res *ScenarioResult) error {
	svc, err := s.createChain(ctx, "Taxed LLC", "taxed.example", billing.Service{
		Name:      "Ads management",
		StartDate: billing.NewDate(2025, 1, 1),
		Cadence:   billing.CadenceMonthly,
		Price:     100000,
	})
	if err != nil {
		return err
	}
	res.ServiceIDs = append(res.ServiceIDs, string(svc.ID))

	le := billing.LegalEntity{
		ID:         billing.LegalEntityID(billing.NewID()),
		Name:       "Agency Main",
		UsnPercent: decimal.NewFromInt(6),
		VatPercent: decimal.NewFromInt(20),
	}
	tax := billing.CostItem{ID: billing.CostItemID(billing.NewID()), Name: "Turnover tax"}
	vat := billing.CostItem{ID: billing.CostItemID(billing.NewID()), Name: "VAT"}
	if err := s.Store.SaveLegalEntity(ctx, le); err != nil {
		return err
	}
	for _, c := range []billing.CostItem{tax, vat} {
		if err := s.Store.SaveCostItem(ctx, c); err != nil {
			return err
		}
	}
	for i, amount := range []billing.Money{100000, 0} {
		_, err := s.Engine.RecordIncome(ctx, demoActor, billing.RecordIncomeInput{
			ServiceID:     svc.ID,
			LegalEntityID: le.ID,
			Amount:        amount,
			ReceivedAt:    billing.NewDate(2025, 1, 10+i),
		})
		if err != nil {
			return err
		}
	}

	out, err := s.Engine.BulkGenerateTaxExpenses(ctx, demoActor, billing.BulkTaxInput{
		LegalEntityID: le.ID,
		CostItemID:    tax.ID,
		CostItemIDVat: &vat.ID,
	})
	if err != nil {
		return err
	}
	for _, e := range out.Created {
		res.ExpenseIDs = append(res.ExpenseIDs, string(e.ID))
	}
	return nil
}

// createChain stores a client, site and the given service with demo owners.
func (s Seeder) createChain(ctx context.Context, clientName, domain string, svc billing.Service) (billing.Service, error) {
	client := billing.Client{ID: billing.ClientID(billing.NewID()), Name: clientName, SellerID: demoSeller}
	site := billing.Site{ID: billing.SiteID(billing.NewID()), ClientID: client.ID, Domain: domain}
	svc.ID = billing.ServiceID(billing.NewID())
	svc.SiteID = site.ID
	svc.Status = billing.ServiceActive
	svc.AccountManagerID = demoAccountManager
	svc.CreatedBy = demoAccountManager

	if err := s.Store.SaveClient(ctx, client); err != nil {
		return billing.Service{}, err
	}
	if err := s.Store.SaveSite(ctx, site); err != nil {
		return billing.Service{}, err
	}
	if err := s.Store.SaveService(ctx, svc); err != nil {
		return billing.Service{}, err
	}
	return svc, nil
}
