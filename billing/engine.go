package billing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// ENGINE - Store-backed facade invoked by request handlers
// =============================================================================

// Engine runs each operator action as one transaction against the store.
// Every call takes an explicit Actor; there is no ambient session state.
//
// Serialization:
//   - adjustments and period writes of one service hold a per-service lock
//   - line and payment writes of one invoice hold a per-invoice lock
//   - the store transaction (and row lock, where supported) makes the
//     read-then-write of each operation atomic across processes
type Engine struct {
	store    TxStore
	access   *AccessResolver
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	bulkConcurrency int

	serviceLocks *keyedMutex
	invoiceLocks *keyedMutex
	pending      sync.WaitGroup
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock overrides time.Now for audit timestamps and "today".
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithBulkConcurrency bounds how many incomes bulk tax generation
// processes at once.
func WithBulkConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.bulkConcurrency = n
		}
	}
}

func NewEngine(store TxStore, grants GrantProvider, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		access:          &AccessResolver{Grants: grants},
		log:             zerolog.Nop(),
		now:             time.Now,
		bulkConcurrency: 4,
		serviceLocks:    newKeyedMutex(),
		invoiceLocks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) today() Date { return DateOf(e.now()) }

// =============================================================================
// OWNERSHIP CHAIN LOOKUP
// =============================================================================

type serviceChain struct {
	service Service
	site    Site
	client  Client
}

func (c serviceChain) ownership(creator EmployeeID) Ownership {
	return Ownership{
		AccountManagerID: c.service.AccountManagerID,
		SellerID:         c.client.SellerID,
		CreatorID:        creator,
	}
}

func loadChain(ctx context.Context, s Store, id ServiceID) (serviceChain, error) {
	svc, err := s.GetService(ctx, id)
	if err != nil {
		return serviceChain{}, storeErr("get service", err)
	}
	if svc == nil {
		return serviceChain{}, notFound("service", id)
	}
	site, err := s.GetSite(ctx, svc.SiteID)
	if err != nil {
		return serviceChain{}, storeErr("get site", err)
	}
	if site == nil {
		return serviceChain{}, notFound("site", svc.SiteID)
	}
	client, err := s.GetClient(ctx, site.ClientID)
	if err != nil {
		return serviceChain{}, storeErr("get client", err)
	}
	if client == nil {
		return serviceChain{}, notFound("client", site.ClientID)
	}
	return serviceChain{service: *svc, site: *site, client: *client}, nil
}

func loadPeriod(ctx context.Context, s Store, id PeriodID) (Period, error) {
	p, err := s.GetPeriod(ctx, id)
	if err != nil {
		return Period{}, storeErr("get period", err)
	}
	if p == nil {
		return Period{}, notFound("period", id)
	}
	return *p, nil
}

func loadInvoice(ctx context.Context, s Store, id InvoiceID) (Invoice, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, storeErr("get invoice", err)
	}
	if inv == nil {
		return Invoice{}, notFound("invoice", id)
	}
	return *inv, nil
}

// =============================================================================
// KEYED MUTEX
// =============================================================================

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
