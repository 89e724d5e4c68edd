package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// ACCESS SCOPE RESOLVER - own-scope vs view-all
// =============================================================================

type Role string

// Section is the permission area a grant applies to.
type Section string

const (
	SectionPeriods     Section = "periods"
	SectionInvoices    Section = "invoices"
	SectionPayments    Section = "payments"
	SectionExpenses    Section = "expenses"
	SectionIncomes     Section = "incomes"
	SectionCommissions Section = "commissions"
)

// Actor is the resolved identity of the operator making the call. The
// engine never looks it up itself.
type Actor struct {
	ID   EmployeeID
	Role Role
}

// Ownership carries the ids that grant own-scope access to a record.
// Callers extract them from the record chain before asking.
type Ownership struct {
	AccountManagerID EmployeeID // service account manager
	SellerID         EmployeeID // client seller
	CreatorID        EmployeeID // record creator, optional
}

// GrantProvider answers whether a role holds the view-all grant on a section.
type GrantProvider interface {
	HasViewAllGrant(ctx context.Context, role Role, section Section) (bool, error)
}

// CanAccess is the own-scope predicate: the actor must be the account
// manager or the seller. Empty ids never match.
func CanAccess(actor Actor, accountManagerID, sellerID EmployeeID) bool {
	if actor.ID == "" {
		return false
	}
	return actor.ID == accountManagerID || actor.ID == sellerID
}

func (o Ownership) allows(actor Actor) bool {
	if CanAccess(actor, o.AccountManagerID, o.SellerID) {
		return true
	}
	return actor.ID != "" && actor.ID == o.CreatorID
}

// AccessResolver consults the view-all grant first and falls back to
// own-scope.
type AccessResolver struct {
	Grants GrantProvider
}

func (r *AccessResolver) Authorize(ctx context.Context, actor Actor, section Section, owner Ownership) error {
	if actor.ID == "" {
		return invalid("actor", "actor id is required")
	}
	if r.Grants != nil {
		ok, err := r.Grants.HasViewAllGrant(ctx, actor.Role, section)
		if err != nil {
			return storeErr("grants", err)
		}
		if ok {
			return nil
		}
	}
	if owner.allows(actor) {
		return nil
	}
	return &ForbiddenError{ActorID: actor.ID, Section: section}
}

// =============================================================================
// STATIC GRANTS - role:section pairs from configuration
// =============================================================================

type StaticGrants struct {
	mu     sync.RWMutex
	grants map[Role]map[Section]bool
}

func NewStaticGrants() *StaticGrants {
	return &StaticGrants{grants: make(map[Role]map[Section]bool)}
}

// ParseGrants builds grants from "role:section" entries. "role:*" grants
// every section.
func ParseGrants(entries []string) (*StaticGrants, error) {
	g := NewStaticGrants()
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		role, section, ok := strings.Cut(e, ":")
		if !ok || role == "" || section == "" {
			return nil, fmt.Errorf("invalid grant %q (use role:section)", e)
		}
		g.Grant(Role(role), Section(section))
	}
	return g, nil
}

func (g *StaticGrants) Grant(role Role, section Section) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grants[role] == nil {
		g.grants[role] = make(map[Section]bool)
	}
	g.grants[role][section] = true
}

func (g *StaticGrants) HasViewAllGrant(_ context.Context, role Role, section Section) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sections := g.grants[role]
	return sections[section] || sections["*"], nil
}
