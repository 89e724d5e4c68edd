package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/agency-billing/billing"
)

func TestCanAccess_OwnScope(t *testing.T) {
	tests := []struct {
		name    string
		actor   billing.EmployeeID
		am      billing.EmployeeID
		seller  billing.EmployeeID
		allowed bool
	}{
		{"account manager", "emp-1", "emp-1", "emp-2", true},
		{"seller", "emp-2", "emp-1", "emp-2", true},
		{"outsider", "emp-3", "emp-1", "emp-2", false},
		{"empty actor never matches empty owner", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, billing.CanAccess(billing.Actor{ID: tt.actor}, tt.am, tt.seller))
		})
	}
}

type failingGrants struct{}

func (failingGrants) HasViewAllGrant(context.Context, billing.Role, billing.Section) (bool, error) {
	return false, errors.New("grant service down")
}

func TestAccessResolver_Authorize(t *testing.T) {
	ctx := context.Background()
	grants, err := billing.ParseGrants([]string{"finance:invoices", "director:*"})
	require.NoError(t, err)
	r := &billing.AccessResolver{Grants: grants}
	owner := billing.Ownership{AccountManagerID: "emp-am", SellerID: "emp-seller", CreatorID: "emp-creator"}

	t.Run("view-all grant on the section", func(t *testing.T) {
		assert.NoError(t, r.Authorize(ctx, billing.Actor{ID: "x", Role: "finance"}, billing.SectionInvoices, owner))
	})
	t.Run("grant on another section does not apply", func(t *testing.T) {
		err := r.Authorize(ctx, billing.Actor{ID: "x", Role: "finance"}, billing.SectionExpenses, owner)
		assert.True(t, billing.IsForbidden(err))
	})
	t.Run("wildcard grant", func(t *testing.T) {
		assert.NoError(t, r.Authorize(ctx, billing.Actor{ID: "x", Role: "director"}, billing.SectionExpenses, owner))
	})
	t.Run("creator counts as owner", func(t *testing.T) {
		assert.NoError(t, r.Authorize(ctx, billing.Actor{ID: "emp-creator"}, billing.SectionPeriods, owner))
	})
	t.Run("missing actor is a validation error", func(t *testing.T) {
		err := r.Authorize(ctx, billing.Actor{}, billing.SectionPeriods, owner)
		assert.ErrorIs(t, err, billing.ErrValidation)
	})
	t.Run("forbidden error names actor and section", func(t *testing.T) {
		err := r.Authorize(ctx, billing.Actor{ID: "emp-x"}, billing.SectionPayments, owner)
		var fe *billing.ForbiddenError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, billing.EmployeeID("emp-x"), fe.ActorID)
		assert.Equal(t, billing.SectionPayments, fe.Section)
	})
	t.Run("grant lookup failure is a store error", func(t *testing.T) {
		broken := &billing.AccessResolver{Grants: failingGrants{}}
		err := broken.Authorize(ctx, billing.Actor{ID: "emp-am"}, billing.SectionPeriods, owner)
		assert.ErrorIs(t, err, billing.ErrStore)
	})
}

func TestParseGrants_Invalid(t *testing.T) {
	for _, entry := range []string{"finance", ":invoices", "finance:"} {
		_, err := billing.ParseGrants([]string{entry})
		assert.Error(t, err, entry)
	}
	g, err := billing.ParseGrants([]string{" ", ""})
	require.NoError(t, err)
	ok, _ := g.HasViewAllGrant(context.Background(), "any", billing.SectionInvoices)
	assert.False(t, ok)
}
