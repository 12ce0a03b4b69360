package registry_test

import (
	"testing"

	"github.com/Mindburn-Labs/steward/pkg/registry"
	"github.com/Mindburn-Labs/steward/pkg/tiers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New()
	require.NoError(t, err)
	return r
}

func TestRegistry_Resolve(t *testing.T) {
	r := newRegistry(t)

	op, err := r.Resolve("customers.create")
	require.NoError(t, err)
	assert.Equal(t, registry.EffectWrite, op.Effect)
	assert.Equal(t, "core.write", op.Scope)
	assert.True(t, op.Idempotent)

	op, err = r.Resolve("customers.search")
	require.NoError(t, err)
	assert.Equal(t, registry.EffectNone, op.Effect)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Resolve("payments.refund")
	assert.ErrorIs(t, err, registry.ErrUnknownOperation)
}

func TestRegistry_AllowedFailClosed(t *testing.T) {
	r := newRegistry(t)

	// Unknown operation: denied, never an error.
	assert.False(t, r.Allowed("no.such.op", tiers.TierPro))
	// Unknown tier: denied.
	assert.False(t, r.Allowed("customers.search", "platinum"))
}

func TestRegistry_AllowedByTier(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		op      string
		tier    tiers.TierID
		allowed bool
	}{
		{"customers.search", tiers.TierFree, true},
		{"customers.create", tiers.TierFree, true},
		{"quotes.create", tiers.TierFree, false},
		{"quotes.create", tiers.TierStarter, true},
		{"billing.previewCharge", tiers.TierStarter, false},
		{"billing.createCharge", tiers.TierFree, false},
		{"billing.createCharge", tiers.TierPro, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, r.Allowed(tt.op, tt.tier), "%s for %s", tt.op, tt.tier)
	}
}

func TestRegistry_ListAvailableIsSuperset(t *testing.T) {
	r := newRegistry(t)

	free := r.ListAvailable(tiers.TierFree)
	starter := r.ListAvailable(tiers.TierStarter)
	pro := r.ListAvailable(tiers.TierPro)

	assert.Greater(t, len(starter), len(free))
	assert.Greater(t, len(pro), len(starter))

	names := func(ops []registry.Operation) map[string]bool {
		m := map[string]bool{}
		for _, op := range ops {
			m[op.Name] = true
		}
		return m
	}
	starterNames := names(starter)
	for name := range names(free) {
		assert.True(t, starterNames[name], "starter should include free op %s", name)
	}
}

func TestRegistry_ListAvailableUnknownTier(t *testing.T) {
	r := newRegistry(t)
	assert.Nil(t, r.ListAvailable("platinum"))
}

func TestRegistry_DecodeParams(t *testing.T) {
	r := newRegistry(t)

	var params struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	err := r.DecodeParams("customers.create", map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	}, &params)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", params.Name)
}

func TestRegistry_DecodeParamsRejectsInvalid(t *testing.T) {
	r := newRegistry(t)

	var params struct{}
	// Missing required "name".
	err := r.DecodeParams("customers.create", map[string]any{"email": "x@example.com"}, &params)
	assert.Error(t, err)

	// Unknown property.
	err = r.DecodeParams("customers.create", map[string]any{"name": "A", "tier": "pro"}, &params)
	assert.Error(t, err)

	// Wrong type.
	err = r.DecodeParams("billing.previewCharge", map[string]any{
		"customer_id": "c1", "value": "three", "method": "invoice",
	}, &params)
	assert.Error(t, err)
}
