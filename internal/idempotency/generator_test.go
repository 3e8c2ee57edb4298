package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKeyIsOrderIndependent(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopeReleaseRefund, map[string]interface{}{"number_id": "num_1", "assigned_at": 42})
	b := g.GenerateKey(ScopeReleaseRefund, map[string]interface{}{"assigned_at": 42, "number_id": "num_1"})

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, string(ScopeReleaseRefund)+"-"))
}

func TestGenerateKeyDiffersByScopeAndParams(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{"number_id": "num_1", "version": 3}

	assert.NotEqual(t,
		g.GenerateKey(ScopePurchaseDebit, params),
		g.GenerateKey(ScopePurchaseRollback, params),
	)
	assert.NotEqual(t,
		g.GenerateKey(ScopePurchaseDebit, params),
		g.GenerateKey(ScopePurchaseDebit, map[string]interface{}{"number_id": "num_1", "version": 4}),
	)
	assert.True(t, g.ValidateKey(ScopePurchaseDebit, params, g.GenerateKey(ScopePurchaseDebit, params)))
}
