package checker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/easyrls"
)

func request() Request {
	return Request{
		Claims:   RoleClaims("member"),
		Resource: "projects",
		Action:   easyrls.ActionSelect,
		Params:   map[string]any{"$id": 10, "$organization_id": 1},
	}
}

func TestDecisionOverrides(t *testing.T) {
	ctx := context.Background()

	allowed, err := New(nil, WithDecision(DecisionAllow)).Check(ctx, request())
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = New(nil, WithDecision(DecisionDeny)).Check(ctx, request())
	require.NoError(t, err)
	assert.False(t, allowed)

	t.Run("context decision ignored unless enabled", func(t *testing.T) {
		c := New(nil, WithDecision(DecisionDeny))
		allowed, err := c.Check(WithDecisionContext(ctx, DecisionAllow), request())
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("context decision wins when enabled", func(t *testing.T) {
		c := New(nil, WithDecision(DecisionDeny), WithContextDecision())
		allowed, err := c.Check(WithDecisionContext(ctx, DecisionAllow), request())
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestDecisionContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, DecisionUnset, GetDecisionContext(ctx))
	assert.Equal(t, DecisionDeny, GetDecisionContext(WithDecisionContext(ctx, DecisionDeny)))
	assert.Equal(t, "allow", DecisionAllow.String())
	assert.Equal(t, "unset", DecisionUnset.String())
}

func TestCheck_InvalidRequest(t *testing.T) {
	c := New(nil, WithDecision(DecisionAllow))

	_, err := c.Check(context.Background(), Request{Action: easyrls.ActionSelect})
	require.Error(t, err)

	_, err = c.Check(context.Background(), Request{Resource: "projects", Action: "truncate"})
	require.Error(t, err)
}

func TestCheck_NoDatabase(t *testing.T) {
	_, err := New(nil).Check(context.Background(), request())
	require.Error(t, err)
}

type mapCache map[string]bool

func (m mapCache) Get(key string) (bool, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapCache) Set(key string, allowed bool) {
	m[key] = allowed
}

func TestCheck_CacheHitSkipsDatabase(t *testing.T) {
	req := request()
	key, err := req.Key()
	require.NoError(t, err)

	cache := mapCache{key: true}
	allowed, err := New(nil, WithCache(cache)).Check(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRequestKey(t *testing.T) {
	a := request()
	b := Request{
		Params:   map[string]any{"$organization_id": 1, "$id": 10},
		Action:   easyrls.ActionSelect,
		Resource: "projects",
		Claims:   map[string]any{"user_role": "member"},
	}
	ka, err := a.Key()
	require.NoError(t, err)
	kb, err := b.Key()
	require.NoError(t, err)
	assert.Equal(t, ka, kb)

	b.Claims["organization_id"] = 2
	kb, err = b.Key()
	require.NoError(t, err)
	assert.NotEqual(t, ka, kb)
}

func TestMust(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() { New(nil, WithDecision(DecisionAllow)).Must(ctx, request()) })
	assert.Panics(t, func() { New(nil, WithDecision(DecisionDeny)).Must(ctx, request()) })
}

type pgError struct{ code, msg string }

func (e *pgError) Error() string    { return e.msg }
func (e *pgError) SQLState() string { return e.code }

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		missing bool
	}{
		{
			name:    "undefined authorize",
			err:     &pgError{easyrls.PgUndefinedFunction, "function authorize(text, text, jsonb) does not exist"},
			missing: true,
		},
		{
			name:    "undefined role_permissions",
			err:     fmt.Errorf("query: %w", &pgError{easyrls.PgUndefinedTable, `relation "public.role_permissions" does not exist`}),
			missing: true,
		},
		{
			name: "other undefined table",
			err:  &pgError{easyrls.PgUndefinedTable, `relation "widgets" does not exist`},
		},
		{
			name:    "code in message only",
			err:     errors.New("ERROR: function authorize does not exist (SQLSTATE 42883)"),
			missing: true,
		},
		{
			name: "unrelated",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			assert.Equal(t, tt.missing, easyrls.IsMissingAuthorizeErr(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMemoryCache(t *testing.T) {
	c, err := NewCache(WithMaxEntries(100), WithTTL(time.Minute))
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", true)
	allowed, ok := c.Get("k")
	assert.True(t, ok)
	assert.True(t, allowed)

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}
