// Package checker evaluates the installed authorize() function the way a
// generated policy does, for a chosen set of JWT claims.
//
// Each check runs in its own transaction that switches to the policy role,
// installs the claims as request.jwt.claims and is always rolled back:
//
//	c := checker.New(db)
//	ok, err := c.Check(ctx, checker.Request{
//	    Claims:   checker.RoleClaims("member"),
//	    Resource: "projects",
//	    Action:   easyrls.ActionSelect,
//	    Params:   map[string]any{"$organization_id": 1},
//	})
//
// Use WithCache for repeated checks and WithDecision to bypass the database in
// tests.
package checker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pthm/easyrls"
	"github.com/pthm/easyrls/internal/sqlgen/sqldsl"
)

// DefaultRole is the database role generated policies apply to.
const DefaultRole = "authenticated"

// Beginner starts transactions. Implemented by *sql.DB and *sql.Conn.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Request is one authorize() evaluation.
type Request struct {
	// Claims become request.jwt.claims. authorize() reads user_role from them.
	Claims map[string]any `json:"claims"`
	// Resource and Action select the role_permissions row.
	Resource string         `json:"resource"`
	Action   easyrls.Action `json:"action"`
	// Params are the $-prefixed values a policy would pass.
	Params map[string]any `json:"params"`
}

// RoleClaims returns claims carrying only the user_role claim.
func RoleClaims(role string) map[string]any {
	return map[string]any{"user_role": role}
}

// Key identifies the request in a Cache. Map keys encode in sorted order, so
// equal requests share a key.
func (r Request) Key() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}
	return string(data), nil
}

func (r Request) validate() error {
	if r.Resource == "" {
		return errors.New("checker: resource is required")
	}
	if !r.Action.Valid() {
		return fmt.Errorf("checker: unknown action %q", r.Action)
	}
	return nil
}

// Checker evaluates requests against a database with easyrls installed.
type Checker struct {
	db                 Beginner
	role               string
	cache              Cache
	decision           Decision
	useContextDecision bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithCache caches results of successful evaluations.
func WithCache(c Cache) Option {
	return func(ch *Checker) {
		ch.cache = c
	}
}

// WithDecision sets an override that bypasses the database.
func WithDecision(d Decision) Option {
	return func(ch *Checker) {
		ch.decision = d
	}
}

// WithContextDecision makes Check consult GetDecisionContext first.
//
// Precedence when enabled:
//  1. Context decision (via WithDecisionContext)
//  2. Checker decision (via WithDecision)
//  3. Database evaluation
func WithContextDecision() Option {
	return func(ch *Checker) {
		ch.useContextDecision = true
	}
}

// WithRole sets the role assumed during evaluation. Empty keeps DefaultRole.
func WithRole(role string) Option {
	return func(ch *Checker) {
		if role != "" {
			ch.role = role
		}
	}
}

// New creates a Checker. db may be nil when a decision override is set.
func New(db Beginner, opts ...Option) *Checker {
	c := &Checker{db: db, role: DefaultRole}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check reports whether authorize() grants req. Errors are not cached.
func (c *Checker) Check(ctx context.Context, req Request) (bool, error) {
	if err := req.validate(); err != nil {
		return false, err
	}

	if c.useContextDecision {
		if d := GetDecisionContext(ctx); d != DecisionUnset {
			return d == DecisionAllow, nil
		}
	}
	if c.decision != DecisionUnset {
		return c.decision == DecisionAllow, nil
	}

	key, err := req.Key()
	if err != nil {
		return false, err
	}
	if c.cache != nil {
		if allowed, ok := c.cache.Get(key); ok {
			return allowed, nil
		}
	}

	allowed, err := c.evaluate(ctx, req)
	if err != nil {
		return false, err
	}
	if c.cache != nil {
		c.cache.Set(key, allowed)
	}
	return allowed, nil
}

// Must panics unless req is granted.
func (c *Checker) Must(ctx context.Context, req Request) {
	ok, err := c.Check(ctx, req)
	if err != nil {
		panic(fmt.Sprintf("checker.Must: %v", err))
	}
	if !ok {
		panic(fmt.Sprintf("checker.Must: %s on %s denied", req.Action, req.Resource))
	}
}

func (c *Checker) evaluate(ctx context.Context, req Request) (bool, error) {
	if c.db == nil {
		return false, errors.New("checker: no database")
	}

	claims, err := encodeObject(req.Claims)
	if err != nil {
		return false, fmt.Errorf("encoding claims: %w", err)
	}
	params, err := encodeObject(req.Params)
	if err != nil {
		return false, fmt.Errorf("encoding params: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SET LOCAL ROLE "+sqldsl.QuoteIdent(c.role)); err != nil {
		return false, fmt.Errorf("assuming role %s: %w", c.role, err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT set_config('request.jwt.claims', $1, true)", claims); err != nil {
		return false, fmt.Errorf("setting claims: %w", err)
	}

	var allowed sql.NullBool
	err = tx.QueryRowContext(ctx,
		"SELECT authorize($1::text, $2::text, $3::jsonb)",
		req.Resource, req.Action.String(), params,
	).Scan(&allowed)
	if err != nil {
		return false, mapError(err)
	}
	return allowed.Valid && allowed.Bool, nil
}

// encodeObject encodes m as a JSON object. nil becomes {}.
func encodeObject(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// mapError wraps errors caused by a missing runtime in ErrMissingAuthorize.
func mapError(err error) error {
	switch sqlState(err) {
	case easyrls.PgUndefinedFunction:
		if strings.Contains(err.Error(), "authorize") {
			return fmt.Errorf("%w: %w", easyrls.ErrMissingAuthorize, err)
		}
	case easyrls.PgUndefinedTable:
		if strings.Contains(err.Error(), "role_permissions") {
			return fmt.Errorf("%w: %w", easyrls.ErrMissingAuthorize, err)
		}
	}
	return fmt.Errorf("authorize: %w", err)
}

// sqlState extracts the SQLSTATE code from a driver error. Both lib/pq and
// pgconn errors expose SQLState().
func sqlState(err error) string {
	var e interface{ SQLState() string }
	if errors.As(err, &e) {
		return e.SQLState()
	}

	// Fallback: "... (SQLSTATE 42P01)" or "SQLSTATE: 42P01"
	msg := err.Error()
	for _, prefix := range []string{"SQLSTATE ", "SQLSTATE: "} {
		if idx := strings.Index(msg, prefix); idx >= 0 {
			start := idx + len(prefix)
			if start+5 <= len(msg) {
				return msg[start : start+5]
			}
		}
	}
	return ""
}
