package checker

import "context"

// Decision allows bypassing the database for admin tools and tests.
type Decision int

type decisionKey struct{}

const (
	// DecisionUnset means no override: evaluate authorize() normally.
	DecisionUnset Decision = iota

	// DecisionAllow bypasses evaluation and always allows.
	DecisionAllow

	// DecisionDeny bypasses evaluation and always denies.
	DecisionDeny
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	default:
		return "unset"
	}
}

// WithDecisionContext returns a context carrying decision. A Checker only
// consults it when built with WithContextDecision.
func WithDecisionContext(ctx context.Context, decision Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, decision)
}

// GetDecisionContext returns the decision carried by ctx, or DecisionUnset.
func GetDecisionContext(ctx context.Context) Decision {
	if decision, ok := ctx.Value(decisionKey{}).(Decision); ok {
		return decision
	}
	return DecisionUnset
}
