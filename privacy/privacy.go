package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/statement"
)

// Policy decision sentinel errors.
//
// These errors are used as return values from rules to indicate how the
// evaluation should proceed. Use errors.Is() to check for these values:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
//	if errors.Is(err, privacy.Skip) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("strata/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("strata/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule.
	Skip = errors.New("strata/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule decides whether a statement may run.
type Rule interface {
	EvalStatement(context.Context, statement.Statement) error
}

// RuleFunc type is an adapter which allows the use of ordinary functions as
// rules.
type RuleFunc func(context.Context, statement.Statement) error

// EvalStatement returns f(ctx, s).
func (f RuleFunc) EvalStatement(ctx context.Context, s statement.Statement) error {
	return f(ctx, s)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function. Returning
// nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ statement.Statement) error {
		return eval(ctx)
	})
}

// OnKind evaluates the given rule only on statements of the given kinds.
func OnKind(rule Rule, kinds ...statement.Kind) Rule {
	return RuleFunc(func(ctx context.Context, s statement.Statement) error {
		for _, k := range kinds {
			if s.Kind() == k {
				return rule.EvalStatement(ctx, s)
			}
		}
		return Skip
	})
}

// OnType evaluates the given rule only on statements whose target is of
// type t or one of its subtypes.
func OnType(rule Rule, t *schema.Type) Rule {
	return RuleFunc(func(ctx context.Context, s statement.Statement) error {
		if inst := s.Target(); inst != nil && inst.Type != nil && inst.Type.IsA(t) {
			return rule.EvalStatement(ctx, s)
		}
		return Skip
	})
}

// DenyKindRule returns a rule denying statements of the given kinds.
func DenyKindRule(kinds ...statement.Kind) Rule {
	rule := RuleFunc(func(_ context.Context, s statement.Statement) error {
		return Denyf("strata/privacy: %s is not allowed", s.Kind())
	})
	return OnKind(rule, kinds...)
}

// AllowKindRule returns a rule allowing statements of the given kinds.
func AllowKindRule(kinds ...statement.Kind) Rule {
	return OnKind(AlwaysAllowRule(), kinds...)
}

// Policy is a list of rules evaluated in order. The first rule returning a
// decision other than Skip or nil ends the evaluation. A policy whose rules
// all skip allows the statement.
type Policy []Rule

// EvalStatement evaluates the rules of the policy. Allow is reported as a
// nil error.
func (p Policy) EvalStatement(ctx context.Context, s statement.Statement) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.EvalStatement(ctx, s); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// DeniedError is returned when a rule rejects a statement of a batch.
type DeniedError struct {
	// Index of the statement in the batch.
	Index     int
	Statement statement.Statement
	Err       error
}

// Error returns the error string.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("strata/privacy: statement #%d (%s on %s) denied: %v", e.Index, e.Statement.Kind(), e.Statement.Target(), e.Err)
}

// Unwrap returns the decision of the rule.
func (e *DeniedError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches the validation class. A
// denied batch is reported back to the caller like any rejected batch.
func (e *DeniedError) Is(err error) bool {
	return err == strata.ErrValidation
}

// IsDenied returns true if the error is a DeniedError.
func IsDenied(err error) bool {
	var e *DeniedError
	return errors.As(err, &e)
}

// EvalBatch evaluates the rule against every statement of the batch and
// returns a *DeniedError for the first statement it does not allow.
func EvalBatch(ctx context.Context, rule Rule, b statement.Batch) error {
	for i, s := range b {
		switch decision := rule.EvalStatement(ctx, s); {
		case decision == nil || errors.Is(decision, Skip) || errors.Is(decision, Allow):
		default:
			return &DeniedError{Index: i, Statement: s, Err: decision}
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it. Policies evaluated with the returned
// context return the decision without running their rules.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalStatement(context.Context, statement.Statement) error {
	return f.decision
}

var _ Rule = Policy(nil)
