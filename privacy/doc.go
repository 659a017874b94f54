// Package privacy decides which statements of a batch may run.
//
// A Policy is a list of rules evaluated in order until one returns a final
// decision:
//
//   - Allow: the statement may run and evaluation stops
//   - Deny: the statement is rejected and evaluation stops
//   - Skip: the next rule is evaluated
//
// A policy whose rules all skip allows the statement, so policies usually
// end with AlwaysDenyRule.
//
// The viewer submitting the batch travels in the context:
//
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "u1", Roles: []string{"clerk"}})
//	eng := engine.New(dialect.Postgres, reg, engine.WithPolicy(privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.DenyKindRule(statement.KindDelete),
//	    privacy.AlwaysAllowRule(),
//	}))
//
// The engine evaluates the policy against every statement before it plans
// the batch, and aborts with a *DeniedError on the first rejection.
package privacy
