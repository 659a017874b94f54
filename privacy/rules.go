package privacy

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/strata/statement"
)

// Viewer represents the authenticated user submitting a batch.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier, or "".
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context.
// Returns nil if no viewer is present.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string { return v.UserID }

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string { return v.Roles }

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer returns a rule that denies every statement if no viewer is
// present in the context.
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("strata/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows the statement if the viewer has the
// role, and skips otherwise.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows the statement if the viewer has any
// of the roles, and skips otherwise.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a rule that allows inserts and updates whose attribute
// holds the viewer's ID. Other statements are skipped.
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.IsOwner("ownerId"),
//	    privacy.DenyKindRule(statement.KindInsert, statement.KindUpdate),
//	}
func IsOwner(attribute string) Rule {
	return RuleFunc(func(ctx context.Context, s statement.Statement) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		v, ok := written(s, attribute)
		if !ok {
			return Skip
		}
		if fmt.Sprint(v) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule returns a rule that allows inserts and updates whose attribute
// holds the viewer's tenant, and denies them when it holds another one.
func TenantRule(attribute string) Rule {
	return RuleFunc(func(ctx context.Context, s statement.Statement) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		v, ok := written(s, attribute)
		if !ok {
			return Skip
		}
		if fmt.Sprint(v) == viewer.GetTenantID() {
			return Allow
		}
		return Denyf("strata/privacy: tenant mismatch")
	})
}

// written returns the value an insert or update writes into the named
// attribute.
func written(s statement.Statement, attribute string) (any, bool) {
	switch s := s.(type) {
	case *statement.Insert:
		return s.Instance.Value(attribute)
	case *statement.Update:
		return s.Instance.Value(attribute)
	default:
		return nil, false
	}
}
