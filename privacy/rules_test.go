package privacy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/privacy"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/statement"
)

var document = &schema.Type{
	Name: "Document",
	Attributes: []*schema.Attribute{
		{Name: "ownerId"},
		{Name: "tenantId"},
		{Name: "title"},
	},
}

func newDocument(id any, owner, tenant string) *statement.Instance {
	return statement.NewInstance(document, id).Set("ownerId", owner).Set("tenantId", tenant)
}

// TestSimpleViewer tests the SimpleViewer implementation.
func TestSimpleViewer(t *testing.T) {
	viewer := &privacy.SimpleViewer{
		UserID:   "user-123",
		Roles:    []string{"admin", "user"},
		TenantID: "tenant-abc",
	}

	assert.Equal(t, "user-123", viewer.GetID())
	assert.Equal(t, []string{"admin", "user"}, viewer.GetRoles())
	assert.Equal(t, "tenant-abc", viewer.GetTenantID())
}

// TestViewerContext tests viewer context functions.
func TestViewerContext(t *testing.T) {
	t.Run("WithViewer_and_ViewerFromContext", func(t *testing.T) {
		ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "user-123"})
		retrieved := privacy.ViewerFromContext(ctx)
		require.NotNil(t, retrieved)
		assert.Equal(t, "user-123", retrieved.GetID())
	})

	t.Run("ViewerFromContext_returns_nil_without_viewer", func(t *testing.T) {
		assert.Nil(t, privacy.ViewerFromContext(context.Background()))
	})
}

func TestDenyIfNoViewer(t *testing.T) {
	rule := privacy.DenyIfNoViewer()
	s := &statement.Delete{Instance: newDocument(1, "u1", "t1")}

	assert.ErrorIs(t, rule.EvalStatement(context.Background(), s), privacy.Deny)
	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "u1"})
	assert.ErrorIs(t, rule.EvalStatement(ctx, s), privacy.Skip)
}

func TestHasRole(t *testing.T) {
	s := &statement.Delete{Instance: newDocument(1, "u1", "t1")}
	tests := []struct {
		name   string
		viewer privacy.Viewer
		rule   privacy.Rule
		want   error
	}{
		{"no_viewer", nil, privacy.HasRole("admin"), privacy.Skip},
		{"has_role", &privacy.SimpleViewer{Roles: []string{"admin"}}, privacy.HasRole("admin"), privacy.Allow},
		{"missing_role", &privacy.SimpleViewer{Roles: []string{"clerk"}}, privacy.HasRole("admin"), privacy.Skip},
		{"any_role", &privacy.SimpleViewer{Roles: []string{"clerk"}}, privacy.HasAnyRole("admin", "clerk"), privacy.Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.viewer != nil {
				ctx = privacy.WithViewer(ctx, tt.viewer)
			}
			assert.ErrorIs(t, tt.rule.EvalStatement(ctx, s), tt.want)
		})
	}
}

func TestIsOwner(t *testing.T) {
	rule := privacy.IsOwner("ownerId")
	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "u1"})

	assert.ErrorIs(t, rule.EvalStatement(ctx, &statement.Insert{Instance: newDocument(1, "u1", "t1")}), privacy.Allow)
	assert.ErrorIs(t, rule.EvalStatement(ctx, &statement.Update{Instance: newDocument(1, "u2", "t1")}), privacy.Skip)
	assert.ErrorIs(t, rule.EvalStatement(ctx, &statement.Delete{Instance: newDocument(1, "u1", "t1")}), privacy.Skip, "deletes carry no values")
	assert.ErrorIs(t, rule.EvalStatement(ctx, &statement.Insert{Instance: statement.NewInstance(document, 2)}), privacy.Skip, "unset")
	assert.ErrorIs(t, rule.EvalStatement(context.Background(), &statement.Insert{Instance: newDocument(1, "u1", "t1")}), privacy.Skip)
}

func TestTenantRule(t *testing.T) {
	rule := privacy.TenantRule("tenantId")
	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "u1", TenantID: "t1"})

	assert.ErrorIs(t, rule.EvalStatement(ctx, &statement.Insert{Instance: newDocument(1, "u1", "t1")}), privacy.Allow)
	assert.ErrorIs(t, rule.EvalStatement(ctx, &statement.Update{Instance: newDocument(1, "u1", "t2")}), privacy.Deny)

	noTenant := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "u1"})
	assert.ErrorIs(t, rule.EvalStatement(noTenant, &statement.Insert{Instance: newDocument(1, "u1", "t2")}), privacy.Skip)
}

func TestPolicyWithViewer(t *testing.T) {
	policy := privacy.Policy{
		privacy.DenyIfNoViewer(),
		privacy.HasRole("admin"),
		privacy.TenantRule("tenantId"),
		privacy.DenyKindRule(statement.KindDelete),
		privacy.AlwaysAllowRule(),
	}
	clerk := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "u1", Roles: []string{"clerk"}, TenantID: "t1"})
	admin := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "u9", Roles: []string{"admin"}})

	b := statement.Batch{
		&statement.Insert{Instance: newDocument(1, "u1", "t1")},
		&statement.Delete{Instance: newDocument(2, "u1", "t1")},
	}
	err := privacy.EvalBatch(clerk, policy, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, privacy.Deny)
	assert.NoError(t, privacy.EvalBatch(clerk, policy, b[:1]))
	assert.NoError(t, privacy.EvalBatch(admin, policy, b))
	assert.ErrorIs(t, privacy.EvalBatch(context.Background(), policy, b), privacy.Deny)
}
