package policy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPolicy_Defaults(t *testing.T) {
	p, err := NewConfigPolicy(config.PolicyConfig{})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		role   shared.Role
		action shared.Action
		want   bool
	}{
		{shared.RoleBuyer, shared.ActionSubmit, true},
		{shared.RoleBuyer, shared.ActionDecideQC, false},
		{shared.RoleManufacturer, shared.ActionUploadQC, true},
		{shared.RoleManufacturer, shared.ActionRequestPayment, false},
		{shared.RoleAdmin, shared.ActionRefundPayment, true},
		{shared.RoleAdmin, shared.ActionUploadQC, false},
		{shared.RoleSystem, shared.ActionViewOrder, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsAuthorized(ctx, tt.role, uuid.New(), tt.action))
		})
	}
}

func TestConfigPolicy_GrantsAndRevokes(t *testing.T) {
	p, err := NewConfigPolicy(config.PolicyConfig{
		Grants:  map[string][]string{"manufacturer": {"payment.request"}},
		Revokes: map[string][]string{"buyer": {"production.unlock_bulk"}},
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, p.IsAuthorized(ctx, shared.RoleManufacturer, uuid.New(), shared.ActionRequestPayment))
	assert.False(t, p.IsAuthorized(ctx, shared.RoleBuyer, uuid.New(), shared.ActionUnlockBulk))
	assert.NotContains(t, p.Actions(shared.RoleBuyer), shared.ActionUnlockBulk)
}

func TestConfigPolicy_AdminAllowList(t *testing.T) {
	admin := uuid.New()
	p, err := NewConfigPolicy(config.PolicyConfig{AdminIDs: []string{admin.String()}})
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, p.IsAuthorized(ctx, shared.RoleAdmin, admin, shared.ActionAdminApprove))
	assert.False(t, p.IsAuthorized(ctx, shared.RoleAdmin, uuid.New(), shared.ActionAdminApprove))
}

func TestNewConfigPolicy_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PolicyConfig
		want string
	}{
		{"unknown role", config.PolicyConfig{Grants: map[string][]string{"auditor": {"order.view"}}}, "unknown role"},
		{"unknown action", config.PolicyConfig{Revokes: map[string][]string{"buyer": {"order.delete"}}}, "unknown action"},
		{"bad admin id", config.PolicyConfig{AdminIDs: []string{"root"}}, "invalid admin id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigPolicy(tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
