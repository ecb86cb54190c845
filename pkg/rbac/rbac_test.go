package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for _, valid := range []string{"user", "premium", "admin"} {
		r, ok := Parse(valid)
		assert.True(t, ok, valid)
		assert.Equal(t, Role(valid), r)
	}

	_, ok := Parse("superadmin")
	assert.False(t, ok)
	_, ok = Parse("")
	assert.False(t, ok)
}

func TestCan(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleUser, CapPurchase, true},
		{RoleUser, CapManageProducts, false},
		{RoleUser, CapChangeRoles, false},
		{RolePremium, CapPurchase, true},
		{RolePremium, CapManageProducts, true},
		{RolePremium, CapManageAnyProduct, false},
		{RoleAdmin, CapManageProducts, true},
		{RoleAdmin, CapManageAnyProduct, true},
		{RoleAdmin, CapChangeRoles, true},
		{RoleAdmin, CapPurchase, false},
		{Role("ghost"), CapPurchase, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Can(tt.role, tt.cap), "%s/%s", tt.role, tt.cap)
	}
}
