package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionOrdering(t *testing.T) {
	assert.True(t, Admin(5).Greater(Write(0)))
	assert.True(t, Write(0).Greater(Read()))
	assert.True(t, Write(1).Greater(Write(2)))
	assert.False(t, Write(2).Greater(Write(1)))
}

func TestPermissionEqualNotGreater(t *testing.T) {
	assert.False(t, Write(5).Greater(Write(5)))
	assert.True(t, Write(5).GreaterOrEqual(Write(5)))
}

func TestClampAboveMax(t *testing.T) {
	bounds := NewBounds(Write(10))
	got := bounds.Clamp(Admin(5))
	assert.Equal(t, Write(10), got)
}

func TestClampBelowMin(t *testing.T) {
	bounds := NewBounds(Write(10)).WithMin(Write(20))
	got := bounds.Clamp(Read())
	assert.Equal(t, Write(20), got)
}

func TestClampWithinBounds(t *testing.T) {
	bounds := NewBounds(Admin(0)).WithMin(Read())
	got := bounds.Clamp(Write(5))
	assert.Equal(t, Write(5), got)
}

func TestClampInvalidBoundsAppliesMaxOnly(t *testing.T) {
	bounds := PermissionBounds{Max: Write(5), Min: permPtr(Admin(0))}
	assert.False(t, bounds.Valid())
	got := bounds.Clamp(Admin(1))
	assert.Equal(t, Write(5), got)
}

func TestClampIsIdempotent(t *testing.T) {
	bounds := NewBounds(Write(10)).WithMin(Read())
	once := bounds.Clamp(Admin(0))
	twice := bounds.Clamp(once)
	assert.Equal(t, once, twice)
}

func TestCanDelegateWithRequiresMaxWithinOwnPermission(t *testing.T) {
	assert.True(t, CanDelegateWith(Admin(0), NewBounds(Write(10))))
	assert.False(t, CanDelegateWith(Write(10), NewBounds(Admin(0))))
}

func permPtr(p Permission) *Permission { return &p }
