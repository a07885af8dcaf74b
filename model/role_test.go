package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleModerator.IsValid())
	assert.True(t, RoleAdministrator.IsValid())

	assert.False(t, Role("").IsValid())
	assert.False(t, Role("superuser").IsValid())
}

func TestRoleOrdering(t *testing.T) {
	// user < moderator < administrator
	assert.True(t, RoleUser.AtLeast(RoleUser))
	assert.False(t, RoleUser.AtLeast(RoleModerator))
	assert.False(t, RoleUser.AtLeast(RoleAdministrator))

	assert.True(t, RoleModerator.AtLeast(RoleUser))
	assert.True(t, RoleModerator.AtLeast(RoleModerator))
	assert.False(t, RoleModerator.AtLeast(RoleAdministrator))

	assert.True(t, RoleAdministrator.AtLeast(RoleUser))
	assert.True(t, RoleAdministrator.AtLeast(RoleModerator))
	assert.True(t, RoleAdministrator.AtLeast(RoleAdministrator))
}

func TestUnknownRoleRanksBelowEverything(t *testing.T) {
	assert.False(t, Role("ghost").AtLeast(RoleUser))
}
