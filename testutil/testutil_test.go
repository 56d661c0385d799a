package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidin1998/crowdfund/pkg/models"
)

func TestCreateUserOptions(t *testing.T) {
	db := NewDB(t)

	active, _ := CreateUser(t, db)
	inactive, _ := CreateUser(t, db, Inactive())
	admin, _ := CreateUser(t, db, Admin(), WithEmail("root@example.com"))

	assert.True(t, active.IsActive)
	assert.False(t, inactive.IsActive)

	var stored models.User
	require.NoError(t, db.First(&stored, inactive.ID).Error)
	assert.False(t, stored.IsActive)

	require.NoError(t, db.First(&stored, active.ID).Error)
	assert.True(t, stored.IsActive)

	stored = models.User{}
	require.NoError(t, db.First(&stored, admin.ID).Error)
	assert.True(t, stored.IsAdmin)
	assert.True(t, stored.IsActive)
	assert.Equal(t, "root@example.com", stored.Email)
}
