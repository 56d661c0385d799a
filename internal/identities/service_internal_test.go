package identities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aidin1998/crowdfund/pkg/validation"
	"github.com/Aidin1998/crowdfund/testutil"
)

func TestDummyHashMatchesPasswordCost(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 2} {
		svc := NewService(zap.NewNop(), nil, testutil.AuthConfig(), validation.NewValidator(), WithPasswordCost(cost))

		got, err := bcrypt.Cost(svc.dummyHash)
		require.NoError(t, err)
		assert.Equal(t, cost, got)

		hashed, err := svc.hashPassword("password123")
		require.NoError(t, err)
		stored, err := bcrypt.Cost([]byte(hashed))
		require.NoError(t, err)
		assert.Equal(t, got, stored)
	}
}

func TestOutOfRangePasswordCostFallsBack(t *testing.T) {
	svc := NewService(zap.NewNop(), nil, testutil.AuthConfig(), validation.NewValidator(), WithPasswordCost(bcrypt.MaxCost+1))

	assert.Equal(t, bcrypt.DefaultCost, svc.passwordCost)
	got, err := bcrypt.Cost(svc.dummyHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, got)
}
