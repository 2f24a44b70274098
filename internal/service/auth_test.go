package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService(t *testing.T) {
	svc, err := NewAuthService("s3cret")
	require.NoError(t, err)

	assert.NoError(t, svc.Authenticate("s3cret"))
	assert.ErrorIs(t, svc.Authenticate("wrong"), ErrInvalidPassword)
	assert.ErrorIs(t, svc.Authenticate(""), ErrInvalidPassword)
}
