package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	h, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", h)
	assert.True(t, CheckPassword("secret1", h))
	assert.False(t, CheckPassword("secret2", h))

	h2, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, h, h2, "salted")
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
	assert.NotEqual(t, a, b)
}
