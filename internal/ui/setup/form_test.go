package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePort(t *testing.T) {
	assert.NoError(t, validatePort("993"))
	assert.EqualError(t, validatePort(""), "port is required")
	assert.EqualError(t, validatePort("99a"), "port must be a number")
}

func TestValidateRequired(t *testing.T) {
	check := validateRequired("Username")
	assert.NoError(t, check("me"))
	assert.EqualError(t, check("  "), "Username is required")
}
