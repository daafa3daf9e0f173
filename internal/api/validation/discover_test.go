package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDiscoverValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterDiscoverValidators(v))

	assert.NoError(t, v.Var("remoteok", "source_tag"))
	assert.Error(t, v.Var("myspace", "source_tag"))
}

func TestNew(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = New() })

	assert.NoError(t, v.Var("Google_Search", "source_tag"))
	assert.Error(t, v.Var("", "source_tag"))
}
