package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetward/dispatch/internal/apperror"
)

func TestStaticResolver_ResolveKnownToken(t *testing.T) {
	r := NewStaticResolver(map[string]Subject{"tok-a": {ID: 7}})
	res := r.Resolve("tok-a")
	assert.True(t, res.Ok)
	assert.Equal(t, int64(7), res.Subject.ID)
}

func TestStaticResolver_ResolveUnknownTokenIsTaggedNotPanic(t *testing.T) {
	r := NewStaticResolver(map[string]Subject{})
	res := r.Resolve("nope")
	assert.False(t, res.Ok)
	assert.Equal(t, apperror.KindAuthorization, apperror.Of(res.Err))
}

func TestStaticResolver_ResolveEmptyTokenIsValidationError(t *testing.T) {
	r := NewStaticResolver(map[string]Subject{})
	res := r.Resolve("")
	assert.False(t, res.Ok)
	assert.Equal(t, apperror.KindValidation, apperror.Of(res.Err))
}
