package types_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sandrolain/gomapper/pkg/types"
)

func TestError_Classes(t *testing.T) {
	tests := []struct {
		code  types.ErrorCode
		class error
	}{
		{types.ErrEmptySegment, types.ErrPathSyntax},
		{types.ErrExprSyntax, types.ErrSyntax},
		{types.ErrUnknownName, types.ErrConfiguration},
		{types.ErrCannotCoerce, types.ErrTypeCoercion},
		{types.ErrHookFailed, types.ErrCallback},
		{types.ErrPathNotFound, types.ErrResolution},
		{types.ErrZipLength, types.ErrZipMismatch},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", types.Errorf(tt.code, "boom"))
			assert.ErrorIs(t, err, tt.class)
			assert.ErrorIs(t, err, &types.Error{Code: tt.code})
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := types.NewError(types.ErrEmptySegment, "empty path segment", 3).WithPath("profile.name")
	assert.Equal(t, "P0102 at profile.name at position 3: empty path segment", err.Error())

	cause := errors.New("io")
	err = types.Errorf(types.ErrHookFailed, "hook %q failed", "audit").WithCause(cause)
	assert.Equal(t, `H0401: hook "audit" failed: io`, err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, types.IsFatal(types.Errorf(types.ErrUnknownName, "x")))
	assert.True(t, types.IsFatal(types.Errorf(types.ErrEmptyPath, "x")))
	assert.False(t, types.IsFatal(types.Errorf(types.ErrCannotCoerce, "x")))
	assert.False(t, types.IsFatal(errors.New("plain")))
}

func TestAggregateError(t *testing.T) {
	assert.NoError(t, types.NewAggregateError(nil))

	hookErr := types.Errorf(types.ErrHookFailed, "a")
	coerceErr := types.Errorf(types.ErrCannotCoerce, "b")
	err := types.NewAggregateError([]error{hookErr, coerceErr})

	assert.ErrorIs(t, err, types.ErrCallback)
	assert.ErrorIs(t, err, types.ErrTypeCoercion)
	assert.NotErrorIs(t, err, types.ErrConfiguration)

	var agg *types.AggregateError
	assert.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors, 2)
	assert.Equal(t, "2 errors occurred: H0401: a; T0301: b", err.Error())
}
