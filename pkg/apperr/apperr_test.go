package apperr_test

import (
	"errors"
	"testing"

	"mailagent/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapCarriesCodeAndMetadata(t *testing.T) {
	cause := errors.New("field recipient not filled")

	err := apperr.Wrap("fillField", apperr.CodeFieldNotFound, cause, map[string]any{
		apperr.MetaRole:  "recipient",
		apperr.MetaStage: apperr.StageFill,
	})

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)

	assert.Equal(t, apperr.CodeFieldNotFound, appErr.Code)
	assert.Equal(t, "recipient", appErr.Metadata[apperr.MetaRole])
	assert.Equal(t, "fillField: field recipient not filled", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, apperr.CodeTimeout,
		apperr.CodeOf(apperr.WrapErrorWithReason("Run", apperr.CodeTimeout, "deadline")))

	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(errors.New("plain")))
}

func TestCodeOfReturnsOutermost(t *testing.T) {
	inner := apperr.WrapErrorWithReason("inner", apperr.CodeVerification, "mismatch")
	outer := apperr.Wrap("outer", apperr.CodeFieldNotFound, inner, nil)

	assert.Equal(t, apperr.CodeFieldNotFound, apperr.CodeOf(outer))
}

func TestIsCodeWalksTheChain(t *testing.T) {
	inner := apperr.WrapErrorWithReason("inner", apperr.CodeVerification, "mismatch")
	outer := apperr.Wrap("outer", apperr.CodeFieldNotFound, inner, nil)

	assert.True(t, apperr.IsCode(outer, apperr.CodeFieldNotFound))
	assert.True(t, apperr.IsCode(outer, apperr.CodeVerification))
	assert.False(t, apperr.IsCode(outer, apperr.CodeTimeout))
	assert.False(t, apperr.IsCode(nil, apperr.CodeTimeout))
	assert.False(t, apperr.IsCode(errors.New("plain"), apperr.CodeInternal))
}

func TestInvalidReqError(t *testing.T) {
	err := apperr.InvalidReqError("Parse", "recipient", errors.New("no address"))

	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "recipient", appErr.Metadata[apperr.MetaField])
}
