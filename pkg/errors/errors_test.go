package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"no key", ErrNoKeyAvailable("empty ring"), KindNoKeyAvailable},
		{"unknown version", ErrUnknownKeyVersion("abc"), KindUnknownKeyVersion},
		{"malformed", ErrMalformedCookie("bad base64"), KindMalformedCookie},
		{"tampered", ErrTamperedOrWrongKey("abc"), KindTamperedOrWrongKey},
		{"expired", ErrExpired("2024-01-01T00:00:00Z"), KindExpired},
		{"identity", ErrInvalidIdentity("empty"), KindInvalidIdentity},
		{"wrapped", fmt.Errorf("decode: %w", ErrExpired("x")), KindExpired},
		{"plain", stderrors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("validate: %w", ErrTamperedOrWrongKey("k1"))
	assert.True(t, stderrors.Is(err, ErrTamperedOrWrongKey("other")))
	assert.False(t, stderrors.Is(err, ErrExpired("x")))
	assert.True(t, IsKind(err, KindTamperedOrWrongKey))
	assert.False(t, IsKind(nil, KindTamperedOrWrongKey))
}

func TestKeyStoreErrorKeepsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ErrKeyStore("load", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
}

func TestIsValidationFailure(t *testing.T) {
	assert.True(t, IsValidationFailure(ErrExpired("x")))
	assert.True(t, IsValidationFailure(ErrMalformedCookie("x")))
	assert.True(t, IsValidationFailure(ErrUnknownKeyVersion("x")))
	assert.True(t, IsValidationFailure(ErrTamperedOrWrongKey("x")))
	assert.False(t, IsValidationFailure(ErrNoKeyAvailable("x")))
	assert.False(t, IsValidationFailure(stderrors.New("x")))
}

func TestErrorResponses(t *testing.T) {
	resp := ToGenericErrorResponse(ErrInvalidIdentity("empty email"))
	require.NotNil(t, resp)
	assert.Equal(t, "invalid_identity", resp.Error)
	assert.Equal(t, "empty email", resp.Metadata["reason"])

	generic := ToGenericErrorResponse(stderrors.New("boom"))
	assert.Equal(t, string(KindInternal), generic.Error)

	unauth := UnauthenticatedResponse()
	assert.Equal(t, CodeUnauthenticated, unauth.Error)
	assert.Empty(t, unauth.Metadata)
}
