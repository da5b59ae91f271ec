package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

type loginBody struct {
	Token string `json:"token" validate:"required"`
}

func TestDecodeJSONBody(t *testing.T) {
	t.Parallel()

	var body loginBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"abc"}`))
	require.NoError(t, DecodeJSONBody(req, &body))
	assert.Equal(t, "abc", body.Token)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"token":"abc","extra":1}`))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(DecodeJSONBody(req, &loginBody{})))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	err := DecodeJSONBody(req, &loginBody{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"token": "is required"}, typed.Details())
}

func TestParseQueryInt(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/?limit=5", nil)
	v, err := ParseQueryInt(req, "limit", 10, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	v, err = ParseQueryInt(req, "limit", 10, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err = ParseQueryInt(req, "limit", 10, 1, 50)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseIDParam(t *testing.T) {
	t.Parallel()

	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("id", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	id, err := ParseIDParam(withParam("42"), "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := ParseIDParam(withParam(bad), "id")
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), bad)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	token, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	token, err = BearerToken("  raw  ")
	require.NoError(t, err)
	assert.Equal(t, "raw", token)

	_, err = BearerToken("Bearer ")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = BearerToken("two words")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSanitizeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "abcdef", SanitizeString("abcdef", 0))
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "مرح", SanitizeString("مرحبا", 3))
}
