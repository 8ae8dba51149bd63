package claims_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japbujan/rork-winking-owl-audits-api/internal/domain/identity"
	"github.com/japbujan/rork-winking-owl-audits-api/internal/infrastructure/claims"
)

func signedToken(t *testing.T, c jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("not-verified-here"))
	require.NoError(t, err)
	return token
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "case insensitive scheme", header: "bearer tok", want: "tok"},
		{name: "missing", header: "", wantErr: identity.ErrMissingToken},
		{name: "blank", header: "   ", wantErr: identity.ErrMissingToken},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantErr: identity.ErrMalformedHeader},
		{name: "scheme only", header: "Bearer", wantErr: identity.ErrMalformedHeader},
		{name: "extra parts", header: "Bearer a b", wantErr: identity.ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := claims.BearerToken(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_Decode(t *testing.T) {
	e := claims.NewExtractor()
	token := signedToken(t, jwt.MapClaims{
		"sub":            "user-1",
		"email":          "jane@example.com",
		"email_verified": true,
		"custom:group":   "ops",
	})

	c, err := e.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.Sub)
	assert.Equal(t, "jane@example.com", c.Email)
	assert.True(t, c.EmailVerified)
	assert.Equal(t, "ops", c.Group)
}

func TestExtractor_Decode_Malformed(t *testing.T) {
	e := claims.NewExtractor()

	for _, token := range []string{"not-a-token", "a.b", "a.!!!.c"} {
		_, err := e.Decode(token)
		assert.ErrorIs(t, err, identity.ErrMalformedToken, token)
	}
}

func TestExtractor_Resolve(t *testing.T) {
	e := claims.NewExtractor()
	good := signedToken(t, jwt.MapClaims{"sub": "from-token"})
	gateway := map[string]any{"sub": "from-gateway"}

	t.Run("token claims win", func(t *testing.T) {
		creds, err := e.Resolve(identity.Request{Authorization: "Bearer " + good, GatewayClaims: gateway})
		require.NoError(t, err)
		assert.Equal(t, good, creds.Token)
		assert.Equal(t, "from-token", creds.Claims.Sub)
	})

	t.Run("falls back to gateway claims", func(t *testing.T) {
		creds, err := e.Resolve(identity.Request{Authorization: "Bearer opaque", GatewayClaims: gateway})
		require.NoError(t, err)
		assert.Equal(t, "opaque", creds.Token)
		assert.Equal(t, "from-gateway", creds.Claims.Sub)
	})

	t.Run("no identity", func(t *testing.T) {
		_, err := e.Resolve(identity.Request{Authorization: "Bearer opaque"})
		assert.ErrorIs(t, err, identity.ErrNoIdentity)
		assert.True(t, identity.IsUnauthenticated(err))
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := e.Resolve(identity.Request{GatewayClaims: gateway})
		assert.ErrorIs(t, err, identity.ErrMissingToken)
	})
}
