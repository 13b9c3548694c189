package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSigningSecret = "super-secret"
	testAccountID     = "account-123"
)

func newTestIssuer(t *testing.T, clock func() time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        DefaultIssuer,
		Audience:      DefaultAudience,
		TokenTTL:      DefaultTokenTTL,
		Clock:         clock,
	})
	require.NoError(t, err)
	return issuer
}

func TestTokenIssuerIssuesAccountTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, expiresIn, err := issuer.IssueToken(context.Background(), testAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultTokenTTL.Seconds()), expiresIn)

	parser := jwt.Parser{}
	claims := &jwt.RegisteredClaims{}
	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSigningSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, testAccountID, claims.Subject)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{DefaultAudience}, claims.Audience)
}

func TestTokenIssuerRejectsEmptySubject(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	_, _, err := issuer.IssueToken(context.Background(), " ")
	assert.ErrorIs(t, err, errMissingSubjectClaim)
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, _, err := issuer.IssueToken(context.Background(), testAccountID)
	require.NoError(t, err)

	subject, err := issuer.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, testAccountID, subject)

	_, err = issuer.ValidateToken("invalid.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.ValidateToken("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	issuedAt := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	current := issuedAt
	issuer := newTestIssuer(t, func() time.Time { return current })

	tokenString, _, err := issuer.IssueToken(context.Background(), testAccountID)
	require.NoError(t, err)

	current = issuedAt.Add(DefaultTokenTTL + time.Minute)
	_, err = issuer.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenIssuerRejectsForeignSecret(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	foreign, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("other-secret"),
		Issuer:        DefaultIssuer,
		Audience:      DefaultAudience,
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)
	tokenString, _, err := foreign.IssueToken(context.Background(), testAccountID)
	require.NoError(t, err)

	_, err = issuer.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuerRejectsOtherSigningMethods(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   testAccountID,
		Issuer:    DefaultIssuer,
		Audience:  jwt.ClaimStrings{DefaultAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(testSigningSecret))
	require.NoError(t, err)

	_, err = issuer.ValidateToken(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuerValidatesConfig(t *testing.T) {
	testCases := []struct {
		name   string
		config TokenIssuerConfig
	}{
		{name: "missing secret", config: TokenIssuerConfig{Issuer: DefaultIssuer, Audience: DefaultAudience, TokenTTL: time.Hour}},
		{name: "missing issuer", config: TokenIssuerConfig{SigningSecret: []byte("secret"), Audience: DefaultAudience, TokenTTL: time.Hour}},
		{name: "blank audience", config: TokenIssuerConfig{SigningSecret: []byte("secret"), Issuer: DefaultIssuer, Audience: " ", TokenTTL: time.Hour}},
		{name: "zero ttl", config: TokenIssuerConfig{SigningSecret: []byte("secret"), Issuer: DefaultIssuer, Audience: DefaultAudience}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := NewTokenIssuer(testCase.config)
			assert.Error(t, err)
		})
	}
}

func TestBearerToken(t *testing.T) {
	testCases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc.def", want: "abc.def"},
		{name: "lowercase scheme", header: "bearer abc.def", want: "abc.def"},
		{name: "missing", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic abc", wantErr: true},
		{name: "empty token", header: "Bearer   ", wantErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
			if testCase.header != "" {
				request.Header.Set("Authorization", testCase.header)
			}
			token, err := BearerToken(request)
			if testCase.wantErr {
				assert.ErrorIs(t, err, ErrMissingToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.want, token)
		})
	}
}
