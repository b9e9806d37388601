package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasrivero/storefront-backend/pkg/config"
)

func TestIssueAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Issuer: "storefront"}
	userID := uuid.New()

	token, err := IssueAccessToken(cfg, userID)
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestParseAccessToken_wrongSecret(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Issuer: "storefront"}
	token, err := IssueAccessToken(cfg, uuid.New())
	require.NoError(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: "other", Issuer: "storefront"}, token)
	require.Error(t, err)
}

func TestParseAccessToken_wrongIssuer(t *testing.T) {
	token, err := IssueAccessToken(config.JWTConfig{Secret: "s", Issuer: "someone-else"}, uuid.New())
	require.NoError(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: "s", Issuer: "storefront"}, token)
	require.Error(t, err)
}

func TestParseAccessToken_garbage(t *testing.T) {
	_, err := ParseAccessToken(config.JWTConfig{Secret: "s", Issuer: "storefront"}, "not-a-token")
	require.Error(t, err)
}
