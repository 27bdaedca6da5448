package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/roster"
)

func TestIssueParseRoundTrip(t *testing.T) {
	token, exp, err := Issue(42, roster.RoleCurator, "qrattend", "test-key", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := Parse(token, "test-key", "qrattend")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, roster.RoleCurator, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, _, err := Issue(1, roster.RoleUser, "qrattend", "key-a", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "key-b", "qrattend")
	assert.Error(t, err)
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	token, _, err := Issue(1, roster.RoleUser, "other-issuer", "test-key", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "test-key", "qrattend")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, _, err := Issue(1, roster.RoleUser, "qrattend", "test-key", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, "test-key", "qrattend")
	assert.Error(t, err)
}
