package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateToken(secret, Claims{UserID: "u1", Role: RoleHR}, time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", parsed.UserID)
	assert.Equal(t, RoleHR, parsed.Role)
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := GenerateToken("s", Claims{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("s", expired)
	assert.Error(t, err)

	other, err := GenerateToken("other", Claims{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("s", other)
	assert.Error(t, err)

	anonymous, err := GenerateToken("s", Claims{Role: RoleEmployee}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("s", anonymous)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken("s", none)
	assert.Error(t, err)
}

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}
	for role, perms := range RolePermissions {
		require.NotEmpty(t, perms, "role %s has no permissions", role)
		for _, perm := range perms {
			_, ok := allowed[perm]
			assert.True(t, ok, "role %s has unknown permission %s", role, perm)
		}
	}
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleHR, PermLeaveAdmin))
	assert.False(t, HasPermission(RoleEmployee, PermLeaveAdmin))
	assert.True(t, HasPermission(RoleEmployee, PermDocumentsWrite))
	assert.False(t, HasPermission("intern", PermLeaveRead))
}
