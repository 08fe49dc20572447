package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = access.Actor{UserID: "u-1", Roles: []access.Role{access.RoleUser}}
	other = access.Actor{UserID: "u-2", Roles: []access.Role{access.RoleUser}}
	admin = access.Actor{UserID: "admin-123", Roles: []access.Role{access.RoleAdmin}}
)

func TestCheckOwnerOrAdmin(t *testing.T) {
	assert.NoError(t, access.Check(owner, "u-1", access.RoleAdmin))
	assert.NoError(t, access.Check(admin, "u-1", access.RoleAdmin))

	err := access.Check(other, "u-1", access.RoleAdmin)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestCheckAdminOnly(t *testing.T) {
	assert.NoError(t, access.RequireAdmin(admin))
	assert.ErrorIs(t, access.RequireAdmin(owner), apperr.ErrAuthorization)

	err := access.Check(access.Actor{}, "", access.RoleAdmin)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := access.FromContext(context.Background())
	assert.False(t, ok)

	got, ok := access.FromContext(access.WithActor(context.Background(), owner))
	require.True(t, ok)
	assert.Equal(t, owner, got)
}

func TestJWTResolver(t *testing.T) {
	r := access.NewJWTResolver([]byte("test-secret"))
	tok, err := r.Sign(access.Actor{UserID: "u-1", Username: "asha", Roles: []access.Role{"Admin"}},
		jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)

	actor, err := r.Resolve("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", actor.UserID)
	assert.True(t, actor.IsAdmin())

	_, err = access.NewJWTResolver([]byte("other")).Resolve(tok)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	expired, err := r.Sign(owner, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	require.NoError(t, err)
	_, err = r.Resolve(expired)
	assert.EqualError(t, err, "token expired")

	_, err = r.Resolve("")
	assert.EqualError(t, err, "missing token")
}
