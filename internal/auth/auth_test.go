package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-visits-backend/internal/access"
	"guest-visits-backend/internal/apperr"
	"guest-visits-backend/internal/model"
	"guest-visits-backend/internal/store"
)

type fakeUsers struct {
	users map[string]*model.User
	roles map[string]*store.RoleGrants
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) GetRoleGrants(_ context.Context, id string) (*store.RoleGrants, error) {
	if g, ok := f.roles[id]; ok {
		return g, nil
	}
	return nil, store.ErrNotFound
}

func strPtr(s string) *string { return &s }

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	tok, err := tokens.Issue("u1", "anna", 0)
	require.NoError(t, err)

	claims, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "anna", claims.Username)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	other, err := NewTokens("other", time.Hour).Issue("u1", "", 0)
	require.NoError(t, err)
	_, err = tokens.Verify(other)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaim{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	raw, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrNonValidToken)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaim{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	raw, err = noExpiry.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrNonValidToken)

	_, err = tokens.Verify("not.a.token")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestResolver_Resolve(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	users := &fakeUsers{
		users: map[string]*model.User{
			"guard":    {ID: "guard", Username: "guard1", FullName: "Front Desk", IsActive: true, RoleID: strPtr("r-guard")},
			"admin":    {ID: "admin", Username: "root", IsActive: true, IsAdmin: true},
			"inactive": {ID: "inactive", Username: "old", IsActive: false, RoleID: strPtr("r-guard")},
			"orphan":   {ID: "orphan", Username: "orphan", IsActive: true},
			"lost":     {ID: "lost", Username: "lost", IsActive: true, RoleID: strPtr("r-missing")},
		},
		roles: map[string]*store.RoleGrants{
			"r-guard": {Role: model.Role{ID: "r-guard", Name: "guard"}, Codes: []string{"can_view", "can_mark_completed", "can_retired_code"}},
		},
	}
	r := NewResolver(tokens, users, nil)
	ctx := context.Background()

	issue := func(id string) string {
		tok, err := tokens.Issue(id, "", 0)
		require.NoError(t, err)
		return tok
	}

	p, err := r.Resolve(ctx, issue("guard"))
	require.NoError(t, err)
	assert.Equal(t, "Front Desk", p.Name())
	assert.Equal(t, "guard", p.RoleName)
	assert.Equal(t, []access.Code{access.CanMarkCompleted, access.CanView}, p.Effective())

	p, err = r.Resolve(ctx, issue("admin"))
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	_, err = r.Resolve(ctx, issue("inactive"))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = r.Resolve(ctx, issue("nobody"))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = r.Resolve(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	p, err = r.Resolve(ctx, issue("orphan"))
	require.NoError(t, err)
	assert.ErrorIs(t, access.Authorize(p, access.CanView), apperr.ErrForbidden)

	p, err = r.Resolve(ctx, issue("lost"))
	require.NoError(t, err)
	assert.Empty(t, p.Effective())
}
