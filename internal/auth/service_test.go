package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/covenant-hq/covenant/internal/shared"
	"github.com/covenant-hq/covenant/internal/tenant"
	_ "github.com/covenant-hq/covenant/testing"
)

type memoryRepo struct {
	users  map[string]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]User)}
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	u, ok := r.users[email]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) GetUser(ctx context.Context, userID int64) (User, error) {
	for _, u := range r.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (r *memoryRepo) CreateUser(ctx context.Context, email, name, passwordHash string) (User, error) {
	if _, ok := r.users[email]; ok {
		return User{}, ErrEmailTaken
	}
	r.nextID++
	u := User{ID: r.nextID, Email: email, Name: name, PasswordHash: passwordHash, IsActive: true}
	r.users[email] = u
	return u, nil
}

type fakeTenants struct {
	memberships []tenant.Membership
}

func (f *fakeTenants) Memberships(ctx context.Context, userID int64) ([]tenant.Membership, error) {
	return f.memberships, nil
}

func newTestService() (*Service, *memoryRepo, *TokenIssuer) {
	repo := newMemoryRepo()
	issuer := NewTokenIssuer("test-secret", time.Hour)
	tenants := &fakeTenants{memberships: []tenant.Membership{{TenantID: 1, UserID: 1, Role: tenant.RoleManager}}}
	return NewService(repo, tenants, issuer), repo, issuer
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "Board@Example.com", Name: "Board Member", Password: "correct horse"})
	require.NoError(t, err)
	require.Equal(t, "board@example.com", user.Email)
	require.NotEqual(t, "correct horse", user.PasswordHash)

	session, err := svc.Login(ctx, "board@example.com", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	claims, err := svc.Verify(session.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID())
	role, ok := claims.RoleFor(1)
	require.True(t, ok)
	require.Equal(t, tenant.RoleManager, role)
	_, ok = claims.RoleFor(99)
	require.False(t, ok)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Name: "A", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@example.com", "wrong password")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "password123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Name: "X", Password: "password123"})
	require.Error(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "x@example.com", Name: "X", Password: "short"})
	require.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer.WithNow(func() time.Time { return base })

	token, _, err := issuer.Issue(User{ID: 5, Email: "x@example.com"}, nil)
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	require.NoError(t, err)

	issuer.WithNow(func() time.Time { return base.Add(2 * time.Minute) })
	_, err = issuer.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Hour)
	token, _, err := issuer.Issue(User{ID: 5, Email: "x@example.com"}, nil)
	require.NoError(t, err)

	other := NewTokenIssuer("secret-b", time.Hour)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticatorMiddleware(t *testing.T) {
	svc, _, issuer := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "m@example.com", Name: "M", Password: "password123"})
	require.NoError(t, err)
	token, _, err := issuer.Issue(user, nil)
	require.NoError(t, err)

	var seen *Claims
	handler := Authenticator(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, user.ID, seen.UserID())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
