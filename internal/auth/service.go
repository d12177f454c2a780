package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/covenant-hq/covenant/internal/shared"
	"github.com/covenant-hq/covenant/internal/tenant"
)

// TenantPort is the slice of the tenant service login needs to embed
// memberships in the token.
type TenantPort interface {
	Memberships(ctx context.Context, userID int64) ([]tenant.Membership, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	tenants TenantPort
	issuer  *TokenIssuer
}

// NewService constructs a new Service.
func NewService(repo Repository, tenants TenantPort, issuer *TokenIssuer) *Service {
	return &Service{repo: repo, tenants: tenants, issuer: issuer}
}

// RegisterInput captures new user input.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate ensures registration input correctness.
func (in RegisterInput) Validate() error {
	if !strings.Contains(in.Email, "@") {
		return errors.New("auth: valid email required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("auth: name required")
	}
	if len(in.Password) < 8 {
		return errors.New("auth: password must be at least 8 characters")
	}
	return nil
}

// Register creates a user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, strings.ToLower(strings.TrimSpace(in.Email)), in.Name, string(hash))
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Session is the login response: a signed bearer token plus its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"-"`
}

// Login authenticates the user and issues a token carrying their
// tenant memberships.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	memberships, err := s.tenants.Memberships(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	token, expires, err := s.issuer.Issue(user, memberships)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Verify parses a bearer token back into claims.
func (s *Service) Verify(token string) (*Claims, error) {
	return s.issuer.Parse(token)
}
