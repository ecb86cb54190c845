package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/tiendalabs/tienda/app/jobs"
	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/config"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/crypt"
	"github.com/tiendalabs/tienda/pkg/logger"
	"github.com/tiendalabs/tienda/pkg/queue"
	"github.com/tiendalabs/tienda/pkg/rbac"
)

const resetTokenTTL = time.Hour

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	FirstName            string `json:"first_name" validate:"required"`
	LastName             string `json:"last_name" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Age                  int    `json:"age" validate:"nullable,integer,gte=0"`
	Password             string `json:"password" validate:"required,min=8,confirmed"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

// AuthService owns registration, login, logout and the password-reset flow.
type AuthService struct {
	users  UserStore
	carts  CartStore
	tokens TokenStore
}

func NewAuthService(users UserStore, carts CartStore, tokens TokenStore) *AuthService {
	return &AuthService{users: users, carts: carts, tokens: tokens}
}

// Register creates an account with its own empty cart attached.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == config.AdminEmail() {
		return nil, apperr.E(apperr.Conflict, "email is reserved")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "hash password", err)
	}

	cart, err := s.carts.Create(ctx)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     email,
		Age:       in.Age,
		Password:  hash,
		Role:      rbac.RoleUser,
		CartID:    cart.ID,
	}
	if err := s.users.Create(ctx, u); err != nil {
		// the orphaned cart is harmless but tidy up anyway
		if derr := s.carts.Delete(ctx, cart.ID.Hex()); derr != nil {
			logger.Warn("orphan cart cleanup failed", "cart_id", cart.ID.Hex(), "error", derr)
		}
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and returns the caller identity. The configured
// admin account is checked first and never touches the user collection.
func (s *AuthService) Login(ctx context.Context, email, password string) (auth.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == config.AdminEmail() && config.AdminPassword() != "" {
		if password != config.AdminPassword() {
			return auth.Identity{}, apperr.E(apperr.Unauthorized, "invalid credentials")
		}
		return auth.Identity{Email: email, Role: rbac.RoleAdmin}, nil
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return auth.Identity{}, apperr.E(apperr.Unauthorized, "invalid credentials")
		}
		return auth.Identity{}, err
	}
	if !auth.CheckPassword(u.Password, password) {
		return auth.Identity{}, apperr.E(apperr.Unauthorized, "invalid credentials")
	}

	if err := s.users.SetLastConnection(ctx, u.ID, time.Now().UTC()); err != nil {
		logger.Warn("last_connection stamp failed", "user", email, "error", err)
	}

	return auth.Identity{
		UserID: u.ID.Hex(),
		Email:  u.Email,
		Role:   u.Role,
		CartID: u.CartID.Hex(),
	}, nil
}

// Logout stamps the disconnect time. The session/token teardown happens at
// the HTTP boundary.
func (s *AuthService) Logout(ctx context.Context, id auth.Identity) {
	if id.UserID == "" {
		return // admin bootstrap account has no stored record
	}
	u, err := s.users.FindByID(ctx, id.UserID)
	if err != nil {
		logger.Warn("logout lookup failed", "user_id", id.UserID, "error", err)
		return
	}
	if err := s.users.SetLastConnection(ctx, u.ID, time.Now().UTC()); err != nil {
		logger.Warn("last_connection stamp failed", "user", u.Email, "error", err)
	}
}

// Current returns the stored account for an identity.
func (s *AuthService) Current(ctx context.Context, id auth.Identity) (*models.User, error) {
	if id.UserID == "" {
		// synthesised record for the configured admin
		return &models.User{Email: id.Email, Role: rbac.RoleAdmin}, nil
	}
	return s.users.FindByID(ctx, id.UserID)
}

// ─── Password reset ───────────────────────────────────────────────────────────

// RequestPasswordReset issues a single-use reset token and queues the email.
// An unknown email is reported as success so the endpoint cannot be used to
// probe which addresses are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			logger.Info("password reset requested for unknown email", "email", email)
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "generate reset token", err)
	}

	if err := s.tokens.Create(ctx, &models.ResetToken{
		Email:     u.Email,
		TokenHash: crypt.Hash(token),
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
	}); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", config.AppURL(), token)
	if err := queue.Dispatch(&jobs.PasswordResetMail{
		Email:    u.Email,
		Name:     u.FirstName,
		ResetURL: resetURL,
	}); err != nil {
		return apperr.Wrap(apperr.Internal, "queue reset mail", err)
	}
	return nil
}

// ResetPassword burns a valid token and stores the new password, which must
// differ from the current one.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return apperr.E(apperr.BadRequest, "password must be at least 8 characters")
	}

	grant, err := s.tokens.FindValid(ctx, crypt.Hash(token))
	if err != nil {
		return err
	}
	u, err := s.users.FindByEmail(ctx, grant.Email)
	if err != nil {
		return err
	}
	if auth.CheckPassword(u.Password, newPassword) {
		return apperr.E(apperr.BadRequest, "new password must differ from the current one")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	return s.tokens.MarkUsed(ctx, grant)
}

// PurgeExpiredTokens removes stale reset grants; wired to the scheduler.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.PurgeExpired(ctx)
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
