package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/config"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/crypt"
	"github.com/tiendalabs/tienda/pkg/rbac"
)

// ─── UserStore / TokenStore fakes ─────────────────────────────────────────────

type fakeUsers struct {
	byID map[primitive.ObjectID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return apperr.E(apperr.Conflict, "email already registered")
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.E(apperr.NotFound, "user not found")
}

func (f *fakeUsers) FindByID(_ context.Context, hex string) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, apperr.E(apperr.InvalidID, "invalid id")
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) All(_ context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, id primitive.ObjectID, role rbac.Role) error {
	u, ok := f.byID[id]
	if !ok {
		return apperr.E(apperr.NotFound, "user not found")
	}
	u.Role = role
	return nil
}

func (f *fakeUsers) AddDocuments(_ context.Context, id primitive.ObjectID, docs []models.Document) error {
	u, ok := f.byID[id]
	if !ok {
		return apperr.E(apperr.NotFound, "user not found")
	}
	u.Documents = append(u.Documents, docs...)
	return nil
}

func (f *fakeUsers) SetLastConnection(_ context.Context, id primitive.ObjectID, at time.Time) error {
	u, ok := f.byID[id]
	if !ok {
		return apperr.E(apperr.NotFound, "user not found")
	}
	u.LastConnection = at
	return nil
}

func (f *fakeUsers) SetCart(_ context.Context, id, cartID primitive.ObjectID) error {
	u, ok := f.byID[id]
	if !ok {
		return apperr.E(apperr.NotFound, "user not found")
	}
	u.CartID = cartID
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	u, ok := f.byID[id]
	if !ok {
		return apperr.E(apperr.NotFound, "user not found")
	}
	u.Password = hash
	return nil
}

type fakeTokenStore struct {
	tokens []*models.ResetToken
}

func (f *fakeTokenStore) Create(_ context.Context, t *models.ResetToken) error {
	// a fresh request invalidates earlier unused grants for the address
	for _, prev := range f.tokens {
		if prev.Email == t.Email && !prev.Used {
			prev.Used = true
		}
	}
	t.ID = primitive.NewObjectID()
	f.tokens = append(f.tokens, t)
	return nil
}

func (f *fakeTokenStore) FindValid(_ context.Context, tokenHash string) (*models.ResetToken, error) {
	now := time.Now().UTC()
	for _, t := range f.tokens {
		if t.TokenHash == tokenHash && !t.Used && !t.Expired(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperr.E(apperr.NotFound, "reset token is invalid or expired")
}

func (f *fakeTokenStore) MarkUsed(_ context.Context, t *models.ResetToken) error {
	for _, stored := range f.tokens {
		if stored.ID == t.ID {
			stored.Used = true
			return nil
		}
	}
	return apperr.E(apperr.NotFound, "reset token not found")
}

func (f *fakeTokenStore) PurgeExpired(_ context.Context) (int64, error) {
	now := time.Now().UTC()
	var kept []*models.ResetToken
	var removed int64
	for _, t := range f.tokens {
		if t.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	f.tokens = kept
	return removed, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func registerInput(email string) services.RegisterInput {
	return services.RegisterInput{
		FirstName:            "Ana",
		LastName:             "Ruiz",
		Email:                email,
		Age:                  30,
		Password:             "sup3rsecret",
		PasswordConfirmation: "sup3rsecret",
	}
}

func TestRegisterCreatesUserWithOwnCart(t *testing.T) {
	users := newFakeUsers()
	carts := newFakeCarts()
	svc := services.NewAuthService(users, carts, &fakeTokenStore{})

	u, err := svc.Register(context.Background(), registerInput("Ana@Example.com"))
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", u.Email, "email is normalised")
	assert.Equal(t, rbac.RoleUser, u.Role)
	assert.False(t, u.CartID.IsZero())
	assert.True(t, auth.CheckPassword(u.Password, "sup3rsecret"), "password is stored hashed")

	// the cart really exists
	_, err = carts.FindByID(context.Background(), u.CartID.Hex())
	require.NoError(t, err)
}

func TestRegisterRejectsReservedAdminEmail(t *testing.T) {
	svc := services.NewAuthService(newFakeUsers(), newFakeCarts(), &fakeTokenStore{})

	_, err := svc.Register(context.Background(), registerInput(config.AdminEmail()))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestRegisterDuplicateEmailCleansUpCart(t *testing.T) {
	existing := &models.User{Email: "ana@example.com", Role: rbac.RoleUser}
	users := newFakeUsers(existing)
	carts := newFakeCarts()
	svc := services.NewAuthService(users, carts, &fakeTokenStore{})

	_, err := svc.Register(context.Background(), registerInput("ana@example.com"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))

	all, err := carts.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "the cart created for the failed signup is removed")
}

// ─── Login / logout ───────────────────────────────────────────────────────────

func registeredUser(t *testing.T, users *fakeUsers, email, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{
		ID:       primitive.NewObjectID(),
		Email:    email,
		Password: hash,
		Role:     rbac.RoleUser,
		CartID:   primitive.NewObjectID(),
	}
	users.byID[u.ID] = u
	return u
}

func TestLoginReturnsIdentity(t *testing.T) {
	users := newFakeUsers()
	u := registeredUser(t, users, "ana@example.com", "sup3rsecret")
	svc := services.NewAuthService(users, newFakeCarts(), &fakeTokenStore{})

	id, err := svc.Login(context.Background(), " Ana@Example.com ", "sup3rsecret")
	require.NoError(t, err)
	assert.Equal(t, u.ID.Hex(), id.UserID)
	assert.Equal(t, rbac.RoleUser, id.Role)
	assert.Equal(t, u.CartID.Hex(), id.CartID)

	assert.False(t, users.byID[u.ID].LastConnection.IsZero(), "login stamps last_connection")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := newFakeUsers()
	registeredUser(t, users, "ana@example.com", "sup3rsecret")
	svc := services.NewAuthService(users, newFakeCarts(), &fakeTokenStore{})

	_, err := svc.Login(context.Background(), "ana@example.com", "wrong-password")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))

	// unknown address yields the same error so accounts cannot be probed
	_, err = svc.Login(context.Background(), "nobody@example.com", "whatever")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
}

func TestLogoutStampsLastConnection(t *testing.T) {
	users := newFakeUsers()
	u := registeredUser(t, users, "ana@example.com", "sup3rsecret")
	svc := services.NewAuthService(users, newFakeCarts(), &fakeTokenStore{})

	svc.Logout(context.Background(), auth.Identity{UserID: u.ID.Hex(), Email: u.Email})
	assert.False(t, users.byID[u.ID].LastConnection.IsZero())

	// the configured admin has no stored record; logout must not error
	svc.Logout(context.Background(), auth.Identity{Email: config.AdminEmail(), Role: rbac.RoleAdmin})
}

func TestCurrentSynthesizesAdminRecord(t *testing.T) {
	svc := services.NewAuthService(newFakeUsers(), newFakeCarts(), &fakeTokenStore{})

	u, err := svc.Current(context.Background(), auth.Identity{Email: config.AdminEmail(), Role: rbac.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, u.Role)
	assert.Equal(t, config.AdminEmail(), u.Email)
}

// ─── Password reset ───────────────────────────────────────────────────────────

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	tokens := &fakeTokenStore{}
	svc := services.NewAuthService(newFakeUsers(), newFakeCarts(), tokens)

	err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.NoError(t, err, "unknown addresses must not be distinguishable")
	assert.Empty(t, tokens.tokens)
}

func TestRequestPasswordResetStoresHashedToken(t *testing.T) {
	users := newFakeUsers()
	registeredUser(t, users, "ana@example.com", "sup3rsecret")
	tokens := &fakeTokenStore{}
	svc := services.NewAuthService(users, newFakeCarts(), tokens)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ana@example.com"))

	require.Len(t, tokens.tokens, 1)
	grant := tokens.tokens[0]
	assert.Equal(t, "ana@example.com", grant.Email)
	assert.Len(t, grant.TokenHash, 64, "sha-256 hex digest, never the raw token")
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), grant.ExpiresAt, time.Minute)

	// a second request invalidates the first grant
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ana@example.com"))
	require.Len(t, tokens.tokens, 2)
	assert.True(t, tokens.tokens[0].Used)
	assert.False(t, tokens.tokens[1].Used)
}

func TestResetPasswordBurnsTokenAndUpdatesHash(t *testing.T) {
	users := newFakeUsers()
	u := registeredUser(t, users, "ana@example.com", "old-password1")
	tokens := &fakeTokenStore{}
	svc := services.NewAuthService(users, newFakeCarts(), tokens)

	raw := "a-single-use-reset-token"
	require.NoError(t, tokens.Create(context.Background(), &models.ResetToken{
		Email:     u.Email,
		TokenHash: crypt.Hash(raw),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	require.NoError(t, svc.ResetPassword(context.Background(), raw, "brand-new-password"))
	assert.True(t, auth.CheckPassword(users.byID[u.ID].Password, "brand-new-password"))

	// the token is single-use
	err := svc.ResetPassword(context.Background(), raw, "another-password")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestResetPasswordRejectsShortOrUnchanged(t *testing.T) {
	users := newFakeUsers()
	u := registeredUser(t, users, "ana@example.com", "same-password")
	tokens := &fakeTokenStore{}
	svc := services.NewAuthService(users, newFakeCarts(), tokens)

	err := svc.ResetPassword(context.Background(), "irrelevant", "short")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))

	raw := "a-single-use-reset-token"
	require.NoError(t, tokens.Create(context.Background(), &models.ResetToken{
		Email:     u.Email,
		TokenHash: crypt.Hash(raw),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	err = svc.ResetPassword(context.Background(), raw, "same-password")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	users := newFakeUsers()
	u := registeredUser(t, users, "ana@example.com", "old-password1")
	tokens := &fakeTokenStore{}
	svc := services.NewAuthService(users, newFakeCarts(), tokens)

	raw := "an-expired-token"
	tokens.tokens = append(tokens.tokens, &models.ResetToken{
		ID:        primitive.NewObjectID(),
		Email:     u.Email,
		TokenHash: crypt.Hash(raw),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})

	err := svc.ResetPassword(context.Background(), raw, "brand-new-password")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestPurgeExpiredTokens(t *testing.T) {
	tokens := &fakeTokenStore{tokens: []*models.ResetToken{
		{ID: primitive.NewObjectID(), Email: "a@x.com", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		{ID: primitive.NewObjectID(), Email: "b@x.com", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}}
	svc := services.NewAuthService(newFakeUsers(), newFakeCarts(), tokens)

	removed, err := svc.PurgeExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, tokens.tokens, 1)
}
