package services

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/collection"
	"github.com/tiendalabs/tienda/pkg/rbac"
	"github.com/tiendalabs/tienda/pkg/storage"
)

// UserSummary is the account shape exposed to admin listings: no password
// hash, no document references.
type UserSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           rbac.Role `json:"role"`
	LastConnection time.Time `json:"last_connection,omitempty"`
}

// UploadedDocument is one multipart file received for premium qualification.
type UploadedDocument struct {
	Name     string // canonical document name (e.g. "identification")
	Filename string // original upload filename, used for the extension
	Content  []byte
}

// UserService owns account administration: listings, the premium toggle and
// qualification document uploads.
type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// List returns every account as a summary.
func (s *UserService) List(ctx context.Context) ([]UserSummary, error) {
	users, err := s.users.All(ctx)
	if err != nil {
		return nil, err
	}
	return collection.Map(users, func(u models.User) UserSummary {
		return UserSummary{
			ID:             u.ID.Hex(),
			Name:           u.FullName(),
			Email:          u.Email,
			Role:           u.Role,
			LastConnection: u.LastConnection,
		}
	}), nil
}

// Get returns one account by hex id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

// TogglePremium flips an account between user and premium. Upgrading
// requires the complete qualification document set; admin accounts are
// never toggled.
func (s *UserService) TogglePremium(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch u.Role {
	case rbac.RoleUser:
		if !u.DocumentsComplete() {
			return nil, apperr.E(apperr.BadRequest,
				"account is missing required documents: identification, proof of address, bank statement")
		}
		u.Role = rbac.RolePremium
	case rbac.RolePremium:
		u.Role = rbac.RoleUser
	default:
		return nil, apperr.E(apperr.BadRequest, "admin role cannot be toggled")
	}

	if err := s.users.UpdateRole(ctx, u.ID, u.Role); err != nil {
		return nil, err
	}
	return u, nil
}

// UploadDocuments stores qualification files on the configured storage disk
// and appends their records to the account. Re-uploading a document name
// replaces nothing; the newest record wins at completeness checks since
// HasDocument matches by name.
func (s *UserService) UploadDocuments(ctx context.Context, id string, uploads []UploadedDocument) (*models.User, error) {
	if len(uploads) == 0 {
		return nil, apperr.E(apperr.BadRequest, "no documents supplied")
	}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	docs := make([]models.Document, 0, len(uploads))
	for _, up := range uploads {
		if up.Name == "" {
			return nil, apperr.E(apperr.BadRequest, "document name is required")
		}
		ref := fmt.Sprintf("documents/%s/%s%s", u.ID.Hex(), up.Name, path.Ext(up.Filename))
		if err := storage.Put(ref, up.Content); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "store document", err)
		}
		docs = append(docs, models.Document{Name: up.Name, Reference: ref, UploadedAt: now})
	}

	if err := s.users.AddDocuments(ctx, u.ID, docs); err != nil {
		return nil, err
	}
	u.Documents = append(u.Documents, docs...)
	return u, nil
}
