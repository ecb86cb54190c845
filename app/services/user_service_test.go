package services_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tiendalabs/tienda/app/models"
	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/pkg/apperr"
	"github.com/tiendalabs/tienda/pkg/rbac"
	"github.com/tiendalabs/tienda/pkg/storage"
)

// memDisk is an in-memory storage.Disk so document uploads never touch the
// filesystem during tests.
type memDisk struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemDisk() *memDisk { return &memDisk{files: map[string][]byte{}} }

func (d *memDisk) Put(path string, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = append([]byte(nil), content...)
	return nil
}

func (d *memDisk) PutStream(path string, r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return d.Put(path, content)
}

func (d *memDisk) Get(path string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	content, ok := d.files[path]
	if !ok {
		return nil, apperr.E(apperr.NotFound, "file not found")
	}
	return content, nil
}

func (d *memDisk) GetStream(path string) (io.ReadCloser, error) {
	content, err := d.Get(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (d *memDisk) Exists(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.files[path]
	return ok
}

func (d *memDisk) Missing(path string) bool { return !d.Exists(path) }

func (d *memDisk) Size(path string) (int64, error) {
	content, err := d.Get(path)
	if err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

func (d *memDisk) LastModified(string) (time.Time, error) { return time.Time{}, nil }
func (d *memDisk) URL(path string) string                 { return "mem://" + path }

func (d *memDisk) Delete(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, path)
	return nil
}

func (d *memDisk) Copy(src, dst string) error {
	content, err := d.Get(src)
	if err != nil {
		return err
	}
	return d.Put(dst, content)
}

func (d *memDisk) Move(src, dst string) error {
	if err := d.Copy(src, dst); err != nil {
		return err
	}
	return d.Delete(src)
}

func (d *memDisk) Files(string) ([]string, error)       { return nil, nil }
func (d *memDisk) AllFiles(string) ([]string, error)    { return nil, nil }
func (d *memDisk) Directories(string) ([]string, error) { return nil, nil }
func (d *memDisk) MakeDirectory(string) error           { return nil }
func (d *memDisk) DeleteDirectory(string) error         { return nil }

func useMemStorage(t *testing.T) *memDisk {
	t.Helper()
	storage.Connect()
	mem := newMemDisk()
	storage.RegisterDisk("local", mem)
	return mem
}

// ─── Listings ─────────────────────────────────────────────────────────────────

func TestListReturnsSafeSummaries(t *testing.T) {
	users := newFakeUsers(&models.User{
		FirstName: "Ana",
		LastName:  "Ruiz",
		Email:     "ana@example.com",
		Password:  "a-bcrypt-hash",
		Role:      rbac.RolePremium,
	})
	svc := services.NewUserService(users)

	out, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ana Ruiz", out[0].Name)
	assert.Equal(t, "ana@example.com", out[0].Email)
	assert.Equal(t, rbac.RolePremium, out[0].Role)
}

// ─── Premium toggle ───────────────────────────────────────────────────────────

func allDocuments() []models.Document {
	now := time.Now().UTC()
	docs := make([]models.Document, len(models.RequiredDocuments))
	for i, name := range models.RequiredDocuments {
		docs[i] = models.Document{Name: name, Reference: "documents/x/" + name, UploadedAt: now}
	}
	return docs
}

func TestTogglePremiumRequiresCompleteDocuments(t *testing.T) {
	u := &models.User{
		ID:    primitive.NewObjectID(),
		Email: "ana@example.com",
		Role:  rbac.RoleUser,
		Documents: []models.Document{
			{Name: "identification", Reference: "documents/x/identification"},
		},
	}
	users := newFakeUsers(u)
	svc := services.NewUserService(users)

	_, err := svc.TogglePremium(context.Background(), u.ID.Hex())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))
	assert.Equal(t, rbac.RoleUser, users.byID[u.ID].Role)
}

func TestTogglePremiumUpgradesAndDowngrades(t *testing.T) {
	u := &models.User{
		ID:        primitive.NewObjectID(),
		Email:     "ana@example.com",
		Role:      rbac.RoleUser,
		Documents: allDocuments(),
	}
	users := newFakeUsers(u)
	svc := services.NewUserService(users)

	got, err := svc.TogglePremium(context.Background(), u.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, rbac.RolePremium, got.Role)
	assert.Equal(t, rbac.RolePremium, users.byID[u.ID].Role)

	// downgrading needs no documents
	got, err = svc.TogglePremium(context.Background(), u.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleUser, got.Role)
}

func TestTogglePremiumNeverTouchesAdmin(t *testing.T) {
	u := &models.User{ID: primitive.NewObjectID(), Email: "root@example.com", Role: rbac.RoleAdmin}
	users := newFakeUsers(u)
	svc := services.NewUserService(users)

	_, err := svc.TogglePremium(context.Background(), u.ID.Hex())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))
	assert.Equal(t, rbac.RoleAdmin, users.byID[u.ID].Role)
}

// ─── Document upload ──────────────────────────────────────────────────────────

func TestUploadDocumentsStoresFilesAndRecords(t *testing.T) {
	mem := useMemStorage(t)

	u := &models.User{ID: primitive.NewObjectID(), Email: "ana@example.com", Role: rbac.RoleUser}
	users := newFakeUsers(u)
	svc := services.NewUserService(users)

	got, err := svc.UploadDocuments(context.Background(), u.ID.Hex(), []services.UploadedDocument{
		{Name: "identification", Filename: "dni.pdf", Content: []byte("id-bytes")},
		{Name: "bank statement", Filename: "statement.png", Content: []byte("bank-bytes")},
	})
	require.NoError(t, err)
	require.Len(t, got.Documents, 2)

	idRef := "documents/" + u.ID.Hex() + "/identification.pdf"
	assert.Equal(t, idRef, got.Documents[0].Reference)
	assert.True(t, mem.Exists(idRef))
	assert.True(t, mem.Exists("documents/"+u.ID.Hex()+"/bank statement.png"))

	// records were persisted, not just returned
	assert.Len(t, users.byID[u.ID].Documents, 2)
}

func TestUploadDocumentsValidatesInput(t *testing.T) {
	useMemStorage(t)

	u := &models.User{ID: primitive.NewObjectID(), Email: "ana@example.com", Role: rbac.RoleUser}
	svc := services.NewUserService(newFakeUsers(u))

	_, err := svc.UploadDocuments(context.Background(), u.ID.Hex(), nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))

	_, err = svc.UploadDocuments(context.Background(), u.ID.Hex(), []services.UploadedDocument{
		{Name: "", Filename: "x.pdf", Content: []byte("x")},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.BadRequest))
}
