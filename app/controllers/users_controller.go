package controllers

import (
	"io"
	"net/http"

	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/pkg/ctx"
)

// maxDocumentBytes caps one uploaded qualification file.
const maxDocumentBytes = 8 << 20

type UsersController struct {
	users *services.UserService
}

func NewUsersController(users *services.UserService) *UsersController {
	return &UsersController{users: users}
}

// Index lists every account as a summary. Admin only.
func (uc *UsersController) Index(c *ctx.Context) {
	users, err := uc.users.List(c.Context())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(users)
}

// Show serves one account.
func (uc *UsersController) Show(c *ctx.Context) {
	u, err := uc.users.Get(c.Context(), c.Param("uid"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(u)
}

// TogglePremium flips an account between user and premium. Admin only;
// upgrading requires the complete document set.
func (uc *UsersController) TogglePremium(c *ctx.Context) {
	u, err := uc.users.TogglePremium(c.Context(), c.Param("uid"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]interface{}{"id": u.ID.Hex(), "role": u.Role})
}

// UploadDocuments receives multipart qualification files. Each form field
// name is the canonical document name (identification, proof of address,
// bank statement) and its value the file.
func (uc *UsersController) UploadDocuments(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized()
		return
	}
	// users upload for themselves; the admin route passes an explicit uid
	uid := c.Param("uid")
	if uid == "" {
		uid = id.UserID
	}

	if err := c.R.ParseMultipartForm(maxDocumentBytes); err != nil {
		c.Error(http.StatusBadRequest, "invalid multipart form")
		return
	}

	var uploads []services.UploadedDocument
	for field, headers := range c.R.MultipartForm.File {
		for _, h := range headers {
			f, err := h.Open()
			if err != nil {
				c.Error(http.StatusBadRequest, "unreadable upload "+field)
				return
			}
			content, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes))
			f.Close()
			if err != nil {
				c.Error(http.StatusBadRequest, "unreadable upload "+field)
				return
			}
			uploads = append(uploads, services.UploadedDocument{
				Name:     field,
				Filename: h.Filename,
				Content:  content,
			})
		}
	}

	u, err := uc.users.UploadDocuments(c.Context(), uid, uploads)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]interface{}{
		"id":        u.ID.Hex(),
		"documents": u.Documents,
		"complete":  u.DocumentsComplete(),
	})
}
