package controllers

import (
	"github.com/tiendalabs/tienda/app/services"
	"github.com/tiendalabs/tienda/pkg/auth"
	"github.com/tiendalabs/tienda/pkg/ctx"
	"github.com/tiendalabs/tienda/pkg/logger"
	"github.com/tiendalabs/tienda/pkg/session"
)

type SessionsController struct {
	auth *services.AuthService
}

func NewSessionsController(authService *services.AuthService) *SessionsController {
	return &SessionsController{auth: authService}
}

// Register creates an account plus its cart.
func (sc *SessionsController) Register(c *ctx.Context) {
	var in services.RegisterInput
	if !c.BindJSON(&in) {
		return
	}

	u, err := sc.auth.Register(c.Context(), in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(u)
}

// Login verifies credentials, opens a browser session and returns JWT
// tokens for API clients in the same response.
func (sc *SessionsController) Login(c *ctx.Context) {
	var body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !c.BindJSON(&body) {
		return
	}

	id, err := sc.auth.Login(c.Context(), body.Email, body.Password)
	if err != nil {
		c.Fail(err)
		return
	}

	token, err := auth.GenerateToken(id)
	if err != nil {
		c.Fail(err)
		return
	}
	refresh, err := auth.GenerateRefreshToken(id)
	if err != nil {
		c.Fail(err)
		return
	}

	sess := session.FromCtx(c.R)
	sess.Set("user_id", id.UserID)
	sess.Set("email", id.Email)
	sess.Set("role", string(id.Role))
	sess.Set("cart_id", id.CartID)
	if err := sess.Save(c.W); err != nil {
		logger.Warn("session save failed", "email", id.Email, "error", err)
	}

	c.Success(map[string]interface{}{
		"token":         token,
		"refresh_token": refresh,
		"role":          id.Role,
		"cart_id":       id.CartID,
	})
}

// Logout stamps the disconnect time and destroys the browser session.
func (sc *SessionsController) Logout(c *ctx.Context) {
	if id, ok := c.Identity(); ok {
		sc.auth.Logout(c.Context(), id)
	}

	sess := session.FromCtx(c.R)
	if err := sess.Destroy(c.W); err != nil {
		logger.Warn("session destroy failed", "error", err)
	}
	c.Success(map[string]string{"status": "logged out"})
}

// Current returns the authenticated account.
func (sc *SessionsController) Current(c *ctx.Context) {
	id, ok := c.Identity()
	if !ok {
		c.Unauthorized()
		return
	}

	u, err := sc.auth.Current(c.Context(), id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(u)
}

// ForgotPassword starts the reset flow. Always answers 200 so the endpoint
// cannot be used to probe registered addresses.
func (sc *SessionsController) ForgotPassword(c *ctx.Context) {
	var body struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !c.BindJSON(&body) {
		return
	}

	if err := sc.auth.RequestPasswordReset(c.Context(), body.Email); err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]string{"status": "reset email sent if the account exists"})
}

// ResetPassword burns the emailed token and stores the new password.
func (sc *SessionsController) ResetPassword(c *ctx.Context) {
	var body struct {
		Token                string `json:"token" validate:"required"`
		Password             string `json:"password" validate:"required,min=8,confirmed"`
		PasswordConfirmation string `json:"password_confirmation" validate:"required"`
	}
	if !c.BindJSON(&body) {
		return
	}

	if err := sc.auth.ResetPassword(c.Context(), body.Token, body.Password); err != nil {
		c.Fail(err)
		return
	}
	c.Success(map[string]string{"status": "password updated"})
}
