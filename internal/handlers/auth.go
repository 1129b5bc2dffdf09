package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"sousvide_simulator/internal/service"

	"github.com/gin-gonic/gin"
)

// SignInRequest is the email/password login payload of the identity mock.
type SignInRequest struct {
	Email             string `json:"email" example:"test@example.com"`
	Password          string `json:"password" example:"testpassword123"`
	ReturnSecureToken bool   `json:"returnSecureToken" example:"true"`
}

// refreshRequest accepts the token-exchange body as either a form post or
// JSON, like the real endpoint does.
type refreshRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// identityError writes the identity provider's nested error shape.
func (h *Handler) identityError(c *gin.Context, status int, errCode, reason string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    status,
			"message": errCode,
			"errors": []gin.H{
				{
					"message": errCode,
					"domain":  "global",
					"reason":  reason,
				},
			},
		},
	})
}

// @Summary      Email/password sign in
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        body  body  SignInRequest  true  "Credentials"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]interface{}
// @Failure      401   {object}  map[string]interface{}
// @Router       /v1/accounts:signInWithPassword [post]
func (h *Handler) signIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.identityError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if req.Email == "" {
		h.identityError(c, http.StatusBadRequest, "MISSING_EMAIL", "email is required")
		return
	}
	if req.Password == "" {
		h.identityError(c, http.StatusBadRequest, "MISSING_PASSWORD", "password is required")
		return
	}

	creds, err := h.services.Tokens.Authenticate(req.Email, req.Password)
	if err != nil {
		code := "INVALID_PASSWORD"
		if errors.Is(err, service.ErrUnknownAccount) {
			code = "EMAIL_NOT_FOUND"
		}
		h.identityError(c, http.StatusUnauthorized, code, "Authentication failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":         "identitytoolkit#VerifyPasswordResponse",
		"localId":      creds.UserID,
		"email":        creds.Email,
		"displayName":  "",
		"idToken":      creds.IDToken,
		"registered":   true,
		"refreshToken": creds.RefreshToken,
		"expiresIn":    strconv.Itoa(creds.ExpiresIn),
	})
}

// @Summary      Exchange a refresh token
// @Description  Accepts form-urlencoded or JSON with grant_type=refresh_token
// @Tags         identity
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]interface{}
// @Router       /v1/token [post]
func (h *Handler) refreshToken(c *gin.Context) {
	var req refreshRequest
	if c.ContentType() == "application/x-www-form-urlencoded" {
		if err := c.ShouldBind(&req); err != nil {
			h.identityError(c, http.StatusBadRequest, "INVALID_BODY", "Invalid form body")
			return
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.identityError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
			return
		}
	}

	if req.GrantType != "refresh_token" {
		h.identityError(c, http.StatusBadRequest, "INVALID_GRANT_TYPE", "grant_type must be refresh_token")
		return
	}
	if req.RefreshToken == "" {
		h.identityError(c, http.StatusBadRequest, "MISSING_REFRESH_TOKEN", "refresh_token is required")
		return
	}

	creds, err := h.services.Tokens.Refresh(req.RefreshToken)
	if err != nil {
		h.identityError(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Token refresh failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  creds.IDToken,
		"expires_in":    strconv.Itoa(creds.ExpiresIn),
		"token_type":    "Bearer",
		"refresh_token": creds.RefreshToken,
		"id_token":      creds.IDToken,
		"user_id":       creds.UserID,
		"project_id":    "mock-project",
	})
}

// @Summary      Identity mock health
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) identityHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "identity-mock",
	})
}
