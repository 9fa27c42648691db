package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/oauth"
)

// OAuthHandler exposes the account-linking OAuth endpoints.
type OAuthHandler struct {
	OAuth  *oauth.Service
	Logger *zap.Logger
}

// NewOAuthHandler creates the handler set.
func NewOAuthHandler(svc *oauth.Service, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{OAuth: svc, Logger: logger}
}

// Authorize starts the linking flow. The app's session layer has already
// authenticated the user and forwards their id in X-User-ID; this endpoint
// mints a single-use code and bounces back to the platform's redirect URI.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "access_denied",
			"error_description": "User is not signed in.",
		})
		return
	}

	redirectURI := c.Query("redirect_uri")
	state := c.Query("state")

	code, err := h.OAuth.BeginAuthorization(c.Request.Context(), userID, redirectURI)
	if err != nil {
		respondOAuthError(c, err)
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Malformed redirect URI.",
		})
		return
	}
	q := target.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, target.String())
}

// Token handles OAuth token grant exchanges.
func (h *OAuthHandler) Token(c *gin.Context) {
	var req struct {
		GrantType    string `form:"grant_type" binding:"required"`
		Code         string `form:"code"`
		RedirectURI  string `form:"redirect_uri"`
		RefreshToken string `form:"refresh_token"`
		ClientID     string `form:"client_id"`
		ClientSecret string `form:"client_secret"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Invalid token request.",
		})
		return
	}

	clientID, clientSecret := clientCredentials(c, req.ClientID, req.ClientSecret)

	var (
		resp *oauth.TokenResponse
		err  error
	)
	switch strings.ToLower(req.GrantType) {
	case "authorization_code":
		resp, err = h.OAuth.ExchangeCodeForTokens(c.Request.Context(), req.Code, req.RedirectURI, clientID, clientSecret)
	case "refresh_token":
		resp, err = h.OAuth.RefreshAccessToken(c.Request.Context(), req.RefreshToken, clientID, clientSecret)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "Unsupported grant type.",
		})
		return
	}

	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// clientCredentials prefers HTTP Basic auth and falls back to form fields.
func clientCredentials(c *gin.Context, formID, formSecret string) (string, string) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		return id, secret
	}
	return formID, formSecret
}

func respondOAuthError(c *gin.Context, err error) {
	var oauthErr *oauth.OAuthError
	if errors.As(err, &oauthErr) {
		c.JSON(oauthErr.Status, gin.H{
			"error":             oauthErr.Code,
			"error_description": oauthErr.Description,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":             "server_error",
		"error_description": "Unexpected error.",
	})
}
