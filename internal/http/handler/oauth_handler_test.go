package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/config"
	"github.com/plangrove/voicelink/internal/domain"
	httphandler "github.com/plangrove/voicelink/internal/http/handler"
	"github.com/plangrove/voicelink/internal/oauth"
	"github.com/plangrove/voicelink/internal/token"
)

const (
	testClientID     = "plangrove-voice"
	testClientSecret = "s3cret"
	testRedirectURI  = "https://platform.example/redirect"
)

type memoryLinkRepo struct {
	links map[string]domain.Link
}

func newMemoryLinkRepo() *memoryLinkRepo {
	return &memoryLinkRepo{links: make(map[string]domain.Link)}
}

func (m *memoryLinkRepo) GetLink(ctx context.Context, userID string) (domain.Link, error) {
	link, ok := m.links[userID]
	if !ok {
		return domain.Link{}, errors.New("link not found")
	}
	return link, nil
}

func (m *memoryLinkRepo) UpsertLink(ctx context.Context, link domain.Link) error {
	m.links[link.UserID] = link
	return nil
}

func (m *memoryLinkRepo) UpdateLinkedGroves(ctx context.Context, userID string, groveIDs []string) error {
	link, ok := m.links[userID]
	if !ok {
		return errors.New("link not found")
	}
	link.LinkedGroveIDs = groveIDs
	m.links[userID] = link
	return nil
}

func (m *memoryLinkRepo) DeleteLink(ctx context.Context, userID string) error {
	delete(m.links, userID)
	return nil
}

func (m *memoryLinkRepo) ListLinksByGrove(ctx context.Context, groveID string) ([]domain.Link, error) {
	return nil, nil
}

type memoryCodeStore struct {
	codes map[string]domain.AuthorizationCode
}

func newMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{codes: make(map[string]domain.AuthorizationCode)}
}

func (m *memoryCodeStore) SaveCode(ctx context.Context, code domain.AuthorizationCode, ttl time.Duration) error {
	m.codes[code.Code] = code
	return nil
}

func (m *memoryCodeStore) RedeemCode(ctx context.Context, code string) (*domain.AuthorizationCode, error) {
	record, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	delete(m.codes, code)
	return &record, nil
}

func newTestOAuthService() *oauth.Service {
	cfg := config.Config{
		OAuthClientID:      testClientID,
		OAuthClientSecret:  testClientSecret,
		AllowedRedirectURI: testRedirectURI,
	}
	authority := token.NewAuthority(
		newMemoryCodeStore(),
		[]byte("0123456789abcdef0123456789abcdef"),
		10*time.Minute, time.Hour, 365*24*time.Hour,
		zap.NewNop(),
	)
	return oauth.NewService(newMemoryLinkRepo(), authority, nil, cfg, zap.NewNop())
}

func newOAuthTestEngine() (*gin.Engine, *httphandler.OAuthHandler) {
	gin.SetMode(gin.TestMode)
	h := httphandler.NewOAuthHandler(newTestOAuthService(), zap.NewNop())
	r := gin.New()
	r.GET("/oauth/authorize", h.Authorize)
	r.POST("/oauth/token", h.Token)
	return r, h
}

func TestAuthorizeRedirectsWithCode(t *testing.T) {
	r, _ := newOAuthTestEngine()

	target := "/oauth/authorize?redirect_uri=" + url.QueryEscape(testRedirectURI) + "&state=xyz"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "platform.example", location.Host)
	require.NotEmpty(t, location.Query().Get("code"))
	require.Equal(t, "xyz", location.Query().Get("state"))
}

func TestAuthorizeRequiresSignedInUser(t *testing.T) {
	r, _ := newOAuthTestEngine()

	target := "/oauth/authorize?redirect_uri=" + url.QueryEscape(testRedirectURI)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthorizeRejectsForeignRedirect(t *testing.T) {
	r, _ := newOAuthTestEngine()

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?redirect_uri=https%3A%2F%2Fevil.example%2Fcb", nil)
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_request")
}

func TestTokenEndpointCodeExchange(t *testing.T) {
	r, _ := newOAuthTestEngine()

	target := "/oauth/authorize?redirect_uri=" + url.QueryEscape(testRedirectURI)
	authReq := httptest.NewRequest(http.MethodGet, target, nil)
	authReq.Header.Set("X-User-ID", "user-1")
	authW := httptest.NewRecorder()
	r.ServeHTTP(authW, authReq)
	require.Equal(t, http.StatusFound, authW.Code)

	location, err := url.Parse(authW.Header().Get("Location"))
	require.NoError(t, err)
	code := location.Query().Get("code")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", testRedirectURI)
	tokenReq := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	tokenReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokenReq.SetBasicAuth(testClientID, testClientSecret)
	tokenW := httptest.NewRecorder()
	r.ServeHTTP(tokenW, tokenReq)

	require.Equal(t, http.StatusOK, tokenW.Code)
	require.Contains(t, tokenW.Body.String(), "access_token")
	require.Contains(t, tokenW.Body.String(), "refresh_token")
}

func TestTokenEndpointRejectsUnsupportedGrant(t *testing.T) {
	r, _ := newOAuthTestEngine()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unsupported_grant_type")
}

func TestTokenEndpointRejectsMissingGrantType(t *testing.T) {
	r, _ := newOAuthTestEngine()

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_request")
}

func TestTokenEndpointRejectsBadClient(t *testing.T) {
	r, _ := newOAuthTestEngine()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", "whatever")
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "invalid_client")
}
