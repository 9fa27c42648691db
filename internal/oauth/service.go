package oauth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/config"
	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/repository"
	"github.com/plangrove/voicelink/internal/token"
)

// TokenResponse matches OAuth token endpoint responses.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// OAuthError standardizes OAuth compliant errors.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newOAuthError(code, desc string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: desc, Status: status}
}

// Identity is the authenticated caller of a fulfillment request.
type Identity struct {
	UserID      string
	AgentUserID string
	Link        domain.Link
}

// SyncRequester asks the device registry to refresh a user's topology.
// Best-effort: implementations report success as a bool and never error.
type SyncRequester interface {
	RequestSyncForUser(ctx context.Context, userID string) bool
}

// Service implements the code and refresh grants and owns the Link record.
type Service struct {
	links     repository.LinkRepository
	authority *token.Authority
	sync      SyncRequester
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService wires dependencies.
func NewService(links repository.LinkRepository, authority *token.Authority, sync SyncRequester, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{
		links:     links,
		authority: authority,
		sync:      sync,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/plangrove/voicelink/internal/oauth"),
	}
}

// BeginAuthorization starts the consent flow for an app-authenticated user.
// The redirect URI must exactly match the configured platform URI.
func (s *Service) BeginAuthorization(ctx context.Context, userID, redirectURI string) (string, error) {
	ctx, span := s.startSpan(ctx, "oauth.BeginAuthorization")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return "", newOAuthError("invalid_request", "User is required.", 400)
	}
	if redirectURI != s.cfg.AllowedRedirectURI {
		s.log().Warn("redirect uri rejected", zap.String("user_id", userID))
		return "", newOAuthError("invalid_request", "Invalid redirect_uri.", 400)
	}

	code, err := s.authority.GenerateAuthCode(ctx, userID, redirectURI)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("generate authorization code: %w", err)
	}
	s.audit("authorization_code.issued", "user_id", userID)
	return code, nil
}

// ExchangeCodeForTokens redeems an authorization code for a token pair and
// upserts the Link. Every failure reason collapses to the same denial.
func (s *Service) ExchangeCodeForTokens(ctx context.Context, code, redirectURI, clientID, clientSecret string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "oauth.ExchangeCodeForTokens")
	defer span.End()

	if !s.validClient(clientID, clientSecret) {
		return nil, newOAuthError("invalid_client", "Client authentication failed.", 401)
	}

	userID, err := s.authority.ValidateAuthCode(ctx, code, redirectURI)
	if err != nil {
		span.RecordError(err)
		return nil, invalidGrant()
	}

	agentUserID := domain.AgentUserID(userID)
	access, err := s.authority.GenerateAccessToken(userID, agentUserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := s.authority.GenerateRefreshToken(userID, agentUserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	link := domain.Link{
		UserID:         userID,
		AgentUserID:    agentUserID,
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenExpiresAt: now.Add(s.authority.AccessTokenTTL()),
		// Grove consent is a separate step; a fresh link exposes nothing.
		LinkedGroveIDs: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.links.UpsertLink(ctx, link); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist link: %w", err)
	}

	s.audit("link.created", "user_id", userID, "agent_user_id", agentUserID)
	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.authority.AccessTokenTTL().Seconds()),
	}, nil
}

// RefreshAccessToken validates the refresh token and re-confirms the Link
// still exists; a deleted Link is the actual revocation check, since the
// token itself stays cryptographically valid until its own expiry.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken, clientID, clientSecret string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "oauth.RefreshAccessToken")
	defer span.End()

	if !s.validClient(clientID, clientSecret) {
		return nil, newOAuthError("invalid_client", "Client authentication failed.", 401)
	}

	claims, err := s.authority.ValidateToken(refreshToken, token.UseRefresh)
	if err != nil {
		span.RecordError(err)
		return nil, invalidGrant()
	}

	link, err := s.links.GetLink(ctx, claims.UserID)
	if err != nil {
		s.log().Info("refresh for unlinked account denied", zap.String("user_id", claims.UserID))
		return nil, invalidGrant()
	}

	access, err := s.authority.GenerateAccessToken(claims.UserID, claims.AgentUserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	link.AccessToken = access
	link.TokenExpiresAt = time.Now().UTC().Add(s.authority.AccessTokenTTL())
	if err := s.links.UpsertLink(ctx, link); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist refreshed link: %w", err)
	}

	s.audit("token.refreshed", "user_id", claims.UserID)
	return &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.authority.AccessTokenTTL().Seconds()),
	}, nil
}

// ValidateAccessTokenFromHeader authenticates a fulfillment request from its
// Authorization header and re-confirms the Link exists.
func (s *Service) ValidateAccessTokenFromHeader(ctx context.Context, header string) (*Identity, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, voice.ErrDenied
	}

	claims, err := s.authority.ValidateToken(parts[1], token.UseAccess)
	if err != nil {
		return nil, voice.ErrDenied
	}

	link, err := s.links.GetLink(ctx, claims.UserID)
	if err != nil {
		s.log().Info("token for unlinked account rejected", zap.String("user_id", claims.UserID))
		return nil, voice.ErrNotLinked
	}

	return &Identity{
		UserID:      claims.UserID,
		AgentUserID: claims.AgentUserID,
		Link:        link,
	}, nil
}

// SetLinkedGroves records the groves a user consented to expose and asks the
// registry for a fresh SYNC; the resync is best-effort and never fails the
// consent update.
func (s *Service) SetLinkedGroves(ctx context.Context, userID string, groveIDs []string) error {
	ctx, span := s.startSpan(ctx, "oauth.SetLinkedGroves")
	defer span.End()

	if err := s.links.UpdateLinkedGroves(ctx, userID, groveIDs); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update linked groves: %w", err)
	}
	s.audit("link.groves_updated", "user_id", userID, "grove_count", len(groveIDs))

	if s.sync != nil {
		s.sync.RequestSyncForUser(ctx, userID)
	}
	return nil
}

// Unlink removes the Link from the app side; all outstanding tokens become
// unusable immediately.
func (s *Service) Unlink(ctx context.Context, userID string) error {
	ctx, span := s.startSpan(ctx, "oauth.Unlink")
	defer span.End()

	if err := s.links.DeleteLink(ctx, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete link: %w", err)
	}
	s.audit("link.deleted", "user_id", userID)
	return nil
}

// DeleteLink removes the Link on behalf of a DISCONNECT intent.
func (s *Service) DeleteLink(ctx context.Context, userID string) error {
	return s.links.DeleteLink(ctx, userID)
}

func (s *Service) validClient(clientID, clientSecret string) bool {
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(s.cfg.OAuthClientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(s.cfg.OAuthClientSecret)) == 1
	if !idOK || !secretOK {
		s.log().Warn("client authentication failed")
		return false
	}
	return true
}

func invalidGrant() *OAuthError {
	return newOAuthError("invalid_grant", "Invalid grant.", 400)
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *Service) audit(event string, attrs ...any) {
	logger := s.log()
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *Service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
