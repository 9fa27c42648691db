package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/repository"
)

// Token uses. A token minted for one use is never valid for the other.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims is the custom payload carried by access and refresh tokens.
type Claims struct {
	UserID      string `json:"userId"`
	AgentUserID string `json:"agentUserId"`
	TokenUse    string `json:"token_use"`
}

// Authority issues single-use authorization codes and signed access/refresh
// tokens, and validates both. Every failure path collapses to
// voice.ErrDenied: callers cannot distinguish a missing code from an expired
// one or a redirect mismatch.
type Authority struct {
	codes      repository.CodeStore
	secret     []byte
	codeTTL    time.Duration
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthority wires the token authority.
func NewAuthority(codes repository.CodeStore, secret []byte, codeTTL, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *Authority {
	return &Authority{
		codes:      codes,
		secret:     secret,
		codeTTL:    codeTTL,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// GenerateAuthCode mints a 32-character single-use code bound to the exact
// redirect URI and persists it with the configured expiry.
func (a *Authority) GenerateAuthCode(ctx context.Context, userID, redirectURI string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	code := hex.EncodeToString(buf)

	now := a.now().UTC()
	record := domain.AuthorizationCode{
		Code:        code,
		UserID:      userID,
		RedirectURI: redirectURI,
		ExpiresAt:   now.Add(a.codeTTL),
		CreatedAt:   now,
	}
	if err := a.codes.SaveCode(ctx, record, a.codeTTL); err != nil {
		return "", fmt.Errorf("persist code: %w", err)
	}
	return code, nil
}

// ValidateAuthCode redeems a code. Redemption consumes the record before any
// check runs, so a code that fails validation is burned rather than left
// redeemable.
func (a *Authority) ValidateAuthCode(ctx context.Context, code, redirectURI string) (string, error) {
	record, err := a.codes.RedeemCode(ctx, code)
	if err != nil {
		a.log().Warn("code redemption failed", zap.Error(err))
		return "", voice.ErrDenied
	}
	if record == nil {
		a.log().Debug("unknown or already redeemed code")
		return "", voice.ErrDenied
	}
	if a.now().After(record.ExpiresAt) {
		a.log().Debug("expired code", zap.Time("expires_at", record.ExpiresAt))
		return "", voice.ErrDenied
	}
	if record.RedirectURI != redirectURI {
		a.log().Debug("redirect uri mismatch")
		return "", voice.ErrDenied
	}
	return record.UserID, nil
}

// GenerateAccessToken mints a signed access token for the user pair.
func (a *Authority) GenerateAccessToken(userID, agentUserID string) (string, error) {
	return a.mint(userID, agentUserID, UseAccess, a.accessTTL)
}

// GenerateRefreshToken mints a signed refresh token for the user pair.
func (a *Authority) GenerateRefreshToken(userID, agentUserID string) (string, error) {
	return a.mint(userID, agentUserID, UseRefresh, a.refreshTTL)
}

// mint signs the claims with HS256. Claims carry no nonce, so two mints with
// identical inputs in the same second produce byte-identical tokens; the
// tokens are bearer-opaque to the platform, which makes this acceptable.
func (a *Authority) mint(userID, agentUserID, use string, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: a.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := a.now().UTC()
	std := gojwt.Claims{
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := Claims{
		UserID:      userID,
		AgentUserID: agentUserID,
		TokenUse:    use,
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies signature, expiry, and token use. Malformed input of
// any shape is a uniform denial, never a panic or a propagated parse error.
func (a *Authority) ValidateToken(token, expectedUse string) (*Claims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		a.log().Debug("token parse failed", zap.Error(err))
		return nil, voice.ErrDenied
	}

	var std gojwt.Claims
	var custom Claims
	if err := parsed.Claims(a.secret, &std, &custom); err != nil {
		a.log().Debug("token verification failed", zap.Error(err))
		return nil, voice.ErrDenied
	}

	// Zero leeway: a token one second past expiry is already invalid.
	if err := std.ValidateWithLeeway(gojwt.Expected{Time: a.now()}, 0); err != nil {
		a.log().Debug("token claims invalid", zap.Error(err))
		return nil, voice.ErrDenied
	}
	if custom.TokenUse != expectedUse {
		a.log().Debug("token use mismatch", zap.String("expected", expectedUse))
		return nil, voice.ErrDenied
	}
	if custom.UserID == "" {
		return nil, voice.ErrDenied
	}

	return &custom, nil
}

// AccessTokenTTL exposes the configured access token lifetime.
func (a *Authority) AccessTokenTTL() time.Duration {
	return a.accessTTL
}

func (a *Authority) log() *zap.Logger {
	if a != nil && a.logger != nil {
		return a.logger
	}
	return zap.L()
}
