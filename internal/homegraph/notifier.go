package homegraph

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plangrove/voicelink/internal/config"
	"github.com/plangrove/voicelink/internal/repository"
)

const assertionTTL = time.Hour

// ServiceAccount is the subset of a service-account credentials file the
// notifier needs.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Notifier asks the external device registry to pull a fresh SYNC whenever
// the user's plant topology changes. The whole feature is best-effort: every
// method degrades to false plus a log line, and never fails the caller's
// primary operation.
type Notifier struct {
	account    *ServiceAccount
	signingKey *rsa.PrivateKey
	links      repository.LinkRepository
	httpClient *http.Client
	syncURL    string
	scope      string
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotifier loads service-account credentials from the configured file.
// Missing or malformed credentials leave the notifier unconfigured rather
// than failing process startup.
func NewNotifier(cfg config.Config, links repository.LinkRepository, client *http.Client, logger *zap.Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	n := &Notifier{
		links:      links,
		httpClient: client,
		syncURL:    cfg.DeviceRegistryURL,
		scope:      cfg.DeviceRegistryScope,
		logger:     logger,
		now:        time.Now,
	}

	if cfg.ServiceAccountFile == "" {
		return n
	}
	raw, err := os.ReadFile(cfg.ServiceAccountFile)
	if err != nil {
		n.log().Warn("service account file unreadable, resync disabled", zap.Error(err))
		return n
	}
	account, key, err := parseServiceAccount(raw)
	if err != nil {
		n.log().Warn("service account credentials invalid, resync disabled", zap.Error(err))
		return n
	}
	n.account = account
	n.signingKey = key
	return n
}

// IsConfigured reports whether usable credentials were loaded.
func (n *Notifier) IsConfigured() bool {
	return n != nil && n.account != nil && n.signingKey != nil
}

// RequestSync asks the registry to re-SYNC the agent user's devices.
// Returns whether the request was accepted.
func (n *Notifier) RequestSync(ctx context.Context, agentUserID string) bool {
	if !n.IsConfigured() {
		n.log().Debug("resync skipped, notifier not configured")
		return false
	}

	assertion, err := n.signAssertion()
	if err != nil {
		n.log().Warn("assertion signing failed", zap.Error(err))
		return false
	}

	accessToken, err := n.exchangeAssertion(ctx, assertion)
	if err != nil {
		n.log().Warn("jwt-bearer exchange failed", zap.Error(err))
		return false
	}

	if err := n.postRequestSync(ctx, accessToken, agentUserID); err != nil {
		n.log().Warn("resync request failed",
			zap.String("agent_user_id", agentUserID),
			zap.Error(err))
		return false
	}

	n.log().Info("resync requested", zap.String("agent_user_id", agentUserID))
	return true
}

// RequestSyncForUser resolves the user's Link and requests a resync.
func (n *Notifier) RequestSyncForUser(ctx context.Context, userID string) bool {
	if !n.IsConfigured() {
		return false
	}
	link, err := n.links.GetLink(ctx, userID)
	if err != nil {
		n.log().Debug("resync skipped, user not linked", zap.String("user_id", userID))
		return false
	}
	return n.RequestSync(ctx, link.AgentUserID)
}

// RequestSyncForGrove fans out to every link exposing the grove. Branches
// run concurrently and swallow their own failures: one user's broken link
// must not stop the others from refreshing.
func (n *Notifier) RequestSyncForGrove(ctx context.Context, groveID string) {
	if !n.IsConfigured() {
		return
	}
	links, err := n.links.ListLinksByGrove(ctx, groveID)
	if err != nil {
		n.log().Warn("grove link listing failed", zap.String("grove_id", groveID), zap.Error(err))
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, link := range links {
		agentUserID := link.AgentUserID
		g.Go(func() error {
			if !n.RequestSync(ctx, agentUserID) {
				n.log().Warn("grove resync branch failed", zap.String("agent_user_id", agentUserID))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// signAssertion builds and signs the service-account JWT.
func (n *Notifier) signAssertion() (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.RS256, Key: n.signingKey},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := n.now().UTC()
	std := gojwt.Claims{
		Issuer:   n.account.ClientEmail,
		Subject:  n.account.ClientEmail,
		Audience: gojwt.Audience{n.account.TokenURI},
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(assertionTTL)),
	}
	custom := struct {
		Scope string `json:"scope"`
	}{Scope: n.scope}

	assertion, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize assertion: %w", err)
	}
	return assertion, nil
}

// exchangeAssertion trades the signed assertion for a platform access token.
func (n *Notifier) exchangeAssertion(ctx context.Context, assertion string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("token exchange failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return payload.AccessToken, nil
}

// postRequestSync calls the device-registry resync endpoint.
func (n *Notifier) postRequestSync(ctx context.Context, accessToken, agentUserID string) error {
	body, err := json.Marshal(map[string]any{
		"agentUserId": agentUserID,
		"async":       false,
	})
	if err != nil {
		return fmt.Errorf("marshal resync body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.syncURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build resync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resync request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("resync failed: status=%d", resp.StatusCode)
	}
	return nil
}

func parseServiceAccount(raw []byte) (*ServiceAccount, *rsa.PrivateKey, error) {
	var account ServiceAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, nil, fmt.Errorf("decode credentials: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" || account.TokenURI == "" {
		return nil, nil, fmt.Errorf("credentials missing client_email, private_key, or token_uri")
	}

	block, _ := pem.Decode([]byte(account.PrivateKey))
	if block == nil {
		return nil, nil, fmt.Errorf("private key is not PEM encoded")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, nil, fmt.Errorf("private key is not RSA")
		}
		return &account, rsaKey, nil
	}
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	return &account, rsaKey, nil
}

func (n *Notifier) log() *zap.Logger {
	if n != nil && n.logger != nil {
		return n.logger
	}
	return zap.L()
}
