package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/fulfillment"
	httphandler "github.com/plangrove/voicelink/internal/http/handler"
	"github.com/plangrove/voicelink/internal/oauth"
)

type denyAllLinker struct{}

func (denyAllLinker) ValidateAccessTokenFromHeader(ctx context.Context, header string) (*oauth.Identity, error) {
	return nil, voice.ErrDenied
}

func (denyAllLinker) DeleteLink(ctx context.Context, userID string) error { return nil }

func newFulfillmentTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	d := fulfillment.NewDispatcher(denyAllLinker{}, nil, nil, node, zap.NewNop())
	h := httphandler.NewFulfillmentHandler(d, zap.NewNop())

	r := gin.New()
	r.POST("/fulfillment", h.Handle)
	return r
}

func TestFulfillmentRejectsMalformedBody(t *testing.T) {
	r := newFulfillmentTestEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/fulfillment", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFulfillmentAuthFailureIs401(t *testing.T) {
	r := newFulfillmentTestEngine(t)

	body := `{"requestId":"req-1","inputs":[{"intent":"action.devices.SYNC"}]}`
	req := httptest.NewRequest(http.MethodPost, "/fulfillment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "authFailure")
}
