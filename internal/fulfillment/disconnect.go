package fulfillment

import (
	"context"

	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/oauth"
)

// handleDisconnect deletes the Link, which revokes every outstanding token.
// A failed delete is logged but the platform still sees success: disconnect
// must never be observably refused.
func (d *Dispatcher) handleDisconnect(ctx context.Context, identity *oauth.Identity) struct{} {
	if err := d.links.DeleteLink(ctx, identity.UserID); err != nil {
		d.log().Error("link deletion failed on disconnect",
			zap.String("user_id", identity.UserID),
			zap.Error(err))
	} else {
		d.log().Info("account disconnected", zap.String("user_id", identity.UserID))
	}
	return struct{}{}
}
