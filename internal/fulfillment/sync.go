package fulfillment

import (
	"context"

	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/device"
	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/oauth"
)

// handleSync lists every plant in the user's linked groves as a device. A
// user who linked no groves gets an empty list without touching storage; a
// storage failure degrades to an empty list with a transient error code.
func (d *Dispatcher) handleSync(ctx context.Context, identity *oauth.Identity) voice.SyncPayload {
	payload := voice.SyncPayload{
		AgentUserID: identity.AgentUserID,
		Devices:     []voice.Device{},
	}

	groveIDs := identity.Link.LinkedGroveIDs
	if len(groveIDs) == 0 {
		return payload
	}

	groves, err := d.groves.GetGroves(ctx, groveIDs)
	if err != nil {
		d.log().Warn("sync grove fetch failed", zap.String("user_id", identity.UserID), zap.Error(err))
		payload.ErrorCode = voice.ErrorCodeTransient
		return payload
	}
	plants, err := d.plants.ListPlantsByGroves(ctx, groveIDs)
	if err != nil {
		d.log().Warn("sync plant fetch failed", zap.String("user_id", identity.UserID), zap.Error(err))
		payload.ErrorCode = voice.ErrorCodeTransient
		return payload
	}

	groveByID := make(map[string]domain.Grove, len(groves))
	for _, grove := range groves {
		groveByID[grove.ID] = grove
	}

	for _, plant := range plants {
		grove, ok := groveByID[plant.GroveID]
		if !ok {
			d.log().Warn("plant references missing grove",
				zap.String("plant_id", plant.ID),
				zap.String("grove_id", plant.GroveID))
			continue
		}
		payload.Devices = append(payload.Devices, device.PlantToDevice(plant, grove))
	}
	return payload
}
