package fulfillment

import (
	"context"

	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/device"
	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/oauth"
)

type resolvedDevice struct {
	deviceID string
	plantID  string
}

// handleQuery reports state per requested device. Ids that don't decode get
// deviceNotFound immediately; plants outside the user's linked groves get the
// same code as missing plants so the response leaks nothing about scope.
func (d *Dispatcher) handleQuery(ctx context.Context, identity *oauth.Identity, req voice.QueryRequest) voice.QueryPayload {
	states := make(map[string]voice.DeviceState, len(req.Devices))

	var resolvable []resolvedDevice
	for _, ref := range req.Devices {
		plantID, ok := device.DeviceIDToPlantID(ref.ID)
		if !ok {
			states[ref.ID] = device.ErrorDeviceState(voice.ErrorCodeDeviceNotFound)
			continue
		}
		resolvable = append(resolvable, resolvedDevice{deviceID: ref.ID, plantID: plantID})
	}
	if len(resolvable) == 0 {
		return voice.QueryPayload{Devices: states}
	}

	plantIDs := make([]string, 0, len(resolvable))
	for _, r := range resolvable {
		plantIDs = append(plantIDs, r.plantID)
	}

	plants, err := d.plants.GetPlants(ctx, plantIDs)
	if err != nil {
		d.log().Warn("query plant fetch failed", zap.String("user_id", identity.UserID), zap.Error(err))
		for _, r := range resolvable {
			states[r.deviceID] = device.ErrorDeviceState(voice.ErrorCodeTransient)
		}
		return voice.QueryPayload{Devices: states}
	}

	plantByID := make(map[string]domain.Plant, len(plants))
	for _, plant := range plants {
		plantByID[plant.ID] = plant
	}

	now := d.now()
	for _, r := range resolvable {
		plant, ok := plantByID[r.plantID]
		if !ok {
			states[r.deviceID] = device.ErrorDeviceState(voice.ErrorCodeDeviceNotFound)
			continue
		}
		if !identity.Link.HasGrove(plant.GroveID) {
			// Deliberately the same code as a missing plant.
			states[r.deviceID] = device.ErrorDeviceState(voice.ErrorCodeDeviceNotFound)
			continue
		}
		states[r.deviceID] = device.PlantDeviceState(plant, now)
	}
	return voice.QueryPayload{Devices: states}
}
