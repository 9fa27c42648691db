package fulfillment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/plangrove/voicelink/internal/device"
	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
	"github.com/plangrove/voicelink/internal/oauth"
)

// handleExecute runs command batches. Only StartStop has plant semantics;
// start=false is a no-op because watering cannot be stopped once it happened.
// Per-device failures of any kind collapse into one deviceNotFound bucket.
func (d *Dispatcher) handleExecute(ctx context.Context, identity *oauth.Identity, req voice.ExecuteRequest) voice.ExecutePayload {
	payload := voice.ExecutePayload{Commands: []voice.ExecuteResult{}}

	for _, command := range req.Commands {
		deviceIDs := make([]string, 0, len(command.Devices))
		for _, ref := range command.Devices {
			deviceIDs = append(deviceIDs, ref.ID)
		}

		for _, exec := range command.Execution {
			if exec.Command != voice.CommandStartStop {
				d.log().Warn("unsupported command", zap.String("command", exec.Command))
				payload.Commands = append(payload.Commands, voice.ExecuteResult{
					IDs:       deviceIDs,
					Status:    voice.StatusError,
					ErrorCode: voice.ErrorCodeNotSupported,
				})
				continue
			}

			start, _ := exec.Params["start"].(bool)
			if !start {
				// Nothing is mutated; the device simply reports not running.
				idle := voice.DeviceState{Online: true, Status: voice.StatusSuccess}
				payload.Commands = append(payload.Commands, voice.ExecuteResult{
					IDs:    deviceIDs,
					Status: voice.StatusSuccess,
					States: &idle,
				})
				continue
			}

			// Devices are watered one at a time. The streak update is a
			// read-modify-write with no per-plant lock: the same plant twice
			// in one batch, or a simultaneous in-app tap, can double-count.
			var watered, failed []string
			for _, deviceID := range deviceIDs {
				if err := d.waterPlant(ctx, identity, deviceID); err != nil {
					d.log().Warn("watering failed",
						zap.String("device_id", deviceID),
						zap.String("user_id", identity.UserID),
						zap.Error(err))
					failed = append(failed, deviceID)
					continue
				}
				watered = append(watered, deviceID)
			}

			if len(watered) > 0 {
				state := device.WateredDeviceState()
				payload.Commands = append(payload.Commands, voice.ExecuteResult{
					IDs:    watered,
					Status: voice.StatusSuccess,
					States: &state,
				})
			}
			if len(failed) > 0 {
				payload.Commands = append(payload.Commands, voice.ExecuteResult{
					IDs:       failed,
					Status:    voice.StatusError,
					ErrorCode: voice.ErrorCodeDeviceNotFound,
				})
			}
		}
	}
	return payload
}

func (d *Dispatcher) waterPlant(ctx context.Context, identity *oauth.Identity, deviceID string) error {
	plantID, ok := device.DeviceIDToPlantID(deviceID)
	if !ok {
		return voice.ErrNotFound
	}

	plant, err := d.plants.GetPlant(ctx, plantID)
	if err != nil {
		return fmt.Errorf("load plant: %w", err)
	}
	if !identity.Link.HasGrove(plant.GroveID) {
		return voice.ErrNotFound
	}

	now := d.now().UTC()
	if plant.WithinGraceWindow(now) {
		plant.StreakCount++
		if plant.StreakCount > plant.BestStreak {
			plant.BestStreak = plant.StreakCount
		}
	} else {
		plant.StreakCount = 1
		started := now
		plant.StreakStartedAt = &started
	}
	watered := now
	plant.LastWateredAt = &watered

	if err := d.plants.UpdateWatering(ctx, plant); err != nil {
		return fmt.Errorf("%w: persist watering: %v", voice.ErrTransient, err)
	}

	// The event belongs to the account owner, not to "voice platform".
	event := domain.WateringEvent{
		ID:        d.ids.Generate().Int64(),
		PlantID:   plant.ID,
		UserID:    identity.UserID,
		Source:    domain.WateringSourceVoice,
		WateredAt: now,
	}
	if err := d.plants.InsertWateringEvent(ctx, event); err != nil {
		return fmt.Errorf("%w: record watering event: %v", voice.ErrTransient, err)
	}
	return nil
}
