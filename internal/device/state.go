package device

import (
	"fmt"
	"time"

	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/domain/voice"
)

// PlantDeviceState computes the point-in-time device state for a plant.
// Watering is instantaneous, so IsRunning and IsPaused are always false.
func PlantDeviceState(plant domain.Plant, now time.Time) voice.DeviceState {
	return voice.DeviceState{
		Online:       true,
		Status:       voice.StatusSuccess,
		StatusReport: statusPhrase(plant.Schedule(now)),
	}
}

// WateredDeviceState is the shared success state for just-watered plants.
func WateredDeviceState() voice.DeviceState {
	return voice.DeviceState{
		Online:       true,
		Status:       voice.StatusSuccess,
		StatusReport: "Watered just now",
	}
}

// OfflineDeviceState marks a device unreachable.
func OfflineDeviceState() voice.DeviceState {
	return voice.DeviceState{
		Status: voice.StatusOffline,
	}
}

// ErrorDeviceState carries a vendor error code for a single device.
func ErrorDeviceState(code voice.ErrorCode) voice.DeviceState {
	return voice.DeviceState{
		Status:    voice.StatusError,
		ErrorCode: code,
	}
}

func statusPhrase(sched domain.WateringSchedule) string {
	switch sched.Status {
	case domain.StatusOverdue:
		overdueBy := -sched.DaysRemaining
		if overdueBy == 1 {
			return "1 day overdue"
		}
		return fmt.Sprintf("%d days overdue", overdueBy)
	case domain.StatusDueToday:
		return "Due for watering today"
	case domain.StatusUpcoming:
		if sched.DaysRemaining == 1 {
			return "Due for watering in 1 day"
		}
		return fmt.Sprintf("Due for watering in %d days", sched.DaysRemaining)
	default:
		if sched.DaysSinceWatered <= 1 {
			return "Recently watered"
		}
		return fmt.Sprintf("Next watering in %d days", sched.DaysRemaining)
	}
}
