package domain

import "time"

// Grove is a named collection of plants under shared access.
type Grove struct {
	ID        string
	OwnerID   string
	Name      string
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Plant is a tracked plant with a watering schedule and streak counters.
type Plant struct {
	ID                   string
	GroveID              string
	Name                 string
	Species              string
	Location             string
	WateringIntervalDays int
	LastWateredAt        *time.Time
	StreakCount          int
	BestStreak           int
	StreakStartedAt      *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// WateringEvent records a single watering, attributed to the user who owns
// the plant rather than the channel that triggered it.
type WateringEvent struct {
	ID        int64
	PlantID   string
	UserID    string
	Source    string
	WateredAt time.Time
}

// Watering event sources.
const (
	WateringSourceApp   = "app"
	WateringSourceVoice = "voice"
)
