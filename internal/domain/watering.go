package domain

import "time"

// WateringStatus classifies where a plant sits in its watering cycle.
type WateringStatus string

const (
	StatusOverdue  WateringStatus = "overdue"
	StatusDueToday WateringStatus = "due-today"
	StatusUpcoming WateringStatus = "upcoming"
	StatusHealthy  WateringStatus = "healthy"
)

// WateringSchedule is a point-in-time snapshot of a plant's cycle.
// DaysRemaining is signed: negative means the plant is overdue.
type WateringSchedule struct {
	Status           WateringStatus
	DaysRemaining    int
	DaysSinceWatered int
}

// Schedule computes the watering snapshot at the given instant. A plant that
// has never been watered is reported as due today.
func (p Plant) Schedule(now time.Time) WateringSchedule {
	if p.LastWateredAt == nil {
		return WateringSchedule{Status: StatusDueToday}
	}

	since := calendarDaysBetween(*p.LastWateredAt, now)
	remaining := p.WateringIntervalDays - since

	sched := WateringSchedule{DaysRemaining: remaining, DaysSinceWatered: since}
	switch {
	case remaining < 0:
		sched.Status = StatusOverdue
	case remaining == 0:
		sched.Status = StatusDueToday
	case since <= 1:
		sched.Status = StatusHealthy
	case remaining <= 2:
		sched.Status = StatusUpcoming
	default:
		sched.Status = StatusHealthy
	}
	return sched
}

// WithinGraceWindow reports whether watering now continues the streak.
// The grace window is the watering interval plus one day of allowed lateness.
func (p Plant) WithinGraceWindow(now time.Time) bool {
	if p.LastWateredAt == nil {
		return false
	}
	return calendarDaysBetween(*p.LastWateredAt, now) <= p.WateringIntervalDays+1
}

func calendarDaysBetween(from, to time.Time) int {
	a := from.UTC().Truncate(24 * time.Hour)
	b := to.UTC().Truncate(24 * time.Hour)
	return int(b.Sub(a).Hours() / 24)
}
