package lifecycle

import (
	"time"

	"tourneyhost/internal/models"
)

const (
	// StartTTL is measured from the scheduled start, not from when the
	// tournament actually moved to ongoing.
	StartTTL  = 2 * time.Hour
	EndTTL    = 30 * time.Minute
	CancelTTL = 15 * time.Minute

	UltraAggressiveThreshold = 30 * time.Second
	ImmediateThreshold       = 10 * time.Second
)

var transitions = map[string][]string{
	models.TournamentActive:  {models.TournamentOngoing, models.TournamentCancelled},
	models.TournamentOngoing: {models.TournamentEnded, models.TournamentCompleted, models.TournamentCancelled},
}

// CanTransition reports whether a tournament may move from one status to
// another. Ended, completed and cancelled are final.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidStatus(status string) bool {
	switch status {
	case models.TournamentActive, models.TournamentOngoing, models.TournamentEnded,
		models.TournamentCompleted, models.TournamentCancelled:
		return true
	}
	return false
}

func StartedTTL(startDate time.Time) time.Time {
	return startDate.Add(StartTTL)
}

func EndedTTL(now time.Time) time.Time {
	return now.Add(EndTTL)
}

func CancelledTTL(now time.Time) time.Time {
	return now.Add(CancelTTL)
}

// Expired is true once now has reached ttl. A nil ttl never expires.
func Expired(ttl *time.Time, now time.Time) bool {
	return ttl != nil && !ttl.After(now)
}

// Remaining is the time left before ttl, clamped at zero.
func Remaining(ttl *time.Time, now time.Time) time.Duration {
	if ttl == nil {
		return 0
	}
	left := ttl.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Urgency names the cleanup threshold a ttl has crossed: "immediate",
// "ultra_aggressive" or "" when it is further away.
func Urgency(ttl *time.Time, now time.Time) string {
	if ttl == nil {
		return ""
	}
	left := Remaining(ttl, now)
	switch {
	case left <= ImmediateThreshold:
		return "immediate"
	case left <= UltraAggressiveThreshold:
		return "ultra_aggressive"
	}
	return ""
}

// Due reports whether an active tournament's start date has passed.
func Due(t models.Tournament, now time.Time) bool {
	return t.Status == models.TournamentActive && !t.StartDate.After(now)
}
