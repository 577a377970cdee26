package model

import "time"

type User struct {
	TelegramID       int64
	Handle           string
	Username         string
	DisplayName      string
	TokenBalance     int64
	WalletAddress    *string
	IsAdmin          bool
	RegistrationDate time.Time
	AuthDate         time.Time
}

// Name is what other participants see on leaderboards.
func (u *User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Handle != "":
		return u.Handle
	default:
		return u.Username
	}
}

// HealthMetrics is one day of activity reported by the user's device.
type HealthMetrics struct {
	UserTelegramID int64
	Day            time.Time
	Steps          float64
	ActiveMinutes  float64
	UpdatedAt      time.Time
}
