package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventChallengeCreated   EventType = "challenge_created"
	EventChallengeJoined    EventType = "challenge_joined"
	EventChallengeLeft      EventType = "challenge_left"
	EventChallengeCompleted EventType = "challenge_completed"
	EventProgressUpdated    EventType = "progress_updated"
)

// Event is published to participants after a lifecycle change has been
// persisted. Delivery is best effort.
type Event struct {
	Type           EventType `json:"type"`
	ChallengeID    uuid.UUID `json:"challenge_id"`
	ChallengeTitle string    `json:"challenge_title"`
	UserTelegramID int64     `json:"user_telegram_id"`
	Recipients     []int64   `json:"-"`
	Amount         int64     `json:"amount,omitempty"`
	Progress       float64   `json:"progress,omitempty"`
	At             time.Time `json:"at"`
}
