package model

import (
	"time"

	"github.com/google/uuid"
)

type IntentKind string

const (
	IntentCreateAccount IntentKind = "account"
	IntentStake         IntentKind = "stake"
	IntentReward        IntentKind = "reward"
)

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentCompleted IntentStatus = "completed"
	IntentFailed    IntentStatus = "failed"
)

// SettlementIntent records a ledger mutation before it is submitted so a
// sweep can find the ones that never finished.
type SettlementIntent struct {
	ID             uuid.UUID
	Key            string
	Kind           IntentKind
	ChallengeID    uuid.UUID
	UserTelegramID int64
	Amount         int64
	Status         IntentStatus
	Attempts       int
	LastError      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
