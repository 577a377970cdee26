package model

import (
	"time"

	"github.com/google/uuid"
)

type ChallengeType string

const (
	ChallengeTypeSteps         ChallengeType = "steps"
	ChallengeTypeActiveMinutes ChallengeType = "activeMinutes"
	ChallengeTypeHeartRate     ChallengeType = "heartRate"
	ChallengeTypeSleepHours    ChallengeType = "sleepHours"
)

func (t ChallengeType) Valid() bool {
	switch t {
	case ChallengeTypeSteps, ChallengeTypeActiveMinutes, ChallengeTypeHeartRate, ChallengeTypeSleepHours:
		return true
	}
	return false
}

type ChallengeStatus string

const (
	ChallengeStatusActive    ChallengeStatus = "active"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusCancelled ChallengeStatus = "cancelled"
)

type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityPrivate    Visibility = "private"
	VisibilityInviteOnly Visibility = "invite_only"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityInviteOnly:
		return true
	}
	return false
}

// ChallengeRules are optional participation limits. The zero value places
// no limit: any number of participants, joining allowed until the end date.
type ChallengeRules struct {
	MaxParticipants  int
	DisallowLateJoin bool
}

type Challenge struct {
	ID            uuid.UUID
	Title         string
	Description   string
	Type          ChallengeType
	Goal          float64
	Stake         int64
	StartDate     time.Time
	EndDate       time.Time
	CreatedBy     int64
	Participants  []int64
	Status        ChallengeStatus
	Visibility    Visibility
	GroupID       *uuid.UUID
	PrizePool     int64
	LedgerAddress *string
	Rules         ChallengeRules
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Challenge) HasParticipant(userID int64) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// UserChallenge is one participant's record against a challenge.
type UserChallenge struct {
	ChallengeID uuid.UUID
	UserID      int64
	DisplayName string
	Title       string
	Type        ChallengeType
	Goal        float64
	Stake       int64
	StartDate   time.Time
	EndDate     time.Time
	Progress    float64
	Status      ChallengeStatus
	JoinedAt    time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewUserChallenge snapshots the descriptive fields of c for userID.
func NewUserChallenge(c *Challenge, userID int64, displayName string, now time.Time) *UserChallenge {
	return &UserChallenge{
		ChallengeID: c.ID,
		UserID:      userID,
		DisplayName: displayName,
		Title:       c.Title,
		Type:        c.Type,
		Goal:        c.Goal,
		Stake:       c.Stake,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Status:      ChallengeStatusActive,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
}

type CreateChallengeParams struct {
	Title       string
	Description string
	Type        ChallengeType
	Goal        float64
	Stake       int64
	StartDate   time.Time
	EndDate     time.Time
	Visibility  Visibility
	GroupID     *uuid.UUID
	Rules       ChallengeRules
}

// ChallengeUpdate holds the metadata a creator may edit. Nil fields are
// left untouched.
type ChallengeUpdate struct {
	Title       *string
	Description *string
	Goal        *float64
	EndDate     *time.Time
	Visibility  *Visibility
	Rules       *ChallengeRules
}

func (u ChallengeUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Goal == nil &&
		u.EndDate == nil && u.Visibility == nil && u.Rules == nil
}

type ProgressUpdate struct {
	ChallengeID uuid.UUID
	UserID      int64
	Progress    float64
}

// ProgressReport summarises one batch progress pass for a user.
type ProgressReport struct {
	UserTelegramID int64
	Updated        int
	Resolved       int
	Skipped        int
	Failures       map[uuid.UUID]string
}

type ListItemKind string

const (
	ListItemOwned     ListItemKind = "owned"
	ListItemAvailable ListItemKind = "available"
)

// ChallengeListItem is either a participation the user owns or a
// challenge they can still join; Kind says which field is set.
type ChallengeListItem struct {
	Kind          ListItemKind
	UserChallenge *UserChallenge
	Challenge     *Challenge
}

func (i ChallengeListItem) ID() uuid.UUID {
	if i.Kind == ListItemOwned {
		return i.UserChallenge.ChallengeID
	}
	return i.Challenge.ID
}
