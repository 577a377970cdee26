package api

import (
	"time"

	"fitstake_miniapp/internal/model"

	"github.com/google/uuid"
)

type rulesDTO struct {
	MaxParticipants int   `json:"max_participants"`
	AllowLateJoin   *bool `json:"allow_late_join,omitempty"`
}

func (r *rulesDTO) toModel() model.ChallengeRules {
	var rules model.ChallengeRules
	if r == nil {
		return rules
	}
	rules.MaxParticipants = r.MaxParticipants
	if r.AllowLateJoin != nil {
		rules.DisallowLateJoin = !*r.AllowLateJoin
	}
	return rules
}

type CreateChallengeRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Goal        float64    `json:"goal"`
	Stake       int64      `json:"stake"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Visibility  string     `json:"visibility"`
	GroupID     *uuid.UUID `json:"group_id"`
	Rules       *rulesDTO  `json:"rules"`
}

func (r CreateChallengeRequest) toParams() model.CreateChallengeParams {
	return model.CreateChallengeParams{
		Title:       r.Title,
		Description: r.Description,
		Type:        model.ChallengeType(r.Type),
		Goal:        r.Goal,
		Stake:       r.Stake,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Visibility:  model.Visibility(r.Visibility),
		GroupID:     r.GroupID,
		Rules:       r.Rules.toModel(),
	}
}

type UpdateChallengeRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Goal        *float64   `json:"goal"`
	EndDate     *time.Time `json:"end_date"`
	Visibility  *string    `json:"visibility"`
	Rules       *rulesDTO  `json:"rules"`
}

func (r UpdateChallengeRequest) toModel() model.ChallengeUpdate {
	u := model.ChallengeUpdate{
		Title:       r.Title,
		Description: r.Description,
		Goal:        r.Goal,
		EndDate:     r.EndDate,
	}
	if r.Visibility != nil {
		v := model.Visibility(*r.Visibility)
		u.Visibility = &v
	}
	if r.Rules != nil {
		rules := r.Rules.toModel()
		u.Rules = &rules
	}
	return u
}

type ChallengeResponse struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	Goal          float64    `json:"goal"`
	Stake         int64      `json:"stake"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       time.Time  `json:"end_date"`
	CreatedBy     int64      `json:"created_by"`
	Participants  []int64    `json:"participants"`
	Status        string     `json:"status"`
	Visibility    string     `json:"visibility"`
	GroupID       *uuid.UUID `json:"group_id,omitempty"`
	PrizePool     int64      `json:"prize_pool"`
	LedgerAddress *string    `json:"ledger_address,omitempty"`
	Rules         rulesOut   `json:"rules"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type rulesOut struct {
	MaxParticipants int  `json:"max_participants"`
	AllowLateJoin   bool `json:"allow_late_join"`
}

func newChallengeResponse(c *model.Challenge) ChallengeResponse {
	participants := c.Participants
	if participants == nil {
		participants = []int64{}
	}

	return ChallengeResponse{
		ID:            c.ID,
		Title:         c.Title,
		Description:   c.Description,
		Type:          string(c.Type),
		Goal:          c.Goal,
		Stake:         c.Stake,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		CreatedBy:     c.CreatedBy,
		Participants:  participants,
		Status:        string(c.Status),
		Visibility:    string(c.Visibility),
		GroupID:       c.GroupID,
		PrizePool:     c.PrizePool,
		LedgerAddress: c.LedgerAddress,
		Rules: rulesOut{
			MaxParticipants: c.Rules.MaxParticipants,
			AllowLateJoin:   !c.Rules.DisallowLateJoin,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newChallengeResponses(list []*model.Challenge) []ChallengeResponse {
	out := make([]ChallengeResponse, len(list))
	for i, c := range list {
		out[i] = newChallengeResponse(c)
	}
	return out
}

type UserChallengeResponse struct {
	ChallengeID uuid.UUID  `json:"challenge_id"`
	UserID      int64      `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	Goal        float64    `json:"goal"`
	Stake       int64      `json:"stake"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Progress    float64    `json:"progress"`
	Status      string     `json:"status"`
	JoinedAt    time.Time  `json:"joined_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newUserChallengeResponse(uc *model.UserChallenge) UserChallengeResponse {
	return UserChallengeResponse{
		ChallengeID: uc.ChallengeID,
		UserID:      uc.UserID,
		DisplayName: uc.DisplayName,
		Title:       uc.Title,
		Type:        string(uc.Type),
		Goal:        uc.Goal,
		Stake:       uc.Stake,
		StartDate:   uc.StartDate,
		EndDate:     uc.EndDate,
		Progress:    uc.Progress,
		Status:      string(uc.Status),
		JoinedAt:    uc.JoinedAt,
		CompletedAt: uc.CompletedAt,
	}
}

type ChallengeListItemResponse struct {
	Kind          string                 `json:"kind"`
	ID            uuid.UUID              `json:"id"`
	Participation *UserChallengeResponse `json:"participation,omitempty"`
	Challenge     *ChallengeResponse     `json:"challenge,omitempty"`
}

func newListItemResponse(item model.ChallengeListItem) ChallengeListItemResponse {
	out := ChallengeListItemResponse{Kind: string(item.Kind), ID: item.ID()}
	if item.UserChallenge != nil {
		p := newUserChallengeResponse(item.UserChallenge)
		out.Participation = &p
	}
	if item.Challenge != nil {
		c := newChallengeResponse(item.Challenge)
		out.Challenge = &c
	}
	return out
}

type ProgressReportResponse struct {
	Updated  int               `json:"updated"`
	Resolved int               `json:"resolved"`
	Skipped  int               `json:"skipped"`
	Failures map[string]string `json:"failures,omitempty"`
}

func newProgressReportResponse(r *model.ProgressReport) ProgressReportResponse {
	out := ProgressReportResponse{
		Updated:  r.Updated,
		Resolved: r.Resolved,
		Skipped:  r.Skipped,
	}
	if len(r.Failures) > 0 {
		out.Failures = make(map[string]string, len(r.Failures))
		for id, reason := range r.Failures {
			out.Failures[id.String()] = reason
		}
	}
	return out
}
