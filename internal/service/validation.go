package service

import (
	"strings"
	"time"

	"fitstake_miniapp/internal/model"
)

func validateCreate(p model.CreateChallengeParams, now time.Time) error {
	var violations []string

	if !p.EndDate.After(p.StartDate) {
		violations = append(violations, "end date must be after start date")
	}
	if !p.EndDate.After(now) {
		violations = append(violations, "end date must be in the future")
	}
	if p.Stake <= 0 {
		violations = append(violations, "stake must be greater than 0")
	}
	if p.Goal <= 0 {
		violations = append(violations, "goal must be greater than 0")
	}
	if strings.TrimSpace(p.Title) == "" {
		violations = append(violations, "title is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		violations = append(violations, "description is required")
	}
	if !p.Type.Valid() {
		violations = append(violations, "unknown challenge type "+string(p.Type))
	}
	if !p.Visibility.Valid() {
		violations = append(violations, "unknown visibility "+string(p.Visibility))
	}
	if p.Rules.MaxParticipants < 0 {
		violations = append(violations, "max participants cannot be negative")
	}

	if len(violations) > 0 {
		return validationError(violations)
	}
	return nil
}

func validateUpdate(c *model.Challenge, u model.ChallengeUpdate, now time.Time) error {
	if u.Empty() {
		return validationError([]string{"nothing to update"})
	}

	var violations []string

	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		violations = append(violations, "title is required")
	}
	if u.Description != nil && strings.TrimSpace(*u.Description) == "" {
		violations = append(violations, "description is required")
	}
	if u.Goal != nil && *u.Goal <= 0 {
		violations = append(violations, "goal must be greater than 0")
	}
	if u.EndDate != nil {
		if !u.EndDate.After(c.StartDate) {
			violations = append(violations, "end date must be after start date")
		}
		if !u.EndDate.After(now) {
			violations = append(violations, "end date must be in the future")
		}
	}
	if u.Visibility != nil && !u.Visibility.Valid() {
		violations = append(violations, "unknown visibility "+string(*u.Visibility))
	}
	if u.Rules != nil {
		switch max := u.Rules.MaxParticipants; {
		case max < 0:
			violations = append(violations, "max participants cannot be negative")
		case max > 0 && max < len(c.Participants):
			violations = append(violations, "max participants is below the current participant count")
		}
	}

	if len(violations) > 0 {
		return validationError(violations)
	}
	return nil
}
