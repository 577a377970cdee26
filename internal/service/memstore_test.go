package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/internal/repository"

	"github.com/google/uuid"
)

type participationKey struct {
	challengeID uuid.UUID
	userID      int64
}

// memStore is an in-memory stand-in for the Postgres repository with the
// same transactional semantics per call.
type memStore struct {
	mu             sync.Mutex
	users          map[int64]*model.User
	challenges     map[uuid.UUID]*model.Challenge
	participations map[participationKey]*model.UserChallenge
	intents        map[string]*model.SettlementIntent
	now            func() time.Time

	availableQueries int
}

func newMemStore() *memStore {
	return &memStore{
		users:          make(map[int64]*model.User),
		challenges:     make(map[uuid.UUID]*model.Challenge),
		participations: make(map[participationKey]*model.UserChallenge),
		intents:        make(map[string]*model.SettlementIntent),
		now:            time.Now,
	}
}

func (m *memStore) addUser(id, balance int64) {
	m.users[id] = &model.User{TelegramID: id, DisplayName: "user", TokenBalance: balance}
}

func (m *memStore) balance(id int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].TokenBalance
}

func copyChallenge(c *model.Challenge) *model.Challenge {
	cp := *c
	cp.Participants = append([]int64(nil), c.Participants...)
	return &cp
}

func copyParticipation(uc *model.UserChallenge) *model.UserChallenge {
	cp := *uc
	return &cp
}

func (m *memStore) adjust(id, delta int64) (int64, error) {
	user, ok := m.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if user.TokenBalance+delta < 0 {
		return 0, repository.ErrInsufficientBalance
	}
	user.TokenBalance += delta
	return user.TokenBalance, nil
}

func (m *memStore) CreateUser(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.TelegramID] = &cp
	return nil
}

func (m *memStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[telegramID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *memStore) AdjustTokenBalance(ctx context.Context, telegramID int64, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjust(telegramID, delta)
}

func (m *memStore) UpdateWalletAddress(ctx context.Context, telegramID int64, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[telegramID]
	if !ok {
		return repository.ErrNotFound
	}
	user.WalletAddress = &address
	return nil
}

func (m *memStore) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []*model.User
	for _, u := range m.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].TokenBalance > users[j].TokenBalance })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *memStore) CreateChallenge(ctx context.Context, challenge *model.Challenge, creator *model.UserChallenge) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	if creator != nil {
		if _, err := m.adjust(creator.UserID, -challenge.Stake); err != nil {
			return uuid.Nil, err
		}
		creator.ChallengeID = id
		m.participations[participationKey{id, creator.UserID}] = copyParticipation(creator)
	}

	challenge.ID = id
	challenge.CreatedAt = m.now().UTC()
	challenge.UpdatedAt = challenge.CreatedAt
	m.challenges[id] = copyChallenge(challenge)
	return id, nil
}

func (m *memStore) GetChallenge(ctx context.Context, id uuid.UUID) (*model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, nil
	}
	return copyChallenge(c), nil
}

func (m *memStore) UpdateChallenge(ctx context.Context, id uuid.UUID, update model.ChallengeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Title != nil {
		c.Title = *update.Title
	}
	if update.Description != nil {
		c.Description = *update.Description
	}
	if update.Goal != nil {
		c.Goal = *update.Goal
	}
	if update.EndDate != nil {
		c.EndDate = *update.EndDate
	}
	if update.Visibility != nil {
		c.Visibility = *update.Visibility
	}
	if update.Rules != nil {
		c.Rules = *update.Rules
	}
	c.UpdatedAt = m.now().UTC()

	for key, uc := range m.participations {
		if key.challengeID != id || uc.Status != model.ChallengeStatusActive {
			continue
		}
		if update.Title != nil {
			uc.Title = *update.Title
		}
		if update.Goal != nil {
			uc.Progress = min(100, uc.Progress*uc.Goal / *update.Goal)
			uc.Goal = *update.Goal
		}
		if update.EndDate != nil {
			uc.EndDate = *update.EndDate
		}
		uc.UpdatedAt = c.UpdatedAt
	}
	return nil
}

func (m *memStore) SetLedgerAddress(ctx context.Context, id uuid.UUID, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.LedgerAddress = &address
	return nil
}

func (m *memStore) ListChallengesByParticipant(ctx context.Context, telegramID int64, status model.ChallengeStatus) ([]*model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*model.Challenge
	for _, c := range m.challenges {
		if c.Status == status && c.HasParticipant(telegramID) {
			list = append(list, copyChallenge(c))
		}
	}
	return list, nil
}

func (m *memStore) ListPublicChallenges(ctx context.Context, limit int) ([]*model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*model.Challenge
	for _, c := range m.challenges {
		if c.Visibility == model.VisibilityPublic && c.Status == model.ChallengeStatusActive {
			list = append(list, copyChallenge(c))
		}
	}
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memStore) ListAvailableChallenges(ctx context.Context, now time.Time) ([]*model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availableQueries++
	var list []*model.Challenge
	for _, c := range m.challenges {
		if c.Visibility == model.VisibilityPublic && c.Status == model.ChallengeStatusActive && c.EndDate.After(now) {
			list = append(list, copyChallenge(c))
		}
	}
	return list, nil
}

func (m *memStore) GetUserChallenge(ctx context.Context, challengeID uuid.UUID, telegramID int64) (*model.UserChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uc, ok := m.participations[participationKey{challengeID, telegramID}]
	if !ok {
		return nil, nil
	}
	return copyParticipation(uc), nil
}

func (m *memStore) ListUserChallenges(ctx context.Context, telegramID int64, status *model.ChallengeStatus) ([]*model.UserChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*model.UserChallenge
	for key, uc := range m.participations {
		if key.userID != telegramID {
			continue
		}
		if status != nil && uc.Status != *status {
			continue
		}
		list = append(list, copyParticipation(uc))
	}
	return list, nil
}

func (m *memStore) AddParticipant(ctx context.Context, challengeID uuid.UUID, participation *model.UserChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[challengeID]
	switch {
	case !ok:
		return repository.ErrNotFound
	case c.Status != model.ChallengeStatusActive:
		return repository.ErrChallengeNotActive
	case c.HasParticipant(participation.UserID):
		return repository.ErrAlreadyParticipant
	case c.Rules.MaxParticipants > 0 && len(c.Participants) >= c.Rules.MaxParticipants:
		return repository.ErrChallengeFull
	}

	if _, err := m.adjust(participation.UserID, -c.Stake); err != nil {
		return err
	}

	c.Participants = append(c.Participants, participation.UserID)
	c.PrizePool += c.Stake
	participation.ChallengeID = challengeID
	m.participations[participationKey{challengeID, participation.UserID}] = copyParticipation(participation)
	return nil
}

func (m *memStore) RemoveParticipant(ctx context.Context, challengeID uuid.UUID, telegramID int64) (*model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[challengeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	key := participationKey{challengeID, telegramID}
	if _, ok := m.participations[key]; !ok {
		return nil, repository.ErrNotParticipant
	}
	if c.Status != model.ChallengeStatusActive {
		return nil, repository.ErrChallengeNotActive
	}

	participants := c.Participants[:0]
	for _, id := range c.Participants {
		if id != telegramID {
			participants = append(participants, id)
		}
	}
	c.Participants = participants
	c.PrizePool -= c.Stake
	delete(m.participations, key)
	if _, err := m.adjust(telegramID, c.Stake); err != nil {
		return nil, err
	}

	return copyChallenge(c), nil
}

func (m *memStore) MarkChallengeCompleted(ctx context.Context, challengeID uuid.UUID, telegramID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[challengeID]
	if !ok || c.Status != model.ChallengeStatusActive {
		return false, nil
	}
	uc, ok := m.participations[participationKey{challengeID, telegramID}]
	if !ok || uc.Status != model.ChallengeStatusActive {
		return false, repository.ErrNotParticipant
	}

	now := m.now().UTC()
	c.Status = model.ChallengeStatusCompleted
	uc.Status = model.ChallengeStatusCompleted
	uc.Progress = 100
	uc.CompletedAt = &now
	for key, other := range m.participations {
		if key.challengeID == challengeID && other.Status == model.ChallengeStatusActive {
			other.Status = model.ChallengeStatusCancelled
		}
	}
	return true, nil
}

func (m *memStore) UpdateProgressBatch(ctx context.Context, updates []model.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		if uc, ok := m.participations[participationKey{u.ChallengeID, u.UserID}]; ok && uc.Status == model.ChallengeStatusActive {
			uc.Progress = u.Progress
		}
	}
	return nil
}

func (m *memStore) ListUsersWithActiveChallenges(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]struct{})
	var ids []int64
	for key, uc := range m.participations {
		if _, ok := seen[key.userID]; ok || uc.Status != model.ChallengeStatusActive {
			continue
		}
		seen[key.userID] = struct{}{}
		ids = append(ids, key.userID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) CreateIntent(ctx context.Context, intent *model.SettlementIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.intents[intent.Key]; ok {
		if existing.Status != model.IntentFailed {
			return repository.ErrIntentExists
		}
		existing.Status = model.IntentPending
		existing.Attempts++
		intent.ID = existing.ID
		intent.Attempts = existing.Attempts
		return nil
	}

	intent.ID = uuid.New()
	intent.Status = model.IntentPending
	intent.Attempts = 1
	cp := *intent
	m.intents[intent.Key] = &cp
	return nil
}

func (m *memStore) setIntent(id uuid.UUID, status model.IntentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, intent := range m.intents {
		if intent.ID == id {
			intent.Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) CompleteIntent(ctx context.Context, id uuid.UUID) error {
	return m.setIntent(id, model.IntentCompleted)
}

func (m *memStore) FailIntent(ctx context.Context, id uuid.UUID, reason string) error {
	return m.setIntent(id, model.IntentFailed)
}

func (m *memStore) ListStuckIntents(ctx context.Context, olderThan time.Time) ([]*model.SettlementIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*model.SettlementIntent
	for _, intent := range m.intents {
		if intent.Status == model.IntentPending {
			cp := *intent
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (m *memStore) intentsByKind(kind model.IntentKind) []*model.SettlementIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*model.SettlementIntent
	for _, intent := range m.intents {
		if intent.Kind == kind {
			list = append(list, intent)
		}
	}
	return list
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
