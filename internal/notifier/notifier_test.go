package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fitstake_miniapp/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Event
	ctxErr error
}

func (r *recordingNotifier) Notify(ctx context.Context, event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.ctxErr = ctx.Err()
}

type panickingNotifier struct{}

func (panickingNotifier) Notify(context.Context, model.Event) {
	panic("bot exploded")
}

func TestFanout_Notify(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	f := NewFanout(first, panickingNotifier{}, second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	event := model.Event{Type: model.EventChallengeJoined, ChallengeID: uuid.New(), Recipients: []int64{1}}
	f.Notify(ctx, event)
	f.Wait()

	for _, n := range []*recordingNotifier{first, second} {
		require.Len(t, n.events, 1)
		assert.Equal(t, event.ChallengeID, n.events[0].ChallengeID)
		assert.NoError(t, n.ctxErr)
	}
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	fail map[int64]bool
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if s.fail[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("bot was blocked by the user")
	}
	s.sent = append(s.sent, msg)
	return tgbotapi.Message{}, nil
}

func TestTelegram_Notify(t *testing.T) {
	tests := []struct {
		name     string
		event    model.Event
		fail     map[int64]bool
		expected map[int64]string
	}{
		{
			name: "Join tells the joiner and the others",
			event: model.Event{
				Type:           model.EventChallengeJoined,
				ChallengeTitle: "10k steps",
				UserTelegramID: 2,
				Recipients:     []int64{2, 1},
				Amount:         10,
			},
			expected: map[int64]string{
				2: `You joined "10k steps" with a stake of 10 tokens.`,
				1: `A new participant joined "10k steps".`,
			},
		},
		{
			name: "Completion",
			event: model.Event{
				Type:           model.EventChallengeCompleted,
				ChallengeTitle: "Walk",
				UserTelegramID: 1,
				Recipients:     []int64{1},
				Amount:         25,
			},
			expected: map[int64]string{
				1: `You completed "Walk"! 25 tokens are on their way.`,
			},
		},
		{
			name: "Progress is not pushed",
			event: model.Event{
				Type:           model.EventProgressUpdated,
				UserTelegramID: 1,
				Recipients:     []int64{1},
			},
			expected: map[int64]string{},
		},
		{
			name: "A failed recipient does not stop the rest",
			event: model.Event{
				Type:           model.EventChallengeLeft,
				ChallengeTitle: "Walk",
				UserTelegramID: 3,
				Recipients:     []int64{3, 1},
				Amount:         5,
			},
			fail: map[int64]bool{3: true},
			expected: map[int64]string{
				1: `A participant left "Walk".`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{fail: tt.fail}
			NewTelegram(sender).Notify(context.Background(), tt.event)

			got := make(map[int64]string, len(sender.sent))
			for _, msg := range sender.sent {
				got[msg.ChatID] = msg.Text
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}
