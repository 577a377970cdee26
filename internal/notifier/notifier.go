package notifier

import (
	"context"
	"sync"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/pkg/logger"

	"go.uber.org/zap"
)

type Notifier interface {
	Notify(ctx context.Context, event model.Event)
}

// Fanout delivers every event to each notifier on its own goroutine.
// Notify never blocks the caller and never reports delivery failures.
type Fanout struct {
	notifiers []Notifier
	wg        sync.WaitGroup
}

func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

func (f *Fanout) Notify(ctx context.Context, event model.Event) {
	ctx = context.WithoutCancel(ctx)

	for _, n := range f.notifiers {
		f.wg.Add(1)
		go func(n Notifier) {
			defer f.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Named("notifier").Error("notifier panicked",
						zap.String("event", string(event.Type)),
						zap.Any("panic", r))
				}
			}()

			n.Notify(ctx, event)
		}(n)
	}
}

// Wait blocks until every delivery started so far has returned.
func (f *Fanout) Wait() {
	f.wg.Wait()
}
