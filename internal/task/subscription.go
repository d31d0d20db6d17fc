package task

import (
	"context"
	"sync"

	"github.com/hitoshi/tablero/internal/model"
)

// Subscription は所有者のタスク集合に対するライブ購読を表す。
// 購読ごとに1つのgoroutineがコールバックを呼び出す。
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	once    sync.Once
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{cancel: cancel, done: make(chan struct{})}
}

// Cancel は購読を終了する。複数回呼んでも安全。
// Cancelが返った後にコールバックが呼ばれることはない。
// コールバック内から呼び出してはならない。
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.cancel()
	})
}

// Done は購読のgoroutineが終了するとクローズされるチャネルを返す。
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// deliver は購読が有効な場合にのみコールバックを呼び出す。
func (s *Subscription) deliver(tasks []*model.Task, callback func([]*model.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	callback(tasks)
	return true
}
