package view

import (
	"context"
	"sync"

	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/shell"
)

// Subscription はライブ購読の解除ハンドル。
type Subscription interface {
	Cancel()
}

// TaskSubscriber は所有者のタスク集合を購読するインターフェース。
type TaskSubscriber interface {
	SubscribeToUserTasks(ctx context.Context, ownerID string, callback func([]*model.Task)) Subscription
}

// BoardSink はボードの描画先。
type BoardSink interface {
	// RenderShell はボードの外枠を描画する。
	RenderShell(user *model.User) error
	// RenderLists は両リストを全置換で描画する。
	RenderLists(lists TaskLists)
}

// Board はタスクボードのライフサイクルを管理する。
// Activateで購読を1つ開き、Teardownでちょうど1回解除する。
type Board struct {
	subscriber TaskSubscriber
	sink       BoardSink

	mu     sync.Mutex
	sub    Subscription
	active bool
	closed bool
}

// NewBoard はBoardを生成する。
func NewBoard(subscriber TaskSubscriber, sink BoardSink) *Board {
	return &Board{subscriber: subscriber, sink: sink}
}

// Activate はボードを表示し、ユーザーのタスクの購読を開始する。
// userがnilの場合は何も描画・購読せず、ログインへのナビゲーション先を返す。
// 2回目以降の呼び出しやTeardown後の呼び出しは何もしない。
func (b *Board) Activate(ctx context.Context, user *model.User) (string, error) {
	if user == nil {
		return shell.PathLogin, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active || b.closed {
		return "", nil
	}

	if err := b.sink.RenderShell(user); err != nil {
		return "", err
	}

	b.active = true
	b.sub = b.subscriber.SubscribeToUserTasks(ctx, user.ID, func(tasks []*model.Task) {
		b.sink.RenderLists(SplitByStatus(tasks))
	})
	return "", nil
}

// Teardown は購読を解除する。複数回呼んでも解除は1回のみ。
func (b *Board) Teardown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	sub := b.sub
	b.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}
