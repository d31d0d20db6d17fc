package handler

import (
	"context"

	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/task"
	"github.com/hitoshi/tablero/internal/view"
)

// TaskStreamService はライブ購読を提供するタスクサービスのインターフェース。
type TaskStreamService interface {
	SubscribeToUserTasks(ctx context.Context, ownerID string, callback func([]*model.Task)) *task.Subscription
}

// TaskSubscriberAdapter は task.Service を view.TaskSubscriber に適合させるアダプタ。
type TaskSubscriberAdapter struct {
	svc TaskStreamService
}

// NewTaskSubscriberAdapter はTaskSubscriberAdapterを生成する。
func NewTaskSubscriberAdapter(svc TaskStreamService) *TaskSubscriberAdapter {
	return &TaskSubscriberAdapter{svc: svc}
}

// SubscribeToUserTasks は購読を開始し、解除ハンドルをview側の型で返す。
func (a *TaskSubscriberAdapter) SubscribeToUserTasks(ctx context.Context, ownerID string, callback func([]*model.Task)) view.Subscription {
	return a.svc.SubscribeToUserTasks(ctx, ownerID, callback)
}

var _ view.TaskSubscriber = (*TaskSubscriberAdapter)(nil)
