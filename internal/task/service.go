// Package task はユーザーごとのタスクの作成・更新・削除・取得とライブ購読を提供する。
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/tablero/internal/livequery"
	"github.com/hitoshi/tablero/internal/metrics"
	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/repository"
	"github.com/hitoshi/tablero/internal/security"
)

const (
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 200
	// MaxDescriptionLength は説明の最大文字数。
	MaxDescriptionLength = 2000
)

// ChangeNotifier は所有者単位の変更シグナルの購読と発行を行うインターフェース。
type ChangeNotifier interface {
	Subscribe(ownerID string) *livequery.Listener
	Publish(ownerID string)
}

// Service はタスクに関するビジネスロジックを提供する。
// 全ての操作は所有者IDで絞り込まれる。
type Service struct {
	repo      repository.TaskRepository
	notifier  ChangeNotifier
	sanitizer security.TextSanitizerService
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	repo repository.TaskRepository,
	notifier ChangeNotifier,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		notifier:  notifier,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateTask は未完了のタスクを作成する。作成日時と更新日時は現在時刻。
func (s *Service) CreateTask(ctx context.Context, title, description, ownerID string) (*model.Task, error) {
	if ownerID == "" {
		return nil, model.NewUnauthorizedError()
	}

	// 1. 入力のサニタイズと検証
	title = s.sanitizer.Sanitize(title)
	description = s.sanitizer.Sanitize(description)
	if title == "" {
		return nil, model.NewInvalidTaskError("タイトルは必須です")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, model.NewInvalidTaskError(fmt.Sprintf("タイトルは%d文字以内で入力してください", MaxTitleLength))
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, model.NewInvalidTaskError(fmt.Sprintf("説明は%d文字以内で入力してください", MaxDescriptionLength))
	}

	// 2. 永続化
	now := s.now()
	task := &model.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Status:      model.TaskStatusPending,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, s.mutationFailed("create", ownerID, task.ID, err)
	}

	// 3. 購読者へ通知
	s.mutated("create", ownerID, task.ID)
	return task, nil
}

// UpdateTaskStatus はタスクのステータスを変更し、更新日時を現在時刻にする。
// 存在しないタスクや他ユーザーのタスクはTASK_NOT_FOUNDとなる。
func (s *Service) UpdateTaskStatus(ctx context.Context, ownerID, taskID string, status model.TaskStatus) error {
	if ownerID == "" {
		return model.NewUnauthorizedError()
	}
	if !status.Valid() {
		return model.NewInvalidStatusError(string(status))
	}
	// UUIDとして解釈できないIDは存在しないタスクと同じ扱い
	if uuid.Validate(taskID) != nil {
		return model.NewTaskNotFoundError(taskID)
	}

	if err := s.repo.UpdateStatus(ctx, ownerID, taskID, status, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordTaskMutation("update_status", err)
			return model.NewTaskNotFoundError(taskID)
		}
		return s.mutationFailed("update_status", ownerID, taskID, err)
	}

	s.mutated("update_status", ownerID, taskID)
	return nil
}

// DeleteTask はタスクを削除する。
// 存在しないタスクや他ユーザーのタスクはTASK_NOT_FOUNDとなる。
func (s *Service) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	if ownerID == "" {
		return model.NewUnauthorizedError()
	}
	if uuid.Validate(taskID) != nil {
		return model.NewTaskNotFoundError(taskID)
	}

	if err := s.repo.Delete(ctx, ownerID, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordTaskMutation("delete", err)
			return model.NewTaskNotFoundError(taskID)
		}
		return s.mutationFailed("delete", ownerID, taskID, err)
	}

	s.mutated("delete", ownerID, taskID)
	return nil
}

// GetUserTasks は所有者の全タスクを新しい順で返す。
// タスクが無い場合は空のスライスを返す。
func (s *Service) GetUserTasks(ctx context.Context, ownerID string) ([]*model.Task, error) {
	start := time.Now()
	tasks, err := s.repo.ListByOwner(ctx, ownerID)
	s.metrics.RecordTaskQueryLatency(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to get user tasks: %w", err)
	}

	if tasks == nil {
		tasks = []*model.Task{}
	}
	SortNewestFirst(tasks)
	return tasks, nil
}

// SubscribeToUserTasks は所有者のタスク集合のライブ購読を開始する。
// 開始時に1回、以降は変更のたびに、並べ替え済みの全件でcallbackを呼び出す。
// 取得に失敗した場合はエラーを伝播せず、空の集合でcallbackを呼び出す。
// ctxがキャンセルされるかSubscription.Cancelが呼ばれると終了する。
func (s *Service) SubscribeToUserTasks(ctx context.Context, ownerID string, callback func([]*model.Task)) *Subscription {
	// 初回取得より前に購読し、その間の変更を取りこぼさない
	listener := s.notifier.Subscribe(ownerID)
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	s.logger.Debug("task subscription opened", slog.String("owner_id", ownerID))

	go func() {
		defer close(sub.done)
		defer listener.Close()

		s.emit(ctx, ownerID, sub, callback)
		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("task subscription closed", slog.String("owner_id", ownerID))
				return
			case _, ok := <-listener.C():
				if !ok {
					return
				}
				s.emit(ctx, ownerID, sub, callback)
			}
		}
	}()

	return sub
}

// emit は現在の全件を取得してcallbackへ渡す。
func (s *Service) emit(ctx context.Context, ownerID string, sub *Subscription, callback func([]*model.Task)) {
	tasks, err := s.GetUserTasks(ctx, ownerID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("task subscription query failed",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		tasks = []*model.Task{}
	}

	if sub.deliver(tasks, callback) {
		s.metrics.RecordSnapshot(len(tasks))
	}
}

// mutated は変更成功を記録し、同一プロセス内の購読者へ通知する。
// LISTEN経由の通知と重複しても購読側で1回にまとめられる。
func (s *Service) mutated(op, ownerID, taskID string) {
	s.metrics.RecordTaskMutation(op, nil)
	s.logger.Info("task mutated",
		slog.String("op", op),
		slog.String("owner_id", ownerID),
		slog.String("task_id", taskID),
	)
	s.notifier.Publish(ownerID)
}

// mutationFailed は変更失敗をログに記録し、ラップしたエラーを返す。再試行はしない。
func (s *Service) mutationFailed(op, ownerID, taskID string, err error) error {
	s.metrics.RecordTaskMutation(op, err)
	s.logger.Error("task mutation failed",
		slog.String("op", op),
		slog.String("owner_id", ownerID),
		slog.String("task_id", taskID),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("failed to %s task: %w", op, err)
}
