package model

import "time"

// TaskStatus はタスクの状態を表す。
type TaskStatus string

const (
	// TaskStatusPending は未完了のタスク。
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusCompleted は完了済みのタスク。
	TaskStatusCompleted TaskStatus = "completed"
)

// Valid はステータスが定義済みの値かどうかを返す。
func (s TaskStatus) Valid() bool {
	return s == TaskStatusPending || s == TaskStatusCompleted
}

// Task はユーザーが所有するタスクを表す。
// CreatedAt/UpdatedAtがゼロ値の場合は日時不明として扱う。
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
