// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/tablero/internal/model"
)

// ErrNotFound は更新・削除対象のレコードが存在しない（または所有者が異なる）ことを表す。
var ErrNotFound = errors.New("record not found")

// ErrDuplicateCredential は同一プロバイダー・メールアドレスの認証情報が既に存在することを表す。
var ErrDuplicateCredential = errors.New("credential already exists")

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithCredential は認証情報とプロフィールを同一トランザクションで作成する。
	// メールアドレスが登録済みの場合はErrDuplicateCredentialを返す。
	CreateWithCredential(ctx context.Context, user *model.User, credential *model.Credential) error
}

// IdentityRepository は認証情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByEmail はproviderとemailで認証情報を検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, provider, email string) (*model.Credential, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TaskRepository はタスクの永続化インターフェース。
// すべての読み書きはowner_idで絞り込まれる。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// UpdateStatus は所有者のタスクのステータスとupdated_atを更新する。
	// 対象が存在しない場合はErrNotFoundを返す。
	UpdateStatus(ctx context.Context, ownerID, taskID string, status model.TaskStatus, updatedAt time.Time) error

	// Delete は所有者のタスクを削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, ownerID, taskID string) error

	// ListByOwner は所有者の全タスクを返す。並び順は保証しない。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Task, error)
}
