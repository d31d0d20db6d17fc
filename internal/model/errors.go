// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: Category* 定数のいずれか
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryValidation = "validation"
	CategoryTask       = "task"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeTaskNotFound  = "TASK_NOT_FOUND"
	ErrCodeInvalidStatus = "INVALID_STATUS"
	ErrCodeInvalidTask   = "INVALID_TASK"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeCSRFRejected  = "CSRF_REJECTED"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
)

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 他ユーザーのタスクを指定した場合も同じエラーとなる。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: CategoryTask,
		Action:   "タスク一覧を再読み込みしてください。",
	}
}

// NewInvalidStatusError は無効なステータスエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: CategoryValidation,
		Action:   "ステータスには pending または completed を指定してください。",
	}
}

// NewInvalidTaskError はタスク内容が不正な場合のエラーを生成する。
func NewInvalidTaskError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTask,
		Message:  fmt.Sprintf("タスクの内容が不正です: %s", reason),
		Category: CategoryValidation,
		Action:   "タイトルを入力してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// 認証プロバイダーのエラーコード。
// 画面表示用メッセージへの変換はview層のテーブルで行う。
const (
	AuthCodeUserNotFound      = "auth/user-not-found"
	AuthCodeWrongPassword     = "auth/wrong-password"
	AuthCodeEmailAlreadyInUse = "auth/email-already-in-use"
	AuthCodeWeakPassword      = "auth/weak-password"
	AuthCodeInvalidEmail      = "auth/invalid-email"
	AuthCodeProfileNotFound   = "auth/profile-not-found"
	AuthCodeInternal          = "auth/internal-error"
)

// AuthError は認証プロバイダーが拒否した操作のエラーを表す。
type AuthError struct {
	Code    string
	Message string
	// MinLength はweak-passwordのとき、要求されたパスワードの最小文字数。
	MinLength int
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAuthError はAuthErrorを生成する。
func NewAuthError(code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// NewWeakPasswordError はパスワードが最小文字数に満たない場合のAuthErrorを生成する。
func NewWeakPasswordError(minLength int) *AuthError {
	return &AuthError{
		Code:      AuthCodeWeakPassword,
		Message:   fmt.Sprintf("password should be at least %d characters", minLength),
		MinLength: minLength,
	}
}
