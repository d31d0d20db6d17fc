// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーのプロフィールを表す。
// IDは認証情報（Credential）のIDと同一。
type User struct {
	ID        string
	Email     string
	Username  string
	CreatedAt time.Time
}

// Credential はパスワード認証プロバイダーが保持する認証情報を表す。
// プロフィール（User）とは独立して存在し得る。
type Credential struct {
	ID           string
	Provider     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// ProviderPassword はメールアドレス+パスワード認証のプロバイダー名。
const ProviderPassword = "password"

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
