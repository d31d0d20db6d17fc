// Package auth はメールアドレス+パスワード認証、セッション管理、認証状態の変化通知を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge     int // セッション有効期間（秒）
	PasswordMinLength int // パスワードの最小文字数
}

// SignIn はサインイン成功時に発行されたセッションとユーザーを表す。
type SignIn struct {
	Session *model.Session
	User    *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	hasher      PasswordHasher
	config      ServiceConfig
	changes     *changeBroker
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	hasher PasswordHasher,
	config ServiceConfig,
) *Service {
	if config.PasswordMinLength <= 0 {
		config.PasswordMinLength = 6
	}
	return &Service{
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		config:      config,
		changes:     newChangeBroker(),
	}
}

// Register は新規アカウントを作成し、そのままサインインする。
// 認証情報とプロフィールは同一トランザクションで作成される。
func (s *Service) Register(ctx context.Context, email, password, username string) (*SignIn, error) {
	// 1. 入力検証
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return nil, model.NewAuthError(model.AuthCodeInvalidEmail, "the email address is badly formatted")
	}
	if len([]rune(password)) < s.config.PasswordMinLength {
		return nil, model.NewWeakPasswordError(s.config.PasswordMinLength)
	}

	// 2. パスワードをハッシュ化
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 3. 認証情報とプロフィールを作成
	id := uuid.New().String()
	now := time.Now()
	user := &model.User{
		ID:        id,
		Email:     email,
		Username:  strings.TrimSpace(username),
		CreatedAt: now,
	}
	credential := &model.Credential{
		ID:           id,
		Provider:     model.ProviderPassword,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := s.userRepo.CreateWithCredential(ctx, user, credential); err != nil {
		if errors.Is(err, repository.ErrDuplicateCredential) {
			return nil, model.NewAuthError(model.AuthCodeEmailAlreadyInUse, "the email address is already in use by another account")
		}
		return nil, fmt.Errorf("failed to create user and credential: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("provider", model.ProviderPassword),
	)

	// 4. セッションを発行し、サインインを通知
	return s.signIn(ctx, user)
}

// Login は既存アカウントでサインインする。
// 認証情報が存在してもプロフィールが無い場合はauth/profile-not-foundを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*SignIn, error) {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return nil, model.NewAuthError(model.AuthCodeInvalidEmail, "the email address is badly formatted")
	}

	// 1. 認証情報を検索
	credential, err := s.identRepo.FindByEmail(ctx, model.ProviderPassword, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if credential == nil {
		return nil, model.NewAuthError(model.AuthCodeUserNotFound, "there is no user record corresponding to this identifier")
	}

	// 2. パスワードを照合
	if err := s.hasher.Compare(credential.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, model.NewAuthError(model.AuthCodeWrongPassword, "the password is invalid")
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	// 3. プロフィールを取得
	user, err := s.userRepo.FindByID(ctx, credential.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Warn("credential has no profile record", slog.String("user_id", credential.ID))
		return nil, model.NewAuthError(model.AuthCodeProfileNotFound, "user data not found")
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	// 4. セッションを発行し、サインインを通知
	return s.signIn(ctx, user)
}

// Logout はセッションを破棄し、サインアウトを通知する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	s.changes.publish(AuthChange{SessionID: sessionID})
	return nil
}

// GetCurrentUser はセッションに紐づく現在のユーザーを返す。
// 有効なセッションが無い場合はnil, nilを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// OnAuthChange は認証状態の遷移ごとに1回呼ばれるリスナーを登録する。
// 戻り値の関数で登録を解除する（複数回呼んでも安全）。
func (s *Service) OnAuthChange(callback func(AuthChange)) func() {
	return s.changes.subscribe(callback)
}

// ListenerCount は登録中の認証状態リスナー数を返す。
func (s *Service) ListenerCount() int {
	return s.changes.count()
}

// signIn はセッションを発行してサインインを通知する。
func (s *Service) signIn(ctx context.Context, user *model.User) (*SignIn, error) {
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.changes.publish(AuthChange{SessionID: session.ID, User: user})
	return &SignIn{Session: session, User: user}, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// validEmail は表示名を含まない単一のメールアドレスかどうかを判定する。
func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@")+1:], ".")
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
