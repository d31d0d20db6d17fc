package view

import (
	"context"

	"github.com/hitoshi/tablero/internal/auth"
	"github.com/hitoshi/tablero/internal/shell"
)

// AuthGateway はフォームから利用する認証操作のインターフェース。
type AuthGateway interface {
	Register(ctx context.Context, email, password, username string) (*auth.SignIn, error)
	Login(ctx context.Context, email, password string) (*auth.SignIn, error)
}

// Credentials はフォームに入力された認証情報。
type Credentials struct {
	Email    string
	Password string
	Username string
}

// SubmitResult は送信結果。成功時はSignInとNavigateが設定される。
type SubmitResult struct {
	SignIn   *auth.SignIn
	Navigate string
	Err      error
}

// AuthForm はログイン/登録フォームの状態。
type AuthForm struct {
	Mode           shell.AuthMode
	ErrorText      string
	SubmitDisabled bool
	Email          string
	Username       string
}

// NewAuthForm は指定モードのフォームを生成する。
func NewAuthForm(mode shell.AuthMode) *AuthForm {
	return &AuthForm{Mode: mode}
}

// IsRegister は登録モードかどうかを返す。
func (f *AuthForm) IsRegister() bool {
	return f.Mode == shell.ModeRegister
}

// Action はフォームの送信先を返す。
func (f *AuthForm) Action() string {
	return f.Mode.Path()
}

// TogglePath は反対モードのルートを返す。
func (f *AuthForm) TogglePath() string {
	return f.Mode.Toggle().Path()
}

// Submit はモードに応じて登録またはログインを行う。
// 送信中は送信ボタンを無効化し、結果にかかわらず終了時に有効へ戻す。
// 失敗時はエラーコードを表示用の文言に変換してErrorTextに保持する。
func (f *AuthForm) Submit(ctx context.Context, gateway AuthGateway, creds Credentials) SubmitResult {
	f.SubmitDisabled = true
	defer func() { f.SubmitDisabled = false }()

	f.ErrorText = ""
	f.Email = creds.Email
	if f.IsRegister() {
		f.Username = creds.Username
	}

	var signIn *auth.SignIn
	var err error
	if f.IsRegister() {
		signIn, err = gateway.Register(ctx, creds.Email, creds.Password, creds.Username)
	} else {
		signIn, err = gateway.Login(ctx, creds.Email, creds.Password)
	}
	if err != nil {
		f.ErrorText = AuthErrorText(err)
		return SubmitResult{Err: err}
	}

	return SubmitResult{SignIn: signIn, Navigate: shell.PathBoard}
}
