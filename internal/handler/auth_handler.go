// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tablero/internal/auth"
	"github.com/hitoshi/tablero/internal/metrics"
	"github.com/hitoshi/tablero/internal/middleware"
	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/shell"
	"github.com/hitoshi/tablero/internal/view"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	view.AuthGateway
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はログイン・登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer PageRenderer
	metrics  metrics.MetricsCollector
	config   AuthHandlerConfig
	logger   *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	renderer PageRenderer,
	collector metrics.MetricsCollector,
	config AuthHandlerConfig,
	logger *slog.Logger,
) *AuthHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:  service,
		renderer: renderer,
		metrics:  collector,
		config:   config,
		logger:   logger,
	}
}

// Login はログインフォームの送信を処理する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, shell.ModeLogin)
}

// Register は登録フォームの送信を処理する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, shell.ModeRegister)
}

// submit はフォームを送信し、成功時はセッションCookieを設定してボードへ遷移させる。
// 失敗時は対応表の文言を表示したフォームを422で再描画する。
func (h *AuthHandler) submit(w http.ResponseWriter, r *http.Request, mode shell.AuthMode) {
	// 1. フォームの読み取り
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	creds := view.Credentials{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Username: r.PostFormValue("username"),
	}

	// 2. 送信
	form := view.NewAuthForm(mode)
	result := form.Submit(r.Context(), h.service, creds)

	// 3. 失敗時はフォームを再描画
	if result.Err != nil {
		code := view.AuthErrorCode(result.Err)
		outcome := code
		if outcome == "" {
			outcome = "error"
			h.logger.Error("auth submit failed",
				slog.String("mode", mode.String()),
				slog.String("error", result.Err.Error()),
			)
		} else {
			h.logger.Warn("auth submit rejected",
				slog.String("mode", mode.String()),
				slog.String("code", code),
			)
		}
		h.metrics.RecordAuthAttempt(mode.String(), outcome)

		page := view.NewPage(shell.AuthFormView{Mode: mode}, mode.Path(), form)
		page.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
		writePage(w, r, h.renderer, h.logger, http.StatusUnprocessableEntity, page)
		return
	}

	// 4. 成功時はセッションCookieを設定して遷移
	h.metrics.RecordAuthAttempt(mode.String(), "success")
	h.setSessionCookie(w, result.SignIn.Session.ID, h.config.SessionMaxAge)
	h.logger.Info("user signed in",
		slog.String("mode", mode.String()),
		slog.String("user_id", result.SignIn.User.ID),
	)
	h.navigate(w, r, result.Navigate)
}

// Logout はセッションを破棄してログインへ遷移させる。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
			sessionID = cookie.Value
		}
	}
	if sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			// ログアウト失敗してもCookieはクリアする
			h.logger.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.setSessionCookie(w, "", -1)
	h.navigate(w, r, shell.PathLogin)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
	})
}

// navigate はスクリプトからの送信には204とX-Shell-Navigateで、
// 通常のフォーム送信には303リダイレクトで遷移先を伝える。
func (h *AuthHandler) navigate(w http.ResponseWriter, r *http.Request, target string) {
	if isFragmentRequest(r) {
		w.Header().Set(navigateHeader, target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// setSessionCookie はHTTP OnlyのセッションCookieを設定する。maxAgeが負の場合は削除する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

var _ AuthServiceInterface = (*auth.Service)(nil)
