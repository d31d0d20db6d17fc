package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/tablero/internal/auth"
	"github.com/hitoshi/tablero/internal/middleware"
	"github.com/hitoshi/tablero/internal/model"
)

func newTestAuthHandler(t *testing.T, svc AuthServiceInterface, collector *mockMetrics) *AuthHandler {
	t.Helper()
	return NewAuthHandler(svc, newTestRenderer(t), collector, AuthHandlerConfig{SessionMaxAge: 3600}, nil)
}

func formRequest(path string, values url.Values, script bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if script {
		req.Header.Set(fragmentHeader, "1")
	}
	return req
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login_Success_PlainForm(t *testing.T) {
	var gotEmail, gotPassword string
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*auth.SignIn, error) {
			gotEmail, gotPassword = email, password
			return testSignIn(), nil
		},
	}
	collector := &mockMetrics{}
	h := newTestAuthHandler(t, svc, collector)

	w := httptest.NewRecorder()
	h.Login(w, formRequest("/login", url.Values{"email": {"ana@example.com"}, "password": {"secret1"}}, false))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/tablero" {
		t.Errorf("Location = %q, want /tablero", loc)
	}
	if gotEmail != "ana@example.com" || gotPassword != "secret1" {
		t.Errorf("Login(%q, %q)", gotEmail, gotPassword)
	}

	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("session cookie should be set")
	}
	if cookie.Value != "session-123" || !cookie.HttpOnly || cookie.MaxAge != 3600 {
		t.Errorf("cookie = %+v", cookie)
	}
	if len(collector.authAttempts) != 1 || collector.authAttempts[0] != "login:success" {
		t.Errorf("auth attempts = %v", collector.authAttempts)
	}
}

func TestAuthHandler_Register_Success_ScriptSubmit(t *testing.T) {
	var gotUsername string
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password, username string) (*auth.SignIn, error) {
			gotUsername = username
			return testSignIn(), nil
		},
	}
	h := newTestAuthHandler(t, svc, &mockMetrics{})

	w := httptest.NewRecorder()
	h.Register(w, formRequest("/register", url.Values{
		"email": {"bea@example.com"}, "password": {"secret1"}, "username": {"Bea"},
	}, true))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if nav := w.Header().Get(navigateHeader); nav != "/tablero" {
		t.Errorf("%s = %q, want /tablero", navigateHeader, nav)
	}
	if gotUsername != "Bea" {
		t.Errorf("username = %q, want Bea", gotUsername)
	}
	if sessionCookie(w) == nil {
		t.Error("session cookie should be set")
	}
}

func TestAuthHandler_Failure_RerendersFormWithMappedMessage(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantText    string
		wantOutcome string
	}{
		{"wrong password", model.NewAuthError(model.AuthCodeWrongPassword, "x"), "Contraseña incorrecta", "login:auth/wrong-password"},
		{"user not found", model.NewAuthError(model.AuthCodeUserNotFound, "x"), "Usuario no encontrado", "login:auth/user-not-found"},
		{"profile missing", model.NewAuthError(model.AuthCodeProfileNotFound, "x"), "Error de autenticación. Intenta nuevamente.", "login:auth/profile-not-found"},
		{"unexpected", errors.New("db down"), "Error de autenticación. Intenta nuevamente.", "login:error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, email, password string) (*auth.SignIn, error) {
					return nil, tt.err
				},
			}
			collector := &mockMetrics{}
			h := newTestAuthHandler(t, svc, collector)

			w := httptest.NewRecorder()
			h.Login(w, formRequest("/login", url.Values{"email": {"ana@example.com"}, "password": {"bad"}}, true))

			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
			}
			body := w.Body.String()
			if !strings.Contains(body, tt.wantText) {
				t.Errorf("body should contain %q", tt.wantText)
			}
			if !strings.Contains(body, `value="ana@example.com"`) {
				t.Error("email should be kept in the re-rendered form")
			}
			if strings.Contains(body, "<html") {
				t.Error("script submission should receive a fragment")
			}
			if w.Header().Get(navigateHeader) != "" {
				t.Error("failure must not navigate")
			}
			if sessionCookie(w) != nil {
				t.Error("failure must not set a session cookie")
			}
			if len(collector.authAttempts) != 1 || collector.authAttempts[0] != tt.wantOutcome {
				t.Errorf("auth attempts = %v, want [%s]", collector.authAttempts, tt.wantOutcome)
			}
		})
	}
}

func TestAuthHandler_Register_WeakPassword_ShowsConfiguredLength(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, email, password, username string) (*auth.SignIn, error) {
			return nil, model.NewWeakPasswordError(8)
		},
	}
	h := newTestAuthHandler(t, svc, &mockMetrics{})

	w := httptest.NewRecorder()
	h.Register(w, formRequest("/register", url.Values{
		"email": {"bea@example.com"}, "password": {"1234567"}, "username": {"Bea"},
	}, true))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	body := w.Body.String()
	if !strings.Contains(body, "La contraseña debe tener al menos 8 caracteres") {
		t.Errorf("body should render the configured minimum length: %s", body)
	}
	if strings.Contains(body, "al menos 6 caracteres") {
		t.Error("body must not render the default length")
	}
}

func TestAuthHandler_Logout_ClearsCookieAndNavigates(t *testing.T) {
	var gotSession string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			gotSession = sessionID
			return nil
		},
	}
	h := newTestAuthHandler(t, svc, &mockMetrics{})

	req := formRequest("/logout", url.Values{}, true)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), "session-123", &model.User{ID: "user-123"}))
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if gotSession != "session-123" {
		t.Errorf("Logout(%q), want session-123", gotSession)
	}
	if w.Code != http.StatusNoContent || w.Header().Get(navigateHeader) != "/login" {
		t.Errorf("status = %d, navigate = %q", w.Code, w.Header().Get(navigateHeader))
	}
	cookie := sessionCookie(w)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Errorf("session cookie should be cleared, got %+v", cookie)
	}
}

func TestAuthHandler_Logout_ServiceErrorStillClearsCookie(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			return errors.New("db down")
		},
	}
	h := newTestAuthHandler(t, svc, &mockMetrics{})

	req := formRequest("/logout", url.Values{}, false)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "stale"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Errorf("status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
	if cookie := sessionCookie(w); cookie == nil || cookie.MaxAge >= 0 {
		t.Error("session cookie should be cleared")
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := newTestAuthHandler(t, &mockAuthService{}, &mockMetrics{})

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), "s", &model.User{ID: "u1", Email: "ana@example.com", Username: "Ana"}))
	w = httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["id"] != "u1" || body["email"] != "ana@example.com" || body["username"] != "Ana" {
		t.Errorf("body = %v", body)
	}
}
