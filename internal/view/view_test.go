package view

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/tablero/internal/auth"
	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/shell"
)

// --- テストヘルパー ---

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r
}

func parseHTML(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}
	return doc
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// findByID はid属性で要素を検索する。
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		if v, ok := attr(n, "id"); ok && v == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// taskIDsIn は要素配下のdata-task-idを出現順に返す。
func taskIDsIn(n *html.Node) []string {
	var ids []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if v, ok := attr(n, "data-task-id"); ok {
				ids = append(ids, v)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return ids
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// --- エラーメッセージ対応表 ---

func TestAuthErrorMessage(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{model.AuthCodeUserNotFound, "Usuario no encontrado"},
		{model.AuthCodeWrongPassword, "Contraseña incorrecta"},
		{model.AuthCodeEmailAlreadyInUse, "Este email ya está registrado"},
		{model.AuthCodeWeakPassword, "La contraseña debe tener al menos 6 caracteres"},
		{model.AuthCodeInvalidEmail, "Email inválido"},
		{model.AuthCodeProfileNotFound, DefaultAuthErrorText},
		{"auth/network-request-failed", DefaultAuthErrorText},
		{"", DefaultAuthErrorText},
	}

	for _, tt := range tests {
		if got := AuthErrorMessage(tt.code); got != tt.want {
			t.Errorf("AuthErrorMessage(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestAuthErrorText_WeakPasswordUsesMinLength(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"configured length", model.NewWeakPasswordError(8), "La contraseña debe tener al menos 8 caracteres"},
		{"wrapped", fmt.Errorf("register: %w", model.NewWeakPasswordError(12)), "La contraseña debe tener al menos 12 caracteres"},
		{"length unknown", model.NewAuthError(model.AuthCodeWeakPassword, "x"), "La contraseña debe tener al menos 6 caracteres"},
		{"other code", model.NewAuthError(model.AuthCodeInvalidEmail, "x"), "Email inválido"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthErrorText(tt.err); got != tt.want {
				t.Errorf("AuthErrorText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthErrorCode(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), model.NewAuthError(model.AuthCodeWrongPassword, "bad"))
	if got := AuthErrorCode(wrapped); got != model.AuthCodeWrongPassword {
		t.Errorf("AuthErrorCode(wrapped) = %q, want %q", got, model.AuthCodeWrongPassword)
	}
	if got := AuthErrorCode(errors.New("network down")); got != "" {
		t.Errorf("AuthErrorCode(plain) = %q, want empty", got)
	}
}

// --- リスト分割 ---

func TestSplitByStatus_PreservesOrder(t *testing.T) {
	tasks := []*model.Task{
		{ID: "1", Status: model.TaskStatusPending},
		{ID: "2", Status: model.TaskStatusCompleted},
		{ID: "3", Status: model.TaskStatusPending},
		{ID: "4", Status: model.TaskStatusCompleted},
	}

	lists := SplitByStatus(tasks)

	if got := ids(lists.Pending); got != "1,3" {
		t.Errorf("Pending = %s, want 1,3", got)
	}
	if got := ids(lists.Completed); got != "2,4" {
		t.Errorf("Completed = %s, want 2,4", got)
	}
}

func TestSplitByStatus_EmptyInputYieldsEmptyLists(t *testing.T) {
	lists := SplitByStatus(nil)
	if lists.Pending == nil || lists.Completed == nil {
		t.Error("lists should be empty, not nil")
	}
}

func ids(tasks []*model.Task) string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return strings.Join(out, ",")
}

// --- 認証フォーム ---

type mockGateway struct {
	registerFn func(ctx context.Context, email, password, username string) (*auth.SignIn, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.SignIn, error)
}

func (m *mockGateway) Register(ctx context.Context, email, password, username string) (*auth.SignIn, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password, username)
	}
	return &auth.SignIn{}, nil
}

func (m *mockGateway) Login(ctx context.Context, email, password string) (*auth.SignIn, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &auth.SignIn{}, nil
}

var _ AuthGateway = (*mockGateway)(nil)

func TestAuthForm_Submit_LoginSuccessNavigatesToBoard(t *testing.T) {
	form := NewAuthForm(shell.ModeLogin)
	form.ErrorText = "previous error"

	gw := &mockGateway{
		loginFn: func(ctx context.Context, email, password string) (*auth.SignIn, error) {
			if !form.SubmitDisabled {
				t.Error("submit control should be disabled while the request is in flight")
			}
			if form.ErrorText != "" {
				t.Error("previous error should be cleared before the request")
			}
			if email != "a@example.com" || password != "secret1" {
				t.Errorf("Login(%q, %q)", email, password)
			}
			return &auth.SignIn{User: &model.User{ID: "u1"}}, nil
		},
		registerFn: func(ctx context.Context, email, password, username string) (*auth.SignIn, error) {
			t.Fatal("Register must not be called in login mode")
			return nil, nil
		},
	}

	res := form.Submit(context.Background(), gw, Credentials{Email: "a@example.com", Password: "secret1"})

	if res.Err != nil {
		t.Fatalf("Submit() error = %v", res.Err)
	}
	if res.Navigate != "/tablero" {
		t.Errorf("Navigate = %q, want /tablero", res.Navigate)
	}
	if res.SignIn == nil || res.SignIn.User.ID != "u1" {
		t.Errorf("SignIn = %+v", res.SignIn)
	}
	if form.SubmitDisabled {
		t.Error("submit control should be re-enabled")
	}
}

func TestAuthForm_Submit_RegisterModeCallsRegister(t *testing.T) {
	form := NewAuthForm(shell.ModeRegister)
	var gotUsername string
	gw := &mockGateway{
		registerFn: func(ctx context.Context, email, password, username string) (*auth.SignIn, error) {
			gotUsername = username
			return &auth.SignIn{}, nil
		},
		loginFn: func(ctx context.Context, email, password string) (*auth.SignIn, error) {
			t.Fatal("Login must not be called in register mode")
			return nil, nil
		},
	}

	res := form.Submit(context.Background(), gw, Credentials{Email: "b@example.com", Password: "secret1", Username: "Bea"})

	if res.Err != nil || res.Navigate != "/tablero" {
		t.Errorf("Submit() = %+v, want success", res)
	}
	if gotUsername != "Bea" {
		t.Errorf("username = %q, want Bea", gotUsername)
	}
}

func TestAuthForm_Submit_FailureShowsMappedMessageAndReenables(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"wrong password", model.NewAuthError(model.AuthCodeWrongPassword, "x"), "Contraseña incorrecta"},
		{"profile missing", model.NewAuthError(model.AuthCodeProfileNotFound, "x"), DefaultAuthErrorText},
		{"network failure", errors.New("connection refused"), DefaultAuthErrorText},
		{"weak password uses configured length", model.NewWeakPasswordError(10), "La contraseña debe tener al menos 10 caracteres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := NewAuthForm(shell.ModeLogin)
			gw := &mockGateway{
				loginFn: func(ctx context.Context, email, password string) (*auth.SignIn, error) {
					return nil, tt.err
				},
			}

			res := form.Submit(context.Background(), gw, Credentials{Email: "c@example.com", Password: "p"})

			if res.Err == nil || res.Navigate != "" {
				t.Errorf("Submit() = %+v, want failure without navigation", res)
			}
			if form.ErrorText != tt.want {
				t.Errorf("ErrorText = %q, want %q", form.ErrorText, tt.want)
			}
			if form.SubmitDisabled {
				t.Error("submit control should be re-enabled after failure")
			}
			if form.Email != "c@example.com" {
				t.Errorf("Email = %q, should be kept for re-render", form.Email)
			}
		})
	}
}

func TestAuthForm_ToggleAndAction(t *testing.T) {
	login := NewAuthForm(shell.ModeLogin)
	if login.TogglePath() != "/register" || login.Action() != "/login" {
		t.Errorf("login form toggle=%q action=%q", login.TogglePath(), login.Action())
	}
	register := NewAuthForm(shell.ModeRegister)
	if register.TogglePath() != "/login" || register.Action() != "/register" {
		t.Errorf("register form toggle=%q action=%q", register.TogglePath(), register.Action())
	}
}

// --- ボードのライフサイクル ---

type mockSubscription struct {
	cancels int
}

func (m *mockSubscription) Cancel() { m.cancels++ }

type mockSubscriber struct {
	calls    int
	ownerID  string
	callback func([]*model.Task)
	sub      *mockSubscription
}

func (m *mockSubscriber) SubscribeToUserTasks(ctx context.Context, ownerID string, callback func([]*model.Task)) Subscription {
	m.calls++
	m.ownerID = ownerID
	m.callback = callback
	m.sub = &mockSubscription{}
	return m.sub
}

type recordingSink struct {
	shells int
	lists  []TaskLists
}

func (s *recordingSink) RenderShell(user *model.User) error {
	s.shells++
	return nil
}

func (s *recordingSink) RenderLists(lists TaskLists) {
	s.lists = append(s.lists, lists)
}

func TestBoard_ActivateWithoutUserNavigatesToLogin(t *testing.T) {
	subscriber := &mockSubscriber{}
	sink := &recordingSink{}
	board := NewBoard(subscriber, sink)

	target, err := board.Activate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if target != "/login" {
		t.Errorf("target = %q, want /login", target)
	}
	if sink.shells != 0 || subscriber.calls != 0 {
		t.Errorf("nothing should be rendered or subscribed (shells=%d, subs=%d)", sink.shells, subscriber.calls)
	}
	board.Teardown()
}

func TestBoard_ActivateSubscribesOnceAndForwardsSnapshots(t *testing.T) {
	subscriber := &mockSubscriber{}
	sink := &recordingSink{}
	board := NewBoard(subscriber, sink)
	user := &model.User{ID: "user-1"}

	if target, err := board.Activate(context.Background(), user); err != nil || target != "" {
		t.Fatalf("Activate() = (%q, %v)", target, err)
	}
	if _, err := board.Activate(context.Background(), user); err != nil {
		t.Fatalf("second Activate() error = %v", err)
	}

	if sink.shells != 1 {
		t.Errorf("shell rendered %d times, want 1", sink.shells)
	}
	if subscriber.calls != 1 || subscriber.ownerID != "user-1" {
		t.Fatalf("subscriptions = %d for %q, want 1 for user-1", subscriber.calls, subscriber.ownerID)
	}

	subscriber.callback([]*model.Task{
		{ID: "p", Status: model.TaskStatusPending},
		{ID: "c", Status: model.TaskStatusCompleted},
	})
	subscriber.callback([]*model.Task{})

	if len(sink.lists) != 2 {
		t.Fatalf("lists rendered %d times, want 2", len(sink.lists))
	}
	if ids(sink.lists[0].Pending) != "p" || ids(sink.lists[0].Completed) != "c" {
		t.Errorf("first render = %+v", sink.lists[0])
	}
	if len(sink.lists[1].Pending) != 0 || len(sink.lists[1].Completed) != 0 {
		t.Error("empty snapshot should clear both lists")
	}
}

func TestBoard_TeardownCancelsExactlyOnce(t *testing.T) {
	subscriber := &mockSubscriber{}
	board := NewBoard(subscriber, &recordingSink{})

	if _, err := board.Activate(context.Background(), &model.User{ID: "u"}); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	board.Teardown()
	board.Teardown()

	if subscriber.sub.cancels != 1 {
		t.Errorf("Cancel called %d times, want 1", subscriber.sub.cancels)
	}
}

func TestBoard_ActivateAfterTeardownDoesNothing(t *testing.T) {
	subscriber := &mockSubscriber{}
	board := NewBoard(subscriber, &recordingSink{})

	board.Teardown()
	if _, err := board.Activate(context.Background(), &model.User{ID: "u"}); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if subscriber.calls != 0 {
		t.Error("no subscription should be opened after teardown")
	}
}

// --- 描画 ---

func sampleLists() TaskLists {
	created := time.Date(2026, 2, 3, 4, 5, 0, 0, time.UTC)
	return SplitByStatus([]*model.Task{
		{ID: "t1", Title: "Primera", Status: model.TaskStatusPending, CreatedAt: created},
		{ID: "t2", Title: "Segunda", Status: model.TaskStatusCompleted},
		{ID: "t3", Title: "<script>alert(1)</script>", Status: model.TaskStatusPending},
	})
}

func TestRenderTaskLists_SegmentsAndEscapes(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	if err := r.RenderTaskLists(&buf, sampleLists()); err != nil {
		t.Fatalf("RenderTaskLists() error = %v", err)
	}

	doc := parseHTML(t, buf.String())
	pending := findByID(doc, "pending-list")
	completed := findByID(doc, "completed-list")
	if pending == nil || completed == nil {
		t.Fatal("both lists should be rendered")
	}
	if got := strings.Join(taskIDsIn(pending), ","); got != "t1,t3" {
		t.Errorf("pending list = %s, want t1,t3", got)
	}
	if got := strings.Join(taskIDsIn(completed), ","); got != "t2" {
		t.Errorf("completed list = %s, want t2", got)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("task title must be HTML-escaped")
	}
}

func TestRenderTaskLists_IdempotentFullReplace(t *testing.T) {
	r := newTestRenderer(t)

	var first, second bytes.Buffer
	if err := r.RenderTaskLists(&first, sampleLists()); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderTaskLists(&second, sampleLists()); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Error("rendering the same snapshot twice should produce identical output")
	}
}

func TestRenderTaskLists_EmptyShowsPlaceholders(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	if err := r.RenderTaskLists(&buf, SplitByStatus(nil)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No hay tareas pendientes") || !strings.Contains(buf.String(), "No hay tareas completadas") {
		t.Error("empty lists should show placeholders")
	}
}

func TestRenderPage_AuthFormWithError(t *testing.T) {
	r := newTestRenderer(t)
	form := NewAuthForm(shell.ModeRegister)
	form.ErrorText = "Email inválido"

	page := NewPage(shell.AuthFormView{Mode: shell.ModeRegister}, "/register", form)
	page.CSRFToken = "tok"

	var buf bytes.Buffer
	if err := r.RenderPage(&buf, page); err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}
	doc := parseHTML(t, buf.String())

	errDiv := findByID(doc, "error-message")
	if errDiv == nil || textContent(errDiv) != "Email inválido" {
		t.Errorf("error message not rendered")
	}
	if _, hidden := attr(errDiv, "hidden"); hidden {
		t.Error("error message with text should be visible")
	}
	if findByID(doc, "username") == nil {
		t.Error("register mode should include the username field")
	}
	toggle := findByID(doc, "toggle-mode")
	if href, _ := attr(toggle, "href"); href != "/login" {
		t.Errorf("toggle href = %q, want /login", href)
	}
	submit := findByID(doc, "submit-btn")
	if _, disabled := attr(submit, "disabled"); disabled {
		t.Error("submit button should be enabled in the rendered form")
	}
	if !strings.Contains(buf.String(), `name="csrf_token" value="tok"`) {
		t.Error("form should carry the CSRF token")
	}
}

func TestRenderPage_LoginFormHasNoUsernameField(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	if err := r.RenderPage(&buf, NewPage(shell.AuthFormView{Mode: shell.ModeLogin}, "/login", nil)); err != nil {
		t.Fatal(err)
	}
	doc := parseHTML(t, buf.String())
	if findByID(doc, "username") != nil {
		t.Error("login mode should not include the username field")
	}
	if errDiv := findByID(doc, "error-message"); errDiv != nil {
		if _, hidden := attr(errDiv, "hidden"); !hidden {
			t.Error("empty error message should be hidden")
		}
	}
}

func TestRenderPage_PushPathAttribute(t *testing.T) {
	r := newTestRenderer(t)
	page := NewPage(shell.AuthFormView{Mode: shell.ModeLogin}, "/tablero", nil)
	page.PushPath = "/login"

	var buf bytes.Buffer
	if err := r.RenderPage(&buf, page); err != nil {
		t.Fatal(err)
	}
	content := findByID(parseHTML(t, buf.String()), "content")
	if v, _ := attr(content, "data-push-path"); v != "/login" {
		t.Errorf("data-push-path = %q, want /login", v)
	}
}

func TestRenderContent_BoardFragment(t *testing.T) {
	r := newTestRenderer(t)
	page := NewPage(shell.BoardView{}, "/tablero", nil)
	page.User = &model.User{ID: "u", Email: "ana@example.com", Username: "Ana"}
	page.Lists = sampleLists()

	var buf bytes.Buffer
	if err := r.RenderContent(&buf, page); err != nil {
		t.Fatalf("RenderContent() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<html") {
		t.Error("fragment must not include the layout")
	}
	if !strings.Contains(out, "Bienvenido, ana@example.com") {
		t.Error("board should greet the user")
	}
	if !strings.Contains(out, `data-stream="/tablero/stream?from=/tablero"`) {
		t.Error("board should declare its live stream")
	}
}

func TestRenderContent_NotFound(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	if err := r.RenderContent(&buf, NewPage(shell.NotFoundView{}, "/nope", nil)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Página no encontrada") {
		t.Error("not-found view should be rendered")
	}
}

func TestStaticHandler_ServesShellScript(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/static/shell.js", nil)
	w := httptest.NewRecorder()

	StaticHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "EventSource") {
		t.Error("shell.js should open the live stream")
	}
	if !strings.Contains(w.Body.String(), `addEventListener("close"`) {
		t.Error("shell.js should stop the stream on a close event")
	}
}
