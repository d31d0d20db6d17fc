package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/tablero/internal/auth"
	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/view"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, email, password, username string) (*auth.SignIn, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.SignIn, error)
	logoutFn   func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Register(ctx context.Context, email, password, username string) (*auth.SignIn, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password, username)
	}
	return testSignIn(), nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.SignIn, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return testSignIn(), nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func testSignIn() *auth.SignIn {
	return &auth.SignIn{
		Session: &model.Session{ID: "session-123", UserID: "user-123", ExpiresAt: time.Now().Add(time.Hour)},
		User:    &model.User{ID: "user-123", Email: "ana@example.com", Username: "Ana"},
	}
}

type mockTaskService struct {
	createTaskFn       func(ctx context.Context, title, description, ownerID string) (*model.Task, error)
	updateTaskStatusFn func(ctx context.Context, ownerID, taskID string, status model.TaskStatus) error
	deleteTaskFn       func(ctx context.Context, ownerID, taskID string) error
	getUserTasksFn     func(ctx context.Context, ownerID string) ([]*model.Task, error)
}

func (m *mockTaskService) CreateTask(ctx context.Context, title, description, ownerID string) (*model.Task, error) {
	if m.createTaskFn != nil {
		return m.createTaskFn(ctx, title, description, ownerID)
	}
	return &model.Task{ID: "task-1", Title: title, Status: model.TaskStatusPending, OwnerID: ownerID}, nil
}

func (m *mockTaskService) UpdateTaskStatus(ctx context.Context, ownerID, taskID string, status model.TaskStatus) error {
	if m.updateTaskStatusFn != nil {
		return m.updateTaskStatusFn(ctx, ownerID, taskID, status)
	}
	return nil
}

func (m *mockTaskService) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	if m.deleteTaskFn != nil {
		return m.deleteTaskFn(ctx, ownerID, taskID)
	}
	return nil
}

func (m *mockTaskService) GetUserTasks(ctx context.Context, ownerID string) ([]*model.Task, error) {
	if m.getUserTasksFn != nil {
		return m.getUserTasksFn(ctx, ownerID)
	}
	return []*model.Task{}, nil
}

// mockAuthChanges は登録されたコールバックを保持し、テストから遷移を発行できる。
type mockAuthChanges struct {
	mu        sync.Mutex
	callbacks map[int]func(auth.AuthChange)
	nextID    int
}

func newMockAuthChanges() *mockAuthChanges {
	return &mockAuthChanges{callbacks: make(map[int]func(auth.AuthChange))}
}

func (m *mockAuthChanges) OnAuthChange(callback func(auth.AuthChange)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.callbacks[id] = callback
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.callbacks, id)
	}
}

func (m *mockAuthChanges) publish(c auth.AuthChange) {
	m.mu.Lock()
	cbs := make([]func(auth.AuthChange), 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(c)
	}
}

func (m *mockAuthChanges) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callbacks)
}

// fakeSubscription は解除回数を数える。
type fakeSubscription struct {
	mu      sync.Mutex
	cancels int
}

func (s *fakeSubscription) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

func (s *fakeSubscription) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// fakeSubscriber は購読開始時に初期スナップショットを同期的に配信し、
// 以降はemitで任意のスナップショットを配信する。
type fakeSubscriber struct {
	initial []*model.Task

	mu       sync.Mutex
	ownerIDs []string
	callback func([]*model.Task)
	sub      *fakeSubscription
}

func (f *fakeSubscriber) SubscribeToUserTasks(ctx context.Context, ownerID string, callback func([]*model.Task)) view.Subscription {
	f.mu.Lock()
	f.ownerIDs = append(f.ownerIDs, ownerID)
	f.callback = callback
	f.sub = &fakeSubscription{}
	sub := f.sub
	f.mu.Unlock()

	callback(f.initial)
	return sub
}

func (f *fakeSubscriber) emit(tasks []*model.Task) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	cb(tasks)
}

func (f *fakeSubscriber) subscription() *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sub
}

type mockMetrics struct {
	mu           sync.Mutex
	authAttempts []string
	statuses     []int
}

func (m *mockMetrics) RecordAuthAttempt(kind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authAttempts = append(m.authAttempts, kind+":"+outcome)
}
func (m *mockMetrics) RecordTaskMutation(string, error)     {}
func (m *mockMetrics) RecordTaskQueryLatency(time.Duration) {}
func (m *mockMetrics) RecordSnapshot(int)                   {}
func (m *mockMetrics) RecordHTTPStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statusCode)
}
func (m *mockMetrics) RecordSessionsPurged(int64) {}

func newTestRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	r, err := view.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r
}

var (
	_ AuthServiceInterface = (*mockAuthService)(nil)
	_ TaskServiceInterface = (*mockTaskService)(nil)
	_ AuthChangeSource     = (*mockAuthChanges)(nil)
	_ view.TaskSubscriber  = (*fakeSubscriber)(nil)
)
