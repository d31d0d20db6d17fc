package handler

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/tablero/internal/auth"
	"github.com/hitoshi/tablero/internal/middleware"
	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/shell"
	"github.com/hitoshi/tablero/internal/view"
)

// AuthChangeSource は認証状態の変化を購読するインターフェース。
type AuthChangeSource interface {
	OnAuthChange(callback func(auth.AuthChange)) func()
}

// ListRenderer はタスクリストの描画インターフェース。
type ListRenderer interface {
	RenderTaskLists(w io.Writer, lists view.TaskLists) error
}

// StreamHandler はタスクボードのライブ更新をServer-Sent Eventsで配信する。
// イベント "tasks" は両リストのHTML断片、"navigate" は遷移先のパス、
// "close" は遷移せずに購読だけを終えることを表す。
type StreamHandler struct {
	subscriber view.TaskSubscriber
	authSource AuthChangeSource
	renderer   ListRenderer
	keepAlive  time.Duration
	closing    <-chan struct{}
	logger     *slog.Logger
}

// NewStreamHandler はStreamHandlerを生成する。
// closingが閉じられると配信中のストリームはすべて終了する。nilなら接続が切れるまで続く。
func NewStreamHandler(
	subscriber view.TaskSubscriber,
	authSource AuthChangeSource,
	renderer ListRenderer,
	keepAlive time.Duration,
	closing <-chan struct{},
	logger *slog.Logger,
) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		subscriber: subscriber,
		authSource: authSource,
		renderer:   renderer,
		keepAlive:  keepAlive,
		closing:    closing,
		logger:     logger,
	}
}

// ServeHTTP はボードを有効化し、接続が切れるかサインアウトするまでスナップショットを配信する。
// GET /tablero/stream?from=<ボードを表示しているパス>
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	user := middleware.UserFromContext(ctx)
	sessionID := middleware.SessionIDFromContext(ctx)
	from := boardOrigin(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// 1. このセッションの認証状態の変化を購読（ボード有効化より先に行う）
	changes := make(chan auth.AuthChange, 1)
	unsubscribe := h.authSource.OnAuthChange(func(c auth.AuthChange) {
		if c.SessionID != sessionID {
			return
		}
		select {
		case changes <- c:
		default:
		}
	})
	defer unsubscribe()

	// 2. ボードの有効化
	sink := newStreamSink(h.renderer, h.logger)
	board := view.NewBoard(h.subscriber, sink)
	defer board.Teardown()

	target, err := board.Activate(ctx, user)
	if err != nil {
		h.logger.Error("failed to activate board", slog.String("error", err.Error()))
		return
	}
	if target != "" {
		writeEvent(w, "navigate", target)
		flusher.Flush()
		return
	}
	flusher.Flush()

	h.logger.Debug("board stream opened", slog.String("user_id", user.ID))

	// 3. 配信ループ
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("board stream closed", slog.String("user_id", user.ID))
			return
		case <-h.closing:
			h.logger.Debug("board stream closed by shutdown", slog.String("user_id", user.ID))
			return
		case html := <-sink.latest:
			if err := writeEvent(w, "tasks", html); err != nil {
				return
			}
			flusher.Flush()
		case c := <-changes:
			if next, ok := shell.ReactToAuthChange(c.SignedIn(), from); ok {
				writeEvent(w, "navigate", next)
				flusher.Flush()
				return
			}
			// 遷移しないパスでもサインアウト後は配信を止める
			if !c.SignedIn() {
				writeEvent(w, "close", "")
				flusher.Flush()
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// boardOrigin はストリームを開いたボードのパスを返す。
// ボードを表示するのは / と /tablero だけなので、それ以外の値は /tablero として扱う。
func boardOrigin(r *http.Request) string {
	if r.URL.Query().Get("from") == shell.PathRoot {
		return shell.PathRoot
	}
	return shell.PathBoard
}

// streamSink はボードの描画結果を最新の1件だけ保持して配信ループへ渡す。
// 古いスナップショットは全置換で上書きされるため破棄してよい。
type streamSink struct {
	renderer ListRenderer
	logger   *slog.Logger
	latest   chan string
}

func newStreamSink(renderer ListRenderer, logger *slog.Logger) *streamSink {
	return &streamSink{renderer: renderer, logger: logger, latest: make(chan string, 1)}
}

// RenderShell はページハンドラーが描画済みのため何もしない。
func (s *streamSink) RenderShell(user *model.User) error {
	return nil
}

// RenderLists は両リストを描画して最新スナップショットとして保持する。
func (s *streamSink) RenderLists(lists view.TaskLists) {
	var buf bytes.Buffer
	if err := s.renderer.RenderTaskLists(&buf, lists); err != nil {
		s.logger.Error("failed to render task lists", slog.String("error", err.Error()))
		return
	}

	// 購読のgoroutineだけが送信するため、空けてから入れれば必ず入る
	select {
	case <-s.latest:
	default:
	}
	s.latest <- buf.String()
}

// writeEvent はSSEのイベントを1件書き込む。複数行のデータは行ごとにdata:を付ける。
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

