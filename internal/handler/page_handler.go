package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tablero/internal/middleware"
	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/shell"
	"github.com/hitoshi/tablero/internal/view"
)

const (
	// fragmentHeader が "1" のリクエストにはコンテンツ領域の断片のみを返す。
	fragmentHeader = "X-Shell-Fragment"
	// pushHeader は表示後に履歴上のパスを置き換える先を示す。
	pushHeader = "X-Shell-Push"
	// navigateHeader はスクリプトからの送信が成功した後の遷移先を示す。
	navigateHeader = "X-Shell-Navigate"
)

// TaskLister はボードの初期表示に使うタスク取得インターフェース。
type TaskLister interface {
	GetUserTasks(ctx context.Context, ownerID string) ([]*model.Task, error)
}

// PageRenderer はページ描画のインターフェース。
type PageRenderer interface {
	RenderPage(w io.Writer, page view.Page) error
	RenderContent(w io.Writer, page view.Page) error
}

// PageHandler はURLパスからビューを解決してHTMLを返すシェルのハンドラー。
type PageHandler struct {
	renderer PageRenderer
	tasks    TaskLister
	logger   *slog.Logger
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer PageRenderer, tasks TaskLister, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{renderer: renderer, tasks: tasks, logger: logger}
}

// ServeHTTP はパスと認証状態からビューを1つ決定して描画する。
// GET /*
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	// 1. ビューの解決
	res := shell.Resolve(r.URL.Path, user != nil)

	// 2. 描画データの構築
	page := view.NewPage(res.View, r.URL.Path, nil)
	page.CSRFToken = middleware.CSRFTokenFromContext(r.Context())
	page.User = user
	if res.Redirect != "" {
		page.PushPath = res.Redirect
		w.Header().Set(pushHeader, res.Redirect)
	}
	if _, ok := res.View.(shell.BoardView); ok {
		page.Lists = h.initialLists(r.Context(), user.ID)
	}

	status := http.StatusOK
	if _, ok := res.View.(shell.NotFoundView); ok {
		status = http.StatusNotFound
	}

	writePage(w, r, h.renderer, h.logger, status, page)
}

// initialLists はボードの初期表示用リストを返す。取得に失敗した場合は空。
// 以降の更新はライブストリームが全置換で行う。
func (h *PageHandler) initialLists(ctx context.Context, ownerID string) view.TaskLists {
	tasks, err := h.tasks.GetUserTasks(ctx, ownerID)
	if err != nil {
		h.logger.Error("failed to load initial tasks",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return view.SplitByStatus(nil)
	}
	return view.SplitByStatus(tasks)
}

// writePage はフラグメント要求ならコンテンツ断片、そうでなければページ全体を描画して書き込む。
func writePage(w http.ResponseWriter, r *http.Request, renderer PageRenderer, logger *slog.Logger, status int, page view.Page) {
	var buf bytes.Buffer
	var err error
	if isFragmentRequest(r) {
		err = renderer.RenderContent(&buf, page)
	} else {
		err = renderer.RenderPage(&buf, page)
	}
	if err != nil {
		logger.Error("failed to render page",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Add("Vary", fragmentHeader)
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func isFragmentRequest(r *http.Request) bool {
	return r.Header.Get(fragmentHeader) == "1"
}
