// Package view はHTMLビューの描画と、認証フォーム・タスクボードの画面上の振る舞いを提供する。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/hitoshi/tablero/internal/model"
	"github.com/hitoshi/tablero/internal/shell"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// ページ種別。
const (
	KindBoard    = "board"
	KindAuth     = "auth"
	KindNotFound = "not_found"
)

// Page はレイアウト全体またはコンテンツ断片の描画に渡すデータ。
type Page struct {
	Kind      string
	Title     string
	Path      string
	PushPath  string
	CSRFToken string
	User      *model.User
	Form      *AuthForm
	Lists     TaskLists
}

// NewPage はビュー記述子から描画データを生成する。
// AuthFormViewの場合はformがnilなら新しいフォームを使う。
func NewPage(v shell.View, path string, form *AuthForm) Page {
	switch v := v.(type) {
	case shell.BoardView:
		return Page{Kind: KindBoard, Title: "Mis tareas", Path: path, Lists: SplitByStatus(nil)}
	case shell.AuthFormView:
		if form == nil || form.Mode != v.Mode {
			form = NewAuthForm(v.Mode)
		}
		title := "Iniciar Sesión"
		if v.Mode == shell.ModeRegister {
			title = "Registro"
		}
		return Page{Kind: KindAuth, Title: title, Path: path, Form: form}
	default:
		return Page{Kind: KindNotFound, Title: "Página no encontrada", Path: path}
	}
}

// Renderer は埋め込みテンプレートを使ってHTMLを描画する。
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer はテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// RenderPage はレイアウトを含むページ全体を描画する。
func (r *Renderer) RenderPage(w io.Writer, page Page) error {
	return r.execute(w, "layout", page)
}

// RenderContent はコンテンツ領域の断片のみを描画する。
func (r *Renderer) RenderContent(w io.Writer, page Page) error {
	return r.execute(w, "content", page)
}

// RenderTaskLists は未完了・完了の両リストを描画する。
func (r *Renderer) RenderTaskLists(w io.Writer, lists TaskLists) error {
	return r.execute(w, "task_lists", lists)
}

func (r *Renderer) execute(w io.Writer, name string, data any) error {
	if err := r.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

// StaticHandler は埋め込み静的ファイル（shell.js, app.css）を配信するハンドラーを返す。
// /static/ プレフィックスを付けてマウントする。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded static files missing: %v", err))
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
