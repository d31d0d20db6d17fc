// Package shell はURLパスと認証状態から表示するビューを決定する。
// ビューの描画やHTTPの扱いは含まない。
package shell

// 既知のルート。
const (
	PathRoot     = "/"
	PathLogin    = "/login"
	PathRegister = "/register"
	PathBoard    = "/tablero"
)

// AuthMode は認証フォームのモード。
type AuthMode int

const (
	ModeLogin AuthMode = iota
	ModeRegister
)

// String はモード名を返す。
func (m AuthMode) String() string {
	if m == ModeRegister {
		return "register"
	}
	return "login"
}

// Path はモードに対応するルートを返す。
func (m AuthMode) Path() string {
	if m == ModeRegister {
		return PathRegister
	}
	return PathLogin
}

// Toggle は反対のモードを返す。
func (m AuthMode) Toggle() AuthMode {
	if m == ModeRegister {
		return ModeLogin
	}
	return ModeRegister
}

// View はコンテンツ領域に表示するビューの記述子。
// BoardView、AuthFormView、NotFoundViewのいずれか。
type View interface {
	isView()
}

// BoardView はタスクボード。
type BoardView struct{}

// AuthFormView は認証フォーム。
type AuthFormView struct {
	Mode AuthMode
}

// NotFoundView は未知のパスに対する表示。
type NotFoundView struct{}

func (BoardView) isView()    {}
func (AuthFormView) isView() {}
func (NotFoundView) isView() {}

// Resolution はパス解決の結果。
// Redirectが空でない場合、表示はViewで即時に行い、
// 履歴上のパスをRedirectへ置き換える（結果は待たない）。
type Resolution struct {
	View     View
	Redirect string
}

// Resolve はパスと認証状態から表示するビューを決定する。
//
//	/          認証済み→ボード、未認証→ログイン
//	/login     ログイン
//	/register  登録
//	/tablero   認証済み→ボード、未認証→ログイン（/loginへリダイレクト）
//	その他     NotFound
func Resolve(path string, authenticated bool) Resolution {
	switch path {
	case PathRoot:
		if authenticated {
			return Resolution{View: BoardView{}}
		}
		return Resolution{View: AuthFormView{Mode: ModeLogin}}
	case PathLogin:
		return Resolution{View: AuthFormView{Mode: ModeLogin}}
	case PathRegister:
		return Resolution{View: AuthFormView{Mode: ModeRegister}}
	case PathBoard:
		if authenticated {
			return Resolution{View: BoardView{}}
		}
		return Resolution{View: AuthFormView{Mode: ModeLogin}, Redirect: PathLogin}
	default:
		return Resolution{View: NotFoundView{}}
	}
}
