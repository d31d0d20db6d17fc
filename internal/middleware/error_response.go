package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/tablero/internal/model"
)

// ErrorResponseBody はボードのJSON APIが返すエラーボディ。
// shell.js は401のauthカテゴリならログイン画面へ移り、それ以外はmessageとactionを表示する。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// カテゴリ毎の既定の対処方法。APIErrorがActionを持たない場合に使う。
var defaultActions = map[string]string{
	model.CategoryAuth:       "もう一度ログインしてからボードを開いてください。",
	model.CategoryValidation: "入力内容を確認して、もう一度送信してください。",
	model.CategoryTask:       "ボードを再読み込みして最新のタスクを確認してください。",
	model.CategorySystem:     "少し時間をおいてからボードを再読み込みしてください。",
}

// NewErrorResponseBody はAPIErrorからレスポンスボディを組み立てる。
// カテゴリが空ならsystem、対処方法が空ならカテゴリの既定文言で補う。
func NewErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if body.Category == "" {
		body.Category = model.CategorySystem
	}
	if body.Action == "" {
		body.Action = defaultActions[body.Category]
	}
	return body
}

// WriteErrorResponse はエラーボディをJSONで書き込む。
// エラー内容は利用者毎に異なるためキャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(NewErrorResponseBody(apiErr))
}

// WriteInternalServerError は想定外の失敗を500で返す。
// 原因はログにのみ残し、ボディには一般的な文言だけを載せる。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "タスクボードの処理中にエラーが発生しました。",
		Category: model.CategorySystem,
	})
}

// writeCSRFRejected はCSRF検証に失敗したリクエストを403で返す。
func writeCSRFRejected(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
		Code:     model.ErrCodeCSRFRejected,
		Message:  "フォームの有効期限が切れています。",
		Category: model.CategoryAuth,
		Action:   "ページを再読み込みしてから、もう一度送信してください。",
	})
}

// writeTooManyRequests は流量制限を超えたリクエストを429で返す。
func writeTooManyRequests(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     model.ErrCodeRateLimited,
		Message:  "短時間に操作が集中しています。",
		Category: model.CategorySystem,
	})
}
