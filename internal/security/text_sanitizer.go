// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はタスクのタイトルや説明などユーザー入力のプレーンテキストから
// HTMLタグを除去する。出力時のエスケープはテンプレート側で行うため、
// ここではエンティティを復元したプレーンテキストを返す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト入力のサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize はHTMLタグを全て除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLタグを全て除去したプレーンテキストを返す。
// StrictPolicyがエスケープしたエンティティは復元する。
// 復元によって新たにタグが現れる場合があるため、結果が変わらなくなるまで繰り返す。
// 各回で文字列は短くなるか変化しないため、繰り返しは入力長で打ち切られる。
func (s *textSanitizer) Sanitize(raw string) string {
	out := strings.TrimSpace(raw)
	for i := 0; i <= len(raw); i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(out)))
		if next == out {
			break
		}
		out = next
	}
	return out
}

var _ TextSanitizerService = (*textSanitizer)(nil)
