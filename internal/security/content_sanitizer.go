// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は管理者が入力するマシン名・説明などの自由記述欄から
// HTMLを取り除き、プレーンテキストとして保存できる形にする。
// bluemondayのStrictPolicy（全タグ不許可）を使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses はエスケープを重ねた入力に対する繰り返し回数の上限。
const maxSanitizePasses = 3

// TextSanitizer は自由記述テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// bluemondayがエスケープした実体参照（&amp; など）は元の文字に戻す。
// 戻した結果が再びタグを含む場合は、タグが無くなるまで繰り返す。
func (s *textSanitizer) Sanitize(raw string) string {
	out := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	if strings.ContainsAny(out, "<>") {
		out = strings.NewReplacer("<", "", ">", "").Replace(out)
	}
	return strings.TrimSpace(out)
}
