// Package qr はマシンに貼られたQRコードのペイロードを解釈する。
package qr

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/hitoshi/gymqr/internal/model"
)

// jsonKeys はJSONペイロードでIDを探すキー。先頭のキーから順に数値かどうかを調べる。
var jsonKeys = []string{"maquina_id", "id"}

// ParseMachineID はQRペイロードからマシンIDを取り出す。
//
// 受け付ける形式:
//   - 正の10進整数（前後の空白は無視）: "12"
//   - maquina_id または id を数値で持つJSONオブジェクト: {"maquina_id": 12}
//     maquina_id が数値でない場合は id を使う
//
// それ以外、および0以下のIDはInvalidQRエラーになる。
func ParseMachineID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, model.NewInvalidQRError()
	}

	if strings.HasPrefix(s, "{") {
		return parseJSON(s)
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewInvalidQRError()
	}
	return id, nil
}

func parseJSON(s string) (int64, error) {
	dec := json.NewDecoder(strings.NewReader(s))

	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return 0, model.NewInvalidQRError()
	}
	// オブジェクトの後ろに余分な入力があれば不正
	if _, err := dec.Token(); err != io.EOF {
		return 0, model.NewInvalidQRError()
	}

	for _, key := range jsonKeys {
		if id, ok := numericID(fields[key]); ok {
			return id, nil
		}
	}
	return 0, model.NewInvalidQRError()
}

// numericID はJSONの値が正の整数リテラルであればその値を返す。
// 文字列（"3"など）やnull、小数は受け付けない。
func numericID(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	id, err := n.Int64()
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
