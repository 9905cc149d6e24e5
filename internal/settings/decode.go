package settings

import (
	"bytes"
	"errors"
	"io"
	"math"

	"github.com/goccy/go-json"
)

var nullLiteral = []byte("null")

// DecodePatch はJSONのリクエストボディをPatchに変換する
// 型が合わないフィールドは*ValidationErrorとして返す。未知のフィールドは無視する
func DecodePatch(r io.Reader) (Patch, error) {
	dec := json.NewDecoder(r)

	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		// 空のボディは何も変更しない更新として扱う
		if errors.Is(err, io.EOF) {
			return Patch{}, nil
		}
		return Patch{}, newFieldError("body")
	}

	// オブジェクトの後ろに余分なデータがあれば拒否する
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return Patch{}, newFieldError("body")
	}
	return patchFromRaw(raw)
}

// patchFromRaw はフィールド順に型を確認しながらPatchを組み立てる
func patchFromRaw(raw map[string]json.RawMessage) (Patch, error) {
	var p Patch
	var err error

	if p.SSID, err = decodeString(raw, "ssid"); err != nil {
		return Patch{}, err
	}
	if p.Password, err = decodeString(raw, "password"); err != nil {
		return Patch{}, err
	}
	if p.PhoneNumber, err = decodeString(raw, "phoneNumber"); err != nil {
		return Patch{}, err
	}
	if p.StartHour, err = decodeHour(raw, "startHour"); err != nil {
		return Patch{}, err
	}
	if p.EndHour, err = decodeHour(raw, "endHour"); err != nil {
		return Patch{}, err
	}

	return p, nil
}

func decodeString(raw map[string]json.RawMessage, field string) (*string, error) {
	msg, ok := raw[field]
	if !ok {
		return nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(msg), nullLiteral) {
		return nil, newFieldError(field)
	}

	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return nil, newFieldError(field)
	}
	return &s, nil
}

// decodeHour は整数値の時刻を取り出す。小数や数値以外は拒否する
// 小数は切り捨てずに不正な値として扱う
func decodeHour(raw map[string]json.RawMessage, field string) (*int, error) {
	msg, ok := raw[field]
	if !ok {
		return nil, nil
	}
	if bytes.Equal(bytes.TrimSpace(msg), nullLiteral) {
		return nil, newFieldError(field)
	}

	var f float64
	if err := json.Unmarshal(msg, &f); err != nil {
		return nil, newFieldError(field)
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return nil, newFieldError(field)
	}

	h := int(f)
	return &h, nil
}
