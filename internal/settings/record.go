package settings

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Record はカメラデバイスが参照する設定
type Record struct {
	SSID        string `json:"ssid"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber" validate:"phone"`
	StartHour   int    `json:"startHour" validate:"min=0,max=23"`
	EndHour     int    `json:"endHour" validate:"min=0,max=23"`
}

// Patch は部分更新の内容。nilのフィールドは変更しない
type Patch struct {
	SSID        *string `json:"ssid"`
	Password    *string `json:"password"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,phone"`
	StartHour   *int    `json:"startHour" validate:"omitempty,min=0,max=23"`
	EndHour     *int    `json:"endHour" validate:"omitempty,min=0,max=23"`
}

// Defaults は初期設定を返す
func Defaults() Record {
	return Record{
		SSID:        "DEFAULT_SSID",
		Password:    "DEFAULT_PASS",
		PhoneNumber: "+261000000000",
		StartHour:   18,
		EndHour:     6,
	}
}

// Apply はpの指定されたフィールドだけを反映したコピーを返す
func (r Record) Apply(p Patch) Record {
	if p.SSID != nil {
		r.SSID = *p.SSID
	}
	if p.Password != nil {
		r.Password = *p.Password
	}
	if p.PhoneNumber != nil {
		r.PhoneNumber = *p.PhoneNumber
	}
	if p.StartHour != nil {
		r.StartHour = *p.StartHour
	}
	if p.EndHour != nil {
		r.EndHour = *p.EndHour
	}
	return r
}

// IsEmpty はフィールドが一つも指定されていないかを返す
func (p Patch) IsEmpty() bool {
	return p.SSID == nil && p.Password == nil && p.PhoneNumber == nil &&
		p.StartHour == nil && p.EndHour == nil
}

// ValidationError は不正なフィールドを表す
type ValidationError struct {
	Field   string // JSONのフィールド名
	Message string // 利用者向けのメッセージ
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// 電話番号は + の後に9〜15桁の数字
var phonePattern = regexp.MustCompile(`^\+\d{9,15}$`)

var fieldMessages = map[string]string{
	"ssid":        "SSIDは文字列である必要があります",
	"password":    "パスワードは文字列である必要があります",
	"phoneNumber": "電話番号が無効です (例: +261123456789)",
	"startHour":   "開始時刻が無効です (0-23)",
	"endHour":     "終了時刻が無効です (0-23)",
	"body":        "JSONの形式が正しくありません",
}

func newFieldError(field string) *ValidationError {
	msg, ok := fieldMessages[field]
	if !ok {
		msg = "値が無効です"
	}
	return &ValidationError{Field: field, Message: msg}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// エラーにはJSONのフィールド名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

// validateStruct は構造体を検証し、最初に失敗したフィールドのエラーを返す
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return newFieldError(verrs[0].Field())
	}
	return err
}

// Validate はパッチの指定されたフィールドを検証する
func (p Patch) Validate() error {
	return validateStruct(p)
}

// Validate はレコード全体を検証する
func (r Record) Validate() error {
	return validateStruct(r)
}
