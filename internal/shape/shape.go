// Package shape проверяет форму ответов бэкенда: наличие полей, типы, перечисления, даты.
// Функции без состояния, один проход, ошибки копятся в Result.
package shape

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

type Result struct {
	Valid  bool     `json:"valid" yaml:"valid"`
	Errors []string `json:"errors" yaml:"errors"`
}

func ok() Result { return Result{Valid: true, Errors: []string{}} }

func (r *Result) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindDate    Kind = "date"
)

// Распространенные форматы дат в ответах
const (
	LayoutDate     = "2006-01-02"
	LayoutDateTime = "2006-01-02T15:04:05Z07:00"
)

// datetime из validator проверяет строку по layout Go
var validate = validator.New()

func RequiredFields(obj map[string]any, fields ...string) Result {
	r := ok()
	for _, f := range fields {
		if v, found := obj[f]; !found || v == nil {
			r.fail("missing required field: %s", f)
		}
	}
	return r
}

// FieldTypes отсутствующие поля пропускаются, за наличие отвечает RequiredFields.
func FieldTypes(obj map[string]any, types map[string]Kind) Result {
	r := ok()
	for _, f := range sortedKeys(types) {
		v, found := obj[f]
		if !found {
			continue
		}
		want := types[f]
		if !isKind(v, want) {
			r.fail("field %s should be %s, got %s", f, want, kindOf(v))
		}
	}
	return r
}

func EnumField(obj map[string]any, field string, allowed ...string) Result {
	r := ok()
	v, found := obj[field]
	if !found {
		return r
	}
	s, isStr := v.(string)
	if !isStr {
		r.fail("field %s should be one of [%s], got %s", field, strings.Join(allowed, ", "), kindOf(v))
		return r
	}
	for _, a := range allowed {
		if s == a {
			return r
		}
	}
	r.fail("field %s has invalid value %q, allowed: [%s]", field, s, strings.Join(allowed, ", "))
	return r
}

// DateFormat пустой layout принимает и дату, и RFC3339.
func DateFormat(value, layout string) bool {
	if layout != "" {
		return validate.Var(value, "datetime="+layout) == nil
	}
	return validate.Var(value, "datetime="+LayoutDate) == nil ||
		validate.Var(value, "datetime="+LayoutDateTime) == nil
}

func DateFields(obj map[string]any, layout string, fields ...string) Result {
	r := ok()
	for _, f := range fields {
		v, found := obj[f]
		if !found || v == nil {
			continue
		}
		s, isStr := v.(string)
		if !isStr || !DateFormat(s, layout) {
			r.fail("field %s has invalid date format: %v", f, v)
		}
	}
	return r
}

// Range границы включительно; nil означает «без ограничения».
type Range struct {
	Min *float64
	Max *float64
}

func Bound(v float64) *float64 { return &v }

func Ranges(obj map[string]any, ranges map[string]Range) Result {
	r := ok()
	for _, f := range sortedKeys(ranges) {
		v, found := obj[f]
		if !found {
			continue
		}
		n, isNum := number(v)
		if !isNum {
			r.fail("field %s should be number, got %s", f, kindOf(v))
			continue
		}
		rg := ranges[f]
		if rg.Min != nil && n < *rg.Min {
			r.fail("field %s = %v is below minimum %v", f, n, *rg.Min)
		}
		if rg.Max != nil && n > *rg.Max {
			r.fail("field %s = %v is above maximum %v", f, n, *rg.Max)
		}
	}
	return r
}

// APIResponse тело должно быть объектом с data или success.
func APIResponse(raw []byte) Result {
	r := ok()
	if !gjson.ValidBytes(raw) {
		r.fail("response is not valid JSON")
		return r
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		r.fail("response should be an object")
		return r
	}
	if !root.Get("data").Exists() && !root.Get("success").Exists() {
		r.fail("response has neither data nor success")
	}
	if s := root.Get("success"); s.Exists() && s.Type != gjson.True && s.Type != gjson.False {
		r.fail("success should be boolean")
	}
	return r
}

// Pagination items массив и числовой total; page/pageSize, если есть, не меньше 1.
func Pagination(obj map[string]any) Result {
	r := Merge(
		RequiredFields(obj, "items", "total"),
		FieldTypes(obj, map[string]Kind{"items": KindArray, "total": KindNumber, "page": KindNumber, "pageSize": KindNumber}),
	)
	one := 1.0
	r = Merge(r, Ranges(obj, map[string]Range{"total": {Min: Bound(0)}, "page": {Min: &one}, "pageSize": {Min: &one}}))
	return r
}

func Merge(results ...Result) Result {
	out := ok()
	for _, r := range results {
		if !r.Valid {
			out.Valid = false
		}
		out.Errors = append(out.Errors, r.Errors...)
	}
	return out
}

// FromStruct переводит DTO в map через JSON, как его увидит бэкенд.
func FromStruct(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("shape: marshal: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("shape: not an object: %w", err)
	}
	return out, nil
}

func isKind(v any, k Kind) bool {
	switch k {
	case KindString:
		_, is := v.(string)
		return is
	case KindNumber:
		_, is := number(v)
		return is
	case KindBoolean:
		_, is := v.(bool)
		return is
	case KindObject:
		_, is := v.(map[string]any)
		return is
	case KindArray:
		_, is := v.([]any)
		return is
	case KindDate:
		s, is := v.(string)
		return is && DateFormat(s, "")
	}
	return false
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, is := number(v); is {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
