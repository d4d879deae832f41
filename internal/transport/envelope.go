package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Response нормализованный конверт ответа бэкенда.
type Response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Status    int             `json:"-"`
	RequestID string          `json:"-"`
	// Raw: тело как пришло; часть эндпоинтов кладет полезные поля рядом с success
	Raw json.RawMessage `json:"-"`
}

// DecodeData разбирает data в v. Пустой или null data оставляет v нетронутым.
func (r *Response) DecodeData(v any) error {
	if r == nil || len(r.Data) == 0 || bytes.Equal(r.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// Field возвращает поле исходного тела по gjson-пути.
func (r *Response) Field(path string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Raw, path)
}

// List форма {items,total}, к которой приводятся все списочные ответы.
type List[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page,omitempty"`
	PageSize int `json:"pageSize,omitempty"`
}

// Normalize приводит разные форматы бэкенда к Response:
//
//	{success,data,message}  как есть; success:false -> *APIError
//	{code:200,data,message} -> success:true; code >= 400 -> *APIError
//	{rows:[...],count:n}    -> data:{items,total}
//	{data:[...],message}    -> data:{items,total}
//	прочее                  -> success:true, data = тело целиком
func Normalize(body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Response{Success: true}, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, preview(trimmed))
	}

	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		return &Response{Success: true, Data: json.RawMessage(trimmed), Raw: json.RawMessage(trimmed)}, nil
	}

	msg := root.Get("message").String()
	resp := &Response{Success: true, Message: msg, Raw: json.RawMessage(trimmed)}

	if s := root.Get("success"); s.Exists() {
		if !s.Bool() {
			return nil, newAPIError(root, trimmed)
		}
		resp.Data = rawOf(root.Get("data"))
		return resp, nil
	}

	if c := root.Get("code"); c.Exists() && c.Type == gjson.Number {
		if c.Int() >= 400 {
			return nil, newAPIError(root, trimmed)
		}
		resp.Data = rawOf(root.Get("data"))
		return resp, nil
	}

	if rows := root.Get("rows"); rows.IsArray() {
		total := len(rows.Array())
		if cnt := root.Get("count"); cnt.Exists() {
			total = int(cnt.Int())
		}
		resp.Data = listJSON(rows.Raw, total)
		resp.Message = "Success"
		return resp, nil
	}

	if d := root.Get("data"); d.IsArray() {
		resp.Data = listJSON(d.Raw, len(d.Array()))
		if resp.Message == "" {
			resp.Message = "Success"
		}
		return resp, nil
	}

	resp.Data = json.RawMessage(trimmed)
	return resp, nil
}

func newAPIError(root gjson.Result, body []byte) *APIError {
	msg := root.Get("message").String()
	if msg == "" {
		// error бывает строкой или объектом {code,message}
		if e := root.Get("error"); e.IsObject() {
			msg = e.Get("message").String()
		} else {
			msg = e.String()
		}
	}
	return &APIError{Code: int(root.Get("code").Int()), Message: msg, Body: body}
}

func rawOf(r gjson.Result) json.RawMessage {
	if !r.Exists() {
		return nil
	}
	return json.RawMessage(r.Raw)
}

func listJSON(items string, total int) json.RawMessage {
	return json.RawMessage(`{"items":` + items + `,"total":` + strconv.Itoa(total) + `}`)
}

func preview(b []byte) string {
	const max = 120
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// errorMessage достает человекочитаемое сообщение из тела ошибки.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return preview(bytes.TrimSpace(body))
	}
	root := gjson.ParseBytes(body)
	if m := root.Get("message").String(); m != "" {
		return m
	}
	if e := root.Get("error"); e.IsObject() {
		return e.Get("message").String()
	}
	return root.Get("error").String()
}
