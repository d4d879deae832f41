// Package api содержит обертки ресурсов админки детского сада.
//
// Обертка форматирует URL, отдает вызов в transport.Requester и разбирает data.
// Политик ошибок две: большинство методов возвращают ошибку как есть,
// а «витринные» (статистика, ленты, проверки прав) логируют ее и отдают значение по умолчанию.
// Повторов на этом уровне нет, ими занимается транспорт.
package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
	"go.uber.org/zap"
)

// Page списочный ответ {items,total}.
type Page[T any] = transport.List[T]

// ID идентификатор сущности. Бэкенд отдает то число, то строку.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	r := gjson.ParseBytes(b)
	switch r.Type {
	case gjson.Null:
		*id = ""
	case gjson.String, gjson.Number:
		*id = ID(r.String())
	default:
		return fmt.Errorf("id: unexpected json %s", r.Raw)
	}
	return nil
}

func (id ID) String() string { return string(id) }

type base struct {
	req    transport.Requester
	logger *zap.Logger
}

func newBase(req transport.Requester, logger *zap.Logger, name string) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{req: req, logger: logger.Named(name)}
}

func (b base) get(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := b.req.Get(ctx, path, params)
	if err != nil {
		return err
	}
	return decode(resp, path, out)
}

func (b base) post(ctx context.Context, path string, body, out any) error {
	resp, err := b.req.Post(ctx, path, body)
	if err != nil {
		return err
	}
	return decode(resp, path, out)
}

func (b base) put(ctx context.Context, path string, body, out any) error {
	resp, err := b.req.Put(ctx, path, body)
	if err != nil {
		return err
	}
	return decode(resp, path, out)
}

func (b base) del(ctx context.Context, path string) error {
	_, err := b.req.Del(ctx, path)
	return err
}

// swallow пишет отказ «витринного» метода; вызывающий возвращает значение по умолчанию.
func (b base) swallow(op string, err error) {
	b.logger.Warn("request failed, returning default", zap.String("op", op), zap.Error(err))
}

func decode(resp *transport.Response, path string, out any) error {
	if out == nil {
		return nil
	}
	if err := resp.DecodeData(out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// listOf достает массив из data, где бы бэкенд его ни положил:
// data:[...], data:{items:[...]}, data:{list:[...]} или data:{<key>:[...]}.
func listOf[T any](resp *transport.Response, keys ...string) ([]T, error) {
	out := []T{}
	if resp == nil || len(resp.Data) == 0 {
		return out, nil
	}
	data := gjson.ParseBytes(resp.Data)
	target := data
	if !data.IsArray() {
		target = gjson.Result{}
		candidates := append(append([]string{}, keys...), "items", "list", "rows")
		for _, k := range candidates {
			if v := data.Get(k); v.IsArray() {
				target = v
				break
			}
		}
	}
	if !target.IsArray() {
		return out, nil
	}
	tmp := &transport.Response{Data: []byte(target.Raw)}
	if err := tmp.DecodeData(&out); err != nil {
		return []T{}, err
	}
	return out, nil
}

func fetchList[T any](ctx context.Context, b base, path string, params url.Values, keys ...string) ([]T, error) {
	resp, err := b.req.Get(ctx, path, params)
	if err != nil {
		return []T{}, err
	}
	return listOf[T](resp, keys...)
}

// pageOf разбирает data как {items,total}; голый массив тоже принимается.
func pageOf[T any](resp *transport.Response) (*Page[T], error) {
	page := &Page[T]{Items: []T{}}
	if gjson.ParseBytes(resp.Data).IsArray() {
		items, err := listOf[T](resp)
		if err != nil {
			return nil, err
		}
		page.Items, page.Total = items, len(items)
		return page, nil
	}
	if err := resp.DecodeData(page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, nil
}

func fetchPage[T any](ctx context.Context, b base, path string, params url.Values) (*Page[T], error) {
	resp, err := b.req.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	page, err := pageOf[T](resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return page, nil
}

func setStr(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func setInt(q url.Values, key string, v int) {
	if v != 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

// PageQuery общие параметры пагинации.
type PageQuery struct {
	Page     int
	PageSize int
}

func (p PageQuery) values() url.Values {
	q := url.Values{}
	setInt(q, "page", p.Page)
	setInt(q, "pageSize", p.PageSize)
	return q
}

func esc(id ID) string {
	return url.PathEscape(string(id))
}
