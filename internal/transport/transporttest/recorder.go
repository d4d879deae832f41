// Package transporttest содержит подставной Requester для тестов оберток ресурсов.
package transporttest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
)

// Call одна запись о вызове.
type Call struct {
	Method string
	Path   string
	Params url.Values
	Body   any
}

type reply struct {
	resp *transport.Response
	err  error
}

// Recorder запоминает вызовы и отвечает заранее заданными ответами.
// Ответ ищется по "METHOD path", затем по "METHOD", иначе пустой успех.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	replies map[string]reply
}

func New() *Recorder {
	return &Recorder{replies: make(map[string]reply)}
}

// Reply задает data успешного ответа. data маршалится в JSON.
func (r *Recorder) Reply(method, path string, data any) *Recorder {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("transporttest: marshal reply: %v", err))
	}
	body := fmt.Sprintf(`{"success":true,"data":%s}`, raw)
	return r.ReplyRaw(method, path, body)
}

// ReplyRaw пропускает тело через transport.Normalize, как это делает настоящий клиент.
func (r *Recorder) ReplyRaw(method, path, body string) *Recorder {
	resp, err := transport.Normalize([]byte(body))
	r.set(method, path, reply{resp: resp, err: err})
	return r
}

func (r *Recorder) Fail(method, path string, err error) *Recorder {
	r.set(method, path, reply{err: err})
	return r
}

func (r *Recorder) set(method, path string, rep reply) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[key(method, path)] = rep
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Last последний вызов; паникует, если вызовов не было.
func (r *Recorder) Last() Call {
	calls := r.Calls()
	if len(calls) == 0 {
		panic("transporttest: no calls recorded")
	}
	return calls[len(calls)-1]
}

// BodyJSON возвращает тело последнего вызова как map после JSON-кругооборота.
func (r *Recorder) BodyJSON() map[string]any {
	raw, _ := json.Marshal(r.Last().Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func (r *Recorder) Get(_ context.Context, path string, params url.Values) (*transport.Response, error) {
	return r.record("GET", path, params, nil)
}

func (r *Recorder) Post(_ context.Context, path string, body any) (*transport.Response, error) {
	return r.record("POST", path, nil, body)
}

func (r *Recorder) Put(_ context.Context, path string, body any) (*transport.Response, error) {
	return r.record("PUT", path, nil, body)
}

func (r *Recorder) Patch(_ context.Context, path string, body any) (*transport.Response, error) {
	return r.record("PATCH", path, nil, body)
}

func (r *Recorder) Del(_ context.Context, path string) (*transport.Response, error) {
	return r.record("DELETE", path, nil, nil)
}

func (r *Recorder) record(method, path string, params url.Values, body any) (*transport.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Path: path, Params: params, Body: body})

	rep, ok := r.replies[key(method, path)]
	if !ok {
		rep, ok = r.replies[key(method, "")]
	}
	if !ok {
		return &transport.Response{Success: true}, nil
	}
	if rep.err != nil {
		return nil, rep.err
	}
	return rep.resp, nil
}

func key(method, path string) string {
	return method + " " + path
}

var _ transport.Requester = (*Recorder)(nil)
