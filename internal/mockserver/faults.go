package mockserver

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Fault ответ, который подменит очередной запрос.
type Fault struct {
	Status     int
	Body       string
	RetryAfter string
	Delay      time.Duration
}

// Faults очередь отказов по "METHOD path". Путь без префикса /api.
type Faults struct {
	mu    sync.Mutex
	queue map[string][]Fault
	hits  map[string]int
	// вызывается на каждый подмененный ответ
	onFault func()
}

func NewFaults() *Faults {
	return &Faults{queue: map[string][]Fault{}, hits: map[string]int{}}
}

// Inject ставит fault на следующие times запросов.
func (f *Faults) Inject(method, path string, times int, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := faultKey(method, path)
	for range times {
		f.queue[key] = append(f.queue[key], fault)
	}
}

// Hits сколько запросов на method+path дошло до сервера, включая подмененные.
func (f *Faults) Hits(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[faultKey(method, path)]
}

func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = map[string][]Fault{}
	f.hits = map[string]int{}
}

func (f *Faults) take(method, path string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := faultKey(method, path)
	f.hits[key]++
	q := f.queue[key]
	if len(q) == 0 {
		return Fault{}, false
	}
	f.queue[key] = q[1:]
	return q[0], true
}

func (f *Faults) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fault, ok := f.take(r.Method, apiPath(r))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if f.onFault != nil {
			f.onFault()
		}
		if fault.Delay > 0 {
			select {
			case <-time.After(fault.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if fault.RetryAfter != "" {
			w.Header().Set("Retry-After", fault.RetryAfter)
		}
		body := fault.Body
		if body == "" {
			body = `{"success":false,"message":"injected fault"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fault.Status)
		_, _ = w.Write([]byte(body))
	})
}

func faultKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

func apiPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api")
}
