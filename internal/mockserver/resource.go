package mockserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// resource стандартный CRUD поверх collection.
type resource struct {
	col      *collection
	format   format
	filters  []string
	required []string
	defaults record
}

func (res resource) mount(r chi.Router) {
	r.Get("/", res.list)
	r.Post("/", res.create)
	r.Get("/{id}", res.get)
	r.Put("/{id}", res.update)
	r.Delete("/{id}", res.remove)
}

func (res resource) list(w http.ResponseWriter, r *http.Request) {
	items := res.col.list(r.URL.Query(), res.filters...)
	p := pagingFrom(r)
	writeList(w, res.format, p.slice(items), len(items), p)
}

func (res resource) get(w http.ResponseWriter, r *http.Request) {
	rec, ok := res.col.get(chi.URLParam(r, "id"))
	if !ok {
		writeFail(w, http.StatusNotFound, "资源不存在")
		return
	}
	writeData(w, res.format, rec)
}

func (res resource) create(w http.ResponseWriter, r *http.Request) {
	var in record
	if err := decodeBody(r, &in); err != nil || in == nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, f := range res.required {
		if v, ok := in[f]; !ok || v == nil || v == "" {
			writeFail(w, http.StatusBadRequest, fmt.Sprintf("%s is required", f))
			return
		}
	}
	for k, v := range res.defaults {
		if cur, ok := in[k]; !ok || cur == "" {
			in[k] = v
		}
	}
	writeData(w, res.format, res.col.create(in))
}

func (res resource) update(w http.ResponseWriter, r *http.Request) {
	var patch record
	if err := decodeBody(r, &patch); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, ok := res.col.update(chi.URLParam(r, "id"), patch)
	if !ok {
		writeFail(w, http.StatusNotFound, "资源不存在")
		return
	}
	writeData(w, res.format, rec)
}

func (res resource) remove(w http.ResponseWriter, r *http.Request) {
	if !res.col.remove(chi.URLParam(r, "id")) {
		writeFail(w, http.StatusNotFound, "资源不存在")
		return
	}
	writeData(w, res.format, nil)
}

// setStatus обработчик переходов вида PUT /{id}/publish.
func setStatus(col *collection, status string, f format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := col.update(chi.URLParam(r, "id"), record{"status": status})
		if !ok {
			writeFail(w, http.StatusNotFound, "资源不存在")
			return
		}
		writeData(w, f, rec)
	}
}

func count(items []record, field string, value any) int {
	n := 0
	for _, rec := range items {
		if fmt.Sprint(rec[field]) == fmt.Sprint(value) {
			n++
		}
	}
	return n
}

func sum(items []record, field string) float64 {
	var total float64
	for _, rec := range items {
		total += toFloat(rec[field])
	}
	return total
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
