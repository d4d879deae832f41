package mockserver

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// format конверт, которым ресурс отвечает. Бэкенд не единообразен,
// и фейк повторяет это, чтобы нормализация клиента работала на живых формах.
type format int

const (
	formatSuccess format = iota // {success,data,message}
	formatCode                  // {code:200,data,message}
	formatRows                  // {rows,count}
	formatBare                  // {data:[...],message}
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data, "message": "操作成功"})
}

func writeData(w http.ResponseWriter, f format, data any) {
	if f == formatCode {
		writeJSON(w, http.StatusOK, map[string]any{"code": 200, "data": data, "message": "success"})
		return
	}
	writeOK(w, data)
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// writeList отдает страницу в формате ресурса.
func writeList(w http.ResponseWriter, f format, items []record, total int, p paging) {
	switch f {
	case formatRows:
		writeJSON(w, http.StatusOK, map[string]any{"rows": items, "count": total})
	case formatBare:
		writeJSON(w, http.StatusOK, map[string]any{"data": items, "message": "ok"})
	default:
		writeData(w, f, map[string]any{
			"items":    items,
			"total":    total,
			"page":     p.page,
			"pageSize": p.size,
		})
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

type paging struct {
	page int
	size int
}

const defaultPageSize = 20

func pagingFrom(r *http.Request) paging {
	p := paging{page: 1, size: defaultPageSize}
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		p.page = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && n > 0 {
		p.size = n
	}
	return p
}

func (p paging) slice(items []record) []record {
	from := (p.page - 1) * p.size
	if from >= len(items) {
		return []record{}
	}
	return items[from:min(from+p.size, len(items))]
}
