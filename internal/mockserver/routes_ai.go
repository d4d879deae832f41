package mockserver

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) advertisementRoutes(r chi.Router) {
	d := s.data
	ads := resource{
		col:      d.ads,
		format:   formatCode,
		filters:  []string{"status", "type", "position"},
		required: []string{"title", "type"},
		defaults: record{"status": "draft", "impressions": 0, "clicks": 0},
	}

	r.Route("/advertisements", func(r chi.Router) {
		r.Get("/statistics", func(w http.ResponseWriter, r *http.Request) {
			all := d.ads.list(nil)
			impressions, clicks := sum(all, "impressions"), sum(all, "clicks")
			ctr := 0.0
			if impressions > 0 {
				ctr = clicks / impressions
			}
			writeData(w, formatCode, record{
				"total":       len(all),
				"active":      count(all, "status", "active"),
				"impressions": int(impressions),
				"clicks":      int(clicks),
				"ctr":         ctr,
			})
		})
		r.Get("/active", func(w http.ResponseWriter, r *http.Request) {
			active := d.ads.list(where("status", "active"), "status")
			slices.SortFunc(active, func(a, b record) int {
				return int(toFloat(a["sortOrder"]) - toFloat(b["sortOrder"]))
			})
			writeData(w, formatCode, active)
		})
		ads.mount(r)
		r.Put("/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Status string `json:"status"`
			}
			if err := decodeBody(r, &in); err != nil || !slices.Contains([]string{"draft", "active", "paused", "ended"}, in.Status) {
				writeJSON(w, http.StatusBadRequest, record{"code": 400, "message": "invalid status"})
				return
			}
			setStatus(d.ads, in.Status, formatCode)(w, r)
		})
	})
}

func (s *Server) aiRoutes(r chi.Router) {
	d := s.data
	models := resource{col: d.models, format: formatSuccess, required: []string{"name", "provider"}, defaults: record{"isActive": true, "isDefault": false}}
	conversations := resource{col: d.conversations, format: formatSuccess}

	r.Route("/ai", func(r chi.Router) {
		r.Route("/models", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				writeOK(w, record{"models": d.models.list(nil)})
			})
			r.Post("/", models.create)
			r.Get("/default", func(w http.ResponseWriter, r *http.Request) {
				for _, m := range d.models.list(nil) {
					if m["isDefault"] == true {
						writeOK(w, m)
						return
					}
				}
				writeFail(w, http.StatusNotFound, "未设置默认模型")
			})
			r.Post("/default", s.setDefaultModel)
			r.Get("/{id}", models.get)
			r.Put("/{id}", models.update)
			r.Delete("/{id}", models.remove)
			r.Get("/{id}/billing", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				if _, ok := d.models.get(id); !ok {
					writeFail(w, http.StatusNotFound, "模型不存在")
					return
				}
				writeOK(w, record{
					"modelId": id, "billingType": "token", "inputPrice": 0.0008, "outputPrice": 0.002,
					"currency": "CNY", "totalUsage": 182000, "totalCost": 236.6, "billingCycle": "monthly",
				})
			})
			r.Get("/{id}/capabilities/{capability}", func(w http.ResponseWriter, r *http.Request) {
				m, ok := d.models.get(chi.URLParam(r, "id"))
				if !ok {
					writeFail(w, http.StatusNotFound, "模型不存在")
					return
				}
				writeOK(w, record{"supported": hasValue(m["capabilities"], chi.URLParam(r, "capability"))})
			})
		})

		r.Get("/quota/user", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, userQuota())
		})
		r.Get("/initialize", func(w http.ResponseWriter, r *http.Request) {
			out := record{"models": d.models.list(where("isActive", true), "isActive"), "quota": userQuota()}
			for _, m := range d.models.list(nil) {
				if m["isDefault"] == true {
					out["defaultModel"] = m
				}
			}
			writeOK(w, out)
		})
		r.Post("/consultation/start", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Topic string `json:"topic"`
			}
			if err := decodeBody(r, &in); err != nil || strings.TrimSpace(in.Topic) == "" {
				writeFail(w, http.StatusBadRequest, "topic is required")
				return
			}
			writeOK(w, record{"sessionId": fmt.Sprintf("consult_%d", time.Now().UnixNano()), "status": "started", "message": "专家会诊已开始"})
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				writeOK(w, d.conversations.list(nil))
			})
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				var in record
				if err := decodeBody(r, &in); err != nil || in == nil {
					in = record{}
				}
				if t, _ := in["title"].(string); t == "" {
					in["title"] = "新对话"
				}
				in["messageCount"] = 0
				in["createdAt"] = time.Now().Format(time.RFC3339)
				writeOK(w, d.conversations.create(in))
			})
			r.Get("/{id}", conversations.get)
			r.Put("/{id}", conversations.update)
			r.Delete("/{id}", conversations.remove)
			r.Get("/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				if _, ok := d.conversations.get(id); !ok {
					writeFail(w, http.StatusNotFound, "对话不存在")
					return
				}
				writeOK(w, record{"messages": d.messages.list(where("conversationId", id), "conversationId")})
			})
			r.Post("/{id}/messages", s.sendMessage)
		})

		s.memoryRoutes(r)
	})
}

func (s *Server) setDefaultModel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ModelID any `json:"modelId"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := idString(in.ModelID)
	if _, ok := s.data.models.get(id); !ok {
		writeFail(w, http.StatusNotFound, "模型不存在")
		return
	}
	for _, m := range s.data.models.list(nil) {
		s.data.models.update(idOf(m), record{"isDefault": idOf(m) == id})
	}
	writeOK(w, nil)
}

// sendMessage сохраняет сообщение пользователя и отвечает заготовкой ассистента.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, ok := s.data.conversations.get(id)
	if !ok {
		writeFail(w, http.StatusNotFound, "对话不存在")
		return
	}
	var in record
	if err := decodeBody(r, &in); err != nil || in == nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	content, _ := in["content"].(string)
	if strings.TrimSpace(content) == "" {
		writeFail(w, http.StatusBadRequest, "content is required")
		return
	}

	now := time.Now().Format(time.RFC3339)
	s.data.messages.create(record{"conversationId": id, "role": "user", "content": content, "messageType": "text", "createdAt": now})
	reply := s.data.messages.create(record{
		"conversationId": id,
		"role":           "assistant",
		"content":        "已收到：" + content,
		"messageType":    "text",
		"createdAt":      now,
	})
	s.data.conversations.update(id, record{
		"messageCount": int(toFloat(conv["messageCount"])) + 2,
		"lastMessage":  content,
		"updatedAt":    now,
	})
	writeOK(w, reply)
}

func userQuota() record {
	return record{"total": 100000, "used": 23500, "remaining": 76500, "resetDate": "2026-11-01"}
}

func where(field string, value any) url.Values {
	return url.Values{field: {fmt.Sprint(value)}}
}

func hasValue(v any, want string) bool {
	switch xs := v.(type) {
	case []string:
		return slices.Contains(xs, want)
	case []any:
		for _, x := range xs {
			if fmt.Sprint(x) == want {
				return true
			}
		}
	}
	return false
}
