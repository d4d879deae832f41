package mockserver

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

var memoryTypes = []string{"short_term", "long_term", "episodic", "semantic"}

func (s *Server) memoryRoutes(r chi.Router) {
	d := s.data

	r.Route("/memory", func(r chi.Router) {
		r.Post("/", s.createMemory)
		r.Post("/with-embedding", s.createMemory)

		r.Get("/conversation/{conv}/{user}", func(w http.ResponseWriter, r *http.Request) {
			q := where("conversationId", chi.URLParam(r, "conv"))
			q.Set("userId", chi.URLParam(r, "user"))
			items := d.memories.list(q, "conversationId", "userId")
			writeOK(w, record{"memories": limited(items, r.URL.Query().Get("limit"))})
		})
		r.Post("/summarize/{conv}/{user}", func(w http.ResponseWriter, r *http.Request) {
			q := where("conversationId", chi.URLParam(r, "conv"))
			q.Set("userId", chi.URLParam(r, "user"))
			items := d.memories.list(q, "conversationId", "userId")
			parts := make([]string, 0, len(items))
			for _, m := range items {
				parts = append(parts, fmt.Sprint(m["content"]))
			}
			writeOK(w, record{"summary": strings.Join(parts, "；"), "memoryCount": len(items)})
		})

		r.Post("/search-similar", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				UserID    any     `json:"userId"`
				Query     string  `json:"query"`
				Limit     int     `json:"limit"`
				Threshold float64 `json:"threshold"`
			}
			if err := decodeBody(r, &in); err != nil || in.Query == "" {
				writeFail(w, http.StatusBadRequest, "query is required")
				return
			}
			items := similar(d.memories.list(where("userId", idString(in.UserID)), "userId"), in.Query, in.Threshold)
			writeOK(w, record{"memories": limited(items, fmt.Sprint(in.Limit))})
		})
		r.Post("/memory/search/time-range/{user}", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Query     string `json:"query"`
				StartDate string `json:"startDate"`
				EndDate   string `json:"endDate"`
				Limit     int    `json:"limit"`
			}
			if err := decodeBody(r, &in); err != nil {
				writeFail(w, http.StatusBadRequest, "invalid request body")
				return
			}
			from, err1 := time.Parse(time.DateOnly, in.StartDate)
			to, err2 := time.Parse(time.DateOnly, in.EndDate)
			if err1 != nil || err2 != nil {
				writeFail(w, http.StatusBadRequest, "startDate and endDate must be YYYY-MM-DD")
				return
			}
			items := within(d.memories.list(where("userId", chi.URLParam(r, "user")), "userId"), from, to.AddDate(0, 0, 1))
			writeOK(w, record{"results": limited(similar(items, in.Query, 0), fmt.Sprint(in.Limit))})
		})
		r.Post("/memory/search/last-month/{user}", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Query string `json:"query"`
				Limit int    `json:"limit"`
			}
			_ = decodeBody(r, &in)
			now := time.Now()
			items := within(d.memories.list(where("userId", chi.URLParam(r, "user")), "userId"), now.AddDate(0, -1, 0), now)
			writeOK(w, record{"results": limited(similar(items, in.Query, 0), fmt.Sprint(in.Limit))})
		})

		r.Get("/{id}/search", func(w http.ResponseWriter, r *http.Request) {
			items := d.memories.list(where("userId", chi.URLParam(r, "id")), "userId")
			writeOK(w, similar(items, r.URL.Query().Get("query"), 0))
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if !d.memories.remove(chi.URLParam(r, "id")) {
				writeFail(w, http.StatusNotFound, "记忆不存在")
				return
			}
			writeOK(w, nil)
		})
		r.Delete("/{id}/{user}", func(w http.ResponseWriter, r *http.Request) {
			m, ok := d.memories.get(chi.URLParam(r, "id"))
			if !ok || fmt.Sprint(m["userId"]) != chi.URLParam(r, "user") {
				writeFail(w, http.StatusNotFound, "记忆不存在")
				return
			}
			d.memories.remove(idOf(m))
			writeOK(w, nil)
		})
	})
}

func (s *Server) createMemory(w http.ResponseWriter, r *http.Request) {
	var in record
	if err := decodeBody(r, &in); err != nil || in == nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	content, _ := in["content"].(string)
	if _, ok := in["memoryType"]; !ok {
		in["memoryType"] = "short_term"
	}
	if _, ok := in["importance"]; !ok {
		in["importance"] = 5
	}
	mt, _ := in["memoryType"].(string)
	importance := toFloat(in["importance"])
	switch {
	case strings.TrimSpace(content) == "":
		writeFail(w, http.StatusBadRequest, "content is required")
		return
	case !slices.Contains(memoryTypes, mt):
		writeFail(w, http.StatusBadRequest, "invalid memoryType")
		return
	case importance < 1 || importance > 10:
		writeFail(w, http.StatusBadRequest, "importance must be between 1 and 10")
		return
	}
	in["userId"] = idString(in["userId"])
	in["createdAt"] = time.Now().Format(time.RFC3339)
	writeOK(w, s.data.memories.create(in))
}

// similar грубая «похожесть»: доля символов запроса, встречающихся в тексте.
func similar(items []record, query string, threshold float64) []record {
	if query == "" {
		return items
	}
	runes := []rune(query)
	out := []record{}
	for _, m := range items {
		content := fmt.Sprint(m["content"])
		hit := 0
		for _, r := range runes {
			if strings.ContainsRune(content, r) {
				hit++
			}
		}
		score := float64(hit) / float64(len(runes))
		if score == 0 || score < threshold {
			continue
		}
		m["similarity"] = score
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b record) int {
		switch {
		case toFloat(a["similarity"]) > toFloat(b["similarity"]):
			return -1
		case toFloat(a["similarity"]) < toFloat(b["similarity"]):
			return 1
		}
		return 0
	})
	return out
}

func within(items []record, from, to time.Time) []record {
	out := []record{}
	for _, m := range items {
		at, err := time.Parse(time.RFC3339, fmt.Sprint(m["createdAt"]))
		if err != nil || at.Before(from) || !at.Before(to) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func limited(items []record, limit string) []record {
	var n int
	if _, err := fmt.Sscan(limit, &n); err == nil && n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}

func (s *Server) chatRoutes(r chi.Router) {
	d := s.data

	r.Route("/chat", func(r chi.Router) {
		r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Topic string `json:"topic"`
			}
			_ = decodeBody(r, &in)
			title := in.Topic
			if title == "" {
				title = "新对话"
			}
			conv := d.conversations.create(record{"title": title, "messageCount": 0, "createdAt": time.Now().Format(time.RFC3339)})
			writeOK(w, record{"conversationId": conv["id"], "title": title, "greeting": "您好，我是幼儿园智能助手。"})
		})
		r.Post("/send", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				ConversationID any    `json:"conversationId"`
				Content        string `json:"content"`
			}
			if err := decodeBody(r, &in); err != nil || strings.TrimSpace(in.Content) == "" {
				writeFail(w, http.StatusBadRequest, "content is required")
				return
			}
			id := idString(in.ConversationID)
			if _, ok := d.conversations.get(id); !ok {
				writeFail(w, http.StatusNotFound, "对话不存在")
				return
			}
			now := time.Now().Format(time.RFC3339)
			d.messages.create(record{"conversationId": id, "role": "user", "content": in.Content, "messageType": "text", "createdAt": now})
			reply := d.messages.create(record{"conversationId": id, "role": "assistant", "content": "已收到：" + in.Content, "messageType": "text", "createdAt": now})
			writeOK(w, chatReply(reply))
		})
		r.Get("/history/{conversationId}", func(w http.ResponseWriter, r *http.Request) {
			msgs := d.messages.list(where("conversationId", chi.URLParam(r, "conversationId")), "conversationId")
			out := make([]record, 0, len(msgs))
			for _, m := range msgs {
				out = append(out, chatReply(m))
			}
			writeOK(w, record{"messages": out})
		})
	})
}

func chatReply(m record) record {
	return record{"messageId": m["id"], "content": m["content"], "role": m["role"], "createdAt": m["createdAt"]}
}
