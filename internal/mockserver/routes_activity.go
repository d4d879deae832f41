package mockserver

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yyupcompany/kyyupgame-sub066/internal/shape"
)

func (s *Server) activityRoutes(r chi.Router) {
	d := s.data
	activities := resource{
		col:      d.activities,
		format:   formatRows,
		filters:  []string{"status", "category"},
		required: []string{"title", "startTime", "endTime"},
		defaults: record{"status": "draft", "registeredCount": 0},
	}
	registrations := resource{col: d.registrations, format: formatBare, filters: []string{"activityId", "status"}}

	r.Route("/activity-center", func(r chi.Router) {
		r.Get("/overview", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, s.activityOverview())
		})
		r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
			all := d.activities.list(nil)
			writeOK(w, record{
				"overview":           s.activityOverview(),
				"recentActivities":   all[:min(len(all), 5)],
				"pendingApprovals":   count(d.registrations.list(nil), "status", "pending"),
				"upcomingActivities": count(all, "status", "published"),
			})
		})
		r.Get("/timeline", s.activityTimeline)
		r.Get("/analytics", s.activityAnalytics)

		r.Route("/activities", func(r chi.Router) {
			activities.mount(r)
			r.Put("/{id}/publish", setStatus(d.activities, "published", formatSuccess))
			r.Put("/{id}/cancel", setStatus(d.activities, "cancelled", formatSuccess))
		})

		r.Get("/registrations", registrations.list)
		r.Post("/registrations/batch-approve", s.batchApprove)
		r.Post("/registrations/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Approved bool   `json:"approved"`
				Remark   string `json:"remark"`
			}
			if err := decodeBody(r, &in); err != nil {
				writeFail(w, http.StatusBadRequest, "invalid request body")
				return
			}
			rec, ok := d.registrations.update(chi.URLParam(r, "id"), record{"status": approvalStatus(in.Approved), "remark": in.Remark})
			if !ok {
				writeFail(w, http.StatusNotFound, "报名记录不存在")
				return
			}
			writeOK(w, rec)
		})

		r.Get("/notifications", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, record{"notifications": d.notifications.list(nil)})
		})
		r.Get("/cache/stats", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, record{"keys": 12, "hits": 340, "misses": 60, "hitRate": 0.85})
		})
		r.Post("/cache/clear", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, nil)
		})
	})
}

func (s *Server) activityOverview() record {
	all := s.data.activities.list(nil)
	return record{
		"totalActivities":    len(all),
		"ongoingActivities":  count(all, "status", "ongoing"),
		"totalRegistrations": s.data.registrations.len(),
		"activeParticipants": int(sum(all, "registeredCount")),
		"monthlyGrowth":      record{"activities": 12.5, "registrations": 8.3, "participants": 5.1},
	}
}

func (s *Server) activityTimeline(w http.ResponseWriter, r *http.Request) {
	all := s.data.activities.list(nil)
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n < len(all) {
		all = all[:n]
	}
	items := make([]record, 0, len(all))
	for _, a := range all {
		items = append(items, record{
			"id":     a["id"],
			"title":  a["title"],
			"type":   a["category"],
			"status": a["status"],
			"time":   a["startTime"],
		})
	}
	writeOK(w, record{"timeline": items})
}

func (s *Server) activityAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	for _, key := range []string{"startDate", "endDate"} {
		if v := q.Get(key); v != "" && !shape.DateFormat(v, shape.LayoutDate) {
			writeFail(w, http.StatusBadRequest, key+" must be YYYY-MM-DD")
			return
		}
	}

	all := s.data.activities.list(nil)
	byCategory := map[string]int{}
	for _, a := range all {
		if c, ok := a["category"].(string); ok {
			byCategory[c]++
		}
	}
	avg := 0.0
	if len(all) > 0 {
		avg = math.Round(sum(all, "registeredCount")/float64(len(all))*10) / 10
	}
	writeOK(w, record{
		"totalActivities":     len(all),
		"totalRegistrations":  s.data.registrations.len(),
		"averageParticipants": avg,
		"satisfactionRate":    0.96,
		"byCategory":          byCategory,
	})
}

func (s *Server) batchApprove(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDs      []any `json:"ids"`
		Approved bool  `json:"approved"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(in.IDs) == 0 {
		writeFail(w, http.StatusBadRequest, "ids is required")
		return
	}

	out := record{"successCount": 0, "failedCount": 0}
	var failed []any
	for _, id := range in.IDs {
		if _, ok := s.data.registrations.update(idString(id), record{"status": approvalStatus(in.Approved)}); ok {
			out["successCount"] = out["successCount"].(int) + 1
			continue
		}
		failed = append(failed, id)
	}
	out["failedCount"] = len(failed)
	if len(failed) > 0 {
		out["failedIds"] = failed
	}
	writeOK(w, out)
}

func approvalStatus(approved bool) string {
	if approved {
		return "approved"
	}
	return "rejected"
}

// idString JSON-числа приходят как float64, 3 должно стать "3".
func idString(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
