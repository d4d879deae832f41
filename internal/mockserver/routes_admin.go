package mockserver

import (
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type schemaField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

var importSchemas = map[string][]schemaField{
	"student": {
		{Name: "name", Label: "姓名", Type: "string", Required: true},
		{Name: "gender", Label: "性别", Type: "enum", Options: []string{"男", "女"}},
		{Name: "birthDate", Label: "出生日期", Type: "date", Required: true},
		{Name: "className", Label: "班级", Type: "string"},
		{Name: "parentPhone", Label: "家长电话", Type: "phone", Required: true},
	},
	"parent": {
		{Name: "name", Label: "姓名", Type: "string", Required: true},
		{Name: "phone", Label: "手机号", Type: "phone", Required: true},
		{Name: "relationship", Label: "关系", Type: "enum", Options: []string{"父亲", "母亲", "其他"}},
		{Name: "studentName", Label: "学生姓名", Type: "string"},
	},
	"teacher": {
		{Name: "name", Label: "姓名", Type: "string", Required: true},
		{Name: "phone", Label: "手机号", Type: "phone", Required: true},
		{Name: "position", Label: "职位", Type: "string"},
		{Name: "className", Label: "班级", Type: "string"},
	},
}

func (s *Server) dataImportRoutes(r chi.Router) {
	r.Route("/data-import", func(r chi.Router) {
		r.Get("/permission/{type}", func(w http.ResponseWriter, r *http.Request) {
			if _, ok := importSchemas[chi.URLParam(r, "type")]; !ok {
				writeFail(w, http.StatusBadRequest, "unsupported import type")
				return
			}
			writeOK(w, record{"hasPermission": true})
		})
		r.Get("/schema/{type}", func(w http.ResponseWriter, r *http.Request) {
			t := chi.URLParam(r, "type")
			fields, ok := importSchemas[t]
			if !ok {
				writeFail(w, http.StatusBadRequest, "unsupported import type")
				return
			}
			writeOK(w, record{"importType": t, "fields": fields})
		})
		r.Post("/parse", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				FilePath   string `json:"filePath"`
				ImportType string `json:"importType"`
			}
			if err := decodeBody(r, &in); err != nil || in.FilePath == "" {
				writeFail(w, http.StatusBadRequest, "filePath is required")
				return
			}
			fields, ok := importSchemas[in.ImportType]
			if !ok {
				writeFail(w, http.StatusBadRequest, "unsupported import type")
				return
			}
			headers := make([]string, 0, len(fields))
			row := record{}
			for _, f := range fields {
				headers = append(headers, f.Label)
				row[f.Label] = sampleValue(f)
			}
			fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.FilePath)), ".")
			writeOK(w, record{"headers": headers, "rows": []record{row}, "rowCount": 1, "fileType": fileType})
		})
		r.Post("/field-mapping", s.fieldMapping)
		r.Post("/preview", func(w http.ResponseWriter, r *http.Request) {
			fields, rows, ok := importInput(w, r)
			if !ok {
				return
			}
			issues := checkRows(fields, rows)
			writeOK(w, record{
				"totalRecords":   len(rows),
				"validRecords":   len(rows) - invalidRows(issues),
				"invalidRecords": invalidRows(issues),
				"errors":         issues,
			})
		})
		r.Post("/execute", func(w http.ResponseWriter, r *http.Request) {
			fields, rows, ok := importInput(w, r)
			if !ok {
				return
			}
			issues := checkRows(fields, rows)
			failed := invalidRows(issues)
			writeOK(w, record{
				"success":      failed == 0,
				"totalRecords": len(rows),
				"successCount": len(rows) - failed,
				"failedCount":  failed,
				"errors":       issues,
			})
		})
	})
}

func (s *Server) fieldMapping(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ImportType string   `json:"importType"`
		Headers    []string `json:"headers"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fields, ok := importSchemas[in.ImportType]
	if !ok {
		writeFail(w, http.StatusBadRequest, "unsupported import type")
		return
	}

	table := []record{}
	mapped := map[string]bool{}
	for _, h := range in.Headers {
		row := record{"sourceField": h, "targetField": "", "confidence": 0.0, "required": false, "matched": false}
		for _, f := range fields {
			if h == f.Label || strings.EqualFold(h, f.Name) {
				row["targetField"], row["confidence"], row["required"], row["matched"] = f.Name, 1.0, f.Required, true
				mapped[f.Name] = true
				break
			}
		}
		table = append(table, row)
	}
	missing := []string{}
	for _, f := range fields {
		if f.Required && !mapped[f.Name] {
			missing = append(missing, f.Name)
		}
	}
	writeOK(w, record{
		"comparisonTable": table,
		"summary": record{
			"totalFields":           len(in.Headers),
			"mappedFields":          len(mapped),
			"unmappedFields":        len(in.Headers) - len(mapped),
			"missingRequiredFields": missing,
		},
	})
}

func importInput(w http.ResponseWriter, r *http.Request) ([]schemaField, []record, bool) {
	var in struct {
		ImportType string            `json:"importType"`
		Rows       []record          `json:"data"`
		Mapping    map[string]string `json:"mapping"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, false
	}
	fields, ok := importSchemas[in.ImportType]
	if !ok {
		writeFail(w, http.StatusBadRequest, "unsupported import type")
		return nil, nil, false
	}
	// mapping: колонка файла -> поле схемы
	rows := make([]record, 0, len(in.Rows))
	for _, src := range in.Rows {
		row := record{}
		for k, v := range src {
			if target, ok := in.Mapping[k]; ok {
				k = target
			}
			row[k] = v
		}
		rows = append(rows, row)
	}
	return fields, rows, true
}

func checkRows(fields []schemaField, rows []record) []record {
	issues := []record{}
	for i, row := range rows {
		for _, f := range fields {
			if !f.Required {
				continue
			}
			if v, ok := row[f.Name]; !ok || strings.TrimSpace(fmt.Sprint(v)) == "" {
				issues = append(issues, record{"row": i + 1, "field": f.Name, "message": f.Label + "不能为空"})
			}
		}
	}
	return issues
}

func invalidRows(issues []record) int {
	rows := map[any]bool{}
	for _, is := range issues {
		rows[is["row"]] = true
	}
	return len(rows)
}

func sampleValue(f schemaField) string {
	switch f.Type {
	case "date":
		return "2022-05-01"
	case "phone":
		return "13800000000"
	case "enum":
		return f.Options[0]
	}
	return "示例"
}

func (s *Server) securityRoutes(r chi.Router) {
	d := s.data
	threatActions := map[string]string{"resolve": "resolved", "ignore": "ignored", "block": "blocked"}

	r.Route("/security", func(r chi.Router) {
		r.Get("/overview", func(w http.ResponseWriter, r *http.Request) {
			active := len(d.threats.list(where("status", "active"), "status"))
			writeOK(w, record{
				"securityScore":   max(100-active*7, 0),
				"threatLevel":     threatLevel(active),
				"activeThreats":   active,
				"vulnerabilities": 3,
				"riskLevel":       "low",
				"lastScanTime":    "2026-10-16T02:00:00+08:00",
			})
		})
		r.Get("/threats", func(w http.ResponseWriter, r *http.Request) {
			items := d.threats.list(r.URL.Query(), "severity", "status")
			p := pagingFrom(r)
			writeOK(w, record{"threats": p.slice(items), "total": len(items)})
		})
		r.Post("/threats/{id}/handle", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Action string `json:"action"`
				Notes  string `json:"notes"`
			}
			if err := decodeBody(r, &in); err != nil {
				writeFail(w, http.StatusBadRequest, "invalid request body")
				return
			}
			status, ok := threatActions[in.Action]
			if !ok {
				writeFail(w, http.StatusBadRequest, "action must be resolve, ignore or block")
				return
			}
			rec, found := d.threats.update(chi.URLParam(r, "id"), record{"status": status, "notes": in.Notes})
			if !found {
				writeFail(w, http.StatusNotFound, "威胁不存在")
				return
			}
			writeOK(w, rec)
		})
		r.Get("/recommendations", func(w http.ResponseWriter, r *http.Request) {
			writeList(w, formatBare, recommendations(), 0, paging{})
		})
		r.Post("/ai-recommendations", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, record{"recommendations": recommendations()})
		})
		r.Post("/scan", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				ScanType string `json:"scanType"`
			}
			_ = decodeBody(r, &in)
			if in.ScanType == "" {
				in.ScanType = "full"
			}
			writeOK(w, record{"scanId": fmt.Sprintf("scan_%d", time.Now().UnixNano()), "message": in.ScanType + " scan started"})
		})
		for _, section := range []string{"dashboard", "alerts", "incidents", "logs", "settings", "status"} {
			r.Get("/"+section, func(w http.ResponseWriter, r *http.Request) {
				writeOK(w, securitySection(section))
			})
		}
	})
}

func threatLevel(active int) string {
	switch {
	case active == 0:
		return "low"
	case active < 3:
		return "medium"
	}
	return "high"
}

func recommendations() []record {
	return []record{
		{"id": 1, "title": "启用登录失败锁定", "priority": "high", "category": "authentication"},
		{"id": 2, "title": "强制弱密码账号修改密码", "priority": "medium", "category": "password"},
	}
}

func securitySection(name string) any {
	switch name {
	case "alerts", "incidents", "logs":
		return []record{{"id": 1, "level": "warning", "message": name + " sample", "createdAt": "2026-10-16T23:10:00+08:00"}}
	case "settings":
		return record{"loginLockThreshold": 5, "passwordMinLength": 8, "sessionTimeoutMinutes": 30}
	case "status":
		return record{"firewall": "on", "antivirus": "on", "lastBackup": "2026-10-16T03:00:00+08:00"}
	}
	return record{"securityScore": 86, "openAlerts": 1, "blockedIps": 4}
}

var planStatuses = []string{"draft", "active", "in_progress", "completed", "cancelled"}

func (s *Server) enrollmentRoutes(r chi.Router) {
	d := s.data
	plans := resource{
		col:      d.plans,
		format:   formatSuccess,
		filters:  []string{"status", "year"},
		required: []string{"title", "startDate", "endDate"},
		defaults: record{"status": "draft", "actualCount": 0},
	}
	quotas := resource{
		col:      d.quotas,
		format:   formatRows,
		filters:  []string{"planId", "classId"},
		required: []string{"planId", "classId"},
		defaults: record{"usedQuota": 0, "reservedQuota": 0},
	}

	r.Route("/enrollment-plans", func(r chi.Router) {
		r.Get("/analytics", func(w http.ResponseWriter, r *http.Request) {
			items := d.plans.list(r.URL.Query(), "status", "year")
			byStatus := map[string]int{}
			for _, p := range items {
				byStatus[fmt.Sprint(p["status"])]++
			}
			writeOK(w, record{"totalPlans": len(items), "byStatus": byStatus, "overview": plansOverview(items)})
		})
		r.Get("/overview", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, plansOverview(d.plans.list(nil)))
		})
		r.Get("/all-statistics", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, plansOverview(d.plans.list(nil)))
		})
		plans.mount(r)

		r.Put("/{id}/publish", setStatus(d.plans, "active", formatSuccess))
		r.Put("/{id}/cancel", setStatus(d.plans, "cancelled", formatSuccess))
		r.Put("/{id}/complete", setStatus(d.plans, "completed", formatSuccess))
		r.Put("/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Status string `json:"status"`
			}
			if err := decodeBody(r, &in); err != nil || !slices.Contains(planStatuses, in.Status) {
				writeFail(w, http.StatusBadRequest, "invalid status")
				return
			}
			setStatus(d.plans, in.Status, formatSuccess)(w, r)
		})
		r.Get("/{id}/statistics", func(w http.ResponseWriter, r *http.Request) {
			p, ok := d.plans.get(chi.URLParam(r, "id"))
			if !ok {
				writeFail(w, http.StatusNotFound, "招生计划不存在")
				return
			}
			target, actual := toFloat(p["targetCount"]), toFloat(p["actualCount"])
			writeOK(w, record{
				"planId":         p["id"],
				"targetCount":    int(target),
				"actualCount":    int(actual),
				"completionRate": rate(actual, target),
				"applications":   int(actual * 2),
				"interviews":     int(actual * 1.5),
				"admissions":     int(actual),
			})
		})
		r.Get("/{id}/classes", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, record{"classes": d.planClasses.list(where("planId", chi.URLParam(r, "id")), "planId")})
		})
		r.Post("/{id}/classes", s.setPlanClasses)
		r.Post("/{id}/assignees", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				AssigneeIDs []any `json:"assigneeIds"`
			}
			if err := decodeBody(r, &in); err != nil || len(in.AssigneeIDs) == 0 {
				writeFail(w, http.StatusBadRequest, "assigneeIds is required")
				return
			}
			if _, ok := d.plans.update(chi.URLParam(r, "id"), record{"assigneeIds": in.AssigneeIDs}); !ok {
				writeFail(w, http.StatusNotFound, "招生计划不存在")
				return
			}
			writeOK(w, nil)
		})
		r.Get("/{id}/trackings", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, record{"trackings": d.trackings.list(where("planId", chi.URLParam(r, "id")), "planId")})
		})
		r.Post("/{id}/trackings", func(w http.ResponseWriter, r *http.Request) {
			var in record
			if err := decodeBody(r, &in); err != nil || in == nil {
				writeFail(w, http.StatusBadRequest, "invalid request body")
				return
			}
			id := chi.URLParam(r, "id")
			if _, ok := d.plans.get(id); !ok {
				writeFail(w, http.StatusNotFound, "招生计划不存在")
				return
			}
			in["planId"] = id
			writeOK(w, d.trackings.create(in))
		})
		r.Get("/{id}/quota-usage-history", func(w http.ResponseWriter, r *http.Request) {
			writeOK(w, record{"history": []record{
				{"date": "2026-11-01", "usedQuota": 4, "change": 4, "reason": "开放日转化"},
				{"date": "2026-11-05", "usedQuota": 18, "change": 14, "reason": "首轮录取"},
			}})
		})
		r.Post("/{id}/copy", func(w http.ResponseWriter, r *http.Request) {
			src, ok := d.plans.get(chi.URLParam(r, "id"))
			if !ok {
				writeFail(w, http.StatusNotFound, "招生计划不存在")
				return
			}
			var overrides record
			_ = decodeBody(r, &overrides)
			src["title"] = fmt.Sprint(src["title"]) + "（副本）"
			src["status"], src["actualCount"] = "draft", 0
			for k, v := range overrides {
				src[k] = v
			}
			writeOK(w, d.plans.create(src))
		})
	})

	r.Route("/enrollment-quotas", func(r chi.Router) {
		quotas.mount(r)
		r.Get("/{id}/usage", func(w http.ResponseWriter, r *http.Request) {
			q, ok := d.quotas.get(chi.URLParam(r, "id"))
			if !ok {
				writeFail(w, http.StatusNotFound, "名额不存在")
				return
			}
			total, used, reserved := toFloat(q["totalQuota"]), toFloat(q["usedQuota"]), toFloat(q["reservedQuota"])
			writeOK(w, record{
				"quotaId":       q["id"],
				"totalQuota":    int(total),
				"usedQuota":     int(used),
				"reservedQuota": int(reserved),
				"usageRate":     rate(used+reserved, total),
			})
		})
	})
}

func (s *Server) setPlanClasses(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Classes []record `json:"classes"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := s.data.plans.get(id); !ok {
		writeFail(w, http.StatusNotFound, "招生计划不存在")
		return
	}
	// набор классов заменяется целиком
	for _, c := range s.data.planClasses.list(where("planId", id), "planId") {
		s.data.planClasses.remove(idOf(c))
	}
	for _, c := range in.Classes {
		c["planId"] = id
		s.data.planClasses.create(c)
	}
	writeOK(w, nil)
}

func plansOverview(items []record) record {
	target, enrolled := sum(items, "targetCount"), sum(items, "actualCount")
	return record{
		"totalPlans":     len(items),
		"activePlans":    count(items, "status", "active"),
		"totalTarget":    int(target),
		"totalEnrolled":  int(enrolled),
		"completionRate": rate(enrolled, target),
	}
}

// rate доля в процентах с одним знаком.
func rate(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(part/whole*1000) / 10
}
