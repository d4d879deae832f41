package probe

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

type CategoryStats struct {
	Name         string  `yaml:"name"`
	Total        int     `yaml:"total"`
	Success      int     `yaml:"success"`
	AuthRequired int     `yaml:"authRequired"`
	NotFound     int     `yaml:"notFound"`
	Errors       int     `yaml:"errors"`
	SuccessRate  float64 `yaml:"successRate"`
}

// Report сводка прогона. Проценты с двумя знаками после запятой.
type Report struct {
	GeneratedAt  time.Time       `yaml:"generatedAt"`
	BaseURL      string          `yaml:"baseUrl"`
	Total        int             `yaml:"total"`
	Success      int             `yaml:"success"`
	AuthRequired int             `yaml:"authRequired"`
	NotFound     int             `yaml:"notFound"`
	Errors       int             `yaml:"errors"`
	SuccessRate  float64         `yaml:"successRate"`
	AvgLatency   time.Duration   `yaml:"avgLatency"`
	Categories   []CategoryStats `yaml:"categories"`
	Results      []Result        `yaml:"results"`
}

// NewReport считает итоги; категории идут в порядке первого появления.
func NewReport(baseURL string, results []Result, at time.Time) *Report {
	r := &Report{GeneratedAt: at, BaseURL: baseURL, Total: len(results), Results: results}

	index := map[string]int{}
	var latency time.Duration
	for _, res := range results {
		i, ok := index[res.Category]
		if !ok {
			i = len(r.Categories)
			index[res.Category] = i
			r.Categories = append(r.Categories, CategoryStats{Name: res.Category})
		}
		c := &r.Categories[i]
		c.Total++
		latency += res.Latency

		switch res.Status {
		case StatusSuccess:
			r.Success++
			c.Success++
		case StatusAuthRequired:
			r.AuthRequired++
			c.AuthRequired++
		case StatusNotFound:
			r.NotFound++
			c.NotFound++
		default:
			r.Errors++
			c.Errors++
		}
	}

	r.SuccessRate = percent(r.Success, r.Total)
	for i := range r.Categories {
		r.Categories[i].SuccessRate = percent(r.Categories[i].Success, r.Categories[i].Total)
	}
	if r.Total > 0 {
		r.AvgLatency = latency / time.Duration(r.Total)
	}
	return r
}

// ByCategory результаты одной категории в исходном порядке.
func (r *Report) ByCategory(name string) []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Category == name {
			out = append(out, res)
		}
	}
	return out
}

// Failed результаты, требующие исправления: error и not_found.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusError || res.Status == StatusNotFound {
			out = append(out, res)
		}
	}
	return out
}

// Write пишет отчет в формате markdown или yaml.
func (r *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return r.Markdown(w)
	case "yaml", "yml":
		return r.YAML(w)
	}
	return fmt.Errorf("unknown report format %q", format)
}

func (r *Report) YAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	return enc.Close()
}

func (r *Report) Markdown(w io.Writer) error {
	if err := markdown.Execute(w, r); err != nil {
		return fmt.Errorf("render markdown report: %w", err)
	}
	return nil
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}

var statusLabels = map[Status]string{
	StatusSuccess:      "✅ 成功",
	StatusAuthRequired: "🔐 需要认证",
	StatusNotFound:     "❌ 不存在",
	StatusError:        "⚠️ 错误",
}

var markdown = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": percent,
	"ms": func(d time.Duration) string {
		return fmt.Sprintf("%.2f", float64(d)/float64(time.Millisecond))
	},
	"label": func(s Status) string {
		if l, ok := statusLabels[s]; ok {
			return l
		}
		return string(s)
	},
	"code": func(c int) string {
		if c == 0 {
			return "-"
		}
		return fmt.Sprint(c)
	},
	// ячейка таблицы не должна ломать разметку
	"cell": func(s string) string {
		if s == "" {
			return "-"
		}
		return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
	},
}).Parse(reportTemplate))

const reportTemplate = `# 全面API测试报告

测试时间: {{.GeneratedAt.Format "2006-01-02 15:04:05"}}
基础URL: {{.BaseURL}}

## 总体统计

| 指标 | 数量 | 比例 |
|------|------|------|
| 总API数量 | {{.Total}} | 100% |
| 成功响应 | {{.Success}} | {{printf "%.2f" .SuccessRate}}% |
| 需要认证 | {{.AuthRequired}} | {{printf "%.2f" (pct .AuthRequired .Total)}}% |
| 接口不存在 | {{.NotFound}} | {{printf "%.2f" (pct .NotFound .Total)}}% |
| 错误响应 | {{.Errors}} | {{printf "%.2f" (pct .Errors .Total)}}% |
| 平均响应时间 | {{ms .AvgLatency}}ms | - |
{{range .Categories}}
## {{.Name}} 模块 ({{printf "%.2f" .SuccessRate}}% 成功率)

| API路径 | 方法 | 状态 | HTTP码 | 响应时间 | 错误信息 |
|---------|------|------|--------|----------|----------|
{{range $.ByCategory .Name}}| {{.Path}} | {{.Method}} | {{label .Status}} | {{code .HTTPCode}} | {{ms .Latency}}ms | {{cell .Error}} |
{{end}}{{end}}{{with .Failed}}
## 需要修复的API
{{range .}}
### {{.Method}} {{.Path}}
- **类别**: {{.Category}}
- **状态**: {{.Status}}
- **HTTP状态码**: {{if .HTTPCode}}{{.HTTPCode}}{{else}}无响应{{end}}
- **错误信息**: {{cell .Error}}
{{end}}{{end}}`
