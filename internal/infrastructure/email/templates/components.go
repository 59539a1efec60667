package templates

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/AmPepSoc/analytics-go/internal/domain/analytics"
)

type reportTemplateData struct {
	WeekStart   string
	WeekEnd     string
	Metrics     []metricRow
	Insights    []string
	TopPages    []analytics.PageCount
	TopSearches []analytics.SearchCount
	Health      analytics.SystemHealth
	HealthColor string
}

type metricRow struct {
	Label     string
	Current   int
	Change    string
	ChangeCSS string
}

const reportTemplate = `<h1 style="font-size:20px;color:#18181b;margin:0 0 4px;">Weekly Analytics Report</h1>
<p style="color:#71717a;margin:0 0 24px;">{{.WeekStart}} to {{.WeekEnd}}</p>

<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="margin-bottom:24px;">
{{range .Metrics}}
<tr>
<td style="padding:8px 0;border-bottom:1px solid #e4e4e7;color:#3f3f46;">{{.Label}}</td>
<td align="right" style="padding:8px 0;border-bottom:1px solid #e4e4e7;font-weight:bold;color:#18181b;">{{.Current}}</td>
<td align="right" style="padding:8px 0 8px 16px;border-bottom:1px solid #e4e4e7;color:{{.ChangeCSS}};">{{.Change}}</td>
</tr>
{{end}}
</table>

{{if .Insights}}
<h2 style="font-size:16px;color:#18181b;margin:0 0 8px;">Key Insights</h2>
<ul style="color:#3f3f46;margin:0 0 24px;padding-left:20px;">
{{range .Insights}}<li style="padding:2px 0;">{{.}}</li>{{end}}
</ul>
{{end}}

{{if .TopPages}}
<h2 style="font-size:16px;color:#18181b;margin:0 0 8px;">Top Pages</h2>
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="margin-bottom:24px;">
{{range .TopPages}}
<tr>
<td style="padding:4px 0;color:#3f3f46;">{{.PageURL}}</td>
<td align="right" style="padding:4px 0;color:#71717a;">{{.Views}} views</td>
</tr>
{{end}}
</table>
{{end}}

{{if .TopSearches}}
<h2 style="font-size:16px;color:#18181b;margin:0 0 8px;">Top Searches</h2>
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="margin-bottom:24px;">
{{range .TopSearches}}
<tr>
<td style="padding:4px 0;color:#3f3f46;">{{.Query}}</td>
<td align="right" style="padding:4px 0;color:#71717a;">{{.Count}}</td>
</tr>
{{end}}
</table>
{{end}}

<p style="color:{{.HealthColor}};margin:0;">
System health: {{printf "%.1f" .Health.ErrorRate}}% error rate
({{.Health.FailedEvents}} of {{.Health.TotalEvents}} events failed)
</p>`

var reportTmpl = template.Must(template.New("weekly-report").Parse(reportTemplate))

var metricOrder = []struct {
	key   string
	label string
}{
	{"page_views", "Page Views"},
	{"unique_visitors", "Unique Visitors"},
	{"searches", "Searches"},
	{"errors", "Errors"},
}

// RenderWeeklyReport renders the HTML body of the weekly report email.
func RenderWeeklyReport(data *analytics.WeeklyReportData) (string, error) {
	rows := make([]metricRow, 0, len(metricOrder))
	for _, m := range metricOrder {
		comparison := data.Metrics[m.key]
		rows = append(rows, metricRow{
			Label:     m.label,
			Current:   comparison.Current,
			Change:    formatChange(comparison),
			ChangeCSS: changeColor(comparison.ChangeDirection),
		})
	}

	content := reportTemplateData{
		WeekStart:   data.WeekStart,
		WeekEnd:     data.WeekEnd,
		Metrics:     rows,
		Insights:    data.Insights,
		TopPages:    capPages(data.TopPages, 5),
		TopSearches: capSearches(data.TopSearches, 5),
		Health:      data.Health,
		HealthColor: healthColor(data.Health.ErrorRate),
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, content); err != nil {
		return "", fmt.Errorf("failed to render weekly report body: %w", err)
	}

	return RenderLayout(LayoutProps{
		Preheader:  fmt.Sprintf("Analytics for %s to %s", data.WeekStart, data.WeekEnd),
		Content:    buf.String(),
		FooterText: "You are receiving this because you are on the analytics report list.",
	})
}

func formatChange(m analytics.MetricComparison) string {
	switch m.ChangeDirection {
	case "up":
		return fmt.Sprintf("+%.1f%%", m.Change)
	case "down":
		return fmt.Sprintf("%.1f%%", m.Change)
	default:
		return "no change"
	}
}

func changeColor(direction string) string {
	switch direction {
	case "up":
		return "#16a34a"
	case "down":
		return "#dc2626"
	default:
		return "#71717a"
	}
}

func healthColor(errorRate float64) string {
	switch analytics.HealthStatus(errorRate) {
	case "ok":
		return "#16a34a"
	case "warning":
		return "#d97706"
	default:
		return "#dc2626"
	}
}

func capPages(pages []analytics.PageCount, n int) []analytics.PageCount {
	if len(pages) > n {
		return pages[:n]
	}
	return pages
}

func capSearches(searches []analytics.SearchCount, n int) []analytics.SearchCount {
	if len(searches) > n {
		return searches[:n]
	}
	return searches
}
