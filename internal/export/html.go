package export

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"metropulse/internal/dataset"
	"metropulse/internal/logging"
	"metropulse/internal/rag"
	"metropulse/internal/scoring"
)

// dashboardData feeds the standalone dashboard template.
type dashboardData struct {
	GeneratedAt   string
	Summary       scoring.Summary
	Metros        []scoring.Scored
	RankingPNG    string
	CategoryPNG   string
	ScatterPNG    string
	SampleQueries []string
}

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"score1": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"commas": func(v float64) string {
		if dataset.Missing(v) {
			return "n/a"
		}
		n := int64(v)
		s := fmt.Sprintf("%d", n)
		out := ""
		for i, r := range s {
			if i > 0 && (len(s)-i)%3 == 0 {
				out += ","
			}
			out += string(r)
		}
		return out
	},
	"inc": func(i int) int { return i + 1 },
	"categoryClass": func(cat string) string {
		return strings.ReplaceAll(strings.ToLower(cat), " ", "-")
	},
}).Parse(dashboardHTML))

// WriteDashboard writes a self-contained HTML dashboard: summary cards, the
// full ranking table, and charts inlined as base64 PNGs.
func WriteDashboard(path string, scored []scoring.Scored) error {
	if len(scored) == 0 {
		return fmt.Errorf("no scored metros to export")
	}

	rankingPNG, err := RankingChart(scored, 10)
	if err != nil {
		return fmt.Errorf("failed to render ranking chart: %w", err)
	}
	categoryPNG, err := CategoryChart(scored)
	if err != nil {
		return fmt.Errorf("failed to render category chart: %w", err)
	}
	scatterPNG, err := IncomeScatterChart(scored)
	if err != nil {
		return fmt.Errorf("failed to render scatter chart: %w", err)
	}

	data := dashboardData{
		GeneratedAt:   time.Now().Format("January 2, 2006 15:04 MST"),
		Summary:       scoring.Summarize(scored),
		Metros:        scoring.TopN(scored, len(scored)),
		RankingPNG:    base64.StdEncoding.EncodeToString(rankingPNG),
		CategoryPNG:   base64.StdEncoding.EncodeToString(categoryPNG),
		ScatterPNG:    base64.StdEncoding.EncodeToString(scatterPNG),
		SampleQueries: rag.SampleQueries(),
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dashboard file: %w", err)
	}
	defer out.Close()

	if err := dashboardTemplate.Execute(out, data); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}

	logging.Export("dashboard written: %s (%d metros)", path, len(scored))
	return nil
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Metro Economic Resilience Dashboard</title>
<style>
body { font-family: 'Segoe UI', Arial, sans-serif; margin: 0; background: #f1f5f9; color: #1e293b; }
header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 32px; }
header h1 { margin: 0 0 8px 0; }
main { max-width: 1100px; margin: 0 auto; padding: 24px; }
.cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 16px; margin-bottom: 24px; }
.card { background: white; border-radius: 8px; padding: 20px; text-align: center; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
.card .value { font-size: 1.8rem; font-weight: bold; color: #667eea; }
.card .label { font-size: .9rem; color: #64748b; }
section { background: white; border-radius: 8px; padding: 24px; margin-bottom: 24px; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
img.chart { max-width: 100%; height: auto; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 8px 12px; text-align: left; border-bottom: 1px solid #e2e8f0; }
th { background: #f8fafc; }
.cat { padding: 2px 10px; border-radius: 12px; color: white; font-size: .85rem; white-space: nowrap; }
.cat-very-high { background: #2E8B57; } .cat-high { background: #32CD32; }
.cat-moderate { background: #FFD700; color: #1e293b; } .cat-low { background: #FF8C00; }
.cat-very-low { background: #DC143C; }
ul.queries li { margin: 6px 0; }
footer { text-align: center; color: #64748b; padding: 16px; font-size: .85rem; }
</style>
</head>
<body>
<header>
<h1>Metro Economic Resilience Dashboard</h1>
<p>Composite resilience scores for major U.S. metropolitan areas</p>
</header>
<main>
<div class="cards">
<div class="card"><div class="value">{{.Summary.TotalMetros}}</div><div class="label">Metro Areas</div></div>
<div class="card"><div class="value">{{score1 .Summary.AvgResilienceScore}}</div><div class="label">Average Score</div></div>
<div class="card"><div class="value">{{score1 .Summary.HighestScore}}</div><div class="label">Highest Score</div></div>
<div class="card"><div class="value">{{score1 .Summary.LowestScore}}</div><div class="label">Lowest Score</div></div>
</div>

<section>
<h2>Top Metro Areas</h2>
<img class="chart" alt="Top metro areas by resilience score" src="data:image/png;base64,{{.RankingPNG}}">
</section>

<section>
<h2>Category Distribution</h2>
<img class="chart" alt="Distribution by resilience category" src="data:image/png;base64,{{.CategoryPNG}}">
</section>

<section>
<h2>Income vs Resilience</h2>
<img class="chart" alt="Median household income vs resilience score" src="data:image/png;base64,{{.ScatterPNG}}">
</section>

<section>
<h2>Full Rankings</h2>
<table>
<tr><th>Rank</th><th>Metro Area</th><th>Score</th><th>Category</th><th>Population</th><th>Median Income</th></tr>
{{range $i, $m := .Metros}}
<tr>
<td>{{inc $i}}</td>
<td>{{$m.Name}}</td>
<td>{{score1 $m.Resilience}}</td>
<td><span class="cat cat-{{categoryClass $m.Category}}">{{$m.Category}}</span></td>
<td>{{commas $m.TotalPopulation}}</td>
<td>${{commas $m.MedianIncome}}</td>
</tr>
{{end}}
</table>
</section>

<section>
<h2>Ask the Policy Assistant</h2>
<p>Run <code>metropulse serve</code> and try questions like:</p>
<ul class="queries">
{{range .SampleQueries}}<li>{{.}}</li>
{{end}}</ul>
</section>
</main>
<footer>Generated {{.GeneratedAt}}</footer>
</body>
</html>
`
