package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"metropulse/internal/dataset"
	"metropulse/internal/logging"
	"metropulse/internal/rag"
	"metropulse/internal/scoring"
	"metropulse/internal/store"
)

var pageFuncs = template.FuncMap{
	"score1": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"commas": func(v float64) string {
		if dataset.Missing(v) {
			return "n/a"
		}
		s := fmt.Sprintf("%d", int64(v))
		var b strings.Builder
		for i, r := range s {
			if i > 0 && (len(s)-i)%3 == 0 {
				b.WriteByte(',')
			}
			b.WriteRune(r)
		}
		return b.String()
	},
	"inc": func(i int) int { return i + 1 },
	"categoryClass": func(cat string) string {
		return strings.ReplaceAll(strings.ToLower(cat), " ", "-")
	},
}

var pageTemplates = template.Must(template.New("pages").Funcs(pageFuncs).Parse(pagesHTML))

type pageData struct {
	Title         string
	Active        string
	Summary       scoring.Summary
	Metros        []scoring.Scored
	SampleQueries []string
	History       []store.QueryRecord
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		logging.ServerError("failed to render %s: %v", name, err)
	}
}

func (s *Server) handleOverviewPage(w http.ResponseWriter, r *http.Request) {
	scored := s.Scored()
	s.renderPage(w, "overview", pageData{
		Title:   "Overview",
		Active:  "overview",
		Summary: scoring.Summarize(scored),
		Metros:  scoring.TopN(scored, len(scored)),
	})
}

func (s *Server) handleRankingsPage(w http.ResponseWriter, r *http.Request) {
	scored := s.Scored()
	s.renderPage(w, "rankings", pageData{
		Title:   "Rankings",
		Active:  "rankings",
		Summary: scoring.Summarize(scored),
		Metros:  scoring.TopN(scored, len(scored)),
	})
}

func (s *Server) handleComparePage(w http.ResponseWriter, r *http.Request) {
	scored := s.Scored()
	s.renderPage(w, "compare", pageData{
		Title:  "Compare",
		Active: "compare",
		Metros: scoring.TopN(scored, len(scored)),
	})
}

func (s *Server) handleInsightsPage(w http.ResponseWriter, r *http.Request) {
	var history []store.QueryRecord
	if s.store != nil {
		if recent, err := s.store.RecentQueries(10); err == nil {
			history = recent
		}
	}
	s.renderPage(w, "insights", pageData{
		Title:         "Policy Insights",
		Active:        "insights",
		SampleQueries: rag.SampleQueries(),
		History:       history,
	})
}

const pagesHTML = `
{{define "head"}}
<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} | MetroPulse</title>
<style>
body { font-family: 'Segoe UI', Arial, sans-serif; margin: 0; background: #f1f5f9; color: #1e293b; }
header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 24px 32px; }
header h1 { margin: 0; font-size: 1.5rem; }
nav { background: white; padding: 0 32px; box-shadow: 0 1px 3px rgba(0,0,0,.1); }
nav a { display: inline-block; padding: 14px 18px; color: #475569; text-decoration: none; }
nav a.active { color: #667eea; border-bottom: 3px solid #667eea; font-weight: 600; }
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
textarea { width: 100%; box-sizing: border-box; padding: 10px; border: 1px solid #cbd5e1; border-radius: 6px; min-height: 70px; }
button { background: #667eea; color: white; border: none; border-radius: 6px; padding: 10px 18px; cursor: pointer; margin-top: 8px; }
button:hover { background: #5a67d8; }
.sample { display: inline-block; margin: 4px; padding: 6px 12px; background: #eef2ff; border-radius: 14px; font-size: .85rem; cursor: pointer; }
.answer { background: #f8fafc; border-left: 4px solid #667eea; padding: 14px; margin-top: 14px; white-space: pre-wrap; }
.sources { color: #64748b; font-size: .85rem; margin-top: 6px; }
select { padding: 8px; border: 1px solid #cbd5e1; border-radius: 6px; }
</style>
</head>
<body>
<header><h1>MetroPulse: Economic Resilience Dashboard</h1></header>
<nav>
<a href="/" {{if eq .Active "overview"}}class="active"{{end}}>Overview</a>
<a href="/rankings" {{if eq .Active "rankings"}}class="active"{{end}}>Rankings</a>
<a href="/compare" {{if eq .Active "compare"}}class="active"{{end}}>Compare</a>
<a href="/insights" {{if eq .Active "insights"}}class="active"{{end}}>Policy Insights</a>
</nav>
<main>
{{end}}

{{define "foot"}}
</main>
</body>
</html>
{{end}}

{{define "overview"}}
{{template "head" .}}
<div class="cards">
<div class="card"><div class="value">{{.Summary.TotalMetros}}</div><div class="label">Metro Areas</div></div>
<div class="card"><div class="value">{{score1 .Summary.AvgResilienceScore}}</div><div class="label">Average Score</div></div>
<div class="card"><div class="value">{{score1 .Summary.HighestScore}}</div><div class="label">Highest Score</div></div>
<div class="card"><div class="value">{{score1 .Summary.LowestScore}}</div><div class="label">Lowest Score</div></div>
</div>
<section>
<h2>Top Metro Areas</h2>
<img class="chart" alt="Top metro areas by resilience score" src="/charts/ranking.png">
</section>
<section>
<h2>Category Distribution</h2>
<img class="chart" alt="Distribution by resilience category" src="/charts/categories.png">
</section>
<section>
<h2>Resilience Component Breakdown</h2>
<p>Select a metro area to see how its resilience score breaks down.</p>
<select id="metro-select" onchange="showComponents()">
{{range .Metros}}<option value="{{.Name}}">{{.Name}} ({{score1 .Resilience}})</option>
{{end}}</select>
<div style="margin-top: 16px;">
<img class="chart" id="component-chart" alt="Score components" src="">
</div>
</section>
<script>
function showComponents() {
  const name = document.getElementById('metro-select').value;
  document.getElementById('component-chart').src = '/charts/components.png?metro=' + encodeURIComponent(name);
}
showComponents();
</script>
{{template "foot" .}}
{{end}}

{{define "rankings"}}
{{template "head" .}}
<section>
<h2>Full Rankings</h2>
<table>
<tr><th>Rank</th><th>Metro Area</th><th>Score</th><th>Category</th><th>Population</th><th>Median Income</th><th>Unemployment</th></tr>
{{range $i, $m := .Metros}}
<tr>
<td>{{inc $i}}</td>
<td>{{$m.Name}}</td>
<td>{{score1 $m.Resilience}}</td>
<td><span class="cat cat-{{categoryClass $m.Category}}">{{$m.Category}}</span></td>
<td>{{commas $m.TotalPopulation}}</td>
<td>${{commas $m.MedianIncome}}</td>
<td>{{score1 $m.UnemploymentRate}}%</td>
</tr>
{{end}}
</table>
</section>
<section>
<h2>Income vs Resilience</h2>
<img class="chart" alt="Median household income vs resilience score" src="/charts/income.png">
</section>
{{template "foot" .}}
{{end}}

{{define "compare"}}
{{template "head" .}}
<section>
<h2>Detailed Comparison</h2>
<table>
<tr><th>Metro Area</th><th>Resilience</th><th>Employment</th><th>Diversity</th><th>Income</th><th>Human Capital</th><th>Category</th></tr>
{{range .Metros}}
<tr>
<td>{{.Name}}</td>
<td>{{score1 .Resilience}}</td>
<td>{{score1 .EmploymentStability}}</td>
<td>{{score1 .Diversity}}</td>
<td>{{score1 .IncomeResilience}}</td>
<td>{{score1 .HumanCapital}}</td>
<td><span class="cat cat-{{categoryClass .Category}}">{{.Category}}</span></td>
</tr>
{{end}}
</table>
</section>
{{template "foot" .}}
{{end}}

{{define "insights"}}
{{template "head" .}}
<section>
<h2>Ask a Policy Question</h2>
<p>Answers are grounded in the loaded policy document corpus.</p>
<div>
{{range .SampleQueries}}<span class="sample" onclick="useSample(this)">{{.}}</span>
{{end}}</div>
<textarea id="query" placeholder="e.g. What role does workforce development play in regional resilience?"></textarea>
<button onclick="ask()">Ask</button>
<div id="result"></div>
</section>
{{if .History}}
<section>
<h2>Recent Questions</h2>
<table>
<tr><th>Question</th><th>Sources</th><th>When</th></tr>
{{range .History}}
<tr><td>{{.Query}}</td><td>{{range $i, $s := .Sources}}{{if $i}}, {{end}}{{$s}}{{end}}</td><td>{{.CreatedAt.Format "Jan 2 15:04"}}</td></tr>
{{end}}
</table>
</section>
{{end}}
<script>
function useSample(el) {
  document.getElementById('query').value = el.textContent;
}
async function ask() {
  const query = document.getElementById('query').value.trim();
  const result = document.getElementById('result');
  if (!query) { return; }
  result.innerHTML = '<div class="answer">Thinking...</div>';
  try {
    const resp = await fetch('/api/query', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({query: query})
    });
    const data = await resp.json();
    if (!resp.ok) {
      result.innerHTML = '<div class="answer">' + (data.error || 'Request failed') + '</div>';
      return;
    }
    let html = '<div class="answer">' + data.response + '</div>';
    if (data.sources && data.sources.length > 0) {
      html += '<div class="sources">Sources: ' + data.sources.join(', ') + '</div>';
    }
    result.innerHTML = html;
  } catch (err) {
    result.innerHTML = '<div class="answer">Request failed: ' + err + '</div>';
  }
}
</script>
{{template "foot" .}}
{{end}}
`
