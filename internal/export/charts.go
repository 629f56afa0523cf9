// Package export renders the scored dataset to PNG charts, an Excel
// workbook, and a standalone HTML dashboard.
package export

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"metropulse/internal/scoring"
)

// categoryColors follows the dashboard palette, best to worst.
var categoryColors = map[string]color.RGBA{
	"Very High": {R: 46, G: 139, B: 87, A: 255},
	"High":      {R: 50, G: 205, B: 50, A: 255},
	"Moderate":  {R: 255, G: 215, B: 0, A: 255},
	"Low":       {R: 255, G: 140, B: 0, A: 255},
	"Very Low":  {R: 220, G: 20, B: 60, A: 255},
}

var categoryOrder = []string{"Very High", "High", "Moderate", "Low", "Very Low"}

const accentColor = "#667eea"

var accentRGBA = color.RGBA{R: 102, G: 126, B: 234, A: 255}

// RankingChart renders a bar chart of the top metros by resilience score.
func RankingChart(scored []scoring.Scored, topN int) ([]byte, error) {
	top := scoring.TopN(scored, topN)
	if len(top) == 0 {
		return nil, fmt.Errorf("no scored metros to chart")
	}

	p := plot.New()
	p.Title.Text = "Top Metropolitan Areas by Resilience Score"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Metropolitan Area"
	p.Y.Label.Text = "Resilience Score"
	p.Y.Min = 0
	p.Y.Max = 100

	values := make(plotter.Values, len(top))
	labels := make([]string, len(top))
	for i, m := range top {
		values[i] = m.Resilience
		labels[i] = shortMetroName(m.Name)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, err
	}
	bars.Color = accentRGBA
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 0.9
	p.X.Tick.Label.YAlign = draw.YCenter
	p.X.Tick.Label.XAlign = draw.XRight
	p.Add(plotter.NewGrid())

	return renderPNG(p, 12*vg.Inch, 6*vg.Inch)
}

// CategoryChart renders the resilience category distribution as a bar chart.
func CategoryChart(scored []scoring.Scored) ([]byte, error) {
	if len(scored) == 0 {
		return nil, fmt.Errorf("no scored metros to chart")
	}

	summary := scoring.Summarize(scored)

	p := plot.New()
	p.Title.Text = "Distribution by Resilience Category"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Category"
	p.Y.Label.Text = "Metro Areas"
	p.Y.Min = 0

	// One single-bar series per category so each keeps its own color.
	for i, cat := range categoryOrder {
		count := summary.CategoryDistribution[cat]
		values := make(plotter.Values, len(categoryOrder))
		values[i] = float64(count)

		bars, err := plotter.NewBarChart(values, vg.Points(40))
		if err != nil {
			return nil, err
		}
		bars.Color = categoryColors[cat]
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
	}

	p.NominalX(categoryOrder...)
	p.Add(plotter.NewGrid())

	return renderPNG(p, 8*vg.Inch, 6*vg.Inch)
}

// IncomeScatterChart plots median household income against resilience score,
// one point per metro colored by category.
func IncomeScatterChart(scored []scoring.Scored) ([]byte, error) {
	if len(scored) == 0 {
		return nil, fmt.Errorf("no scored metros to chart")
	}

	p := plot.New()
	p.Title.Text = "Median Household Income vs Resilience Score"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Median Household Income ($)"
	p.Y.Label.Text = "Resilience Score"
	p.Y.Min = 0
	p.Y.Max = 100

	for _, m := range scored {
		scatter, err := plotter.NewScatter(plotter.XYs{{X: m.MedianIncome, Y: m.Resilience}})
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Color = categoryColors[m.Category]
		scatter.GlyphStyle.Radius = vg.Points(5)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
	}

	p.Add(plotter.NewGrid())

	return renderPNG(p, 10*vg.Inch, 7*vg.Inch)
}

// ComponentChart renders the four component scores for a single metro.
func ComponentChart(m scoring.Scored) ([]byte, error) {
	p := plot.New()
	p.Title.Text = shortMetroName(m.Name) + ": Score Components"
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Y.Label.Text = "Score"
	p.Y.Min = 0
	p.Y.Max = 100

	values := plotter.Values{m.EmploymentStability, m.Diversity, m.IncomeResilience, m.HumanCapital}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, err
	}
	bars.Color = accentRGBA
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	p.NominalX("Employment", "Diversity", "Income", "Human Capital")
	p.Add(plotter.NewGrid())

	return renderPNG(p, 8*vg.Inch, 6*vg.Inch)
}

func renderPNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	writer, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := writer.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// shortMetroName trims a full CBSA title like
// "Dallas-Fort Worth-Arlington, TX" down to its leading city.
func shortMetroName(name string) string {
	for i, r := range name {
		if r == '-' || r == ',' {
			return name[:i]
		}
	}
	return name
}
