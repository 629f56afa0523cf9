// Package scoring computes composite economic-resilience scores for metro
// areas: four component scores normalized to 0-100, a weighted composite,
// and a category label.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"metropulse/internal/dataset"
	"metropulse/internal/logging"
)

// Weights holds the component weights of the composite score.
// They must sum to 1.0.
type Weights struct {
	Employment   float64
	Diversity    float64
	Income       float64
	HumanCapital float64
}

// DefaultWeights returns the standard component weighting.
func DefaultWeights() Weights {
	return Weights{
		Employment:   0.30,
		Diversity:    0.25,
		Income:       0.25,
		HumanCapital: 0.20,
	}
}

// Scored is a metro with its resilience breakdown attached.
type Scored struct {
	dataset.Metro

	EmploymentStability float64 `json:"employment_stability_score"`
	Diversity           float64 `json:"diversity_score"`
	IncomeResilience    float64 `json:"income_resilience_score"`
	HumanCapital        float64 `json:"human_capital_score"`
	Resilience          float64 `json:"resilience_score"`
	Category            string  `json:"resilience_category"`
}

// Scorer computes resilience scores over a metro dataset.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(w Weights) (*Scorer, error) {
	sum := w.Employment + w.Diversity + w.Income + w.HumanCapital
	if sum < 0.999 || sum > 1.001 {
		return nil, fmt.Errorf("weights must sum to 1.0, got %.3f", sum)
	}
	return &Scorer{weights: w}, nil
}

// Score computes the full resilience breakdown for each metro. Metros
// missing a required indicator are dropped. All scores land in [0,100]
// and are rounded to one decimal.
func (s *Scorer) Score(metros []dataset.Metro) []Scored {
	complete := make([]dataset.Metro, 0, len(metros))
	for _, m := range metros {
		if m.HasRequiredFields() {
			complete = append(complete, m)
		}
	}
	if len(complete) == 0 {
		logging.Scoring("no complete rows to score (of %d input)", len(metros))
		return nil
	}

	employment := employmentScores(complete)
	income := incomeScores(complete)
	human := humanCapitalScores(complete)

	scored := make([]Scored, len(complete))
	for i, m := range complete {
		// The composite is taken from the unrounded components; rounding
		// happens once, on the stored values.
		composite := employment[i]*s.weights.Employment +
			m.DiversityScore*s.weights.Diversity +
			income[i]*s.weights.Income +
			human[i]*s.weights.HumanCapital

		sc := Scored{
			Metro:               m,
			EmploymentStability: round1(employment[i]),
			Diversity:           round1(m.DiversityScore),
			IncomeResilience:    round1(income[i]),
			HumanCapital:        round1(human[i]),
			Resilience:          round1(clamp(composite, 0, 100)),
		}
		sc.Category = Categorize(sc.Resilience)
		scored[i] = sc
	}

	logging.Scoring("scored %d metros (%d dropped for missing data)", len(scored), len(metros)-len(complete))
	return scored
}

// employmentScores inverts unemployment so lower unemployment scores higher.
// When every metro has the same rate there is nothing to rank: everyone
// gets 75.
func employmentScores(metros []dataset.Metro) []float64 {
	min, max := minMax(metros, func(m dataset.Metro) float64 { return m.UnemploymentRate })
	out := make([]float64, len(metros))
	if max == min {
		for i := range out {
			out[i] = 75.0
		}
		return out
	}
	for i, m := range metros {
		out[i] = 100 - (m.UnemploymentRate-min)/(max-min)*100
	}
	return out
}

// incomeScores min-max normalizes median household income to 0-100.
func incomeScores(metros []dataset.Metro) []float64 {
	min, max := minMax(metros, func(m dataset.Metro) float64 { return m.MedianIncome })
	out := make([]float64, len(metros))
	if max == min {
		for i := range out {
			out[i] = 50.0
		}
		return out
	}
	for i, m := range metros {
		out[i] = (m.MedianIncome - min) / (max - min) * 100
	}
	return out
}

// humanCapitalScores normalizes the bachelors-per-capita rate. Metros without
// education data take the neutral 50.
func humanCapitalScores(metros []dataset.Metro) []float64 {
	out := make([]float64, len(metros))

	rates := make([]float64, len(metros))
	haveAny := false
	for i, m := range metros {
		if dataset.Missing(m.BachelorsDegree) || m.TotalPopulation <= 0 {
			rates[i] = math.NaN()
			continue
		}
		rates[i] = m.BachelorsDegree / m.TotalPopulation * 100
		haveAny = true
	}
	if !haveAny {
		for i := range out {
			out[i] = 50.0
		}
		return out
	}

	min, max := math.Inf(1), math.Inf(-1)
	for _, r := range rates {
		if math.IsNaN(r) {
			continue
		}
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	if max == min {
		for i := range out {
			out[i] = 50.0
		}
		return out
	}

	for i, r := range rates {
		if math.IsNaN(r) {
			out[i] = 50.0
			continue
		}
		out[i] = (r - min) / (max - min) * 100
	}
	return out
}

// Categorize maps a composite score to its resilience category.
func Categorize(score float64) string {
	switch {
	case score >= 80:
		return "Very High"
	case score >= 70:
		return "High"
	case score >= 60:
		return "Moderate"
	case score >= 50:
		return "Low"
	default:
		return "Very Low"
	}
}

// TopN returns the n highest-scoring metros by composite resilience.
func TopN(scored []Scored, n int) []Scored {
	out := make([]Scored, len(scored))
	copy(out, scored)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Resilience > out[j].Resilience })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Summary holds aggregate statistics over a scored dataset.
type Summary struct {
	TotalMetros          int            `json:"total_metros"`
	AvgResilienceScore   float64        `json:"avg_resilience_score"`
	HighestScore         float64        `json:"highest_score"`
	LowestScore          float64        `json:"lowest_score"`
	CategoryDistribution map[string]int `json:"category_distribution"`
}

// Summarize computes aggregate statistics for a scored dataset.
func Summarize(scored []Scored) Summary {
	s := Summary{
		TotalMetros:          len(scored),
		CategoryDistribution: make(map[string]int),
	}
	if len(scored) == 0 {
		return s
	}

	var sum float64
	s.HighestScore = scored[0].Resilience
	s.LowestScore = scored[0].Resilience
	for _, m := range scored {
		sum += m.Resilience
		if m.Resilience > s.HighestScore {
			s.HighestScore = m.Resilience
		}
		if m.Resilience < s.LowestScore {
			s.LowestScore = m.Resilience
		}
		s.CategoryDistribution[m.Category]++
	}
	s.AvgResilienceScore = round1(sum / float64(len(scored)))
	return s
}

func minMax(metros []dataset.Metro, get func(dataset.Metro) float64) (float64, float64) {
	min, max := get(metros[0]), get(metros[0])
	for _, m := range metros[1:] {
		v := get(m)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
